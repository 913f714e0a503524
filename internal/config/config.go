// Package config loads docgate's YAML configuration and watches it for
// changes, the way the teacher's config package does: env-var substitution
// on the raw bytes, zero-value defaults, and a debounced fsnotify reload.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for docgate.
type Config struct {
	Listen               ListenConfig  `yaml:"listen"`
	Backend              BackendConfig `yaml:"backend"`
	Pool                 PoolConfig    `yaml:"pool"`
	Health               HealthConfig  `yaml:"health"`
	Ping                 PingConfig    `yaml:"ping"`
	MaxClientConnections int           `yaml:"max_client_connections"`
}

// ListenConfig defines the ports and bind addresses docgate listens on.
type ListenConfig struct {
	Bind    string `yaml:"bind"`
	Port    int    `yaml:"port"`
	APIBind string `yaml:"api_bind"`
	APIPort int    `yaml:"api_port"`
	TLSCert string `yaml:"tls_cert"`
	TLSKey  string `yaml:"tls_key"`
}

// TLSEnabled returns true if both TLS cert and key paths are configured.
func (lc ListenConfig) TLSEnabled() bool {
	return lc.TLSCert != "" && lc.TLSKey != ""
}

// BackendConfig is the single host/port/database/user/password tuple this
// gateway proxies to (spec §6: exactly one backend per gateway instance).
type BackendConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DBName   string `yaml:"dbname"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Redacted returns a copy of BackendConfig with the password masked, for
// logging and the admin API's /status endpoint.
func (b BackendConfig) Redacted() BackendConfig {
	c := b
	if c.Password != "" {
		c.Password = "***REDACTED***"
	}
	return c
}

// PoolConfig mirrors backend.Config's tuning knobs (spec §4.5).
type PoolConfig struct {
	MinConnections      int           `yaml:"min_connections"`
	MaxConnections      int           `yaml:"max_connections"`
	IdleTimeout         time.Duration `yaml:"idle_timeout"`
	MaxLifetime         time.Duration `yaml:"max_lifetime"`
	AcquireTimeout      time.Duration `yaml:"acquire_timeout"`
	ConnectTimeout      time.Duration `yaml:"connect_timeout"`
	ValidationInterval  time.Duration `yaml:"validation_interval"`
	ValidateConnections bool          `yaml:"validate_connections"`
}

// HealthConfig tunes the backend health checker (spec §4.12).
type HealthConfig struct {
	Interval          time.Duration `yaml:"interval"`
	FailureThreshold  int           `yaml:"failure_threshold"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PingConfig controls whether the ping command's success depends on
// backend liveness (spec §4.7: backend-independent by default).
type PingConfig struct {
	TiesToBackend bool `yaml:"ties_to_backend"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// substituteEnvVars replaces ${VAR_NAME} patterns with environment variable
// values, leaving the pattern untouched when the variable is unset.
func substituteEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := envVarPattern.FindSubmatch(match)[1]
		if val, ok := os.LookupEnv(string(varName)); ok {
			return []byte(val)
		}
		return match
	})
}

// Load reads and parses a YAML config file with env var substitution.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	data = substituteEnvVars(data)

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Listen.Bind == "" {
		cfg.Listen.Bind = "0.0.0.0"
	}
	if cfg.Listen.Port == 0 {
		cfg.Listen.Port = 27017
	}
	if cfg.Listen.APIPort == 0 {
		cfg.Listen.APIPort = 8080
	}
	if cfg.Listen.APIBind == "" {
		cfg.Listen.APIBind = "127.0.0.1"
	}
	if cfg.Pool.MinConnections == 0 {
		cfg.Pool.MinConnections = 2
	}
	if cfg.Pool.MaxConnections == 0 {
		cfg.Pool.MaxConnections = 20
	}
	if cfg.Pool.IdleTimeout == 0 {
		cfg.Pool.IdleTimeout = 5 * time.Minute
	}
	if cfg.Pool.MaxLifetime == 0 {
		cfg.Pool.MaxLifetime = 30 * time.Minute
	}
	if cfg.Pool.AcquireTimeout == 0 {
		cfg.Pool.AcquireTimeout = 10 * time.Second
	}
	if cfg.Pool.ConnectTimeout == 0 {
		cfg.Pool.ConnectTimeout = 5 * time.Second
	}
	if cfg.Pool.ValidationInterval == 0 {
		cfg.Pool.ValidationInterval = time.Minute
	}
	if cfg.Health.Interval == 0 {
		cfg.Health.Interval = 5 * time.Second
	}
	if cfg.Health.FailureThreshold == 0 {
		cfg.Health.FailureThreshold = 3
	}
	if cfg.Health.ConnectionTimeout == 0 {
		cfg.Health.ConnectionTimeout = 2 * time.Second
	}
}

func validate(cfg *Config) error {
	if cfg.Backend.Host == "" {
		return fmt.Errorf("backend: host is required")
	}
	if cfg.Backend.Port == 0 {
		return fmt.Errorf("backend: port is required")
	}
	if cfg.Backend.DBName == "" {
		return fmt.Errorf("backend: dbname is required")
	}
	if cfg.Backend.Username == "" {
		return fmt.Errorf("backend: username is required")
	}
	return nil
}

// Watcher watches a config file for changes and calls the callback with the
// new config, debouncing rapid successive writes.
type Watcher struct {
	path     string
	callback func(*Config)
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	stopCh   chan struct{}
}

// NewWatcher creates a new config file watcher.
func NewWatcher(path string, callback func(*Config)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	if err := w.Add(path); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching config file: %w", err)
	}

	cw := &Watcher{
		path:     path,
		callback: callback,
		watcher:  w,
		stopCh:   make(chan struct{}),
	}

	go cw.run()
	return cw, nil
}

func (cw *Watcher) run() {
	var debounce *time.Timer
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, cw.reload)
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "err", err)
		case <-cw.stopCh:
			return
		}
	}
}

func (cw *Watcher) reload() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cfg, err := Load(cw.path)
	if err != nil {
		slog.Warn("config hot-reload failed", "path", cw.path, "err", err)
		return
	}

	slog.Info("configuration reloaded", "path", cw.path)
	cw.callback(cfg)
}

// Stop stops the config watcher.
func (cw *Watcher) Stop() error {
	close(cw.stopCh)
	return cw.watcher.Close()
}
