package handlers

import (
	"time"

	"docgate/internal/backend"
	"docgate/internal/bsondoc"
	"docgate/internal/errcode"
)

// handleHello answers hello/isMaster/ismaster without touching the backend
// pool, so it succeeds even while the pool is unhealthy or configured with
// max=0 — the liberal-handshake invariant in spec §8.
func handleHello(ctx *Context) ([]byte, error) {
	return okDoc(func(b *bsondoc.Builder) error {
		if err := b.AppendBool("isWritablePrimary", true); err != nil {
			return err
		}
		if err := b.AppendBool("helloOk", true); err != nil {
			return err
		}
		// Legacy drivers probing isMaster/ismaster expect this alias too.
		if err := b.AppendBool("ismaster", true); err != nil {
			return err
		}
		if err := b.AppendInt32("maxBsonObjectSize", 16777216); err != nil {
			return err
		}
		if err := b.AppendInt32("maxMessageSizeBytes", 48000000); err != nil {
			return err
		}
		if err := b.AppendInt32("maxWriteBatchSize", 100000); err != nil {
			return err
		}
		if err := b.AppendDateTime("localTime", time.Now().UnixMilli()); err != nil {
			return err
		}
		if err := b.AppendInt32("minWireVersion", 0); err != nil {
			return err
		}
		return b.AppendInt32("maxWireVersion", 17)
	})
}

// handlePing is backend-independent by default (spec §4.7); it only borrows
// a connection and pings it when ctx.PingRequiresBackend has been turned on
// by configuration.
func handlePing(ctx *Context) ([]byte, error) {
	if ctx.PingRequiresBackend {
		if _, err := withConn(ctx, func(pc *backend.PooledConn) ([]byte, error) {
			if err := pc.Ping(); err != nil {
				return nil, errcode.New(errcode.BackendFailed, "backend ping failed: %v", err)
			}
			return nil, nil
		}); err != nil {
			return nil, err
		}
	}
	return okDoc(nil)
}
