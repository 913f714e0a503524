// Package handlers implements the command handlers named in spec §4.7: one
// function per command name, each borrowing at most one backend connection
// and returning it on every exit. Dispatch is table-driven — a map from
// command name to handler value — rather than a chain of type switches or a
// class hierarchy, per spec §9's design note on command dispatch.
package handlers

import (
	"context"
	"time"

	"docgate/internal/backend"
	"docgate/internal/command"
	"docgate/internal/errcode"
	"docgate/internal/metrics"
	"docgate/internal/sqltranslate"
)

// Context carries everything a handler needs to execute one command.
type Context struct {
	Cmd        *command.Command
	Pool       *backend.Pool
	Translator sqltranslate.Translator

	// PingRequiresBackend ties the ping handler to backend liveness when
	// true. Default false: ping is backend-independent, per spec §4.7.
	PingRequiresBackend bool

	// Metrics is optional; when set, withConn reports acquire latency
	// through it.
	Metrics *metrics.Collector
}

// Handler executes one command and returns the raw reply document bytes for
// the success case, or an error for the session worker to turn into an
// error reply. A *errcode.Error carries the code/message pair that belongs
// in the reply; any other error is reported as errcode.InternalError.
type Handler func(ctx *Context) ([]byte, error)

var registry = map[string]Handler{}

func register(name string, h Handler) {
	registry[name] = h
}

func init() {
	register("hello", handleHello)
	register("isMaster", handleHello)
	register("ismaster", handleHello)
	register("ping", handlePing)

	register("find", handleFind)
	register("count", handleCount)
	register("distinct", handleDistinct)
	register("aggregate", handleAggregate)

	register("insert", handleInsert)
	register("update", handleUpdate)
	register("delete", handleDelete)
	register("findAndModify", handleFindAndModify)

	register("create", handleCreate)
	register("drop", handleDrop)
	register("listCollections", handleListCollections)
	register("listIndexes", handleListIndexes)
	register("createIndexes", handleCreateIndexes)
	register("dropIndexes", handleDropIndexes)
	register("listDatabases", handleListDatabases)
	register("dbStats", handleDBStats)
	register("collStats", handleCollStats)

	register("serverStatus", handleServerStatus)
	register("buildInfo", handleBuildInfo)
	register("buildinfo", handleBuildInfo)
	register("explain", handleExplain)
}

// Dispatch looks up the handler for ctx.Cmd.Name (collapsing the hello
// aliases onto one entry) and runs it. An unrecognized name is reported as
// errcode.CommandNotFound rather than panicking the session worker.
func Dispatch(ctx *Context) ([]byte, error) {
	h, ok := registry[ctx.Cmd.Name]
	if !ok {
		return nil, errcode.New(errcode.CommandNotFound, "no such command: '%s'", ctx.Cmd.Name)
	}
	return h(ctx)
}

// withConn acquires one backend connection, runs fn, and always returns the
// connection to the pool before returning — handlers never hold a
// connection past their own return, per spec §4.7.
func withConn(ctx *Context, fn func(pc *backend.PooledConn) ([]byte, error)) ([]byte, error) {
	start := time.Now()
	pc, err := ctx.Pool.Acquire(context.Background())
	if ctx.Metrics != nil {
		ctx.Metrics.AcquireDuration(time.Since(start))
	}
	if err != nil {
		return nil, errcode.New(errcode.BackendUnavailable, "backend unavailable: %v", err)
	}
	defer pc.Return()
	return fn(pc)
}
