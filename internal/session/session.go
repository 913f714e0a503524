// Package session runs the per-connection worker loop: frame, decode,
// dispatch, encode, write — one goroutine per client connection, matching
// spec §4.8 and §5's goroutine-per-session concurrency model.
package session

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"docgate/internal/backend"
	"docgate/internal/bsondoc"
	"docgate/internal/command"
	"docgate/internal/errcode"
	"docgate/internal/handlers"
	"docgate/internal/metrics"
	"docgate/internal/sqltranslate"
	"docgate/internal/wiremsg"
)

// Worker owns one client connection for its entire lifetime.
type Worker struct {
	conn                net.Conn
	pool                *backend.Pool
	translator          sqltranslate.Translator
	metrics             *metrics.Collector
	pingRequiresBackend bool

	nextRequestID int32
}

// New creates a session worker for an already-accepted client connection.
func New(conn net.Conn, pool *backend.Pool, translator sqltranslate.Translator, m *metrics.Collector, pingRequiresBackend bool) *Worker {
	return &Worker{
		conn:                conn,
		pool:                pool,
		translator:          translator,
		metrics:             m,
		pingRequiresBackend: pingRequiresBackend,
	}
}

// Run drives the worker loop until the connection closes or a fatal framing
// error occurs. It always closes the connection before returning.
func (w *Worker) Run() {
	defer w.conn.Close()

	start := time.Now()
	defer func() {
		if w.metrics != nil {
			w.metrics.SessionDuration(time.Since(start))
		}
	}()

	remote := w.conn.RemoteAddr()
	slog.Info("session opened", "remote", remote)
	defer slog.Info("session closed", "remote", remote)

	for {
		frame, err := wiremsg.ReadFrame(w.conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Warn("session: closing after frame read error", "remote", remote, "err", err)
			}
			return
		}

		msg, err := wiremsg.ParseFrame(frame)
		if err != nil {
			slog.Warn("session: closing after malformed message", "remote", remote, "err", err)
			return
		}

		if err := w.handleMessage(msg); err != nil {
			slog.Warn("session: closing after malformed document or write failure", "remote", remote, "err", err)
			return
		}
	}
}

// handleMessage dispatches one parsed message and writes its reply. An
// error here closes the connection: either the command document itself was
// malformed (a transport-integrity failure per spec §7) or the reply could
// not be written. Handler-level failures, including an unknown command
// name, never reach this return path — runCommand already turns those into
// a well-formed reply document instead.
func (w *Worker) handleMessage(msg wiremsg.Message) error {
	switch m := msg.(type) {
	case *wiremsg.ModernMessage:
		return w.handleModern(m)
	case *wiremsg.LegacyQueryMessage:
		return w.handleLegacyQuery(m)
	default:
		// ParseFrame recurses OP_COMPRESSED away, so the only type that
		// lands here is a LegacyReplyMessage from a client that sent an
		// OP_REPLY; the error closes the connection.
		return errcode.New(errcode.Unsupported, "unexpected inbound message type")
	}
}

func (w *Worker) handleModern(m *wiremsg.ModernMessage) error {
	doc, ok := m.FirstDocument()
	if !ok {
		return w.writeModernReply(m.Hdr.RequestID, handlers.ErrorDoc(
			errcode.New(errcode.FailedToParse, "OP_MSG carried no body section")))
	}

	replyDoc, err := w.runCommand(doc)
	if err != nil {
		// MALFORMED_DOCUMENT: document bytes violate the encoding. This is a
		// transport-integrity failure, not a handler failure, so per spec §7
		// it closes the socket without attempting a reply — unlike a handler
		// or unknown-command error, which always gets a well-formed reply.
		return err
	}
	return w.writeModernReply(m.Hdr.RequestID, replyDoc)
}

func (w *Worker) handleLegacyQuery(m *wiremsg.LegacyQueryMessage) error {
	replyDoc, err := w.runCommand(m.Query)
	if err != nil {
		return err
	}
	return w.writeLegacyReply(m.Hdr.RequestID, replyDoc)
}

// runCommand decodes the command document and dispatches it. A malformed
// document (MALFORMED_DOCUMENT) is returned as an error so the caller closes
// the socket without replying, per spec §7 — it is a transport-integrity
// failure, not a handler failure. Everything from command.Decode onward
// (missing command field, unknown command, handler errors) always produces
// a well-formed reply instead, per spec §4.8.
func (w *Worker) runCommand(doc []byte) ([]byte, error) {
	fields, err := bsondoc.Decode(doc)
	if err != nil {
		return nil, fmt.Errorf("malformed command document: %w", err)
	}

	cmd, err := command.Decode(fields, w.allocateRequestID())
	if err != nil {
		return handlers.ErrorDoc(err), nil
	}

	ctx := &handlers.Context{
		Cmd:                 cmd,
		Pool:                w.pool,
		Translator:          w.translator,
		PingRequiresBackend: w.pingRequiresBackend,
		Metrics:             w.metrics,
	}

	start := time.Now()
	reply, err := handlers.Dispatch(ctx)
	if w.metrics != nil {
		w.metrics.CommandCompleted(cmd.Name, time.Since(start), err == nil)
	}
	if err != nil {
		return handlers.ErrorDoc(err), nil
	}
	return reply, nil
}

func (w *Worker) writeModernReply(responseTo int32, doc []byte) error {
	hdr, body := wiremsg.BuildModernReply(0, responseTo, w.allocateRequestID(), doc)
	return wiremsg.WriteFrame(w.conn, hdr, body)
}

func (w *Worker) writeLegacyReply(responseTo int32, doc []byte) error {
	hdr, body := wiremsg.BuildLegacyReply(responseTo, w.allocateRequestID(), doc)
	return wiremsg.WriteFrame(w.conn, hdr, body)
}

func (w *Worker) allocateRequestID() int32 {
	w.nextRequestID++
	return w.nextRequestID
}
