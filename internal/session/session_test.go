package session

import (
	"net"
	"testing"
	"time"

	"docgate/internal/bsondoc"
	"docgate/internal/wiremsg"
)

// sendModernCommand writes a client-style OP_MSG request over conn under
// the given requestID, for correlating against the reply's responseTo.
func sendModernCommand(t *testing.T, conn net.Conn, requestID int32, build func(b *bsondoc.Builder)) {
	t.Helper()
	b := bsondoc.NewBuilder()
	build(b)
	doc := b.MustFinish()
	hdr, body := wiremsg.BuildModernReply(0, 0, requestID, doc)
	if err := wiremsg.WriteFrame(conn, hdr, body); err != nil {
		t.Fatalf("write request: %v", err)
	}
}

func readModernReply(t *testing.T, conn net.Conn) ([]bsondoc.Field, wiremsg.Header) {
	t.Helper()
	frame, err := wiremsg.ReadFrame(conn)
	if err != nil {
		t.Fatalf("read reply frame: %v", err)
	}
	msg, err := wiremsg.ParseFrame(frame)
	if err != nil {
		t.Fatalf("parse reply frame: %v", err)
	}
	mm, ok := msg.(*wiremsg.ModernMessage)
	if !ok {
		t.Fatalf("expected ModernMessage reply, got %T", msg)
	}
	doc, ok := mm.FirstDocument()
	if !ok {
		t.Fatal("reply carried no body section")
	}
	fields, err := bsondoc.Decode(doc)
	if err != nil {
		t.Fatalf("decode reply document: %v", err)
	}
	return fields, mm.Hdr
}

func TestWorkerHandlesHelloWithoutBackend(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	w := New(server, nil, nil, nil, false)
	done := make(chan struct{})
	go func() {
		w.Run()
		close(done)
	}()

	client.SetDeadline(time.Now().Add(2 * time.Second))
	sendModernCommand(t, client, 42, func(b *bsondoc.Builder) {
		b.AppendInt32("hello", 1)
		b.AppendString("$db", "admin")
	})

	fields, hdr := readModernReply(t, client)
	if hdr.ResponseTo != 42 {
		t.Fatalf("expected responseTo 42, got %d", hdr.ResponseTo)
	}
	ok, present := bsondoc.GetBool(fields, "isWritablePrimary")
	if !present || !ok {
		t.Fatalf("expected isWritablePrimary: true in %+v", fields)
	}

	client.Close()
	<-done
}

func TestWorkerUnknownCommandRepliesAndContinues(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	w := New(server, nil, nil, nil, false)
	done := make(chan struct{})
	go func() {
		w.Run()
		close(done)
	}()

	client.SetDeadline(time.Now().Add(2 * time.Second))
	sendModernCommand(t, client, 1, func(b *bsondoc.Builder) {
		b.AppendInt32("frobnicate", 1)
		b.AppendString("$db", "admin")
	})
	fields, _ := readModernReply(t, client)
	okField, present := bsondoc.Get(fields, "ok")
	if !present {
		t.Fatalf("missing ok field in %+v", fields)
	}
	okVal, err := bsondoc.ToNative(okField)
	if err != nil {
		t.Fatalf("decode ok field: %v", err)
	}
	if okVal != 0.0 {
		t.Fatalf("expected ok: 0 for unknown command, got %+v", fields)
	}
	code, present := bsondoc.GetInt32(fields, "code")
	if !present || code != 59 {
		t.Fatalf("expected code 59 (CommandNotFound), got %+v", fields)
	}

	// The session must still be alive: a second, valid command on the same
	// connection gets a normal reply.
	sendModernCommand(t, client, 2, func(b *bsondoc.Builder) {
		b.AppendInt32("ping", 1)
		b.AppendString("$db", "admin")
	})
	fields2, hdr2 := readModernReply(t, client)
	if hdr2.ResponseTo != 2 {
		t.Fatalf("expected responseTo 2, got %d", hdr2.ResponseTo)
	}
	if len(fields2) != 1 || fields2[0].Name != "ok" {
		t.Fatalf("expected {ok: 1} ping reply, got %+v", fields2)
	}

	client.Close()
	<-done
}

func TestWorkerClosesSocketOnMalformedCommandDocument(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	w := New(server, nil, nil, nil, false)
	done := make(chan struct{})
	go func() {
		w.Run()
		close(done)
	}()

	client.SetDeadline(time.Now().Add(2 * time.Second))
	// A body that is not a valid document (too short to hold its own
	// declared length) must close the connection without any reply.
	garbage := []byte{0xFF, 0xFF, 0xFF, 0x7F}
	hdr, body := wiremsg.BuildModernReply(0, 0, 1, garbage)
	if err := wiremsg.WriteFrame(client, hdr, body); err != nil {
		t.Fatalf("write request: %v", err)
	}

	buf := make([]byte, 1)
	_, err := client.Read(buf)
	if err == nil {
		t.Fatal("expected connection to close without a reply after a malformed document")
	}

	<-done
}

func TestWorkerClosesSocketOnMalformedFrame(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	w := New(server, nil, nil, nil, false)
	done := make(chan struct{})
	go func() {
		w.Run()
		close(done)
	}()

	client.SetDeadline(time.Now().Add(2 * time.Second))
	// A bogus opcode fails ParseFrame even though framing itself is valid.
	hdr := wiremsg.Header{RequestID: 1, ResponseTo: 0, OpCode: 999999}
	if err := wiremsg.WriteFrame(client, hdr, []byte{1, 2, 3}); err != nil {
		t.Fatalf("write request: %v", err)
	}

	buf := make([]byte, 1)
	_, err := client.Read(buf)
	if err == nil {
		t.Fatal("expected connection to close after an unparseable frame")
	}

	<-done
}
