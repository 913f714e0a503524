package gateway

import (
	"net"
	"strconv"
	"testing"
	"time"

	"docgate/internal/bsondoc"
	"docgate/internal/config"
	"docgate/internal/sqltranslate"
	"docgate/internal/wiremsg"
)

// freePort asks the OS for an unused TCP port by binding then releasing it.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func TestListenAcceptsAndAnswersHello(t *testing.T) {
	port := freePort(t)
	s := New(nil, sqltranslate.NewPostgres(), nil, config.ListenConfig{}, false)
	if err := s.Listen("127.0.0.1", port); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer s.Stop(time.Second)

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	var conn net.Conn
	var err error
	for i := 0; i < 20; i++ {
		conn, err = net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	b := bsondoc.NewBuilder()
	b.AppendInt32("hello", 1)
	b.AppendString("$db", "admin")
	doc := b.MustFinish()
	hdr, body := wiremsg.BuildModernReply(0, 0, 1, doc)
	if err := wiremsg.WriteFrame(conn, hdr, body); err != nil {
		t.Fatalf("write request: %v", err)
	}

	frame, err := wiremsg.ReadFrame(conn)
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	msg, err := wiremsg.ParseFrame(frame)
	if err != nil {
		t.Fatalf("parse reply: %v", err)
	}
	mm, ok := msg.(*wiremsg.ModernMessage)
	if !ok {
		t.Fatalf("expected ModernMessage, got %T", msg)
	}
	replyDoc, ok := mm.FirstDocument()
	if !ok {
		t.Fatal("reply carried no body section")
	}
	fields, err := bsondoc.Decode(replyDoc)
	if err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if ok, present := bsondoc.GetBool(fields, "isWritablePrimary"); !present || !ok {
		t.Fatalf("expected isWritablePrimary: true, got %+v", fields)
	}
}

func TestStopClosesListenerAndDrains(t *testing.T) {
	port := freePort(t)
	s := New(nil, sqltranslate.NewPostgres(), nil, config.ListenConfig{}, false)
	if err := s.Listen("127.0.0.1", port); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	s.Stop(time.Second)

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	if _, err := net.DialTimeout("tcp", addr, 200*time.Millisecond); err == nil {
		t.Fatal("expected listener to be closed after Stop")
	}
}
