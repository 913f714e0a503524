package command

import (
	"testing"

	"docgate/internal/bsondoc"
)

func TestDecodeSimpleCommand(t *testing.T) {
	b := bsondoc.NewBuilder()
	b.AppendInt32("ping", 1)
	b.AppendString("$db", "admin")
	raw := b.MustFinish()
	fields, err := bsondoc.Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	cmd, err := Decode(fields, 42)
	if err != nil {
		t.Fatal(err)
	}
	if cmd.Name != "ping" {
		t.Fatalf("expected name ping, got %q", cmd.Name)
	}
	if cmd.Database != "admin" {
		t.Fatalf("expected database admin, got %q", cmd.Database)
	}
	if cmd.HasCollection {
		t.Fatal("ping should not resolve a collection")
	}
}

func TestDecodeCollectionCommand(t *testing.T) {
	b := bsondoc.NewBuilder()
	b.AppendString("find", "users")
	b.AppendString("$db", "app")
	raw := b.MustFinish()
	fields, err := bsondoc.Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	cmd, err := Decode(fields, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !cmd.HasCollection || cmd.Collection != "users" {
		t.Fatalf("expected collection users, got %q (%v)", cmd.Collection, cmd.HasCollection)
	}
	if cmd.Namespace() != "app.users" {
		t.Fatalf("expected namespace app.users, got %q", cmd.Namespace())
	}
}

func TestDecodeDBBeforeCommandField(t *testing.T) {
	b := bsondoc.NewBuilder()
	b.AppendString("$db", "admin")
	b.AppendInt32("hello", 1)
	raw := b.MustFinish()
	fields, err := bsondoc.Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	cmd, err := Decode(fields, 1)
	if err != nil {
		t.Fatal(err)
	}
	if cmd.Name != "hello" {
		t.Fatalf("expected command field to skip leading $db, got %q", cmd.Name)
	}
}

func TestDecodeNoCommandField(t *testing.T) {
	b := bsondoc.NewBuilder()
	b.AppendString("$db", "admin")
	raw := b.MustFinish()
	fields, err := bsondoc.Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(fields, 1); err == nil {
		t.Fatal("expected NO_COMMAND_FIELD error")
	}
}

func TestIsHandshakeAliases(t *testing.T) {
	for _, name := range []string{"hello", "isMaster", "ismaster"} {
		if !IsHandshake(name) {
			t.Fatalf("%q should be recognized as a handshake alias", name)
		}
	}
	if IsHandshake("find") {
		t.Fatal("find should not be a handshake alias")
	}
}
