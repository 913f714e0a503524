package bsondoc

import (
	"testing"
)

func TestBuilderDecoderRoundTrip(t *testing.T) {
	b := NewBuilder()
	if err := b.AppendString("hello", "world"); err != nil {
		t.Fatalf("AppendString: %v", err)
	}
	if err := b.AppendInt32("n", 42); err != nil {
		t.Fatalf("AppendInt32: %v", err)
	}
	if err := b.AppendBool("ok", true); err != nil {
		t.Fatalf("AppendBool: %v", err)
	}
	if err := b.AppendDouble("pi", 3.14); err != nil {
		t.Fatalf("AppendDouble: %v", err)
	}
	raw, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	fields, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(fields) != 4 {
		t.Fatalf("expected 4 fields, got %d", len(fields))
	}
	names := []string{"hello", "n", "ok", "pi"}
	for i, f := range fields {
		if f.Name != names[i] {
			t.Fatalf("field %d: expected name %q, got %q (order must match encounter order)", i, names[i], f.Name)
		}
	}

	s, ok := GetString(fields, "hello")
	if !ok || s != "world" {
		t.Fatalf("GetString(hello) = %q, %v", s, ok)
	}
	n, ok := GetInt32(fields, "n")
	if !ok || n != 42 {
		t.Fatalf("GetInt32(n) = %d, %v", n, ok)
	}
	ok2, ok := GetBool(fields, "ok")
	if !ok || !ok2 {
		t.Fatalf("GetBool(ok) = %v, %v", ok2, ok)
	}
}

func TestLengthExactness(t *testing.T) {
	b := NewBuilder()
	b.AppendString("a", "b")
	raw, err := b.Finish()
	if err != nil {
		t.Fatal(err)
	}
	d, err := NewDecoder(raw)
	if err != nil {
		t.Fatal(err)
	}
	if d.Len() != len(raw) {
		t.Fatalf("declared length %d != actual length %d", d.Len(), len(raw))
	}
}

func TestNestedDocumentAndArray(t *testing.T) {
	inner := NewBuilder()
	inner.AppendInt32("x", 1)
	innerRaw, err := inner.Finish()
	if err != nil {
		t.Fatal(err)
	}

	arr := NewBuilder().BeginArray()
	arr.AppendString("", "first")
	arr.AppendString("", "second")
	arrRaw, err := arr.Finish()
	if err != nil {
		t.Fatal(err)
	}

	outer := NewBuilder()
	if err := outer.AppendDocument("sub", innerRaw); err != nil {
		t.Fatal(err)
	}
	if err := outer.AppendArray("list", arrRaw); err != nil {
		t.Fatal(err)
	}
	raw, err := outer.Finish()
	if err != nil {
		t.Fatal(err)
	}

	fields, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	sub, ok := GetDocument(fields, "sub")
	if !ok {
		t.Fatal("expected sub field")
	}
	subFields, err := Decode(sub)
	if err != nil {
		t.Fatal(err)
	}
	if n, ok := GetInt32(subFields, "x"); !ok || n != 1 {
		t.Fatalf("sub.x = %d, %v", n, ok)
	}

	list, ok := GetDocument(fields, "list")
	if !ok {
		t.Fatal("expected list field")
	}
	listFields, err := Decode(list)
	if err != nil {
		t.Fatal(err)
	}
	if len(listFields) != 2 || listFields[0].Name != "0" || listFields[1].Name != "1" {
		t.Fatalf("array field names must be ascending decimal indices, got %+v", listFields)
	}
}

func TestDecodeRejectsTruncatedDocument(t *testing.T) {
	b := NewBuilder()
	b.AppendString("a", "b")
	raw, err := b.Finish()
	if err != nil {
		t.Fatal(err)
	}
	_, err = Decode(raw[:len(raw)-3])
	if err == nil {
		t.Fatal("expected error decoding truncated document")
	}
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	b := NewBuilder()
	b.AppendString("a", "b")
	raw, err := b.Finish()
	if err != nil {
		t.Fatal(err)
	}
	corrupt := append([]byte(nil), raw...)
	corrupt[4] = 0xAA // replace the 'string' type tag with an unknown one
	_, err = Decode(corrupt)
	if err == nil {
		t.Fatal("expected error decoding document with unknown type tag")
	}
}

func TestObjectIDUniqueness(t *testing.T) {
	seen := make(map[ObjectID]bool)
	for i := 0; i < 1000; i++ {
		id := NewObjectID()
		if seen[id] {
			t.Fatalf("duplicate ObjectID generated: %s", id.Hex())
		}
		seen[id] = true
	}
}

func TestObjectIDHexRoundTrip(t *testing.T) {
	id := NewObjectID()
	hex := id.Hex()
	if len(hex) != 24 {
		t.Fatalf("expected 24-hex-digit id, got %q", hex)
	}
	parsed, ok := ObjectIDFromHex(hex)
	if !ok || parsed != id {
		t.Fatalf("ObjectIDFromHex round-trip failed: %v %v", parsed, ok)
	}
}

func TestToNativeAndAppendNativeRoundTrip(t *testing.T) {
	b := NewBuilder()
	b.AppendString("s", "v")
	b.AppendInt64("n", 7)
	b.AppendBool("ok", false)
	raw, err := b.Finish()
	if err != nil {
		t.Fatal(err)
	}
	fields, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}

	out := NewBuilder()
	for _, f := range fields {
		v, err := ToNative(f)
		if err != nil {
			t.Fatal(err)
		}
		if err := AppendNative(out, f.Name, v); err != nil {
			t.Fatal(err)
		}
	}
	outRaw, err := out.Finish()
	if err != nil {
		t.Fatal(err)
	}
	outFields, err := Decode(outRaw)
	if err != nil {
		t.Fatal(err)
	}
	if len(outFields) != len(fields) {
		t.Fatalf("round-trip field count mismatch: %d vs %d", len(outFields), len(fields))
	}
}
