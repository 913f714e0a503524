package bsondoc

import (
	"encoding/binary"
	"fmt"
	"math"
)

// builderState tracks what a Builder (or nested array Builder) is allowed to
// do next. Calls out of order fail with ErrMalformedBuild rather than
// producing a corrupt document.
type builderState int

const (
	stateOpen builderState = iota
	stateFinished
)

// Builder constructs one document at a time: begin, append typed fields (or
// nested documents/arrays), finish. The leading 4-byte length is patched in
// by Finish once the final size is known.
type Builder struct {
	buf   []byte
	state builderState
	// arrayIndex is non-nil when this builder was opened via BeginArray on a
	// parent; array field names are the ASCII decimal index, assigned here.
	arrayIndex *int
}

// NewBuilder starts a new top-level document.
func NewBuilder() *Builder {
	b := &Builder{buf: make([]byte, 4)} // reserve length prefix
	return b
}

func newArrayBuilder() *Builder {
	b := NewBuilder()
	idx := 0
	b.arrayIndex = &idx
	return b
}

// nextFieldName returns the name to use for the next appended field: the
// caller-supplied name for a document builder, or the next decimal index
// for an array builder (caller-supplied names are ignored in that case).
func (b *Builder) nextFieldName(name string) string {
	if b.arrayIndex == nil {
		return name
	}
	n := fmt.Sprintf("%d", *b.arrayIndex)
	*b.arrayIndex++
	return n
}

func (b *Builder) requireOpen() error {
	if b.state != stateOpen {
		return ErrMalformedBuild
	}
	return nil
}

func (b *Builder) appendHeader(t Type, name string) {
	b.buf = append(b.buf, byte(t))
	b.buf = append(b.buf, name...)
	b.buf = append(b.buf, 0)
}

// AppendDouble appends a float64 field.
func (b *Builder) AppendDouble(name string, v float64) error {
	if err := b.requireOpen(); err != nil {
		return err
	}
	b.appendHeader(TypeDouble, b.nextFieldName(name))
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
	b.buf = append(b.buf, tmp[:]...)
	return nil
}

// AppendString appends a UTF-8 string field.
func (b *Builder) AppendString(name, v string) error {
	if err := b.requireOpen(); err != nil {
		return err
	}
	b.appendHeader(TypeString, b.nextFieldName(name))
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(v)+1))
	b.buf = append(b.buf, tmp[:]...)
	b.buf = append(b.buf, v...)
	b.buf = append(b.buf, 0)
	return nil
}

// AppendBool appends a boolean field.
func (b *Builder) AppendBool(name string, v bool) error {
	if err := b.requireOpen(); err != nil {
		return err
	}
	b.appendHeader(TypeBool, b.nextFieldName(name))
	if v {
		b.buf = append(b.buf, 1)
	} else {
		b.buf = append(b.buf, 0)
	}
	return nil
}

// AppendInt32 appends a 32-bit integer field.
func (b *Builder) AppendInt32(name string, v int32) error {
	if err := b.requireOpen(); err != nil {
		return err
	}
	b.appendHeader(TypeInt32, b.nextFieldName(name))
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(v))
	b.buf = append(b.buf, tmp[:]...)
	return nil
}

// AppendInt64 appends a 64-bit integer field.
func (b *Builder) AppendInt64(name string, v int64) error {
	if err := b.requireOpen(); err != nil {
		return err
	}
	b.appendHeader(TypeInt64, b.nextFieldName(name))
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	b.buf = append(b.buf, tmp[:]...)
	return nil
}

// AppendDateTime appends a UTC-milliseconds date field.
func (b *Builder) AppendDateTime(name string, millis int64) error {
	if err := b.requireOpen(); err != nil {
		return err
	}
	b.appendHeader(TypeDateTime, b.nextFieldName(name))
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(millis))
	b.buf = append(b.buf, tmp[:]...)
	return nil
}

// AppendNull appends a null field.
func (b *Builder) AppendNull(name string) error {
	if err := b.requireOpen(); err != nil {
		return err
	}
	b.appendHeader(TypeNull, b.nextFieldName(name))
	return nil
}

// AppendObjectID appends a 12-byte object-id field.
func (b *Builder) AppendObjectID(name string, id ObjectID) error {
	if err := b.requireOpen(); err != nil {
		return err
	}
	b.appendHeader(TypeObjectID, b.nextFieldName(name))
	b.buf = append(b.buf, id[:]...)
	return nil
}

// AppendBinary appends a binary field with the given subtype.
func (b *Builder) AppendBinary(name string, subtype byte, data []byte) error {
	if err := b.requireOpen(); err != nil {
		return err
	}
	b.appendHeader(TypeBinary, b.nextFieldName(name))
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(data)))
	b.buf = append(b.buf, tmp[:]...)
	b.buf = append(b.buf, subtype)
	b.buf = append(b.buf, data...)
	return nil
}

// AppendDocument appends a pre-encoded raw document as a sub-document field.
// The bytes must already be a complete, length-prefixed document.
func (b *Builder) AppendDocument(name string, raw []byte) error {
	if err := b.requireOpen(); err != nil {
		return err
	}
	b.appendHeader(TypeDocument, b.nextFieldName(name))
	b.buf = append(b.buf, raw...)
	return nil
}

// AppendArray appends a pre-encoded raw array (itself a document with
// numeric field names) as an array field.
func (b *Builder) AppendArray(name string, raw []byte) error {
	if err := b.requireOpen(); err != nil {
		return err
	}
	b.appendHeader(TypeArray, b.nextFieldName(name))
	b.buf = append(b.buf, raw...)
	return nil
}

// BeginSubdocument returns a new Builder for a nested document; the caller
// must Finish() it and pass the resulting bytes to AppendDocument under the
// same field name. Kept separate from AppendDocument so callers can build
// nested documents top-down without pre-serializing children by hand.
func (b *Builder) BeginSubdocument() *Builder {
	return NewBuilder()
}

// BeginArray returns a new Builder whose appended field names are assigned
// automatically as ascending decimal indices ("0", "1", "2", ...). The
// caller must Finish() it and pass the bytes to AppendArray.
func (b *Builder) BeginArray() *Builder {
	return newArrayBuilder()
}

// Finish patches the leading length prefix and terminates the document with
// the zero sentinel byte, returning the complete encoded bytes. The builder
// must not be used afterward.
func (b *Builder) Finish() ([]byte, error) {
	if err := b.requireOpen(); err != nil {
		return nil, err
	}
	b.buf = append(b.buf, 0) // terminator
	binary.LittleEndian.PutUint32(b.buf[0:4], uint32(len(b.buf)))
	b.state = stateFinished
	return b.buf, nil
}

// MustFinish is Finish without an error return, for call sites that build
// fixed, statically-known-valid documents (e.g. reply skeletons).
func (b *Builder) MustFinish() []byte {
	raw, err := b.Finish()
	if err != nil {
		panic(err)
	}
	return raw
}
