// Package bsondoc implements the self-delimited binary document codec used
// inside document-protocol wire messages: a builder for encoding one
// document at a time and a cursor-based decoder for reading one back.
package bsondoc

import "fmt"

// Type is a document field's wire type tag.
type Type byte

// Wire type tags, as laid out on the byte stream.
const (
	TypeDouble     Type = 0x01
	TypeString     Type = 0x02
	TypeDocument   Type = 0x03
	TypeArray      Type = 0x04
	TypeBinary     Type = 0x05
	TypeUndefined  Type = 0x06 // deprecated, skip-only
	TypeObjectID   Type = 0x07
	TypeBool       Type = 0x08
	TypeDateTime   Type = 0x09
	TypeNull       Type = 0x0A
	TypeRegex      Type = 0x0B
	TypeDBPointer  Type = 0x0C // deprecated, skip-only
	TypeJSCode     Type = 0x0D
	TypeSymbol     Type = 0x0E // deprecated, skip-only
	TypeJSCodeWS   Type = 0x0F // deprecated, skip-only
	TypeInt32      Type = 0x10
	TypeTimestamp  Type = 0x11
	TypeInt64      Type = 0x12
	TypeDecimal128 Type = 0x13
	TypeMinKey     Type = 0xFF
	TypeMaxKey     Type = 0x7F
)

func (t Type) String() string {
	switch t {
	case TypeDouble:
		return "double"
	case TypeString:
		return "string"
	case TypeDocument:
		return "document"
	case TypeArray:
		return "array"
	case TypeBinary:
		return "binary"
	case TypeObjectID:
		return "objectId"
	case TypeBool:
		return "bool"
	case TypeDateTime:
		return "date"
	case TypeNull:
		return "null"
	case TypeRegex:
		return "regex"
	case TypeInt32:
		return "int32"
	case TypeTimestamp:
		return "timestamp"
	case TypeInt64:
		return "int64"
	case TypeDecimal128:
		return "decimal128"
	case TypeMinKey:
		return "minKey"
	case TypeMaxKey:
		return "maxKey"
	default:
		return fmt.Sprintf("type(0x%02x)", byte(t))
	}
}

// ObjectID is a 12-byte document identifier.
type ObjectID [12]byte

// Binary is a binary-subtype value.
type Binary struct {
	Subtype byte
	Data    []byte
}

// Regex is a BSON-style regular expression value: pattern plus option flags,
// both stored as the raw cstring text (no PCRE translation is attempted).
type Regex struct {
	Pattern string
	Options string
}

// Decimal128 carries the raw 16-byte little-endian IEEE 754-2008 decimal128
// representation. This codec treats it as an opaque payload — no arithmetic
// is ever performed on decimal128 values by the gateway.
type Decimal128 struct {
	Hi, Lo uint64
}

// ErrMalformedBuild is returned by the Builder when operations are invoked
// out of order (e.g. an Append call or a second Finish after Finish).
var ErrMalformedBuild = fmt.Errorf("bsondoc: malformed build sequence")

// ErrMalformedDocument is returned by the Decoder on any structural
// violation: underflow, bad UTF-8, an unknown type tag, or a length that
// would read past the document's declared end.
type ErrMalformedDocument struct {
	Reason string
}

func (e *ErrMalformedDocument) Error() string {
	return "bsondoc: malformed document: " + e.Reason
}

func malformed(reason string, args ...any) error {
	return &ErrMalformedDocument{Reason: fmt.Sprintf(reason, args...)}
}
