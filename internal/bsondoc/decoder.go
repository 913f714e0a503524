package bsondoc

import (
	"encoding/binary"
	"math"
	"unicode/utf8"
)

// Field is one decoded (name, type, raw-value-bytes) triple in encounter
// order. Value is the exact slice of the source document backing the field
// (no copy), sized to the type's wire length.
type Field struct {
	Name  string
	Type  Type
	Value []byte
}

// Decoder walks a raw document's fields in encounter order without building
// an intermediate map, so projection is O(N) per lookup and round-trip
// order is preserved by construction.
type Decoder struct {
	raw []byte
	end int // declared total length
}

// NewDecoder wraps raw bytes believed to be one complete document. It
// validates only the length prefix and sentinel placement up front; field
// contents are validated lazily as Fields() walks them.
func NewDecoder(raw []byte) (*Decoder, error) {
	if len(raw) < 5 {
		return nil, malformed("document shorter than minimum size (%d bytes)", len(raw))
	}
	declared := int(binary.LittleEndian.Uint32(raw[0:4]))
	if declared < 5 || declared > len(raw) {
		return nil, malformed("declared length %d does not fit in %d available bytes", declared, len(raw))
	}
	if raw[declared-1] != 0 {
		return nil, malformed("missing terminating sentinel byte")
	}
	return &Decoder{raw: raw[:declared], end: declared}, nil
}

// Len returns the document's declared total length (including itself and
// the trailing sentinel).
func (d *Decoder) Len() int {
	return d.end
}

// Raw returns the full backing byte slice for this document.
func (d *Decoder) Raw() []byte {
	return d.raw
}

// Fields walks the document and returns every field in encounter order.
func (d *Decoder) Fields() ([]Field, error) {
	var fields []Field
	pos := 4
	for {
		if pos >= d.end {
			return nil, malformed("ran past document end while scanning fields")
		}
		tag := d.raw[pos]
		if tag == 0 {
			if pos != d.end-1 {
				return nil, malformed("sentinel byte found before declared end")
			}
			break
		}
		pos++

		nameStart := pos
		for pos < d.end && d.raw[pos] != 0 {
			pos++
		}
		if pos >= d.end {
			return nil, malformed("unterminated field name")
		}
		name := string(d.raw[nameStart:pos])
		if !utf8.ValidString(name) {
			return nil, malformed("field name %q is not valid UTF-8", name)
		}
		pos++ // skip name NUL

		valStart := pos
		valLen, err := valueLength(Type(tag), d.raw, pos, d.end)
		if err != nil {
			return nil, err
		}
		pos += valLen
		if pos > d.end {
			return nil, malformed("field %q value overruns document end", name)
		}

		fields = append(fields, Field{Name: name, Type: Type(tag), Value: d.raw[valStart:pos]})
	}
	return fields, nil
}

// valueLength returns the byte length of a value of the given type starting
// at raw[pos], or an error if the tag is unknown or the buffer is too short
// to contain a well-formed value.
func valueLength(t Type, raw []byte, pos, end int) (int, error) {
	remain := end - pos
	switch t {
	case TypeDouble, TypeInt64, TypeDateTime, TypeTimestamp:
		if remain < 8 {
			return 0, malformed("truncated %s value", t)
		}
		return 8, nil
	case TypeInt32:
		if remain < 4 {
			return 0, malformed("truncated int32 value")
		}
		return 4, nil
	case TypeBool:
		if remain < 1 {
			return 0, malformed("truncated bool value")
		}
		return 1, nil
	case TypeNull, TypeUndefined, TypeMinKey, TypeMaxKey:
		return 0, nil
	case TypeObjectID:
		if remain < 12 {
			return 0, malformed("truncated objectId value")
		}
		return 12, nil
	case TypeDecimal128:
		if remain < 16 {
			return 0, malformed("truncated decimal128 value")
		}
		return 16, nil
	case TypeString, TypeJSCode, TypeSymbol:
		if remain < 4 {
			return 0, malformed("truncated %s length prefix", t)
		}
		strLen := int(binary.LittleEndian.Uint32(raw[pos : pos+4]))
		if strLen < 1 || 4+strLen > remain {
			return 0, malformed("invalid %s length %d", t, strLen)
		}
		if raw[pos+4+strLen-1] != 0 {
			return 0, malformed("%s value missing NUL terminator", t)
		}
		if !utf8.Valid(raw[pos+4 : pos+4+strLen-1]) {
			return 0, malformed("%s value is not valid UTF-8", t)
		}
		return 4 + strLen, nil
	case TypeDocument, TypeArray:
		if remain < 4 {
			return 0, malformed("truncated %s length prefix", t)
		}
		docLen := int(binary.LittleEndian.Uint32(raw[pos : pos+4]))
		if docLen < 5 || docLen > remain {
			return 0, malformed("invalid nested %s length %d (parent has %d remaining)", t, docLen, remain)
		}
		if raw[pos+docLen-1] != 0 {
			return 0, malformed("nested %s missing sentinel byte", t)
		}
		return docLen, nil
	case TypeBinary:
		if remain < 5 {
			return 0, malformed("truncated binary header")
		}
		binLen := int(binary.LittleEndian.Uint32(raw[pos : pos+4]))
		if binLen < 0 || 5+binLen > remain {
			return 0, malformed("invalid binary length %d", binLen)
		}
		return 5 + binLen, nil
	case TypeRegex:
		// two cstrings: pattern, options
		p := pos
		for i := 0; i < 2; i++ {
			start := p
			for p < end && raw[p] != 0 {
				p++
			}
			if p >= end {
				return 0, malformed("truncated regex value")
			}
			if !utf8.Valid(raw[start:p]) {
				return 0, malformed("regex value is not valid UTF-8")
			}
			p++
		}
		return p - pos, nil
	case TypeDBPointer:
		if remain < 4 {
			return 0, malformed("truncated DBPointer length prefix")
		}
		strLen := int(binary.LittleEndian.Uint32(raw[pos : pos+4]))
		if strLen < 1 || 4+strLen+12 > remain {
			return 0, malformed("invalid DBPointer length %d", strLen)
		}
		return 4 + strLen + 12, nil
	case TypeJSCodeWS:
		if remain < 4 {
			return 0, malformed("truncated JS-code-with-scope length prefix")
		}
		totalLen := int(binary.LittleEndian.Uint32(raw[pos : pos+4]))
		if totalLen < 4 || totalLen > remain {
			return 0, malformed("invalid JS-code-with-scope length %d", totalLen)
		}
		return totalLen, nil
	default:
		return 0, malformed("unknown type tag 0x%02x", byte(t))
	}
}

// Decode parses a raw document into a Decoder in one step — a convenience
// wrapper over NewDecoder for call sites that only need the Fields().
func Decode(raw []byte) ([]Field, error) {
	d, err := NewDecoder(raw)
	if err != nil {
		return nil, err
	}
	return d.Fields()
}

// Get returns the raw value and type of the named field, and whether it was
// present. O(N) scan — documents in this system are small command/reply
// envelopes, not large stored records, so this is not a hot-path concern.
func Get(fields []Field, name string) (Field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// GetString returns a string field's decoded value.
func GetString(fields []Field, name string) (string, bool) {
	f, ok := Get(fields, name)
	if !ok || f.Type != TypeString {
		return "", false
	}
	strLen := int(binary.LittleEndian.Uint32(f.Value[0:4]))
	return string(f.Value[4 : 4+strLen-1]), true
}

// GetInt32 returns an int32 field's value, with numeric widening from
// int64/double the way MongoDB's own command parsers accept either.
func GetInt32(fields []Field, name string) (int32, bool) {
	f, ok := Get(fields, name)
	if !ok {
		return 0, false
	}
	switch f.Type {
	case TypeInt32:
		return int32(binary.LittleEndian.Uint32(f.Value)), true
	case TypeInt64:
		return int32(int64(binary.LittleEndian.Uint64(f.Value))), true
	case TypeDouble:
		bits := binary.LittleEndian.Uint64(f.Value)
		return int32(int64FromDoubleBits(bits)), true
	default:
		return 0, false
	}
}

// GetInt64 returns an int64 field's value, widening from int32/double.
func GetInt64(fields []Field, name string) (int64, bool) {
	f, ok := Get(fields, name)
	if !ok {
		return 0, false
	}
	switch f.Type {
	case TypeInt64:
		return int64(binary.LittleEndian.Uint64(f.Value)), true
	case TypeInt32:
		return int64(int32(binary.LittleEndian.Uint32(f.Value))), true
	case TypeDouble:
		bits := binary.LittleEndian.Uint64(f.Value)
		return int64FromDoubleBits(bits), true
	default:
		return 0, false
	}
}

// GetBool returns a bool field's value. Per MongoDB command-parsing
// convention, any numeric field is also accepted: zero is false, nonzero
// is true.
func GetBool(fields []Field, name string) (bool, bool) {
	f, ok := Get(fields, name)
	if !ok {
		return false, false
	}
	switch f.Type {
	case TypeBool:
		return f.Value[0] != 0, true
	case TypeInt32:
		return binary.LittleEndian.Uint32(f.Value) != 0, true
	case TypeInt64:
		return binary.LittleEndian.Uint64(f.Value) != 0, true
	case TypeDouble:
		return math.Float64frombits(binary.LittleEndian.Uint64(f.Value)) != 0, true
	default:
		return false, false
	}
}

// GetDocument returns the raw sub-slice of a document- or array-typed field.
func GetDocument(fields []Field, name string) ([]byte, bool) {
	f, ok := Get(fields, name)
	if !ok || (f.Type != TypeDocument && f.Type != TypeArray) {
		return nil, false
	}
	return f.Value, true
}

func int64FromDoubleBits(bits uint64) int64 {
	return int64(math.Float64frombits(bits))
}
