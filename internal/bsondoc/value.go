package bsondoc

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// ToNative decodes a single field's value into a plain Go value: string,
// bool, int32, int64, float64, nil, ObjectID, time.Time, Binary, Regex,
// Decimal128, []any (from TypeArray), or map[string]any (from TypeDocument,
// insertion-ordered via an accompanying []string key slice is not
// preserved — callers needing order should walk Fields() directly).
func ToNative(f Field) (any, error) {
	switch f.Type {
	case TypeDouble:
		return math.Float64frombits(binary.LittleEndian.Uint64(f.Value)), nil
	case TypeString, TypeJSCode, TypeSymbol:
		strLen := int(binary.LittleEndian.Uint32(f.Value[0:4]))
		return string(f.Value[4 : 4+strLen-1]), nil
	case TypeBool:
		return f.Value[0] != 0, nil
	case TypeInt32:
		return int32(binary.LittleEndian.Uint32(f.Value)), nil
	case TypeInt64, TypeTimestamp:
		return int64(binary.LittleEndian.Uint64(f.Value)), nil
	case TypeDateTime:
		ms := int64(binary.LittleEndian.Uint64(f.Value))
		return time.UnixMilli(ms).UTC(), nil
	case TypeNull, TypeUndefined:
		return nil, nil
	case TypeObjectID:
		var id ObjectID
		copy(id[:], f.Value)
		return id, nil
	case TypeMinKey, TypeMaxKey:
		return nil, nil
	case TypeBinary:
		binLen := int(binary.LittleEndian.Uint32(f.Value[0:4]))
		subtype := f.Value[4]
		data := make([]byte, binLen)
		copy(data, f.Value[5:5+binLen])
		return Binary{Subtype: subtype, Data: data}, nil
	case TypeRegex:
		p := 0
		start := 0
		for f.Value[p] != 0 {
			p++
		}
		pattern := string(f.Value[start:p])
		p++
		start = p
		for f.Value[p] != 0 {
			p++
		}
		options := string(f.Value[start:p])
		return Regex{Pattern: pattern, Options: options}, nil
	case TypeDecimal128:
		lo := binary.LittleEndian.Uint64(f.Value[0:8])
		hi := binary.LittleEndian.Uint64(f.Value[8:16])
		return Decimal128{Hi: hi, Lo: lo}, nil
	case TypeArray:
		fields, err := Decode(f.Value)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(fields))
		for i, sub := range fields {
			v, err := ToNative(sub)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case TypeDocument:
		fields, err := Decode(f.Value)
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, len(fields))
		for _, sub := range fields {
			v, err := ToNative(sub)
			if err != nil {
				return nil, err
			}
			out[sub.Name] = v
		}
		return out, nil
	default:
		return nil, malformed("cannot convert type %s to native value", f.Type)
	}
}

// AppendNative appends a Go native value (as produced by ToNative, or a
// plain scalar a handler constructed directly) as a named field on the
// builder, recursively encoding maps and slices as sub-documents/arrays.
// Regex and Decimal128 values from ToNative are not encoded; they return
// an error.
func AppendNative(b *Builder, name string, v any) error {
	switch val := v.(type) {
	case nil:
		return b.AppendNull(name)
	case bool:
		return b.AppendBool(name, val)
	case int:
		return b.AppendInt64(name, int64(val))
	case int32:
		return b.AppendInt32(name, val)
	case int64:
		return b.AppendInt64(name, val)
	case float64:
		return b.AppendDouble(name, val)
	case string:
		return b.AppendString(name, val)
	case []byte:
		return b.AppendBinary(name, 0, val)
	case ObjectID:
		return b.AppendObjectID(name, val)
	case time.Time:
		return b.AppendDateTime(name, val.UnixMilli())
	case Binary:
		return b.AppendBinary(name, val.Subtype, val.Data)
	case map[string]any:
		sub := b.BeginSubdocument()
		for k, sv := range val {
			if err := AppendNative(sub, k, sv); err != nil {
				return err
			}
		}
		raw, err := sub.Finish()
		if err != nil {
			return err
		}
		return b.AppendDocument(name, raw)
	case []any:
		sub := b.BeginArray()
		for _, sv := range val {
			if err := AppendNative(sub, "", sv); err != nil {
				return err
			}
		}
		raw, err := sub.Finish()
		if err != nil {
			return err
		}
		return b.AppendArray(name, raw)
	default:
		return fmt.Errorf("bsondoc: cannot append native value of type %T", v)
	}
}
