package handlers

import (
	"docgate/internal/bsondoc"
	"docgate/internal/errcode"
)

// okDoc builds a success reply: fill calls into b to add command-specific
// fields, then ok:1.0 is appended last.
func okDoc(fill func(b *bsondoc.Builder) error) ([]byte, error) {
	b := bsondoc.NewBuilder()
	if fill != nil {
		if err := fill(b); err != nil {
			return nil, err
		}
	}
	if err := b.AppendDouble("ok", 1.0); err != nil {
		return nil, err
	}
	return b.Finish()
}

// ErrorDoc builds the well-formed error reply spec §4.7/§7 requires for any
// command-level failure: ok=0.0, an integer code, and a string errmsg. Any
// error not already carrying an errcode.Code is reported as InternalError —
// handlers never let a bare Go error reach the wire.
func ErrorDoc(err error) []byte {
	code := errcode.InternalError
	msg := err.Error()
	if ce, ok := err.(*errcode.Error); ok {
		code = ce.Code
		msg = ce.Message
	}
	b := bsondoc.NewBuilder()
	b.AppendDouble("ok", 0.0)
	b.AppendInt32("code", int32(code))
	b.AppendString("errmsg", msg)
	return b.MustFinish()
}
