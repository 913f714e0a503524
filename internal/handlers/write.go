package handlers

import (
	"docgate/internal/bsondoc"
)

// handleInsert reports the number of rows the backend's INSERT tag claims.
func handleInsert(ctx *Context) ([]byte, error) {
	res, err := execTranslated(ctx)
	if err != nil {
		return nil, err
	}
	return okDoc(func(b *bsondoc.Builder) error {
		return b.AppendInt32("n", int32(res.RowsAffected))
	})
}

// handleUpdate reports n and nModified from the same UPDATE tag: the
// simple query protocol's CommandComplete only carries one row count, so
// this gateway cannot distinguish "matched but unchanged" from "modified" —
// both fields report the same number.
func handleUpdate(ctx *Context) ([]byte, error) {
	res, err := execTranslated(ctx)
	if err != nil {
		return nil, err
	}
	return okDoc(func(b *bsondoc.Builder) error {
		if err := b.AppendInt32("n", int32(res.RowsAffected)); err != nil {
			return err
		}
		return b.AppendInt32("nModified", int32(res.RowsAffected))
	})
}

// handleDelete reports n from the DELETE tag.
func handleDelete(ctx *Context) ([]byte, error) {
	res, err := execTranslated(ctx)
	if err != nil {
		return nil, err
	}
	return okDoc(func(b *bsondoc.Builder) error {
		return b.AppendInt32("n", int32(res.RowsAffected))
	})
}
