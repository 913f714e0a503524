package handlers

import (
	"docgate/internal/backend"
	"docgate/internal/bsondoc"
	"docgate/internal/errcode"
)

// handleFind builds the cursor-shaped reply spec §4.7 and the end-to-end
// find scenarios in spec §8 require: cursor.id is always 0 (this gateway
// never holds a server-side cursor open across requests — every find
// returns its whole result in one firstBatch).
func handleFind(ctx *Context) ([]byte, error) {
	res, err := execTranslated(ctx)
	if err != nil {
		return nil, err
	}
	return buildCursorReply(ctx, ctx.Cmd.Namespace(), res)
}

// buildCursorReply is shared by find and aggregate: both produce a
// (_id, document) row set that becomes a cursor's firstBatch.
func buildCursorReply(ctx *Context, ns string, res *backend.Result) ([]byte, error) {
	docs, err := documentsFromRows(res)
	if err != nil {
		return nil, err
	}
	batchRaw, err := buildDocArray(docs)
	if err != nil {
		return nil, err
	}
	return okDoc(func(b *bsondoc.Builder) error {
		cursor := b.BeginSubdocument()
		if err := cursor.AppendInt64("id", 0); err != nil {
			return err
		}
		if err := cursor.AppendString("ns", ns); err != nil {
			return err
		}
		if err := cursor.AppendArray("firstBatch", batchRaw); err != nil {
			return err
		}
		cursorRaw, err := cursor.Finish()
		if err != nil {
			return err
		}
		return b.AppendDocument("cursor", cursorRaw)
	})
}

// handleCount expects a single-row, single-column SELECT COUNT(*) result.
func handleCount(ctx *Context) ([]byte, error) {
	res, err := execTranslated(ctx)
	if err != nil {
		return nil, err
	}
	var n int64
	if len(res.Rows) > 0 && len(res.Rows[0]) > 0 {
		if v, ok := res.Rows[0][0].(int64); ok {
			n = v
		}
	}
	return okDoc(func(b *bsondoc.Builder) error {
		return b.AppendInt64("n", n)
	})
}

// handleDistinct expects a one-column row set of distinct field values.
func handleDistinct(ctx *Context) ([]byte, error) {
	res, err := execTranslated(ctx)
	if err != nil {
		return nil, err
	}
	arr := bsondoc.NewBuilder().BeginArray()
	for _, row := range res.Rows {
		if len(row) == 0 {
			continue
		}
		if err := bsondoc.AppendNative(arr, "", row[0]); err != nil {
			return nil, errcode.New(errcode.InternalError, "encoding distinct value: %v", err)
		}
	}
	valuesRaw, err := arr.Finish()
	if err != nil {
		return nil, err
	}
	return okDoc(func(b *bsondoc.Builder) error {
		return b.AppendArray("values", valuesRaw)
	})
}
