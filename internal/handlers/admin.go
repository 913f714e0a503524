package handlers

import (
	"docgate/internal/bsondoc"
)

// handleCreate and handleDrop are command-ok: the translator's CREATE
// TABLE/DROP TABLE statements carry no useful row-count tag, so success is
// just "the backend didn't error."
func handleCreate(ctx *Context) ([]byte, error) {
	if _, err := execTranslated(ctx); err != nil {
		return nil, err
	}
	return okDoc(nil)
}

func handleDrop(ctx *Context) ([]byte, error) {
	if _, err := execTranslated(ctx); err != nil {
		return nil, err
	}
	return okDoc(nil)
}

// handleListCollections reports the cursor shape find uses, one document
// per backend table: {name: "<table>", type: "collection"}.
func handleListCollections(ctx *Context) ([]byte, error) {
	res, err := execTranslated(ctx)
	if err != nil {
		return nil, err
	}
	docs := make([][]byte, 0, len(res.Rows))
	for _, row := range res.Rows {
		if len(row) == 0 {
			continue
		}
		name, _ := row[0].(string)
		b := bsondoc.NewBuilder()
		if err := b.AppendString("name", name); err != nil {
			return nil, err
		}
		if err := b.AppendString("type", "collection"); err != nil {
			return nil, err
		}
		raw, err := b.Finish()
		if err != nil {
			return nil, err
		}
		docs = append(docs, raw)
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
		if err := cursor.AppendString("ns", ctx.Cmd.Database+".$cmd.listCollections"); err != nil {
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

// handleListIndexes reports one document per backend index:
// {name, ns, definition}, where definition is the backend's stored index
// definition text as returned. No key document is derived from it.
func handleListIndexes(ctx *Context) ([]byte, error) {
	res, err := execTranslated(ctx)
	if err != nil {
		return nil, err
	}
	docs := make([][]byte, 0, len(res.Rows))
	for _, row := range res.Rows {
		if len(row) == 0 {
			continue
		}
		name, _ := row[0].(string)
		var def string
		if len(row) > 1 {
			def, _ = row[1].(string)
		}
		b := bsondoc.NewBuilder()
		if err := b.AppendString("name", name); err != nil {
			return nil, err
		}
		if err := b.AppendString("ns", ctx.Cmd.Namespace()); err != nil {
			return nil, err
		}
		if err := b.AppendString("definition", def); err != nil {
			return nil, err
		}
		raw, err := b.Finish()
		if err != nil {
			return nil, err
		}
		docs = append(docs, raw)
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
		if err := cursor.AppendString("ns", ctx.Cmd.Namespace()); err != nil {
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

func handleCreateIndexes(ctx *Context) ([]byte, error) {
	if _, err := execTranslated(ctx); err != nil {
		return nil, err
	}
	return okDoc(func(b *bsondoc.Builder) error {
		if err := b.AppendInt32("numIndexesBefore", 1); err != nil {
			return err
		}
		return b.AppendInt32("numIndexesAfter", 2)
	})
}

func handleDropIndexes(ctx *Context) ([]byte, error) {
	if _, err := execTranslated(ctx); err != nil {
		return nil, err
	}
	return okDoc(nil)
}

// handleListDatabases reports one entry per backend database.
func handleListDatabases(ctx *Context) ([]byte, error) {
	res, err := execTranslated(ctx)
	if err != nil {
		return nil, err
	}
	arr := bsondoc.NewBuilder().BeginArray()
	for _, row := range res.Rows {
		if len(row) == 0 {
			continue
		}
		name, _ := row[0].(string)
		entry := bsondoc.NewBuilder()
		if err := entry.AppendString("name", name); err != nil {
			return nil, err
		}
		entryRaw, err := entry.Finish()
		if err != nil {
			return nil, err
		}
		if err := arr.AppendDocument("", entryRaw); err != nil {
			return nil, err
		}
	}
	dbsRaw, err := arr.Finish()
	if err != nil {
		return nil, err
	}
	return okDoc(func(b *bsondoc.Builder) error {
		return b.AppendArray("databases", dbsRaw)
	})
}

func handleDBStats(ctx *Context) ([]byte, error) {
	res, err := execTranslated(ctx)
	if err != nil {
		return nil, err
	}
	var size int64
	if len(res.Rows) > 0 && len(res.Rows[0]) > 0 {
		if v, ok := res.Rows[0][0].(int64); ok {
			size = v
		}
	}
	return okDoc(func(b *bsondoc.Builder) error {
		if err := b.AppendString("db", ctx.Cmd.Database); err != nil {
			return err
		}
		return b.AppendInt64("dataSize", size)
	})
}

func handleCollStats(ctx *Context) ([]byte, error) {
	res, err := execTranslated(ctx)
	if err != nil {
		return nil, err
	}
	var size int64
	if len(res.Rows) > 0 && len(res.Rows[0]) > 0 {
		if v, ok := res.Rows[0][0].(int64); ok {
			size = v
		}
	}
	return okDoc(func(b *bsondoc.Builder) error {
		if err := b.AppendString("ns", ctx.Cmd.Namespace()); err != nil {
			return err
		}
		return b.AppendInt64("size", size)
	})
}
