package sqltranslate

import (
	"strings"
	"testing"

	"docgate/internal/bsondoc"
	"docgate/internal/command"
)

func decodeCommand(t *testing.T, build func(b *bsondoc.Builder)) *command.Command {
	t.Helper()
	b := bsondoc.NewBuilder()
	build(b)
	raw := b.MustFinish()
	fields, err := bsondoc.Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	cmd, err := command.Decode(fields, 1)
	if err != nil {
		t.Fatal(err)
	}
	return cmd
}

func TestTranslateFindEmptyFilter(t *testing.T) {
	cmd := decodeCommand(t, func(b *bsondoc.Builder) {
		b.AppendString("find", "users")
		b.AppendDocument("filter", bsondoc.NewBuilder().MustFinish())
		b.AppendString("$db", "app")
	})
	stmt, err := NewPostgres().Translate(cmd)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stmt.SQL, `SELECT _id, document FROM "users"`) {
		t.Fatalf("unexpected SQL: %q", stmt.SQL)
	}
	if strings.Contains(stmt.SQL, "WHERE") {
		t.Fatalf("empty filter should not produce a WHERE clause: %q", stmt.SQL)
	}
}

func TestTranslateFindWithFilter(t *testing.T) {
	filter := bsondoc.NewBuilder()
	filter.AppendString("name", "a")
	filterRaw := filter.MustFinish()

	cmd := decodeCommand(t, func(b *bsondoc.Builder) {
		b.AppendString("find", "users")
		b.AppendDocument("filter", filterRaw)
		b.AppendString("$db", "app")
	})
	stmt, err := NewPostgres().Translate(cmd)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stmt.SQL, "WHERE document @> $1::jsonb") {
		t.Fatalf("expected jsonb containment WHERE clause: %q", stmt.SQL)
	}
	if len(stmt.Params) != 1 || !strings.Contains(stmt.Params[0].(string), `"name":"a"`) {
		t.Fatalf("expected bound filter JSON param, got %+v", stmt.Params)
	}
}

func TestTranslateCreateAndDrop(t *testing.T) {
	cmd := decodeCommand(t, func(b *bsondoc.Builder) {
		b.AppendString("create", "widgets")
		b.AppendString("$db", "app")
	})
	stmt, err := NewPostgres().Translate(cmd)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stmt.SQL, `CREATE TABLE IF NOT EXISTS "widgets"`) {
		t.Fatalf("unexpected SQL: %q", stmt.SQL)
	}

	dropCmd := decodeCommand(t, func(b *bsondoc.Builder) {
		b.AppendString("drop", "widgets")
		b.AppendString("$db", "app")
	})
	dropStmt, err := NewPostgres().Translate(dropCmd)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(dropStmt.SQL, `DROP TABLE IF EXISTS "widgets"`) {
		t.Fatalf("unexpected SQL: %q", dropStmt.SQL)
	}
}

func TestTranslateInsertGeneratesID(t *testing.T) {
	inner := bsondoc.NewBuilder()
	inner.AppendString("name", "a")
	docs := bsondoc.NewBuilder().BeginArray()
	docs.AppendDocument("", inner.MustFinish())
	docsRaw := docs.MustFinish()

	cmd := decodeCommand(t, func(b *bsondoc.Builder) {
		b.AppendString("insert", "users")
		b.AppendArray("documents", docsRaw)
		b.AppendString("$db", "app")
	})
	stmt, err := NewPostgres().Translate(cmd)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stmt.SQL, "INSERT INTO \"users\" (_id, document) VALUES") {
		t.Fatalf("unexpected SQL: %q", stmt.SQL)
	}
	if len(stmt.Params) != 2 {
		t.Fatalf("expected 2 params (id, document json), got %d", len(stmt.Params))
	}
	if id, ok := stmt.Params[0].(string); !ok || len(id) != 24 {
		t.Fatalf("expected a generated 24-hex-digit _id, got %+v", stmt.Params[0])
	}
}

func TestTranslateUnknownCommandIsUnsupported(t *testing.T) {
	cmd := decodeCommand(t, func(b *bsondoc.Builder) {
		b.AppendInt32("frobnicate", 1)
		b.AppendString("$db", "admin")
	})
	if _, err := NewPostgres().Translate(cmd); err != ErrUnsupported {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestTranslateAggregateRejectsGroup(t *testing.T) {
	group := bsondoc.NewBuilder()
	group.AppendInt32("_id", 1)
	groupRaw := group.MustFinish()

	stage := bsondoc.NewBuilder()
	stage.AppendDocument("$group", groupRaw)
	stageRaw := stage.MustFinish()

	pipeline := bsondoc.NewBuilder().BeginArray()
	pipeline.AppendDocument("0", stageRaw)
	pipelineRaw := pipeline.MustFinish()

	cmd := decodeCommand(t, func(b *bsondoc.Builder) {
		b.AppendString("aggregate", "users")
		b.AppendArray("pipeline", pipelineRaw)
		b.AppendString("$db", "app")
	})
	if _, err := NewPostgres().Translate(cmd); err != ErrUnsupported {
		t.Fatalf("expected ErrUnsupported for $group pipeline, got %v", err)
	}
}
