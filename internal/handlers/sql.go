package handlers

import (
	"encoding/json"
	"fmt"
	"strings"

	"docgate/internal/backend"
	"docgate/internal/bsondoc"
	"docgate/internal/errcode"
	"docgate/internal/sqltranslate"
)

// bindStatement inlines a translated statement's parameters as quoted SQL
// literals, since the backend connections here speak PostgreSQL's simple
// query protocol (text only, no Bind/Execute phase). The translator never
// concatenates user data into SQL text itself (spec §4.6); this is the one
// place raw values meet the wire, and every value still goes through
// quoting, never straight substitution. Placeholders are replaced from the
// highest index down so "$10" is never clobbered by a "$1" replacement.
func bindStatement(stmt sqltranslate.Statement) string {
	sql := stmt.SQL
	for i := len(stmt.Params); i >= 1; i-- {
		sql = strings.ReplaceAll(sql, fmt.Sprintf("$%d", i), sqlLiteral(stmt.Params[i-1]))
	}
	return sql
}

func sqlLiteral(v any) string {
	switch t := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(t, "'", "''") + "'"
	case int:
		return fmt.Sprintf("%d", t)
	case int32:
		return fmt.Sprintf("%d", t)
	case int64:
		return fmt.Sprintf("%d", t)
	case float64:
		return fmt.Sprintf("%v", t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	case nil:
		return "NULL"
	default:
		return "'" + strings.ReplaceAll(fmt.Sprintf("%v", t), "'", "''") + "'"
	}
}

// execTranslated runs cmd through ctx.Translator and the backend pool,
// returning the decoded result set. ErrUnsupported from the translator
// becomes errcode.Unsupported; a query-time backend error becomes
// errcode.BackendFailed.
func execTranslated(ctx *Context) (*backend.Result, error) {
	stmt, err := ctx.Translator.Translate(ctx.Cmd)
	if err == sqltranslate.ErrUnsupported {
		return nil, errcode.New(errcode.Unsupported, "command shape not supported: %s", ctx.Cmd.Name)
	}
	if err != nil {
		return nil, errcode.New(errcode.FailedToParse, "translating command: %v", err)
	}

	sql := bindStatement(stmt)
	var res *backend.Result
	_, execErr := withConn(ctx, func(pc *backend.PooledConn) ([]byte, error) {
		var err error
		res, err = pc.Execute(sql)
		if err != nil {
			return nil, errcode.New(errcode.BackendFailed, "backend query failed: %v", err)
		}
		return nil, nil
	})
	if execErr != nil {
		return nil, execErr
	}
	return res, nil
}

// documentsFromRows turns a (_id, document) result set — the shape every
// translateFind/translateAggregate statement produces — into raw BSON-like
// document bytes, one per row, ready for a cursor's firstBatch array.
func documentsFromRows(res *backend.Result) ([][]byte, error) {
	idCol, docCol := -1, -1
	for i, c := range res.Columns {
		switch c.Name {
		case "_id":
			idCol = i
		case "document":
			docCol = i
		}
	}

	docs := make([][]byte, 0, len(res.Rows))
	for _, row := range res.Rows {
		b := bsondoc.NewBuilder()
		m := map[string]any{}
		if docCol >= 0 {
			if js, ok := row[docCol].(string); ok && js != "" {
				if err := json.Unmarshal([]byte(js), &m); err != nil {
					return nil, errcode.New(errcode.InternalError, "decoding stored document: %v", err)
				}
			}
		}
		if idCol >= 0 {
			if _, hasID := m["_id"]; !hasID {
				if id, ok := row[idCol].(string); ok {
					m["_id"] = id
				}
			}
		}
		for k, v := range m {
			if err := bsondoc.AppendNative(b, k, jsonNative(v)); err != nil {
				return nil, err
			}
		}
		raw, err := b.Finish()
		if err != nil {
			return nil, err
		}
		docs = append(docs, raw)
	}
	return docs, nil
}

// jsonNative narrows the any produced by encoding/json.Unmarshal (float64
// for every JSON number) down to int64 when the value has no fractional
// part, so round-tripped integers don't come back as doubles.
func jsonNative(v any) any {
	switch t := v.(type) {
	case float64:
		if t == float64(int64(t)) {
			return int64(t)
		}
		return t
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = jsonNative(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = jsonNative(e)
		}
		return out
	default:
		return v
	}
}

func buildDocArray(docs [][]byte) ([]byte, error) {
	arr := bsondoc.NewBuilder().BeginArray()
	for _, d := range docs {
		if err := arr.AppendDocument("", d); err != nil {
			return nil, err
		}
	}
	return arr.Finish()
}
