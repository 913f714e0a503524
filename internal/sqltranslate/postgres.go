package sqltranslate

import (
	"fmt"
	"strings"

	"docgate/internal/bsondoc"
	"docgate/internal/command"
)

// Postgres is the PostgreSQL dialect of Translator, targeting the
// `(_id text primary key, document jsonb)` table shape.
type Postgres struct{}

// NewPostgres builds the Postgres dialect translator.
func NewPostgres() *Postgres { return &Postgres{} }

func (p *Postgres) Translate(cmd *command.Command) (Statement, error) {
	switch cmd.Name {
	case "find":
		return p.translateFind(cmd)
	case "count":
		return p.translateCount(cmd)
	case "distinct":
		return p.translateDistinct(cmd)
	case "insert":
		return p.translateInsert(cmd)
	case "update":
		return p.translateUpdate(cmd)
	case "delete":
		return p.translateDelete(cmd)
	case "create":
		return p.translateCreate(cmd)
	case "drop":
		return p.translateDrop(cmd)
	case "listCollections":
		return p.translateListCollections(cmd)
	case "listIndexes":
		return p.translateListIndexes(cmd)
	case "createIndexes":
		return p.translateCreateIndexes(cmd)
	case "dropIndexes":
		return p.translateDropIndexes(cmd)
	case "listDatabases":
		return p.translateListDatabases(cmd)
	case "dbStats":
		return p.translateDBStats(cmd)
	case "collStats":
		return p.translateCollStats(cmd)
	case "aggregate":
		return p.translateAggregate(cmd)
	default:
		return Statement{}, ErrUnsupported
	}
}

func (p *Postgres) translateFind(cmd *command.Command) (Statement, error) {
	table := quoteIdent(cmd.Collection)
	sql := fmt.Sprintf("SELECT _id, document FROM %s", table)
	var params []any

	filter, err := filterJSON(cmd.Arguments, "filter")
	if err != nil {
		return Statement{}, err
	}
	if filter != "" {
		params = append(params, filter)
		sql += fmt.Sprintf(" WHERE document @> $%d::jsonb", len(params))
	}

	if sortRaw, ok := bsondoc.GetDocument(cmd.Arguments, "sort"); ok {
		sortFields, err := bsondoc.Decode(sortRaw)
		if err == nil && len(sortFields) > 0 {
			f := sortFields[0]
			dir := "ASC"
			if n, ok := bsondoc.GetInt32([]bsondoc.Field{f}, f.Name); ok && n < 0 {
				dir = "DESC"
			}
			sql += fmt.Sprintf(" ORDER BY document->>%s %s", quoteLiteral(f.Name), dir)
		}
	}

	if limit, ok := bsondoc.GetInt64(cmd.Arguments, "limit"); ok && limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", limit)
	}
	if skip, ok := bsondoc.GetInt64(cmd.Arguments, "skip"); ok && skip > 0 {
		sql += fmt.Sprintf(" OFFSET %d", skip)
	}

	return Statement{SQL: sql, Params: params}, nil
}

func (p *Postgres) translateCount(cmd *command.Command) (Statement, error) {
	table := quoteIdent(cmd.Collection)
	sql := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
	var params []any
	filter, err := filterJSON(cmd.Arguments, "query")
	if err != nil {
		return Statement{}, err
	}
	if filter == "" {
		filter, err = filterJSON(cmd.Arguments, "filter")
		if err != nil {
			return Statement{}, err
		}
	}
	if filter != "" {
		params = append(params, filter)
		sql += fmt.Sprintf(" WHERE document @> $%d::jsonb", len(params))
	}
	return Statement{SQL: sql, Params: params}, nil
}

func (p *Postgres) translateDistinct(cmd *command.Command) (Statement, error) {
	field, ok := bsondoc.GetString(cmd.Arguments, "key")
	if !ok {
		return Statement{}, ErrUnsupported
	}
	table := quoteIdent(cmd.Collection)
	sql := fmt.Sprintf("SELECT DISTINCT document->>%s FROM %s", quoteLiteral(field), table)
	var params []any
	filter, err := filterJSON(cmd.Arguments, "query")
	if err != nil {
		return Statement{}, err
	}
	if filter != "" {
		params = append(params, filter)
		sql += fmt.Sprintf(" WHERE document @> $%d::jsonb", len(params))
	}
	return Statement{SQL: sql, Params: params}, nil
}

func (p *Postgres) translateInsert(cmd *command.Command) (Statement, error) {
	docsRaw, ok := bsondoc.GetDocument(cmd.Arguments, "documents")
	if !ok {
		return Statement{}, ErrUnsupported
	}
	docFields, err := bsondoc.Decode(docsRaw)
	if err != nil {
		return Statement{}, err
	}
	if len(docFields) == 0 {
		return Statement{}, ErrUnsupported
	}

	table := quoteIdent(cmd.Collection)
	var valueGroups []string
	var params []any
	for _, f := range docFields {
		if f.Type != bsondoc.TypeDocument {
			continue
		}
		id, js, err := documentJSON(f.Value)
		if err != nil {
			return Statement{}, err
		}
		params = append(params, id, js)
		valueGroups = append(valueGroups, fmt.Sprintf("($%d, $%d::jsonb)", len(params)-1, len(params)))
	}
	if len(valueGroups) == 0 {
		return Statement{}, ErrUnsupported
	}

	sql := fmt.Sprintf("INSERT INTO %s (_id, document) VALUES %s", table, strings.Join(valueGroups, ", "))
	return Statement{SQL: sql, Params: params}, nil
}

func (p *Postgres) translateUpdate(cmd *command.Command) (Statement, error) {
	updatesRaw, ok := bsondoc.GetDocument(cmd.Arguments, "updates")
	if !ok {
		return Statement{}, ErrUnsupported
	}
	updateFields, err := bsondoc.Decode(updatesRaw)
	if err != nil || len(updateFields) == 0 {
		return Statement{}, ErrUnsupported
	}
	first, err := bsondoc.Decode(updateFields[0].Value)
	if err != nil {
		return Statement{}, err
	}

	qRaw, ok := bsondoc.GetDocument(first, "q")
	if !ok {
		return Statement{}, ErrUnsupported
	}
	uRaw, ok := bsondoc.GetDocument(first, "u")
	if !ok {
		return Statement{}, ErrUnsupported
	}

	qNative, err := bsondoc.ToNative(bsondoc.Field{Type: bsondoc.TypeDocument, Value: qRaw})
	if err != nil {
		return Statement{}, err
	}
	uDoc, err := bsondoc.Decode(uRaw)
	if err != nil {
		return Statement{}, err
	}
	setNative, err := resolveSetDocument(uDoc)
	if err != nil {
		return Statement{}, err
	}

	qJSON, err := marshalJSON(qNative)
	if err != nil {
		return Statement{}, err
	}
	setJSON, err := marshalJSON(setNative)
	if err != nil {
		return Statement{}, err
	}

	table := quoteIdent(cmd.Collection)
	var params []any
	sql := fmt.Sprintf("UPDATE %s SET document = document || $1::jsonb", table)
	params = append(params, setJSON)
	if qStr := qJSON; qStr != "{}" {
		params = append(params, qStr)
		sql += fmt.Sprintf(" WHERE document @> $%d::jsonb", len(params))
	}
	return Statement{SQL: sql, Params: params}, nil
}

func (p *Postgres) translateDelete(cmd *command.Command) (Statement, error) {
	deletesRaw, ok := bsondoc.GetDocument(cmd.Arguments, "deletes")
	if !ok {
		return Statement{}, ErrUnsupported
	}
	deleteFields, err := bsondoc.Decode(deletesRaw)
	if err != nil || len(deleteFields) == 0 {
		return Statement{}, ErrUnsupported
	}
	first, err := bsondoc.Decode(deleteFields[0].Value)
	if err != nil {
		return Statement{}, err
	}
	qRaw, ok := bsondoc.GetDocument(first, "q")
	if !ok {
		return Statement{}, ErrUnsupported
	}
	qNative, err := bsondoc.ToNative(bsondoc.Field{Type: bsondoc.TypeDocument, Value: qRaw})
	if err != nil {
		return Statement{}, err
	}
	qJSON, err := marshalJSON(qNative)
	if err != nil {
		return Statement{}, err
	}

	table := quoteIdent(cmd.Collection)
	sql := fmt.Sprintf("DELETE FROM %s", table)
	var params []any
	if qJSON != "{}" {
		params = append(params, qJSON)
		sql += fmt.Sprintf(" WHERE document @> $%d::jsonb", len(params))
	}
	return Statement{SQL: sql, Params: params}, nil
}

func (p *Postgres) translateCreate(cmd *command.Command) (Statement, error) {
	table := quoteIdent(cmd.Collection)
	sql := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (_id text primary key, document jsonb)", table)
	return Statement{SQL: sql}, nil
}

func (p *Postgres) translateDrop(cmd *command.Command) (Statement, error) {
	table := quoteIdent(cmd.Collection)
	return Statement{SQL: fmt.Sprintf("DROP TABLE IF EXISTS %s", table)}, nil
}

func (p *Postgres) translateListCollections(cmd *command.Command) (Statement, error) {
	return Statement{SQL: "SELECT tablename FROM pg_catalog.pg_tables WHERE schemaname = 'public'"}, nil
}

func (p *Postgres) translateListIndexes(cmd *command.Command) (Statement, error) {
	return Statement{
		SQL:    "SELECT indexname, indexdef FROM pg_indexes WHERE schemaname = 'public' AND tablename = $1",
		Params: []any{cmd.Collection},
	}, nil
}

func (p *Postgres) translateCreateIndexes(cmd *command.Command) (Statement, error) {
	indexesRaw, ok := bsondoc.GetDocument(cmd.Arguments, "indexes")
	if !ok {
		return Statement{}, ErrUnsupported
	}
	indexFields, err := bsondoc.Decode(indexesRaw)
	if err != nil || len(indexFields) == 0 {
		return Statement{}, ErrUnsupported
	}
	spec, err := bsondoc.Decode(indexFields[0].Value)
	if err != nil {
		return Statement{}, err
	}
	keyRaw, ok := bsondoc.GetDocument(spec, "key")
	if !ok {
		return Statement{}, ErrUnsupported
	}
	keyFields, err := bsondoc.Decode(keyRaw)
	if err != nil || len(keyFields) == 0 {
		return Statement{}, ErrUnsupported
	}
	name, _ := bsondoc.GetString(spec, "name")
	if name == "" {
		name = cmd.Collection + "_" + keyFields[0].Name + "_idx"
	}
	unique, _ := bsondoc.GetBool(spec, "unique")

	uniqueKw := ""
	if unique {
		uniqueKw = "UNIQUE "
	}
	sql := fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s ((document->>%s))",
		uniqueKw, quoteIdent(name), quoteIdent(cmd.Collection), quoteLiteral(keyFields[0].Name))
	return Statement{SQL: sql}, nil
}

func (p *Postgres) translateDropIndexes(cmd *command.Command) (Statement, error) {
	indexName, ok := bsondoc.GetString(cmd.Arguments, "index")
	if !ok || indexName == "*" {
		return Statement{}, ErrUnsupported
	}
	return Statement{SQL: fmt.Sprintf("DROP INDEX IF EXISTS %s", quoteIdent(indexName))}, nil
}

func (p *Postgres) translateListDatabases(cmd *command.Command) (Statement, error) {
	return Statement{SQL: "SELECT datname FROM pg_database WHERE datistemplate = false"}, nil
}

func (p *Postgres) translateDBStats(cmd *command.Command) (Statement, error) {
	return Statement{SQL: "SELECT pg_database_size(current_database())"}, nil
}

func (p *Postgres) translateCollStats(cmd *command.Command) (Statement, error) {
	return Statement{
		SQL:    "SELECT pg_total_relation_size($1)",
		Params: []any{cmd.Collection},
	}, nil
}

// translateAggregate supports the subset of pipeline stages spec §4.6
// names: $match, $sort, $limit, $skip. $group requires a real relational
// GROUP BY rewrite this jsonb-store schema cannot express generically, so
// a pipeline containing it is UNSUPPORTED here.
func (p *Postgres) translateAggregate(cmd *command.Command) (Statement, error) {
	pipelineRaw, ok := bsondoc.GetDocument(cmd.Arguments, "pipeline")
	if !ok {
		return Statement{}, ErrUnsupported
	}
	stages, err := bsondoc.Decode(pipelineRaw)
	if err != nil {
		return Statement{}, err
	}

	table := quoteIdent(cmd.Collection)
	sql := fmt.Sprintf("SELECT _id, document FROM %s", table)
	var params []any
	var order, limit, offset string

	for _, stageField := range stages {
		stage, err := bsondoc.Decode(stageField.Value)
		if err != nil {
			return Statement{}, err
		}
		for _, s := range stage {
			switch s.Name {
			case "$match":
				native, err := bsondoc.ToNative(s)
				if err != nil {
					return Statement{}, err
				}
				js, err := marshalJSON(native)
				if err != nil {
					return Statement{}, err
				}
				if js != "{}" {
					params = append(params, js)
					if strings.Contains(sql, "WHERE") {
						sql += fmt.Sprintf(" AND document @> $%d::jsonb", len(params))
					} else {
						sql += fmt.Sprintf(" WHERE document @> $%d::jsonb", len(params))
					}
				}
			case "$sort":
				sortDoc, err := bsondoc.Decode(s.Value)
				if err != nil || len(sortDoc) == 0 {
					continue
				}
				dir := "ASC"
				if n, ok := bsondoc.GetInt32([]bsondoc.Field{sortDoc[0]}, sortDoc[0].Name); ok && n < 0 {
					dir = "DESC"
				}
				order = fmt.Sprintf(" ORDER BY document->>%s %s", quoteLiteral(sortDoc[0].Name), dir)
			case "$limit":
				if n, ok := bsondoc.GetInt64([]bsondoc.Field{s}, s.Name); ok {
					limit = fmt.Sprintf(" LIMIT %d", n)
				}
			case "$skip":
				if n, ok := bsondoc.GetInt64([]bsondoc.Field{s}, s.Name); ok {
					offset = fmt.Sprintf(" OFFSET %d", n)
				}
			case "$group":
				return Statement{}, ErrUnsupported
			}
		}
	}

	sql += order + limit + offset
	return Statement{SQL: sql, Params: params}, nil
}

// resolveSetDocument interprets a Mongo-style update document: if it
// contains a "$set" sub-document, that becomes the jsonb merge payload;
// otherwise the whole update document is treated as a full replacement
// merged shallowly, matching the `document || patch` semantics above.
func resolveSetDocument(uDoc []bsondoc.Field) (map[string]any, error) {
	if setRaw, ok := bsondoc.GetDocument(uDoc, "$set"); ok {
		native, err := bsondoc.ToNative(bsondoc.Field{Type: bsondoc.TypeDocument, Value: setRaw})
		if err != nil {
			return nil, err
		}
		m, _ := native.(map[string]any)
		return m, nil
	}
	m := map[string]any{}
	for _, f := range uDoc {
		v, err := bsondoc.ToNative(f)
		if err != nil {
			return nil, err
		}
		m[f.Name] = v
	}
	return m, nil
}
