package sqltranslate

import (
	"encoding/json"
	"strings"

	"docgate/internal/bsondoc"
)

// filterJSON converts a command's filter sub-document (raw BSON-like
// bytes) into a JSON object suitable for a jsonb containment parameter.
// An absent or empty filter yields "", signalling "no WHERE clause".
func filterJSON(fields []bsondoc.Field, name string) (string, error) {
	raw, ok := bsondoc.GetDocument(fields, name)
	if !ok {
		return "", nil
	}
	native, err := bsondoc.ToNative(bsondoc.Field{Name: name, Type: bsondoc.TypeDocument, Value: raw})
	if err != nil {
		return "", err
	}
	m, ok := native.(map[string]any)
	if !ok || len(m) == 0 {
		return "", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// documentJSON converts one stored/updated document's raw bytes into a
// JSON object for a jsonb parameter, ensuring "_id" is present.
func documentJSON(raw []byte) (id string, js string, err error) {
	native, err := bsondoc.ToNative(bsondoc.Field{Name: "", Type: bsondoc.TypeDocument, Value: raw})
	if err != nil {
		return "", "", err
	}
	m, _ := native.(map[string]any)
	if m == nil {
		m = map[string]any{}
	}
	if existing, ok := m["_id"]; ok {
		id = toIDString(existing)
	} else {
		id = bsondoc.NewObjectID().Hex()
		m["_id"] = id
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", "", err
	}
	return id, string(b), nil
}

func toIDString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	default:
		b, _ := json.Marshal(t)
		return strings.Trim(string(b), `"`)
	}
}

// quoteIdent applies the dialect's escape rule for a double-quoted SQL
// identifier: doubling any embedded quote character.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteLiteral escapes a string for inclusion as a single-quoted SQL text
// literal (doubling embedded quotes), used for jsonb key names pulled from
// document->>'key' expressions where a bind parameter cannot appear.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// marshalJSON renders a native Go value (as produced by bsondoc.ToNative)
// to JSON text for a jsonb parameter.
func marshalJSON(v any) (string, error) {
	if v == nil {
		return "{}", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
