// Package sqltranslate maps decoded commands onto parameterized SQL
// statements. The contract is dialect-agnostic (translate(command) →
// statement | UNSUPPORTED); this package ships one dialect, for
// PostgreSQL, following the table in spec §4.6. Every collection is
// backed by a `(_id text primary key, document jsonb)` table — the
// gateway is a document store riding on top of a relational backend, not
// a column-mapper, so the translator never needs schema introspection to
// answer a find.
package sqltranslate

import (
	"errors"

	"docgate/internal/command"
)

// ErrUnsupported is returned when a command is recognized but this
// translator has no SQL shape for the arguments given (spec's UNSUPPORTED
// taxonomy entry).
var ErrUnsupported = errors.New("sqltranslate: command shape not supported by this dialect")

// Statement is a parameterized SQL text ready to bind against a backend
// connection. User-supplied names (collection, index, field) enter SQL
// text only through quoteIdent/quoteLiteral, and limit/skip only as
// formatted integers; filter and document values travel as Params.
type Statement struct {
	SQL    string
	Params []any
}

// Translator is the pluggable per-dialect strategy named in spec §4.6.
type Translator interface {
	Translate(cmd *command.Command) (Statement, error)
}
