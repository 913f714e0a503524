// Package command decodes a raw document into a Command record: the
// command name, target database, optional target collection, and the
// remaining fields left as raw sub-slices for handlers to parse.
package command

import (
	"encoding/binary"

	"docgate/internal/bsondoc"
	"docgate/internal/errcode"
)

// collectionCommands is the set of commands whose first field's string
// value names the target collection (spec §3 Data model: Command).
var collectionCommands = map[string]bool{
	"find":          true,
	"count":         true,
	"distinct":      true,
	"aggregate":     true,
	"create":        true,
	"drop":          true,
	"listIndexes":   true,
	"createIndexes": true,
	"dropIndexes":   true,
	"insert":        true,
	"update":        true,
	"delete":        true,
	"findAndModify": true,
	"collStats":     true,
}

// Command is the decoded shape of a client request document.
type Command struct {
	Name       string
	Database   string
	Collection string
	HasCollection bool
	Arguments  []bsondoc.Field
	RequestID  int32
}

// Decode extracts a Command from a document's already-decoded field list.
// The command name is the first field whose name is not "$db"; if no such
// field exists, decoding fails with errcode.FailedToParse.
func Decode(fields []bsondoc.Field, requestID int32) (*Command, error) {
	var nameField *bsondoc.Field
	for i := range fields {
		if fields[i].Name != "$db" {
			nameField = &fields[i]
			break
		}
	}
	if nameField == nil {
		return nil, errcode.New(errcode.FailedToParse, "no command field present")
	}

	cmd := &Command{
		Name:      nameField.Name,
		Database:  "admin",
		Arguments: fields,
		RequestID: requestID,
	}

	if collectionCommands[cmd.Name] && nameField.Type == bsondoc.TypeString {
		strLen := int(binary.LittleEndian.Uint32(nameField.Value[0:4]))
		cmd.Collection = string(nameField.Value[4 : 4+strLen-1])
		cmd.HasCollection = true
	}

	if db, ok := bsondoc.GetString(fields, "$db"); ok {
		cmd.Database = db
	}

	return cmd, nil
}

// Namespace returns "<database>.<collection>" for collection-bearing
// commands, the shape used in find-style cursor replies.
func (c *Command) Namespace() string {
	return c.Database + "." + c.Collection
}

// IsHandshake reports whether this command name is one of the handshake
// aliases the dispatcher treats as equivalent; the decoder itself is
// handshake-agnostic, per spec — the dispatcher owns the alias collapse.
func IsHandshake(name string) bool {
	return name == "hello" || name == "isMaster" || name == "ismaster"
}
