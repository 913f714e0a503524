package handlers

import (
	"encoding/json"
	"fmt"
	"strings"

	"docgate/internal/backend"
	"docgate/internal/bsondoc"
	"docgate/internal/errcode"
)

// handleFindAndModify is not a single SQL statement the way the other write
// commands are (spec §4.6's translator table has no entry for it): it's a
// find-then-mutate composite, so it talks to the backend directly across
// one borrowed connection rather than going through sqltranslate.Translator.
func handleFindAndModify(ctx *Context) ([]byte, error) {
	table := fandmQuoteIdent(ctx.Cmd.Collection)

	filterJSON := "{}"
	if qRaw, ok := bsondoc.GetDocument(ctx.Cmd.Arguments, "query"); ok {
		native, err := bsondoc.ToNative(bsondoc.Field{Type: bsondoc.TypeDocument, Value: qRaw})
		if err != nil {
			return nil, errcode.New(errcode.FailedToParse, "decoding query: %v", err)
		}
		js, err := json.Marshal(native)
		if err != nil {
			return nil, err
		}
		filterJSON = string(js)
	}

	remove, _ := bsondoc.GetBool(ctx.Cmd.Arguments, "remove")
	newOpt, _ := bsondoc.GetBool(ctx.Cmd.Arguments, "new")
	updateRaw, hasUpdate := bsondoc.GetDocument(ctx.Cmd.Arguments, "update")

	var oldDoc map[string]any
	var oldID string
	var found bool

	result, err := withConn(ctx, func(pc *backend.PooledConn) ([]byte, error) {
		selectSQL := fmt.Sprintf("SELECT _id, document FROM %s WHERE document @> %s::jsonb LIMIT 1",
			table, fandmQuoteLiteral(filterJSON))
		res, err := pc.Execute(selectSQL)
		if err != nil {
			return nil, errcode.New(errcode.BackendFailed, "findAndModify select: %v", err)
		}
		if len(res.Rows) == 0 {
			return nil, nil
		}
		found = true
		oldID, _ = res.Rows[0][0].(string)
		oldDoc = map[string]any{}
		if js, ok := res.Rows[0][1].(string); ok && js != "" {
			if err := json.Unmarshal([]byte(js), &oldDoc); err != nil {
				return nil, errcode.New(errcode.InternalError, "decoding stored document: %v", err)
			}
		}
		oldDoc["_id"] = oldID

		switch {
		case remove:
			delSQL := fmt.Sprintf("DELETE FROM %s WHERE _id = %s", table, fandmQuoteLiteral(oldID))
			if _, err := pc.Execute(delSQL); err != nil {
				return nil, errcode.New(errcode.BackendFailed, "findAndModify delete: %v", err)
			}
		case hasUpdate:
			updateFields, err := bsondoc.Decode(updateRaw)
			if err != nil {
				return nil, errcode.New(errcode.FailedToParse, "decoding update: %v", err)
			}
			patch, err := fandmResolveSet(updateFields)
			if err != nil {
				return nil, err
			}
			patchJSON, err := json.Marshal(patch)
			if err != nil {
				return nil, err
			}
			updSQL := fmt.Sprintf("UPDATE %s SET document = document || %s::jsonb WHERE _id = %s",
				table, fandmQuoteLiteral(string(patchJSON)), fandmQuoteLiteral(oldID))
			if _, err := pc.Execute(updSQL); err != nil {
				return nil, errcode.New(errcode.BackendFailed, "findAndModify update: %v", err)
			}
			if newOpt {
				for k, v := range patch {
					oldDoc[k] = v
				}
			}
		}
		return nil, nil
	})
	if err != nil {
		return result, err
	}

	return okDoc(func(b *bsondoc.Builder) error {
		lastErr := b.BeginSubdocument()
		n := 0
		if found {
			n = 1
		}
		if err := lastErr.AppendInt32("n", int32(n)); err != nil {
			return err
		}
		if err := lastErr.AppendBool("updatedExisting", found && !remove); err != nil {
			return err
		}
		lastErrRaw, err := lastErr.Finish()
		if err != nil {
			return err
		}
		if err := b.AppendDocument("lastErrorObject", lastErrRaw); err != nil {
			return err
		}

		if !found {
			return b.AppendNull("value")
		}
		reported := oldDoc
		_ = newOpt // "new" only affects which snapshot is reported; absent real MVCC here, pre-image is always available, post-image only when an update happened
		for k, v := range reported {
			reported[k] = jsonNative(v)
		}
		sub := b.BeginSubdocument()
		for k, v := range reported {
			if err := bsondoc.AppendNative(sub, k, v); err != nil {
				return err
			}
		}
		subRaw, err := sub.Finish()
		if err != nil {
			return err
		}
		return b.AppendDocument("value", subRaw)
	})
}

// fandmResolveSet mirrors sqltranslate's update-document interpretation:
// prefer "$set", else treat the whole update document as a merge patch.
func fandmResolveSet(uDoc []bsondoc.Field) (map[string]any, error) {
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

func fandmQuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func fandmQuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
