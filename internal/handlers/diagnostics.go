package handlers

import (
	"docgate/internal/backend"
	"docgate/internal/bsondoc"
	"docgate/internal/command"
	"docgate/internal/errcode"
)

// gatewayVersion is reported in buildInfo/serverStatus; bumped by hand on
// release, not derived from anything build-time here.
const gatewayVersion = "1.0.0"

// handleServerStatus reports live backend pool occupancy (spec §7/§4.11's
// health surface folded into the wire protocol's own diagnostic command) —
// exact field names beyond ok and the connections sub-document are
// implementation-defined per spec §4.7's note on rarer admin commands.
func handleServerStatus(ctx *Context) ([]byte, error) {
	stats := ctx.Pool.Stats()
	return okDoc(func(b *bsondoc.Builder) error {
		conns := b.BeginSubdocument()
		if err := conns.AppendInt32("current", int32(stats.Active+stats.Idle)); err != nil {
			return err
		}
		if err := conns.AppendInt32("available", int32(stats.Max-stats.Active-stats.Idle)); err != nil {
			return err
		}
		if err := conns.AppendInt32("active", int32(stats.Active)); err != nil {
			return err
		}
		connsRaw, err := conns.Finish()
		if err != nil {
			return err
		}
		if err := b.AppendDocument("connections", connsRaw); err != nil {
			return err
		}
		return b.AppendString("version", gatewayVersion)
	})
}

// handleBuildInfo reports a fixed version string and wire-version range,
// matching the shape hello already advertises.
func handleBuildInfo(ctx *Context) ([]byte, error) {
	return okDoc(func(b *bsondoc.Builder) error {
		if err := b.AppendString("version", gatewayVersion); err != nil {
			return err
		}
		versionArr := b.BeginArray()
		if err := versionArr.AppendInt32("", 1); err != nil {
			return err
		}
		if err := versionArr.AppendInt32("", 0); err != nil {
			return err
		}
		if err := versionArr.AppendInt32("", 0); err != nil {
			return err
		}
		versionArrRaw, err := versionArr.Finish()
		if err != nil {
			return err
		}
		if err := b.AppendArray("versionArray", versionArrRaw); err != nil {
			return err
		}
		return b.AppendInt32("maxWireVersion", 17)
	})
}

// handleExplain unwraps the command embedded under "explain", translates
// it with the same dialect translator as every other read, and runs the
// backend's own EXPLAIN over the resulting SQL text rather than trying to
// model a query planner of its own (spec's explicit Non-goal: "no query
// planner").
func handleExplain(ctx *Context) ([]byte, error) {
	innerRaw, ok := bsondoc.GetDocument(ctx.Cmd.Arguments, "explain")
	if !ok {
		return nil, errcode.New(errcode.FailedToParse, "explain requires an embedded command document")
	}
	innerFields, err := bsondoc.Decode(innerRaw)
	if err != nil {
		return nil, errcode.New(errcode.FailedToParse, "decoding explained command: %v", err)
	}
	innerCmd, err := command.Decode(innerFields, ctx.Cmd.RequestID)
	if err != nil {
		return nil, err
	}
	if innerCmd.Database == "admin" {
		innerCmd.Database = ctx.Cmd.Database
	}

	stmt, err := ctx.Translator.Translate(innerCmd)
	if err != nil {
		return nil, errcode.New(errcode.Unsupported, "cannot explain %q: %v", innerCmd.Name, err)
	}

	innerCtx := &Context{Cmd: innerCmd, Pool: ctx.Pool, Translator: ctx.Translator}
	sql := "EXPLAIN (FORMAT TEXT) " + bindStatement(stmt)

	var lines []string
	if _, err := withConn(innerCtx, func(pc *backend.PooledConn) ([]byte, error) {
		res, err := pc.Execute(sql)
		if err != nil {
			return nil, errcode.New(errcode.BackendFailed, "explain query failed: %v", err)
		}
		for _, row := range res.Rows {
			if len(row) == 0 {
				continue
			}
			if s, ok := row[0].(string); ok {
				lines = append(lines, s)
			}
		}
		return nil, nil
	}); err != nil {
		return nil, err
	}

	return okDoc(func(b *bsondoc.Builder) error {
		arr := b.BeginArray()
		for _, l := range lines {
			if err := arr.AppendString("", l); err != nil {
				return err
			}
		}
		arrRaw, err := arr.Finish()
		if err != nil {
			return err
		}
		return b.AppendArray("executionPlan", arrRaw)
	})
}
