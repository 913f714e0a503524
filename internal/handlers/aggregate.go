package handlers

// handleAggregate shares find's cursor-shaped reply: the translator already
// turned the supported pipeline stages into one SELECT (spec §4.6).
func handleAggregate(ctx *Context) ([]byte, error) {
	res, err := execTranslated(ctx)
	if err != nil {
		return nil, err
	}
	return buildCursorReply(ctx, ctx.Cmd.Namespace(), res)
}
