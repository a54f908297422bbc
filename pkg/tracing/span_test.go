package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "search", "req-1")
	_, parse := StartChildSpan(ctx, "parse")
	parse.SetAttr("query", "africa")
	parse.End()
	_, eval := StartChildSpan(ctx, "evaluate")
	eval.End()
	root.End()

	assert.Same(t, root, SpanFromContext(ctx))
	children := root.Children()
	require.Len(t, children, 2)
	assert.Equal(t, "req-1", children[0].TraceID)
	v, ok := children[0].Attr("query")
	assert.True(t, ok)
	assert.Equal(t, "africa", v)

	d := root.Duration()
	root.End()
	assert.Equal(t, d, root.Duration())
}

func TestDetachedChild(t *testing.T) {
	_, span := StartChildSpan(context.Background(), "orphan")
	assert.Empty(t, span.TraceID)
	assert.Nil(t, SpanFromContext(context.Background()))
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx, root := StartSpan(context.Background(), "search", "req-2")
	_, child := StartChildSpan(ctx, "parse")
	child.End()
	root.End()
	root.Log(logger)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "span=search")
	assert.Contains(t, lines[1], "span=parse")
	assert.Contains(t, lines[1], "depth=1")
}
