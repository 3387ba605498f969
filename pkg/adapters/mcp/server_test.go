package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/thicket"
	"github.com/aretw0/thicket/pkg/adapters/memory"
	"github.com/aretw0/thicket/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := memory.NewStore(
		&domain.Wildcard{Name: "color", Choices: []domain.Choice{{Value: "red"}, {Value: "blue"}}},
		&domain.Wildcard{Name: "outfit", Choices: []domain.Choice{
			{Value: "coat", Includes: []string{"color"}},
			{Value: "scarf", Requires: map[string]string{"color": "blue"}},
		}},
	)
	library := memory.NewFromTexts(map[string]string{"nsfw/night": "__color__ night"})
	engine, err := thicket.New("", thicket.WithStore(store), thicket.WithTemplates(library))
	require.NoError(t, err)
	return NewServer(engine, nil)
}

func call(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	return text.Text
}

func TestResolveTemplate(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	seed := int64(9)

	t.Run("Text", func(t *testing.T) {
		res, err := s.handleResolve(ctx, call("resolve_template", nil), ResolveArgs{
			Text: "__outfit__", Seed: &seed, Swap: map[string]string{"outfit": "scarf", "color": "blue"},
		})
		require.NoError(t, err)
		assert.Equal(t, "scarf", res.Text)
		assert.Equal(t, seed, res.Seed)
		assert.Empty(t, res.Problems)
	})

	t.Run("Stored Template Keeps Its Workflow", func(t *testing.T) {
		res, err := s.handleResolve(ctx, call("resolve_template", nil), ResolveArgs{Template: "nsfw/night", Seed: &seed})
		require.NoError(t, err)
		assert.Equal(t, domain.WorkflowNSFW, res.Workflow)
	})

	t.Run("Missing Input", func(t *testing.T) {
		_, err := s.handleResolve(ctx, call("resolve_template", nil), ResolveArgs{})
		assert.ErrorContains(t, err, "text or template")
	})

	t.Run("Bad Workflow", func(t *testing.T) {
		_, err := s.handleResolve(ctx, call("resolve_template", nil), ResolveArgs{Text: "x", Workflow: "party"})
		assert.ErrorIs(t, err, domain.ErrInvalidWorkflow)
	})
}

func TestSwapOptions(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleSwapOptions(ctx, call("swap_options", nil), SwapArgs{
		Name: "outfit", Bindings: map[string][]string{"color": {"blue"}},
	})
	require.NoError(t, err)
	require.Len(t, res.Choices, 2)
	assert.Equal(t, "coat", res.Choices[0].Value)

	_, err = s.handleSwapOptions(ctx, call("swap_options", nil), SwapArgs{Name: "colour"})
	require.ErrorIs(t, err, domain.ErrMissingWildcard)
	assert.Contains(t, err.Error(), "hint:")
}

func TestValidateWildcards(t *testing.T) {
	s := newTestServer(t)

	res, err := s.handleValidate(context.Background(), call("validate_wildcards", nil), WorkflowArgs{})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Zero(t, res.Errors)
	assert.NotNil(t, res.Diagnostics)
}

func TestGraphAndListTools(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	t.Run("Graph Mermaid", func(t *testing.T) {
		res, err := s.handleGraph(ctx, call("dependency_graph", map[string]any{"focus": "outfit"}))
		require.NoError(t, err)
		require.False(t, res.IsError)
		text := textOf(t, res)
		assert.Contains(t, text, "outfit --> color")
		assert.Contains(t, text, "class outfit focus;")
	})

	t.Run("Graph Unknown Format", func(t *testing.T) {
		res, err := s.handleGraph(ctx, call("dependency_graph", map[string]any{"format": "dot"}))
		require.NoError(t, err)
		assert.True(t, res.IsError)
	})

	t.Run("List", func(t *testing.T) {
		res, err := s.handleList(ctx, call("list_wildcards", nil))
		require.NoError(t, err)
		var got []map[string]any
		require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &got))
		require.Len(t, got, 2)
		assert.Equal(t, "color", got[0]["name"])
	})

	t.Run("Get Requires Name", func(t *testing.T) {
		res, err := s.handleGet(ctx, call("get_wildcard", map[string]any{}))
		require.NoError(t, err)
		assert.True(t, res.IsError)
	})

	t.Run("Get", func(t *testing.T) {
		res, err := s.handleGet(ctx, call("get_wildcard", map[string]any{"name": "color"}))
		require.NoError(t, err)
		assert.Contains(t, textOf(t, res), `"value":"red"`)
	})
}

func TestToolsList(t *testing.T) {
	s := newTestServer(t)

	msg := s.MCPServer().HandleMessage(context.Background(), json.RawMessage(
		`{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`,
	))
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	for _, name := range []string{"resolve_template", "swap_options", "validate_wildcards", "dependency_graph", "list_wildcards", "get_wildcard"} {
		assert.Contains(t, string(data), `"`+name+`"`)
	}
}
