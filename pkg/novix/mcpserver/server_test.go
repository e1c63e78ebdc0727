package mcpserver

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/novix-ai/novix/pkg/novix/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	greet := tools.NewFunc("greet", "Greets someone",
		tools.ObjectSchema(map[string]interface{}{"name": map[string]interface{}{"type": "string"}}, "name"),
		func(ctx context.Context, args map[string]interface{}) (string, error) {
			return "hello " + args["name"].(string), nil
		})
	fail := tools.NewFunc("fail", "Always fails", nil,
		func(ctx context.Context, args map[string]interface{}) (string, error) {
			return "", errors.New("boom")
		})
	r, err := tools.NewRegistry(greet, fail)
	require.NoError(t, err)
	return r
}

func newClient(t *testing.T) *client.Client {
	t.Helper()
	s, err := New(testRegistry(t), "test")
	require.NoError(t, err)

	c, err := client.NewInProcessClient(s)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "novix-test", Version: "test"}
	_, err = c.Initialize(ctx, initReq)
	require.NoError(t, err)
	return c
}

func callTool(t *testing.T, c *client.Client, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := c.CallTool(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	tc, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)
	return tc.Text
}

func TestServer_ListsTools(t *testing.T) {
	c := newClient(t)

	res, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"greet", "fail"}, names)
}

func TestServer_CallTool(t *testing.T) {
	c := newClient(t)

	res := callTool(t, c, "greet", map[string]interface{}{"name": "ada"})
	assert.False(t, res.IsError)
	assert.Equal(t, "hello ada", text(t, res))
}

func TestServer_CallToolErrors(t *testing.T) {
	c := newClient(t)

	res := callTool(t, c, "greet", map[string]interface{}{})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "Error:")

	res = callTool(t, c, "fail", nil)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "boom")
}
