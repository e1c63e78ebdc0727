package novix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/go-logr/logr/testr"
	"github.com/novix-ai/novix/pkg/novix"
	"github.com/novix-ai/novix/pkg/novix/agent"
	"github.com/novix-ai/novix/pkg/novix/config"
	"github.com/novix-ai/novix/pkg/novix/converters"
	apperrors "github.com/novix-ai/novix/pkg/novix/errors"
	"github.com/novix-ai/novix/pkg/novix/llm"
	"github.com/novix-ai/novix/pkg/novix/marketplace"
	"github.com/novix-ai/novix/pkg/novix/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"
)

const (
	keyOne     = "0x0000000000000000000000000000000000000000000000000000000000000001"
	addressOne = "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf"
)

func init() {
	color.NoColor = true
}

func memoryDSN(t *testing.T) string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
}

// startServer runs an app whose agent answers "hello" with "hi" and echoes
// anything else
func startServer(t *testing.T) (*novix.App, *httptest.Server) {
	t.Helper()

	client := llm.NewMockClient()
	client.GenerateFunc = func(ctx context.Context, req *llm.GenerateRequest) (*llm.Response, error) {
		last := req.Messages[len(req.Messages)-1]
		if last.Content == "hello" {
			return llm.TextResponse("hi"), nil
		}
		return llm.TextResponse("echo: " + last.Content), nil
	}

	settings := config.DefaultSettings()
	settings.Agent.Model.Model = "gpt-4o"
	settings.Agent.Model.APIKey = "test-key"
	settings.Catalog.DSN = memoryDSN(t)

	app, err := novix.NewApp(settings,
		novix.WithLogger(testr.New(t)),
		novix.WithClientFactory(func(config.ModelConfig) (llm.Client, error) { return client, nil }),
	)
	require.NoError(t, err)

	srv := httptest.NewServer(app.Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = app.Close()
	})
	return app, srv
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSocketURL(t *testing.T) {
	tests := []struct {
		server  string
		want    string
		wantErr bool
	}{
		{server: "http://localhost:3000", want: "ws://localhost:3000/ws"},
		{server: "http://localhost:3000/", want: "ws://localhost:3000/ws"},
		{server: "https://novix.example.com/api", want: "wss://novix.example.com/api/ws"},
		{server: "wss://novix.example.com", want: "wss://novix.example.com/ws"},
		{server: "ftp://novix.example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.server, func(t *testing.T) {
			got, err := socketURL(tt.server)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewLogger(t *testing.T) {
	_, err := newLogger("debug", true)
	require.NoError(t, err)

	_, err = newLogger("loud", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid log level "loud"`)
}

func TestRenderSessions(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	infos := []session.Info{
		{
			ID:         "s-1",
			CreatedAt:  now.Add(-90 * time.Second),
			LastActive: now.Add(-30 * time.Second),
			HasWallet:  true,
			Address:    addressOne,
			Turns:      2,
			Tools:      []string{"search_agents", "get_wallet_details"},
		},
		{ID: "s-2", CreatedAt: now, LastActive: now, Tools: []string{"search_agents"}},
	}

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderSessions(&buf, infos, OutputTable, now))
		out := buf.String()
		assert.Contains(t, out, "s-1")
		assert.Contains(t, out, addressOne)
		assert.Contains(t, out, "1m30s")
		assert.Contains(t, out, "search_agents,get_wallet_details")
		assert.Contains(t, strings.ToLower(out), "total")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderSessions(&buf, infos, OutputJSON, now))
		var got []session.Info
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		require.Len(t, got, 2)
		assert.Equal(t, "s-1", got[0].ID)
		assert.True(t, got[0].HasWallet)
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderSessions(&buf, infos, OutputYAML, now))
		var got []session.Info
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
		require.Len(t, got, 2)
		assert.Equal(t, addressOne, got[0].Address)
	})

	t.Run("unknown format", func(t *testing.T) {
		err := renderSessions(&bytes.Buffer{}, infos, "xml", now)
		require.Error(t, err)
	})
}

func TestRenderListings(t *testing.T) {
	var buf bytes.Buffer
	renderListings(&buf, &marketplace.SearchResult{
		Results: []marketplace.Listing{{
			ID:        7,
			Name:      "SEO Booster",
			Summary:   "Writes search friendly copy",
			Topics:    []string{"seo", "marketing"},
			Price:     12.5,
			Credits:   10,
			AgentType: marketplace.AgentTypeCustom,
		}},
		Count:      1,
		TotalCount: 3,
	})

	out := buf.String()
	assert.Contains(t, out, "SEO Booster")
	assert.Contains(t, out, "12.50")
	assert.Contains(t, out, "seo,marketing")
	assert.Contains(t, strings.ToLower(out), "1 of 3")
}

func TestSeedFromFile(t *testing.T) {
	store, err := marketplace.Open(memoryDSN(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	path := filepath.Join(t.TempDir(), "listings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listings:
  - name: ChatBot
    summary: AI-powered chatbot
    description: A versatile chatbot
    topics: [chatbot]
    price: 50
    agentType: custom
  - name: SEO Booster
    summary: Writes search friendly copy
    description: Keyword research and copy
    topics: [seo]
    price: 12
`), 0o600))

	n, err := seedFromFile(context.Background(), store, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	total, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	_, err = seedFromFile(context.Background(), store, filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestAPIClient(t *testing.T) {
	app, srv := startServer(t)
	ctx := testContext(t)

	s, err := app.Registry.Create(ctx)
	require.NoError(t, err)

	api := newAPIClient(srv.URL + "/")
	infos, err := api.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, s.ID, infos[0].ID)

	require.NoError(t, api.RemoveSession(ctx, s.ID))
	assert.Equal(t, 0, app.Registry.Len())

	err = api.RemoveSession(ctx, s.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeSessionNotFound, apperrors.CodeOf(err))
}

func TestChatClient(t *testing.T) {
	app, srv := startServer(t)
	ctx := testContext(t)

	c, err := dialChat(ctx, srv.URL)
	require.NoError(t, err)
	defer c.Close()

	id, err := c.CreateSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, c.SessionID)
	assert.Equal(t, 1, app.Registry.Len())

	var got []converters.ResponsePayload
	require.NoError(t, c.Interact(ctx, "hello", func(p converters.ResponsePayload) {
		got = append(got, p)
	}))
	require.Len(t, got, 1)
	assert.Equal(t, "hi", got[0].Content)
	assert.Equal(t, agent.FragmentAgent, got[0].Kind)

	added, err := c.AddWallet(ctx, keyOne)
	require.NoError(t, err)
	assert.Equal(t, addressOne, added.Address)

	_, err = c.AddWallet(ctx, "not-a-key")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidCredential, apperrors.CodeOf(err))

	require.NoError(t, c.DeleteSession(ctx))
	assert.Empty(t, c.SessionID)
	assert.Equal(t, 0, app.Registry.Len())

	err = c.Interact(ctx, "hello", func(converters.ResponsePayload) {})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeSessionNotFound, apperrors.CodeOf(err))
}

func TestRunChat_OneShot(t *testing.T) {
	app, srv := startServer(t)
	ctx := testContext(t)

	var out bytes.Buffer
	err := runChat(ctx, &RootConfig{ServerURL: srv.URL}, &ChatConfig{
		Message:    "hello",
		PrivateKey: keyOne,
		Width:      80,
	}, &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "wallet "+addressOne+" attached")
	assert.Contains(t, out.String(), "Agent: hi")
	assert.Equal(t, 0, app.Registry.Len(), "session is removed on exit")
}

func TestRunChat_KeepSession(t *testing.T) {
	app, srv := startServer(t)
	ctx := testContext(t)

	var out bytes.Buffer
	err := runChat(ctx, &RootConfig{ServerURL: srv.URL}, &ChatConfig{Message: "ping", Keep: true}, &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "echo: ping")
	assert.Equal(t, 1, app.Registry.Len())
}

func TestRunChat_ServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	err := runChat(testContext(t), &RootConfig{ServerURL: srv.URL}, &ChatConfig{Message: "hello"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect")
}

func TestRenderer_ToolFragments(t *testing.T) {
	var out bytes.Buffer
	r := newRenderer(&out, 40)

	r.fragment(converters.ResponsePayload{
		Kind:    agent.FragmentTool,
		Tool:    "search_agents",
		Content: strings.Repeat("x", maxToolOutput+50),
	})

	line := out.String()
	assert.True(t, strings.HasPrefix(line, "Tool search_agents: "))
	assert.Contains(t, line, "…")
	assert.NotContains(t, line, strings.Repeat("x", maxToolOutput+1))
}
