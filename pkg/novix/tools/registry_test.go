package tools

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/novix-ai/novix/pkg/novix/errors"
	"github.com/novix-ai/novix/pkg/novix/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool() *Func {
	return NewFunc("echo", "Echo the text back",
		ObjectSchema(map[string]interface{}{
			"text": map[string]interface{}{"type": "string"},
		}, "text"),
		func(ctx context.Context, args map[string]interface{}) (string, error) {
			return args["text"].(string), nil
		})
}

func TestNewRegistry(t *testing.T) {
	r, err := NewRegistry(echoTool(), NewFunc("getWalletDetails", "details", nil,
		func(ctx context.Context, args map[string]interface{}) (string, error) { return "ok", nil }))
	require.NoError(t, err)

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"echo", "get_wallet_details"}, r.Names())

	_, ok := r.Lookup("GetWalletDetails")
	assert.True(t, ok)

	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "echo", defs[0].Name)
	assert.Equal(t, "Echo the text back", defs[0].Description)
	assert.Equal(t, "get_wallet_details", defs[1].Name)
}

func TestNewRegistry_Duplicate(t *testing.T) {
	_, err := NewRegistry(echoTool(), echoTool())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate tool")
}

func TestNewRegistry_InvalidSchema(t *testing.T) {
	bad := NewFunc("bad", "bad", map[string]interface{}{"type": 12}, nil)
	_, err := NewRegistry(bad)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeAgentConfig, apperrors.CodeOf(err))
}

func TestRegistry_Execute(t *testing.T) {
	failing := NewFunc("fail", "always fails", nil,
		func(ctx context.Context, args map[string]interface{}) (string, error) {
			return "", errors.New("upstream down")
		})
	r, err := NewRegistry(echoTool(), failing)
	require.NoError(t, err)

	tests := []struct {
		name      string
		call      llm.ToolCall
		want      string
		wantError bool
	}{
		{
			name: "valid call",
			call: llm.ToolCall{ID: "1", Name: "echo", Arguments: map[string]interface{}{"text": "hi"}},
			want: "hi",
		},
		{
			name:      "missing required argument",
			call:      llm.ToolCall{ID: "2", Name: "echo", Arguments: map[string]interface{}{}},
			want:      "invalid arguments",
			wantError: true,
		},
		{
			name:      "wrong argument type",
			call:      llm.ToolCall{ID: "3", Name: "echo", Arguments: map[string]interface{}{"text": 5}},
			want:      "invalid arguments",
			wantError: true,
		},
		{
			name:      "unknown tool",
			call:      llm.ToolCall{ID: "4", Name: "nope"},
			want:      "unknown tool",
			wantError: true,
		},
		{
			name:      "tool failure",
			call:      llm.ToolCall{ID: "5", Name: "fail"},
			want:      "upstream down",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Execute(context.Background(), tt.call)
			assert.Equal(t, tt.call.ID, res.ToolCallID)
			assert.Equal(t, tt.wantError, res.IsError)
			assert.Contains(t, res.Content, tt.want)
		})
	}
}

func TestNilRegistry(t *testing.T) {
	var r *Registry
	assert.Equal(t, 0, r.Len())
	assert.Nil(t, r.Definitions())
	res := r.Execute(context.Background(), llm.ToolCall{ID: "x", Name: "echo"})
	assert.True(t, res.IsError)
}
