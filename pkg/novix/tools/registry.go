package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/novix-ai/novix/pkg/novix/errors"
	"github.com/novix-ai/novix/pkg/novix/llm"
	"github.com/stoewer/go-strcase"
	"github.com/xeipuuv/gojsonschema"
)

type entry struct {
	tool   Tool
	schema *gojsonschema.Schema
}

// Registry is an immutable set of tools addressed by snake_case name.
// Arguments are validated against each tool's input schema before Run.
type Registry struct {
	entries map[string]entry
	order   []string
}

// NewRegistry compiles the schemas of tools and indexes them by name
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{entries: make(map[string]entry, len(tools))}
	for _, t := range tools {
		if err := r.add(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) add(t Tool) error {
	if t == nil {
		return apperrors.New(apperrors.ErrCodeAgentConfig, "tool is nil", nil)
	}
	name := NormalizeName(t.Name())
	if name == "" {
		return apperrors.New(apperrors.ErrCodeAgentConfig, "tool name is required", nil)
	}
	if _, exists := r.entries[name]; exists {
		return apperrors.New(apperrors.ErrCodeAgentConfig, fmt.Sprintf("duplicate tool: %s", name), nil)
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(t.InputSchema()))
	if err != nil {
		return apperrors.New(apperrors.ErrCodeAgentConfig, fmt.Sprintf("invalid input schema for tool %s", name), err)
	}

	r.entries[name] = entry{tool: t, schema: schema}
	r.order = append(r.order, name)
	return nil
}

// NormalizeName converts a tool name to snake_case
func NormalizeName(name string) string {
	return strcase.SnakeCase(strings.TrimSpace(name))
}

// Len returns the number of registered tools
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// Names returns the registered tool names in sorted order
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

// Tools returns the registered tools in registration order
func (r *Registry) Tools() []Tool {
	if r == nil {
		return nil
	}
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].tool)
	}
	return out
}

// Lookup returns the tool registered under name
func (r *Registry) Lookup(name string) (Tool, bool) {
	if r == nil {
		return nil, false
	}
	e, ok := r.entries[NormalizeName(name)]
	return e.tool, ok
}

// Definitions returns the tool definitions advertised to the model
func (r *Registry) Definitions() []llm.ToolDefinition {
	if r == nil {
		return nil
	}
	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.entries[name].tool
		defs = append(defs, llm.ToolDefinition{
			Name:        name,
			Description: t.Description(),
			Parameters:  t.InputSchema(),
		})
	}
	return defs
}

// Validate checks args against the input schema of the named tool
func (r *Registry) Validate(name string, args map[string]interface{}) error {
	if r == nil {
		return apperrors.New(apperrors.ErrCodeToolExecution, fmt.Sprintf("unknown tool: %s", name), nil)
	}
	e, ok := r.entries[NormalizeName(name)]
	if !ok {
		return apperrors.New(apperrors.ErrCodeToolExecution, fmt.Sprintf("unknown tool: %s", name), nil)
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	result, err := e.schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "schema validation failed", err)
	}
	if !result.Valid() {
		msgs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			msgs[i] = desc.String()
		}
		return apperrors.New(apperrors.ErrCodeInvalidInput,
			fmt.Sprintf("invalid arguments: %s", strings.Join(msgs, "; ")), nil)
	}
	return nil
}

// Execute validates and runs a tool call. Failures are reported in the
// result text with IsError set so the model can react to them.
func (r *Registry) Execute(ctx context.Context, call llm.ToolCall) llm.ToolResult {
	result := llm.ToolResult{ToolCallID: call.ID, Name: call.Name}

	if err := r.Validate(call.Name, call.Arguments); err != nil {
		result.Content = fmt.Sprintf("Error: %s", apperrors.MessageOf(err))
		result.IsError = true
		return result
	}

	tool, _ := r.Lookup(call.Name)
	args := call.Arguments
	if args == nil {
		args = map[string]interface{}{}
	}

	out, err := tool.Run(ctx, args)
	if err != nil {
		result.Content = fmt.Sprintf("Error executing tool %s: %v", call.Name, err)
		result.IsError = true
		return result
	}

	result.Content = out
	return result
}
