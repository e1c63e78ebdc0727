package tools

import (
	"context"
)

// Tool defines the interface for agent capability providers
type Tool interface {
	Name() string
	Description() string
	// InputSchema returns the JSON schema object describing the arguments
	InputSchema() map[string]interface{}
	Run(ctx context.Context, args map[string]interface{}) (string, error)
}

// BaseTool provides common functionality for tools
type BaseTool struct {
	name        string
	description string
	schema      map[string]interface{}
}

// NewBaseTool creates a new BaseTool
func NewBaseTool(name, description string, schema map[string]interface{}) BaseTool {
	if schema == nil {
		schema = ObjectSchema(nil)
	}
	return BaseTool{
		name:        name,
		description: description,
		schema:      schema,
	}
}

// Name returns the tool name
func (b *BaseTool) Name() string {
	return b.name
}

// Description returns the tool description
func (b *BaseTool) Description() string {
	return b.description
}

// InputSchema returns the tool's argument schema
func (b *BaseTool) InputSchema() map[string]interface{} {
	return b.schema
}

// Func adapts a plain function into a Tool.
type Func struct {
	BaseTool
	fn func(ctx context.Context, args map[string]interface{}) (string, error)
}

// NewFunc creates a Tool backed by fn
func NewFunc(name, description string, schema map[string]interface{},
	fn func(ctx context.Context, args map[string]interface{}) (string, error)) *Func {
	return &Func{BaseTool: NewBaseTool(name, description, schema), fn: fn}
}

func (f *Func) Run(ctx context.Context, args map[string]interface{}) (string, error) {
	return f.fn(ctx, args)
}

// ObjectSchema builds an object schema from properties and the required keys.
func ObjectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	if properties == nil {
		properties = map[string]interface{}{}
	}
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		req := make([]interface{}, len(required))
		for i, r := range required {
			req[i] = r
		}
		schema["required"] = req
	}
	return schema
}
