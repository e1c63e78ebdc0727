package agent

import (
	"context"

	"github.com/novix-ai/novix/pkg/novix/tools"
)

// FragmentKind tags the origin of a fragment
type FragmentKind string

const (
	// FragmentAgent is text produced by the model
	FragmentAgent FragmentKind = "agent"
	// FragmentTool is the result of a tool invocation
	FragmentTool FragmentKind = "tool"
)

// Fragment is one unit of output produced during an interaction
type Fragment struct {
	Kind    FragmentKind `json:"kind"`
	Content string       `json:"content"`
	Tool    string       `json:"tool,omitempty"`
	IsError bool         `json:"isError,omitempty"`
}

// Event is delivered on the channel returned by Handle.Stream. Exactly one
// of Fragment, Err and Done is set. Err and Done end the stream; a run cut
// short by ctx may end without either.
type Event struct {
	Fragment *Fragment
	Err      error
	Done     bool
}

// Handle is a constructed agent bound to a model, a tool set and a memory
type Handle interface {
	// Stream appends message to the thread and runs the agent. The returned
	// channel is closed when the run ends. Callers must drain it or cancel ctx.
	Stream(ctx context.Context, threadID, message string) <-chan Event

	// ToolNames lists the tools the agent may call
	ToolNames() []string
}

// BuildRequest carries what a Factory needs to construct a Handle
type BuildRequest struct {
	// Memory is shared across rebuilds so conversation history survives
	Memory *Memory
	// Tools are bound in addition to the factory's base tools
	Tools []tools.Tool
}

// Factory constructs agents
type Factory interface {
	Build(ctx context.Context, req BuildRequest) (Handle, error)
}

// FactoryFunc adapts a function into a Factory
type FactoryFunc func(ctx context.Context, req BuildRequest) (Handle, error)

func (f FactoryFunc) Build(ctx context.Context, req BuildRequest) (Handle, error) {
	return f(ctx, req)
}
