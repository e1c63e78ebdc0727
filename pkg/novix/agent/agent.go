package agent

import (
	"context"
	"fmt"

	apperrors "github.com/novix-ai/novix/pkg/novix/errors"
	"github.com/novix-ai/novix/pkg/novix/llm"
	"github.com/novix-ai/novix/pkg/novix/tools"
	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"
)

const (
	MaxIterations     = 10 // Maximum agent iterations
	DefaultIterations = 5  // Default if not specified
)

// Agent runs a reason-act loop: call the model, run the tools it asks for,
// feed the results back, until the model answers without tool calls.
type Agent struct {
	client        llm.Client
	registry      *tools.Registry
	memory        *Memory
	instruction   string
	maxIterations int
}

// Option configures an Agent
type Option func(*Agent)

// WithInstruction sets the system instruction
func WithInstruction(instruction string) Option {
	return func(a *Agent) {
		a.instruction = instruction
	}
}

// WithMaxIterations bounds the number of model calls per interaction
func WithMaxIterations(n int) Option {
	return func(a *Agent) {
		if n > 0 && n <= MaxIterations {
			a.maxIterations = n
		}
	}
}

// New creates an Agent. A nil memory gets a private one.
func New(client llm.Client, registry *tools.Registry, memory *Memory, opts ...Option) *Agent {
	if memory == nil {
		memory = NewMemory()
	}
	a := &Agent{
		client:        client,
		registry:      registry,
		memory:        memory,
		maxIterations: DefaultIterations,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Memory returns the checkpointer the agent writes to
func (a *Agent) Memory() *Memory {
	return a.memory
}

// ToolNames lists the tools the agent may call
func (a *Agent) ToolNames() []string {
	return a.registry.Names()
}

// Stream runs the agent on the thread and emits fragments in production order
func (a *Agent) Stream(ctx context.Context, threadID, message string) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)

		last := Event{Done: true}
		if err := a.run(ctx, threadID, message, events); err != nil {
			last = Event{Err: err}
		}

		// a draining consumer gets the outcome even if ctx ends meanwhile
		select {
		case events <- last:
			return
		default:
		}
		select {
		case events <- last:
		case <-ctx.Done():
		}
	}()

	return events
}

func (a *Agent) run(ctx context.Context, threadID, message string, events chan<- Event) error {
	log := ctrllog.FromContext(ctx).WithName("agent").WithValues("threadID", threadID)

	a.memory.Append(threadID, llm.Message{Role: llm.RoleUser, Content: message})

	toolDefs := a.registry.Definitions()

	for iteration := 0; iteration < a.maxIterations; iteration++ {
		response, err := a.client.Generate(ctx, &llm.GenerateRequest{
			System:   a.instruction,
			Messages: a.memory.Load(threadID),
			Tools:    toolDefs,
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return apperrors.New(apperrors.ErrCodeInteraction, "LLM generation failed", err)
		}

		log.V(1).Info("Model step", "iteration", iteration, "toolCalls", len(response.ToolCalls), "stopReason", response.StopReason)

		assistant := response.AssistantMessage()

		// final answer
		if len(response.ToolCalls) == 0 {
			a.memory.Append(threadID, assistant)
			if response.Content != "" {
				if !emit(ctx, events, Fragment{Kind: FragmentAgent, Content: response.Content}) {
					return ctx.Err()
				}
			}
			return nil
		}

		if response.Content != "" {
			if !emit(ctx, events, Fragment{Kind: FragmentAgent, Content: response.Content}) {
				return ctx.Err()
			}
		}

		results := a.executeToolCalls(ctx, response.ToolCalls)

		// the assistant turn and its results are recorded together so the
		// history never holds unanswered tool calls
		a.memory.Append(threadID, assistant, llm.Message{Role: llm.RoleUser, ToolResults: results})

		for _, r := range results {
			if !emit(ctx, events, Fragment{Kind: FragmentTool, Content: r.Content, Tool: r.Name, IsError: r.IsError}) {
				return ctx.Err()
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	return apperrors.New(apperrors.ErrCodeInteraction,
		fmt.Sprintf("max iterations (%d) reached", a.maxIterations), nil)
}

func (a *Agent) executeToolCalls(ctx context.Context, calls []llm.ToolCall) []llm.ToolResult {
	log := ctrllog.FromContext(ctx).WithName("agent")

	results := make([]llm.ToolResult, 0, len(calls))
	for _, call := range calls {
		result := a.registry.Execute(ctx, call)
		if result.IsError {
			log.Info("Tool call failed", "tool", call.Name, "id", call.ID, "result", result.Content)
		}
		results = append(results, result)
	}
	return results
}

func emit(ctx context.Context, events chan<- Event, f Fragment) bool {
	select {
	case events <- Event{Fragment: &f}:
		return true
	case <-ctx.Done():
		return false
	}
}
