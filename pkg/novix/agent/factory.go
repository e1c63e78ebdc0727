package agent

import (
	"context"

	"github.com/novix-ai/novix/pkg/novix/config"
	apperrors "github.com/novix-ai/novix/pkg/novix/errors"
	"github.com/novix-ai/novix/pkg/novix/llm"
	"github.com/novix-ai/novix/pkg/novix/tools"
	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"
)

// LLMFactory builds agents backed by an LLM client created from Config.
type LLMFactory struct {
	Config *config.AgentConfig
	// BaseTools are bound to every agent the factory builds
	BaseTools []tools.Tool
	// NewClient creates the model client; defaults to llm.NewClientFromConfig
	NewClient func(cfg config.ModelConfig) (llm.Client, error)
}

// NewLLMFactory creates an LLMFactory
func NewLLMFactory(cfg *config.AgentConfig, baseTools ...tools.Tool) *LLMFactory {
	return &LLMFactory{
		Config:    cfg,
		BaseTools: baseTools,
		NewClient: llm.NewClientFromConfig,
	}
}

// Build constructs an agent bound to the base tools plus req.Tools
func (f *LLMFactory) Build(ctx context.Context, req BuildRequest) (Handle, error) {
	log := ctrllog.FromContext(ctx).WithName("agent-factory")

	if f.Config == nil || f.Config.Model == nil {
		return nil, apperrors.New(apperrors.ErrCodeAgentInit, "agent model config is required", nil)
	}
	if err := f.Config.Model.Validate(); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeAgentInit, "invalid agent model config", err)
	}

	newClient := f.NewClient
	if newClient == nil {
		newClient = llm.NewClientFromConfig
	}
	client, err := newClient(f.Config.Model)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeAgentInit, "failed to create LLM client", err)
	}

	all := make([]tools.Tool, 0, len(f.BaseTools)+len(req.Tools))
	all = append(all, f.BaseTools...)
	all = append(all, req.Tools...)
	registry, err := tools.NewRegistry(all...)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeAgentInit, "failed to bind tools", err)
	}

	log.V(1).Info("Built agent", "model", client.ModelName(), "tools", registry.Names())

	return New(client, registry, req.Memory,
		WithInstruction(f.Config.Instruction),
		WithMaxIterations(f.Config.MaxIterations),
	), nil
}
