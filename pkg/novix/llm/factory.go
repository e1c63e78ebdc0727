package llm

import (
	"fmt"

	"github.com/novix-ai/novix/pkg/novix/config"
	apperrors "github.com/novix-ai/novix/pkg/novix/errors"
)

// NewClientFromConfig creates an LLM client from agent configuration
func NewClientFromConfig(cfg config.ModelConfig) (Client, error) {
	if cfg == nil {
		return nil, apperrors.New(apperrors.ErrCodeAgentConfig, "model config is required", nil)
	}

	switch cfg.Type() {
	case config.ModelTypeOpenAI:
		openaiCfg, ok := cfg.(*config.OpenAIConfig)
		if !ok {
			return nil, apperrors.New(apperrors.ErrCodeAgentConfig, "invalid OpenAI config", nil)
		}
		client, err := NewOpenAIClient(openaiCfg)
		if err != nil {
			return nil, err
		}
		return client, nil

	case config.ModelTypeAnthropic:
		anthropicCfg, ok := cfg.(*config.AnthropicConfig)
		if !ok {
			return nil, apperrors.New(apperrors.ErrCodeAgentConfig, "invalid Anthropic config", nil)
		}
		client, err := NewAnthropicClient(anthropicCfg)
		if err != nil {
			return nil, err
		}
		return client, nil

	default:
		return nil, apperrors.New(apperrors.ErrCodeAgentConfig,
			fmt.Sprintf("unsupported model type: %s", cfg.Type()), nil)
	}
}
