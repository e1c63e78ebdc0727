package config

import (
	"encoding/json"
	"fmt"

	apperrors "github.com/novix-ai/novix/pkg/novix/errors"
)

// Model type discriminators.
const (
	ModelTypeOpenAI    = "OpenAI"
	ModelTypeAnthropic = "Anthropic"
)

// AgentConfig represents the configuration used by the agent factory
type AgentConfig struct {
	Model         ModelConfig `json:"model"`
	Instruction   string      `json:"instruction,omitempty"`
	MaxIterations int         `json:"max_iterations,omitempty"`
}

// ModelConfig is an interface for different model configurations
type ModelConfig interface {
	Type() string
	Validate() error
}

// BaseModelConfig contains common fields for all models
type BaseModelConfig struct {
	ModelType string `json:"type"`
}

func (b *BaseModelConfig) Type() string {
	return b.ModelType
}

func (b *BaseModelConfig) Validate() error {
	return apperrors.New(apperrors.ErrCodeAgentConfig,
		fmt.Sprintf("unsupported model type: %s", b.ModelType), nil)
}

// OpenAIConfig represents OpenAI model configuration
type OpenAIConfig struct {
	BaseModelConfig
	Model       string   `json:"model"`
	BaseURL     *string  `json:"base_url,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	APIKey      *string  `json:"api_key,omitempty"`
}

func (o *OpenAIConfig) Validate() error {
	if o.Model == "" {
		return apperrors.New(apperrors.ErrCodeAgentConfig, "model name is required", nil)
	}
	if o.APIKey == nil || *o.APIKey == "" {
		return apperrors.New(apperrors.ErrCodeAgentConfig, "OpenAI API key is required", nil)
	}
	return nil
}

// AnthropicConfig represents Anthropic model configuration
type AnthropicConfig struct {
	BaseModelConfig
	Model       string   `json:"model"`
	BaseURL     *string  `json:"base_url,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	APIKey      *string  `json:"api_key,omitempty"`
}

func (a *AnthropicConfig) Validate() error {
	if a.Model == "" {
		return apperrors.New(apperrors.ErrCodeAgentConfig, "model name is required", nil)
	}
	if a.APIKey == nil || *a.APIKey == "" {
		return apperrors.New(apperrors.ErrCodeAgentConfig, "Anthropic API key is required", nil)
	}
	return nil
}

// UnmarshalJSON implements custom unmarshaling for AgentConfig to handle model discriminator
func (a *AgentConfig) UnmarshalJSON(data []byte) error {
	type Alias AgentConfig
	aux := &struct {
		Model json.RawMessage `json:"model"`
		*Alias
	}{
		Alias: (*Alias)(a),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var modelType struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(aux.Model, &modelType); err != nil {
		return fmt.Errorf("failed to parse model type: %w", err)
	}

	switch modelType.Type {
	case ModelTypeOpenAI:
		var openai OpenAIConfig
		if err := json.Unmarshal(aux.Model, &openai); err != nil {
			return err
		}
		a.Model = &openai
	case ModelTypeAnthropic:
		var anthropic AnthropicConfig
		if err := json.Unmarshal(aux.Model, &anthropic); err != nil {
			return err
		}
		a.Model = &anthropic
	default:
		return fmt.Errorf("unsupported model type: %s", modelType.Type)
	}

	return nil
}
