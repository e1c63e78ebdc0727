package llm

import (
	"context"
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	"github.com/novix-ai/novix/pkg/novix/config"
	apperrors "github.com/novix-ai/novix/pkg/novix/errors"
)

const defaultMaxTokens = 4096

// AnthropicClient implements the Client interface for Anthropic
type AnthropicClient struct {
	client anthropic.Client
	config *config.AnthropicConfig
}

// NewAnthropicClient creates a new Anthropic client
func NewAnthropicClient(cfg *config.AnthropicConfig) (*AnthropicClient, error) {
	if cfg == nil {
		return nil, apperrors.New(apperrors.ErrCodeAgentConfig, "Anthropic config is required", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []option.RequestOption{option.WithAPIKey(*cfg.APIKey)}
	if cfg.BaseURL != nil && *cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(*cfg.BaseURL))
	}

	return &AnthropicClient{
		client: anthropic.NewClient(opts...),
		config: cfg,
	}, nil
}

// Generate sends the conversation and returns one assistant turn
func (c *AnthropicClient) Generate(ctx context.Context, req *GenerateRequest) (*Response, error) {
	message, err := c.client.Messages.New(ctx, c.buildParams(req))
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeInteraction, "Anthropic API call failed", err)
	}

	return c.convertResponse(message), nil
}

// ModelName returns the name of the model being used
func (c *AnthropicClient) ModelName() string {
	return c.config.Model
}

func (c *AnthropicClient) buildParams(req *GenerateRequest) anthropic.MessageNewParams {
	maxTokens := defaultMaxTokens
	if c.config.MaxTokens != nil {
		maxTokens = *c.config.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		Messages:  c.convertMessages(req.Messages),
		MaxTokens: int64(maxTokens),
	}

	if c.config.Temperature != nil {
		params.Temperature = param.NewOpt(*c.config.Temperature)
	}

	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.System},
		}
	}

	if len(req.Tools) > 0 {
		params.Tools = c.convertTools(req.Tools)
	}

	return params
}

func (c *AnthropicClient) convertMessages(messages []Message) []anthropic.MessageParam {
	result := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case RoleUser:
			if len(msg.ToolResults) > 0 {
				blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.ToolResults))
				for _, r := range msg.ToolResults {
					blocks = append(blocks, anthropic.NewToolResultBlock(r.ToolCallID, r.Content, r.IsError))
				}
				result = append(result, anthropic.NewUserMessage(blocks...))
				continue
			}
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))

		case RoleAssistant:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.ToolCalls)+1)
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, tc.Arguments, tc.Name))
			}
			if len(blocks) == 0 {
				continue
			}
			result = append(result, anthropic.NewAssistantMessage(blocks...))
		}
	}

	return result
}

func (c *AnthropicClient) convertTools(tools []ToolDefinition) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))

	for _, tool := range tools {
		props, required := schemaParts(tool.Parameters)
		result = append(result, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Name,
				Description: param.NewOpt(tool.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: props,
					Required:   required,
				},
			},
		})
	}

	return result
}

func (c *AnthropicClient) convertResponse(message *anthropic.Message) *Response {
	response := &Response{
		StopReason: string(message.StopReason),
		Usage: &Usage{
			InputTokens:  int(message.Usage.InputTokens),
			OutputTokens: int(message.Usage.OutputTokens),
			TotalTokens:  int(message.Usage.InputTokens + message.Usage.OutputTokens),
		},
	}

	for _, block := range message.Content {
		switch block.Type {
		case "text":
			response.Content += block.Text
		case "tool_use":
			args := make(map[string]interface{})
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &args); err != nil {
					args = map[string]interface{}{}
				}
			}
			response.ToolCalls = append(response.ToolCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: args,
			})
		}
	}

	return response
}
