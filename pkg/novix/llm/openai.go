package llm

import (
	"context"
	"encoding/json"

	"github.com/novix-ai/novix/pkg/novix/config"
	apperrors "github.com/novix-ai/novix/pkg/novix/errors"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient implements the Client interface for OpenAI
type OpenAIClient struct {
	client openai.Client
	config *config.OpenAIConfig
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(cfg *config.OpenAIConfig) (*OpenAIClient, error) {
	if cfg == nil {
		return nil, apperrors.New(apperrors.ErrCodeAgentConfig, "OpenAI config is required", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []option.RequestOption{option.WithAPIKey(*cfg.APIKey)}
	if cfg.BaseURL != nil && *cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(*cfg.BaseURL))
	}

	return &OpenAIClient{
		client: openai.NewClient(opts...),
		config: cfg,
	}, nil
}

// Generate sends the conversation and returns one assistant turn
func (c *OpenAIClient) Generate(ctx context.Context, req *GenerateRequest) (*Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.config.Model),
		Messages: c.convertMessages(req),
	}

	if c.config.Temperature != nil {
		params.Temperature = openai.Float(*c.config.Temperature)
	}
	if c.config.MaxTokens != nil {
		params.MaxCompletionTokens = openai.Int(int64(*c.config.MaxTokens))
	}
	if len(req.Tools) > 0 {
		params.Tools = c.convertTools(req.Tools)
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeInteraction, "OpenAI API call failed", err)
	}
	if len(completion.Choices) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeInteraction, "OpenAI returned no choices", nil)
	}

	return c.convertResponse(completion), nil
}

// ModelName returns the name of the model being used
func (c *OpenAIClient) ModelName() string {
	return c.config.Model
}

func (c *OpenAIClient) convertMessages(req *GenerateRequest) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)

	if req.System != "" {
		result = append(result, openai.SystemMessage(req.System))
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleUser:
			// tool results map to one tool message per call
			if len(msg.ToolResults) > 0 {
				for _, r := range msg.ToolResults {
					result = append(result, openai.ToolMessage(r.Content, r.ToolCallID))
				}
				continue
			}
			result = append(result, openai.UserMessage(msg.Content))

		case RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				if msg.Content != "" {
					result = append(result, openai.AssistantMessage(msg.Content))
				}
				continue
			}

			assistant := openai.ChatCompletionAssistantMessageParam{}
			if msg.Content != "" {
				assistant.Content.OfString = openai.String(msg.Content)
			}
			for _, tc := range msg.ToolCalls {
				args, err := json.Marshal(tc.Arguments)
				if err != nil {
					args = []byte("{}")
				}
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: string(args),
					},
				})
			}
			result = append(result, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		}
	}

	return result
}

func (c *OpenAIClient) convertTools(tools []ToolDefinition) []openai.ChatCompletionToolParam {
	result := make([]openai.ChatCompletionToolParam, 0, len(tools))

	for _, tool := range tools {
		fn := openai.FunctionDefinitionParam{
			Name:        tool.Name,
			Description: openai.String(tool.Description),
		}
		if tool.Parameters != nil {
			fn.Parameters = openai.FunctionParameters(tool.Parameters)
		}

		result = append(result, openai.ChatCompletionToolParam{Function: fn})
	}

	return result
}

func (c *OpenAIClient) convertResponse(completion *openai.ChatCompletion) *Response {
	choice := completion.Choices[0]

	response := &Response{
		Content:    choice.Message.Content,
		StopReason: choice.FinishReason,
		Usage: &Usage{
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:  int(completion.Usage.TotalTokens),
		},
	}

	for _, tc := range choice.Message.ToolCalls {
		args := make(map[string]interface{})
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				args = map[string]interface{}{}
			}
		}

		response.ToolCalls = append(response.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	return response
}
