package marketplace

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "github.com/novix-ai/novix/pkg/novix/errors"
	"github.com/novix-ai/novix/pkg/novix/tools"
)

const searchDescription = `Search for AI agents in the Novix AI Marketplace using keywords and filters.

A successful response contains a JSON payload:
  {"results": [{"id": 1, "name": "ChatBot", "summary": "...", "price": 50, "credits": 10, "topics": ["chatbot"], "agentType": "custom", ...}], "count": 1, "totalCount": 1}`

// SearchTool exposes catalog search to the agent
type SearchTool struct {
	tools.BaseTool
	store *Store
}

// NewSearchTool creates the search_agents tool
func NewSearchTool(store *Store) *SearchTool {
	return &SearchTool{
		BaseTool: tools.NewBaseTool("search_agents", searchDescription, searchSchema()),
		store:    store,
	}
}

func (s *SearchTool) Run(ctx context.Context, args map[string]interface{}) (string, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return "", apperrors.New(apperrors.ErrCodeInvalidInput, "failed to encode search arguments", err)
	}
	var q Query
	if err := json.Unmarshal(raw, &q); err != nil {
		return "", apperrors.New(apperrors.ErrCodeInvalidInput, "invalid search arguments", err)
	}

	result, err := s.store.Search(ctx, q)
	if err != nil {
		return "", err
	}

	out, err := json.Marshal(result)
	if err != nil {
		return "", apperrors.New(apperrors.ErrCodeToolExecution, "failed to encode search results", err)
	}
	return "Successfully found AI agents in the Novix Marketplace:\n" + string(out), nil
}

func rangeSchema(name string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"description": fmt.Sprintf("Filter by %s range", name),
		"properties": map[string]interface{}{
			"min": map[string]interface{}{"type": "number", "minimum": 0},
			"max": map[string]interface{}{"type": "number", "minimum": 0},
		},
		"additionalProperties": false,
	}
}

func searchSchema() map[string]interface{} {
	return tools.ObjectSchema(map[string]interface{}{
		"query": map[string]interface{}{
			"type":        "string",
			"description": "Search keywords (e.g. 'chatbot for customer support')",
		},
		"maxResults": map[string]interface{}{
			"type":        "integer",
			"minimum":     1,
			"maximum":     MaxResultsLimit,
			"description": "Maximum number of results to return",
		},
		"skip": map[string]interface{}{
			"type":        "integer",
			"minimum":     0,
			"description": "Number of results to skip for pagination",
		},
		"filters": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"price":   rangeSchema("price"),
				"credits": rangeSchema("credits"),
				"topics": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string", "minLength": 1},
					"description": "Filter by topics (e.g. ['chatbot', 'productivity'])",
				},
				"agentType": map[string]interface{}{
					"type": "string",
					"enum": []interface{}{AgentTypeCustom, AgentTypeEliza},
				},
				"pricingModel": map[string]interface{}{
					"type":      "string",
					"minLength": 1,
				},
			},
			"additionalProperties": false,
		},
		"sort": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"field": map[string]interface{}{
					"type": "string",
					"enum": []interface{}{SortScore, SortPrice, SortCredits},
				},
				"order": map[string]interface{}{
					"type": "string",
					"enum": []interface{}{OrderAsc, OrderDesc},
				},
			},
			"additionalProperties": false,
		},
	})
}
