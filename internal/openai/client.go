// Package openai wraps the provider SDK with the two call shapes this
// service needs: a search-augmented completion and a plain completion.
package openai

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"

	"github.com/sizam/nti-agent/backend/internal/models"
)

// Client wraps the OpenAI Responses API with helpers tailored to this project.
type Client struct {
	client openai.Client
	log    *slog.Logger
}

// New instantiates the provider client. baseURL may be empty.
func New(apiKey, baseURL string, logger *slog.Logger) *Client {
	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(apiKey))}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSpace(baseURL)))
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{client: openai.NewClient(opts...), log: logger}
}

// SearchCompletion issues a completion with the hosted web-search tool. When
// domains is non-empty the tool is additionally constrained to those domains.
// History turns are replayed after the user message, oldest first.
func (c *Client) SearchCompletion(ctx context.Context, model, system, user string, history []models.Turn, domains []string) (*responses.Response, error) {
	params := c.baseParams(model, system, user, history)
	params.Tools = []responses.ToolUnionParam{{
		OfWebSearchPreview: &responses.WebSearchToolParam{
			Type: responses.WebSearchToolTypeWebSearchPreview,
		},
	}}

	var opts []option.RequestOption
	if len(domains) > 0 {
		// The allow-list field postdates the pinned SDK surface; setting it
		// on the serialized request keeps the restriction active either way.
		opts = append(opts, option.WithJSONSet("tools.0.filters.allowed_domains", domains))
	}

	c.log.Debug("search completion",
		slog.String("model", model),
		slog.Int("domains", len(domains)),
		slog.Int("history", len(history)),
	)

	resp, err := c.client.Responses.New(ctx, params, opts...)
	if err != nil {
		return nil, fmt.Errorf("search completion: %w", err)
	}
	return resp, nil
}

// PlainCompletion issues a completion without any tools. Used as the
// secondary fallback when the search-augmented call produced no text.
func (c *Client) PlainCompletion(ctx context.Context, model, system, user string) (*responses.Response, error) {
	params := c.baseParams(model, system, user, nil)

	c.log.Debug("plain completion", slog.String("model", model))

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("plain completion: %w", err)
	}
	return resp, nil
}

func (c *Client) baseParams(model, system, user string, history []models.Turn) responses.ResponseNewParams {
	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(strings.TrimSpace(model)),
	}
	if strings.TrimSpace(system) != "" {
		params.Instructions = openai.String(system)
	}

	items := make(responses.ResponseInputParam, 0, len(history)+1)
	items = append(items, responses.ResponseInputItemParamOfMessage(user, responses.EasyInputMessageRoleUser))
	for _, turn := range history {
		items = append(items, responses.ResponseInputItemParamOfMessage(turn.Content, inputRole(turn.Role)))
	}
	params.Input = responses.ResponseNewParamsInputUnion{OfInputItemList: items}
	return params
}

func inputRole(role string) responses.EasyInputMessageRole {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "assistant":
		return responses.EasyInputMessageRoleAssistant
	case "system":
		return responses.EasyInputMessageRoleSystem
	default:
		return responses.EasyInputMessageRoleUser
	}
}
