// Package openai provides a model.Client implementation backed by the
// OpenAI Chat Completions API via github.com/openai/openai-go, mirroring
// the adapter shape of the teacher's features/model/openai package.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	coremodel "github.com/mindscape-ai/core/internal/model"
)

// ChatClient captures the subset of the openai-go client used by the
// adapter, satisfied by the real client's Chat.Completions service or a
// test double.
type ChatClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Options configures the OpenAI adapter's model selection per profile.
type Options struct {
	FastModel     string
	StandardModel string
	PreciseModel  string
}

// Client implements model.Client via the OpenAI Chat Completions API.
type Client struct {
	chat ChatClient
	opts Options
}

// New builds an OpenAI-backed model client.
func New(chat ChatClient, opts Options) (*Client, error) {
	if chat == nil {
		return nil, errors.New("openai: chat client is required")
	}
	if opts.StandardModel == "" {
		return nil, errors.New("openai: standard model is required")
	}
	return &Client{chat: chat, opts: opts}, nil
}

// NewFromAPIKey constructs a client using the default openai-go HTTP client.
func NewFromAPIKey(apiKey string, opts Options) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	c := openai.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Chat.Completions, opts)
}

func (c *Client) modelFor(class coremodel.ModelClass) string {
	switch class {
	case coremodel.ModelClassFast:
		if c.opts.FastModel != "" {
			return c.opts.FastModel
		}
	case coremodel.ModelClassPrecise:
		if c.opts.PreciseModel != "" {
			return c.opts.PreciseModel
		}
	}
	return c.opts.StandardModel
}

// Complete renders a chat completion using the configured OpenAI client.
func (c *Client) Complete(ctx context.Context, req *coremodel.Request) (*coremodel.Response, error) {
	modelName := req.Model
	if modelName == "" {
		modelName = c.modelFor(req.ModelClass)
	}

	var msgs []openai.ChatCompletionMessageParamUnion
	for _, m := range req.Messages {
		msgs = append(msgs, toOpenAIMessage(m))
	}

	params := openai.ChatCompletionNewParams{
		Model:    modelName,
		Messages: msgs,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature != 0 {
		params.Temperature = openai.Float(float64(req.Temperature))
	}
	for _, td := range req.Tools {
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        td.Name,
				Description: openai.String(td.Description),
				Parameters:  toFunctionParameters(td.InputSchema),
			},
		})
	}

	resp, err := c.chat.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}
	return translateResponse(resp), nil
}

// Stream is unsupported by this adapter and always returns
// coremodel.ErrStreamingUnsupported.
func (c *Client) Stream(ctx context.Context, req *coremodel.Request) (coremodel.Streamer, error) {
	return nil, coremodel.ErrStreamingUnsupported
}

func toOpenAIMessage(m *coremodel.Message) openai.ChatCompletionMessageParamUnion {
	text := ""
	for _, part := range m.Parts {
		if tp, ok := part.(coremodel.TextPart); ok {
			text += tp.Text
		}
	}
	switch m.Role {
	case coremodel.ConversationRoleSystem:
		return openai.SystemMessage(text)
	case coremodel.ConversationRoleAssistant:
		return openai.AssistantMessage(text)
	default:
		return openai.UserMessage(text)
	}
}

func toFunctionParameters(schema any) openai.FunctionParameters {
	b, _ := json.Marshal(schema)
	var params openai.FunctionParameters
	_ = json.Unmarshal(b, &params)
	return params
}

func translateResponse(resp *openai.ChatCompletion) *coremodel.Response {
	out := &coremodel.Response{
		Usage: coremodel.TokenUsage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
	}
	if len(resp.Choices) == 0 {
		return out
	}
	choice := resp.Choices[0]
	out.StopReason = string(choice.FinishReason)

	var parts []coremodel.Part
	if choice.Message.Content != "" {
		parts = append(parts, coremodel.TextPart{Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		var input any
		_ = json.Unmarshal([]byte(tc.Function.Arguments), &input)
		parts = append(parts, coremodel.ToolUsePart{ID: tc.ID, Name: tc.Function.Name, Input: input})
		out.ToolCalls = append(out.ToolCalls, coremodel.ToolCall{
			ID:      tc.ID,
			Name:    tc.Function.Name,
			Payload: json.RawMessage(tc.Function.Arguments),
		})
	}
	out.Content = []coremodel.Message{{Role: coremodel.ConversationRoleAssistant, Parts: parts}}
	return out
}
