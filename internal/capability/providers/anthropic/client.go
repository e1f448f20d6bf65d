// Package anthropic provides a model.Client implementation backed by the
// Anthropic Claude Messages API, adapted from the teacher's
// features/model/anthropic adapter: it translates core requests into
// anthropic.Message calls and maps responses (text, tool use, thinking,
// usage) back into the generic model structures.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/mindscape-ai/core/internal/model"
)

// MessagesClient captures the subset of the Anthropic SDK client used by
// the adapter, satisfied by *sdk.MessageService or a test double.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Options configures the Anthropic adapter's model selection per profile.
type Options struct {
	FastModel     string
	StandardModel string
	PreciseModel  string
	MaxTokens     int
	Temperature   float64
}

// Client implements model.Client on top of Anthropic Claude Messages.
type Client struct {
	msg  MessagesClient
	opts Options
}

// New builds an Anthropic-backed model client.
func New(msg MessagesClient, opts Options) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropic: messages client is required")
	}
	if opts.StandardModel == "" {
		return nil, errors.New("anthropic: standard model identifier is required")
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}
	return &Client{msg: msg, opts: opts}, nil
}

// NewFromAPIKey constructs a client using the default Anthropic HTTP client,
// authenticated with apiKey via the SDK's option helpers; an empty apiKey
// is an error.
func NewFromAPIKey(apiKey string, opts Options) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&ac.Messages, opts)
}

func (c *Client) modelFor(class model.ModelClass) string {
	switch class {
	case model.ModelClassFast:
		if c.opts.FastModel != "" {
			return c.opts.FastModel
		}
	case model.ModelClassPrecise:
		if c.opts.PreciseModel != "" {
			return c.opts.PreciseModel
		}
	}
	return c.opts.StandardModel
}

// Complete issues a non-streaming Messages.New request and translates the
// response into model-friendly structures (assistant message + tool calls).
func (c *Client) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	params, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	msg, err := c.msg.New(ctx, *params)
	if err != nil {
		if isRateLimited(err) {
			return nil, fmt.Errorf("%w: %w", model.ErrRateLimited, err)
		}
		return nil, fmt.Errorf("anthropic: messages.new: %w", err)
	}
	return translateResponse(msg)
}

// Stream is unsupported by this adapter and always returns
// model.ErrStreamingUnsupported.
func (c *Client) Stream(ctx context.Context, req *model.Request) (model.Streamer, error) {
	return nil, model.ErrStreamingUnsupported
}

func (c *Client) prepareRequest(req *model.Request) (*sdk.MessageNewParams, error) {
	modelName := req.Model
	if modelName == "" {
		modelName = c.modelFor(req.ModelClass)
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = int64(c.opts.MaxTokens)
	}

	var msgs []sdk.MessageParam
	for _, m := range req.Messages {
		msgs = append(msgs, toAnthropicMessage(m))
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(modelName),
		MaxTokens: maxTokens,
		Messages:  msgs,
	}
	if req.Temperature != 0 {
		params.Temperature = sdk.Float(float64(req.Temperature))
	}
	for _, td := range req.Tools {
		schema, _ := json.Marshal(td.InputSchema)
		var inputSchema sdk.ToolInputSchemaParam
		_ = json.Unmarshal(schema, &inputSchema)
		params.Tools = append(params.Tools, sdk.ToolUnionParam{
			OfTool: &sdk.ToolParam{
				Name:        td.Name,
				Description: sdk.String(td.Description),
				InputSchema: inputSchema,
			},
		})
	}
	return &params, nil
}

func toAnthropicMessage(m *model.Message) sdk.MessageParam {
	role := sdk.MessageParamRoleUser
	if m.Role == model.ConversationRoleAssistant {
		role = sdk.MessageParamRoleAssistant
	}
	var blocks []sdk.ContentBlockParamUnion
	for _, part := range m.Parts {
		switch p := part.(type) {
		case model.TextPart:
			blocks = append(blocks, sdk.NewTextBlock(p.Text))
		case model.ToolResultPart:
			content, _ := json.Marshal(p.Content)
			blocks = append(blocks, sdk.NewToolResultBlock(p.ToolUseID, string(content), p.IsError))
		}
	}
	return sdk.MessageParam{Role: role, Content: blocks}
}

func translateResponse(msg *sdk.Message) (*model.Response, error) {
	out := &model.Response{
		StopReason: string(msg.StopReason),
		Usage: model.TokenUsage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
			TotalTokens:  int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
	var parts []model.Part
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case sdk.TextBlock:
			parts = append(parts, model.TextPart{Text: b.Text})
		case sdk.ThinkingBlock:
			parts = append(parts, model.ThinkingPart{Text: b.Thinking, Signature: b.Signature, Final: true})
		case sdk.ToolUseBlock:
			var input any
			_ = json.Unmarshal(b.Input, &input)
			parts = append(parts, model.ToolUsePart{ID: b.ID, Name: b.Name, Input: input})
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{ID: b.ID, Name: b.Name, Payload: json.RawMessage(b.Input)})
		}
	}
	out.Content = []model.Message{{Role: model.ConversationRoleAssistant, Parts: parts}}
	return out, nil
}

func isRateLimited(err error) bool {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
