// Package bedrock provides a model.Client implementation backed by the AWS
// Bedrock Converse API, adapted from the teacher's features/model/bedrock
// client: split conversational messages, encode tool schemas into Bedrock's
// ToolConfiguration, and translate Converse responses back into the
// generic model structures.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/mindscape-ai/core/internal/model"
)

// RuntimeClient mirrors the subset of the AWS Bedrock runtime client
// required by the adapter.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Options configures the Bedrock adapter's model selection per profile.
type Options struct {
	Runtime       RuntimeClient
	FastModel     string
	StandardModel string
	PreciseModel  string
	MaxTokens     int32
}

// Client implements model.Client over AWS Bedrock Converse.
type Client struct {
	runtime RuntimeClient
	opts    Options
}

// New builds a Bedrock-backed model client.
func New(opts Options) (*Client, error) {
	if opts.Runtime == nil {
		return nil, errors.New("bedrock: runtime client is required")
	}
	if opts.StandardModel == "" {
		return nil, errors.New("bedrock: standard model identifier is required")
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}
	return &Client{runtime: opts.Runtime, opts: opts}, nil
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

// Complete issues a Converse request and translates the response into
// model-friendly structures.
func (c *Client) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = c.modelFor(req.ModelClass)
	}

	var msgs []brtypes.Message
	for _, m := range req.Messages {
		if m.Role == model.ConversationRoleSystem {
			continue
		}
		msgs = append(msgs, toBedrockMessage(m))
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  &modelID,
		Messages: msgs,
		InferenceConfig: &brtypes.InferenceConfiguration{
			MaxTokens: awsInt32(c.opts.MaxTokens),
		},
	}
	if len(req.Tools) > 0 {
		input.ToolConfig = &brtypes.ToolConfiguration{Tools: toToolSpecs(req.Tools)}
	}

	out, err := c.runtime.Converse(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("bedrock: converse: %w", err)
	}
	return translateResponse(out)
}

// Stream is unsupported by this adapter and always returns
// model.ErrStreamingUnsupported.
func (c *Client) Stream(ctx context.Context, req *model.Request) (model.Streamer, error) {
	return nil, model.ErrStreamingUnsupported
}

func toBedrockMessage(m *model.Message) brtypes.Message {
	role := brtypes.ConversationRoleUser
	if m.Role == model.ConversationRoleAssistant {
		role = brtypes.ConversationRoleAssistant
	}
	var blocks []brtypes.ContentBlock
	for _, part := range m.Parts {
		switch p := part.(type) {
		case model.TextPart:
			blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: p.Text})
		case model.ToolResultPart:
			content, _ := json.Marshal(p.Content)
			var doc any
			_ = json.Unmarshal(content, &doc)
			blocks = append(blocks, &brtypes.ContentBlockMemberToolResult{
				Value: brtypes.ToolResultBlock{
					ToolUseId: &p.ToolUseID,
					Content: []brtypes.ToolResultContentBlock{
						&brtypes.ToolResultContentBlockMemberJson{Value: document.NewLazyDocument(doc)},
					},
				},
			})
		}
	}
	return brtypes.Message{Role: role, Content: blocks}
}

func toToolSpecs(defs []*model.ToolDefinition) []brtypes.Tool {
	out := make([]brtypes.Tool, 0, len(defs))
	for _, td := range defs {
		out = append(out, &brtypes.ToolMemberToolSpec{
			Value: brtypes.ToolSpecification{
				Name:        &td.Name,
				Description: &td.Description,
				InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(td.InputSchema)},
			},
		})
	}
	return out
}

func translateResponse(out *bedrockruntime.ConverseOutput) (*model.Response, error) {
	resp := &model.Response{}
	if out.Usage != nil {
		resp.Usage = model.TokenUsage{
			InputTokens:  int(deref(out.Usage.InputTokens)),
			OutputTokens: int(deref(out.Usage.OutputTokens)),
			TotalTokens:  int(deref(out.Usage.TotalTokens)),
		}
	}
	resp.StopReason = string(out.StopReason)

	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return resp, nil
	}
	var parts []model.Part
	for _, block := range msg.Value.Content {
		switch b := block.(type) {
		case *brtypes.ContentBlockMemberText:
			parts = append(parts, model.TextPart{Text: b.Value})
		case *brtypes.ContentBlockMemberToolUse:
			var input any
			_ = b.Value.Input.UnmarshalSmithyDocument(&input)
			id := deref(b.Value.ToolUseId)
			name := deref(b.Value.Name)
			payload, _ := json.Marshal(input)
			parts = append(parts, model.ToolUsePart{ID: id, Name: name, Input: input})
			resp.ToolCalls = append(resp.ToolCalls, model.ToolCall{ID: id, Name: name, Payload: payload})
		}
	}
	resp.Content = []model.Message{{Role: model.ConversationRoleAssistant, Parts: parts}}
	return resp, nil
}

func awsInt32(v int32) *int32 { return &v }

func deref[T any](v *T) T {
	if v == nil {
		var zero T
		return zero
	}
	return *v
}
