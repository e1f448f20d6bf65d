// Package model defines the provider-agnostic message and streaming types
// used by the Intent Extractor, Intent Steward, Execution Decision Pipeline,
// and Playbook Runtime to talk to LLM providers through the Capability
// Router. Messages are modeled as typed parts (text, thinking, tool
// use/result) rather than flattened strings so the runtime can exchange
// stable typed JSON between phases.
package model

import (
	"context"
	"encoding/json"
	"errors"
)

// ConversationRole is the role for a message in a conversation.
type ConversationRole string

const (
	ConversationRoleSystem    ConversationRole = "system"
	ConversationRoleUser      ConversationRole = "user"
	ConversationRoleAssistant ConversationRole = "assistant"
)

type (
	// Part is a marker interface implemented by every message content block.
	Part interface{ isPart() }

	// TextPart is a plain text content block.
	TextPart struct {
		Text string
	}

	// ThinkingPart carries provider-issued reasoning content. Callers treat
	// this as opaque metadata surfaced according to UI policy; it is never
	// required for correctness of the IR.
	ThinkingPart struct {
		Text      string
		Signature string
		Final     bool
	}

	// ToolUsePart declares a tool invocation requested by the model. Tool
	// Dispatch (§4.8) turns these into concrete invocations and correlates
	// results via ToolResultPart.ToolUseID.
	ToolUsePart struct {
		ID    string
		Name  string
		Input any
	}

	// ToolResultPart carries a tool result back to the model on a
	// subsequent turn.
	ToolResultPart struct {
		ToolUseID string
		Content   any
		IsError   bool
	}

	// CacheCheckpointPart marks a prompt-cache boundary. Providers that do
	// not support caching ignore it.
	CacheCheckpointPart struct{}

	// Message is a single chat message: an ordered list of parts under one
	// role, plus optional provider/application metadata.
	Message struct {
		Role  ConversationRole
		Parts []Part
		Meta  map[string]any
	}

	// ToolDefinition describes a tool exposed to the model.
	ToolDefinition struct {
		Name        string
		Description string
		InputSchema any
	}

	// ToolCall is a requested tool invocation from the model.
	ToolCall struct {
		// Name is the tool identifier requested by the model.
		Name string
		// Payload is the canonical JSON arguments supplied by the model.
		// Provider adapters MUST populate this as canonical json.RawMessage;
		// the runtime treats it as opaque JSON.
		Payload json.RawMessage
		// ID is an optional provider-issued identifier for the tool call.
		ID string
	}

	// ToolChoiceMode controls how the model is allowed to use tools for a
	// request.
	ToolChoiceMode string

	// ToolChoice configures optional tool-use behavior for a Request. A nil
	// ToolChoice lets the provider use its default (typically auto).
	ToolChoice struct {
		Mode ToolChoiceMode
		Name string
	}

	// TokenUsage tracks token counts for a single model call; it feeds cost
	// governance (§4.6).
	TokenUsage struct {
		InputTokens      int
		OutputTokens     int
		TotalTokens      int
		CacheReadTokens  int
		CacheWriteTokens int
	}

	// Request captures the inputs for one model invocation.
	Request struct {
		RunID       string
		Model       string
		ModelClass  ModelClass
		Messages    []*Message
		Temperature float32
		Tools       []*ToolDefinition
		ToolChoice  *ToolChoice
		MaxTokens   int
		Stream      bool
		Thinking    *ThinkingOptions
		Cache       *CacheOptions
		// Schema, when non-nil, forces the provider to return JSON validating
		// against this JSON Schema. The Intent Extractor, Intent Steward, and
		// Execution Decision Pipeline all rely on this for their typed JSON
		// contracts.
		Schema any
	}

	// Response is the result of a non-streaming invocation.
	Response struct {
		Content   []Message
		ToolCalls []ToolCall
		Usage     TokenUsage
		StopReason string
	}

	// Chunk is a single streaming event from the model.
	Chunk struct {
		Type       string
		Message    *Message
		Thinking   string
		ToolCall   *ToolCall
		UsageDelta *TokenUsage
		StopReason string
	}

	// ThinkingOptions configures provider reasoning behavior.
	ThinkingOptions struct {
		Enable       bool
		Interleaved  bool
		BudgetTokens int
	}

	// CacheOptions configures prompt caching. The Capability Router does not
	// set it; a Request carries whatever Cache its caller supplies.
	CacheOptions struct {
		AfterSystem bool
		AfterTools  bool
	}

	// ModelClass identifies a model family independent of a concrete
	// provider identifier.
	ModelClass string

	// Client is the provider-agnostic model client. Capability Router
	// adapters (Anthropic, OpenAI, Bedrock) implement this.
	Client interface {
		Complete(ctx context.Context, req *Request) (*Response, error)
		Stream(ctx context.Context, req *Request) (Streamer, error)
	}

	// Streamer delivers incremental model output. Callers drain Recv until
	// io.EOF or a terminal error, then Close.
	Streamer interface {
		Recv() (Chunk, error)
		Close() error
		Metadata() map[string]any
	}
)

const (
	ToolChoiceModeAuto ToolChoiceMode = "auto"
	ToolChoiceModeNone ToolChoiceMode = "none"
	ToolChoiceModeAny  ToolChoiceMode = "any"
	ToolChoiceModeTool ToolChoiceMode = "tool"
)

const (
	ChunkTypeText      = "text"
	ChunkTypeToolCall  = "tool_call"
	ChunkTypeThinking  = "thinking"
	ChunkTypeUsage     = "usage"
	ChunkTypeStop      = "stop"
)

const (
	// ModelClassFast backs the FAST capability profile.
	ModelClassFast ModelClass = "fast"
	// ModelClassStandard backs the STANDARD capability profile.
	ModelClassStandard ModelClass = "standard"
	// ModelClassPrecise backs the PRECISE capability profile.
	ModelClassPrecise ModelClass = "precise"
)

// ErrStreamingUnsupported indicates the provider does not support streaming.
var ErrStreamingUnsupported = errors.New("model: streaming not supported")

// ErrRateLimited indicates the provider rejected the request after
// exhausting configured retries. Callers must not retry in a tight loop.
var ErrRateLimited = errors.New("model: rate limited")

func (TextPart) isPart()           {}
func (ThinkingPart) isPart()       {}
func (ToolUsePart) isPart()        {}
func (ToolResultPart) isPart()     {}
func (CacheCheckpointPart) isPart() {}
