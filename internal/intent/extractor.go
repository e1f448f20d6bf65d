package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/mindscape-ai/core/internal/model"
	"github.com/mindscape-ai/core/internal/ports"
	"github.com/mindscape-ai/core/internal/telemetry"
)

// extractorResponseSchemaJSON is the JSON Schema source (compiled by
// NewExtractor) that the extractor's FAST profile call must satisfy. It mirrors the teacher's planner typed-JSON
// response contract: a strict shape, never free text.
const extractorResponseSchemaJSON = `{
  "type": "object",
  "required": ["signals"],
  "properties": {
    "signals": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["text", "confidence"],
        "properties": {
          "text": {"type": "string"},
          "confidence": {"type": "number", "minimum": 0, "maximum": 1}
        }
      }
    }
  }
}`

type extractedSignal struct {
	Text       string  `json:"text"`
	Confidence float32 `json:"confidence"`
}

type extractorResponse struct {
	Signals []extractedSignal `json:"signals"`
}

// Extractor turns raw turn content into IntentSignals via a single FAST
// profile model call with no tool access. §4.1.
type Extractor struct {
	llm    ports.LLM
	events ports.EventLog
	log    telemetry.Logger
	schema *jsonschema.Schema
}

// NewExtractor constructs an Extractor. The capability-profile handle it
// uses is fixed at "fast" (§4.4 Capability Router resolves the concrete
// model).
func NewExtractor(llm ports.LLM, events ports.EventLog, log telemetry.Logger) (*Extractor, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("extractor_response.json", mustJSONAny(extractorResponseSchemaJSON)); err != nil {
		return nil, fmt.Errorf("intent: compile extractor schema: %w", err)
	}
	schema, err := compiler.Compile("extractor_response.json")
	if err != nil {
		return nil, fmt.Errorf("intent: compile extractor schema: %w", err)
	}
	return &Extractor{llm: llm, events: events, log: log, schema: schema}, nil
}

// Extract issues one model call over turnText and returns zero or more
// signals. On schema violation or provider error it returns an empty slice
// and writes a signal_extraction_failed event rather than raising — the
// extractor never blocks the caller's turn on its own failure.
func (e *Extractor) Extract(ctx context.Context, workspaceID, turnText string, source SignalSource) []*Signal {
	req := &model.Request{
		ModelClass: model.ModelClassFast,
		Messages: []*model.Message{
			{Role: model.ConversationRoleUser, Parts: []model.Part{model.TextPart{Text: turnText}}},
		},
		Schema: json.RawMessage(extractorResponseSchemaJSON),
	}
	resp, err := e.llm.Chat(ctx, "fast", req, nil)
	if err != nil {
		e.fail(ctx, workspaceID, "provider call failed", err)
		return nil
	}
	text := firstText(resp)
	var parsed extractorResponse
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		e.fail(ctx, workspaceID, "response not valid JSON", err)
		return nil
	}
	if err := e.schema.Validate(toAny(parsed)); err != nil {
		e.fail(ctx, workspaceID, "response failed schema validation", err)
		return nil
	}

	now := time.Now().UTC()
	out := make([]*Signal, 0, len(parsed.Signals))
	for _, s := range parsed.Signals {
		out = append(out, &Signal{
			WorkspaceID: workspaceID,
			Source:      source,
			Text:        s.Text,
			Confidence:  s.Confidence,
			CreatedAt:   now,
		})
	}
	return out
}

func (e *Extractor) fail(ctx context.Context, workspaceID, reason string, err error) {
	e.log.Warn(ctx, "intent signal extraction failed", "workspace_id", workspaceID, "reason", reason, "error", err)
	_ = e.events.Append(ctx, ports.Event{
		WorkspaceID: workspaceID,
		Kind:        "signal_extraction_failed",
		Message:     reason,
		Details:     map[string]any{"error": err.Error()},
		OccurredAt:  time.Now().UTC(),
	})
}

func firstText(resp *model.Response) string {
	for _, msg := range resp.Content {
		for _, part := range msg.Parts {
			if tp, ok := part.(model.TextPart); ok {
				return tp.Text
			}
		}
	}
	return ""
}

func toAny(v extractorResponse) any {
	b, _ := json.Marshal(v)
	var out any
	_ = json.Unmarshal(b, &out)
	return out
}

func mustJSONAny(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		panic(err)
	}
	return v
}
