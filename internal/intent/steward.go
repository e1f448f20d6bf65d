package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mindscape-ai/core/internal/model"
	"github.com/mindscape-ai/core/internal/ports"
	"github.com/mindscape-ai/core/internal/telemetry"
)

const stewardResponseSchemaJSON = `{
  "type": "object",
  "required": ["ops"],
  "properties": {
    "ops": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["kind"],
        "properties": {
          "kind": {"type": "string", "enum": ["create_card", "update_card", "keep_signal_only", "dismiss_signal"]},
          "signal_id": {"type": "string"},
          "card_id": {"type": "string"},
          "title": {"type": "string"},
          "description": {"type": "string"},
          "priority": {"type": "string", "enum": ["high", "medium", "low"]}
        }
      }
    }
  }
}`

type stewardOp struct {
	Kind        string `json:"kind"`
	SignalID    string `json:"signal_id,omitempty"`
	CardID      string `json:"card_id,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
}

type stewardResponse struct {
	Ops []stewardOp `json:"ops"`
}

// Steward promotes IntentSignals into IntentCards. Stage A is a plain-Go
// cosine-similarity pre-screen over embeddings (no LLM call); Stage B
// issues one STANDARD profile call to decide the LayoutPlan. §4.2.
//
// writeMu enforces the per-workspace single-writer invariant (§5 Ordering
// guarantees): only one LayoutPlan application is in flight per workspace
// at a time.
type Steward struct {
	llm        ports.LLM
	embeddings ports.Embedding
	cards      CardStore
	signals    SignalStore
	events     ports.EventLog
	log        telemetry.Logger

	writeMu sync.Map // workspace_id -> *sync.Mutex
}

// NewSteward constructs a Steward.
func NewSteward(llm ports.LLM, embeddings ports.Embedding, cards CardStore, signals SignalStore, events ports.EventLog, log telemetry.Logger) *Steward {
	return &Steward{llm: llm, embeddings: embeddings, cards: cards, signals: signals, events: events, log: log}
}

func (s *Steward) lockFor(workspaceID string) func() {
	v, _ := s.writeMu.LoadOrStore(workspaceID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// preScreen returns signals whose similarity to any existing active card's
// title+description falls below dupeThreshold, i.e. signals likely to carry
// new information rather than restate an existing card. No model call.
func (s *Steward) preScreen(ctx context.Context, workspaceID string, sigs []*Signal, dupeThreshold float32) ([]*Signal, error) {
	cards, err := s.cards.List(ctx, workspaceID, CardStatusActive)
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 || len(sigs) == 0 {
		return sigs, nil
	}

	texts := make([]string, 0, len(sigs)+len(cards))
	for _, sig := range sigs {
		texts = append(texts, sig.Text)
	}
	for _, c := range cards {
		texts = append(texts, c.Title+" "+c.Description)
	}
	vectors, err := s.embeddings.Embed(ctx, texts)
	if err != nil {
		return sigs, nil // embedding unavailable: fail open, let Stage B see everything
	}
	sigVecs, cardVecs := vectors[:len(sigs)], vectors[len(sigs):]

	var out []*Signal
	for i, sig := range sigs {
		novel := true
		for _, cv := range cardVecs {
			if cosineSimilarity(sigVecs[i], cv) >= dupeThreshold {
				novel = false
				break
			}
		}
		if novel {
			out = append(out, sig)
		}
	}
	return out, nil
}

// Apply runs Stage A + Stage B over pending signals and applies the
// resulting LayoutPlan atomically under the workspace's write lock.
func (s *Steward) Apply(ctx context.Context, workspaceID string, pending []*Signal) (*LayoutPlan, error) {
	unlock := s.lockFor(workspaceID)
	defer unlock()

	novel, err := s.preScreen(ctx, workspaceID, pending, 0.92)
	if err != nil {
		return nil, err
	}
	if len(novel) == 0 {
		return &LayoutPlan{WorkspaceID: workspaceID}, nil
	}

	plan, err := s.decide(ctx, workspaceID, novel)
	if err != nil {
		return nil, err
	}
	if err := s.applyPlan(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *Steward) decide(ctx context.Context, workspaceID string, sigs []*Signal) (*LayoutPlan, error) {
	payload, _ := json.Marshal(sigs)
	req := &model.Request{
		ModelClass: model.ModelClassStandard,
		Messages: []*model.Message{
			{Role: model.ConversationRoleUser, Parts: []model.Part{model.TextPart{Text: string(payload)}}},
		},
		Schema: json.RawMessage(stewardResponseSchemaJSON),
	}
	resp, err := s.llm.Chat(ctx, "standard", req, nil)
	if err != nil {
		return nil, fmt.Errorf("intent: steward model call: %w", err)
	}
	var parsed stewardResponse
	if err := json.Unmarshal([]byte(firstText(resp)), &parsed); err != nil {
		return nil, fmt.Errorf("intent: steward response not valid JSON: %w", err)
	}

	plan := &LayoutPlan{WorkspaceID: workspaceID}
	for _, op := range parsed.Ops {
		plan.Ops = append(plan.Ops, LayoutOp{
			Kind:        LayoutOpKind(op.Kind),
			SignalID:    op.SignalID,
			CardID:      op.CardID,
			Title:       op.Title,
			Description: op.Description,
			Priority:    CardPriority(op.Priority),
		})
	}
	return plan, nil
}

func (s *Steward) applyPlan(ctx context.Context, plan *LayoutPlan) error {
	now := time.Now().UTC()
	for _, op := range plan.Ops {
		switch op.Kind {
		case LayoutOpCreateCard:
			c := &Card{
				ID:          uuid.NewString(),
				WorkspaceID: plan.WorkspaceID,
				Title:       op.Title,
				Description: op.Description,
				Priority:    op.Priority,
				Status:      CardStatusActive,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := s.cards.Create(ctx, c); err != nil {
				return err
			}
		case LayoutOpUpdateCard:
			c, err := s.cards.Get(ctx, plan.WorkspaceID, op.CardID)
			if err != nil {
				return err
			}
			if op.Title != "" {
				c.Title = op.Title
			}
			if op.Description != "" {
				c.Description = op.Description
			}
			if op.Priority != "" {
				c.Priority = op.Priority
			}
			c.UpdatedAt = now
			if err := s.cards.Update(ctx, c); err != nil {
				return err
			}
		case LayoutOpDismissSignal:
			_ = s.signals.Delete(ctx, plan.WorkspaceID, op.SignalID)
		case LayoutOpKeepSignalOnly:
			// No-op: the signal remains in the ring buffer, unpromoted.
		}
	}
	_ = s.events.Append(ctx, ports.Event{
		WorkspaceID: plan.WorkspaceID,
		Kind:        "intent_layout_applied",
		Message:     fmt.Sprintf("applied %d layout ops", len(plan.Ops)),
		OccurredAt:  now,
	})
	return nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
