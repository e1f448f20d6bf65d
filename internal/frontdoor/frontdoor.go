// Package frontdoor composes the Intent Extractor, Intent Steward, and
// Execution Decision Pipeline into the single entry point a raw user
// message passes through: extraction emits signals, the Steward promotes
// or dedupes them into IntentCards, and the Decision Pipeline classifies
// the turn as qa, manage-settings, or start-playbook. §2's control flow
// names this sequence directly; no one of the three packages owns it, so
// it lives here as their composition.
package frontdoor

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mindscape-ai/core/internal/decision"
	"github.com/mindscape-ai/core/internal/intent"
)

// recentSignalWindow bounds how many previously-pending signals accompany
// a new turn's extraction into the Steward's dedup pre-screen.
const recentSignalWindow = 50

// Door is the message-driven front door.
type Door struct {
	extractor *intent.Extractor
	steward   *intent.Steward
	decision  *decision.Pipeline
	signals   intent.SignalStore
	cards     intent.CardStore
}

// New constructs a Door over the three pipelines and the stores their
// output is read back from.
func New(extractor *intent.Extractor, steward *intent.Steward, dec *decision.Pipeline, signals intent.SignalStore, cards intent.CardStore) *Door {
	return &Door{extractor: extractor, steward: steward, decision: dec, signals: signals, cards: cards}
}

// Result is one message turn's combined output across all three stages.
type Result struct {
	Signals  []*intent.Signal
	Plan     *intent.LayoutPlan
	Decision decision.Decision
}

// HandleMessage runs text through extraction, governance, and decision in
// sequence and returns every stage's output. A message that yields no
// signals still runs the Decision Pipeline: §2's control flow evaluates
// qa/manage/execute regardless of whether governance produced a card.
func (d *Door) HandleMessage(ctx context.Context, workspaceID, text string) (*Result, error) {
	signals := d.extractor.Extract(ctx, workspaceID, text, intent.SignalSourceMessage)
	for _, s := range signals {
		s.ID = uuid.NewString()
		if err := d.signals.Append(ctx, s); err != nil {
			return nil, fmt.Errorf("frontdoor: append signal: %w", err)
		}
	}

	pending, err := d.signals.Recent(ctx, workspaceID, recentSignalWindow)
	if err != nil {
		return nil, fmt.Errorf("frontdoor: recent signals: %w", err)
	}
	plan, err := d.steward.Apply(ctx, workspaceID, pending)
	if err != nil {
		return nil, fmt.Errorf("frontdoor: steward apply: %w", err)
	}

	visible, err := d.cards.List(ctx, workspaceID, intent.CardStatusActive)
	if err != nil {
		return nil, fmt.Errorf("frontdoor: list cards: %w", err)
	}
	dec, err := d.decision.Decide(ctx, workspaceID, text, visible)
	if err != nil {
		return nil, fmt.Errorf("frontdoor: decide: %w", err)
	}

	return &Result{Signals: signals, Plan: plan, Decision: dec}, nil
}
