// Package intent models the Intent Governance Pipeline's data types:
// disposable IntentSignals, user-visible IntentCards, semantic
// IntentClusters, and the IntentLayoutPlan the Steward applies atomically.
package intent

import (
	"context"
	"errors"
	"time"
)

// SignalSource identifies where an IntentSignal originated.
type SignalSource string

const (
	SignalSourceMessage       SignalSource = "message"
	SignalSourceFile          SignalSource = "file"
	SignalSourceToolOutput    SignalSource = "tool_output"
	SignalSourcePlaybookEvent SignalSource = "playbook_event"
)

// CardPriority is an IntentCard's user-visible priority.
type CardPriority string

const (
	CardPriorityHigh   CardPriority = "high"
	CardPriorityMedium CardPriority = "medium"
	CardPriorityLow    CardPriority = "low"
)

// CardStatus is an IntentCard's lifecycle state. Cards are never hard
// deleted; termination sets status to dismissed.
type CardStatus string

const (
	CardStatusActive    CardStatus = "active"
	CardStatusCompleted CardStatus = "completed"
	CardStatusDismissed CardStatus = "dismissed"
)

// Signal is an internal, disposable extraction from a single turn. It
// carries no user visibility and is garbage-collectable once governance
// has run over it.
type Signal struct {
	ID          string
	WorkspaceID string
	Source      SignalSource
	Text        string
	Confidence  float32
	CreatedAt   time.Time
}

// Card is a user-visible, committed intent. Created by the Steward only;
// modified by the Steward or explicit user action; terminated by setting
// Status to dismissed, never hard-deleted.
type Card struct {
	ID          string
	WorkspaceID string
	Title       string
	Description string
	Priority    CardPriority
	Status      CardStatus
	ClusterID   string
	Playbooks   []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Cluster is a semantic grouping of cards. Its identity is not promised
// across rebuilds; it is rebuildable from scratch from cards at any time.
type Cluster struct {
	ID        string
	Label     string
	Centroid  []float32
	MemberIDs []string
}

// LayoutOp is one operation in an IntentLayoutPlan.
type LayoutOp struct {
	Kind           LayoutOpKind
	SignalID       string
	CardID         string
	Title          string
	Description    string
	Priority       CardPriority
}

// LayoutOpKind discriminates the four operations a Steward turn can emit.
type LayoutOpKind string

const (
	LayoutOpCreateCard     LayoutOpKind = "create_card"
	LayoutOpUpdateCard     LayoutOpKind = "update_card"
	LayoutOpKeepSignalOnly LayoutOpKind = "keep_signal_only"
	LayoutOpDismissSignal  LayoutOpKind = "dismiss_signal"
)

// LayoutPlan is the Steward's per-turn output, applied atomically by the
// transactional writer (§5 Ordering guarantees: one writer per workspace).
type LayoutPlan struct {
	WorkspaceID string
	Ops         []LayoutOp
}

// ErrCardNotFound indicates the requested card does not exist.
var ErrCardNotFound = errors.New("intent: card not found")

// ErrSignalNotFound indicates the requested signal does not exist.
var ErrSignalNotFound = errors.New("intent: signal not found")

// SignalStore persists IntentSignals. Signals are bounded per workspace
// (ring buffer, §6 persisted state layout).
type SignalStore interface {
	Append(ctx context.Context, s *Signal) error
	Recent(ctx context.Context, workspaceID string, limit int) ([]*Signal, error)
	Delete(ctx context.Context, workspaceID, signalID string) error
}

// CardStore persists IntentCards.
type CardStore interface {
	Create(ctx context.Context, c *Card) error
	Get(ctx context.Context, workspaceID, cardID string) (*Card, error)
	Update(ctx context.Context, c *Card) error
	List(ctx context.Context, workspaceID string, status CardStatus) ([]*Card, error)
}

// ClusterStore persists IntentClusters.
type ClusterStore interface {
	Replace(ctx context.Context, workspaceID string, clusters []*Cluster) error
	List(ctx context.Context, workspaceID string) ([]*Cluster, error)
}
