// Package mongo wires ports.EventLog to MongoDB for the remote/multi-tenant
// adapter, grounded on the teacher's features/runlog/mongo store shape:
// a thin Store that works on a single *mongo.Collection directly.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/mindscape-ai/core/internal/ports"
)

const (
	defaultCollection = "events"
	defaultTimeout     = 5 * time.Second
)

// Options configures the Mongo-backed Event Log.
type Options struct {
	Client     *mongo.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

// Store implements ports.EventLog by delegating to a MongoDB collection
// indexed by (workspace_id, occurred_at).
type Store struct {
	coll    *mongo.Collection
	timeout time.Duration
}

type eventDocument struct {
	ID          bson.ObjectID  `bson:"_id,omitempty"`
	EventID     string         `bson:"event_id"`
	WorkspaceID string         `bson:"workspace_id"`
	ExecutionID string         `bson:"execution_id,omitempty"`
	Kind        string         `bson:"kind"`
	Message     string         `bson:"message"`
	Details     map[string]any `bson:"details,omitempty"`
	OccurredAt  time.Time      `bson:"occurred_at"`
}

// NewStore builds a Mongo-backed Event Log and ensures its indexes exist.
func NewStore(ctx context.Context, opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("eventlog/mongo: client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("eventlog/mongo: database name is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	coll := opts.Client.Database(opts.Database).Collection(collName)

	ictx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	index := mongo.IndexModel{
		Keys: bson.D{{Key: "workspace_id", Value: 1}, {Key: "occurred_at", Value: 1}},
	}
	if _, err := coll.Indexes().CreateOne(ictx, index); err != nil {
		return nil, fmt.Errorf("eventlog/mongo: ensure index: %w", err)
	}
	return &Store{coll: coll, timeout: timeout}, nil
}

// Append inserts one event document.
func (s *Store) Append(ctx context.Context, event ports.Event) error {
	if event.WorkspaceID == "" {
		return errors.New("eventlog/mongo: workspace_id is required")
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc := eventDocument{
		EventID:     event.ID,
		WorkspaceID: event.WorkspaceID,
		ExecutionID: event.ExecutionID,
		Kind:        event.Kind,
		Message:     event.Message,
		Details:     event.Details,
		OccurredAt:  event.OccurredAt.UTC(),
	}
	_, err := s.coll.InsertOne(cctx, doc)
	return err
}

// Range returns events for workspaceID at or after since, ordered oldest
// first, capped at limit (0 means unbounded).
func (s *Store) Range(ctx context.Context, workspaceID string, since time.Time, limit int) ([]ports.Event, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	filter := bson.M{"workspace_id": workspaceID}
	if !since.IsZero() {
		filter["occurred_at"] = bson.M{"$gte": since.UTC()}
	}
	findOpts := options.Find().SetSort(bson.D{{Key: "occurred_at", Value: 1}})
	if limit > 0 {
		findOpts.SetLimit(int64(limit))
	}
	cur, err := s.coll.Find(cctx, filter, findOpts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(cctx)

	var out []ports.Event
	for cur.Next(cctx) {
		var doc eventDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, ports.Event{
			ID:          doc.EventID,
			WorkspaceID: doc.WorkspaceID,
			ExecutionID: doc.ExecutionID,
			Kind:        doc.Kind,
			Message:     doc.Message,
			Details:     doc.Details,
			OccurredAt:  doc.OccurredAt,
		})
	}
	return out, cur.Err()
}

// Subscribe is not supported directly by the Mongo store; live fan-out for
// the remote adapter runs over the Pulse-backed sink in
// internal/eventlog/pulse instead, which tails the same Append calls.
func (s *Store) Subscribe(ctx context.Context, workspaceID string) (<-chan ports.Event, func(), error) {
	return nil, nil, errors.New("eventlog/mongo: Subscribe unsupported, use eventlog/pulse")
}
