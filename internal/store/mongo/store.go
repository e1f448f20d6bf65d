// Package mongo wires runtime.Store to MongoDB for the remote
// multi-tenant adapter, grounded on internal/eventlog/mongo's shape: a
// thin Store delegating to a single collection, storing each
// ExecutionSession as one document rather than normalizing its step list
// into a child collection, mirroring internal/store/sqlite's
// one-document-per-session choice for the same reason (§4.6's step list
// is always read and written as a unit).
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/mindscape-ai/core/internal/runtime"
)

const (
	defaultCollection = "execution_sessions"
	defaultTimeout    = 5 * time.Second
)

// Options configures the Mongo-backed session Store.
type Options struct {
	Client     *mongo.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

// Store implements runtime.Store over a MongoDB collection keyed by
// execution_id, indexed additionally by workspace_id for ListByWorkspace.
type Store struct {
	coll    *mongo.Collection
	timeout time.Duration
}

type sessionDocument struct {
	ExecutionID string                    `bson:"_id"`
	WorkspaceID string                    `bson:"workspace_id"`
	Status      string                    `bson:"status"`
	Session     *runtime.ExecutionSession `bson:"session"`
}

// Open builds a Mongo-backed Store and ensures its indexes exist.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("store/mongo: client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("store/mongo: database name is required")
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
		Keys: bson.D{{Key: "workspace_id", Value: 1}},
	}
	if _, err := coll.Indexes().CreateOne(ictx, index); err != nil {
		return nil, fmt.Errorf("store/mongo: ensure index: %w", err)
	}
	return &Store{coll: coll, timeout: timeout}, nil
}

// ErrNotFound indicates no session exists for the requested execution ID.
var ErrNotFound = errors.New("store/mongo: execution session not found")

// Create implements runtime.Store.
func (s *Store) Create(ctx context.Context, session *runtime.ExecutionSession) error {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	doc := sessionDocument{
		ExecutionID: session.ExecutionID,
		WorkspaceID: session.WorkspaceID,
		Status:      string(session.Status),
		Session:     session,
	}
	_, err := s.coll.InsertOne(cctx, doc)
	if err != nil {
		return fmt.Errorf("store/mongo: insert session %q: %w", session.ExecutionID, err)
	}
	return nil
}

// Update implements runtime.Store, rejecting the write if the stored
// session has already reached a terminal state.
func (s *Store) Update(ctx context.Context, session *runtime.ExecutionSession) error {
	existing, err := s.Get(ctx, session.ExecutionID)
	if err != nil {
		return err
	}
	if existing.Status.Terminal() {
		return runtime.ErrTerminal
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	filter := bson.M{"_id": session.ExecutionID}
	update := bson.M{"$set": bson.M{
		"status":  string(session.Status),
		"session": session,
	}}
	if _, err := s.coll.UpdateOne(cctx, filter, update); err != nil {
		return fmt.Errorf("store/mongo: update session %q: %w", session.ExecutionID, err)
	}
	return nil
}

// Get implements runtime.Store.
func (s *Store) Get(ctx context.Context, executionID string) (*runtime.ExecutionSession, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	var doc sessionDocument
	err := s.coll.FindOne(cctx, bson.M{"_id": executionID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store/mongo: get session %q: %w", executionID, err)
	}
	return doc.Session, nil
}

// ListByWorkspace implements runtime.Store.
func (s *Store) ListByWorkspace(ctx context.Context, workspaceID string) ([]*runtime.ExecutionSession, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	cur, err := s.coll.Find(cctx, bson.M{"workspace_id": workspaceID}, options.Find())
	if err != nil {
		return nil, fmt.Errorf("store/mongo: list workspace %q: %w", workspaceID, err)
	}
	defer cur.Close(cctx)

	var out []*runtime.ExecutionSession
	for cur.Next(cctx) {
		var doc sessionDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("store/mongo: decode session row: %w", err)
		}
		out = append(out, doc.Session)
	}
	return out, cur.Err()
}
