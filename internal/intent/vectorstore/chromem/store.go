// Package chromem implements ports.VectorStore over an embedded
// philippgille/chromem-go database: one collection per workspace,
// storing each IntentCluster centroid as a precomputed-embedding
// Document so the Intent Clusterer's cosine-similarity cluster rebuild
// (§4.9) can store and search its centroids without standing up an
// external vector database for the local single-user adapter. The
// database is in memory (chromem.NewDB), so nothing survives a process
// restart.
package chromem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/mindscape-ai/core/internal/ports"
)

const metadataKey = "payload"

// Store implements ports.VectorStore, lazily creating one chromem
// collection per workspace on first use.
type Store struct {
	db *chromem.DB

	mu          sync.Mutex
	collections map[string]*chromem.Collection
}

// New constructs an empty, in-process Store.
func New() *Store {
	return &Store{db: chromem.NewDB(), collections: make(map[string]*chromem.Collection)}
}

// unusedEmbeddingFunc is passed to chromem collections that only ever
// receive precomputed embeddings (via Upsert's vector or QueryEmbedding);
// it is never invoked in that path, so returning an error if it is makes
// a caller that queries by raw text (unsupported by this adapter) fail
// loudly instead of silently re-embedding.
func unusedEmbeddingFunc(_ context.Context, _ string) ([]float32, error) {
	return nil, errors.New("store/chromem: text-based embedding is not supported, use precomputed vectors")
}

func (s *Store) collectionFor(workspaceID string) (*chromem.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if coll, ok := s.collections[workspaceID]; ok {
		return coll, nil
	}
	coll, err := s.db.GetOrCreateCollection(workspaceID, nil, unusedEmbeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("store/chromem: create collection for workspace %q: %w", workspaceID, err)
	}
	s.collections[workspaceID] = coll
	return coll, nil
}

// Upsert implements ports.VectorStore.
func (s *Store) Upsert(ctx context.Context, workspaceID, id string, vector []float32, metadata map[string]any) error {
	coll, err := s.collectionFor(workspaceID)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("store/chromem: encode metadata: %w", err)
	}
	doc := chromem.Document{
		ID:        id,
		Embedding: vector,
		Metadata:  map[string]string{metadataKey: string(encoded)},
	}
	if err := coll.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("store/chromem: upsert %q: %w", id, err)
	}
	return nil
}

// Search implements ports.VectorStore.
func (s *Store) Search(ctx context.Context, workspaceID string, vector []float32, topK int) ([]ports.VectorMatch, error) {
	coll, err := s.collectionFor(workspaceID)
	if err != nil {
		return nil, err
	}
	if n := coll.Count(); n == 0 {
		return nil, nil
	} else if topK > n {
		topK = n
	}
	results, err := coll.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("store/chromem: search: %w", err)
	}

	out := make([]ports.VectorMatch, 0, len(results))
	for _, r := range results {
		var metadata map[string]any
		if raw, ok := r.Metadata[metadataKey]; ok {
			_ = json.Unmarshal([]byte(raw), &metadata)
		}
		out = append(out, ports.VectorMatch{ID: r.ID, Score: r.Similarity, Metadata: metadata})
	}
	return out, nil
}

// Delete implements ports.VectorStore.
func (s *Store) Delete(ctx context.Context, workspaceID, id string) error {
	coll, err := s.collectionFor(workspaceID)
	if err != nil {
		return err
	}
	if err := coll.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("store/chromem: delete %q: %w", id, err)
	}
	return nil
}
