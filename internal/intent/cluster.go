package intent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/mindscape-ai/core/internal/model"
	"github.com/mindscape-ai/core/internal/ports"
)

// Clusterer groups cards into semantic clusters using the Embedding and
// VectorStore ports, with incremental agglomerative clustering implemented
// in plain Go (no clustering library in the retrieval pack fits this
// shape — see DESIGN.md). §4.9.
type Clusterer struct {
	embeddings ports.Embedding
	vectors    ports.VectorStore
	llm        ports.LLM
	clusters   ClusterStore

	cohesionThreshold float32
}

// NewClusterer constructs a Clusterer. cohesionThreshold is the minimum
// cosine similarity a card must have to an existing cluster's centroid to
// join it; below that, it seeds a new cluster.
func NewClusterer(embeddings ports.Embedding, vectors ports.VectorStore, llm ports.LLM, clusters ClusterStore, cohesionThreshold float32) *Clusterer {
	if cohesionThreshold <= 0 {
		cohesionThreshold = 0.8
	}
	return &Clusterer{embeddings: embeddings, vectors: vectors, llm: llm, clusters: clusters, cohesionThreshold: cohesionThreshold}
}

// Cluster rebuilds all IntentClusters for a workspace from its active
// cards. Cluster identity is not promised across rebuilds (§3).
func (c *Clusterer) Cluster(ctx context.Context, workspaceID string, cards []*Card) ([]*Cluster, error) {
	if len(cards) == 0 {
		_ = c.clusters.Replace(ctx, workspaceID, nil)
		return nil, nil
	}

	texts := make([]string, len(cards))
	for i, card := range cards {
		texts[i] = card.Title + " " + card.Description
	}
	vectors, err := c.embeddings.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("intent: embed cards for clustering: %w", err)
	}

	var clusters []*Cluster
	for i, card := range cards {
		best := -1
		var bestSim float32
		for ci, cl := range clusters {
			sim := cosineSimilarity(vectors[i], cl.Centroid)
			if sim >= c.cohesionThreshold && sim > bestSim {
				best, bestSim = ci, sim
			}
		}
		if best >= 0 {
			cl := clusters[best]
			n := len(cl.MemberIDs)
			cl.MemberIDs = append(cl.MemberIDs, card.ID)
			cl.Centroid = averageVectors(cl.Centroid, n, vectors[i])
			continue
		}
		clusters = append(clusters, &Cluster{
			ID:        uuid.NewString(),
			Centroid:  append([]float32(nil), vectors[i]...),
			MemberIDs: []string{card.ID},
		})
	}

	for _, cl := range clusters {
		cl.Label = c.nameCluster(ctx, cl, cards)
		if err := c.vectors.Upsert(ctx, workspaceID, cl.ID, cl.Centroid, map[string]any{"label": cl.Label}); err != nil {
			return nil, fmt.Errorf("intent: upsert cluster vector: %w", err)
		}
	}
	if err := c.clusters.Replace(ctx, workspaceID, clusters); err != nil {
		return nil, err
	}
	return clusters, nil
}

func (c *Clusterer) nameCluster(ctx context.Context, cl *Cluster, cards []*Card) string {
	titles := make([]string, 0, len(cl.MemberIDs))
	byID := make(map[string]*Card, len(cards))
	for _, card := range cards {
		byID[card.ID] = card
	}
	for _, id := range cl.MemberIDs {
		if card, ok := byID[id]; ok {
			titles = append(titles, card.Title)
		}
	}
	payload, _ := json.Marshal(titles)
	req := &model.Request{
		ModelClass: model.ModelClassFast,
		Messages: []*model.Message{
			{Role: model.ConversationRoleUser, Parts: []model.Part{model.TextPart{
				Text: "Give a short label (3-6 words) for a group of related intents with these titles: " + string(payload),
			}}},
		},
	}
	resp, err := c.llm.Chat(ctx, "fast", req, nil)
	if err != nil || resp == nil {
		if len(titles) > 0 {
			return titles[0]
		}
		return "Untitled cluster"
	}
	return firstText(resp)
}

// averageVectors folds next into a running average of n prior vectors.
func averageVectors(centroid []float32, n int, next []float32) []float32 {
	out := make([]float32, len(centroid))
	for i := range centroid {
		out[i] = (centroid[i]*float32(n) + next[i]) / float32(n+1)
	}
	return out
}
