// Package hash implements ports.Embedding with the hashing trick: each text
// is tokenized, every token hashed into a fixed-width signed accumulator
// vector (Weinberger et al.'s feature hashing, the same technique behind
// vowpal wabbit and scikit-learn's HashingVectorizer), and the result
// L2-normalized so cosine similarity between two embeddings reflects token
// overlap. It needs no model API and no network call, so it is always
// available as the Intent Steward's and Intent Clusterer's embedding
// backend when no hosted provider is configured. §4.2, §4.9.
package hash

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// DefaultDimensions is the accumulator width used when Dimensions is unset.
// Large enough that unrelated short phrases rarely collide, small enough
// that cosineSimilarity stays cheap at Steward-call volume.
const DefaultDimensions = 256

// Embedder implements ports.Embedding via feature hashing.
type Embedder struct {
	dimensions int
}

// New constructs an Embedder. dimensions <= 0 selects DefaultDimensions.
func New(dimensions int) *Embedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &Embedder{dimensions: dimensions}
}

// Embed implements ports.Embedding. It never returns an error: hashing is a
// pure function of its input with no external dependency to fail.
func (e *Embedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embedOne(t)
	}
	return out, nil
}

func (e *Embedder) embedOne(text string) []float32 {
	vec := make([]float32, e.dimensions)
	for _, tok := range tokenize(text) {
		idx, sign := hashToken(tok, e.dimensions)
		vec[idx] += sign
	}
	normalize(vec)
	return vec
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}

// hashToken maps tok to a bucket index and a +1/-1 sign, the standard
// feature-hashing trick for making collisions unbiased in expectation
// rather than purely additive.
func hashToken(tok string, dimensions int) (int, float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(tok))
	sum := h.Sum64()
	idx := int(sum % uint64(dimensions))

	signHash := fnv.New32a()
	_, _ = signHash.Write([]byte("sign:" + tok))
	if signHash.Sum32()%2 == 0 {
		return idx, 1
	}
	return idx, -1
}

func normalize(vec []float32) {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range vec {
		vec[i] /= norm
	}
}
