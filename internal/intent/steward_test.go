package intent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	eventlogmem "github.com/mindscape-ai/core/internal/eventlog/inmem"
	"github.com/mindscape-ai/core/internal/intent/inmem"
	"github.com/mindscape-ai/core/internal/model"
	"github.com/mindscape-ai/core/internal/ports"
	"github.com/mindscape-ai/core/internal/telemetry"
)

// fixedEmbedding returns a pre-assigned vector per input text, looked up by
// exact text match, so tests can pin the cosine similarity between a signal
// and an existing card's title+description exactly.
type fixedEmbedding struct {
	vectors map[string][]float32
}

func (f fixedEmbedding) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := f.vectors[t]
		if !ok {
			return nil, errNoVectorFor(t)
		}
		out[i] = v
	}
	return out, nil
}

type errNoVectorFor string

func (e errNoVectorFor) Error() string { return "steward_test: no fixed vector for " + string(e) }

// noopStewardLLM never gets called in the dedup tests below (preScreen runs
// entirely without an LLM call); it panics if Decide unexpectedly reaches it.
type noopStewardLLM struct{}

func (noopStewardLLM) Chat(context.Context, string, *model.Request, ports.CancelToken) (*model.Response, error) {
	panic("steward_test: unexpected LLM call")
}

func newTestSteward(t *testing.T, embeddings ports.Embedding, llm ports.LLM) (*Steward, *inmem.CardStore, *inmem.SignalStore) {
	t.Helper()
	cards := inmem.NewCardStore()
	signals := inmem.NewSignalStore(100)
	events := eventlogmem.New(100)
	return NewSteward(llm, embeddings, cards, signals, events, telemetry.NewNoopLogger()), cards, signals
}

func newTestStewardWithCards(t *testing.T, cards *inmem.CardStore, embeddings ports.Embedding, llm ports.LLM) *Steward {
	t.Helper()
	signals := inmem.NewSignalStore(100)
	events := eventlogmem.New(100)
	return NewSteward(llm, embeddings, cards, signals, events, telemetry.NewNoopLogger())
}

func TestPreScreenFiltersSignalExactlyAtDupeThreshold(t *testing.T) {
	const workspaceID = "ws-1"
	cardTitle := "existing card"
	cardDesc := "already tracked"

	cards := inmem.NewCardStore()
	require.NoError(t, cards.Create(context.Background(), &Card{
		ID: "card-1", WorkspaceID: workspaceID, Title: cardTitle, Description: cardDesc, Status: CardStatusActive,
	}))

	sig := &Signal{ID: "sig-1", WorkspaceID: workspaceID, Text: "duplicate-ish signal"}

	cardVec := []float32{1, 0}
	sigVec := []float32{0.92, 0.39} // close to, but not exactly, parallel to cardVec

	embeddings := fixedEmbedding{vectors: map[string][]float32{
		sig.Text:                   sigVec,
		cardTitle + " " + cardDesc: cardVec,
	}}

	s := newTestStewardWithCards(t, cards, embeddings, noopStewardLLM{})

	// Derive the threshold from the pair's own computed similarity rather
	// than a hand-rounded literal, so the test exercises the ">=" boundary
	// exactly regardless of float rounding in cosineSimilarity itself.
	threshold := cosineSimilarity(sigVec, cardVec)

	out, err := s.preScreen(context.Background(), workspaceID, []*Signal{sig}, threshold)
	require.NoError(t, err)
	require.Empty(t, out, "a signal exactly at the dedup threshold must be treated as a duplicate and merged away")
}

func TestPreScreenKeepsSignalBelowDupeThreshold(t *testing.T) {
	const workspaceID = "ws-1"
	cardTitle := "existing card"
	cardDesc := "already tracked"

	cards := inmem.NewCardStore()
	require.NoError(t, cards.Create(context.Background(), &Card{
		ID: "card-1", WorkspaceID: workspaceID, Title: cardTitle, Description: cardDesc, Status: CardStatusActive,
	}))

	sig := &Signal{ID: "sig-1", WorkspaceID: workspaceID, Text: "an unrelated new signal"}

	cardVec := []float32{1, 0}
	sigVec := []float32{0, 1} // orthogonal: similarity 0, clearly below threshold

	embeddings := fixedEmbedding{vectors: map[string][]float32{
		sig.Text:                   sigVec,
		cardTitle + " " + cardDesc: cardVec,
	}}

	s := newTestStewardWithCards(t, cards, embeddings, noopStewardLLM{})

	out, err := s.preScreen(context.Background(), workspaceID, []*Signal{sig}, 0.92)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "sig-1", out[0].ID)
}

func TestApplyEmptyPendingProducesEmptyPlanAndNoCard(t *testing.T) {
	s, cards, _ := newTestSteward(t, fixedEmbedding{vectors: map[string][]float32{}}, noopStewardLLM{})

	plan, err := s.Apply(context.Background(), "ws-1", nil)
	require.NoError(t, err)
	require.Empty(t, plan.Ops)

	got, err := cards.List(context.Background(), "ws-1", CardStatusActive)
	require.NoError(t, err)
	require.Empty(t, got, "empty message/no pending signals must not create a card")
}

func TestApplyWithNoExistingCardsSkipsPreScreenAndCallsLLM(t *testing.T) {
	sig := &Signal{ID: "sig-1", WorkspaceID: "ws-1", Text: "new thing to track"}
	llm := &scriptedStewardLLM{responseJSON: `{"ops":[{"kind":"create_card","title":"New thing","description":"to track","priority":"medium"}]}`}

	s, cards, _ := newTestSteward(t, fixedEmbedding{vectors: map[string][]float32{}}, llm)

	plan, err := s.Apply(context.Background(), "ws-1", []*Signal{sig})
	require.NoError(t, err)
	require.Len(t, plan.Ops, 1)
	require.Equal(t, LayoutOpCreateCard, plan.Ops[0].Kind)

	got, err := cards.List(context.Background(), "ws-1", CardStatusActive)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "New thing", got[0].Title)
}

type scriptedStewardLLM struct {
	responseJSON string
}

func (s *scriptedStewardLLM) Chat(_ context.Context, _ string, _ *model.Request, _ ports.CancelToken) (*model.Response, error) {
	return &model.Response{Content: []model.Message{{Parts: []model.Part{model.TextPart{Text: s.responseJSON}}}}}, nil
}

func TestCosineSimilarityEdgeCases(t *testing.T) {
	require.Zero(t, cosineSimilarity(nil, []float32{1}))
	require.Zero(t, cosineSimilarity([]float32{1}, nil))
	require.Zero(t, cosineSimilarity([]float32{1, 2}, []float32{1}))
	require.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
	require.InDelta(t, float32(1.0), cosineSimilarity([]float32{1, 0}, []float32{1, 0}), 0.0001)
}
