package frontdoor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mindscape-ai/core/internal/decision"
	eventlogmem "github.com/mindscape-ai/core/internal/eventlog/inmem"
	"github.com/mindscape-ai/core/internal/intent"
	intentmem "github.com/mindscape-ai/core/internal/intent/inmem"
	"github.com/mindscape-ai/core/internal/model"
	"github.com/mindscape-ai/core/internal/ports"
	"github.com/mindscape-ai/core/internal/telemetry"
)

// stageScriptedLLM answers every Chat call with the next entry in
// responses, in order, regardless of handle, letting a single fake stand
// in for the extractor's FAST call, the steward's STANDARD call, and the
// decision pipeline's layer1/layer2/layer3 calls.
type stageScriptedLLM struct {
	responses []string
	i         int
}

func (s *stageScriptedLLM) Chat(context.Context, string, *model.Request, ports.CancelToken) (*model.Response, error) {
	resp := s.responses[s.i]
	if s.i < len(s.responses)-1 {
		s.i++
	}
	return &model.Response{Content: []model.Message{{Parts: []model.Part{model.TextPart{Text: resp}}}}}, nil
}

type noCandidates struct{}

func (noCandidates) Candidates(context.Context, string, []string) ([]decision.Candidate, error) {
	return nil, nil
}

func TestHandleMessageEmptyTextYieldsNoSignalsAndNoCard(t *testing.T) {
	llm := &stageScriptedLLM{responses: []string{
		`{"signals":[]}`,           // extractor
		`{"interaction_type":"qa"}`, // decision layer1
	}}
	events := eventlogmem.New(16)
	signals := intentmem.NewSignalStore(16)
	cards := intentmem.NewCardStore()
	log := telemetry.NewNoopLogger()

	extractor, err := intent.NewExtractor(llm, events, log)
	require.NoError(t, err)
	steward := intent.NewSteward(llm, nil, cards, signals, events, log)
	pipeline := decision.New(llm, noCandidates{})

	door := New(extractor, steward, pipeline, signals, cards)

	result, err := door.HandleMessage(context.Background(), "ws-1", "")
	require.NoError(t, err)
	require.Empty(t, result.Signals, "empty message → no signals")
	require.Empty(t, result.Plan.Ops)
	require.Equal(t, decision.KindQA, result.Decision.Kind)

	got, err := cards.List(context.Background(), "ws-1", intent.CardStatusActive)
	require.NoError(t, err)
	require.Empty(t, got, "empty message must not create a card")
}

func TestHandleMessageExtractsSignalAndAppliesLayout(t *testing.T) {
	llm := &stageScriptedLLM{responses: []string{
		`{"signals":[{"text":"wants weekly report automated","confidence":0.9}]}`, // extractor
		`{"ops":[{"kind":"create_card","title":"Automate weekly report","description":"wants weekly report automated","priority":"medium"}]}`, // steward decide
		`{"interaction_type":"qa"}`, // decision layer1
	}}
	events := eventlogmem.New(16)
	signals := intentmem.NewSignalStore(16)
	cards := intentmem.NewCardStore()
	log := telemetry.NewNoopLogger()

	extractor, err := intent.NewExtractor(llm, events, log)
	require.NoError(t, err)
	steward := intent.NewSteward(llm, nil, cards, signals, events, log)
	pipeline := decision.New(llm, noCandidates{})

	door := New(extractor, steward, pipeline, signals, cards)

	result, err := door.HandleMessage(context.Background(), "ws-1", "I want the weekly report automated")
	require.NoError(t, err)
	require.Len(t, result.Signals, 1)
	require.Len(t, result.Plan.Ops, 1)

	got, err := cards.List(context.Background(), "ws-1", intent.CardStatusActive)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "Automate weekly report", got[0].Title)
}
