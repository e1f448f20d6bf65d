package decision

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mindscape-ai/core/internal/model"
	"github.com/mindscape-ai/core/internal/ports"
)

// scriptedLLM returns responseJSON for every call regardless of handle or
// request content, letting each layer be tested in isolation.
type scriptedLLM struct {
	responseJSON string
	err          error
	calls        []string
}

func (s *scriptedLLM) Chat(_ context.Context, handle string, _ *model.Request, _ ports.CancelToken) (*model.Response, error) {
	s.calls = append(s.calls, handle)
	if s.err != nil {
		return nil, s.err
	}
	return &model.Response{
		Content: []model.Message{{
			Role:  model.ConversationRoleAssistant,
			Parts: []model.Part{model.TextPart{Text: s.responseJSON}},
		}},
	}, nil
}

type fixedCandidates struct {
	cands []Candidate
	err   error
}

func (f fixedCandidates) Candidates(context.Context, string, []string) ([]Candidate, error) {
	return f.cands, f.err
}

func TestDecideQAInteractionType(t *testing.T) {
	llm := &scriptedLLM{responseJSON: `{"interaction_type":"qa"}`}
	p := New(llm, fixedCandidates{})

	d, err := p.Decide(context.Background(), "ws-1", "what does this playbook do?", nil)
	require.NoError(t, err)
	require.Equal(t, KindQA, d.Kind)
}

func TestDecideManageInteractionType(t *testing.T) {
	llm := &scriptedLLM{responseJSON: `{"interaction_type":"manage","target":"connections"}`}
	p := New(llm, fixedCandidates{})

	d, err := p.Decide(context.Background(), "ws-1", "disconnect my slack", nil)
	require.NoError(t, err)
	require.Equal(t, KindManageSettings, d.Kind)
	require.Equal(t, "connections", d.Target)
}

func TestDecideUnknownInteractionTypeDegradesToQA(t *testing.T) {
	llm := &scriptedLLM{responseJSON: `{"interaction_type":"gibberish"}`}
	p := New(llm, fixedCandidates{})

	d, err := p.Decide(context.Background(), "ws-1", "???", nil)
	require.NoError(t, err)
	require.Equal(t, KindQA, d.Kind)
}

func TestDecideExecuteWithNoCandidatesDegradesToQA(t *testing.T) {
	llm := &scriptedLLM{responseJSON: `{"interaction_type":"execute"}`}
	p := New(llm, fixedCandidates{})

	d, err := p.Decide(context.Background(), "ws-1", "onboard the new hire", nil)
	require.NoError(t, err)
	require.Equal(t, KindQA, d.Kind)
}

// execDecisionLLM answers layer1 with "execute" once, then layer2's domain
// tags, then layer3's candidate pick, keyed by call order.
type execDecisionLLM struct {
	layer3JSON string
	calls      int
}

func (e *execDecisionLLM) Chat(_ context.Context, _ string, _ *model.Request, _ ports.CancelToken) (*model.Response, error) {
	e.calls++
	var text string
	switch e.calls {
	case 1:
		text = `{"interaction_type":"execute"}`
	case 2:
		text = `{"domain_tags":["onboarding"]}`
	default:
		text = e.layer3JSON
	}
	return &model.Response{Content: []model.Message{{Parts: []model.Part{model.TextPart{Text: text}}}}}, nil
}

func TestDecideExecuteBelowMinScoreDegradesToQA(t *testing.T) {
	llm := &execDecisionLLM{layer3JSON: `{"code":"onboarding.welcome","score":0.1}`}
	cands := fixedCandidates{cands: []Candidate{{Code: "onboarding.welcome"}}}
	p := New(llm, cands)

	d, err := p.Decide(context.Background(), "ws-1", "onboard the new hire", nil)
	require.NoError(t, err)
	require.Equal(t, KindQA, d.Kind)
}

func TestDecideExecuteAboveMinScoreStartsPlaybook(t *testing.T) {
	llm := &execDecisionLLM{layer3JSON: `{"code":"onboarding.welcome","variant_id":"v2","score":0.9,"inputs":{"name":"Alex"}}`}
	cands := fixedCandidates{cands: []Candidate{{Code: "onboarding.welcome"}}}
	p := New(llm, cands)

	d, err := p.Decide(context.Background(), "ws-1", "onboard the new hire Alex", nil)
	require.NoError(t, err)
	require.Equal(t, KindStartPlaybook, d.Kind)
	require.Equal(t, "onboarding.welcome", d.PlaybookCode)
	require.Equal(t, "v2", d.VariantID)
	require.Equal(t, "Alex", d.Inputs["name"])
}

func TestRankCandidatesTieBreakOrder(t *testing.T) {
	cands := []Candidate{
		{Code: "c-risky-recent", RecentlyUsed: true, DangerLevel: 5},
		{Code: "c-pinned", PinnedToWorkspace: true, DangerLevel: 9},
		{Code: "c-safe", DangerLevel: 1},
	}
	ranked := rankCandidates(cands)
	require.Equal(t, "c-pinned", ranked[0].Code, "pinned beats recently-used and low-danger")
	require.Equal(t, "c-risky-recent", ranked[1].Code, "recently-used beats lower danger alone")
	require.Equal(t, "c-safe", ranked[2].Code)
}

func TestDecideLayer3EmptyCodeFallsBackToRankedCandidate(t *testing.T) {
	// The model's layer-3 response omits "code" (simulating a provider
	// that fails to fill every field); the deterministic tie-break must
	// still pick a winner from the candidate set rather than erroring.
	scored, _ := json.Marshal(struct {
		Score float32 `json:"score"`
	}{Score: 0.9})
	llm := &execDecisionLLM{layer3JSON: string(scored)}
	cands := fixedCandidates{cands: []Candidate{
		{Code: "c-a", DangerLevel: 5},
		{Code: "c-b", PinnedToWorkspace: true, DangerLevel: 5},
	}}
	p := New(llm, cands)

	d, err := p.Decide(context.Background(), "ws-1", "do the pinned thing", nil)
	require.NoError(t, err)
	require.Equal(t, KindStartPlaybook, d.Kind)
	require.Equal(t, "c-b", d.PlaybookCode)
}
