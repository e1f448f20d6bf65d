// Package decision implements the Execution Decision Pipeline: a three-layer
// typed-JSON classification chain, grounded on the teacher's planner
// typed-JSON chaining idiom (runtime/agent/planner) and generalizing the
// allow/deny/caps shape of agents/runtime/policy to pre-run playbook
// filtering. §4.3.
package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mindscape-ai/core/internal/intent"
	"github.com/mindscape-ai/core/internal/model"
	"github.com/mindscape-ai/core/internal/ports"
)

// Kind discriminates the three possible pipeline outcomes.
type Kind string

const (
	KindQA             Kind = "qa"
	KindManageSettings Kind = "manage_settings"
	KindStartPlaybook  Kind = "start_playbook"
)

// Decision is the Execution Decision Pipeline's output.
type Decision struct {
	Kind         Kind
	Target       string
	PlaybookCode string
	VariantID    string
	Inputs       map[string]any
}

// Candidate is one playbook eligible for selection at layer 3.
type Candidate struct {
	Code              string
	Tags              []string
	RequiredTools     []string
	PinnedToWorkspace bool
	RecentlyUsed      bool
	DangerLevel       int // lower is safer
	HistoricalSuccess float32
	ToolsAvailable    bool
}

// CandidateSource resolves candidate playbooks visible to a workspace,
// scoped by task domain tags from layer 2. The Playbook Loader's catalog
// (§4.5) backs this in the composition root.
type CandidateSource interface {
	Candidates(ctx context.Context, workspaceID string, domainTags []string) ([]Candidate, error)
}

// MinScore is the minimum combined score a layer-3 candidate must clear;
// below it, the pipeline degrades to qa (§4.3 Edge cases).
const MinScore = 0.35

type layer1Response struct {
	InteractionType string `json:"interaction_type"`
	Target          string `json:"target,omitempty"`
}

type layer2Response struct {
	DomainTags []string `json:"domain_tags"`
}

type layer3Response struct {
	Code      string         `json:"code"`
	VariantID string         `json:"variant_id,omitempty"`
	Inputs    map[string]any `json:"inputs,omitempty"`
	Score     float32        `json:"score"`
}

// Pipeline runs the three-layer classification.
type Pipeline struct {
	llm        ports.LLM
	candidates CandidateSource
}

// New constructs a Pipeline.
func New(llm ports.LLM, candidates CandidateSource) *Pipeline {
	return &Pipeline{llm: llm, candidates: candidates}
}

// Decide classifies utterance in the context of visibleCards and returns a
// Decision. Every layer call runs on the STANDARD profile.
func (p *Pipeline) Decide(ctx context.Context, workspaceID, utterance string, visibleCards []*intent.Card) (Decision, error) {
	l1, err := p.layer1(ctx, utterance, visibleCards)
	if err != nil {
		return Decision{}, err
	}
	switch l1.InteractionType {
	case "qa":
		return Decision{Kind: KindQA}, nil
	case "manage":
		return Decision{Kind: KindManageSettings, Target: l1.Target}, nil
	case "execute":
		return p.execute(ctx, workspaceID, utterance)
	default:
		return Decision{Kind: KindQA}, nil
	}
}

func (p *Pipeline) execute(ctx context.Context, workspaceID, utterance string) (Decision, error) {
	l2, err := p.layer2(ctx, utterance)
	if err != nil {
		return Decision{}, err
	}
	cands, err := p.candidates.Candidates(ctx, workspaceID, l2.DomainTags)
	if err != nil {
		return Decision{}, fmt.Errorf("decision: resolve candidates: %w", err)
	}
	if len(cands) == 0 {
		return Decision{Kind: KindQA}, nil
	}

	l3, score, ok := p.layer3(ctx, utterance, cands)
	if !ok || score < MinScore {
		return Decision{Kind: KindQA}, nil
	}
	return Decision{
		Kind:         KindStartPlaybook,
		PlaybookCode: l3.Code,
		VariantID:    l3.VariantID,
		Inputs:       l3.Inputs,
	}, nil
}

func (p *Pipeline) layer1(ctx context.Context, utterance string, cards []*intent.Card) (layer1Response, error) {
	req := &model.Request{
		ModelClass: model.ModelClassStandard,
		Messages: []*model.Message{
			{Role: model.ConversationRoleUser, Parts: []model.Part{model.TextPart{
				Text: "Classify interaction type (qa|manage|execute) for: " + utterance,
			}}},
		},
		Schema: json.RawMessage(`{"type":"object","required":["interaction_type"],"properties":{"interaction_type":{"type":"string","enum":["qa","manage","execute"]},"target":{"type":"string"}}}`),
	}
	resp, err := p.llm.Chat(ctx, "standard", req, nil)
	if err != nil {
		return layer1Response{}, fmt.Errorf("decision: layer1 call: %w", err)
	}
	var out layer1Response
	if err := json.Unmarshal([]byte(firstText(resp)), &out); err != nil {
		return layer1Response{}, fmt.Errorf("decision: layer1 decode: %w", err)
	}
	return out, nil
}

func (p *Pipeline) layer2(ctx context.Context, utterance string) (layer2Response, error) {
	req := &model.Request{
		ModelClass: model.ModelClassStandard,
		Messages: []*model.Message{
			{Role: model.ConversationRoleUser, Parts: []model.Part{model.TextPart{
				Text: "Identify task domain tags for: " + utterance,
			}}},
		},
		Schema: json.RawMessage(`{"type":"object","required":["domain_tags"],"properties":{"domain_tags":{"type":"array","items":{"type":"string"}}}}`),
	}
	resp, err := p.llm.Chat(ctx, "standard", req, nil)
	if err != nil {
		return layer2Response{}, fmt.Errorf("decision: layer2 call: %w", err)
	}
	var out layer2Response
	if err := json.Unmarshal([]byte(firstText(resp)), &out); err != nil {
		return layer2Response{}, fmt.Errorf("decision: layer2 decode: %w", err)
	}
	return out, nil
}

func (p *Pipeline) layer3(ctx context.Context, utterance string, cands []Candidate) (layer3Response, float32, bool) {
	payload, _ := json.Marshal(cands)
	req := &model.Request{
		ModelClass: model.ModelClassStandard,
		Messages: []*model.Message{
			{Role: model.ConversationRoleUser, Parts: []model.Part{model.TextPart{
				Text: fmt.Sprintf("Pick the best playbook candidate for %q from: %s", utterance, payload),
			}}},
		},
		Schema: json.RawMessage(`{"type":"object","required":["code","score"],"properties":{"code":{"type":"string"},"variant_id":{"type":"string"},"inputs":{"type":"object"},"score":{"type":"number"}}}`),
	}
	resp, err := p.llm.Chat(ctx, "standard", req, nil)
	if err != nil {
		return layer3Response{}, 0, false
	}
	var out layer3Response
	if err := json.Unmarshal([]byte(firstText(resp)), &out); err != nil {
		return layer3Response{}, 0, false
	}

	// Edge cases: when the model's response names no code, the winner is
	// the top candidate under the deterministic pinned-to-workspace >
	// recently used > lower danger order. A code the model did name is
	// kept as is.
	best := rankCandidates(cands)
	if len(best) > 0 && out.Code == "" {
		out.Code = best[0].Code
	}
	return out, out.Score, out.Code != ""
}

func rankCandidates(cands []Candidate) []Candidate {
	out := append([]Candidate(nil), cands...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PinnedToWorkspace != out[j].PinnedToWorkspace {
			return out[i].PinnedToWorkspace
		}
		if out[i].RecentlyUsed != out[j].RecentlyUsed {
			return out[i].RecentlyUsed
		}
		return out[i].DangerLevel < out[j].DangerLevel
	})
	return out
}

func firstText(resp *model.Response) string {
	for _, msg := range resp.Content {
		for _, part := range msg.Parts {
			if tp, ok := part.(model.TextPart); ok {
				return tp.Text
			}
		}
	}
	return ""
}
