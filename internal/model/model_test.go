package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestPartsImplementTheMarkerInterface pins down that every content block
// type satisfies Part, so a Message.Parts slice can mix them freely.
func TestPartsImplementTheMarkerInterface(t *testing.T) {
	var parts []Part
	parts = append(parts,
		TextPart{Text: "hello"},
		ThinkingPart{Text: "reasoning", Final: true},
		ToolUsePart{ID: "call-1", Name: "search", Input: map[string]any{"q": "x"}},
		ToolResultPart{ToolUseID: "call-1", Content: "result"},
		CacheCheckpointPart{},
	)
	require.Len(t, parts, 5)
}

// stubClient is a minimal Client used to confirm the interface's method
// set matches what capability.Router's boundClient expects to call.
type stubClient struct {
	resp *Response
	err  error
}

func (s *stubClient) Complete(context.Context, *Request) (*Response, error) {
	return s.resp, s.err
}

func (s *stubClient) Stream(context.Context, *Request) (Streamer, error) {
	return nil, ErrStreamingUnsupported
}

func TestClientCompleteReturnsConfiguredResponse(t *testing.T) {
	want := &Response{Content: []Message{{Role: ConversationRoleAssistant, Parts: []Part{TextPart{Text: "hi"}}}}}
	var c Client = &stubClient{resp: want}

	got, err := c.Complete(context.Background(), &Request{ModelClass: ModelClassFast})
	require.NoError(t, err)
	require.Same(t, want, got)
}

func TestClientStreamReturnsStreamingUnsupportedByDefault(t *testing.T) {
	var c Client = &stubClient{}
	_, err := c.Stream(context.Background(), &Request{})
	require.ErrorIs(t, err, ErrStreamingUnsupported)
}
