package pulse

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"goa.design/pulse/streaming"
	streamopts "goa.design/pulse/streaming/options"

	"github.com/mindscape-ai/core/internal/ports"
)

type fakeStream struct {
	addedEvent   string
	addedPayload []byte
	sink         SinkReader
	sinkErr      error
}

func (s *fakeStream) Add(_ context.Context, event string, payload []byte) (string, error) {
	s.addedEvent = event
	s.addedPayload = payload
	return "1-0", nil
}

func (s *fakeStream) NewSink(context.Context, string, ...streamopts.Sink) (SinkReader, error) {
	return s.sink, s.sinkErr
}

func (s *fakeStream) Destroy(context.Context) error { return nil }

type fakeSinkReader struct {
	ch     chan *streaming.Event
	acked  []*streaming.Event
	closed bool
}

func (r *fakeSinkReader) Subscribe() <-chan *streaming.Event { return r.ch }

func (r *fakeSinkReader) Ack(_ context.Context, e *streaming.Event) error {
	r.acked = append(r.acked, e)
	return nil
}

func (r *fakeSinkReader) Close(context.Context) { r.closed = true }

type fakeClient struct {
	streams map[string]Stream
}

func (c *fakeClient) Stream(name string, _ ...streamopts.Stream) (Stream, error) {
	return c.streams[name], nil
}

func (c *fakeClient) Close(context.Context) error { return nil }

func TestPublishWritesEnvelopeUnderDefaultStreamID(t *testing.T) {
	stream := &fakeStream{}
	client := &fakeClient{streams: map[string]Stream{"events/ws-1": stream}}
	sink, err := NewSink(Options{Client: client})
	require.NoError(t, err)

	err = sink.Publish(context.Background(), ports.Event{
		WorkspaceID: "ws-1",
		Kind:        "card_created",
		Message:     "created a card",
		OccurredAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
	require.Equal(t, "card_created", stream.addedEvent)

	var env Envelope
	require.NoError(t, json.Unmarshal(stream.addedPayload, &env))
	require.Equal(t, "ws-1", env.WorkspaceID)
	require.Equal(t, "card_created", env.Type)
}

func TestPublishUsesCustomStreamID(t *testing.T) {
	stream := &fakeStream{}
	client := &fakeClient{streams: map[string]Stream{"custom/ws-1": stream}}
	sink, err := NewSink(Options{Client: client, StreamID: func(id string) string { return "custom/" + id }})
	require.NoError(t, err)

	require.NoError(t, sink.Publish(context.Background(), ports.Event{WorkspaceID: "ws-1", Kind: "k"}))
	require.Equal(t, "k", stream.addedEvent)
}

func TestSubscribeTranslatesStreamEntriesAndAcks(t *testing.T) {
	ch := make(chan *streaming.Event, 1)
	reader := &fakeSinkReader{ch: ch}
	stream := &fakeStream{sink: reader}
	client := &fakeClient{streams: map[string]Stream{"events/ws-1": stream}}
	sink, err := NewSink(Options{Client: client})
	require.NoError(t, err)

	events, cancel, err := sink.Subscribe(context.Background(), "ws-1")
	require.NoError(t, err)
	defer cancel()

	payload, _ := json.Marshal(Envelope{Type: "card_created", WorkspaceID: "ws-1", Message: "hi"})
	ch <- &streaming.Event{ID: "1-0", Payload: payload}
	close(ch)

	select {
	case e := <-events:
		require.Equal(t, "card_created", e.Kind)
		require.Equal(t, "ws-1", e.WorkspaceID)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive translated event in time")
	}

	select {
	case _, ok := <-events:
		require.False(t, ok, "the events channel must close once the stream ends")
	case <-time.After(time.Second):
		t.Fatal("events channel was never closed")
	}
	require.Len(t, reader.acked, 1, "a forwarded entry must be acked")
}

func TestSubscribeSkipsUndecodableEntriesWithoutPanicking(t *testing.T) {
	ch := make(chan *streaming.Event, 1)
	reader := &fakeSinkReader{ch: ch}
	stream := &fakeStream{sink: reader}
	client := &fakeClient{streams: map[string]Stream{"events/ws-1": stream}}
	sink, err := NewSink(Options{Client: client})
	require.NoError(t, err)

	events, cancel, err := sink.Subscribe(context.Background(), "ws-1")
	require.NoError(t, err)
	defer cancel()

	ch <- &streaming.Event{ID: "1-0", Payload: []byte("not json")}
	close(ch)

	select {
	case _, ok := <-events:
		require.False(t, ok, "an undecodable entry must be skipped, not forwarded")
	case <-time.After(time.Second):
		t.Fatal("events channel was never closed")
	}
}

func TestNewSinkRequiresClient(t *testing.T) {
	_, err := NewSink(Options{})
	require.Error(t, err)
}
