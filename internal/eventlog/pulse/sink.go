// Package pulse fans workspace timeline events out to live subscribers over
// goa.design/pulse streams, mirroring the layering of the teacher's
// features/stream/pulse package: a typed Client wraps Redis, and a Sink
// publishes envelopes onto per-workspace streams.
package pulse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"goa.design/pulse/streaming"
	streamopts "goa.design/pulse/streaming/options"

	"github.com/mindscape-ai/core/internal/ports"
)

type (
	// Client exposes the subset of Pulse operations the sink needs.
	Client interface {
		Stream(name string, opts ...streamopts.Stream) (Stream, error)
		Close(ctx context.Context) error
	}

	// Stream is a single Pulse stream handle.
	Stream interface {
		Add(ctx context.Context, event string, payload []byte) (string, error)
		NewSink(ctx context.Context, name string, opts ...streamopts.Sink) (SinkReader, error)
		Destroy(ctx context.Context) error
	}

	// SinkReader is a Pulse consumer group reading a single stream.
	SinkReader interface {
		Subscribe() <-chan *streaming.Event
		Ack(context.Context, *streaming.Event) error
		Close(context.Context)
	}

	// Envelope is the JSON payload written to a Pulse stream entry.
	Envelope struct {
		Type        string         `json:"type"`
		WorkspaceID string         `json:"workspace_id"`
		ExecutionID string         `json:"execution_id,omitempty"`
		Message     string         `json:"message"`
		Details     map[string]any `json:"details,omitempty"`
		OccurredAt  time.Time      `json:"occurred_at"`
	}

	// Options configures the event fan-out sink.
	Options struct {
		Client   Client
		StreamID func(workspaceID string) string
	}

	// Sink publishes workspace events onto Pulse streams for live timeline
	// subscribers, and tails them back out for Subscribe callers. It does
	// not itself persist events; the durable write goes through
	// internal/eventlog/mongo's Store, with the sink called alongside it.
	Sink struct {
		client   Client
		streamID func(workspaceID string) string
	}
)

func defaultStreamID(workspaceID string) string {
	return "events/" + workspaceID
}

// NewSink constructs a Pulse-backed event fan-out sink.
func NewSink(opts Options) (*Sink, error) {
	if opts.Client == nil {
		return nil, errors.New("eventlog/pulse: client is required")
	}
	streamID := opts.StreamID
	if streamID == nil {
		streamID = defaultStreamID
	}
	return &Sink{client: opts.Client, streamID: streamID}, nil
}

// Publish writes event onto its workspace's Pulse stream.
func (s *Sink) Publish(ctx context.Context, event ports.Event) error {
	stream, err := s.client.Stream(s.streamID(event.WorkspaceID))
	if err != nil {
		return fmt.Errorf("eventlog/pulse: open stream: %w", err)
	}
	env := Envelope{
		Type:        event.Kind,
		WorkspaceID: event.WorkspaceID,
		ExecutionID: event.ExecutionID,
		Message:     event.Message,
		Details:     event.Details,
		OccurredAt:  event.OccurredAt,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("eventlog/pulse: marshal envelope: %w", err)
	}
	if _, err := stream.Add(ctx, event.Kind, payload); err != nil {
		return fmt.Errorf("eventlog/pulse: publish: %w", err)
	}
	return nil
}

// Subscribe opens a Pulse consumer group on the workspace's stream and
// translates its entries back into ports.Event values for live subscribers,
// satisfying the ports.EventLog.Subscribe contract for the remote adapter.
func (s *Sink) Subscribe(ctx context.Context, workspaceID string) (<-chan ports.Event, func(), error) {
	stream, err := s.client.Stream(s.streamID(workspaceID))
	if err != nil {
		return nil, nil, fmt.Errorf("eventlog/pulse: open stream: %w", err)
	}
	reader, err := stream.NewSink(ctx, "workspace-"+workspaceID)
	if err != nil {
		return nil, nil, fmt.Errorf("eventlog/pulse: open sink: %w", err)
	}

	out := make(chan ports.Event, 64)
	go func() {
		defer close(out)
		for raw := range reader.Subscribe() {
			var env Envelope
			if err := json.Unmarshal(raw.Payload, &env); err != nil {
				_ = reader.Ack(ctx, raw)
				continue
			}
			select {
			case out <- ports.Event{
				WorkspaceID: env.WorkspaceID,
				ExecutionID: env.ExecutionID,
				Kind:        env.Type,
				Message:     env.Message,
				Details:     env.Details,
				OccurredAt:  env.OccurredAt,
			}:
			case <-ctx.Done():
				_ = reader.Ack(ctx, raw)
				return
			}
			_ = reader.Ack(ctx, raw)
		}
	}()

	cancel := func() { reader.Close(ctx) }
	return out, cancel, nil
}
