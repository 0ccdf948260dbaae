// Package provider defines the boundary between the orchestration engine and
// provider streaming SDKs. A provider adapter turns SDK-specific stream
// fragments into RawDelta values; the engine only ever sees RawDelta and its
// classified form.
package provider

import (
	"context"
	"io"

	"github.com/invopop/jsonschema"

	"github.com/go-go-golems/stromboli/pkg/chat"
	"github.com/go-go-golems/stromboli/pkg/events"
)

// ToolSpec is the provider-facing description of a tool. The registry's
// definitions are adapted into this shape at the boundary so the engine's
// registry format stays provider-agnostic.
type ToolSpec struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

// Request is one streaming completion request.
type Request struct {
	Model    string
	Messages chat.Conversation
	// Tools is nil when tool use is disabled for this step (e.g. on the
	// retry-without-tools fallback).
	Tools []ToolSpec
	// Images are attached on the first step of a run only.
	Images []*chat.ImageContent

	Thinking bool
}

// RawDelta is one streamed fragment in provider-neutral form. Different SDKs
// put the text payload in differently named fields; adapters fill whichever
// field matches their source and Classify picks the first non-empty one.
type RawDelta struct {
	// Type is the provider's own tag for the fragment ("content_block_delta",
	// "reasoning", "tool_calls", ...). Matched loosely by the classifier.
	Type string

	Delta     string
	TextDelta string
	Text      string

	// Tool call fragments
	ToolCallID    string
	ToolName      string
	ToolArguments string

	// Usage is attached by providers that report token counts mid-stream or
	// on the terminal fragment.
	Usage *events.Usage
	// Credits is provider-reported monetary usage for this fragment.
	Credits float64

	StopReason string
}

// DeltaStream is an open streaming response. Recv returns io.EOF when the
// stream is complete.
type DeltaStream interface {
	Recv() (RawDelta, error)
	Close() error
}

// StreamClient issues streaming completion requests. This is where
// provider-specific SDKs plug in.
type StreamClient interface {
	StreamCompletion(ctx context.Context, req Request) (DeltaStream, error)
}

// SliceStream replays a fixed sequence of deltas.
type SliceStream struct {
	deltas []RawDelta
	pos    int
}

func NewSliceStream(deltas ...RawDelta) *SliceStream {
	return &SliceStream{deltas: deltas}
}

func (s *SliceStream) Recv() (RawDelta, error) {
	if s.pos >= len(s.deltas) {
		return RawDelta{}, io.EOF
	}
	d := s.deltas[s.pos]
	s.pos++
	return d, nil
}

func (s *SliceStream) Close() error {
	return nil
}

var _ DeltaStream = (*SliceStream)(nil)
