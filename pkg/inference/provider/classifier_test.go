package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyFieldPriority(t *testing.T) {
	d, ok := Classify(RawDelta{Delta: "a", TextDelta: "b", Text: "c"})
	assert.True(t, ok)
	assert.Equal(t, "a", d.Text)

	d, ok = Classify(RawDelta{TextDelta: "b", Text: "c"})
	assert.True(t, ok)
	assert.Equal(t, "b", d.Text)

	d, ok = Classify(RawDelta{Text: "c"})
	assert.True(t, ok)
	assert.Equal(t, "c", d.Text)
}

func TestClassifyKinds(t *testing.T) {
	tests := []struct {
		name string
		in   RawDelta
		kind DeltaKind
	}{
		{"plain text", RawDelta{Type: "content_block_delta", Delta: "hi"}, KindText},
		{"untagged text", RawDelta{Delta: "hi"}, KindText},
		{"reasoning", RawDelta{Type: "reasoning", Delta: "hmm"}, KindReasoning},
		{"thinking variant", RawDelta{Type: "thinking_delta", Delta: "hmm"}, KindReasoning},
		{"tool call", RawDelta{Type: "tool_call", ToolCallID: "t1", ToolName: "search"}, KindToolCall},
		{"tool use variant", RawDelta{Type: "tool-use", ToolCallID: "t1"}, KindToolCall},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := Classify(tt.in)
			assert.True(t, ok)
			assert.Equal(t, tt.kind, d.Kind)
		})
	}
}

func TestClassifyDropsEmpty(t *testing.T) {
	_, ok := Classify(RawDelta{Type: "content_block_delta"})
	assert.False(t, ok)

	_, ok = Classify(RawDelta{Type: "reasoning"})
	assert.False(t, ok)

	_, ok = Classify(RawDelta{})
	assert.False(t, ok)
}

func TestClassifyToolFragmentWithoutTag(t *testing.T) {
	d, ok := Classify(RawDelta{ToolCallID: "t1", ToolArguments: `{"q":`})
	assert.True(t, ok)
	assert.Equal(t, KindToolCall, d.Kind)
	assert.Equal(t, "t1", d.ToolCallID)
	assert.Equal(t, `{"q":`, d.ToolArguments)
}

func TestClassifyToolCallEmptyPayloadKept(t *testing.T) {
	// A tool-call fragment with no text is still meaningful: it may carry
	// only the call id and name.
	d, ok := Classify(RawDelta{Type: "tool_call", ToolCallID: "t1", ToolName: "echo"})
	assert.True(t, ok)
	assert.Equal(t, KindToolCall, d.Kind)
	assert.Equal(t, "echo", d.ToolName)
}
