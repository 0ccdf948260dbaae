package provider

import "strings"

// DeltaKind is the normalized fragment category.
type DeltaKind string

const (
	KindText      DeltaKind = "text"
	KindReasoning DeltaKind = "reasoning"
	KindToolCall  DeltaKind = "tool_call"
	KindError     DeltaKind = "error"
)

// ClassifiedDelta is the engine-facing form of a stream fragment.
type ClassifiedDelta struct {
	Kind DeltaKind
	Text string

	ToolCallID    string
	ToolName      string
	ToolArguments string
}

// Classify normalizes a raw fragment. The text payload is the first non-empty
// of Delta, TextDelta, Text; fragments whose type tag mentions reasoning or
// thinking become KindReasoning, tool-call or tool-use tags become
// KindToolCall, everything else is KindText. Fragments with an empty payload
// and no tool-call content are dropped (ok=false).
func Classify(d RawDelta) (ClassifiedDelta, bool) {
	text := d.Delta
	if text == "" {
		text = d.TextDelta
	}
	if text == "" {
		text = d.Text
	}

	tag := strings.ToLower(d.Type)
	switch {
	case strings.Contains(tag, "reason") || strings.Contains(tag, "think"):
		if text == "" {
			return ClassifiedDelta{}, false
		}
		return ClassifiedDelta{Kind: KindReasoning, Text: text}, true
	case strings.Contains(tag, "tool_call") || strings.Contains(tag, "tool-call") ||
		strings.Contains(tag, "tool_use") || strings.Contains(tag, "tool-use") ||
		strings.Contains(tag, "toolcall") || strings.Contains(tag, "tooluse"):
		return ClassifiedDelta{
			Kind:          KindToolCall,
			Text:          text,
			ToolCallID:    d.ToolCallID,
			ToolName:      d.ToolName,
			ToolArguments: d.ToolArguments,
		}, true
	case d.ToolCallID != "" || d.ToolArguments != "":
		// Some adapters leave the type tag empty on tool fragments.
		return ClassifiedDelta{
			Kind:          KindToolCall,
			Text:          text,
			ToolCallID:    d.ToolCallID,
			ToolName:      d.ToolName,
			ToolArguments: d.ToolArguments,
		}, true
	default:
		if text == "" {
			return ClassifiedDelta{}, false
		}
		return ClassifiedDelta{Kind: KindText, Text: text}, true
	}
}
