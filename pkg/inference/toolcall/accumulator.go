// Package toolcall reassembles tool invocations from fragmented stream
// deltas. Providers deliver a call's arguments spread over many fragments
// keyed by call id; the accumulator buffers them until the buffer parses as
// JSON.
package toolcall

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// Record tracks one in-flight tool call. At most one record exists per id
// within a step.
type Record struct {
	ID       string
	Name     string
	Buffer   string
	Resolved bool
	// Args holds the parsed arguments once Resolved.
	Args json.RawMessage
}

// Accumulator collects argument fragments per call id. It is not safe for
// concurrent use; each step owns its own accumulator.
type Accumulator struct {
	records map[string]*Record
	order   []string
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		records: make(map[string]*Record),
	}
}

// Feed appends a fragment to the record for id, creating the record on first
// sight. nameIfNew is only consulted at creation. After every append the
// buffer is re-parsed; when it becomes valid JSON the record is returned with
// Resolved set. Feeding a resolved record again returns it unchanged.
func (a *Accumulator) Feed(id string, nameIfNew string, fragment string) *Record {
	if id == "" {
		return nil
	}

	rec, ok := a.records[id]
	if !ok {
		rec = &Record{ID: id, Name: nameIfNew}
		a.records[id] = rec
		a.order = append(a.order, id)
		log.Trace().Str("tool_call_id", id).Str("tool", nameIfNew).Msg("tool call record created")
	}
	if rec.Name == "" && nameIfNew != "" {
		rec.Name = nameIfNew
	}
	if rec.Resolved {
		return rec
	}

	rec.Buffer += fragment
	if rec.Buffer == "" {
		return nil
	}
	if !json.Valid([]byte(rec.Buffer)) {
		// Still incomplete; keep buffering.
		return nil
	}

	rec.Resolved = true
	rec.Args = json.RawMessage(rec.Buffer)
	return rec
}

// Records returns all records in discovery order, resolved or not.
func (a *Accumulator) Records() []*Record {
	out := make([]*Record, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.records[id])
	}
	return out
}

// Resolved returns resolved records in discovery order.
func (a *Accumulator) Resolved() []*Record {
	out := make([]*Record, 0, len(a.order))
	for _, id := range a.order {
		if rec := a.records[id]; rec.Resolved {
			out = append(out, rec)
		}
	}
	return out
}

// FinalizeWithText gives unresolved or empty-argument records a last chance
// to resolve from the step's accumulated plain text. Records that still fail
// resolve to an empty object, which is not an error.
func (a *Accumulator) FinalizeWithText(text string) []*Record {
	for _, id := range a.order {
		rec := a.records[id]
		if rec.Resolved && !isEmptyArgs(rec.Args) {
			continue
		}
		if text == "" {
			continue
		}
		if args, ok := extractArgsFromText(rec.Name, text); ok {
			rec.Args = args
			rec.Buffer = string(args)
			rec.Resolved = true
			log.Debug().Str("tool_call_id", rec.ID).Str("tool", rec.Name).Msg("tool call arguments recovered from text")
			continue
		}
		if !rec.Resolved {
			// Give up gracefully with an empty argument set.
			rec.Args = json.RawMessage(`{}`)
			rec.Resolved = true
		}
	}
	return a.Resolved()
}

func isEmptyArgs(args json.RawMessage) bool {
	if len(args) == 0 {
		return true
	}
	var m map[string]interface{}
	if err := json.Unmarshal(args, &m); err != nil {
		return false
	}
	return len(m) == 0
}
