package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"

	"github.com/go-go-golems/stromboli/pkg/events"
)

// ToolCall is a request to execute a tool, as resolved from the stream.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is the outcome of one execution. Error is set instead of
// propagating so the caller can feed the failure back to the model.
type ToolResult struct {
	ID       string        `json:"id"`
	Result   interface{}   `json:"result"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Serialize renders the result (or its error) as the string injected into the
// tool-result message.
func (r *ToolResult) Serialize() string {
	if r.Error != "" {
		return fmt.Sprintf("Error: %s", r.Error)
	}
	if r.Result == nil {
		return ""
	}
	if s, ok := r.Result.(string); ok {
		return s
	}
	bts, err := json.Marshal(r.Result)
	if err != nil {
		return fmt.Sprintf("%v", r.Result)
	}
	return string(bts)
}

// ToolNotFoundError is returned when a call names a tool that is absent from
// the registry or disabled.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool not found: %s", e.Name)
}

// ArgumentParseError is returned when a call's arguments are not valid JSON.
type ArgumentParseError struct {
	Name string
	Err  error
}

func (e *ArgumentParseError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %s: %v", e.Name, e.Err)
}

func (e *ArgumentParseError) Unwrap() error { return e.Err }

// Executor runs resolved tool calls against a registry, one at a time in
// discovery order.
type Executor struct {
	validate bool
}

type ExecutorOption func(*Executor)

// WithSchemaValidation toggles validating arguments against the tool's
// parameter schema before invocation.
func WithSchemaValidation(v bool) ExecutorOption {
	return func(e *Executor) { e.validate = v }
}

func NewExecutor(options ...ExecutorOption) *Executor {
	e := &Executor{validate: true}
	for _, o := range options {
		o(e)
	}
	return e
}

// ExecuteToolCall looks up an enabled tool, checks its arguments, and invokes
// it. Lookup and argument failures are returned as typed errors; the tool's
// own failure is captured in the result so the run can continue.
func (e *Executor) ExecuteToolCall(ctx context.Context, call ToolCall, registry ToolRegistry) (*ToolResult, error) {
	start := time.Now()

	def, err := registry.GetTool(call.Name)
	if err != nil || !def.Enabled {
		return nil, &ToolNotFoundError{Name: call.Name}
	}

	args := call.Arguments
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	if !json.Valid(args) {
		return nil, &ArgumentParseError{Name: call.Name, Err: errors.New("malformed JSON")}
	}

	if e.validate && def.Parameters != nil {
		if err := validateArguments(def, args); err != nil {
			return nil, &ArgumentParseError{Name: call.Name, Err: err}
		}
	}

	events.PublishEventToContext(ctx, events.NewToolCallExecuteEvent(
		events.EventMetadata{},
		events.ToolCall{ID: call.ID, Name: call.Name, Input: string(args)},
	))

	log.Debug().
		Str("tool", call.Name).
		Str("tool_call_id", call.ID).
		Msg("executing tool")

	out, execErr := def.Function.ExecuteWithContext(ctx, args)
	result := &ToolResult{ID: call.ID, Result: out, Duration: time.Since(start)}
	if execErr != nil {
		result.Error = execErr.Error()
	}

	events.PublishEventToContext(ctx, events.NewToolCallExecutionResultEvent(
		events.EventMetadata{},
		events.ToolResult{ID: call.ID, Result: result.Serialize()},
	))

	return result, nil
}

// ExecuteToolCalls runs calls sequentially in the given order. Per-call
// failures become error results; only context cancellation stops the batch.
func (e *Executor) ExecuteToolCalls(ctx context.Context, calls []ToolCall, registry ToolRegistry) ([]*ToolResult, error) {
	results := make([]*ToolResult, 0, len(calls))
	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		r, err := e.ExecuteToolCall(ctx, call, registry)
		if err != nil {
			r = &ToolResult{ID: call.ID, Error: err.Error()}
		}
		results = append(results, r)
	}
	return results, nil
}

func validateArguments(def *ToolDefinition, args json.RawMessage) error {
	// Drop the $schema marker: the validator does not understand the
	// 2020-12 draft the reflector declares.
	schema := *def.Parameters
	schema.Version = ""
	schemaJSON, err := json.Marshal(&schema)
	if err != nil {
		return errors.Wrap(err, "failed to marshal parameter schema")
	}
	res, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewBytesLoader(args),
	)
	if err != nil {
		return errors.Wrap(err, "schema validation failed")
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return errors.Errorf("arguments do not match schema: %v", msgs)
	}
	return nil
}
