// Package runloop drives multi-step generation: it streams one completion at
// a time, routes deltas to the caller and the tool-call accumulator, executes
// resolved tool calls, feeds their results back into the conversation, and
// repeats until the model stops requesting tools or a terminal condition is
// hit.
package runloop

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/stromboli/pkg/chat"
	"github.com/go-go-golems/stromboli/pkg/events"
	"github.com/go-go-golems/stromboli/pkg/inference/provider"
	"github.com/go-go-golems/stromboli/pkg/inference/toolcall"
	"github.com/go-go-golems/stromboli/pkg/inference/tools"
	"github.com/go-go-golems/stromboli/pkg/pricing"
	"github.com/go-go-golems/stromboli/pkg/usage"
)

// DefaultMaxSteps bounds runs against models that never stop requesting
// tools.
const DefaultMaxSteps = 400

// ChunkPart discriminates the payload of an emitted chunk.
type ChunkPart string

const (
	PartText      ChunkPart = "text"
	PartReasoning ChunkPart = "reasoning"
	PartToolCall  ChunkPart = "tool_call"
	PartError     ChunkPart = "error"
)

// Chunk is one unit of streamed output delivered to the caller.
type Chunk struct {
	Part  ChunkPart
	Delta string
}

// EmitFunc receives chunks as they are produced. It is called from the run's
// goroutine only.
type EmitFunc func(Chunk)

// ErrMaxStepsReached is returned when a run hits its step ceiling.
var ErrMaxStepsReached = errors.New("maximum steps reached")

// errAborted signals cooperative cancellation internally.
var errAborted = errors.New("run aborted")

// Loop orchestrates generation runs. A Loop is safe to share across
// concurrent runs; all per-run state lives in the run itself.
type Loop struct {
	client       provider.StreamClient
	executor     *tools.Executor
	pricingCache *pricing.Cache
	usageSink    usage.Sink

	model           string
	maxSteps        int
	thinkingEnabled bool
}

type Option func(*Loop)

func WithModel(model string) Option {
	return func(l *Loop) { l.model = model }
}

func WithMaxSteps(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxSteps = n
		}
	}
}

// WithThinking forwards reasoning deltas to the caller.
func WithThinking(enabled bool) Option {
	return func(l *Loop) { l.thinkingEnabled = enabled }
}

func WithExecutor(executor *tools.Executor) Option {
	return func(l *Loop) { l.executor = executor }
}

func WithPricingCache(cache *pricing.Cache) Option {
	return func(l *Loop) { l.pricingCache = cache }
}

// WithUsageSink sets the collaborator that receives the final usage
// snapshot.
func WithUsageSink(sink usage.Sink) Option {
	return func(l *Loop) { l.usageSink = sink }
}

func NewLoop(client provider.StreamClient, options ...Option) *Loop {
	l := &Loop{
		client:    client,
		executor:  tools.NewExecutor(),
		usageSink: usage.NullSink{},
		maxSteps:  DefaultMaxSteps,
	}
	for _, o := range options {
		o(l)
	}
	return l
}

// RunResult summarizes a finished run. The conversation includes every
// message the loop appended.
type RunResult struct {
	Conversation chat.Conversation
	Usage        usage.Snapshot
	Steps        int
	Aborted      bool
}

type runOptions struct {
	images    []*chat.ImageContent
	userID    string
	messageID string
}

type RunOption func(*runOptions)

// WithImages attaches image content to the first step of the run only.
func WithImages(images []*chat.ImageContent) RunOption {
	return func(o *runOptions) { o.images = images }
}

// WithAttribution keys the final usage report for the persistence sink.
func WithAttribution(userID, messageID string) RunOption {
	return func(o *runOptions) { o.userID = userID; o.messageID = messageID }
}

// runState exists for exactly one Run invocation.
type runState struct {
	runID        string
	conversation chat.Conversation
	stepCount    int
	accountant   *usage.Accountant
	// costAlreadyLogged guards the abort-path usage flush so nested abort
	// handling records at most once.
	costAlreadyLogged bool
	aborted           bool
	images            []*chat.ImageContent
}

func (r *runState) metadata(model string) events.EventMetadata {
	return events.EventMetadata{
		ID:        uuid.New(),
		RunID:     r.runID,
		StepIndex: r.stepCount,
		LLMInferenceData: events.LLMInferenceData{
			Model: model,
		},
	}
}

// stepOutcome is everything one streamed step produced.
type stepOutcome struct {
	text       string
	reasoning  string
	calls      []*toolcall.Record
	reported   *usage.StepUsage
	credits    float64
	stopReason string
}

// Run executes the step loop over messages until the model stops requesting
// tools, the step ceiling is hit, the context is cancelled, or an
// unrecoverable provider error occurs. Output is delivered through emit and
// the configured event sinks; the final usage snapshot also goes to the
// usage sink. Cancellation is not an error: the result comes back with
// Aborted set and a nil error.
func (l *Loop) Run(
	ctx context.Context,
	messages chat.Conversation,
	registry tools.ToolRegistry,
	emit EmitFunc,
	options ...RunOption,
) (*RunResult, error) {
	opts := &runOptions{}
	for _, o := range options {
		o(opts)
	}
	if emit == nil {
		emit = func(Chunk) {}
	}

	run := &runState{
		runID:        uuid.NewString(),
		conversation: append(chat.Conversation{}, messages...),
		accountant:   usage.NewAccountant(l.pricingCache, l.model),
		images:       opts.images,
	}

	monitor := newCancelMonitor(ctx)
	defer monitor.release()

	logger := log.With().Str("run_id", run.runID).Str("model", l.model).Logger()
	logger.Debug().Int("messages", len(messages)).Msg("starting run")

	specs := toolSpecs(registry)
	withTools := len(specs) > 0
	retriedWithoutTools := false

	var runErr error

steps:
	for {
		if monitor.cancelled() {
			run.aborted = true
			l.flushAborted(ctx, run, nil)
			break
		}

		events.PublishEventToContext(ctx, events.NewStartEvent(run.metadata(l.model)))

		stepSpecs := specs
		if retriedWithoutTools {
			stepSpecs = nil
		}
		out, err := l.streamStep(ctx, run, stepSpecs, emit, monitor)
		if err != nil {
			if errors.Is(err, errAborted) {
				run.aborted = true
				l.flushAborted(ctx, run, out)
				break
			}
			if withTools && !retriedWithoutTools && isToolUnsupportedErr(err) {
				logger.Warn().Err(err).Msg("model rejected tools, retrying step without them")
				retriedWithoutTools = true
				continue
			}
			emit(Chunk{Part: PartError, Delta: err.Error()})
			events.PublishEventToContext(ctx, events.NewErrorEvent(run.metadata(l.model), err))
			runErr = err
			break
		}

		l.recordStep(ctx, run, out)
		run.stepCount++

		calls := dedupeCalls(out.calls)
		if retriedWithoutTools || len(calls) == 0 {
			if out.text != "" {
				run.conversation = run.conversation.Append(
					chat.NewMessage(chat.RoleAssistant, out.text),
				)
			}
			meta := run.metadata(l.model)
			if out.stopReason != "" {
				stopReason := out.stopReason
				meta.StopReason = &stopReason
			}
			events.PublishEventToContext(ctx, events.NewFinalEvent(meta, out.text))
			logger.Debug().Int("steps", run.stepCount).Msg("run complete")
			break
		}

		run.conversation = run.conversation.Append(
			chat.NewMessage(chat.RoleAssistant, summarizeCalls(out.text, calls)),
		)
		for _, call := range calls {
			emit(Chunk{Part: PartToolCall, Delta: fmt.Sprintf("%s(%s)", call.Name, string(call.Args))})
			events.PublishEventToContext(ctx, events.NewToolCallEvent(
				run.metadata(l.model),
				events.ToolCall{ID: call.ID, Name: call.Name, Input: string(call.Args)},
			))
		}

		for _, call := range calls {
			if monitor.cancelled() {
				run.aborted = true
				l.flushAborted(ctx, run, nil)
				break steps
			}
			result := l.executeCall(ctx, call, registry)
			run.conversation = run.conversation.Append(
				chat.NewToolResultMessage(call.ID, call.Name, result),
			)
			events.PublishEventToContext(ctx, events.NewToolResultEvent(
				run.metadata(l.model),
				events.ToolResult{ID: call.ID, Result: result},
			))
		}

		if run.stepCount >= l.maxSteps {
			emit(Chunk{Part: PartError, Delta: ErrMaxStepsReached.Error()})
			events.PublishEventToContext(ctx, events.NewErrorEvent(run.metadata(l.model), ErrMaxStepsReached))
			runErr = ErrMaxStepsReached
			break
		}
	}

	totals := run.accountant.Totals()
	if err := l.usageSink.LogUsage(ctx, usage.RunReport{
		RunID:     run.runID,
		UserID:    opts.userID,
		MessageID: opts.messageID,
		Model:     l.model,
		Totals:    totals,
		Time:      time.Now(),
	}); err != nil {
		logger.Warn().Err(err).Msg("failed to log run usage")
	}

	return &RunResult{
		Conversation: run.conversation,
		Usage:        totals,
		Steps:        run.stepCount,
		Aborted:      run.aborted,
	}, runErr
}

// streamStep issues one streaming request and consumes it to completion,
// classifying every delta. Returns errAborted with the partial outcome when
// cancellation is observed mid-stream.
func (l *Loop) streamStep(
	ctx context.Context,
	run *runState,
	specs []provider.ToolSpec,
	emit EmitFunc,
	monitor *cancelMonitor,
) (*stepOutcome, error) {
	out := &stepOutcome{}

	req := provider.Request{
		Model:    l.model,
		Messages: run.conversation,
		Tools:    specs,
		Thinking: l.thinkingEnabled,
	}
	if run.stepCount == 0 {
		req.Images = run.images
	}

	stream, err := l.client.StreamCompletion(ctx, req)
	if err != nil {
		if monitor.cancelled() || errors.Is(err, context.Canceled) {
			return out, errAborted
		}
		return out, err
	}
	defer func() { _ = stream.Close() }()

	acc := toolcall.NewAccumulator()
	var textBuf, reasoningBuf strings.Builder

	for {
		if monitor.cancelled() {
			out.text = textBuf.String()
			out.reasoning = reasoningBuf.String()
			return out, errAborted
		}

		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			out.text = textBuf.String()
			out.reasoning = reasoningBuf.String()
			if monitor.cancelled() || errors.Is(err, context.Canceled) {
				return out, errAborted
			}
			return out, err
		}

		if delta.Usage != nil {
			if out.reported == nil {
				out.reported = &usage.StepUsage{}
			}
			out.reported.PromptTokens += delta.Usage.InputTokens
			out.reported.CompletionTokens += delta.Usage.OutputTokens
			out.reported.ReasoningTokens += delta.Usage.ReasoningTokens
		}
		out.credits += delta.Credits
		if delta.StopReason != "" {
			out.stopReason = delta.StopReason
		}

		classified, ok := provider.Classify(delta)
		if !ok {
			continue
		}

		switch classified.Kind {
		case provider.KindText:
			textBuf.WriteString(classified.Text)
			emit(Chunk{Part: PartText, Delta: classified.Text})
			events.PublishEventToContext(ctx, events.NewPartialCompletionEvent(
				run.metadata(l.model), classified.Text, textBuf.String(),
			))
		case provider.KindReasoning:
			reasoningBuf.WriteString(classified.Text)
			if l.thinkingEnabled {
				emit(Chunk{Part: PartReasoning, Delta: classified.Text})
				events.PublishEventToContext(ctx, events.NewThinkingPartialEvent(
					run.metadata(l.model), classified.Text, reasoningBuf.String(),
				))
			}
		case provider.KindToolCall:
			acc.Feed(classified.ToolCallID, classified.ToolName, classified.ToolArguments)
		case provider.KindError:
			out.text = textBuf.String()
			out.reasoning = reasoningBuf.String()
			return out, errors.New(classified.Text)
		}
	}

	out.text = textBuf.String()
	out.reasoning = reasoningBuf.String()
	if len(acc.Records()) > 0 {
		out.calls = acc.FinalizeWithText(out.text)
	}
	return out, nil
}

// recordStep folds the step's usage into the run totals, estimating when the
// provider withheld counts.
func (l *Loop) recordStep(ctx context.Context, run *runState, out *stepOutcome) {
	step := out.reported
	if step == nil {
		if out.text == "" && out.reasoning == "" && len(out.calls) == 0 {
			if out.credits == 0 {
				return
			}
			step = &usage.StepUsage{}
		} else {
			est := usage.EstimateStep(run.conversation.PlainText(), out.text+out.reasoning)
			step = &est
		}
	}
	step.Credits += out.credits

	totals := run.accountant.Record(ctx, *step)
	events.PublishEventToContext(ctx, events.NewUsageEvent(
		run.metadata(l.model),
		totals.PromptTokens, totals.CompletionTokens, totals.ReasoningTokens,
		totals.CostUSD, totals.Credits, totals.Estimated,
	))
}

// flushAborted performs the exactly-once usage flush on cancellation.
// Counts the provider already streamed for the interrupted step are kept;
// an estimate is synthesized only when the step produced text with no
// reported usage.
func (l *Loop) flushAborted(ctx context.Context, run *runState, out *stepOutcome) {
	if run.costAlreadyLogged {
		return
	}
	run.costAlreadyLogged = true

	var text string
	if out != nil {
		text = out.text
		step := out.reported
		if step == nil && (out.text != "" || out.reasoning != "") {
			est := usage.EstimateStep(run.conversation.PlainText(), out.text+out.reasoning)
			step = &est
		}
		if step == nil && out.credits != 0 {
			step = &usage.StepUsage{}
		}
		if step != nil {
			step.Credits += out.credits
			run.accountant.Record(ctx, *step)
		}
	}
	events.PublishEventToContext(ctx, events.NewInterruptEvent(run.metadata(l.model), text))
	log.Debug().Str("run_id", run.runID).Msg("run aborted")
}

// executeCall dispatches one resolved call. Lookup, argument, and tool
// failures all come back as the serialized error text so the model can react
// to them on the next step.
func (l *Loop) executeCall(ctx context.Context, call *toolcall.Record, registry tools.ToolRegistry) string {
	result, err := l.executor.ExecuteToolCall(ctx, tools.ToolCall{
		ID:        call.ID,
		Name:      call.Name,
		Arguments: call.Args,
	}, registry)
	if err != nil {
		log.Debug().Err(err).Str("tool", call.Name).Msg("tool call failed")
		return fmt.Sprintf("Error: %s", err.Error())
	}
	return result.Serialize()
}

func toolSpecs(registry tools.ToolRegistry) []provider.ToolSpec {
	if registry == nil {
		return nil
	}
	var specs []provider.ToolSpec
	for _, def := range registry.ListTools() {
		if !def.Enabled {
			continue
		}
		specs = append(specs, provider.ToolSpec{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  def.Parameters,
		})
	}
	return specs
}

// dedupeCalls drops calls that repeat an earlier (name, arguments) pair
// within the same step.
func dedupeCalls(calls []*toolcall.Record) []*toolcall.Record {
	seen := make(map[string]bool, len(calls))
	out := make([]*toolcall.Record, 0, len(calls))
	for _, call := range calls {
		key := call.Name + "\x00" + string(call.Args)
		if seen[key] {
			log.Debug().Str("tool", call.Name).Msg("dropping duplicate tool call")
			continue
		}
		seen[key] = true
		out = append(out, call)
	}
	return out
}

// summarizeCalls builds the synthetic assistant message recorded before tool
// execution.
func summarizeCalls(text string, calls []*toolcall.Record) string {
	var b strings.Builder
	if text != "" {
		b.WriteString(text)
		b.WriteString("\n")
	}
	for i, call := range calls {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Calling tool %s with arguments %s", call.Name, string(call.Args))
	}
	return b.String()
}

// toolUnsupportedSignatures are the narrow provider error messages that mean
// the chosen model cannot take a tools parameter at all.
var toolUnsupportedSignatures = []string{
	"does not support tool",
	"tool use is not supported",
	"tools are not supported",
	"no endpoints found that support tool use",
}

func isToolUnsupportedErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range toolUnsupportedSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
