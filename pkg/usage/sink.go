package usage

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// RunReport is the final usage record for one orchestration run, keyed by
// run and message so a billing layer can attribute the cost.
type RunReport struct {
	RunID     string    `json:"run_id"`
	UserID    string    `json:"user_id,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
	Model     string    `json:"model"`
	Totals    Snapshot  `json:"totals"`
	Time      time.Time `json:"time"`
}

// Sink receives the final usage snapshot of a run. Persistence backends
// implement this.
type Sink interface {
	LogUsage(ctx context.Context, report RunReport) error
}

// NullSink discards reports.
type NullSink struct{}

func (NullSink) LogUsage(context.Context, RunReport) error { return nil }

// LogSink writes reports to the structured log.
type LogSink struct{}

func (LogSink) LogUsage(_ context.Context, report RunReport) error {
	log.Info().
		Str("run_id", report.RunID).
		Str("model", report.Model).
		Int("prompt_tokens", report.Totals.PromptTokens).
		Int("completion_tokens", report.Totals.CompletionTokens).
		Int("reasoning_tokens", report.Totals.ReasoningTokens).
		Float64("cost_usd", report.Totals.CostUSD).
		Float64("credits", report.Totals.Credits).
		Bool("estimated", report.Totals.Estimated).
		Msg("run usage")
	return nil
}

// FileSink appends one JSON line per run to a ledger file.
type FileSink struct {
	mu   sync.Mutex
	path string
}

func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

func (s *FileSink) LogUsage(_ context.Context, report RunReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "failed to open usage ledger %s", s.path)
	}
	defer func() { _ = f.Close() }()

	line, err := json.Marshal(report)
	if err != nil {
		return errors.Wrap(err, "failed to marshal usage report")
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return errors.Wrap(err, "failed to append usage report")
	}
	return nil
}

// MultiSink fans a report out to several sinks, returning the first error.
type MultiSink []Sink

func (m MultiSink) LogUsage(ctx context.Context, report RunReport) error {
	for _, s := range m {
		if err := s.LogUsage(ctx, report); err != nil {
			return err
		}
	}
	return nil
}
