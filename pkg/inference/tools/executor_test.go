package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoInput struct {
	Text string `json:"text"`
}

func newTestRegistry(t *testing.T) *InMemoryToolRegistry {
	t.Helper()
	registry := NewInMemoryToolRegistry()

	echo, err := NewToolFromFunc("echo", "echoes its input", func(in echoInput) (string, error) {
		return in.Text, nil
	})
	require.NoError(t, err)
	require.NoError(t, registry.RegisterTool("echo", *echo))

	failing, err := NewToolFromFunc("failing", "always fails", func(in echoInput) (string, error) {
		return "", errors.New("boom")
	})
	require.NoError(t, err)
	require.NoError(t, registry.RegisterTool("failing", *failing))

	return registry
}

func TestExecutorRunsTool(t *testing.T) {
	registry := newTestRegistry(t)
	executor := NewExecutor()

	res, err := executor.ExecuteToolCall(context.Background(), ToolCall{
		ID:        "call-1",
		Name:      "echo",
		Arguments: json.RawMessage(`{"text":"hello"}`),
	}, registry)
	require.NoError(t, err)
	assert.Empty(t, res.Error)
	assert.Equal(t, "hello", res.Serialize())
}

func TestExecutorToolNotFound(t *testing.T) {
	registry := newTestRegistry(t)
	executor := NewExecutor()

	_, err := executor.ExecuteToolCall(context.Background(), ToolCall{
		ID:   "call-1",
		Name: "missing",
	}, registry)
	require.Error(t, err)

	var notFound *ToolNotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestExecutorDisabledToolNotFound(t *testing.T) {
	registry := newTestRegistry(t)
	require.NoError(t, registry.SetToolEnabled("echo", false))
	executor := NewExecutor()

	_, err := executor.ExecuteToolCall(context.Background(), ToolCall{
		ID:        "call-1",
		Name:      "echo",
		Arguments: json.RawMessage(`{"text":"hello"}`),
	}, registry)
	require.Error(t, err)

	var notFound *ToolNotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestExecutorMalformedArguments(t *testing.T) {
	registry := newTestRegistry(t)
	executor := NewExecutor()

	_, err := executor.ExecuteToolCall(context.Background(), ToolCall{
		ID:        "call-1",
		Name:      "echo",
		Arguments: json.RawMessage(`{"text":`),
	}, registry)
	require.Error(t, err)

	var parseErr *ArgumentParseError
	assert.True(t, errors.As(err, &parseErr))
}

func TestExecutorToolErrorCapturedInResult(t *testing.T) {
	registry := newTestRegistry(t)
	executor := NewExecutor()

	res, err := executor.ExecuteToolCall(context.Background(), ToolCall{
		ID:        "call-1",
		Name:      "failing",
		Arguments: json.RawMessage(`{"text":"x"}`),
	}, registry)
	require.NoError(t, err)
	assert.Equal(t, "boom", res.Error)
	assert.Equal(t, "Error: boom", res.Serialize())
}

func TestExecutorBatchPreservesOrder(t *testing.T) {
	registry := newTestRegistry(t)
	executor := NewExecutor()

	results, err := executor.ExecuteToolCalls(context.Background(), []ToolCall{
		{ID: "c1", Name: "echo", Arguments: json.RawMessage(`{"text":"one"}`)},
		{ID: "c2", Name: "missing"},
		{ID: "c3", Name: "echo", Arguments: json.RawMessage(`{"text":"three"}`)},
	}, registry)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "one", results[0].Serialize())
	assert.Contains(t, results[1].Error, "tool not found")
	assert.Equal(t, "three", results[2].Serialize())
}
