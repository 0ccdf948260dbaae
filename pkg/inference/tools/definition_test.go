package tools

import (
	"context"
	"testing"
)

type testContextKey string

type testInput struct {
	Value int `json:"value"`
}

func TestToolFuncExecuteWithContext_SupportsContextAndInputSignature(t *testing.T) {
	def, err := NewToolFromFunc(
		"ctx_input_tool",
		"test",
		func(ctx context.Context, in testInput) (int, error) {
			if ctx == nil {
				t.Fatalf("ctx should not be nil")
			}
			return in.Value + 1, nil
		},
	)
	if err != nil {
		t.Fatalf("NewToolFromFunc failed: %v", err)
	}

	out, err := def.Function.ExecuteWithContext(context.Background(), []byte(`{"value":41}`))
	if err != nil {
		t.Fatalf("ExecuteWithContext failed: %v", err)
	}

	v, ok := out.(int)
	if !ok {
		t.Fatalf("expected int result, got %T", out)
	}
	if v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}
}

func TestToolFuncExecuteWithContext_PassesProvidedContext(t *testing.T) {
	key := testContextKey("tool-test-key")
	def, err := NewToolFromFunc(
		"ctx_passthrough_tool",
		"test",
		func(ctx context.Context, in testInput) (bool, error) {
			if ctx == nil {
				return false, nil
			}
			v, _ := ctx.Value(key).(string)
			return v == "ok" && in.Value == 7, nil
		},
	)
	if err != nil {
		t.Fatalf("NewToolFromFunc failed: %v", err)
	}

	ctx := context.WithValue(context.Background(), key, "ok")
	out, err := def.Function.ExecuteWithContext(ctx, []byte(`{"value":7}`))
	if err != nil {
		t.Fatalf("ExecuteWithContext failed: %v", err)
	}

	v, ok := out.(bool)
	if !ok {
		t.Fatalf("expected bool result, got %T", out)
	}
	if !v {
		t.Fatalf("expected true result")
	}
}

func TestToolFuncExecuteWithContext_NoInputSignature(t *testing.T) {
	def, err := NewToolFromFunc("no_input_tool", "test", func() string {
		return "hello"
	})
	if err != nil {
		t.Fatalf("NewToolFromFunc failed: %v", err)
	}
	if def.Parameters == nil || def.Parameters.Type != "object" {
		t.Fatalf("expected empty object schema")
	}

	out, err := def.Function.ExecuteWithContext(context.Background(), nil)
	if err != nil {
		t.Fatalf("ExecuteWithContext failed: %v", err)
	}
	if out != "hello" {
		t.Fatalf("expected hello, got %v", out)
	}
}

func TestNewToolFromFunc_RejectsBadSignatures(t *testing.T) {
	if _, err := NewToolFromFunc("not_a_func", "test", 42); err == nil {
		t.Fatalf("expected error for non-function value")
	}
	if _, err := NewToolFromFunc("no_returns", "test", func(in testInput) {}); err == nil {
		t.Fatalf("expected error for function without return values")
	}
	if _, err := NewToolFromFunc("bad_second_return", "test", func(in testInput) (int, int) {
		return 0, 0
	}); err == nil {
		t.Fatalf("expected error for non-error second return")
	}
}
