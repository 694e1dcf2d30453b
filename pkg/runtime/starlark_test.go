package runtime

import (
	"context"
	"testing"
	"time"
)

func TestEvalComputeFunctionForm(t *testing.T) {
	eval := NewStarlarkEvaluator(0)

	out, err := eval.Eval(context.Background(),
		"def compute(data, factor):\n    return data[\"n\"] * factor",
		map[string]any{"n": 7}, []any{6})
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	if n, ok := out.(int64); !ok || n != 42 {
		t.Errorf("out = %v (%T), want 42", out, out)
	}
}

func TestEvalResultForm(t *testing.T) {
	eval := NewStarlarkEvaluator(0)

	out, err := eval.Eval(context.Background(),
		"result = [x * 2 for x in data[\"xs\"]]",
		map[string]any{"xs": []any{1, 2, 3}}, nil)
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	list, ok := out.([]any)
	if !ok || len(list) != 3 || list[2].(int64) != 6 {
		t.Errorf("out = %v", out)
	}
}

func TestEvalRejectsShapelessSource(t *testing.T) {
	eval := NewStarlarkEvaluator(0)

	if _, err := eval.Eval(context.Background(), "x = 1", nil, nil); err == nil {
		t.Error("source without compute() or result should fail")
	}
}

func TestEvalSyntaxError(t *testing.T) {
	eval := NewStarlarkEvaluator(time.Second)

	if _, err := eval.Eval(context.Background(), "def broken(:", nil, nil); err == nil {
		t.Error("syntax error should surface")
	}
}
