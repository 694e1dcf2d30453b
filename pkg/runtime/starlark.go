package runtime

import (
	"context"
	"fmt"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// StarlarkEvaluator executes compute-function source blobs. A blob either
// defines a function named "compute", which is called with the instance data
// dict followed by the call arguments, or assigns its result to a global
// named "result".
type StarlarkEvaluator struct {
	timeout time.Duration
}

// NewStarlarkEvaluator creates a new evaluator. A zero timeout defaults to
// 30 seconds.
func NewStarlarkEvaluator(timeout time.Duration) *StarlarkEvaluator {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &StarlarkEvaluator{timeout: timeout}
}

// Eval executes source against the given instance data and call arguments.
func (se *StarlarkEvaluator) Eval(ctx context.Context, source string, data map[string]any, args []any) (any, error) {
	evalCtx, cancel := context.WithTimeout(ctx, se.timeout)
	defer cancel()

	resultCh := make(chan any, 1)
	errCh := make(chan error, 1)

	go func() {
		result, err := se.evalSync(source, data, args)
		if err != nil {
			errCh <- err
		} else {
			resultCh <- result
		}
	}()

	select {
	case <-evalCtx.Done():
		return nil, fmt.Errorf("compute execution timeout after %v", se.timeout)
	case err := <-errCh:
		return nil, err
	case result := <-resultCh:
		return result, nil
	}
}

func (se *StarlarkEvaluator) evalSync(source string, data map[string]any, args []any) (any, error) {
	thread := &starlark.Thread{
		Name: "entweave",
		Print: func(_ *starlark.Thread, msg string) {
			// Suppress print output
		},
	}

	dataVal, err := toStarlarkValue(normalizeMap(data))
	if err != nil {
		return nil, fmt.Errorf("failed to convert instance data: %w", err)
	}

	predeclared := starlark.StringDict{
		"struct": starlarkstruct.Default,
		"data":   dataVal,
	}

	globals, err := starlark.ExecFile(thread, "compute.star", source, predeclared)
	if err != nil {
		return nil, fmt.Errorf("compute execution failed: %w", err)
	}

	if fn, ok := globals["compute"]; ok {
		callArgs := starlark.Tuple{dataVal}
		for _, a := range args {
			v, err := toStarlarkValue(a)
			if err != nil {
				return nil, fmt.Errorf("failed to convert argument: %w", err)
			}
			callArgs = append(callArgs, v)
		}
		out, err := starlark.Call(thread, fn, callArgs, nil)
		if err != nil {
			return nil, fmt.Errorf("compute call failed: %w", err)
		}
		return fromStarlarkValue(out)
	}

	if out, ok := globals["result"]; ok {
		return fromStarlarkValue(out)
	}

	return nil, fmt.Errorf("compute source defines neither compute() nor result")
}

// normalizeMap widens map[string]any to map[string]interface{} recursively so
// the converter accepts it.
func normalizeMap(m map[string]any) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}

// toStarlarkValue converts a Go value to a Starlark value.
func toStarlarkValue(v interface{}) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case []interface{}:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			starlarkItem, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = starlarkItem
		}
		return starlark.NewList(list), nil
	case map[string]interface{}:
		dict := starlark.NewDict(len(val))
		for k, v := range val {
			starlarkVal, err := toStarlarkValue(v)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), starlarkVal); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// fromStarlarkValue converts a Starlark value to a Go value.
func fromStarlarkValue(v starlark.Value) (interface{}, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large")
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		list := make([]interface{}, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlarkValue(val.Index(i))
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case *starlark.Dict:
		dict := make(map[string]interface{})
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string")
			}
			value, err := fromStarlarkValue(item[1])
			if err != nil {
				return nil, err
			}
			dict[string(key)] = value
		}
		return dict, nil
	case *starlarkstruct.Struct:
		dict := make(map[string]interface{})
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				continue
			}
			value, err := fromStarlarkValue(attr)
			if err != nil {
				return nil, err
			}
			dict[name] = value
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}
