package tools

import (
	"context"
	"encoding/json"
	"reflect"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// ToolDefinition describes a callable tool. Disabled tools stay registered
// but are hidden from the model and rejected by the executor.
type ToolDefinition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
	Enabled     bool               `json:"enabled"`
	Function    ToolFunc           `json:"-"`
}

// ToolFunc wraps a Go function with a pre-compiled reflective executor.
type ToolFunc struct {
	Fn        interface{}                                        `json:"-"`
	executor  func(context.Context, []byte) (interface{}, error) `json:"-"`
	inputType reflect.Type                                       `json:"-"`
}

var (
	ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errType = reflect.TypeOf((*error)(nil)).Elem()
)

// NewToolFromFunc builds a ToolDefinition from a Go function. Supported
// signatures:
//
//	func(Input) (Result, error)
//	func(context.Context, Input) (Result, error)
//	func(Input) Result
//
// where Input is a struct whose JSON schema is derived by reflection. The
// returned tool is enabled.
func NewToolFromFunc(name, description string, fn interface{}) (*ToolDefinition, error) {
	funcType := reflect.TypeOf(fn)
	if funcType == nil || funcType.Kind() != reflect.Func {
		return nil, errors.New("provided value is not a function")
	}

	if funcType.NumOut() == 0 || funcType.NumOut() > 2 {
		return nil, errors.New("function must return (result) or (result, error)")
	}
	if funcType.NumOut() == 2 && !funcType.Out(1).Implements(errType) {
		return nil, errors.New("second return value must be an error")
	}

	inputType, err := resolveInputType(funcType)
	if err != nil {
		return nil, err
	}

	schema, err := schemaForInput(inputType)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate schema")
	}

	return &ToolDefinition{
		Name:        name,
		Description: description,
		Parameters:  schema,
		Enabled:     true,
		Function: ToolFunc{
			Fn:        fn,
			executor:  makeExecutor(reflect.ValueOf(fn), funcType, inputType),
			inputType: inputType,
		},
	}, nil
}

// ExecuteWithContext runs the wrapped function, unmarshaling args into the
// input struct when the signature takes one.
func (tf *ToolFunc) ExecuteWithContext(ctx context.Context, args []byte) (interface{}, error) {
	if tf.executor == nil {
		return nil, errors.New("tool function not properly initialized")
	}
	return tf.executor(ctx, args)
}

func resolveInputType(funcType reflect.Type) (reflect.Type, error) {
	switch funcType.NumIn() {
	case 0:
		return nil, nil
	case 1:
		if funcType.In(0) == ctxType {
			return nil, nil
		}
		return funcType.In(0), nil
	case 2:
		if funcType.In(0) != ctxType {
			return nil, errors.New("two-arg tool function must be (context.Context, Input)")
		}
		return funcType.In(1), nil
	default:
		return nil, errors.New("function must take (Input) or (context.Context, Input)")
	}
}

func schemaForInput(inputType reflect.Type) (*jsonschema.Schema, error) {
	if inputType == nil {
		return &jsonschema.Schema{Type: "object"}, nil
	}

	reflector := jsonschema.Reflector{
		// Expand definitions inline instead of using $refs
		DoNotReference: true,
	}
	schema := reflector.Reflect(reflect.New(inputType).Elem().Interface())
	if schema.Type == "" && schema.Ref == "" {
		schema.Type = "object"
	}
	return schema, nil
}

func makeExecutor(funcValue reflect.Value, funcType reflect.Type, inputType reflect.Type) func(context.Context, []byte) (interface{}, error) {
	wantsCtx := funcType.NumIn() > 0 && funcType.In(0) == ctxType

	return func(ctx context.Context, args []byte) (interface{}, error) {
		var in []reflect.Value
		if wantsCtx {
			in = append(in, reflect.ValueOf(ctx))
		}
		if inputType != nil {
			input := reflect.New(inputType).Interface()
			if len(args) > 0 {
				if err := json.Unmarshal(args, input); err != nil {
					return nil, errors.Wrap(err, "failed to unmarshal arguments")
				}
			}
			in = append(in, reflect.ValueOf(input).Elem())
		}

		results := funcValue.Call(in)
		if len(results) == 2 {
			if errVal := results[1].Interface(); errVal != nil {
				return results[0].Interface(), errVal.(error)
			}
		}
		return results[0].Interface(), nil
	}
}
