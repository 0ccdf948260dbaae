package main

import (
	"time"

	"github.com/pkg/errors"

	"github.com/go-go-golems/stromboli/pkg/inference/tools"
)

type echoInput struct {
	Text string `json:"text" jsonschema:"title=text,description=The text to echo back"`
}

type calculatorInput struct {
	Operation string  `json:"operation" jsonschema:"enum=add,enum=subtract,enum=multiply,enum=divide"`
	A         float64 `json:"a"`
	B         float64 `json:"b"`
}

// newDemoRegistry wires up the example tools the chat command exposes to the
// model.
func newDemoRegistry() (*tools.InMemoryToolRegistry, error) {
	registry := tools.NewInMemoryToolRegistry()

	echo, err := tools.NewToolFromFunc("echo", "Echo the given text back verbatim",
		func(in echoInput) (string, error) {
			return in.Text, nil
		})
	if err != nil {
		return nil, err
	}
	if err := registry.RegisterTool("echo", *echo); err != nil {
		return nil, err
	}

	now, err := tools.NewToolFromFunc("current_time", "Get the current date and time in RFC3339 format",
		func() string {
			return time.Now().Format(time.RFC3339)
		})
	if err != nil {
		return nil, err
	}
	if err := registry.RegisterTool("current_time", *now); err != nil {
		return nil, err
	}

	calculator, err := tools.NewToolFromFunc("calculator", "Perform basic arithmetic on two numbers",
		func(in calculatorInput) (float64, error) {
			switch in.Operation {
			case "add":
				return in.A + in.B, nil
			case "subtract":
				return in.A - in.B, nil
			case "multiply":
				return in.A * in.B, nil
			case "divide":
				if in.B == 0 {
					return 0, errors.New("division by zero")
				}
				return in.A / in.B, nil
			default:
				return 0, errors.Errorf("unknown operation: %s", in.Operation)
			}
		})
	if err != nil {
		return nil, err
	}
	if err := registry.RegisterTool("calculator", *calculator); err != nil {
		return nil, err
	}

	return registry, nil
}
