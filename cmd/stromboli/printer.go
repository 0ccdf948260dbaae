package main

import (
	"fmt"
	"io"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/go-go-golems/stromboli/pkg/events"
)

// printActivity renders tool and usage events to w. Text partials are left to
// the run loop's emit callback so output is not duplicated.
func printActivity(w io.Writer) func(msg *message.Message) error {
	return func(msg *message.Message) error {
		event, err := events.NewEventFromJson(msg.Payload)
		if err != nil {
			return err
		}

		switch e := event.(type) {
		case *events.EventToolCall:
			fmt.Fprintf(w, "\n[tool call] %s %s\n", e.ToolCall.Name, e.ToolCall.Input)
		case *events.EventToolCallExecute:
			fmt.Fprintf(w, "[tool exec] %s\n", e.ToolCall.Name)
		case *events.EventToolResult:
			fmt.Fprintf(w, "[tool result] %s\n", e.ToolResult.Result)
		case *events.EventUsage:
			fmt.Fprintf(w, "[usage] prompt=%d completion=%d cost=$%.6f estimated=%v\n",
				e.InputTokens, e.OutputTokens, e.CostUSD, e.Estimated)
		case *events.EventError:
			fmt.Fprintf(w, "[error] %s\n", e.ErrorString)
		case *events.EventInterrupt:
			fmt.Fprintln(w, "[interrupted]")
		}
		return nil
	}
}
