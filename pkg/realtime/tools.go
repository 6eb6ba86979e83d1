package realtime

import (
	"encoding/json"
	"fmt"
)

// ToolDefinition describes one externally-implemented action the model may
// request. The catalog is sent once at connect time as part of the session
// configuration; the session never executes tools itself.
type ToolDefinition struct {
	// Name uniquely identifies the tool.
	Name string

	// Description tells the model what the tool does.
	Description string

	// Parameters is a JSON-schema-shaped description of the arguments.
	Parameters map[string]any
}

// ToolCall is a completed function-call request from the model.
type ToolCall struct {
	// Name of the requested tool.
	Name string

	// CallID correlates this call with the model's response item.
	CallID string

	// RawArguments is the argument payload as a JSON string, validated
	// but not decoded; the consumer unmarshals it into its own types.
	RawArguments string
}

// parseToolCall validates a function_call_arguments.done event into a
// ToolCall. Malformed arguments reject just this call; the session keeps
// processing subsequent messages.
func parseToolCall(evt *serverEvent) (ToolCall, error) {
	if evt.Name == "" {
		return ToolCall{}, fmt.Errorf("realtime: tool call without name")
	}
	args := evt.Arguments
	if args == "" {
		args = "{}"
	}
	if !json.Valid([]byte(args)) {
		return ToolCall{}, fmt.Errorf("realtime: tool call %q: arguments are not valid JSON", evt.Name)
	}
	return ToolCall{
		Name:         evt.Name,
		CallID:       evt.CallID,
		RawArguments: args,
	}, nil
}

// toWireTools converts the catalog to the wire tool format.
func toWireTools(tools []ToolDefinition) []wireTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]wireTool, len(tools))
	for i, t := range tools {
		out[i] = wireTool{
			Type:        "function",
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		}
	}
	return out
}
