// Package sequential provides the sequentialThinking tool: a scratchpad where
// the model writes numbered thoughts, revises earlier ones and branches into
// alternative lines of reasoning before answering.
package sequential

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/invopop/jsonschema"

	"github.com/MrWong99/odab/internal/thinking"
	"github.com/MrWong99/odab/internal/tools"
	"github.com/MrWong99/odab/pkg/types"
)

// Description is the tool description shown to the model.
const Description = `A detailed tool for dynamic and reflective problem-solving through thoughts.
Each thought can build on, question, or revise previous insights as understanding deepens.

Use it to:
- break a problem down into steps
- plan with room for revision
- course correct when an earlier step turns out wrong
- explore an alternative approach by branching from an earlier thought

Set nextThoughtNeeded to false only when you are done and have a satisfactory answer.
You may raise totalThoughts at any time; thoughtNumber may exceed the initial estimate.`

// Input is the argument object of a sequentialThinking call. Its JSON schema is
// reflected into the tool definition.
type Input struct {
	Thought           string `json:"thought" jsonschema:"description=Your current thinking step"`
	NextThoughtNeeded bool   `json:"nextThoughtNeeded" jsonschema:"description=Whether another thought step is needed"`
	ThoughtNumber     int    `json:"thoughtNumber" jsonschema:"minimum=1,description=Current thought number"`
	TotalThoughts     int    `json:"totalThoughts" jsonschema:"minimum=1,description=Estimated total thoughts needed"`

	IsRevision        bool   `json:"isRevision,omitempty" jsonschema:"description=Whether this revises previous thinking"`
	RevisesThought    int    `json:"revisesThought,omitempty" jsonschema:"minimum=1,description=Which thought is being reconsidered"`
	BranchFromThought int    `json:"branchFromThought,omitempty" jsonschema:"minimum=1,description=Branching point thought number"`
	BranchID          string `json:"branchId,omitempty" jsonschema:"description=Branch identifier"`
	NeedsMoreThoughts bool   `json:"needsMoreThoughts,omitempty" jsonschema:"description=If more thoughts are needed"`
}

// Schema returns the JSON schema of [Input] as a plain map.
func Schema() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	s := reflector.Reflect(&Input{})

	params := map[string]any{"type": "object"}
	// Round-trip through JSON so callers get plain maps instead of the
	// reflector's ordered-map types.
	if data, err := json.Marshal(s.Properties); err == nil {
		var props map[string]any
		if json.Unmarshal(data, &props) == nil {
			params["properties"] = props
		}
	}
	if len(s.Required) > 0 {
		params["required"] = s.Required
	}
	params["additionalProperties"] = false
	return params
}

// Definition returns the tool descriptor sent to the model.
func Definition() types.ToolDefinition {
	return types.ToolDefinition{
		Name:        string(tools.SequentialThinking),
		Description: Description,
		Parameters:  Schema(),
	}
}

// Tool returns the registrable sequentialThinking tool. Every Bind creates a
// new ledger, so each run sees its own thought history.
func Tool(opts ...thinking.Option) tools.Tool {
	return tools.Tool{
		Name:       tools.SequentialThinking,
		Definition: Definition(),
		Bind: func() tools.Handler {
			return Handler(thinking.New(opts...))
		},
	}
}

// Handler returns a tool handler backed by ledger.
func Handler(ledger *thinking.Ledger) tools.Handler {
	return func(ctx context.Context, input map[string]any) (any, error) {
		sum, err := ledger.Record(input)
		if err != nil {
			slog.DebugContext(ctx, "sequential: thought rejected", "err", err)
			return nil, err
		}
		return sum, nil
	}
}
