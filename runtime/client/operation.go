package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/satishbabariya/commerce-client/runtime/types"
)

// Operation describes one model operation. Args is the action's args
// struct, a pointer to it, a map or raw JSON.
type Operation struct {
	Model  string       `json:"model"`
	Action types.Action `json:"action"`
	Args   any          `json:"args,omitempty"`
}

// ParseOperation decodes {"model": ..., "action": ..., "args": {...}}.
func ParseOperation(b []byte) (Operation, error) {
	var raw struct {
		Model  string          `json:"model"`
		Action types.Action    `json:"action"`
		Args   json.RawMessage `json:"args"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return Operation{}, types.NewError(types.ErrInvalidArgument, "decode operation: %v", err)
	}
	if raw.Model == "" || raw.Action == "" {
		return Operation{}, types.NewError(types.ErrInvalidArgument, "operation needs a model and an action")
	}
	op := Operation{Model: raw.Model, Action: raw.Action}
	if len(raw.Args) > 0 && string(raw.Args) != "null" {
		op.Args = raw.Args
	}
	return op, nil
}

func (op Operation) String() string {
	return fmt.Sprintf("%s.%s", op.Model, op.Action)
}

// Execute runs op. Single-row reads that match nothing return nil.
func (m Models) Execute(ctx context.Context, op Operation) (any, error) {
	return m.s.execute(ctx, op.Model, op.Action, op.Args)
}
