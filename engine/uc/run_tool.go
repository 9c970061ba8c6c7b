// Package uc holds the application use cases the CLI drives: running
// tools, importing and syncing config files, deletions, migrations, and
// scheduled runs.
package uc

import (
	"context"
	"fmt"
	"strings"

	"github.com/weftworks/loom/engine/core"
	"github.com/weftworks/loom/engine/resource"
	"github.com/weftworks/loom/engine/runtime"
	"github.com/weftworks/loom/engine/store"
	"github.com/weftworks/loom/engine/tool"
)

type RunToolInput struct {
	Name string
	Args map[string]any
}

type RunToolOutput struct {
	Outputs tool.Output
}

type RunTool struct {
	store    store.Store
	registry *runtime.Registry
}

func NewRunTool(s store.Store, reg *runtime.Registry) *RunTool {
	return &RunTool{store: s, registry: reg}
}

func (uc *RunTool) Execute(ctx context.Context, in *RunToolInput) (*RunToolOutput, error) {
	if in == nil || strings.TrimSpace(in.Name) == "" {
		return nil, ErrInvalidInput
	}
	fields := core.NewRecord()
	fields.Set("name", core.String(in.Name))
	shed := resource.NewShed(uc.store)
	t, err := tool.New(ctx, uc.store, &tool.Config{Fields: fields}, "", shed)
	if err != nil {
		return nil, err
	}
	if t.ID().IsZero() {
		return nil, fmt.Errorf("%w: %q", ErrToolNotFound, in.Name)
	}
	outputs, err := t.Run(ctx, uc.registry, in.Args)
	if err != nil {
		return nil, err
	}
	return &RunToolOutput{Outputs: outputs}, nil
}
