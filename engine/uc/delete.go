package uc

import (
	"context"
	"fmt"
	"strings"

	"github.com/weftworks/loom/engine/core"
	"github.com/weftworks/loom/engine/store"
	"github.com/weftworks/loom/engine/tool"
)

type DeleteToolInput struct {
	Name string
}

type DeleteTool struct {
	store store.Store
}

func NewDeleteTool(s store.Store) *DeleteTool {
	return &DeleteTool{store: s}
}

func (uc *DeleteTool) Execute(ctx context.Context, in *DeleteToolInput) error {
	if in == nil || strings.TrimSpace(in.Name) == "" {
		return ErrInvalidInput
	}
	t, err := loadToolByName(ctx, uc.store, in.Name)
	if err != nil {
		return err
	}
	return t.Delete(ctx)
}

type DeleteToolParamInput struct {
	Tool  string
	Param string
}

type DeleteToolParam struct {
	store store.Store
}

func NewDeleteToolParam(s store.Store) *DeleteToolParam {
	return &DeleteToolParam{store: s}
}

func (uc *DeleteToolParam) Execute(ctx context.Context, in *DeleteToolParamInput) error {
	if in == nil || strings.TrimSpace(in.Tool) == "" || strings.TrimSpace(in.Param) == "" {
		return ErrInvalidInput
	}
	t, err := loadToolByName(ctx, uc.store, in.Tool)
	if err != nil {
		return err
	}
	return t.DeleteParam(ctx, in.Param)
}

type DeleteToolOutputInput struct {
	Tool   string
	Output string
}

type DeleteToolOutput struct {
	store store.Store
}

func NewDeleteToolOutput(s store.Store) *DeleteToolOutput {
	return &DeleteToolOutput{store: s}
}

func (uc *DeleteToolOutput) Execute(ctx context.Context, in *DeleteToolOutputInput) error {
	if in == nil || strings.TrimSpace(in.Tool) == "" || strings.TrimSpace(in.Output) == "" {
		return ErrInvalidInput
	}
	t, err := loadToolByName(ctx, uc.store, in.Tool)
	if err != nil {
		return err
	}
	return t.DeleteOutput(ctx, in.Output)
}

func loadToolByName(ctx context.Context, s store.Store, name string) (*tool.Tool, error) {
	fields := core.NewRecord()
	fields.Set("name", core.String(name))
	t, err := tool.New(ctx, s, &tool.Config{Fields: fields}, "", nil)
	if err != nil {
		return nil, fmt.Errorf("loading tool %q: %w", name, err)
	}
	return t, nil
}
