package uc

import (
	"context"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/weftworks/loom/engine/runtime"
	"github.com/weftworks/loom/engine/store"
	"github.com/weftworks/loom/engine/tool"
	"github.com/weftworks/loom/pkg/logger"
)

type ScheduleToolInput struct {
	Name string
	Cron string
	Args map[string]any
}

// ScheduleTool runs one tool on a cron schedule until the context is
// canceled. Each tick is an independent run; a failed run is logged and
// the schedule keeps going.
type ScheduleTool struct {
	store    store.Store
	registry *runtime.Registry
}

func NewScheduleTool(s store.Store, reg *runtime.Registry) *ScheduleTool {
	return &ScheduleTool{store: s, registry: reg}
}

func (uc *ScheduleTool) Execute(ctx context.Context, in *ScheduleToolInput) error {
	if in == nil || strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Cron) == "" {
		return ErrInvalidInput
	}
	log := logger.FromContext(ctx)
	runner := NewRunTool(uc.store, uc.registry)

	c := cron.New()
	_, err := c.AddFunc(in.Cron, func() {
		args := make(map[string]any, len(in.Args))
		for key, val := range in.Args {
			args[key] = val
		}
		out, err := runner.Execute(ctx, &RunToolInput{Name: in.Name, Args: args})
		if err != nil {
			if tool.IsFailure(err) {
				log.Warn("Scheduled run failed", "tool", in.Name, "error", err)
				return
			}
			log.Error("Scheduled run misconfigured", "tool", in.Name, "error", err)
			return
		}
		log.Info("Scheduled run finished", "tool", in.Name, "outputs", len(out.Outputs))
	})
	if err != nil {
		return fmt.Errorf("%w: cron expression %q: %v", ErrInvalidInput, in.Cron, err)
	}

	log.Info("Scheduling tool", "tool", in.Name, "cron", in.Cron)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
