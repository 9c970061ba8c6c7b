package tool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/weftworks/loom/engine/core"
	"github.com/weftworks/loom/engine/runtime"
	"github.com/weftworks/loom/pkg/logger"
)

const (
	ActivityTable      = "activity"
	BatchActivityTable = "batch_activity"
)

// RunError is the failure signal: the tool (or one of its predecessors)
// started but did not succeed. It is distinct from configuration and
// graph-integrity errors, which surface as ordinary errors.
type RunError struct {
	Tool  string
	Cause error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("tool %q failed: %v", e.Tool, e.Cause)
}

func (e *RunError) Unwrap() error { return e.Cause }

// IsFailure reports whether err is a run failure signal rather than a
// configuration or graph-integrity error.
func IsFailure(err error) bool {
	var re *RunError
	return errors.As(err, &re)
}

// Output is the named output mapping produced by one tool run.
type Output map[string]any

// Run executes the tool: predecessors first, in declaration order, then
// the tool's own target, resolved through the registry. Inputs and
// outputs are recorded in the activity ledger. A *RunError return means
// the run failed after configuration succeeded; the output mapping is nil
// in that case.
func (t *Tool) Run(ctx context.Context, reg *runtime.Registry, args map[string]any) (Output, error) {
	if t.Path() == "" {
		return nil, fmt.Errorf("path not found for tool %q", t.Name())
	}
	// Resolved inputs are written into the argument map before invocation,
	// so each run frame works on its own copy of the caller's arguments.
	frame := make(map[string]any, len(args))
	for key, val := range args {
		frame[key] = val
	}
	args = frame

	predOutputs, defaultPred, err := t.runPredecessors(ctx, reg, args)
	if err != nil {
		return nil, err
	}

	// An identifier must exist before activity rows can reference it.
	if t.ID().IsZero() {
		if err := t.Commit(ctx); err != nil {
			return nil, err
		}
	}

	activityID, err := core.NewID()
	if err != nil {
		return nil, err
	}
	if err := t.updateInputs(ctx, activityID, predOutputs, defaultPred, args); err != nil {
		return nil, err
	}

	fn, err := reg.Lookup(t.Path())
	if err != nil {
		return nil, fmt.Errorf("resolving target for tool %q: %w", t.Name(), err)
	}

	startTime, err := t.startActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}

	results, invokeErr := fn(ctx, args)
	if invokeErr != nil {
		logger.FromContext(ctx).Error("Tool failed", "tool", t.Name(), "error", invokeErr)
		if err := t.endActivity(ctx, activityID, startTime, false, invokeErr.Error()); err != nil {
			return nil, err
		}
		return nil, &RunError{Tool: t.Name(), Cause: invokeErr}
	}

	// Returned values zip positionally against the declared output names.
	// Extras are dropped; trailing names stay unset.
	outputs := make(Output)
	for i, name := range t.outputs {
		if i >= len(results) {
			break
		}
		outputs[name] = results[i]
	}

	if err := t.writeBatches(ctx, batchIDs(outputs), activityID); err != nil {
		return nil, err
	}
	message, _ := outputs["message"].(string)
	if err := t.endActivity(ctx, activityID, startTime, true, message); err != nil {
		return nil, err
	}
	if err := t.updateOutputs(ctx, outputs, activityID, args); err != nil {
		return nil, err
	}
	return outputs, nil
}

// runPredecessors runs every predecessor in declaration order and
// accumulates their outputs by predecessor name. The first failure
// aborts the whole run. When there is exactly one predecessor, its name
// doubles as the default feeder for unqualified input bindings.
func (t *Tool) runPredecessors(ctx context.Context, reg *runtime.Registry, args map[string]any) (map[string]Output, string, error) {
	predOutputs := make(map[string]Output)
	defaultPred := ""
	for _, ref := range t.predecessors {
		if ref.ToolID.IsZero() {
			return nil, "", fmt.Errorf("predecessor %q of tool %q not found", ref.Name, t.Name())
		}
		pred, err := New(ctx, t.store, nil, ref.ToolID, t.shed)
		if err != nil {
			return nil, "", err
		}
		result, err := pred.Run(ctx, reg, args)
		if err != nil {
			var failure *RunError
			if errors.As(err, &failure) {
				logger.FromContext(ctx).Warn("Tool failed due to predecessor failure",
					"tool", t.Name(), "predecessor", pred.Name())
				return nil, "", &RunError{
					Tool:  t.Name(),
					Cause: fmt.Errorf("predecessor %q failed: %w", pred.Name(), err),
				}
			}
			return nil, "", err
		}
		predOutputs[pred.Name()] = result
		defaultPred = pred.Name()
	}
	if len(t.predecessors) != 1 {
		defaultPred = ""
	}
	return predOutputs, defaultPred, nil
}

// updateInputs resolves every input parameter's effective value, records
// it in the ledger, and passes it to the target under the parameter's
// name. Feeder bindings pull from accumulated predecessor outputs; a
// binding that cannot be satisfied is fatal.
func (t *Tool) updateInputs(
	ctx context.Context,
	activityID core.ID,
	predOutputs map[string]Output,
	defaultPred string,
	args map[string]any,
) error {
	for _, name := range t.paramOrder {
		param := t.params[name]
		if !param.IsInput() {
			continue
		}
		feederTool := param.FeederToolName()
		if feederTool == "" {
			feederTool = defaultPred
		}
		if feederTool != "" && param.FeederParamName() != "" {
			feederOutputs, ok := predOutputs[feederTool]
			if !ok {
				return fmt.Errorf("feeder tool %q not found for tool %q", feederTool, t.Name())
			}
			fed, ok := feederOutputs[param.FeederParamName()]
			if !ok {
				return fmt.Errorf("feeder parameter %q not found for tool %q, feeder %q",
					param.FeederParamName(), t.Name(), feederTool)
			}
			if err := param.SetValue(ctx, fed); err != nil {
				return err
			}
		}

		val, err := t.resolveInput(ctx, param, args)
		if err != nil {
			return err
		}
		val = core.CoerceBool(val)
		args[name] = val
		if err := param.RecordIO(ctx, activityID, val, t.ID()); err != nil {
			return err
		}
	}
	return nil
}

// resolveInput prefers a caller-supplied argument when it carries a
// usable value, falling back to the parameter's own value.
func (t *Tool) resolveInput(ctx context.Context, param *Param, args map[string]any) (any, error) {
	own, err := param.Value(ctx)
	if err != nil {
		return nil, err
	}
	if supplied, ok := args[param.Name()]; ok && truthy(supplied) {
		return supplied, nil
	}
	return own, nil
}

// updateOutputs records every output parameter's observed value after a
// successful invocation.
func (t *Tool) updateOutputs(ctx context.Context, outputs Output, activityID core.ID, args map[string]any) error {
	for _, name := range t.paramOrder {
		param := t.params[name]
		if param.IsInput() {
			continue
		}
		if observed, ok := outputs[name]; ok {
			if err := param.SetValue(ctx, observed); err != nil {
				return err
			}
		}
		val, ok := args[name]
		if !ok {
			var err error
			val, err = param.Value(ctx)
			if err != nil {
				return err
			}
		}
		val = core.CoerceBool(val)
		if err := param.RecordIO(ctx, activityID, val, t.ID()); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tool) startActivity(ctx context.Context, activityID core.ID) (time.Time, error) {
	startTime := time.Now().UTC()
	row := core.NewRecord()
	row.Set("activity_id", core.String(activityID.String()))
	row.Set("tool_id", core.String(t.ID().String()))
	row.Set("tool_name", core.String(t.Name()))
	row.Set("tool_path", core.String(t.Path()))
	row.Set("start_time", core.String(startTime.Format(core.TimeLayout)))
	if err := t.store.SetRow(ctx, ActivityTable, row, "activity_id"); err != nil {
		return time.Time{}, fmt.Errorf("recording activity start for tool %q: %w", t.Name(), err)
	}
	return startTime, nil
}

func (t *Tool) endActivity(ctx context.Context, activityID core.ID, startTime time.Time, succeeded bool, message string) error {
	endTime := time.Now().UTC()
	partial := core.NewRecord()
	partial.Set("end_time", core.String(endTime.Format(core.TimeLayout)))
	partial.Set("duration", core.String(core.FormatDuration(endTime.Sub(startTime))))
	partial.Set("succeeded", core.Bool(succeeded))
	if message != "" {
		partial.Set("message", core.String(message))
	}
	if err := t.store.UpdateRow(ctx, ActivityTable, "activity_id", core.String(activityID.String()), partial); err != nil {
		return fmt.Errorf("recording activity end for tool %q: %w", t.Name(), err)
	}
	return nil
}

// batchIDs extracts the batch identifiers a run reports, under either
// the plural or singular output name.
func batchIDs(outputs Output) []any {
	val, ok := outputs["batch_ids"]
	if !ok {
		val, ok = outputs["batch_id"]
	}
	if !ok || val == nil {
		return nil
	}
	switch x := val.(type) {
	case []any:
		return x
	case []string:
		ids := make([]any, len(x))
		for i, id := range x {
			ids[i] = id
		}
		return ids
	default:
		return []any{val}
	}
}

// writeBatches associates the activity with every batch of data it
// touched.
func (t *Tool) writeBatches(ctx context.Context, ids []any, activityID core.ID) error {
	for _, batchID := range ids {
		relID, err := core.NewID()
		if err != nil {
			return err
		}
		row := core.NewRecord()
		row.Set("relationship_id", core.String(relID.String()))
		row.Set("batch_id", core.FromAny(batchID))
		row.Set("activity_id", core.String(activityID.String()))
		if err := t.store.SetRow(ctx, BatchActivityTable, row, "relationship_id"); err != nil {
			return fmt.Errorf("recording batch for tool %q: %w", t.Name(), err)
		}
	}
	return nil
}

func truthy(val any) bool {
	switch x := val.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	case int:
		return x != 0
	case int64:
		return x != 0
	case float64:
		return x != 0
	default:
		return true
	}
}
