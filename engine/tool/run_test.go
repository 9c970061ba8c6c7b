package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftworks/loom/engine/core"
	"github.com/weftworks/loom/engine/runtime"
	"github.com/weftworks/loom/engine/store"
)

func activityRows(t *testing.T, s store.Store, toolName string) []*core.Record {
	t.Helper()
	filter := map[string]core.Value{}
	if toolName != "" {
		filter["tool_name"] = core.String(toolName)
	}
	rows, err := s.GetTable(context.Background(), ActivityTable, filter)
	require.NoError(t, err)
	return rows
}

func TestToolRun(t *testing.T) {
	ctx := context.Background()

	t.Run("Should zip returned values against the declared outputs", func(t *testing.T) {
		s := newTestStore(t)
		reg := runtime.NewRegistry()
		reg.MustRegister("demo.get", func(ctx context.Context, args map[string]any) ([]any, error) {
			return []any{"fnord", float64(42)}, nil
		})
		tl := commitTool(t, s, &Config{
			Fields:  toolFields("Get Data", "demo.get"),
			Outputs: []string{"data", "count"},
		})

		out, err := tl.Run(ctx, reg, nil)
		require.NoError(t, err)
		assert.Equal(t, Output{"data": "fnord", "count": float64(42)}, out)
	})

	t.Run("Should drop extra returned values and leave trailing outputs unset", func(t *testing.T) {
		s := newTestStore(t)
		reg := runtime.NewRegistry()
		reg.MustRegister("demo.extra", func(ctx context.Context, args map[string]any) ([]any, error) {
			return []any{"a", "b", "c"}, nil
		})
		reg.MustRegister("demo.short", func(ctx context.Context, args map[string]any) ([]any, error) {
			return []any{"only"}, nil
		})

		extra := commitTool(t, s, &Config{
			Fields:  toolFields("Extra", "demo.extra"),
			Outputs: []string{"first", "second"},
		})
		out, err := extra.Run(ctx, reg, nil)
		require.NoError(t, err)
		assert.Equal(t, Output{"first": "a", "second": "b"}, out)

		short := commitTool(t, s, &Config{
			Fields:  toolFields("Short", "demo.short"),
			Outputs: []string{"first", "second"},
		})
		out, err = short.Run(ctx, reg, nil)
		require.NoError(t, err)
		assert.Equal(t, Output{"first": "only"}, out)
	})

	t.Run("Should fail without a path", func(t *testing.T) {
		s := newTestStore(t)
		tl, err := New(ctx, s, &Config{Fields: toolFields("Pathless", "")}, "", nil)
		require.NoError(t, err)
		_, err = tl.Run(ctx, runtime.NewRegistry(), nil)
		require.Error(t, err)
		assert.False(t, IsFailure(err))
	})

	t.Run("Should commit an unsaved tool before running it", func(t *testing.T) {
		s := newTestStore(t)
		reg := runtime.NewRegistry()
		reg.MustRegister("demo.get", func(ctx context.Context, args map[string]any) ([]any, error) {
			return nil, nil
		})
		tl, err := New(ctx, s, &Config{Fields: toolFields("Get Data", "demo.get")}, "", nil)
		require.NoError(t, err)
		_, err = tl.Run(ctx, reg, nil)
		require.NoError(t, err)
		assert.False(t, tl.ID().IsZero())
	})

	t.Run("Should coerce boolean string inputs", func(t *testing.T) {
		s := newTestStore(t)
		var seen any
		reg := runtime.NewRegistry()
		reg.MustRegister("demo.flagged", func(ctx context.Context, args map[string]any) ([]any, error) {
			seen = args["Overwrite"]
			return nil, nil
		})
		tl := commitTool(t, s, &Config{
			Fields: toolFields("Flagged", "demo.flagged"),
			Params: []ParamConfig{
				{Name: "Overwrite", Fields: paramRecord(map[string]any{"value": "true"})},
			},
		})
		_, err := tl.Run(ctx, reg, nil)
		require.NoError(t, err)
		assert.Equal(t, true, seen)
	})

	t.Run("Should prefer a truthy caller argument over the stored value", func(t *testing.T) {
		s := newTestStore(t)
		var seen any
		reg := runtime.NewRegistry()
		reg.MustRegister("demo.echo", func(ctx context.Context, args map[string]any) ([]any, error) {
			seen = args["Input 1"]
			return nil, nil
		})
		tl := commitTool(t, s, &Config{
			Fields: toolFields("Echo", "demo.echo"),
			Params: []ParamConfig{
				{Name: "Input 1", Fields: paramRecord(map[string]any{"value": "fnord"})},
			},
		})

		_, err := tl.Run(ctx, reg, map[string]any{"Input 1": "frood"})
		require.NoError(t, err)
		assert.Equal(t, "frood", seen)

		_, err = tl.Run(ctx, reg, map[string]any{"Input 1": ""})
		require.NoError(t, err)
		assert.Equal(t, "fnord", seen)
	})

	t.Run("Should keep a predecessor's resolved inputs out of the dependent's arguments", func(t *testing.T) {
		s := newTestStore(t)
		var seen any
		reg := runtime.NewRegistry()
		reg.MustRegister("demo.get", func(ctx context.Context, args map[string]any) ([]any, error) {
			return nil, nil
		})
		reg.MustRegister("demo.crunch", func(ctx context.Context, args map[string]any) ([]any, error) {
			seen = args["Shared"]
			return nil, nil
		})
		pred := commitTool(t, s, &Config{
			Fields: toolFields("Get Data", "demo.get"),
			Params: []ParamConfig{
				{Name: "Shared", Fields: paramRecord(map[string]any{"value": "raw"})},
			},
		})
		tl := commitTool(t, s, &Config{
			Fields:       toolFields("Crunch Data", "demo.crunch"),
			Predecessors: []PredecessorRef{{Name: "Get Data", ToolID: pred.ID()}},
			Params: []ParamConfig{
				{Name: "Shared", Fields: paramRecord(map[string]any{"value": "fnord"})},
			},
		})

		// Both tools resolve a param named "Shared"; the dependent must
		// see its own value, not the predecessor's.
		callerArgs := map[string]any{}
		_, err := tl.Run(ctx, reg, callerArgs)
		require.NoError(t, err)
		assert.Equal(t, "fnord", seen)
		assert.Empty(t, callerArgs)
	})

	t.Run("Should record batch identifiers against the activity", func(t *testing.T) {
		s := newTestStore(t)
		reg := runtime.NewRegistry()
		reg.MustRegister("demo.batched", func(ctx context.Context, args map[string]any) ([]any, error) {
			return []any{[]any{"b1", "b2"}}, nil
		})
		tl := commitTool(t, s, &Config{
			Fields:  toolFields("Batched", "demo.batched"),
			Outputs: []string{"batch_ids"},
		})
		_, err := tl.Run(ctx, reg, nil)
		require.NoError(t, err)

		rows, err := s.GetTable(ctx, BatchActivityTable, nil)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		ids := []string{rows[0].StringField("batch_id"), rows[1].StringField("batch_id")}
		assert.ElementsMatch(t, []string{"b1", "b2"}, ids)
	})
}

func TestToolRunFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("Should signal failure and close the activity when the target errors", func(t *testing.T) {
		s := newTestStore(t)
		reg := runtime.NewRegistry()
		reg.MustRegister("demo.broken", func(ctx context.Context, args map[string]any) ([]any, error) {
			return nil, errors.New("disk on fire")
		})
		tl := commitTool(t, s, &Config{Fields: toolFields("Broken", "demo.broken")})

		out, err := tl.Run(ctx, reg, nil)
		assert.Nil(t, out)
		require.Error(t, err)
		assert.True(t, IsFailure(err))

		rows := activityRows(t, s, "Broken")
		require.Len(t, rows, 1)
		assert.False(t, rows[0].Field("succeeded").AsBool())
		assert.Contains(t, rows[0].StringField("message"), "disk on fire")
	})

	t.Run("Should abort before invoking the dependent when a predecessor fails", func(t *testing.T) {
		s := newTestStore(t)
		invoked := false
		reg := runtime.NewRegistry()
		reg.MustRegister("demo.broken", func(ctx context.Context, args map[string]any) ([]any, error) {
			return nil, errors.New("upstream gone")
		})
		reg.MustRegister("demo.crunch", func(ctx context.Context, args map[string]any) ([]any, error) {
			invoked = true
			return nil, nil
		})
		pred := commitTool(t, s, &Config{Fields: toolFields("Get Data", "demo.broken")})
		tl := commitTool(t, s, &Config{
			Fields:       toolFields("Crunch Data", "demo.crunch"),
			Predecessors: []PredecessorRef{{Name: "Get Data", ToolID: pred.ID()}},
		})

		out, err := tl.Run(ctx, reg, nil)
		assert.Nil(t, out)
		require.Error(t, err)
		assert.True(t, IsFailure(err))
		assert.False(t, invoked)

		// Only the failed predecessor leaves an activity row.
		assert.Len(t, activityRows(t, s, "Get Data"), 1)
		assert.Empty(t, activityRows(t, s, "Crunch Data"))
	})

	t.Run("Should treat an unresolved predecessor as a configuration error", func(t *testing.T) {
		s := newTestStore(t)
		tl, err := New(ctx, s, &Config{
			Fields:       toolFields("Crunch Data", "demo.crunch"),
			Predecessors: []PredecessorRef{{Name: "No Such Tool"}},
		}, "", nil)
		require.NoError(t, err)
		_, err = tl.Run(ctx, runtime.NewRegistry(), nil)
		require.Error(t, err)
		assert.False(t, IsFailure(err))
	})
}

func TestToolRunFeeders(t *testing.T) {
	ctx := context.Background()

	t.Run("Should pull an explicitly bound input from the feeder's outputs", func(t *testing.T) {
		s := newTestStore(t)
		var seen any
		reg := runtime.NewRegistry()
		reg.MustRegister("demo.get", func(ctx context.Context, args map[string]any) ([]any, error) {
			return []any{"fnord"}, nil
		})
		reg.MustRegister("demo.crunch", func(ctx context.Context, args map[string]any) ([]any, error) {
			seen = args["Input 1"]
			return nil, nil
		})
		pred := commitTool(t, s, &Config{
			Fields:  toolFields("Get Data", "demo.get"),
			Outputs: []string{"data"},
		})
		tl := commitTool(t, s, &Config{
			Fields:       toolFields("Crunch Data", "demo.crunch"),
			Predecessors: []PredecessorRef{{Name: "Get Data", ToolID: pred.ID()}},
			Params: []ParamConfig{
				{Name: "Input 1", Fields: paramRecord(map[string]any{
					"feeder_tool_name":  "Get Data",
					"feeder_param_name": "data",
				})},
			},
		})

		_, err := tl.Run(ctx, reg, nil)
		require.NoError(t, err)
		assert.Equal(t, "fnord", seen)
	})

	t.Run("Should default the feeder tool when there is exactly one predecessor", func(t *testing.T) {
		s := newTestStore(t)
		var seen any
		reg := runtime.NewRegistry()
		reg.MustRegister("demo.get", func(ctx context.Context, args map[string]any) ([]any, error) {
			return []any{"fnord"}, nil
		})
		reg.MustRegister("demo.crunch", func(ctx context.Context, args map[string]any) ([]any, error) {
			seen = args["Input 1"]
			return nil, nil
		})
		pred := commitTool(t, s, &Config{
			Fields:  toolFields("Get Data", "demo.get"),
			Outputs: []string{"data"},
		})
		tl := commitTool(t, s, &Config{
			Fields:       toolFields("Crunch Data", "demo.crunch"),
			Predecessors: []PredecessorRef{{Name: "Get Data", ToolID: pred.ID()}},
			Params: []ParamConfig{
				{Name: "Input 1", Fields: paramRecord(map[string]any{
					"feeder_param_name": "data",
				})},
			},
		})

		_, err := tl.Run(ctx, reg, nil)
		require.NoError(t, err)
		assert.Equal(t, "fnord", seen)
	})

	t.Run("Should fail fatally when the bound feeder output is missing", func(t *testing.T) {
		s := newTestStore(t)
		reg := runtime.NewRegistry()
		reg.MustRegister("demo.get", func(ctx context.Context, args map[string]any) ([]any, error) {
			return []any{"fnord"}, nil
		})
		reg.MustRegister("demo.crunch", func(ctx context.Context, args map[string]any) ([]any, error) {
			return nil, nil
		})
		pred := commitTool(t, s, &Config{
			Fields:  toolFields("Get Data", "demo.get"),
			Outputs: []string{"data"},
		})
		tl := commitTool(t, s, &Config{
			Fields:       toolFields("Crunch Data", "demo.crunch"),
			Predecessors: []PredecessorRef{{Name: "Get Data", ToolID: pred.ID()}},
			Params: []ParamConfig{
				{Name: "Input 1", Fields: paramRecord(map[string]any{
					"feeder_param_name": "no_such_output",
				})},
			},
		})

		_, err := tl.Run(ctx, reg, nil)
		require.Error(t, err)
		assert.False(t, IsFailure(err))
		assert.Contains(t, err.Error(), "no_such_output")
	})
}

func TestToolRunLedger(t *testing.T) {
	ctx := context.Background()

	t.Run("Should record one activity per tool and one entry per parameter", func(t *testing.T) {
		s := newTestStore(t)
		reg := runtime.NewRegistry()
		reg.MustRegister("demo.get", func(ctx context.Context, args map[string]any) ([]any, error) {
			return []any{"raw rows"}, nil
		})
		reg.MustRegister("demo.crunch", func(ctx context.Context, args map[string]any) ([]any, error) {
			return []any{"crunched"}, nil
		})
		pred := commitTool(t, s, &Config{
			Fields:  toolFields("Get Data", "demo.get"),
			Outputs: []string{"data"},
		})
		tl := commitTool(t, s, &Config{
			Fields:       toolFields("Crunch Data", "demo.crunch"),
			Outputs:      []string{"result"},
			Predecessors: []PredecessorRef{{Name: "Get Data", ToolID: pred.ID()}},
			Params: []ParamConfig{
				{Name: "Input 1", Fields: paramRecord(map[string]any{"value": "fnord"})},
				{Name: "Input 2", Fields: paramRecord(map[string]any{"value": "frood"})},
			},
		})

		out, err := tl.Run(ctx, reg, nil)
		require.NoError(t, err)
		assert.Equal(t, "crunched", out["result"])

		for _, name := range []string{"Get Data", "Crunch Data"} {
			rows := activityRows(t, s, name)
			require.Len(t, rows, 1, name)
			assert.True(t, rows[0].Field("succeeded").AsBool(), name)
			assert.NotEmpty(t, rows[0].StringField("start_time"), name)
			assert.NotEmpty(t, rows[0].StringField("end_time"), name)
			assert.NotEmpty(t, rows[0].StringField("duration"), name)
		}

		// Get Data: the implicit "data" output. Crunch Data: two inputs
		// plus the implicit "result" output.
		predActivity := activityRows(t, s, "Get Data")[0].StringField("activity_id")
		ios, err := s.GetTable(ctx, ActivityIOTable, map[string]core.Value{
			"activity_id": core.String(predActivity),
		})
		require.NoError(t, err)
		assert.Len(t, ios, 1)

		crunchActivity := activityRows(t, s, "Crunch Data")[0].StringField("activity_id")
		ios, err = s.GetTable(ctx, ActivityIOTable, map[string]core.Value{
			"activity_id": core.String(crunchActivity),
		})
		require.NoError(t, err)
		require.Len(t, ios, 3)
		byName := make(map[string]*core.Record, len(ios))
		for _, row := range ios {
			byName[row.StringField("param_name")] = row
		}
		assert.Equal(t, "fnord", byName["Input 1"].StringField("value"))
		assert.Equal(t, "frood", byName["Input 2"].StringField("value"))
		require.Contains(t, byName, "result")
		assert.Equal(t, "crunched", byName["result"].StringField("value"))
	})
}
