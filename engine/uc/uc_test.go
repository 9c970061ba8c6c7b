package uc

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftworks/loom/engine/core"
	"github.com/weftworks/loom/engine/runtime"
	"github.com/weftworks/loom/engine/store"
	"github.com/weftworks/loom/engine/store/sqlite"
	"github.com/weftworks/loom/engine/tool"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	ctx := context.Background()
	s, err := sqlite.NewStore(ctx, filepath.Join(t.TempDir(), "loom.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.ApplyMigrations(ctx))
	return s
}

func seedTool(t *testing.T, s store.Store, name, path string, outputs ...string) *tool.Tool {
	t.Helper()
	ctx := context.Background()
	fields := core.NewRecord()
	fields.Set("name", core.String(name))
	fields.Set("path", core.String(path))
	tl, err := tool.New(ctx, s, &tool.Config{Fields: fields, Outputs: outputs}, "", nil)
	require.NoError(t, err)
	require.NoError(t, tl.Commit(ctx))
	return tl
}

func TestRunTool(t *testing.T) {
	ctx := context.Background()

	t.Run("Should run a persisted tool by name", func(t *testing.T) {
		s := newTestStore(t)
		reg := runtime.NewRegistry()
		reg.MustRegister("demo.get", func(ctx context.Context, args map[string]any) ([]any, error) {
			return []any{"fnord"}, nil
		})
		seedTool(t, s, "Get Data", "demo.get", "data")

		out, err := NewRunTool(s, reg).Execute(ctx, &RunToolInput{Name: "Get Data"})
		require.NoError(t, err)
		assert.Equal(t, "fnord", out.Outputs["data"])
	})

	t.Run("Should reject an unknown tool", func(t *testing.T) {
		s := newTestStore(t)
		_, err := NewRunTool(s, runtime.NewRegistry()).Execute(ctx, &RunToolInput{Name: "Ghost"})
		assert.ErrorIs(t, err, ErrToolNotFound)
	})

	t.Run("Should reject empty input", func(t *testing.T) {
		s := newTestStore(t)
		_, err := NewRunTool(s, runtime.NewRegistry()).Execute(ctx, nil)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestImportAndSyncConfig(t *testing.T) {
	ctx := context.Background()
	const doc = `
tools:
  Get Data:
    path: demo.get
    outputs: [data]
`

	t.Run("Should import a config file into the store", func(t *testing.T) {
		s := newTestStore(t)
		path := filepath.Join(t.TempDir(), "loom.yaml")
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

		require.NoError(t, NewImportConfig(s).Execute(ctx, &ImportConfigInput{File: path}))
		_, err := s.GetRowFold(ctx, tool.Table, "name", core.String("Get Data"))
		assert.NoError(t, err)
	})

	t.Run("Should sync resolved identifiers back into the file", func(t *testing.T) {
		s := newTestStore(t)
		path := filepath.Join(t.TempDir(), "loom.yaml")
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

		require.NoError(t, NewSyncConfig(s).Execute(ctx, &SyncConfigInput{File: path}))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "tool_id")
	})

	t.Run("Should reject a missing file path", func(t *testing.T) {
		s := newTestStore(t)
		assert.ErrorIs(t, NewImportConfig(s).Execute(ctx, &ImportConfigInput{}), ErrInvalidInput)
		assert.ErrorIs(t, NewSyncConfig(s).Execute(ctx, &SyncConfigInput{}), ErrInvalidInput)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("Should delete a tool and its rows", func(t *testing.T) {
		s := newTestStore(t)
		seedTool(t, s, "Get Data", "demo.get", "data")

		require.NoError(t, NewDeleteTool(s).Execute(ctx, &DeleteToolInput{Name: "Get Data"}))
		_, err := s.GetRowFold(ctx, tool.Table, "name", core.String("Get Data"))
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("Should tolerate deleting an unknown tool", func(t *testing.T) {
		s := newTestStore(t)
		assert.NoError(t, NewDeleteTool(s).Execute(ctx, &DeleteToolInput{Name: "Ghost"}))
	})

	t.Run("Should delete one output by name", func(t *testing.T) {
		s := newTestStore(t)
		tl := seedTool(t, s, "Get Data", "demo.get", "data", "count")

		require.NoError(t, NewDeleteToolOutput(s).Execute(ctx, &DeleteToolOutputInput{
			Tool: "Get Data", Output: "count",
		}))
		rows, err := s.GetTable(ctx, tool.OutputsTable, map[string]core.Value{
			"tool_id": core.String(tl.ID().String()),
		})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "data", rows[0].StringField("name"))
	})

	t.Run("Should delete one param by name", func(t *testing.T) {
		s := newTestStore(t)
		fields := core.NewRecord()
		fields.Set("name", core.String("Crunch Data"))
		fields.Set("path", core.String("demo.crunch"))
		paramFields := core.NewRecord()
		paramFields.Set("value", core.String("fnord"))
		tl, err := tool.New(ctx, s, &tool.Config{
			Fields: fields,
			Params: []tool.ParamConfig{{Name: "Input 1", Fields: paramFields}},
		}, "", nil)
		require.NoError(t, err)
		require.NoError(t, tl.Commit(ctx))

		require.NoError(t, NewDeleteToolParam(s).Execute(ctx, &DeleteToolParamInput{
			Tool: "Crunch Data", Param: "Input 1",
		}))
		rows, err := s.GetTable(ctx, tool.ParamsTable, nil)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})
}

func TestMigrate(t *testing.T) {
	t.Run("Should bootstrap the schema", func(t *testing.T) {
		ctx := context.Background()
		s, err := sqlite.NewStore(ctx, filepath.Join(t.TempDir(), "loom.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })

		require.NoError(t, NewMigrate(s).Execute(ctx))
		tables, err := s.ListTables(ctx)
		require.NoError(t, err)
		assert.Contains(t, tables, "tools")
	})
}

func TestScheduleTool(t *testing.T) {
	t.Run("Should reject a bad cron expression", func(t *testing.T) {
		s := newTestStore(t)
		err := NewScheduleTool(s, runtime.NewRegistry()).Execute(context.Background(), &ScheduleToolInput{
			Name: "Get Data",
			Cron: "not a schedule",
		})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}
