package tool

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftworks/loom/engine/core"
	"github.com/weftworks/loom/engine/resource"
	"github.com/weftworks/loom/engine/store"
	"github.com/weftworks/loom/engine/store/sqlite"
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

func paramRecord(pairs map[string]any) *core.Record {
	rec := core.NewRecord()
	for key, val := range pairs {
		rec.Set(key, core.FromAny(val))
	}
	return rec
}

func TestParamValue(t *testing.T) {
	ctx := context.Background()

	t.Run("Should return the literal value for plain params", func(t *testing.T) {
		s := newTestStore(t)
		p, err := NewParam(ctx, s, paramRecord(map[string]any{"name": "Input 1", "value": "fnord"}), "", nil)
		require.NoError(t, err)
		val, err := p.Value(ctx)
		require.NoError(t, err)
		assert.Equal(t, "fnord", val)
	})

	t.Run("Should default to an input param", func(t *testing.T) {
		s := newTestStore(t)
		p, err := NewParam(ctx, s, paramRecord(map[string]any{"name": "Input 1"}), "", nil)
		require.NoError(t, err)
		assert.True(t, p.IsInput())
	})

	t.Run("Should resolve resource params to the resource path", func(t *testing.T) {
		s := newTestStore(t)
		res := core.NewRecord()
		res.Set("resource_id", core.String("ra"))
		res.Set("name", core.String("Scratch"))
		res.Set("path", core.String("/tmp/scratch"))
		require.NoError(t, s.SetRow(ctx, "resources", res, "resource_id"))

		shed := resource.NewShed(s)
		p, err := NewParam(ctx, s, paramRecord(map[string]any{
			"name": "Workspace", "value": "Scratch", "is_resource": true,
		}), "", shed)
		require.NoError(t, err)

		val, err := p.Value(ctx)
		require.NoError(t, err)
		assert.Equal(t, "/tmp/scratch", val)
	})

	t.Run("Should route SetValue through the shared resource", func(t *testing.T) {
		s := newTestStore(t)
		res := core.NewRecord()
		res.Set("resource_id", core.String("ra"))
		res.Set("name", core.String("Scratch"))
		res.Set("path", core.String("/tmp/scratch"))
		require.NoError(t, s.SetRow(ctx, "resources", res, "resource_id"))

		shed := resource.NewShed(s)
		p, err := NewParam(ctx, s, paramRecord(map[string]any{
			"name": "Workspace", "value": "Scratch", "is_resource": true,
		}), "", shed)
		require.NoError(t, err)
		require.NoError(t, p.SetValue(ctx, "/mnt/data"))

		shared, err := shed.Get(ctx, "Scratch")
		require.NoError(t, err)
		path, ok := shared.Path(ctx)
		require.True(t, ok)
		assert.Equal(t, "/mnt/data", path)
	})

	t.Run("Should report nil for a resource with unknown path", func(t *testing.T) {
		s := newTestStore(t)
		shed := resource.NewShed(s)
		p, err := NewParam(ctx, s, paramRecord(map[string]any{
			"name": "Workspace", "value": "Nowhere", "is_resource": true,
		}), "", shed)
		require.NoError(t, err)
		val, err := p.Value(ctx)
		require.NoError(t, err)
		assert.Nil(t, val)
	})
}

func TestParamAdoption(t *testing.T) {
	ctx := context.Background()

	t.Run("Should adopt the persisted row matching tool and name", func(t *testing.T) {
		s := newTestStore(t)
		row := paramRecord(map[string]any{
			"param_id": "p1", "tool_id": "t1", "name": "Input 1", "value": "stored",
		})
		require.NoError(t, s.SetRow(ctx, ParamsTable, row, "param_id"))

		p, err := NewParam(ctx, s, paramRecord(map[string]any{
			"name": "input 1", "tool_id": "t1",
		}), "", nil)
		require.NoError(t, err)
		assert.Equal(t, core.ID("p1"), p.ID())
		assert.Equal(t, "stored", p.RawValue().StringOrEmpty())
	})

	t.Run("Should let config overrides win during adoption", func(t *testing.T) {
		s := newTestStore(t)
		row := paramRecord(map[string]any{
			"param_id": "p1", "tool_id": "t1", "name": "Input 1", "value": "stored",
		})
		require.NoError(t, s.SetRow(ctx, ParamsTable, row, "param_id"))

		p, err := NewParam(ctx, s, paramRecord(map[string]any{
			"name": "Input 1", "tool_id": "t1", "value": "override",
		}), "", nil)
		require.NoError(t, err)
		assert.Equal(t, core.ID("p1"), p.ID())
		assert.Equal(t, "override", p.RawValue().StringOrEmpty())
	})

	t.Run("Should not adopt a same-named param from another tool", func(t *testing.T) {
		s := newTestStore(t)
		row := paramRecord(map[string]any{
			"param_id": "p1", "tool_id": "other", "name": "Input 1",
		})
		require.NoError(t, s.SetRow(ctx, ParamsTable, row, "param_id"))

		p, err := NewParam(ctx, s, paramRecord(map[string]any{
			"name": "Input 1", "tool_id": "t1",
		}), "", nil)
		require.NoError(t, err)
		assert.True(t, p.ID().IsZero())
	})
}

func TestParamRecordIO(t *testing.T) {
	ctx := context.Background()

	t.Run("Should commit an uncommitted param before writing the row", func(t *testing.T) {
		s := newTestStore(t)
		p, err := NewParam(ctx, s, paramRecord(map[string]any{
			"name": "Input 1", "value": "fnord", "is_read": true,
		}), "", nil)
		require.NoError(t, err)
		require.True(t, p.ID().IsZero())

		require.NoError(t, p.RecordIO(ctx, core.ID("act1"), "fnord", core.ID("t1")))
		assert.False(t, p.ID().IsZero())

		rows, err := s.GetTable(ctx, ActivityIOTable, nil)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "Input 1", rows[0].StringField("param_name"))
		assert.Equal(t, "fnord", rows[0].StringField("value"))
		assert.True(t, rows[0].Field("is_input").AsBool())
		assert.True(t, rows[0].Field("is_read").AsBool())
		assert.False(t, rows[0].Field("is_write").AsBool())
	})

	t.Run("Should fail without an owning tool", func(t *testing.T) {
		s := newTestStore(t)
		p, err := NewParam(ctx, s, paramRecord(map[string]any{"name": "Input 1"}), "", nil)
		require.NoError(t, err)
		assert.Error(t, p.RecordIO(ctx, core.ID("act1"), "x", ""))
	})
}
