package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/weftworks/loom/engine/core"
	"github.com/weftworks/loom/engine/resolver"
	"github.com/weftworks/loom/engine/resource"
	"github.com/weftworks/loom/engine/store"
)

const (
	ParamsTable     = "tool_params"
	ActivityIOTable = "activity_io"
)

// Param is one named value or value-binding on a tool. A resource-flagged
// param resolves its value through the shed instead of holding a literal.
type Param struct {
	store  store.Store
	shed   *resource.Shed
	config *core.Record
}

// NewParam builds a parameter from a partial configuration and/or
// identifier, reconciled against the persisted row. Parameters without a
// persisted id are matched by owner tool and name, since names are only
// unique per tool.
func NewParam(ctx context.Context, s store.Store, config *core.Record, id core.ID, shed *resource.Shed) (*Param, error) {
	p := &Param{store: s, shed: shed}
	if err := p.configure(ctx, config, id); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Param) configure(ctx context.Context, config *core.Record, id core.ID) error {
	filled, err := resolver.New(p.store).Fill(ctx, ParamsTable, "param_id", config, id, "")
	if err != nil {
		return fmt.Errorf("configuring param: %w", err)
	}
	p.config = filled

	if !filled.Field("param_id").Truthy() && filled.Field("tool_id").Truthy() {
		if err := p.adoptByToolAndName(ctx, config); err != nil {
			return err
		}
	}

	if p.config.Field("is_input").IsNull() {
		p.config.Set("is_input", core.Bool(true))
	}
	return nil
}

// adoptByToolAndName overlays the persisted row matching this param's
// owner tool and name, when one exists.
func (p *Param) adoptByToolAndName(ctx context.Context, config *core.Record) error {
	rows, err := p.store.GetTable(ctx, ParamsTable, map[string]core.Value{
		"tool_id": p.config.Field("tool_id"),
	})
	if err != nil {
		return fmt.Errorf("searching params by tool: %w", err)
	}
	name := p.config.StringField("name")
	for _, row := range rows {
		if !strings.EqualFold(row.StringField("name"), name) {
			continue
		}
		for _, col := range row.Keys() {
			if config != nil {
				if override, ok := config.Get(col); ok {
					p.config.Set(col, override)
					continue
				}
			}
			p.config.Set(col, row.Field(col))
		}
		return nil
	}
	return nil
}

func (p *Param) ID() core.ID       { return core.ID(p.config.StringField("param_id")) }
func (p *Param) ToolID() core.ID   { return core.ID(p.config.StringField("tool_id")) }
func (p *Param) Name() string      { return p.config.StringField("name") }
func (p *Param) IsInput() bool     { return p.config.Field("is_input").AsBool() }
func (p *Param) IsResource() bool  { return p.config.Field("is_resource").AsBool() }
func (p *Param) IsRead() bool      { return p.config.Field("is_read").AsBool() }
func (p *Param) IsWrite() bool     { return p.config.Field("is_write").AsBool() }

func (p *Param) FeederToolName() string  { return p.config.StringField("feeder_tool_name") }
func (p *Param) FeederParamName() string { return p.config.StringField("feeder_param_name") }

// RawValue is the literal stored value, without resource resolution.
func (p *Param) RawValue() core.Value { return p.config.Field("value") }

// Config returns the parameter's configuration record.
func (p *Param) Config() *core.Record { return p.config }

func (p *Param) getResource(ctx context.Context) (*resource.Resource, error) {
	if !p.IsResource() {
		return nil, nil
	}
	name := p.config.StringField("value")
	if p.shed != nil {
		return p.shed.Get(ctx, name)
	}
	config := core.NewRecord()
	config.Set("name", core.String(name))
	return resource.New(ctx, p.store, config, "", nil)
}

// Value resolves the parameter's effective value: the referenced
// resource's full path for resource params (nil when the path is
// unknown), otherwise the literal value.
func (p *Param) Value(ctx context.Context) (any, error) {
	res, err := p.getResource(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving resource for param %q: %w", p.Name(), err)
	}
	if res != nil {
		if path, ok := res.Path(ctx); ok {
			return path, nil
		}
		return nil, nil
	}
	return p.RawValue().Any(), nil
}

// SetValue assigns the parameter's value: the resource's path component
// for resource params, otherwise the literal field.
func (p *Param) SetValue(ctx context.Context, val any) error {
	res, err := p.getResource(ctx)
	if err != nil {
		return fmt.Errorf("resolving resource for param %q: %w", p.Name(), err)
	}
	if res != nil {
		res.SetPath(fmt.Sprint(val))
		return nil
	}
	p.config.Set("value", core.FromAny(val))
	return nil
}

// Commit writes the parameter to the store under the owning tool,
// assigning an identifier first if it has none.
func (p *Param) Commit(ctx context.Context, toolID core.ID) error {
	if !toolID.IsZero() {
		p.config.Set("tool_id", core.String(toolID.String()))
	}
	if p.ID().IsZero() {
		id, err := core.NewID()
		if err != nil {
			return err
		}
		p.config.Set("param_id", core.String(id.String()))
	}
	if err := p.store.SetRow(ctx, ParamsTable, p.config, "param_id"); err != nil {
		return fmt.Errorf("committing param %q: %w", p.Name(), err)
	}
	return nil
}

// RecordIO appends one ledger row for a value observed on this parameter
// during an activity, committing the parameter first when it has no
// identifier yet.
func (p *Param) RecordIO(ctx context.Context, activityID core.ID, value any, toolID core.ID) error {
	if toolID.IsZero() {
		toolID = p.ToolID()
	}
	if toolID.IsZero() {
		return fmt.Errorf("no tool id set for param %q", p.Name())
	}
	if p.ID().IsZero() {
		if err := p.Commit(ctx, toolID); err != nil {
			return err
		}
	}
	ioID, err := core.NewID()
	if err != nil {
		return err
	}
	row := core.NewRecord()
	row.Set("io_id", core.String(ioID.String()))
	row.Set("activity_id", core.String(activityID.String()))
	row.Set("param_id", core.String(p.ID().String()))
	row.Set("param_name", core.String(p.Name()))
	row.Set("value", core.FromAny(value))
	row.Set("is_resource", core.Bool(p.IsResource()))
	row.Set("is_input", core.Bool(p.IsInput()))
	row.Set("is_read", core.Bool(p.IsRead()))
	row.Set("is_write", core.Bool(p.IsWrite()))
	if err := p.store.SetRow(ctx, ActivityIOTable, row, "io_id"); err != nil {
		return fmt.Errorf("recording io for param %q: %w", p.Name(), err)
	}
	return nil
}
