// Package tool implements the configured tool graph: named units of work
// with parameters, declared outputs, predecessor tools, and the recursive
// execution engine that runs them and records the activity ledger.
package tool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/weftworks/loom/engine/core"
	"github.com/weftworks/loom/engine/resolver"
	"github.com/weftworks/loom/engine/resource"
	"github.com/weftworks/loom/engine/store"
	"github.com/weftworks/loom/pkg/logger"
)

const (
	Table             = "tools"
	OutputsTable      = "tool_outputs"
	PredecessorsTable = "tool_predecessors"
)

// PredecessorRef names a tool that must run before this one, with its
// identifier once resolved.
type PredecessorRef struct {
	Name   string
	ToolID core.ID
}

// ParamConfig is one named parameter entry from a caller or config file.
type ParamConfig struct {
	Name   string
	Fields *core.Record
}

// Config is the caller-supplied portion of a tool's configuration.
type Config struct {
	Fields       *core.Record
	Params       []ParamConfig
	Outputs      []string
	Predecessors []PredecessorRef
}

// Tool is a named unit of work: an invokable target reference, a set of
// parameters, an ordered list of output names, and predecessor tools.
type Tool struct {
	store        store.Store
	shed         *resource.Shed
	config       *core.Record
	params       map[string]*Param
	paramOrder   []string
	predecessors []PredecessorRef
	outputs      []string
}

// New builds a tool from a partial configuration and/or identifier,
// reconciled against the persisted rows for the tool, its parameters,
// outputs, and predecessors.
func New(ctx context.Context, s store.Store, cfg *Config, id core.ID, shed *resource.Shed) (*Tool, error) {
	t := &Tool{store: s, shed: shed, params: make(map[string]*Param)}
	if err := t.configure(ctx, cfg, id); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tool) configure(ctx context.Context, cfg *Config, id core.ID) error {
	if cfg == nil {
		cfg = &Config{}
	}
	filled, err := resolver.New(t.store).Fill(ctx, Table, "tool_id", cfg.Fields, id, "name")
	if err != nil {
		return fmt.Errorf("configuring tool: %w", err)
	}
	t.config = filled

	if err := t.initPredecessors(ctx, cfg); err != nil {
		return err
	}
	if err := t.initOutputs(ctx, cfg); err != nil {
		return err
	}
	if err := t.initParams(ctx, cfg); err != nil {
		return err
	}
	t.registerImplicitOutputParams(ctx)
	return nil
}

// initPredecessors resolves the configured predecessor names, then folds
// in any persisted predecessor relationships not present in the config.
// A persisted predecessor id that no longer names a tool is fatal.
func (t *Tool) initPredecessors(ctx context.Context, cfg *Config) error {
	for _, ref := range cfg.Predecessors {
		if ref.ToolID.IsZero() {
			row, err := t.store.GetRowFold(ctx, Table, "name", core.String(ref.Name))
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("resolving predecessor %q: %w", ref.Name, err)
			}
			if row != nil {
				ref.ToolID = core.ID(row.StringField("tool_id"))
			} else {
				logger.FromContext(ctx).Warn("Predecessor not found",
					"tool", t.Name(), "predecessor", ref.Name)
			}
		}
		t.predecessors = append(t.predecessors, ref)
	}

	if t.ID().IsZero() {
		return nil
	}
	rows, err := t.store.GetTable(ctx, PredecessorsTable, map[string]core.Value{
		"tool_id": core.String(t.ID().String()),
	})
	if err != nil {
		return fmt.Errorf("loading predecessors for tool %q: %w", t.Name(), err)
	}
	for _, row := range rows {
		predID := core.ID(row.StringField("predecessor_id"))
		if predID.IsZero() || t.hasPredecessor(predID) {
			continue
		}
		toolRow, err := t.store.GetRow(ctx, Table, "tool_id", core.String(predID.String()))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("predecessor tool %s not found", predID)
			}
			return fmt.Errorf("loading predecessor tool %s: %w", predID, err)
		}
		t.predecessors = append(t.predecessors, PredecessorRef{
			Name:   toolRow.StringField("name"),
			ToolID: predID,
		})
	}
	return nil
}

func (t *Tool) hasPredecessor(id core.ID) bool {
	for _, ref := range t.predecessors {
		if ref.ToolID == id {
			return true
		}
	}
	return false
}

// initOutputs starts from the configured output names and appends any
// persisted output names missing from the config, in stored order.
func (t *Tool) initOutputs(ctx context.Context, cfg *Config) error {
	t.outputs = append(t.outputs, cfg.Outputs...)
	if t.ID().IsZero() {
		return nil
	}
	rows, err := t.store.GetTable(ctx, OutputsTable, map[string]core.Value{
		"tool_id": core.String(t.ID().String()),
	})
	if err != nil {
		return fmt.Errorf("loading outputs for tool %q: %w", t.Name(), err)
	}
	order := func(r *core.Record) float64 {
		n, _ := r.Field("output_order").Any().(float64)
		return n
	}
	sort.SliceStable(rows, func(i, j int) bool { return order(rows[i]) < order(rows[j]) })
	for _, row := range rows {
		name := row.StringField("name")
		if !t.hasOutput(name) {
			t.outputs = append(t.outputs, name)
		}
	}
	return nil
}

func (t *Tool) hasOutput(name string) bool {
	for _, out := range t.outputs {
		if out == name {
			return true
		}
	}
	return false
}

// initParams builds parameters from the config entries, then loads any
// persisted parameters the config did not mention.
func (t *Tool) initParams(ctx context.Context, cfg *Config) error {
	seen := make(map[string]bool)
	for _, entry := range cfg.Params {
		fields := entry.Fields
		if fields == nil {
			fields = core.NewRecord()
		} else {
			fields = fields.Clone()
		}
		fields.Set("name", core.String(entry.Name))
		if !t.ID().IsZero() {
			fields.Set("tool_id", core.String(t.ID().String()))
		}
		param, err := NewParam(ctx, t.store, fields, "", t.shed)
		if err != nil {
			return err
		}
		if !param.ID().IsZero() {
			seen[param.ID().String()] = true
		}
		t.addParam(entry.Name, param)
		if !param.IsInput() && !t.hasOutput(entry.Name) {
			t.outputs = append(t.outputs, entry.Name)
		}
	}

	if t.ID().IsZero() {
		return nil
	}
	rows, err := t.store.GetTable(ctx, ParamsTable, map[string]core.Value{
		"tool_id": core.String(t.ID().String()),
	})
	if err != nil {
		return fmt.Errorf("loading params for tool %q: %w", t.Name(), err)
	}
	for _, row := range rows {
		paramID := row.StringField("param_id")
		if paramID == "" || seen[paramID] {
			continue
		}
		param, err := NewParam(ctx, t.store, nil, core.ID(paramID), t.shed)
		if err != nil {
			return err
		}
		t.addParam(param.Name(), param)
	}
	return nil
}

func (t *Tool) addParam(name string, param *Param) {
	if _, ok := t.params[name]; !ok {
		t.paramOrder = append(t.paramOrder, name)
	}
	t.params[name] = param
}

// registerImplicitOutputParams creates an in-memory output parameter for
// every declared output name not claimed by an explicit parameter, so
// observed outputs always have a parameter to record against.
func (t *Tool) registerImplicitOutputParams(ctx context.Context) {
	for _, name := range t.outputs {
		if _, ok := t.params[name]; ok {
			continue
		}
		fields := core.NewRecord()
		fields.Set("name", core.String(name))
		fields.Set("is_input", core.Bool(false))
		if !t.ID().IsZero() {
			fields.Set("tool_id", core.String(t.ID().String()))
		}
		param, err := NewParam(ctx, t.store, fields, "", t.shed)
		if err != nil {
			logger.FromContext(ctx).Warn("Failed to register output param",
				"tool", t.Name(), "output", name, "error", err)
			continue
		}
		t.addParam(name, param)
	}
}

func (t *Tool) ID() core.ID {
	return core.ID(t.config.StringField("tool_id"))
}

func (t *Tool) Name() string {
	return t.config.StringField("name")
}

// Path is the reference to the tool's invokable target.
func (t *Tool) Path() string {
	return t.config.StringField("path")
}

// Params returns the tool's parameters keyed by name.
func (t *Tool) Params() map[string]*Param {
	return t.params
}

// Param returns the named parameter, matched case-sensitively.
func (t *Tool) Param(name string) (*Param, bool) {
	p, ok := t.params[name]
	return p, ok
}

// Outputs returns the declared output names in order.
func (t *Tool) Outputs() []string {
	return t.outputs
}

// Predecessors returns the predecessor references in declaration order.
func (t *Tool) Predecessors() []PredecessorRef {
	return t.predecessors
}

// Commit writes the tool, its parameters, predecessor relationships, and
// output declarations to the store, assigning identifiers as needed.
func (t *Tool) Commit(ctx context.Context) error {
	if t.ID().IsZero() {
		id, err := core.NewID()
		if err != nil {
			return err
		}
		t.config.Set("tool_id", core.String(id.String()))
	}
	if err := t.store.SetRow(ctx, Table, t.config, "tool_id"); err != nil {
		return fmt.Errorf("committing tool %q: %w", t.Name(), err)
	}

	for _, name := range t.paramOrder {
		if err := t.params[name].Commit(ctx, t.ID()); err != nil {
			return err
		}
	}
	if err := t.commitPredecessors(ctx); err != nil {
		return err
	}
	return t.commitOutputs(ctx)
}

func (t *Tool) commitPredecessors(ctx context.Context) error {
	rows, err := t.store.GetTable(ctx, PredecessorsTable, map[string]core.Value{
		"tool_id": core.String(t.ID().String()),
	})
	if err != nil {
		return fmt.Errorf("loading predecessors for tool %q: %w", t.Name(), err)
	}
	existing := make(map[string]bool)
	for _, row := range rows {
		existing[row.StringField("predecessor_id")] = true
	}
	for _, ref := range t.predecessors {
		if ref.ToolID.IsZero() || existing[ref.ToolID.String()] {
			continue
		}
		relID, err := core.NewID()
		if err != nil {
			return err
		}
		rel := core.NewRecord()
		rel.Set("relationship_id", core.String(relID.String()))
		rel.Set("tool_id", core.String(t.ID().String()))
		rel.Set("predecessor_id", core.String(ref.ToolID.String()))
		if err := t.store.SetRow(ctx, PredecessorsTable, rel, "relationship_id"); err != nil {
			return fmt.Errorf("committing predecessor %q: %w", ref.Name, err)
		}
	}
	return nil
}

func (t *Tool) commitOutputs(ctx context.Context) error {
	rows, err := t.store.GetTable(ctx, OutputsTable, map[string]core.Value{
		"tool_id": core.String(t.ID().String()),
	})
	if err != nil {
		return fmt.Errorf("loading outputs for tool %q: %w", t.Name(), err)
	}
	existing := make(map[string]string)
	for _, row := range rows {
		existing[row.StringField("name")] = row.StringField("output_id")
	}
	for i, name := range t.outputs {
		outputID := existing[name]
		if outputID == "" {
			id, err := core.NewID()
			if err != nil {
				return err
			}
			outputID = id.String()
		}
		row := core.NewRecord()
		row.Set("output_id", core.String(outputID))
		row.Set("tool_id", core.String(t.ID().String()))
		row.Set("output_order", core.Number(float64(i)))
		row.Set("name", core.String(name))
		if err := t.store.SetRow(ctx, OutputsTable, row, "output_id"); err != nil {
			return fmt.Errorf("committing output %q: %w", name, err)
		}
	}
	return nil
}

// Delete removes the tool and every row that references it. A tool that
// was never committed is a logged no-op.
func (t *Tool) Delete(ctx context.Context) error {
	if t.ID().IsZero() {
		logger.FromContext(ctx).Info("Tool is not in the metadata store", "tool", t.Name())
		return nil
	}
	idVal := core.String(t.ID().String())
	if err := t.store.DeleteRow(ctx, Table, "tool_id", idVal); err != nil {
		return err
	}
	if err := t.store.DeleteRow(ctx, ParamsTable, "tool_id", idVal); err != nil {
		return err
	}
	if err := t.store.DeleteRow(ctx, OutputsTable, "tool_id", idVal); err != nil {
		return err
	}
	return t.store.DeleteRow(ctx, PredecessorsTable, "tool_id", idVal)
}

// DeleteOutput removes one declared output. A missing output is a logged
// no-op; multiple matches are deleted after a warning.
func (t *Tool) DeleteOutput(ctx context.Context, outputName string) error {
	return t.deleteNamedRows(ctx, OutputsTable, "output_id", "output", outputName)
}

// DeleteParam removes one parameter. Same miss semantics as DeleteOutput.
func (t *Tool) DeleteParam(ctx context.Context, paramName string) error {
	return t.deleteNamedRows(ctx, ParamsTable, "param_id", "parameter", paramName)
}

func (t *Tool) deleteNamedRows(ctx context.Context, table, idCol, kind, name string) error {
	log := logger.FromContext(ctx)
	if t.ID().IsZero() {
		log.Info("Tool is not in the metadata store", "tool", t.Name())
		return nil
	}
	rows, err := t.store.GetTable(ctx, table, map[string]core.Value{
		"tool_id": core.String(t.ID().String()),
		"name":    core.String(name),
	})
	if err != nil {
		return fmt.Errorf("searching %ss for tool %q: %w", kind, t.Name(), err)
	}
	if len(rows) == 0 {
		log.Info("Tool has no such "+kind, "tool", t.Name(), "name", name)
		return nil
	}
	if len(rows) > 1 {
		log.Warn("Tool had multiple "+kind+"s with the same name", "tool", t.Name(), "name", name)
	}
	for _, row := range rows {
		if err := t.store.DeleteRow(ctx, table, idCol, row.Field(idCol)); err != nil {
			return err
		}
	}
	return nil
}

// FileConfig renders the tool in its config-file shape: scalar fields
// plus params, ordered outputs, and predecessors.
func (t *Tool) FileConfig() map[string]any {
	out := t.config.AsMap()
	delete(out, "name")

	params := make(map[string]any, len(t.params))
	for _, name := range t.paramOrder {
		fields := t.params[name].Config().AsMap()
		for key := range fields {
			if strings.EqualFold(key, "tool_id") || strings.EqualFold(key, "name") {
				delete(fields, key)
			}
		}
		params[name] = fields
	}
	if len(params) > 0 {
		out["params"] = params
	}

	preds := make(map[string]any, len(t.predecessors))
	for _, ref := range t.predecessors {
		preds[ref.Name] = map[string]any{"tool_id": ref.ToolID.String()}
	}
	if len(preds) > 0 {
		out["predecessors"] = preds
	}

	if len(t.outputs) > 0 {
		out["outputs"] = append([]string(nil), t.outputs...)
	}
	return out
}
