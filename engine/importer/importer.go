// Package importer moves tool and resource definitions between YAML
// config files and the metadata store, in both directions.
package importer

import (
	"context"
	"fmt"
	"os"
	"sort"

	"dario.cat/mergo"
	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-yaml"

	"github.com/weftworks/loom/engine/core"
	"github.com/weftworks/loom/engine/resource"
	"github.com/weftworks/loom/engine/store"
	"github.com/weftworks/loom/engine/tool"
	"github.com/weftworks/loom/pkg/logger"
)

// File is the YAML config document: shared defaults applied under every
// tool entry, resources by name, and tools by name.
type File struct {
	Defaults  map[string]any            `yaml:"defaults,omitempty"`
	Resources map[string]map[string]any `yaml:"resources,omitempty"`
	Tools     map[string]map[string]any `yaml:"tools,omitempty"`
}

// Load reads and parses a config file. A missing or empty file is an
// error.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("config file %s is empty", path)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if len(f.Resources) == 0 && len(f.Tools) == 0 {
		return nil, fmt.Errorf("config file %s declares no resources or tools", path)
	}
	return &f, nil
}

// Importer applies config files to the store and renders the store back
// into file form.
type Importer struct {
	store store.Store
	shed  *resource.Shed
}

func New(s store.Store) *Importer {
	return &Importer{store: s, shed: resource.NewShed(s)}
}

// ImportFile loads and imports one config file.
func (im *Importer) ImportFile(ctx context.Context, path string) error {
	f, err := Load(path)
	if err != nil {
		return err
	}
	return im.Import(ctx, f)
}

// Import upserts the file's resources, then its tools. Committing
// assigns identifiers to entries that have none.
func (im *Importer) Import(ctx context.Context, f *File) error {
	if err := im.importResources(ctx, f); err != nil {
		return err
	}
	return im.importTools(ctx, f)
}

// importResources commits in two passes so parent names resolve
// regardless of declaration order within the file.
func (im *Importer) importResources(ctx context.Context, f *File) error {
	names := sortedKeys(f.Resources)
	for _, name := range names {
		stub := nameRecord(name)
		if path, ok := f.Resources[name]["path"]; ok {
			stub.Set("path", core.FromAny(path))
		}
		res, err := resource.New(ctx, im.store, stub, "", nil)
		if err != nil {
			return fmt.Errorf("importing resource %q: %w", name, err)
		}
		if err := res.Commit(ctx); err != nil {
			return fmt.Errorf("importing resource %q: %w", name, err)
		}
	}
	for _, name := range names {
		fields := core.RecordFromMap(f.Resources[name], sortedKeys(f.Resources[name])...)
		fields.Set("name", core.String(name))
		res, err := resource.New(ctx, im.store, fields, "", im.shed)
		if err != nil {
			return fmt.Errorf("importing resource %q: %w", name, err)
		}
		if err := res.Commit(ctx); err != nil {
			return fmt.Errorf("importing resource %q: %w", name, err)
		}
	}
	return nil
}

// importTools commits in two passes so predecessor names resolve
// regardless of declaration order within the file.
func (im *Importer) importTools(ctx context.Context, f *File) error {
	names := sortedKeys(f.Tools)
	entries := make(map[string]*toolEntry, len(names))
	for _, name := range names {
		entry, err := decodeToolEntry(f.Tools[name], f.Defaults)
		if err != nil {
			return fmt.Errorf("importing tool %q: %w", name, err)
		}
		entries[name] = entry

		stub, err := tool.New(ctx, im.store, &tool.Config{Fields: entry.fields(name)}, "", nil)
		if err != nil {
			return fmt.Errorf("importing tool %q: %w", name, err)
		}
		if err := stub.Commit(ctx); err != nil {
			return fmt.Errorf("importing tool %q: %w", name, err)
		}
	}
	for _, name := range names {
		t, err := tool.New(ctx, im.store, entries[name].config(name), "", im.shed)
		if err != nil {
			return fmt.Errorf("importing tool %q: %w", name, err)
		}
		if err := t.Commit(ctx); err != nil {
			return fmt.Errorf("importing tool %q: %w", name, err)
		}
	}
	return nil
}

// Sync imports the file, then rewrites it from the store with resolved
// identifiers, pulling in predecessor tools the file references but
// does not declare.
func (im *Importer) Sync(ctx context.Context, path string) error {
	f, err := Load(path)
	if err != nil {
		return err
	}
	if err := im.Import(ctx, f); err != nil {
		return err
	}
	out, err := im.render(ctx, f)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("rendering config file %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file %s: %w", path, err)
	}
	logger.FromContext(ctx).Info("Synced config file", "path", path,
		"resources", len(out.Resources), "tools", len(out.Tools))
	return nil
}

func (im *Importer) render(ctx context.Context, f *File) (*File, error) {
	out := &File{
		Defaults:  f.Defaults,
		Resources: make(map[string]map[string]any, len(f.Resources)),
		Tools:     make(map[string]map[string]any, len(f.Tools)),
	}
	for _, name := range sortedKeys(f.Resources) {
		res, err := im.shed.Get(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("rendering resource %q: %w", name, err)
		}
		entry := stripNulls(res.Config().AsMap())
		delete(entry, "name")
		out.Resources[name] = entry
	}

	pending := sortedKeys(f.Tools)
	for len(pending) > 0 {
		name := pending[0]
		pending = pending[1:]
		if _, done := out.Tools[name]; done {
			continue
		}
		t, err := tool.New(ctx, im.store, &tool.Config{Fields: nameRecord(name)}, "", im.shed)
		if err != nil {
			return nil, fmt.Errorf("rendering tool %q: %w", name, err)
		}
		out.Tools[name] = stripNulls(t.FileConfig())
		for _, ref := range t.Predecessors() {
			if _, done := out.Tools[ref.Name]; !done {
				pending = append(pending, ref.Name)
			}
		}
	}
	return out, nil
}

// toolEntry is one decoded tool declaration. Scalar fields the decoder
// does not claim land in Rest and flow into the tool row unchanged.
type toolEntry struct {
	ToolID       string                      `mapstructure:"tool_id"`
	Params       map[string]map[string]any   `mapstructure:"params"`
	Outputs      []string                    `mapstructure:"outputs"`
	Predecessors map[string]predecessorEntry `mapstructure:"predecessors"`
	Rest         map[string]any              `mapstructure:",remain"`
}

type predecessorEntry struct {
	ToolID string `mapstructure:"tool_id"`
}

func decodeToolEntry(raw, defaults map[string]any) (*toolEntry, error) {
	merged := make(map[string]any, len(raw))
	for key, val := range raw {
		merged[key] = val
	}
	if len(defaults) > 0 {
		if err := mergo.Merge(&merged, defaults); err != nil {
			return nil, fmt.Errorf("merging defaults: %w", err)
		}
	}

	var entry toolEntry
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &entry,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(merged); err != nil {
		return nil, fmt.Errorf("decoding entry: %w", err)
	}
	return &entry, nil
}

// fields is the tool row portion of the entry: name, identifier if
// declared, and every unclaimed scalar.
func (e *toolEntry) fields(name string) *core.Record {
	rec := core.RecordFromMap(e.Rest, sortedKeys(e.Rest)...)
	rec.Set("name", core.String(name))
	if e.ToolID != "" {
		rec.Set("tool_id", core.String(e.ToolID))
	}
	return rec
}

func (e *toolEntry) config(name string) *tool.Config {
	cfg := &tool.Config{
		Fields:  e.fields(name),
		Outputs: append([]string(nil), e.Outputs...),
	}
	for _, paramName := range sortedKeys(e.Params) {
		cfg.Params = append(cfg.Params, tool.ParamConfig{
			Name:   paramName,
			Fields: core.RecordFromMap(e.Params[paramName], sortedKeys(e.Params[paramName])...),
		})
	}
	for _, predName := range sortedKeys(e.Predecessors) {
		cfg.Predecessors = append(cfg.Predecessors, tool.PredecessorRef{
			Name:   predName,
			ToolID: core.ID(e.Predecessors[predName].ToolID),
		})
	}
	return cfg
}

func nameRecord(name string) *core.Record {
	rec := core.NewRecord()
	rec.Set("name", core.String(name))
	return rec
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func stripNulls(m map[string]any) map[string]any {
	for key, val := range m {
		switch x := val.(type) {
		case nil:
			delete(m, key)
		case map[string]any:
			m[key] = stripNulls(x)
		}
	}
	return m
}
