// Package resource models named, hierarchically composed data locations.
package resource

import (
	"context"
	"errors"
	"fmt"

	"github.com/weftworks/loom/engine/core"
	"github.com/weftworks/loom/engine/resolver"
	"github.com/weftworks/loom/engine/store"
	"github.com/weftworks/loom/pkg/logger"
)

const Table = "resources"

// Resource is a named, optionally hierarchical location. Its full path is
// the parent's full path joined with its own path component. Parent chains
// are assumed acyclic; a cycle recurses without bound.
type Resource struct {
	store     store.Store
	shed      *Shed
	config    *core.Record
	parentRow *core.Record
}

// New builds a resource from a partial configuration and/or identifier,
// reconciled against the persisted row.
func New(ctx context.Context, s store.Store, config *core.Record, id core.ID, shed *Shed) (*Resource, error) {
	r := &Resource{store: s, shed: shed}
	if err := r.configure(ctx, config, id); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Resource) configure(ctx context.Context, config *core.Record, id core.ID) error {
	filled, err := resolver.New(r.store).Fill(ctx, Table, "resource_id", config, id, "name")
	if err != nil {
		return fmt.Errorf("configuring resource: %w", err)
	}
	r.config = filled
	return r.initParent(ctx)
}

// initParent resolves the parent reference, which may be an identifier or
// a name. A reference that resolves to nothing leaves the resource without
// a usable parent.
func (r *Resource) initParent(ctx context.Context) error {
	parentVal := r.config.Field("parent")
	if !parentVal.Truthy() {
		return nil
	}
	row, err := r.store.GetRow(ctx, Table, "resource_id", parentVal)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("resolving parent resource: %w", err)
	}
	if row == nil {
		row, err = r.store.GetRowFold(ctx, Table, "name", parentVal)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("resolving parent resource by name: %w", err)
		}
	}
	if row == nil {
		logger.FromContext(ctx).Warn("Parent resource not found", "parent", parentVal.StringOrEmpty())
		return nil
	}
	r.parentRow = row
	r.config.Set("parent", row.Field("resource_id"))
	return nil
}

func (r *Resource) ID() core.ID {
	return core.ID(r.config.StringField("resource_id"))
}

func (r *Resource) Name() string {
	return r.config.StringField("name")
}

// Config returns the resource's configuration record.
func (r *Resource) Config() *core.Record {
	return r.config
}

// Path computes the full path on every call, walking the parent chain
// through the shed when one is attached. ok is false when any link in the
// chain is unresolved or has a null path.
func (r *Resource) Path(ctx context.Context) (string, bool) {
	own := r.config.Field("path")
	if r.parentRow == nil {
		return own.AsString()
	}

	var parent *Resource
	var err error
	if r.shed != nil {
		parent, err = r.shed.Get(ctx, r.parentRow.StringField("name"))
	} else {
		parent, err = New(ctx, r.store, nil, core.ID(r.parentRow.StringField("resource_id")), nil)
	}
	if err != nil {
		logger.FromContext(ctx).Warn("Failed to resolve parent resource",
			"resource", r.Name(), "error", err)
		return "", false
	}

	parentPath, ok := parent.Path(ctx)
	ownPath, ownOK := own.AsString()
	if !ok || !ownOK {
		return "", false
	}
	return parentPath + "/" + ownPath, true
}

// SetPath reassigns the resource's own path component. The change is only
// persisted on Commit.
func (r *Resource) SetPath(path string) {
	r.config.Set("path", core.String(path))
}

// Commit writes the resource to the store, assigning an identifier first
// if it has none.
func (r *Resource) Commit(ctx context.Context) error {
	if r.ID().IsZero() {
		id, err := core.NewID()
		if err != nil {
			return err
		}
		r.config.Set("resource_id", core.String(id.String()))
	}
	if err := r.store.SetRow(ctx, Table, r.config, "resource_id"); err != nil {
		return fmt.Errorf("committing resource %q: %w", r.Name(), err)
	}
	return nil
}
