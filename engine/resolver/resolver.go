// Package resolver assembles complete configuration records by merging
// caller-supplied overrides with persisted rows and blank defaults.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/weftworks/loom/engine/core"
	"github.com/weftworks/loom/engine/store"
)

type Resolver struct {
	store store.Store
}

func New(s store.Store) *Resolver {
	return &Resolver{store: s}
}

// lookup fetches a row by a folded key match, treating a miss as nil.
// Ambiguous matches are fatal.
func (r *Resolver) lookup(ctx context.Context, table, key string, value core.Value) (*core.Record, error) {
	row, err := r.store.GetRowFold(ctx, table, key, value)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolving %s by %s: %w", table, key, err)
	}
	return row, nil
}

// Fill produces a complete field-to-value mapping for one row of table.
//
// The identifier is taken from the partial configuration when the field
// is present (case-insensitive, even when null), otherwise from id. A
// persisted row is looked up by identifier first, then by
// nameCol when one is given. If nothing matches, a blank row with every
// known column set to null is synthesized. Caller-supplied values always
// win over persisted state; persisted state wins over blank defaults.
func (r *Resolver) Fill(
	ctx context.Context,
	table string,
	idCol string,
	partial *core.Record,
	id core.ID,
	nameCol string,
) (*core.Record, error) {
	if partial == nil {
		partial = core.NewRecord()
	}

	// An id field present in the partial wins even when null; the id
	// argument only applies when the partial says nothing about it.
	idVal, idSet := partial.Get(idCol)
	if !idSet && !id.IsZero() {
		idVal = core.String(id.String())
	}

	var row *core.Record
	var err error
	if idVal.Truthy() {
		row, err = r.lookup(ctx, table, idCol, idVal)
		if err != nil {
			return nil, err
		}
	}

	if row == nil && nameCol != "" {
		if name := partial.Field(nameCol); name.Truthy() {
			row, err = r.lookup(ctx, table, nameCol, name)
			if err != nil {
				return nil, err
			}
		}
	}

	if row == nil {
		cols, err := r.store.ListColumns(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("resolving %s columns: %w", table, err)
		}
		row = core.NewRecord()
		for _, col := range cols {
			row.Set(col, core.Null())
		}
	}

	filled := core.NewRecord()
	for _, col := range row.Keys() {
		if override, ok := partial.Get(col); ok {
			filled.Set(col, override)
			continue
		}
		filled.Set(col, row.Field(col))
	}
	return filled, nil
}
