package store

import (
	"context"
	"errors"

	"github.com/weftworks/loom/engine/core"
)

// ErrNotFound is returned by row lookups that match nothing.
var ErrNotFound = errors.New("row not found")

// ErrAmbiguous is returned when a lookup that must match a single row
// matches more than one.
var ErrAmbiguous = errors.New("multiple rows matched")

// Store is the persistence boundary for all metadata: resources, tools,
// parameters, and the activity ledger. Tables and columns are only known
// at the schema level, so every operation is keyed by name.
type Store interface {
	// GetRow returns the single row where key equals value exactly.
	GetRow(ctx context.Context, table, key string, value core.Value) (*core.Record, error)

	// GetRowFold returns the single row where key equals value's string
	// form, compared case-insensitively.
	GetRowFold(ctx context.Context, table, key string, value core.Value) (*core.Record, error)

	// GetTable returns rows matching the equality filter (all rows when
	// the filter is nil).
	GetTable(ctx context.Context, table string, filter map[string]core.Value) ([]*core.Record, error)

	// SetRow inserts or replaces the row identified by idCol. Columns the
	// record does not define are stored as null.
	SetRow(ctx context.Context, table string, rec *core.Record, idCol string) error

	// UpdateRow overwrites the non-null fields of partial on the matching
	// row; null-valued fields are skipped, not cleared.
	UpdateRow(ctx context.Context, table, idCol string, idVal core.Value, partial *core.Record) error

	// DeleteRow removes every row where key equals value.
	DeleteRow(ctx context.Context, table, key string, value core.Value) error

	// ListColumns returns the table's column names in schema order.
	ListColumns(ctx context.Context, table string) ([]string, error)

	// ListTables returns the names of all schema tables.
	ListTables(ctx context.Context) ([]string, error)

	Close() error
}
