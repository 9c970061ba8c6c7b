package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/weftworks/loom/engine/core"
	"github.com/weftworks/loom/engine/store"
)

var _ store.Store = (*Store)(nil)

// boolColumns is the schema descriptor for columns whose stored 0/1
// values surface as booleans.
var boolColumns = map[string]bool{
	"is_input":    true,
	"is_resource": true,
	"is_read":     true,
	"is_write":    true,
	"succeeded":   true,
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, ``) + `"`
}

func toSQL(v core.Value) any {
	switch v.Kind() {
	case core.KindNull:
		return nil
	case core.KindBool:
		return v.AsBool()
	case core.KindTime:
		return v.StringOrEmpty()
	default:
		return v.Any()
	}
}

func fromSQL(column string, v any) core.Value {
	switch x := v.(type) {
	case nil:
		return core.Null()
	case []byte:
		return core.String(string(x))
	case string:
		return core.String(x)
	case int64:
		if boolColumns[strings.ToLower(column)] {
			return core.Bool(x != 0)
		}
		return core.Number(float64(x))
	case float64:
		return core.Number(x)
	case bool:
		return core.Bool(x)
	case time.Time:
		return core.Time(x)
	default:
		return core.String(fmt.Sprint(x))
	}
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]*core.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query rows: %w", err)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sqlite: read columns: %w", err)
	}
	var out []*core.Record
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("sqlite: scan row: %w", err)
		}
		rec := core.NewRecord()
		for i, col := range cols {
			rec.Set(col, fromSQL(col, raw[i]))
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iter rows: %w", err)
	}
	return out, nil
}

func singleRecord(table, key string, recs []*core.Record) (*core.Record, error) {
	switch len(recs) {
	case 0:
		return nil, fmt.Errorf("%w: %s.%s", store.ErrNotFound, table, key)
	case 1:
		return recs[0], nil
	default:
		return nil, fmt.Errorf("%w: %s.%s", store.ErrAmbiguous, table, key)
	}
}

func (s *Store) GetRow(ctx context.Context, table, key string, value core.Value) (*core.Record, error) {
	query, args, err := sq.Select("*").
		From(quoteIdent(table)).
		Where(sq.Eq{quoteIdent(key): toSQL(value)}).
		Limit(2).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: build get row: %w", err)
	}
	recs, err := s.queryRecords(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return singleRecord(table, key, recs)
}

func (s *Store) GetRowFold(ctx context.Context, table, key string, value core.Value) (*core.Record, error) {
	cond := fmt.Sprintf("lower(CAST(%s AS TEXT)) = lower(?)", quoteIdent(key))
	query, args, err := sq.Select("*").
		From(quoteIdent(table)).
		Where(sq.Expr(cond, value.StringOrEmpty())).
		Limit(2).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: build folded get row: %w", err)
	}
	recs, err := s.queryRecords(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return singleRecord(table, key, recs)
}

func (s *Store) GetTable(ctx context.Context, table string, filter map[string]core.Value) ([]*core.Record, error) {
	builder := sq.Select("*").From(quoteIdent(table))
	if len(filter) > 0 {
		eq := sq.Eq{}
		for col, val := range filter {
			eq[quoteIdent(col)] = toSQL(val)
		}
		builder = builder.Where(eq)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: build get table: %w", err)
	}
	return s.queryRecords(ctx, query, args...)
}

func (s *Store) SetRow(ctx context.Context, table string, rec *core.Record, idCol string) error {
	if !rec.Field(idCol).Truthy() {
		return fmt.Errorf("sqlite: set row in %s: missing %s", table, idCol)
	}
	cols, err := s.ListColumns(ctx, table)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(cols))
	vals := make([]any, 0, len(cols))
	for _, col := range cols {
		names = append(names, quoteIdent(col))
		vals = append(vals, toSQL(rec.Field(col)))
	}
	query, args, err := sq.Insert(quoteIdent(table)).
		Options("OR REPLACE").
		Columns(names...).
		Values(vals...).
		ToSql()
	if err != nil {
		return fmt.Errorf("sqlite: build set row: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("sqlite: set row in %s: %w", table, err)
	}
	return nil
}

func (s *Store) UpdateRow(ctx context.Context, table, idCol string, idVal core.Value, partial *core.Record) error {
	builder := sq.Update(quoteIdent(table)).Where(sq.Eq{quoteIdent(idCol): toSQL(idVal)})
	updated := 0
	for _, key := range partial.Keys() {
		val := partial.Field(key)
		if val.IsNull() {
			continue
		}
		builder = builder.Set(quoteIdent(key), toSQL(val))
		updated++
	}
	if updated == 0 {
		return nil
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("sqlite: build update row: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("sqlite: update row in %s: %w", table, err)
	}
	return nil
}

func (s *Store) DeleteRow(ctx context.Context, table, key string, value core.Value) error {
	query, args, err := sq.Delete(quoteIdent(table)).
		Where(sq.Eq{quoteIdent(key): toSQL(value)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("sqlite: build delete row: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("sqlite: delete row in %s: %w", table, err)
	}
	return nil
}

func (s *Store) ListColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("sqlite: table info for %s: %w", table, err)
	}
	defer rows.Close()
	var cols []string
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			dfltValue  any
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dfltValue, &primaryKey); err != nil {
			return nil, fmt.Errorf("sqlite: scan table info: %w", err)
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iter table info: %w", err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: table %s", store.ErrNotFound, table)
	}
	return cols, nil
}

func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	const q = `SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND name != 'goose_db_version'
		ORDER BY name`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list tables: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("sqlite: scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iter table names: %w", err)
	}
	return names, nil
}
