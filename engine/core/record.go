package core

import "strings"

// Record is an ordered mapping from field name to Value, keyed
// case-insensitively. The first spelling of a field name wins for
// rendering; later sets under a different casing update the value only.
type Record struct {
	order []string         // folded keys in insertion order
	names map[string]string // folded key -> canonical spelling
	vals  map[string]Value  // folded key -> value
}

func NewRecord() *Record {
	return &Record{
		names: make(map[string]string),
		vals:  make(map[string]Value),
	}
}

// RecordFromMap builds a record from a plain map. Ordering follows the
// given key list when provided, otherwise map iteration order.
func RecordFromMap(m map[string]any, order ...string) *Record {
	r := NewRecord()
	for _, k := range order {
		if v, ok := m[k]; ok {
			r.Set(k, FromAny(v))
		}
	}
	for k, v := range m {
		if _, ok := r.Get(k); !ok {
			r.Set(k, FromAny(v))
		}
	}
	return r
}

func fold(key string) string {
	return strings.ToLower(key)
}

// Set stores a value under key. An existing field keeps its original
// spelling and position.
func (r *Record) Set(key string, val Value) {
	f := fold(key)
	if _, ok := r.vals[f]; !ok {
		r.order = append(r.order, f)
		r.names[f] = key
	}
	r.vals[f] = val
}

// Get looks up a field case-insensitively.
func (r *Record) Get(key string) (Value, bool) {
	v, ok := r.vals[fold(key)]
	return v, ok
}

// GetOr returns the field's value, or def when absent.
func (r *Record) GetOr(key string, def Value) Value {
	if v, ok := r.Get(key); ok {
		return v
	}
	return def
}

// Field returns the field's value, Null when absent.
func (r *Record) Field(key string) Value {
	return r.GetOr(key, Null())
}

// StringField renders a field as a string, empty when absent or null.
func (r *Record) StringField(key string) string {
	return r.Field(key).StringOrEmpty()
}

// Has reports whether the field exists, regardless of its value.
func (r *Record) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// Delete removes a field if present.
func (r *Record) Delete(key string) {
	f := fold(key)
	if _, ok := r.vals[f]; !ok {
		return
	}
	delete(r.vals, f)
	delete(r.names, f)
	for i, k := range r.order {
		if k == f {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Keys returns the canonical field names in insertion order.
func (r *Record) Keys() []string {
	keys := make([]string, 0, len(r.order))
	for _, f := range r.order {
		keys = append(keys, r.names[f])
	}
	return keys
}

func (r *Record) Len() int {
	return len(r.order)
}

// Clone returns an independent copy of the record.
func (r *Record) Clone() *Record {
	out := NewRecord()
	for _, f := range r.order {
		out.Set(r.names[f], r.vals[f])
	}
	return out
}

// AsMap renders the record as a plain map keyed by canonical field names.
func (r *Record) AsMap() map[string]any {
	out := make(map[string]any, len(r.order))
	for _, f := range r.order {
		out[r.names[f]] = r.vals[f].Any()
	}
	return out
}
