package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the wire format for timestamps in the metadata store.
const TimeLayout = "2006-01-02 15:04:05"

// ValueKind discriminates the variants a Value can hold.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindTime
)

// Value is a tagged variant holding one scalar cell of a configuration
// record: string, number, boolean, timestamp, or null.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
	t    time.Time
}

func Null() Value              { return Value{kind: KindNull} }
func String(s string) Value    { return Value{kind: KindString, str: s} }
func Number(n float64) Value   { return Value{kind: KindNumber, num: n} }
func Bool(b bool) Value        { return Value{kind: KindBool, b: b} }
func Time(t time.Time) Value   { return Value{kind: KindTime, t: t} }
func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool    { return v.kind == KindNull }

// FromAny normalizes an arbitrary scalar into a Value. Unrecognized types
// are stored by their string form.
func FromAny(val any) Value {
	switch x := val.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case string:
		return String(x)
	case bool:
		return Bool(x)
	case int:
		return Number(float64(x))
	case int32:
		return Number(float64(x))
	case int64:
		return Number(float64(x))
	case float32:
		return Number(float64(x))
	case float64:
		return Number(x)
	case time.Time:
		return Time(x)
	case ID:
		return String(x.String())
	default:
		return String(fmt.Sprint(x))
	}
}

// Any returns the native Go form of the value (nil for null).
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindTime:
		return v.t
	default:
		return nil
	}
}

// AsString renders the value as a string; null renders empty with ok=false.
func (v Value) AsString() (string, bool) {
	switch v.kind {
	case KindString:
		return v.str, true
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64), true
	case KindBool:
		return strconv.FormatBool(v.b), true
	case KindTime:
		return v.t.Format(TimeLayout), true
	default:
		return "", false
	}
}

// StringOrEmpty renders the value as a string, empty when null.
func (v Value) StringOrEmpty() string {
	s, _ := v.AsString()
	return s
}

// AsBool reports the boolean form of the value. Strings fold "true"/"false".
func (v Value) AsBool() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.num != 0
	case KindString:
		return strings.EqualFold(v.str, "true")
	default:
		return false
	}
}

// Truthy reports whether the value is non-null and non-empty.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindString:
		return v.str != ""
	case KindNumber:
		return v.num != 0
	case KindBool:
		return v.b
	default:
		return true
	}
}

// CoerceBool folds the literal strings "true" and "false" into booleans,
// leaving every other value untouched.
func CoerceBool(val any) any {
	if s, ok := val.(string); ok {
		switch strings.ToLower(s) {
		case "true":
			return true
		case "false":
			return false
		}
	}
	return val
}

// FormatDuration renders a duration as h:mm:ss for the activity ledger.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}
