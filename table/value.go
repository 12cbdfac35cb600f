/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package table

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies the type held by a Value.
type Kind int

const (
	KindNull    Kind = iota // No value (absent side of a join, empty cell).
	KindString              // Free text.
	KindDecimal             // Exact decimal number.
	KindTime                // Timestamp or calendar date.
)

// String returns the kind name used in error messages.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindDecimal:
		return "decimal"
	case KindTime:
		return "time"
	default:
		return "null"
	}
}

// Value is a single immutable cell.
type Value struct {
	kind Kind
	str  string
	dec  decimal.Decimal
	ts   time.Time
}

// Null returns the empty value.
func Null() Value { return Value{} }

// String wraps a text cell.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Decimal wraps a decimal cell.
func Decimal(d decimal.Decimal) Value { return Value{kind: KindDecimal, dec: d} }

// Time wraps a timestamp cell.
func Time(t time.Time) Value { return Value{kind: KindTime, ts: t} }

// Date wraps the calendar date of t as seen in t's location. The result is midnight
// UTC so dates read from different zones compare equal.
func Date(t time.Time) Value {
	y, m, d := t.Date()
	return Value{kind: KindTime, ts: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the text of a string value, or "" for any other kind.
func (v Value) Str() string { return v.str }

// Time returns the timestamp of a time value, or the zero time for any other kind.
func (v Value) Time() time.Time { return v.ts }

// Dec returns the decimal held by v and whether v is a decimal.
func (v Value) Dec() (decimal.Decimal, bool) {
	return v.dec, v.kind == KindDecimal
}

// NullDec converts v to a decimal.NullDecimal; any non-decimal value is invalid.
func (v Value) NullDec() decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: v.dec, Valid: v.kind == KindDecimal}
}

// Text renders v for display and CSV/xlsx output.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindDecimal:
		return v.dec.String()
	case KindTime:
		if v.ts.Hour() == 0 && v.ts.Minute() == 0 && v.ts.Second() == 0 && v.ts.Nanosecond() == 0 {
			return v.ts.Format("2006-01-02")
		}
		return v.ts.Format("2006-01-02 15:04:05")
	default:
		return ""
	}
}

// Key is the canonical grouping/join key of v. Two values share a key iff Equal reports true.
func (v Value) Key() string {
	switch v.kind {
	case KindString:
		return "s:" + v.str
	case KindDecimal:
		return "d:" + v.dec.String()
	case KindTime:
		return "t:" + v.ts.UTC().Format(time.RFC3339Nano)
	default:
		return "n:"
	}
}

// Equal compares kind and content exactly. Decimals compare numerically, so 100 equals 100.00.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindDecimal:
		return v.dec.Equal(o.dec)
	case KindTime:
		return v.ts.Equal(o.ts)
	default:
		return true
	}
}

// Less orders values of the same kind; nulls sort last and mixed kinds sort by kind.
func (v Value) Less(o Value) bool {
	if v.kind != o.kind {
		if v.kind == KindNull {
			return false
		}
		if o.kind == KindNull {
			return true
		}
		return v.kind < o.kind
	}
	switch v.kind {
	case KindString:
		return v.str < o.str
	case KindDecimal:
		return v.dec.LessThan(o.dec)
	case KindTime:
		return v.ts.Before(o.ts)
	default:
		return false
	}
}

// MarshalJSON renders strings and dates as JSON strings, decimals as JSON strings and nulls as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindNull {
		return []byte("null"), nil
	}
	return json.Marshal(v.Text())
}
