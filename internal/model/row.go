package model

import (
	"encoding/json"
	"math"
	"strconv"
)

// Kind tells how a Value should be rendered.
type Kind uint8

const (
	// KindEmpty marks a cell with no value.
	KindEmpty Kind = iota
	// KindNA marks a session aggregate the session did not produce.
	KindNA
	KindNumber
	KindText
)

// NotApplicable is how KindNA cells are rendered.
const NotApplicable = "N/A"

// Value is a single dataset cell.
type Value struct {
	Kind Kind
	Num  float64
	Text string
}

var (
	// Empty is the missing cell.
	Empty = Value{}
	// NA is the not-applicable cell.
	NA = Value{Kind: KindNA}
)

// Number returns a numeric cell. NaN and infinities become Empty so that
// degenerate arithmetic never reaches the dataset.
func Number(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Empty
	}
	return Value{Kind: KindNumber, Num: v}
}

// Text returns a string cell.
func Text(s string) Value {
	return Value{Kind: KindText, Text: s}
}

// Opt returns a numeric cell, or Empty when f is absent.
func Opt(f Float) Value {
	if !f.Valid {
		return Empty
	}
	return Number(f.Value)
}

// String renders the cell for delimited text output.
func (v Value) String() string {
	switch v.Kind {
	case KindNA:
		return NotApplicable
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindText:
		return v.Text
	default:
		return ""
	}
}

// Interface returns the cell as a plain Go value (nil for Empty).
func (v Value) Interface() interface{} {
	switch v.Kind {
	case KindNA:
		return NotApplicable
	case KindNumber:
		return v.Num
	case KindText:
		return v.Text
	default:
		return nil
	}
}

// MarshalJSON encodes Empty as null and N/A as a string.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// Row maps column names to cells. A missing key is an empty cell.
type Row map[string]Value

// SessionResult is what a Task produces for one session.
type SessionResult struct {
	UUID     string
	FileName string
	Rows     []Row
	// Aggregates are session-level values attached to every row of the
	// session under the same column name.
	Aggregates map[string]Float
}

// Dataset is a rectangular table: every row has len(Columns) cells.
type Dataset struct {
	Name      string
	Mode      string
	Threshold float64
	Columns   []string
	Rows      [][]Value
	// UUIDs holds the session UUID of each row.
	UUIDs []string
}

// Records returns the dataset as column-keyed maps, for JSON encoding.
func (d *Dataset) Records() []map[string]Value {
	out := make([]map[string]Value, len(d.Rows))
	for i, row := range d.Rows {
		rec := make(map[string]Value, len(d.Columns))
		for j, col := range d.Columns {
			rec[col] = row[j]
		}
		out[i] = rec
	}
	return out
}
