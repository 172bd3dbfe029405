// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

// Package events holds the event model the redaction engine works on and
// its mapping to OTLP log records.
package events

// Kind is the type of a Value.
type Kind int

const (
	KindEmpty Kind = iota
	KindString
	KindInt
	KindDouble
	KindBool
	KindBytes
	KindArray
	KindMap // nested named values, e.g. OTLP key-value lists
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindDouble:
		return "double"
	case KindBool:
		return "bool"
	case KindBytes:
		return "bytes"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	default:
		return "empty"
	}
}

// Value is a typed field value.
type Value struct {
	kind   Kind
	str    string
	num    int64
	float  float64
	flag   bool
	bytes  []byte
	array  []Value
	fields []Field
}

func Empty() Value { return Value{} }
func String(s string) Value { return Value{kind: KindString, str: s} }
func Int(n int64) Value { return Value{kind: KindInt, num: n} }
func Double(f float64) Value { return Value{kind: KindDouble, float: f} }
func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }
func Bytes(b []byte) Value { return Value{kind: KindBytes, bytes: b} }
func Array(vs ...Value) Value { return Value{kind: KindArray, array: vs} }
func Map(fs ...Field) Value { return Value{kind: KindMap, fields: fs} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) Str() string { return v.str }
func (v Value) Int() int64 { return v.num }
func (v Value) Double() float64 { return v.float }
func (v Value) Bool() bool { return v.flag }
func (v Value) Bytes() []byte { return v.bytes }
func (v Value) Array() []Value { return v.array }
func (v Value) Map() []Field { return v.fields }

// Field is one named value of an event.
type Field struct {
	Name  string
	Value Value
}

// Event is one record: a type name and ordered fields.
type Event struct {
	Type   string
	Fields []Field

	removed bool
}

// Remove marks the event to be dropped from the output.
func (e *Event) Remove() { e.removed = true }

// Removed reports whether the event is dropped.
func (e *Event) Removed() bool { return e.removed }

// Field returns the first field with the given name.
func (e *Event) Field(name string) (Value, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}
