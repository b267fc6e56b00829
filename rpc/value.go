package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
)

// String returns the variant name, for logs and error messages.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is a closed sum type over the JSON value space: null, bool, integer,
// float, string, list, and string-keyed map. It exists so that untyped
// params/results keep the int/float distinction across a round trip: raw
// JSON is decoded by trying the variants in a fixed priority order — bool,
// integer, float, string, list, map — so `1` becomes an integer and `1.5`
// becomes a float. That order is part of the wire contract.
//
// The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	list []Value
	m    map[string]Value
}

// Null returns the null Value.
func Null() Value { return Value{} }

// Bool returns a bool Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns an integer Value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a float Value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// List returns a list Value holding the given items.
func List(items ...Value) Value {
	return Value{kind: KindList, list: items}
}

// Map returns a map Value holding the given entries.
func Map(entries map[string]Value) Value {
	return Value{kind: KindMap, m: entries}
}

// Kind reports which variant this Value holds.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the Value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// BoolValue returns the bool variant's payload. ok is false for other kinds.
func (v Value) BoolValue() (b bool, ok bool) { return v.b, v.kind == KindBool }

// IntValue returns the integer variant's payload. ok is false for other kinds.
func (v Value) IntValue() (i int64, ok bool) { return v.i, v.kind == KindInt }

// FloatValue returns the float variant's payload. ok is false for other kinds.
func (v Value) FloatValue() (f float64, ok bool) { return v.f, v.kind == KindFloat }

// StringValue returns the string variant's payload. ok is false for other kinds.
func (v Value) StringValue() (s string, ok bool) { return v.s, v.kind == KindString }

// ListValue returns the list variant's items. ok is false for other kinds.
func (v Value) ListValue() (items []Value, ok bool) { return v.list, v.kind == KindList }

// MapValue returns the map variant's entries. ok is false for other kinds.
func (v Value) MapValue() (entries map[string]Value, ok bool) { return v.m, v.kind == KindMap }

// Get looks up a key on a map Value. ok is false for other kinds or a
// missing key.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	item, ok := v.m[key]
	return item, ok
}

// Equal reports deep equality of two Values. Int and float variants are
// never equal to each other, even when numerically identical — the variant
// is part of the value.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, item := range v.m {
			other, ok := o.m[k]
			if !ok || !item.Equal(other) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// UnmarshalJSON decodes any well-formed JSON value, trying variants in the
// contractual priority order: bool, integer, float, string, list, map.
// Integers are parsed from the literal text, so `1` stays an integer while
// `1.0` and `1.5` become floats.
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty JSON value")
	}

	if bytes.Equal(trimmed, []byte("null")) {
		*v = Value{}
		return nil
	}

	var b bool
	if err := json.Unmarshal(trimmed, &b); err == nil {
		*v = Bool(b)
		return nil
	}

	if i, err := strconv.ParseInt(string(trimmed), 10, 64); err == nil {
		*v = Int(i)
		return nil
	}

	if f, err := strconv.ParseFloat(string(trimmed), 64); err == nil {
		*v = Float(f)
		return nil
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		*v = String(s)
		return nil
	}

	var rawList []json.RawMessage
	if err := json.Unmarshal(trimmed, &rawList); err == nil {
		items := make([]Value, len(rawList))
		for i, raw := range rawList {
			if err := items[i].UnmarshalJSON(raw); err != nil {
				return fmt.Errorf("list element %d: %w", i, err)
			}
		}
		*v = Value{kind: KindList, list: items}
		return nil
	}

	var rawMap map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &rawMap); err == nil {
		entries := make(map[string]Value, len(rawMap))
		for k, raw := range rawMap {
			var item Value
			if err := item.UnmarshalJSON(raw); err != nil {
				return fmt.Errorf("map key %q: %w", k, err)
			}
			entries[k] = item
		}
		*v = Value{kind: KindMap, m: entries}
		return nil
	}

	return fmt.Errorf("unsupported JSON value: %s", truncateForError(trimmed))
}

// MarshalJSON is the exact inverse of UnmarshalJSON for every variant.
// Floats that happen to be integral are written with a trailing ".0" so
// they decode back as floats, not integers.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return strconv.AppendBool(nil, v.b), nil
	case KindInt:
		return strconv.AppendInt(nil, v.i, 10), nil
	case KindFloat:
		return appendFloat(v.f)
	case KindString:
		return json.Marshal(v.s)
	case KindList:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			enc, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(enc)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case KindMap:
		// Sorted keys for deterministic output, matching encoding/json.
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyEnc, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf.Write(keyEnc)
			buf.WriteByte(':')
			enc, err := v.m[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(enc)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("invalid value kind %v", v.kind)
	}
}

// appendFloat encodes a float so that it still reads back as a float:
// integral values get a ".0" suffix since a bare integer literal would
// decode as the integer variant.
func appendFloat(f float64) ([]byte, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("float value %v has no JSON representation", f)
	}
	out := strconv.AppendFloat(nil, f, 'g', -1, 64)
	if !bytes.ContainsAny(out, ".eE") {
		out = append(out, '.', '0')
	}
	return out, nil
}

func truncateForError(data []byte) string {
	const max = 40
	s := string(data)
	if len(s) > max {
		return s[:max] + "..."
	}
	return strings.TrimSpace(s)
}
