package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// Elem is one key/value pair of a Doc
type Elem struct {
	Key   string
	Value any
}

// Doc is an ordered filter document in wire syntax.
//
// Values are nil, bool, int64, float64, string, nested Docs or []any.
// Key order is kept as read so documents print the way they were written.
type Doc []Elem

// D builds a Doc from alternating keys and values
func D(kv ...any) Doc {
	d := make(Doc, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		d = append(d, Elem{Key: fmt.Sprint(kv[i]), Value: kv[i+1]})
	}
	return d
}

// Get returns the value of the first element with the given key
func (d Doc) Get(key string) (any, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Keys returns the keys in document order
func (d Doc) Keys() []string {
	keys := make([]string, len(d))
	for i, e := range d {
		keys[i] = e.Key
	}
	return keys
}

// Map converts d, recursively, into an unordered map
func (d Doc) Map() map[string]any {
	m := make(map[string]any, len(d))
	for _, e := range d {
		m[e.Key] = plainDocs(e.Value)
	}
	return m
}

func plainDocs(v any) any {
	switch t := v.(type) {
	case Doc:
		return t.Map()
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = plainDocs(x)
		}
		return out
	}
	return v
}

func (d Doc) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(e.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal %q: %w", e.Key, err)
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (d *Doc) UnmarshalJSON(b []byte) error {
	parsed, err := ParseJSON(b)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Doc) String() string {
	b, err := d.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<invalid doc: %v>", err)
	}
	return string(b)
}

// ParseJSON decodes a JSON object into a Doc, keeping key order. Integral
// numbers decode as int64, others as float64.
func ParseJSON(b []byte) (Doc, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	d, ok := v.(Doc)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object, got %T", v)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after JSON object")
	}
	return d, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			d := Doc{}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("invalid object key %v", kt)
				}
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				d = append(d, Elem{Key: key, Value: v})
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return d, nil
		case '[':
			arr := []any{}
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	case json.Number:
		return normalizeNumber(t), nil
	default:
		return t, nil
	}
}

func normalizeNumber(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	f, err := n.Float64()
	if err != nil {
		return n.String()
	}
	return f
}

// normalizeValue deep-copies v into the value forms a Doc holds. Go maps
// become Docs with sorted keys. Numbers are held as int64 or float64, so a
// filter built with Go ints renders int64 values.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case Doc:
		out := make(Doc, len(t))
		for i, e := range t {
			out[i] = Elem{Key: e.Key, Value: normalizeValue(e.Value)}
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(Doc, 0, len(t))
		for _, k := range keys {
			out = append(out, Elem{Key: k, Value: normalizeValue(t[k])})
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = normalizeValue(x)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = x
		}
		return out
	case []int:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = int64(x)
		}
		return out
	case []int64:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = x
		}
		return out
	case []float64:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = x
		}
		return out
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case uint32:
		return int64(t)
	case float32:
		return float64(t)
	case json.Number:
		return normalizeNumber(t)
	}
	return v
}
