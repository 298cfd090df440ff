package design

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// The raw document layer parses JSON into objects that remember key order.
// Canonical renaming is position-derived, so the order in which entities
// appear in the source file is load-bearing; encoding/json maps discard it.

type rawValue interface{}

// rawObject is a JSON object with remembered key order.
type rawObject struct {
	keys []string
	vals map[string]rawValue
}

func newRawObject() *rawObject {
	return &rawObject{vals: make(map[string]rawValue)}
}

func (o *rawObject) set(key string, v rawValue) {
	if _, ok := o.vals[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.vals[key] = v
}

func (o *rawObject) get(key string) (rawValue, bool) {
	v, ok := o.vals[key]
	return v, ok
}

// obj returns the child object under key, or nil.
func (o *rawObject) obj(key string) *rawObject {
	v, _ := o.vals[key]
	child, _ := v.(*rawObject)
	return child
}

// arr returns the child array under key, or nil.
func (o *rawObject) arr(key string) []rawValue {
	v, _ := o.vals[key]
	a, _ := v.([]rawValue)
	return a
}

// str returns the string under key, or "".
func (o *rawObject) str(key string) string {
	v, _ := o.vals[key]
	s, _ := v.(string)
	return s
}

// num returns the number under key and whether it was present.
func (o *rawObject) num(key string) (float64, bool) {
	v, ok := o.vals[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// parseRaw decodes a JSON document into an order-preserving object tree.
func parseRaw(data []byte) (*rawObject, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parse design document: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("parse design document: top level is not an object")
	}
	obj, err := parseRawObject(dec)
	if err != nil {
		return nil, fmt.Errorf("parse design document: %w", err)
	}
	return obj, nil
}

// parseRawObject consumes object members up to and including the closing
// brace. The opening brace has already been consumed.
func parseRawObject(dec *json.Decoder) (*rawObject, error) {
	obj := newRawObject()
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if d, ok := tok.(json.Delim); ok && d == '}' {
			return obj, nil
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("object key is not a string: %v", tok)
		}
		val, err := parseRawValue(dec)
		if err != nil {
			return nil, err
		}
		obj.set(key, val)
	}
}

func parseRawArray(dec *json.Decoder) ([]rawValue, error) {
	arr := []rawValue{}
	for {
		if !dec.More() {
			// Consume the closing bracket.
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		}
		val, err := parseRawValue(dec)
		if err != nil {
			return nil, err
		}
		arr = append(arr, val)
	}
}

func parseRawValue(dec *json.Decoder) (rawValue, error) {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("unexpected end of document")
		}
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return parseRawObject(dec)
		case '[':
			return parseRawArray(dec)
		}
		return nil, fmt.Errorf("unexpected delimiter %q", t.String())
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("bad number %q: %w", t.String(), err)
		}
		return f, nil
	default:
		// string, bool, nil
		return t, nil
	}
}

// serializeRaw renders the ordered object tree back to indented JSON,
// preserving key order.
func serializeRaw(v rawValue) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeRawValue(&buf, v, 0); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func writeRawValue(buf *bytes.Buffer, v rawValue, depth int) error {
	switch t := v.(type) {
	case *rawObject:
		return writeRawObject(buf, t, depth)
	case []rawValue:
		return writeRawArray(buf, t, depth)
	default:
		leaf, err := json.Marshal(t)
		if err != nil {
			return err
		}
		buf.Write(leaf)
		return nil
	}
}

func writeRawObject(buf *bytes.Buffer, o *rawObject, depth int) error {
	if len(o.keys) == 0 {
		buf.WriteString("{}")
		return nil
	}
	buf.WriteString("{\n")
	for i, key := range o.keys {
		writeIndent(buf, depth+1)
		name, err := json.Marshal(key)
		if err != nil {
			return err
		}
		buf.Write(name)
		buf.WriteString(": ")
		if err := writeRawValue(buf, o.vals[key], depth+1); err != nil {
			return err
		}
		if i < len(o.keys)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	writeIndent(buf, depth)
	buf.WriteByte('}')
	return nil
}

func writeRawArray(buf *bytes.Buffer, a []rawValue, depth int) error {
	if len(a) == 0 {
		buf.WriteString("[]")
		return nil
	}
	buf.WriteString("[\n")
	for i, v := range a {
		writeIndent(buf, depth+1)
		if err := writeRawValue(buf, v, depth+1); err != nil {
			return err
		}
		if i < len(a)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	writeIndent(buf, depth)
	buf.WriteByte(']')
	return nil
}

func writeIndent(buf *bytes.Buffer, depth int) {
	for i := 0; i < depth; i++ {
		buf.WriteString("  ")
	}
}
