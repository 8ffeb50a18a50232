// Package flatten turns nested vacancy payloads into single-level rows.
//
// A payload is held as a Node tree: a Scalar leaf, an Object with ordered
// fields, or an Array. Flatten walks the tree and joins path segments with
// underscores:
//
//	{"company": {"inn": "1"}}             → company_inn
//	{"addresses": {"address": [{...}]}}   → addresses_address_0_<field>
//	{"shift": ["a", "b"]}                 → shift_0, shift_1
package flatten

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Kind tags the variant held by a Node.
type Kind int

const (
	KindScalar Kind = iota
	KindObject
	KindArray
)

// ValueType tags the type of a scalar leaf.
type ValueType int

const (
	TypeNull ValueType = iota
	TypeString
	TypeNumber
	TypeBool
)

// Value is a scalar leaf. Raw holds the string content, the number literal
// as it appeared in the source, or "true"/"false".
type Value struct {
	Type ValueType
	Raw  string
}

// String returns a scalar value.
func String(s string) Value { return Value{Type: TypeString, Raw: s} }

// Number returns a numeric value from its literal text.
func Number(lit string) Value { return Value{Type: TypeNumber, Raw: lit} }

// Bool returns a boolean value.
func Bool(b bool) Value {
	if b {
		return Value{Type: TypeBool, Raw: "true"}
	}
	return Value{Type: TypeBool, Raw: "false"}
}

// Null returns the null value.
func Null() Value { return Value{Type: TypeNull} }

// IsNull reports whether v is the null leaf.
func (v Value) IsNull() bool { return v.Type == TypeNull }

// String returns the textual form of the value; null is "".
func (v Value) String() string { return v.Raw }

// Field is one key/value pair of an Object, in source order.
type Field struct {
	Key   string
	Value Node
}

// Node is one element of a payload tree.
type Node struct {
	Kind   Kind
	Scalar Value
	Fields []Field
	Items  []Node
}

// Scalar wraps a leaf value in a Node.
func Scalar(v Value) Node { return Node{Kind: KindScalar, Scalar: v} }

// Object builds an object Node from ordered fields.
func Object(fields ...Field) Node { return Node{Kind: KindObject, Fields: fields} }

// Array builds an array Node.
func Array(items ...Node) Node { return Node{Kind: KindArray, Items: items} }

// Get returns the value of key in an object node.
func (n Node) Get(key string) (Node, bool) {
	if n.Kind != KindObject {
		return Node{}, false
	}
	for _, f := range n.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Node{}, false
}

// Decode parses one JSON document into a Node, keeping object key order.
func Decode(data []byte) (Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	n, err := decodeNode(dec)
	if err != nil {
		return Node{}, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Node{}, fmt.Errorf("unexpected data after JSON value")
	}
	return n, nil
}

func decodeNode(dec *json.Decoder) (Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return Node{}, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := Node{Kind: KindObject}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Node{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Node{}, fmt.Errorf("object key is %T, want string", keyTok)
				}
				val, err := decodeNode(dec)
				if err != nil {
					return Node{}, err
				}
				obj.Fields = append(obj.Fields, Field{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil { // '}'
				return Node{}, err
			}
			return obj, nil
		case '[':
			arr := Node{Kind: KindArray}
			for dec.More() {
				item, err := decodeNode(dec)
				if err != nil {
					return Node{}, err
				}
				arr.Items = append(arr.Items, item)
			}
			if _, err := dec.Token(); err != nil { // ']'
				return Node{}, err
			}
			return arr, nil
		}
		return Node{}, fmt.Errorf("unexpected delimiter %q", t)
	case string:
		return Scalar(String(t)), nil
	case json.Number:
		return Scalar(Number(t.String())), nil
	case bool:
		return Scalar(Bool(t)), nil
	case nil:
		return Scalar(Null()), nil
	}
	return Node{}, fmt.Errorf("unexpected token %T", tok)
}

// MarshalJSON renders the tree back to JSON with its original key order.
func (n Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := n.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (n Node) encode(buf *bytes.Buffer) error {
	switch n.Kind {
	case KindObject:
		buf.WriteByte('{')
		for i, f := range n.Fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, _ := json.Marshal(f.Key)
			buf.Write(key)
			buf.WriteByte(':')
			if err := f.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case KindArray:
		buf.WriteByte('[')
		for i, item := range n.Items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		switch n.Scalar.Type {
		case TypeNull:
			buf.WriteString("null")
		case TypeString:
			s, _ := json.Marshal(n.Scalar.Raw)
			buf.Write(s)
		default:
			buf.WriteString(n.Scalar.Raw)
		}
	}
	return nil
}
