package flatten

import (
	"errors"
	"fmt"
	"strconv"
)

// PayloadKey is the field of a raw API record that holds the vacancy tree.
const PayloadKey = "vacancy"

// ErrNoPayload is returned by Payload for records without a vacancy tree.
var ErrNoPayload = errors.New("record has no vacancy payload")

// FlatRow is a single-level mapping from path keys to scalar values. Keys
// keep the order in which the walk produced them.
type FlatRow struct {
	keys   []string
	values map[string]Value
}

// NewFlatRow returns an empty row.
func NewFlatRow() FlatRow {
	return FlatRow{values: make(map[string]Value)}
}

// Set assigns key. A new key is appended to the key order.
func (r *FlatRow) Set(key string, v Value) {
	if r.values == nil {
		r.values = make(map[string]Value)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
}

// Get returns the value stored under key.
func (r FlatRow) Get(key string) (Value, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Has reports whether key is present and not null.
func (r FlatRow) Has(key string) bool {
	v, ok := r.values[key]
	return ok && !v.IsNull()
}

// Text returns the textual value of key, or "" when absent.
func (r FlatRow) Text(key string) string {
	return r.values[key].Raw
}

// Delete removes key if present.
func (r *FlatRow) Delete(key string) {
	if _, ok := r.values[key]; !ok {
		return
	}
	delete(r.values, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i:i], r.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (r FlatRow) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of keys.
func (r FlatRow) Len() int { return len(r.keys) }

// Clone returns an independent copy of the row.
func (r FlatRow) Clone() FlatRow {
	out := FlatRow{
		keys:   make([]string, len(r.keys)),
		values: make(map[string]Value, len(r.values)),
	}
	copy(out.keys, r.keys)
	for k, v := range r.values {
		out.values[k] = v
	}
	return out
}

// Payload extracts the vacancy tree from a raw API record. A payload that
// arrived as text is decoded with ParseLiteral.
func Payload(record Node) (Node, error) {
	payload, ok := record.Get(PayloadKey)
	if !ok {
		return Node{}, ErrNoPayload
	}

	if payload.Kind == KindScalar && payload.Scalar.Type == TypeString {
		decoded, err := ParseLiteral(payload.Scalar.Raw)
		if err != nil {
			return Node{}, fmt.Errorf("decode serialized payload: %w", err)
		}
		payload = decoded
	}

	if payload.Kind != KindObject {
		return Node{}, fmt.Errorf("vacancy payload is not an object")
	}
	return payload, nil
}

// Flatten walks an object tree and returns its leaves as a FlatRow.
// Non-object roots produce an empty row.
func Flatten(root Node) FlatRow {
	row := NewFlatRow()
	if root.Kind != KindObject {
		return row
	}
	walkObject(&row, root, "")
	return row
}

// FlattenAll flattens each payload; output order matches input order.
func FlattenAll(payloads []Node) []FlatRow {
	rows := make([]FlatRow, 0, len(payloads))
	for _, p := range payloads {
		rows = append(rows, Flatten(p))
	}
	return rows
}

func walkObject(row *FlatRow, obj Node, prefix string) {
	for _, f := range obj.Fields {
		key := prefix + f.Key
		switch f.Value.Kind {
		case KindObject:
			walkObject(row, f.Value, key+"_")
		case KindArray:
			for i, item := range f.Value.Items {
				idx := key + "_" + strconv.Itoa(i)
				if item.Kind == KindObject {
					walkObject(row, item, idx+"_")
				} else {
					// nested arrays are kept whole as a scalar-like leaf
					row.Set(idx, leafValue(item))
				}
			}
		default:
			row.Set(key, f.Value.Scalar)
		}
	}
}

func leafValue(n Node) Value {
	if n.Kind == KindScalar {
		return n.Scalar
	}
	b, _ := n.MarshalJSON()
	return String(string(b))
}

// Unflatten rebuilds a tree shaped like shape, taking every leaf from row by
// the same key convention Flatten uses.
func Unflatten(shape Node, row FlatRow) (Node, error) {
	if shape.Kind != KindObject {
		return Node{}, fmt.Errorf("shape root is not an object")
	}
	return rebuildObject(shape, row, "")
}

func rebuildObject(shape Node, row FlatRow, prefix string) (Node, error) {
	out := Node{Kind: KindObject, Fields: make([]Field, 0, len(shape.Fields))}
	for _, f := range shape.Fields {
		key := prefix + f.Key
		var (
			val Node
			err error
		)
		switch f.Value.Kind {
		case KindObject:
			val, err = rebuildObject(f.Value, row, key+"_")
		case KindArray:
			val = Node{Kind: KindArray, Items: make([]Node, 0, len(f.Value.Items))}
			for i, item := range f.Value.Items {
				idx := key + "_" + strconv.Itoa(i)
				var rebuilt Node
				if item.Kind == KindObject {
					rebuilt, err = rebuildObject(item, row, idx+"_")
				} else if item.Kind == KindArray {
					rebuilt, err = lookupNested(row, idx)
				} else {
					rebuilt, err = lookupLeaf(row, idx)
				}
				if err != nil {
					break
				}
				val.Items = append(val.Items, rebuilt)
			}
		default:
			val, err = lookupLeaf(row, key)
		}
		if err != nil {
			return Node{}, err
		}
		out.Fields = append(out.Fields, Field{Key: f.Key, Value: val})
	}
	return out, nil
}

func lookupLeaf(row FlatRow, key string) (Node, error) {
	v, ok := row.Get(key)
	if !ok {
		return Node{}, fmt.Errorf("key %q missing from row", key)
	}
	return Scalar(v), nil
}

func lookupNested(row FlatRow, key string) (Node, error) {
	v, ok := row.Get(key)
	if !ok {
		return Node{}, fmt.Errorf("key %q missing from row", key)
	}
	return Decode([]byte(v.Raw))
}
