package bencode

import (
	"bytes"
	"fmt"
	"io"

	jackpal "github.com/jackpal/bencode-go"
)

// Encode writes the canonical encoding of v to w. Dictionary keys are written
// in sorted order whatever order the entries are held in, so equal trees
// always encode to the same bytes.
func Encode(w io.Writer, v Value) error {
	native, err := toNative(v)
	if err != nil {
		return err
	}
	return jackpal.Marshal(w, native)
}

// Marshal returns the canonical encoding of v.
func Marshal(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// toNative converts a tree into the plain Go values the encoder understands.
func toNative(v Value) (interface{}, error) {
	switch v := v.(type) {
	case Integer:
		return v.Int, nil
	case ByteString:
		return string(v.Bytes), nil
	case List:
		items := make([]interface{}, len(v.Items))
		for i, item := range v.Items {
			native, err := toNative(item)
			if err != nil {
				return nil, err
			}
			items[i] = native
		}
		return items, nil
	case Dictionary:
		dict := make(map[string]interface{}, len(v.Entries))
		for _, e := range v.Entries {
			if _, dup := dict[string(e.Key)]; dup {
				return nil, fmt.Errorf("bencode: duplicate key %q", e.Key)
			}
			native, err := toNative(e.Value)
			if err != nil {
				return nil, err
			}
			dict[string(e.Key)] = native
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("bencode: cannot encode %T", v)
	}
}
