package cache

import (
	"bytes"
	"fmt"
	"maps"
	"slices"

	"github.com/vmihailenco/msgpack/v5"
)

// Encode serialises v with msgpack.  Equal values must always encode to
// identical bytes; recomputation depends on this.  msgpack only sorts the
// keys of map[string]{bool,string,interface{}}, so any other map in a
// cached value has to be a Counts.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("cache: encode %T: %w", v, err)
	}
	return buf.Bytes(), nil
}

// Decode is the inverse of Encode.
func Decode(b []byte, v any) error {
	if err := msgpack.Unmarshal(b, v); err != nil {
		return fmt.Errorf("cache: decode %T: %w", v, err)
	}
	return nil
}

// Counts is a label → count map that encodes with its keys in ascending
// order.
type Counts map[string]int64

// EncodeMsgpack writes c as a msgpack map with sorted keys.
func (c Counts) EncodeMsgpack(enc *msgpack.Encoder) error {
	if c == nil {
		return enc.EncodeNil()
	}
	if err := enc.EncodeMapLen(len(c)); err != nil {
		return err
	}
	for _, k := range slices.Sorted(maps.Keys(c)) {
		if err := enc.EncodeString(k); err != nil {
			return err
		}
		if err := enc.EncodeInt(c[k]); err != nil {
			return err
		}
	}
	return nil
}

// DecodeMsgpack reads any msgpack map of string → integer.
func (c *Counts) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return err
	}
	if n == -1 {
		*c = nil
		return nil
	}
	out := make(Counts, n)
	for i := 0; i < n; i++ {
		k, err := dec.DecodeString()
		if err != nil {
			return err
		}
		v, err := dec.DecodeInt64()
		if err != nil {
			return err
		}
		out[k] = v
	}
	*c = out
	return nil
}
