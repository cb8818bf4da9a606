package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var (
	ErrNotObject    = errors.New("document: top-level JSON value is not an object")
	ErrTrailingData = errors.New("document: unexpected data after JSON object")
)

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindScalar:
		return json.Marshal(v.scalar)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	case KindMap:
		if v.m == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.m)
	}
	return nil, fmt.Errorf("document: unknown kind %d", v.kind)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Decode reads one JSON object from r. Numbers keep their textual form and
// anything but whitespace after the object is rejected.
func Decode(r io.Reader) (Map, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	switch _, err := dec.Token(); {
	case err == io.EOF:
	case err == nil:
		return nil, ErrTrailingData
	default:
		return nil, fmt.Errorf("%w: %v", ErrTrailingData, err)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		if raw == nil {
			return Map{}, nil
		}
		return nil, ErrNotObject
	}
	return MapFromAny(obj)
}

// Parse decodes a JSON object held in memory. Empty input yields an empty Map.
func Parse(data []byte) (Map, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Map{}, nil
	}
	return Decode(bytes.NewReader(data))
}

// MarshalIndent renders m as indented JSON with sorted keys.
func MarshalIndent(m Map) ([]byte, error) {
	if m == nil {
		m = Map{}
	}
	return json.MarshalIndent(m, "", "  ")
}
