package credentials

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Codec encodes structured credentials into a single text payload and back
type Codec interface {
	Encode(fields map[string]any) ([]byte, error)
	Decode(data []byte) (map[string]any, error)
}

// JSONCodec stores structured credentials as a JSON object
type JSONCodec struct{}

// Encode marshals fields as a JSON object
func (JSONCodec) Encode(fields map[string]any) ([]byte, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode credentials: %w", err)
	}
	return data, nil
}

// Decode parses a JSON object. Anything else (plain text, arrays, scalars,
// trailing garbage) is an error.
func (JSONCodec) Decode(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("decode credentials: trailing data after object")
	}
	return fields, nil
}
