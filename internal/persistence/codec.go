package persistence

import (
	"bytes"
	"encoding/gob"
)

// encodeValue serializes a concrete Go value using encoding/gob. Stores use
// it for the step record, quiz attempts and email log payloads.
func encodeValue[T any](v T) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeValue deserializes data into T. Empty input yields the zero value,
// which lets rows written before a field existed load cleanly.
func decodeValue[T any](data []byte) (T, error) {
	var v T
	if len(data) == 0 {
		return v, nil
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&v); err != nil {
		return v, err
	}
	return v, nil
}
