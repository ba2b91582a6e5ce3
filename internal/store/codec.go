package store

import (
	"bytes"
	"encoding/json"
	"errors"
)

// encodeState renders the on-disk JSON form. Maps are never written as null.
func encodeState(state CatalogState) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(state.Clone()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeState parses and validates persisted JSON. Absent keys mean empty.
func decodeState(data []byte) (CatalogState, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return CatalogState{}, errors.New("empty document")
	}
	if trimmed[0] != '{' {
		return CatalogState{}, errors.New("document is not a JSON object")
	}

	var state CatalogState
	if err := json.Unmarshal(trimmed, &state); err != nil {
		return CatalogState{}, err
	}
	if err := state.validate(); err != nil {
		return CatalogState{}, err
	}
	return state.Clone(), nil
}
