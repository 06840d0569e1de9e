package tasks

import (
	"encoding/json"
	"fmt"
)

// jsonMap flattens a typed value into the plain map shape job results are
// stored in. Keeps store encodings backend-agnostic: no custom struct types
// leak into badgerhold or Firestore documents.
func jsonMap(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode results: %w", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to decode results: %w", err)
	}
	return m, nil
}
