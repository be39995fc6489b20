package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
)

var errEmptyPayload = errors.New("empty payload")

// UnwrapPayload decodes the payload of an envelope into its event-specific type.
func UnwrapPayload[T any](payload json.RawMessage) (T, error) {
	var t T
	if len(payload) == 0 || string(payload) == "null" {
		return t, errEmptyPayload
	}
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}
