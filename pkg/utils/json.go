package utils

import (
	"encoding/json"
)

// MustMarshalJSON marshals v into a json byte array.
// It panics if marshaling fails.
func MustMarshalJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic("failed to marshal JSON: " + err.Error())
	}
	return data
}
