// Package models defines the data structures shared by the compression pipeline.
package models

import (
	"bytes"
	"encoding/json"
)

// Question is one line of the question file.
// Fields other than id and question are ignored.
type Question struct {
	// ID is echoed back verbatim, whatever JSON type the input used.
	ID       json.RawMessage `json:"id"`
	Question string          `json:"question"`
}

// IDString renders the identifier for logs. String IDs are unquoted.
func (q Question) IDString() string {
	if len(q.ID) == 0 {
		return "<none>"
	}
	var s string
	if err := json.Unmarshal(q.ID, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(q.ID))
}
