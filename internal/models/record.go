package models

import "encoding/json"

// Record is one line of the result file. It is written once and never updated.
type Record struct {
	Level      int             `json:"level"`
	ID         json.RawMessage `json:"id"`
	Question   *string         `json:"question,omitempty"`
	Compressed string          `json:"compressed"`
	// Error is set only when the remote call failed and the job records failures.
	Error string `json:"error,omitempty"`
}

// NewRecord builds the record for a question. The question key is present,
// even when empty, only when includeQuestion is set.
func NewRecord(level int, q Question, includeQuestion bool) Record {
	id := q.ID
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	r := Record{Level: level, ID: id}
	if includeQuestion {
		text := q.Question
		r.Question = &text
	}
	return r
}

// Failed reports whether the record carries an error marker.
func (r Record) Failed() bool {
	return r.Error != ""
}
