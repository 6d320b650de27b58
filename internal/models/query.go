package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRequest marks a query or question rejected by validation.
var ErrInvalidRequest = errors.New("invalid request")

// Answer modes.
const (
	ModeTemplate   = "template"
	ModeGenerative = "generative"
)

// SearchQuery is a single-tier search request. A nil Threshold means the
// configured tier policy is used instead.
type SearchQuery struct {
	Query     string   `json:"query"`
	K         int      `json:"k,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

// Validate trims the query and caps K.
func (q *SearchQuery) Validate() error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return fmt.Errorf("%w: query cannot be empty", ErrInvalidRequest)
	}
	if q.K < 0 {
		return fmt.Errorf("%w: k must not be negative", ErrInvalidRequest)
	}
	if q.K > 100 {
		q.K = 100
	}
	if q.Threshold != nil && (*q.Threshold < -1 || *q.Threshold > 1) {
		return fmt.Errorf("%w: threshold %v outside [-1, 1]", ErrInvalidRequest, *q.Threshold)
	}
	return nil
}

// AskRequest is a question for the answer engine. An empty Mode means the
// configured default.
type AskRequest struct {
	Question string `json:"question"`
	Mode     string `json:"mode,omitempty"`
}

// Validate trims the question and checks the mode.
func (r *AskRequest) Validate() error {
	r.Question = strings.TrimSpace(r.Question)
	if r.Question == "" {
		return fmt.Errorf("%w: question cannot be empty", ErrInvalidRequest)
	}
	switch r.Mode {
	case "", ModeTemplate, ModeGenerative:
		return nil
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, r.Mode)
	}
}
