// Package api defines the request/response contracts of the HTTP API.
package api

import (
	"saas-compare/decision/catalog"
	"saas-compare/decision/comparison"
	"saas-compare/decision/policy"
)

// CompareRequest asks for one comparison matrix. Entities are taken from
// Entities when given, else fetched by EntityIDs, else read from the
// session's selection.
type CompareRequest struct {
	EntityIDs     []string         `json:"entity_ids,omitempty"`
	Entities      []catalog.Entity `json:"entities,omitempty"`
	View          string           `json:"view"`
	TierSet       string           `json:"tier_set,omitempty"`
	Tiers         []string         `json:"tiers,omitempty"`
	SessionID     string           `json:"session_id,omitempty"`
	Authenticated bool             `json:"authenticated,omitempty"`
	MaxPrice      *float64         `json:"max_price,omitempty"`
	DiffOnly      bool             `json:"diff_only,omitempty"`
	// Group adds the rows split by how many entities offer them.
	Group bool `json:"group,omitempty"`
}

// CompareResponse is the matrix plus everything that shaped it.
type CompareResponse struct {
	Matrix       *comparison.Matrix          `json:"matrix"`
	Coverage     []comparison.ColumnCoverage `json:"coverage"`
	Policy       *policy.EvaluationResult    `json:"policy"`
	Groups       *comparison.Partition       `json:"groups,omitempty"`
	Missing      []string                    `json:"missing,omitempty"`
	Source       string                      `json:"source,omitempty"`
	FromFallback bool                        `json:"from_fallback,omitempty"`
}

// EntitiesResponse lists catalog entities.
type EntitiesResponse struct {
	Entities     []catalog.Entity `json:"entities"`
	Missing      []string         `json:"missing,omitempty"`
	Source       string           `json:"source"`
	FromFallback bool             `json:"from_fallback,omitempty"`
}

// SelectionRequest changes a session's selection.
type SelectionRequest struct {
	IDs           []string `json:"ids"`
	Authenticated bool     `json:"authenticated,omitempty"`
}

// SelectionResponse is a session's current selection.
type SelectionResponse struct {
	SessionID     string   `json:"session_id"`
	IDs           []string `json:"ids"`
	MaxSelectable int      `json:"max_selectable,omitempty"`
}

// SaveComparisonRequest stores a named comparison.
type SaveComparisonRequest struct {
	Name      string   `json:"name"`
	View      string   `json:"view"`
	TierSet   string   `json:"tier_set,omitempty"`
	EntityIDs []string `json:"entity_ids"`
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error   string                   `json:"error"`
	Code    string                   `json:"code,omitempty"`
	Message string                   `json:"message"`
	Policy  *policy.EvaluationResult `json:"policy,omitempty"`
}
