// Package source fetches catalog entities for a comparison. A fetch never
// panics or returns a bare error: callers get a Result that is either a
// success carrying entities or a failure carrying a reason, and decide
// themselves whether to fall back to another source.
package source

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"saas-compare/decision/catalog"
	"saas-compare/internal/observability"
	cmperrors "saas-compare/pkg/errors"
)

// Query selects entities. With IDs set the other filters are ignored and the
// result follows the requested order.
type Query struct {
	IDs      []string `json:"ids,omitempty"`
	Category string   `json:"category,omitempty"`
	Kind     string   `json:"kind,omitempty"`
	Search   string   `json:"q,omitempty"`
	Limit    int      `json:"limit,omitempty"`
}

// Result is the outcome of one fetch.
type Result struct {
	Source   string           `json:"source"`
	Entities []catalog.Entity `json:"entities"`
	// Missing lists requested IDs the source does not know.
	Missing []string `json:"missing,omitempty"`

	Err error `json:"-"`
	// Reason is a human readable failure cause, empty on success.
	Reason string `json:"reason,omitempty"`

	FromFallback  bool   `json:"from_fallback,omitempty"`
	PrimaryReason string `json:"primary_reason,omitempty"`
}

// OK reports whether the fetch succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Success builds a successful result, ordered by q.IDs when given.
func Success(source string, q Query, entities []catalog.Entity) Result {
	res := Result{Source: source}
	if len(q.IDs) > 0 {
		res.Entities, res.Missing = orderByIDs(entities, q.IDs)
	} else {
		res.Entities = dedupe(entities)
		if q.Limit > 0 && len(res.Entities) > q.Limit {
			res.Entities = res.Entities[:q.Limit]
		}
	}
	return res
}

// Failure builds a failed result.
func Failure(source string, err error) Result {
	wrapped := cmperrors.NewSourceFailureError(source, err)
	return Result{Source: source, Entities: []catalog.Entity{}, Err: wrapped, Reason: err.Error()}
}

type Source interface {
	Name() string
	Fetch(ctx context.Context, q Query) Result
}

func orderByIDs(entities []catalog.Entity, ids []string) ([]catalog.Entity, []string) {
	byID := make(map[string]int, len(entities))
	for i := range entities {
		if _, ok := byID[entities[i].ID]; !ok {
			byID[entities[i].ID] = i
		}
	}
	ordered := make([]catalog.Entity, 0, len(ids))
	var missing []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if i, ok := byID[id]; ok {
			ordered = append(ordered, entities[i])
		} else {
			missing = append(missing, id)
		}
	}
	return ordered, missing
}

func dedupe(entities []catalog.Entity) []catalog.Entity {
	out := make([]catalog.Entity, 0, len(entities))
	seen := make(map[string]bool, len(entities))
	for _, e := range entities {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		out = append(out, e)
	}
	return out
}

// matches applies the non-ID filters of q to e.
func matches(e *catalog.Entity, q Query) bool {
	if q.Category != "" && !strings.EqualFold(e.Category, q.Category) {
		return false
	}
	if q.Kind != "" && !strings.EqualFold(string(e.Kind), q.Kind) {
		return false
	}
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(e.Name), needle) &&
			!strings.Contains(strings.ToLower(e.ID), needle) &&
			!strings.Contains(strings.ToLower(e.Description), needle) {
			return false
		}
	}
	return true
}

// ============================================================================
// Fallback
// ============================================================================

type fallbackSource struct {
	primary  Source
	fallback Source
	logger   *zap.Logger
}

// Fallback consults fallback only when primary fails. The returned result is
// marked FromFallback and keeps the primary's failure reason.
func Fallback(primary, fallback Source, logger *zap.Logger) Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &fallbackSource{primary: primary, fallback: fallback, logger: logger}
}

func (f *fallbackSource) Name() string {
	return f.primary.Name() + "+" + f.fallback.Name()
}

func (f *fallbackSource) Fetch(ctx context.Context, q Query) Result {
	res := f.primary.Fetch(ctx, q)
	if res.OK() || ctx.Err() != nil {
		return res
	}
	f.logger.Warn("Primary entity source failed, using fallback",
		zap.String("primary", f.primary.Name()),
		zap.String("fallback", f.fallback.Name()),
		zap.String("reason", res.Reason))

	fb := f.fallback.Fetch(ctx, q)
	fb.FromFallback = true
	fb.PrimaryReason = res.Reason
	return fb
}

// ============================================================================
// Instrumentation
// ============================================================================

type instrumented struct {
	Source
	metrics *observability.Metrics
}

// Instrument counts fetch outcomes per source.
func Instrument(src Source, metrics *observability.Metrics) Source {
	if metrics == nil {
		return src
	}
	return &instrumented{Source: src, metrics: metrics}
}

func (s *instrumented) Fetch(ctx context.Context, q Query) Result {
	res := s.Source.Fetch(ctx, q)
	outcome := "success"
	switch {
	case !res.OK():
		outcome = "failure"
	case len(res.Missing) > 0:
		outcome = "partial"
	}
	s.metrics.ObserveSource(s.Source.Name(), outcome)
	return res
}
