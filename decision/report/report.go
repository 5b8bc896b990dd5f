// Package report runs one comparison end to end: entity lookup, policy
// evaluation and matrix assembly. The API server and the CLI share it.
package report

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"saas-compare/decision/catalog"
	"saas-compare/decision/comparison"
	"saas-compare/decision/policy"
	"saas-compare/decision/selection"
	"saas-compare/decision/source"
	"saas-compare/internal/observability"
)

// SourceRequest labels results built from caller supplied entities.
const SourceRequest = "request"

// Request describes one comparison. Entities win over IDs when both are set.
type Request struct {
	Entities      []catalog.Entity
	IDs           []string
	View          comparison.View
	TierSet       string
	Tiers         []string
	Authenticated bool
	// MaxPrice adds a monthly price ceiling that warns, never denies.
	MaxPrice *float64
	DiffOnly bool
}

// Result is a built comparison.
type Result struct {
	Matrix       *comparison.Matrix
	Coverage     []comparison.ColumnCoverage
	Policy       *policy.EvaluationResult
	Missing      []string
	Source       string
	FromFallback bool
}

// DeniedError is returned when the policy engine refuses a comparison.
type DeniedError struct {
	Result *policy.EvaluationResult
}

func (e *DeniedError) Error() string {
	if len(e.Result.Violations) > 0 {
		return "comparison denied by policy: " + e.Result.Violations[0].Message
	}
	return "comparison denied by policy"
}

// Service builds comparisons.
type Service struct {
	source  source.Source
	limits  selection.Limits
	builder *comparison.Builder
	engine  *policy.Engine
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewService creates a service. src may be nil when every request carries
// its own entities.
func NewService(src source.Source, limits selection.Limits, metrics *observability.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limits == (selection.Limits{}) {
		limits = selection.DefaultLimits()
	}
	return &Service{
		source:  src,
		limits:  limits,
		builder: comparison.NewBuilder(),
		engine:  policy.NewEngine(),
		metrics: metrics,
		logger:  logger,
	}
}

// Policies exposes the engine so callers can add their own rules.
func (s *Service) Policies() *policy.Engine {
	return s.engine
}

// Limits returns the selection caps the service enforces.
func (s *Service) Limits() selection.Limits {
	return s.limits
}

// Run resolves entities, evaluates policies and builds the matrix. A policy
// deny returns a *DeniedError and no matrix.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()
	res := &Result{}

	entities, err := s.entities(ctx, req, res)
	if err != nil {
		return nil, err
	}

	var tiers []string
	if req.View == comparison.ViewPricing {
		if tiers, _, err = comparison.ResolveTiers(entities, comparison.Options{TierSet: req.TierSet, Tiers: req.Tiers}); err != nil {
			return nil, err
		}
	}

	evalReq := policy.EvaluationRequest{
		Entities:      entities,
		View:          req.View,
		Tiers:         tiers,
		MaxSelectable: s.limits.PolicyFor(req.Authenticated).MaxSelectable,
	}
	if req.MaxPrice != nil {
		evalReq.CustomPolicies = append(evalReq.CustomPolicies, policy.PriceCeiling(*req.MaxPrice, policy.SeverityWarning))
	}
	decision, err := s.engine.Evaluate(ctx, evalReq)
	if err != nil {
		return nil, err
	}
	if decision.Denied() {
		s.logger.Info("Comparison denied",
			zap.Int("entities", len(entities)),
			zap.Int("violations", len(decision.Violations)))
		return nil, &DeniedError{Result: decision}
	}
	res.Policy = decision

	matrix, err := s.builder.Build(entities, req.View, comparison.Options{TierSet: req.TierSet, Tiers: req.Tiers})
	if err != nil {
		return nil, err
	}
	res.Coverage = matrix.Coverage()
	if req.DiffOnly {
		matrix = matrix.DifferencesOnly()
	}
	res.Matrix = matrix

	s.metrics.ObserveBuild(string(req.View), started)
	s.logger.Debug("Comparison built",
		zap.String("view", string(req.View)),
		zap.Int("entities", len(entities)),
		zap.Int("rows", len(matrix.Rows)),
		zap.String("decision", string(decision.Decision)))
	return res, nil
}

func (s *Service) entities(ctx context.Context, req Request, res *Result) ([]catalog.Entity, error) {
	if len(req.Entities) > 0 {
		res.Source = SourceRequest
		return req.Entities, nil
	}
	if len(req.IDs) == 0 {
		return []catalog.Entity{}, nil
	}
	if s.source == nil {
		return nil, errors.New("no entity source configured")
	}

	fetched := s.source.Fetch(ctx, source.Query{IDs: req.IDs})
	if !fetched.OK() {
		return nil, fetched.Err
	}
	res.Source = fetched.Source
	res.Missing = fetched.Missing
	res.FromFallback = fetched.FromFallback
	return fetched.Entities, nil
}
