// Package policy provides the comparison policy engine.
// Evaluates selection and pricing rules before a matrix is built.
package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"saas-compare/decision/catalog"
	"saas-compare/decision/comparison"
	"saas-compare/pkg/units"
)

// PolicyType defines the type of policy
type PolicyType string

const (
	PolicyTypeMinEntities  PolicyType = "min_entities"
	PolicyTypeMaxEntities  PolicyType = "max_entities"
	PolicyTypePriceCeiling PolicyType = "price_ceiling"
	PolicyTypeMissingTier  PolicyType = "missing_tier"
)

// Severity defines policy violation severity
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Decision is the policy evaluation outcome
type Decision string

const (
	DecisionPass Decision = "pass"
	DecisionWarn Decision = "warn"
	DecisionDeny Decision = "deny"
)

// Policy defines a comparison rule
type Policy struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Type        PolicyType `json:"type"`
	Severity    Severity   `json:"severity"`
	Threshold   float64    `json:"threshold"`
	Enabled     bool       `json:"enabled"`
}

// Violation represents a policy violation
type Violation struct {
	PolicyID   string `json:"policy_id"`
	PolicyName string `json:"policy_name"`
	EntityID   string `json:"entity_id,omitempty"`
	Message    string `json:"message"`
	Severity   string `json:"severity"`
}

// Warning represents a policy warning. Info warnings do not change the
// decision.
type Warning struct {
	PolicyID string   `json:"policy_id"`
	EntityID string   `json:"entity_id,omitempty"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// EvaluationRequest contains the input for policy evaluation
type EvaluationRequest struct {
	Entities []catalog.Entity
	View     comparison.View
	// Tiers are the pricing rows; empty means every tier an entity has.
	Tiers []string
	// MaxSelectable backs max_entities policies without their own threshold.
	MaxSelectable  int
	CustomPolicies []Policy
}

// EvaluationResult contains the policy evaluation outcome
type EvaluationResult struct {
	Decision    Decision    `json:"decision"`
	Violations  []Violation `json:"violations"`
	Warnings    []Warning   `json:"warnings"`
	PoliciesRan int         `json:"policies_ran"`
	EvaluatedAt time.Time   `json:"evaluated_at"`
}

// Denied reports whether the comparison should be refused.
func (r *EvaluationResult) Denied() bool {
	return r.Decision == DecisionDeny
}

// Engine evaluates policies against comparison requests
type Engine struct {
	policies []Policy
	now      func() time.Time
}

// NewEngine creates a new policy engine
func NewEngine() *Engine {
	return &Engine{
		policies: defaultPolicies(),
		now:      time.Now,
	}
}

// AddPolicy adds a custom policy
func (e *Engine) AddPolicy(p Policy) {
	e.policies = append(e.policies, p)
}

// Policies returns the configured policies.
func (e *Engine) Policies() []Policy {
	return append([]Policy(nil), e.policies...)
}

// PriceCeiling builds a per-request monthly price ceiling policy.
func PriceCeiling(maxMonthly float64, severity Severity) Policy {
	return Policy{
		ID:          "request-price-ceiling",
		Name:        "Price Ceiling",
		Description: fmt.Sprintf("Flag tiers above %.2f per month", maxMonthly),
		Type:        PolicyTypePriceCeiling,
		Severity:    severity,
		Threshold:   maxMonthly,
		Enabled:     true,
	}
}

// Evaluate runs all policies against the request
func (e *Engine) Evaluate(ctx context.Context, req EvaluationRequest) (*EvaluationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := &EvaluationResult{
		Decision:    DecisionPass,
		Violations:  make([]Violation, 0),
		Warnings:    make([]Warning, 0),
		EvaluatedAt: e.now(),
	}

	// Combine built-in and custom policies
	allPolicies := make([]Policy, 0, len(e.policies)+len(req.CustomPolicies))
	allPolicies = append(allPolicies, e.policies...)
	allPolicies = append(allPolicies, req.CustomPolicies...)

	for _, policy := range allPolicies {
		if !policy.Enabled {
			continue
		}

		result.PoliciesRan++
		violations, warnings := e.evaluatePolicy(policy, req)

		for _, v := range violations {
			result.Violations = append(result.Violations, v)
			if policy.Severity == SeverityError {
				result.Decision = DecisionDeny
			} else if result.Decision != DecisionDeny {
				result.Decision = DecisionWarn
			}
		}

		for _, w := range warnings {
			result.Warnings = append(result.Warnings, w)
			if w.Severity != SeverityInfo && result.Decision == DecisionPass {
				result.Decision = DecisionWarn
			}
		}
	}

	return result, nil
}

func (e *Engine) evaluatePolicy(p Policy, req EvaluationRequest) ([]Violation, []Warning) {
	switch p.Type {
	case PolicyTypeMinEntities:
		minimum := int(p.Threshold)
		if minimum <= 0 {
			minimum = comparison.MinComparable
		}
		if len(req.Entities) < minimum {
			return nil, []Warning{{
				PolicyID: p.ID,
				Message:  fmt.Sprintf("%d entities selected; at least %d are needed for a comparison", len(req.Entities), minimum),
				Severity: SeverityWarning,
			}}
		}

	case PolicyTypeMaxEntities:
		limit := int(p.Threshold)
		if limit <= 0 {
			limit = req.MaxSelectable
		}
		if limit > 0 && len(req.Entities) > limit {
			return []Violation{{
				PolicyID:   p.ID,
				PolicyName: p.Name,
				Message:    fmt.Sprintf("%d entities selected, limit is %d", len(req.Entities), limit),
				Severity:   string(p.Severity),
			}}, nil
		}

	case PolicyTypePriceCeiling:
		return e.priceCeiling(p, req)

	case PolicyTypeMissingTier:
		if req.View != comparison.ViewPricing || len(req.Tiers) == 0 {
			return nil, nil
		}
		var warnings []Warning
		for i := range req.Entities {
			ent := &req.Entities[i]
			for _, t := range req.Tiers {
				if ent.Tier(t) == nil {
					warnings = append(warnings, Warning{
						PolicyID: p.ID,
						EntityID: ent.ID,
						Message:  fmt.Sprintf("%s does not offer the %s tier", displayName(ent), t),
						Severity: p.Severity,
					})
				}
			}
		}
		return nil, warnings
	}

	return nil, nil
}

func (e *Engine) priceCeiling(p Policy, req EvaluationRequest) ([]Violation, []Warning) {
	if p.Threshold <= 0 {
		return nil, nil
	}
	ceiling := decimal.NewFromFloat(p.Threshold)

	var (
		violations []Violation
		warnings   []Warning
	)
	for i := range req.Entities {
		ent := &req.Entities[i]
		tiers := req.Tiers
		if len(tiers) == 0 {
			tiers = ent.TierKeys()
		}
		for _, key := range tiers {
			tier := ent.Tier(key)
			if tier == nil {
				continue
			}
			switch tier.Price.Kind {
			case catalog.PriceLabel:
				warnings = append(warnings, Warning{
					PolicyID: p.ID,
					EntityID: ent.ID,
					Message:  fmt.Sprintf("%s %s pricing is %q and cannot be checked against the ceiling", displayName(ent), key, tier.Price.Label),
					Severity: SeverityInfo,
				})
			case catalog.PriceAmount:
				monthly := units.ToMonthly(tier.Price.Amount, tier.BillingPeriod)
				if monthly.GreaterThan(ceiling) {
					msg := fmt.Sprintf("%s %s costs %s per month, above the ceiling of %s",
						displayName(ent), key,
						units.FormatMoney(monthly, ent.CurrencyCode()),
						units.FormatMoney(ceiling, ent.CurrencyCode()))
					if p.Severity == SeverityError {
						violations = append(violations, Violation{
							PolicyID:   p.ID,
							PolicyName: p.Name,
							EntityID:   ent.ID,
							Message:    msg,
							Severity:   string(p.Severity),
						})
					} else {
						warnings = append(warnings, Warning{PolicyID: p.ID, EntityID: ent.ID, Message: msg, Severity: SeverityWarning})
					}
				}
			}
		}
	}
	return violations, warnings
}

func displayName(e *catalog.Entity) string {
	if e.Name != "" {
		return e.Name
	}
	return e.ID
}

func defaultPolicies() []Policy {
	return []Policy{
		{
			ID:          "default-min-entities",
			Name:        "Minimum Entities",
			Description: "Warn when fewer than two entities are compared",
			Type:        PolicyTypeMinEntities,
			Severity:    SeverityWarning,
			Threshold:   comparison.MinComparable,
			Enabled:     true,
		},
		{
			ID:          "default-max-entities",
			Name:        "Selection Limit",
			Description: "Block comparisons above the caller's selection cap",
			Type:        PolicyTypeMaxEntities,
			Severity:    SeverityError,
			Threshold:   0,
			Enabled:     true,
		},
		{
			ID:          "default-missing-tier",
			Name:        "Missing Tier",
			Description: "Note entities that lack a compared pricing tier",
			Type:        PolicyTypeMissingTier,
			Severity:    SeverityInfo,
			Threshold:   0,
			Enabled:     true,
		},
	}
}
