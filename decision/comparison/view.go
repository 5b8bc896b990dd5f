// Package comparison builds side-by-side comparison matrices over catalog
// entities. Everything here is a pure function of its inputs: no I/O, no
// shared mutable state, inputs are never modified.
package comparison

import (
	"strings"

	cmperrors "saas-compare/pkg/errors"
)

// Mode selects which attribute names are compared.
type Mode string

const (
	ModeFeatures    Mode = "features"
	ModeLimitations Mode = "limitations"
	ModeTags        Mode = "tags"
)

// View is a rendered comparison.
type View string

const (
	ViewFeatures     View = "features"
	ViewLimitations  View = "limitations"
	ViewIntegrations View = "integrations"
	ViewPricing      View = "pricing"
)

// Views lists every supported view.
var Views = []View{ViewFeatures, ViewLimitations, ViewIntegrations, ViewPricing}

// ParseView accepts a view name case-insensitively; "tags" is an alias for
// the integrations view.
func ParseView(s string) (View, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "features", "feature":
		return ViewFeatures, nil
	case "limitations", "limitation":
		return ViewLimitations, nil
	case "integrations", "integration", "tags":
		return ViewIntegrations, nil
	case "pricing", "price", "prices":
		return ViewPricing, nil
	default:
		return "", cmperrors.NewUnknownViewError(s)
	}
}

// Mode returns the attribute mode backing a boolean view. The pricing view
// has no mode and returns "".
func (v View) Mode() Mode {
	switch v {
	case ViewFeatures:
		return ModeFeatures
	case ViewLimitations:
		return ModeLimitations
	case ViewIntegrations:
		return ModeTags
	default:
		return ""
	}
}

// IsBoolean reports whether the view's cells are presence flags.
func (v View) IsBoolean() bool {
	return v != ViewPricing
}
