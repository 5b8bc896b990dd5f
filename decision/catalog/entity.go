// Package catalog defines comparable products (SaaS tools and cloud services)
// and parses catalog documents describing them.
package catalog

import (
	"sort"

	cmperrors "saas-compare/pkg/errors"
	"saas-compare/pkg/units"
)

// Kind classifies an entity.
type Kind string

const (
	KindTool  Kind = "tool"
	KindCloud Kind = "cloud"
)

// CloudProvider represents a cloud provider
type CloudProvider string

const (
	AWS   CloudProvider = "aws"
	Azure CloudProvider = "azure"
	GCP   CloudProvider = "gcp"
)

// Entity is a product under comparison.
type Entity struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	Category    string        `json:"category,omitempty" yaml:"category,omitempty"`
	Kind        Kind          `json:"kind,omitempty" yaml:"kind,omitempty"`
	Provider    CloudProvider `json:"provider,omitempty" yaml:"provider,omitempty"`
	LogoRef     string        `json:"logoRef,omitempty" yaml:"logoRef,omitempty"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Currency    string        `json:"currency,omitempty" yaml:"currency,omitempty"`

	// AttributeGroups maps a tier key to the attributes offered at that tier.
	// A nil value means the tier exists as a key but is not offered.
	AttributeGroups map[string]*AttributeSet `json:"attributeGroups" yaml:"attributeGroups"`

	// Tags are flat capabilities (integrations) not organised by tier.
	Tags []string `json:"tags" yaml:"tags"`
}

// AttributeSet holds the attributes available at one tier.
type AttributeSet struct {
	Price         Price               `json:"price" yaml:"price"`
	BillingPeriod units.BillingPeriod `json:"billingPeriod,omitempty" yaml:"billingPeriod,omitempty"`
	Features      []string            `json:"features" yaml:"features"`
	Limitations   []string            `json:"limitations" yaml:"limitations"`
}

// Validate fails on structurally invalid entities. A missing or null tier and
// a missing tag list are valid absence states; only a missing id, or an entity
// with neither attributeGroups nor tags, is rejected.
func (e *Entity) Validate() error {
	if e.ID == "" {
		return cmperrors.NewInvalidEntityError("id", "", "missing id")
	}
	if e.AttributeGroups == nil && e.Tags == nil {
		return cmperrors.NewInvalidEntityError("attributeGroups", e.ID, "attributeGroups and tags are both missing")
	}
	return nil
}

// Tier returns the attribute set for key, or nil when the tier is absent or
// not offered.
func (e *Entity) Tier(key string) *AttributeSet {
	if e.AttributeGroups == nil {
		return nil
	}
	return e.AttributeGroups[key]
}

// TierKeys returns the entity's tier keys in a stable order: keys from the
// canonical tier order first, then any others lexicographically. Nil tiers
// are included.
func (e *Entity) TierKeys() []string {
	keys := make([]string, 0, len(e.AttributeGroups))
	for k := range e.AttributeGroups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, iKnown := canonicalRank[keys[i]]
		rj, jKnown := canonicalRank[keys[j]]
		switch {
		case iKnown && jKnown:
			return ri < rj
		case iKnown != jKnown:
			return iKnown
		default:
			return keys[i] < keys[j]
		}
	})
	return keys
}

// CurrencyCode returns the entity's currency, defaulting to USD.
func (e *Entity) CurrencyCode() string {
	if e.Currency == "" {
		return units.DefaultCurrency
	}
	return e.Currency
}
