package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	cmperrors "saas-compare/pkg/errors"
	"saas-compare/pkg/units"
)

const toolsJSON = `{
  "currency": "USD",
  "entities": [
    {
      "id": "toolx",
      "name": "ToolX",
      "category": "crm",
      "attributeGroups": {
        "free": null,
        "starter": {"price": 25, "features": ["A", "B"]},
        "pro": {"price": 75, "features": ["A", "B", "C"]},
        "enterprise": {"price": "Custom", "features": ["A", "B", "C", "SSO"]}
      },
      "tags": ["Slack", "Zoom"]
    },
    {
      "id": "tooly",
      "name": "ToolY",
      "attributeGroups": {
        "free": {"price": 0, "features": ["A"]},
        "starter": {"price": 45, "billingPeriod": "annual", "features": ["A", "D"]},
        "pro": {"features": ["A", "D"]}
      }
    }
  ]
}`

func TestParseJSONPreservesPriceStates(t *testing.T) {
	cat, err := NewParser().ParseBytes([]byte(toolsJSON), FormatJSON)
	require.NoError(t, err)
	require.Len(t, cat.Entities, 2)

	x := cat.Entities[0]
	assert.Nil(t, x.Tier("free"))
	assert.Equal(t, PriceAmount, x.Tier("starter").Price.Kind)
	assert.Equal(t, "25", x.Tier("starter").Price.Amount.String())
	assert.Equal(t, PriceLabel, x.Tier("enterprise").Price.Kind)
	assert.Equal(t, "Custom", x.Tier("enterprise").Price.Label)
	assert.Equal(t, "USD", x.Currency)

	y := cat.Entities[1]
	assert.Equal(t, PriceAmount, y.Tier("free").Price.Kind)
	assert.True(t, y.Tier("free").Price.Amount.IsZero())
	assert.Equal(t, PriceUnset, y.Tier("pro").Price.Kind)
	assert.Equal(t, units.PeriodAnnual, y.Tier("starter").BillingPeriod)
	assert.Nil(t, y.Tier("enterprise"))
	assert.Nil(t, y.Tags)
}

func TestParseBareArray(t *testing.T) {
	cat, err := NewParser().ParseBytes([]byte(`[{"id":"a","tags":["Gmail"]}]`), FormatJSON)
	require.NoError(t, err)
	require.Len(t, cat.Entities, 1)
	assert.Equal(t, []string{"Gmail"}, cat.Entities[0].Tags)
}

func TestParseEmptyDocument(t *testing.T) {
	cat, err := NewParser().ParseBytes([]byte("  "), FormatJSON)
	require.NoError(t, err)
	assert.Empty(t, cat.Entities)
	assert.NotNil(t, cat.Entities)
}

func TestParseYAML(t *testing.T) {
	doc := `
entities:
  - id: ec2
    name: Amazon EC2
    kind: cloud
    provider: aws
    attributeGroups:
      free_tier:
        price: 0
        features: ["750 hours t2.micro"]
      on_demand:
        price: 0.0104
        billingPeriod: hourly
        features: ["Per-second billing"]
      reserved:
        price: "Contact sales"
      spot: null
`
	cat, err := NewParser().ParseBytes([]byte(doc), FormatYAML)
	require.NoError(t, err)
	require.Len(t, cat.Entities, 1)

	e := cat.Entities[0]
	assert.Equal(t, KindCloud, e.Kind)
	assert.Equal(t, AWS, e.Provider)
	assert.Equal(t, "0.0104", e.Tier("on_demand").Price.Amount.String())
	assert.Equal(t, LabelPrice("Contact sales"), e.Tier("reserved").Price)
	assert.Nil(t, e.Tier("spot"))
	_, hasSpot := e.AttributeGroups["spot"]
	assert.True(t, hasSpot)
}

func TestParseYAMLQuotedNumberStaysLabel(t *testing.T) {
	cat, err := NewParser().ParseBytes([]byte(`- {id: a, attributeGroups: {pro: {price: "49"}}}`), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, LabelPrice("49"), cat.Entities[0].Tier("pro").Price)
}

func TestParseRejectsInvalidEntities(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing id", `[{"name":"nameless","tags":[]}]`},
		{"no groups and no tags", `[{"id":"bare"}]`},
		{"duplicate id", `[{"id":"a","tags":[]},{"id":"a","tags":[]}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser().ParseBytes([]byte(tt.doc), FormatJSON)
			require.Error(t, err)
			assert.ErrorIs(t, err, cmperrors.ErrInvalidEntity)
		})
	}
}

func TestParseAllowDuplicatesKeepsLast(t *testing.T) {
	p := &Parser{AllowDuplicates: true}
	cat, err := p.ParseBytes([]byte(`[{"id":"a","name":"old","tags":[]},{"id":"b","tags":[]},{"id":"a","name":"new","tags":[]}]`), FormatJSON)
	require.NoError(t, err)
	require.Len(t, cat.Entities, 2)
	assert.Equal(t, "new", cat.Entities[0].Name)
	assert.Equal(t, "b", cat.Entities[1].ID)
}

func TestParseDefaultCurrency(t *testing.T) {
	p := &Parser{DefaultCurrency: "EUR"}
	cat, err := p.ParseBytes([]byte(`[{"id":"a","tags":[]},{"id":"b","currency":"GBP","tags":[]}]`), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "EUR", cat.Entities[0].Currency)
	assert.Equal(t, "GBP", cat.Entities[1].Currency)

	cat, err = p.ParseBytes([]byte(`{"currency":"USD","entities":[{"id":"a","tags":[]}]}`), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "USD", cat.Entities[0].Currency)
}

func TestValidateAcceptsEmptyButPresentCollections(t *testing.T) {
	e := Entity{ID: "x", AttributeGroups: map[string]*AttributeSet{}}
	assert.NoError(t, e.Validate())

	e = Entity{ID: "y", Tags: []string{}}
	assert.NoError(t, e.Validate())
}

func TestPriceJSONRoundTrip(t *testing.T) {
	for _, p := range []Price{{}, PriceFromInt(0), LabelPrice("Custom")} {
		data, err := json.Marshal(p)
		require.NoError(t, err)

		var back Price
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, p.Kind, back.Kind)
		assert.Equal(t, p.String(), back.String())
	}
}

func TestPriceYAMLRoundTrip(t *testing.T) {
	type wrapper struct {
		Price Price `yaml:"price"`
	}
	for _, p := range []Price{PriceFromInt(25), LabelPrice("25"), LabelPrice("Custom")} {
		data, err := yaml.Marshal(wrapper{Price: p})
		require.NoError(t, err)

		var back wrapper
		require.NoError(t, yaml.Unmarshal(data, &back))
		assert.Equal(t, p.Kind, back.Price.Kind, string(data))
		assert.Equal(t, p.String(), back.Price.String())
	}
}

func TestPriceRejectsGarbage(t *testing.T) {
	var p Price
	assert.Error(t, json.Unmarshal([]byte(`true`), &p))
}

func TestPriceRejectsEmptyLabel(t *testing.T) {
	for _, doc := range []string{`""`, `"   "`} {
		var p Price
		assert.ErrorIs(t, json.Unmarshal([]byte(doc), &p), errEmptyLabel, doc)
	}

	var holder struct {
		Price Price `yaml:"price"`
	}
	err := yaml.Unmarshal([]byte(`price: ""`), &holder)
	assert.ErrorIs(t, err, errEmptyLabel)

	_, err = NewParser().ParseBytes([]byte(`[{"id": "a", "attributeGroups": {"pro": {"price": ""}}}]`), FormatJSON)
	assert.Error(t, err)

	// null stays the way to write an unpriced tier.
	cat, err := NewParser().ParseBytes([]byte(`[{"id": "a", "attributeGroups": {"pro": {"price": null}}}]`), FormatJSON)
	require.NoError(t, err)
	assert.False(t, cat.Entities[0].Tier("pro").Price.IsSet())
}

func TestTierKeysOrder(t *testing.T) {
	e := Entity{ID: "x", AttributeGroups: map[string]*AttributeSet{
		"zeta":       nil,
		"enterprise": {},
		"free":       nil,
		"alpha":      {},
		"pro":        {},
	}}
	assert.Equal(t, []string{"free", "pro", "enterprise", "alpha", "zeta"}, e.TierKeys())
}

func TestTierSetFor(t *testing.T) {
	tools := []Entity{{ID: "a", Kind: KindTool}}
	assert.Equal(t, SaaSTiers.Tiers, TierSetFor(tools).Tiers)
	assert.Equal(t, SaaSTiers.Tiers, TierSetFor(nil).Tiers)

	aws := []Entity{{ID: "ec2", Kind: KindCloud, Provider: AWS}}
	assert.Equal(t, "aws", TierSetFor(aws).Name)

	mixed := []Entity{
		{ID: "ec2", Kind: KindCloud, Provider: AWS},
		{ID: "gce", Kind: KindCloud, Provider: GCP},
	}
	set := TierSetFor(mixed)
	assert.Equal(t, "mixed", set.Name)
	assert.Equal(t, []string{"free_tier", "on_demand", "savings_plan", "reserved", "committed_use", "spot"}, set.Tiers)
}

func TestLookupTierSet(t *testing.T) {
	set, err := LookupTierSet("saas")
	require.NoError(t, err)
	set.Tiers[0] = "mutated"
	assert.Equal(t, "free", SaaSTiers.Tiers[0])

	_, err = LookupTierSet("nope")
	assert.ErrorIs(t, err, cmperrors.ErrUnknownTierSet)

	assert.Equal(t, []string{"aws", "azure", "gcp", "saas"}, TierSetNames())
}
