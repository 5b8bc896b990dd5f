package comparison

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saas-compare/decision/catalog"
	cmperrors "saas-compare/pkg/errors"
)

var fixedClock = func() time.Time { return time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC) }

func tier(price catalog.Price, features ...string) *catalog.AttributeSet {
	return &catalog.AttributeSet{Price: price, Features: features}
}

func toolX() catalog.Entity {
	return catalog.Entity{
		ID:   "toolx",
		Name: "ToolX",
		AttributeGroups: map[string]*catalog.AttributeSet{
			"free":    nil,
			"starter": tier(catalog.PriceFromInt(25), "A", "B"),
			"pro":     tier(catalog.PriceFromInt(75), "A", "B", "C"),
		},
	}
}

func toolY() catalog.Entity {
	return catalog.Entity{
		ID:   "tooly",
		Name: "ToolY",
		AttributeGroups: map[string]*catalog.AttributeSet{
			"free":    tier(catalog.PriceFromInt(0), "A"),
			"starter": tier(catalog.PriceFromInt(45), "A", "D"),
		},
	}
}

func build(t *testing.T, entities []catalog.Entity, view View, opts Options) *Matrix {
	t.Helper()
	m, err := (&Builder{Now: fixedClock}).Build(entities, view, opts)
	require.NoError(t, err)
	return m
}

func rowByAttribute(t *testing.T, m *Matrix, attr string) Row {
	t.Helper()
	for _, r := range m.Rows {
		if r.Attribute == attr {
			return r
		}
	}
	t.Fatalf("row %q not found", attr)
	return Row{}
}

func presentFlags(row Row) []bool {
	flags := make([]bool, len(row.Cells))
	for i, c := range row.Cells {
		flags[i] = c.Present
	}
	return flags
}

func cellValues(row Row) []string {
	values := make([]string, len(row.Cells))
	for i, c := range row.Cells {
		values[i] = c.Value
	}
	return values
}

func TestFeatureUniverseAndPresence(t *testing.T) {
	m := build(t, []catalog.Entity{toolX(), toolY()}, ViewFeatures, Options{})

	assert.Equal(t, []string{"A", "B", "C", "D"}, m.AttributeUniverse)
	require.Len(t, m.Rows, 4)
	assert.Equal(t, []bool{true, true}, presentFlags(rowByAttribute(t, m, "A")))
	assert.Equal(t, []bool{true, false}, presentFlags(rowByAttribute(t, m, "B")))
	assert.Equal(t, []bool{true, false}, presentFlags(rowByAttribute(t, m, "C")))
	assert.Equal(t, []bool{false, true}, presentFlags(rowByAttribute(t, m, "D")))
	assert.Equal(t, StateAbsent, rowByAttribute(t, m, "D").Cells[0].State)
	assert.Equal(t, fixedClock(), m.GeneratedAt)
}

func TestPricingFreeTier(t *testing.T) {
	m := build(t, []catalog.Entity{toolX(), toolY()}, ViewPricing, Options{})

	assert.Equal(t, "saas", m.TierSet)
	assert.Equal(t, []string{"free", "starter", "pro", "enterprise"}, m.AttributeUniverse)

	free := rowByAttribute(t, m, "free")
	assert.Equal(t, []string{"Not available", "$0"}, cellValues(free))
	assert.Equal(t, StateNotAvailable, free.Cells[0].State)
	assert.Equal(t, StatePrice, free.Cells[1].State)
	require.NotNil(t, free.Cells[1].Amount)
	assert.True(t, free.Cells[1].Amount.IsZero())

	assert.Equal(t, []string{"$25", "$45"}, cellValues(rowByAttribute(t, m, "starter")))
	assert.Equal(t, []string{"$75", "Not available"}, cellValues(rowByAttribute(t, m, "pro")))
}

func TestPricingCustomAndUnsetStayDistinct(t *testing.T) {
	custom := toolX()
	custom.AttributeGroups["enterprise"] = tier(catalog.LabelPrice("Custom"), "SSO")
	unpriced := toolY()
	unpriced.AttributeGroups["enterprise"] = tier(catalog.Price{}, "SSO")

	m := build(t, []catalog.Entity{custom, unpriced, toolY()}, ViewPricing, Options{})
	row := rowByAttribute(t, m, "enterprise")

	assert.Equal(t, []string{"Custom", "N/A", "Not available"}, cellValues(row))
	assert.Equal(t, StateCustom, row.Cells[0].State)
	assert.Nil(t, row.Cells[0].Amount)
	assert.Equal(t, StateNA, row.Cells[1].State)
	assert.Equal(t, StateNotAvailable, row.Cells[2].State)
}

func TestIntegrationsSortedLexicographically(t *testing.T) {
	entities := []catalog.Entity{
		{ID: "a", Tags: []string{"Zoom", "Slack"}},
		{ID: "b", Tags: []string{"Gmail"}},
	}
	m := build(t, entities, ViewIntegrations, Options{})

	assert.Equal(t, []string{"Gmail", "Slack", "Zoom"}, m.AttributeUniverse)
	assert.Equal(t, []bool{false, true}, presentFlags(m.Rows[0]))
	assert.Equal(t, []bool{true, false}, presentFlags(m.Rows[1]))
	assert.Equal(t, []bool{true, false}, presentFlags(m.Rows[2]))
}

func TestIntegrationSortIsCaseSensitive(t *testing.T) {
	entities := []catalog.Entity{
		{ID: "a", Tags: []string{"slack", "Zoom"}},
		{ID: "b", Tags: []string{"Slack"}},
	}
	m := build(t, entities, ViewIntegrations, Options{})
	assert.Equal(t, []string{"Slack", "Zoom", "slack"}, m.AttributeUniverse)
}

func TestEmptyInputEveryView(t *testing.T) {
	for _, view := range Views {
		t.Run(string(view), func(t *testing.T) {
			for _, entities := range [][]catalog.Entity{nil, {}} {
				m := build(t, entities, view, Options{})
				assert.NotNil(t, m.AttributeUniverse)
				assert.Empty(t, m.AttributeUniverse)
				assert.NotNil(t, m.Rows)
				assert.Empty(t, m.Rows)
				assert.Empty(t, m.Columns)
			}
		})
	}
}

func TestSingleEntityYieldsNoRows(t *testing.T) {
	for _, view := range Views {
		t.Run(string(view), func(t *testing.T) {
			m := build(t, []catalog.Entity{toolX()}, view, Options{})
			assert.Empty(t, m.Rows)
			require.Len(t, m.Columns, 1)
			assert.Equal(t, "toolx", m.Columns[0].EntityID)
		})
	}

	m := build(t, []catalog.Entity{toolX()}, ViewFeatures, Options{})
	assert.Equal(t, []string{"A", "B", "C"}, m.AttributeUniverse)
}

func TestLimitationsView(t *testing.T) {
	x := toolX()
	x.AttributeGroups["starter"].Limitations = []string{"5 users", "No API"}
	y := toolY()
	y.AttributeGroups["free"].Limitations = []string{"No API", "1 project"}

	m := build(t, []catalog.Entity{x, y}, ViewLimitations, Options{})
	assert.Equal(t, []string{"5 users", "No API", "1 project"}, m.AttributeUniverse)
	assert.Equal(t, []bool{true, true}, presentFlags(rowByAttribute(t, m, "No API")))
	assert.Equal(t, []bool{false, true}, presentFlags(rowByAttribute(t, m, "1 project")))
}

func TestCaseAndWhitespaceAreDistinct(t *testing.T) {
	entities := []catalog.Entity{
		{ID: "a", AttributeGroups: map[string]*catalog.AttributeSet{"pro": tier(catalog.Price{}, "SSO")}},
		{ID: "b", AttributeGroups: map[string]*catalog.AttributeSet{"pro": tier(catalog.Price{}, "sso", "SSO ")}},
	}
	m := build(t, entities, ViewFeatures, Options{})
	assert.Equal(t, []string{"SSO", "sso", "SSO "}, m.AttributeUniverse)
}

func TestColumnOrderFollowsInput(t *testing.T) {
	m := build(t, []catalog.Entity{toolY(), toolX()}, ViewFeatures, Options{})
	assert.Equal(t, "tooly", m.Columns[0].EntityID)
	assert.Equal(t, "toolx", m.Columns[1].EntityID)
	assert.Equal(t, []string{"A", "D", "B", "C"}, m.AttributeUniverse)
	assert.Equal(t, []bool{false, true}, presentFlags(rowByAttribute(t, m, "B")))
}

func TestExplicitTiersAndTierSet(t *testing.T) {
	m := build(t, []catalog.Entity{toolX(), toolY()}, ViewPricing, Options{Tiers: []string{"pro", "free"}})
	assert.Equal(t, []string{"pro", "free"}, m.AttributeUniverse)
	assert.Equal(t, []string{"$75", "Not available"}, cellValues(m.Rows[0]))

	m = build(t, []catalog.Entity{toolX(), toolY()}, ViewPricing, Options{TierSet: "aws"})
	assert.Equal(t, "aws", m.TierSet)
	assert.Equal(t, []string{"Not available", "Not available"}, cellValues(m.Rows[0]))

	_, err := NewBuilder().Build([]catalog.Entity{toolX(), toolY()}, ViewPricing, Options{TierSet: "nope"})
	assert.ErrorIs(t, err, cmperrors.ErrUnknownTierSet)
}

func TestCloudEntitiesUseProviderTiers(t *testing.T) {
	ec2 := catalog.Entity{ID: "ec2", Kind: catalog.KindCloud, Provider: catalog.AWS, AttributeGroups: map[string]*catalog.AttributeSet{
		"on_demand": tier(catalog.NewPrice(mustDecimal(t, "0.0104"))),
	}}
	lambda := catalog.Entity{ID: "lambda", Kind: catalog.KindCloud, Provider: catalog.AWS, AttributeGroups: map[string]*catalog.AttributeSet{
		"free_tier": tier(catalog.PriceFromInt(0)),
	}}
	m := build(t, []catalog.Entity{ec2, lambda}, ViewPricing, Options{})
	assert.Equal(t, "aws", m.TierSet)
	assert.Equal(t, []string{"$0.01", "Not available"}, cellValues(rowByAttribute(t, m, "on_demand")))
}

func TestInvalidEntityFailsFast(t *testing.T) {
	_, err := NewBuilder().Build([]catalog.Entity{toolX(), {Name: "no id", Tags: []string{}}}, ViewFeatures, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, cmperrors.ErrInvalidEntity)

	_, err = NewBuilder().Build([]catalog.Entity{toolX(), {ID: "bare"}}, ViewPricing, Options{})
	assert.ErrorIs(t, err, cmperrors.ErrInvalidEntity)
}

func TestUnknownView(t *testing.T) {
	_, err := NewBuilder().Build([]catalog.Entity{toolX(), toolY()}, View("tags"), Options{})
	assert.ErrorIs(t, err, cmperrors.ErrUnknownView)
}

func TestBuildIsDeterministic(t *testing.T) {
	entities := randomEntities(rand.New(rand.NewSource(7)), 6)
	b := &Builder{Now: fixedClock}
	for _, view := range Views {
		first, err := b.Build(entities, view, Options{})
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			again, err := b.Build(entities, view, Options{})
			require.NoError(t, err)
			if diff := cmp.Diff(first, again); diff != "" {
				t.Fatalf("%s view changed between builds (-first +again):\n%s", view, diff)
			}
		}
	}
}

func TestBuildDoesNotMutateInput(t *testing.T) {
	entities := randomEntities(rand.New(rand.NewSource(11)), 4)
	before := randomEntities(rand.New(rand.NewSource(11)), 4)
	for _, view := range Views {
		_, err := NewBuilder().Build(entities, view, Options{})
		require.NoError(t, err)
	}
	if diff := cmp.Diff(before, entities); diff != "" {
		t.Fatalf("entities mutated (-before +after):\n%s", diff)
	}
}

func TestUnionCompletenessAndNoFalseResults(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		entities := randomEntities(rng, 2+rng.Intn(4))
		m := build(t, entities, ViewFeatures, Options{})

		offered := make([]map[string]bool, len(entities))
		all := map[string]bool{}
		for i, e := range entities {
			offered[i] = map[string]bool{}
			for _, ts := range e.AttributeGroups {
				if ts == nil {
					continue
				}
				for _, f := range ts.Features {
					offered[i][f] = true
					all[f] = true
				}
			}
		}

		counts := map[string]int{}
		for _, name := range m.AttributeUniverse {
			counts[name]++
		}
		for name := range all {
			assert.Equal(t, 1, counts[name], "feature %q must appear exactly once", name)
		}
		assert.Len(t, m.AttributeUniverse, len(all))

		for _, row := range m.Rows {
			for c, cell := range row.Cells {
				assert.Equal(t, offered[c][row.Attribute], cell.Present,
					"trial %d entity %s feature %s", trial, entities[c].ID, row.Attribute)
				assert.Equal(t, offered[c][row.Attribute], Has(&entities[c], row.Attribute, ModeFeatures))
			}
		}
	}
}

func TestConcurrentBuilds(t *testing.T) {
	entities := randomEntities(rand.New(rand.NewSource(3)), 5)
	b := &Builder{Now: fixedClock}
	want, err := b.Build(entities, ViewFeatures, Options{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*Matrix, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := b.Build(entities, ViewFeatures, Options{})
			if err == nil {
				results[i] = m
			}
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		require.NotNil(t, got)
		assert.Empty(t, cmp.Diff(want, got))
	}
}

func TestHasTags(t *testing.T) {
	e := catalog.Entity{ID: "a", Tags: []string{"Slack"}}
	assert.True(t, Has(&e, "Slack", ModeTags))
	assert.False(t, Has(&e, "slack", ModeTags))
	assert.False(t, Has(&e, "Slack", ModeFeatures))
}

func TestParseView(t *testing.T) {
	v, err := ParseView("Tags")
	require.NoError(t, err)
	assert.Equal(t, ViewIntegrations, v)

	v, err = ParseView(" pricing ")
	require.NoError(t, err)
	assert.Equal(t, ViewPricing, v)

	_, err = ParseView("matrix")
	assert.ErrorIs(t, err, cmperrors.ErrUnknownView)
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

var tierKeys = []string{"free", "starter", "pro", "enterprise", "legacy"}

func randomEntities(rng *rand.Rand, n int) []catalog.Entity {
	entities := make([]catalog.Entity, n)
	for i := range entities {
		groups := make(map[string]*catalog.AttributeSet)
		for _, k := range tierKeys {
			switch rng.Intn(4) {
			case 0:
				continue
			case 1:
				groups[k] = nil
			default:
				var features []string
				for f := 0; f < rng.Intn(5); f++ {
					features = append(features, fmt.Sprintf("F%d", rng.Intn(12)))
				}
				price := catalog.PriceFromInt(int64(rng.Intn(200)))
				if rng.Intn(5) == 0 {
					price = catalog.LabelPrice("Custom")
				}
				groups[k] = &catalog.AttributeSet{Price: price, Features: features}
			}
		}
		var tags []string
		for t := 0; t < rng.Intn(4); t++ {
			tags = append(tags, fmt.Sprintf("T%d", rng.Intn(8)))
		}
		entities[i] = catalog.Entity{
			ID:              fmt.Sprintf("e%d", i),
			Name:            fmt.Sprintf("Entity %d", i),
			AttributeGroups: groups,
			Tags:            tags,
		}
	}
	return entities
}
