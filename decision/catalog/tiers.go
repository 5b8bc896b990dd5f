package catalog

import (
	"sort"

	cmperrors "saas-compare/pkg/errors"
)

// TierSet is an externally defined, ordered list of tier keys used as the row
// axis of a pricing comparison.
type TierSet struct {
	Name  string   `json:"name"`
	Tiers []string `json:"tiers"`
}

// Built-in tier sets.
var (
	SaaSTiers  = TierSet{Name: "saas", Tiers: []string{"free", "starter", "pro", "enterprise"}}
	AWSTiers   = TierSet{Name: "aws", Tiers: []string{"free_tier", "on_demand", "savings_plan", "reserved"}}
	AzureTiers = TierSet{Name: "azure", Tiers: []string{"free", "pay_as_you_go", "reserved", "spot"}}
	GCPTiers   = TierSet{Name: "gcp", Tiers: []string{"free_tier", "on_demand", "committed_use", "spot"}}
)

var tierSets = map[string]TierSet{
	SaaSTiers.Name:  SaaSTiers,
	AWSTiers.Name:   AWSTiers,
	AzureTiers.Name: AzureTiers,
	GCPTiers.Name:   GCPTiers,
}

// canonicalRank orders known tier keys across all built-in sets.
var canonicalRank = func() map[string]int {
	rank := make(map[string]int)
	for _, set := range []TierSet{SaaSTiers, AWSTiers, AzureTiers, GCPTiers} {
		for _, k := range set.Tiers {
			if _, ok := rank[k]; !ok {
				rank[k] = len(rank)
			}
		}
	}
	return rank
}()

// LookupTierSet returns a built-in tier set by name.
func LookupTierSet(name string) (TierSet, error) {
	set, ok := tierSets[name]
	if !ok {
		return TierSet{}, cmperrors.NewUnknownTierSetError(name)
	}
	return TierSet{Name: set.Name, Tiers: append([]string(nil), set.Tiers...)}, nil
}

// TierSetNames lists the built-in tier set names, sorted.
func TierSetNames() []string {
	names := make([]string, 0, len(tierSets))
	for name := range tierSets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TierSetFor picks the default pricing rows for a set of entities: the SaaS
// tiers for tools, the provider's tiers for cloud services, and for mixed
// providers the union of their tiers in first-seen order.
func TierSetFor(entities []Entity) TierSet {
	var providers []CloudProvider
	seen := make(map[CloudProvider]bool)
	for i := range entities {
		if entities[i].Kind != KindCloud || entities[i].Provider == "" {
			continue
		}
		if !seen[entities[i].Provider] {
			seen[entities[i].Provider] = true
			providers = append(providers, entities[i].Provider)
		}
	}

	if len(providers) == 0 {
		set, _ := LookupTierSet(SaaSTiers.Name)
		return set
	}
	if len(providers) == 1 {
		if set, err := LookupTierSet(string(providers[0])); err == nil {
			return set
		}
		set, _ := LookupTierSet(SaaSTiers.Name)
		return set
	}

	union := TierSet{Name: "mixed"}
	have := make(map[string]bool)
	for _, p := range providers {
		set, err := LookupTierSet(string(p))
		if err != nil {
			continue
		}
		for _, k := range set.Tiers {
			if !have[k] {
				have[k] = true
				union.Tiers = append(union.Tiers, k)
			}
		}
	}
	return union
}
