package comparison

import (
	"saas-compare/decision/catalog"
)

// Universe returns the distinct attribute names for mode across entities, in
// first-seen order. Entities are walked in input order; within one entity,
// tiers follow catalog.Entity.TierKeys. Nil tiers are skipped. Names are
// compared by exact string equality, so "SSO" and "sso " are different
// attributes.
func Universe(entities []catalog.Entity, mode Mode) []string {
	names := make([]string, 0)
	seen := make(map[string]struct{})
	add := func(name string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	for i := range entities {
		e := &entities[i]
		if mode == ModeTags {
			for _, tag := range e.Tags {
				add(tag)
			}
			continue
		}
		for _, key := range e.TierKeys() {
			tier := e.AttributeGroups[key]
			if tier == nil {
				continue
			}
			for _, name := range tierNames(tier, mode) {
				add(name)
			}
		}
	}
	return names
}

func tierNames(tier *catalog.AttributeSet, mode Mode) []string {
	if mode == ModeLimitations {
		return tier.Limitations
	}
	return tier.Features
}

// presence is the set of names an entity has for one mode, across all tiers.
type presence map[string]struct{}

func presenceOf(e *catalog.Entity, mode Mode) presence {
	set := make(presence)
	if mode == ModeTags {
		for _, tag := range e.Tags {
			set[tag] = struct{}{}
		}
		return set
	}
	for _, tier := range e.AttributeGroups {
		if tier == nil {
			continue
		}
		for _, name := range tierNames(tier, mode) {
			set[name] = struct{}{}
		}
	}
	return set
}

func (p presence) has(name string) bool {
	_, ok := p[name]
	return ok
}
