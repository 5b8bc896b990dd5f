package comparison

import (
	"fmt"
	"sort"
	"time"

	"saas-compare/decision/catalog"
	cmperrors "saas-compare/pkg/errors"
)

// MinComparable is the smallest number of entities that yields rows. Callers
// decide whether to block smaller selections; the builder just returns an
// empty matrix.
const MinComparable = 2

// Column identifies one compared entity.
type Column struct {
	EntityID string       `json:"entity_id"`
	Name     string       `json:"name"`
	Category string       `json:"category,omitempty"`
	Kind     catalog.Kind `json:"kind,omitempty"`
	LogoRef  string       `json:"logo_ref,omitempty"`
}

// Row is one attribute (or tier, for pricing) across all columns.
type Row struct {
	Attribute string `json:"attribute"`
	Cells     []Cell `json:"cells"`
}

// Matrix is the row-per-attribute, column-per-entity comparison grid.
type Matrix struct {
	View              View      `json:"view"`
	TierSet           string    `json:"tier_set,omitempty"`
	Columns           []Column  `json:"columns"`
	AttributeUniverse []string  `json:"attribute_universe"`
	Rows              []Row     `json:"rows"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// Options tune a build.
type Options struct {
	// TierSet names the pricing rows. Ignored when Tiers is set; when both are
	// empty the tier set is chosen from the entities (catalog.TierSetFor).
	TierSet string
	// Tiers is an explicit pricing row list.
	Tiers []string
}

// Builder assembles comparison matrices. The zero value is ready to use.
type Builder struct {
	// Now stamps GeneratedAt. Defaults to time.Now in UTC.
	Now func() time.Time
}

// NewBuilder creates a builder using the wall clock.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) now() time.Time {
	if b == nil || b.Now == nil {
		return time.Now().UTC()
	}
	return b.Now()
}

// Build validates entities and assembles the matrix for view. Columns always
// follow the input order. Row order depends on the view: discovery order for
// features and limitations, lexicographic for integrations, and the fixed
// tier list for pricing. With fewer than MinComparable entities the matrix
// has no rows.
func (b *Builder) Build(entities []catalog.Entity, view View, opts Options) (*Matrix, error) {
	for i := range entities {
		if err := entities[i].Validate(); err != nil {
			return nil, fmt.Errorf("entity %d: %w", i, err)
		}
	}

	m := &Matrix{
		View:              view,
		Columns:           columnsOf(entities),
		AttributeUniverse: make([]string, 0),
		Rows:              make([]Row, 0),
	}

	switch view {
	case ViewFeatures, ViewLimitations, ViewIntegrations:
		b.buildPresence(m, entities, view.Mode())
	case ViewPricing:
		if err := b.buildPricing(m, entities, opts); err != nil {
			return nil, err
		}
	default:
		return nil, cmperrors.NewUnknownViewError(string(view))
	}

	m.GeneratedAt = b.now()
	return m, nil
}

func (b *Builder) buildPresence(m *Matrix, entities []catalog.Entity, mode Mode) {
	m.AttributeUniverse = Universe(entities, mode)
	if mode == ModeTags {
		sort.Strings(m.AttributeUniverse)
	}
	if len(entities) < MinComparable {
		return
	}

	index := make([]presence, len(entities))
	for i := range entities {
		index[i] = presenceOf(&entities[i], mode)
	}

	m.Rows = make([]Row, len(m.AttributeUniverse))
	for r, name := range m.AttributeUniverse {
		cells := make([]Cell, len(entities))
		for c := range entities {
			cells[c] = presenceCell(index[c].has(name))
		}
		m.Rows[r] = Row{Attribute: name, Cells: cells}
	}
}

func (b *Builder) buildPricing(m *Matrix, entities []catalog.Entity, opts Options) error {
	tiers, name, err := ResolveTiers(entities, opts)
	if err != nil {
		return err
	}
	m.TierSet = name
	if len(entities) == 0 {
		return nil
	}
	m.AttributeUniverse = tiers
	if len(entities) < MinComparable {
		return nil
	}

	m.Rows = make([]Row, len(tiers))
	for r, key := range tiers {
		cells := make([]Cell, len(entities))
		for c := range entities {
			cells[c] = TierValue(&entities[c], key)
		}
		m.Rows[r] = Row{Attribute: key, Cells: cells}
	}
	return nil
}

// ResolveTiers returns the pricing rows for entities and the name of the tier
// set they came from. Explicit tiers win over a named set; with neither, the
// set is inferred from the entities.
func ResolveTiers(entities []catalog.Entity, opts Options) ([]string, string, error) {
	if len(opts.Tiers) > 0 {
		return append([]string(nil), opts.Tiers...), opts.TierSet, nil
	}
	if opts.TierSet != "" {
		set, err := catalog.LookupTierSet(opts.TierSet)
		if err != nil {
			return nil, "", err
		}
		return set.Tiers, set.Name, nil
	}
	set := catalog.TierSetFor(entities)
	return set.Tiers, set.Name, nil
}

func columnsOf(entities []catalog.Entity) []Column {
	cols := make([]Column, len(entities))
	for i := range entities {
		e := &entities[i]
		cols[i] = Column{
			EntityID: e.ID,
			Name:     e.Name,
			Category: e.Category,
			Kind:     e.Kind,
			LogoRef:  e.LogoRef,
		}
	}
	return cols
}
