package source

import (
	"context"

	"saas-compare/decision/catalog"
)

// StaticSource serves a fixed in-memory catalog.
type StaticSource struct {
	name     string
	entities []catalog.Entity
}

func NewStaticSource(name string, entities []catalog.Entity) *StaticSource {
	return &StaticSource{name: name, entities: entities}
}

// LoadStaticSource parses a JSON or YAML catalog file. A nil parser uses the
// defaults.
func LoadStaticSource(path string, parser *catalog.Parser) (*StaticSource, error) {
	if parser == nil {
		parser = catalog.NewParser()
	}
	cat, err := parser.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return NewStaticSource("file", cat.Entities), nil
}

func (s *StaticSource) Name() string { return s.name }

func (s *StaticSource) Fetch(ctx context.Context, q Query) Result {
	if err := ctx.Err(); err != nil {
		return Failure(s.name, err)
	}
	if len(q.IDs) > 0 {
		return Success(s.name, q, s.entities)
	}
	matched := make([]catalog.Entity, 0)
	for i := range s.entities {
		if matches(&s.entities[i], q) {
			matched = append(matched, s.entities[i])
		}
	}
	return Success(s.name, q, matched)
}

// Entities returns the whole catalog.
func (s *StaticSource) Entities() []catalog.Entity {
	return s.entities
}
