package source

import (
	"context"

	"saas-compare/decision/catalog"
)

// EntityStore is the read side of a persistent catalog.
type EntityStore interface {
	GetEntities(ctx context.Context, ids []string) ([]catalog.Entity, error)
	ListEntities(ctx context.Context, q Query) ([]catalog.Entity, error)
}

// StoreSource serves entities from the active catalog snapshot.
type StoreSource struct {
	store EntityStore
}

func NewStoreSource(store EntityStore) *StoreSource {
	return &StoreSource{store: store}
}

func (s *StoreSource) Name() string { return "store" }

func (s *StoreSource) Fetch(ctx context.Context, q Query) Result {
	var (
		entities []catalog.Entity
		err      error
	)
	if len(q.IDs) > 0 {
		entities, err = s.store.GetEntities(ctx, q.IDs)
	} else {
		entities, err = s.store.ListEntities(ctx, q)
	}
	if err != nil {
		return Failure(s.Name(), err)
	}
	for i := range entities {
		if vErr := entities[i].Validate(); vErr != nil {
			return Failure(s.Name(), vErr)
		}
	}
	return Success(s.Name(), q, entities)
}
