package ingestion

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saas-compare/db/clickhouse"
	"saas-compare/decision/catalog"
	cmperrors "saas-compare/pkg/errors"
)

type fakeStore struct {
	snapshots map[uuid.UUID]*clickhouse.CatalogSnapshot
	entities  map[uuid.UUID][]catalog.Entity
	batches   int
	failBulk  error
	// failAfter makes every batch after the nth fail.
	failAfter int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		snapshots: make(map[uuid.UUID]*clickhouse.CatalogSnapshot),
		entities:  make(map[uuid.UUID][]catalog.Entity),
	}
}

func (f *fakeStore) FindSnapshotByHash(ctx context.Context, hash string) (*clickhouse.CatalogSnapshot, error) {
	for _, s := range f.snapshots {
		if s.Hash == hash {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetActiveSnapshot(ctx context.Context) (*clickhouse.CatalogSnapshot, error) {
	for _, s := range f.snapshots {
		if s.IsActive {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateSnapshot(ctx context.Context, s *clickhouse.CatalogSnapshot) error {
	f.snapshots[s.ID] = s
	return nil
}

func (f *fakeStore) BulkInsertEntities(ctx context.Context, id uuid.UUID, entities []catalog.Entity) error {
	if f.failBulk != nil {
		return f.failBulk
	}
	f.batches++
	f.entities[id] = append(f.entities[id], entities...)
	if f.failAfter > 0 && f.batches >= f.failAfter {
		f.failBulk = errors.New("connection reset")
	}
	return nil
}

func (f *fakeStore) DeleteSnapshot(ctx context.Context, id uuid.UUID) error {
	delete(f.snapshots, id)
	return nil
}

func (f *fakeStore) ActivateSnapshot(ctx context.Context, id uuid.UUID) error {
	for sid, s := range f.snapshots {
		s.IsActive = sid == id
	}
	return nil
}

func (f *fakeStore) CountEntities(ctx context.Context, id uuid.UUID) (int, error) {
	return len(f.entities[id]), nil
}

func makeEntities(n int) []catalog.Entity {
	out := make([]catalog.Entity, n)
	for i := range out {
		out[i] = catalog.Entity{ID: fmt.Sprintf("e%04d", i), Tags: []string{"x"}}
	}
	return out
}

func TestIngestBatchesAndActivates(t *testing.T) {
	store := newFakeStore()
	adapter := NewClickHouseAdapter(store, nil)

	res, err := adapter.Ingest(context.Background(), makeEntities(1201), "catalog.yaml")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.Skipped)
	assert.Equal(t, 3, res.Batches)
	assert.Equal(t, 3, store.batches)
	assert.True(t, store.snapshots[res.SnapshotID].IsActive)
	require.NoError(t, adapter.VerifyIngestion(context.Background(), res.SnapshotID, 1201))

	stats, err := adapter.GetIngestionStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res.SnapshotID, stats.ActiveSnapshotID)
	assert.Equal(t, 1201, stats.EntityCount)
}

func TestIngestSkipsIdenticalCatalog(t *testing.T) {
	store := newFakeStore()
	adapter := NewClickHouseAdapter(store, nil)
	ctx := context.Background()

	first, err := adapter.Ingest(ctx, makeEntities(3), "a")
	require.NoError(t, err)
	second, err := adapter.Ingest(ctx, makeEntities(4), "b")
	require.NoError(t, err)
	assert.True(t, store.snapshots[second.SnapshotID].IsActive)

	again, err := adapter.Ingest(ctx, makeEntities(3), "a")
	require.NoError(t, err)
	assert.True(t, again.Skipped)
	assert.Equal(t, first.SnapshotID, again.SnapshotID)
	assert.True(t, store.snapshots[first.SnapshotID].IsActive)
	assert.Len(t, store.snapshots, 2)
}

func TestIngestRejectsInvalidEntity(t *testing.T) {
	store := newFakeStore()
	entities := append(makeEntities(2), catalog.Entity{ID: "bad"})
	_, err := NewClickHouseAdapter(store, nil).Ingest(context.Background(), entities, "x")
	assert.ErrorIs(t, err, cmperrors.ErrInvalidEntity)
	assert.Empty(t, store.snapshots)
}

func TestIngestLeavesSnapshotInactiveOnFailure(t *testing.T) {
	store := newFakeStore()
	store.failBulk = errors.New("timeout")
	res, err := NewClickHouseAdapter(store, nil).Ingest(context.Background(), makeEntities(2), "x")
	require.Error(t, err)
	assert.False(t, res.Success)
	assert.False(t, store.snapshots[res.SnapshotID].IsActive)
}

func TestIngestRetryRewritesPartialSnapshot(t *testing.T) {
	store := newFakeStore()
	store.failAfter = 1
	adapter := NewClickHouseAdapter(store, nil)
	ctx := context.Background()
	entities := makeEntities(600)

	failed, err := adapter.Ingest(ctx, entities, "catalog.yaml")
	require.Error(t, err)
	assert.Equal(t, 1, failed.Batches)
	assert.False(t, store.snapshots[failed.SnapshotID].IsActive)
	assert.Len(t, store.entities[failed.SnapshotID], 500)

	store.failBulk = nil
	store.failAfter = 0
	retry, err := adapter.Ingest(ctx, entities, "catalog.yaml")
	require.NoError(t, err)
	assert.False(t, retry.Skipped)
	assert.NotEqual(t, failed.SnapshotID, retry.SnapshotID)
	assert.Equal(t, 2, retry.Batches)
	assert.NotContains(t, store.snapshots, failed.SnapshotID)

	active, err := store.GetActiveSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, retry.SnapshotID, active.ID)
	require.NoError(t, adapter.VerifyIngestion(ctx, active.ID, 600))
}

func TestIngestDoesNotActivateShortSnapshot(t *testing.T) {
	store := &shortStore{fakeStore: newFakeStore()}
	res, err := NewClickHouseAdapter(store, nil).Ingest(context.Background(), makeEntities(4), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 4")
	assert.False(t, res.Success)
	assert.False(t, store.snapshots[res.SnapshotID].IsActive)
}

// shortStore drops the last entity of every batch.
type shortStore struct {
	*fakeStore
}

func (s *shortStore) BulkInsertEntities(ctx context.Context, id uuid.UUID, entities []catalog.Entity) error {
	return s.fakeStore.BulkInsertEntities(ctx, id, entities[:len(entities)-1])
}

func TestHashCatalogIsStable(t *testing.T) {
	a, err := HashCatalog(makeEntities(5))
	require.NoError(t, err)
	b, err := HashCatalog(makeEntities(5))
	require.NoError(t, err)
	c, err := HashCatalog(makeEntities(6))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
