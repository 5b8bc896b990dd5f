// Package ingestion loads catalog documents into the ClickHouse store as
// versioned snapshots.
package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"saas-compare/db/clickhouse"
	"saas-compare/decision/catalog"
)

// DefaultBatchSize is the number of entities written per ClickHouse batch.
const DefaultBatchSize = 500

// SnapshotStore is the part of the ClickHouse store ingestion writes to.
type SnapshotStore interface {
	FindSnapshotByHash(ctx context.Context, hash string) (*clickhouse.CatalogSnapshot, error)
	GetActiveSnapshot(ctx context.Context) (*clickhouse.CatalogSnapshot, error)
	CreateSnapshot(ctx context.Context, snapshot *clickhouse.CatalogSnapshot) error
	BulkInsertEntities(ctx context.Context, snapshotID uuid.UUID, entities []catalog.Entity) error
	ActivateSnapshot(ctx context.Context, id uuid.UUID) error
	DeleteSnapshot(ctx context.Context, id uuid.UUID) error
	CountEntities(ctx context.Context, snapshotID uuid.UUID) (int, error)
}

// ClickHouseAdapter writes catalogs into ClickHouse
type ClickHouseAdapter struct {
	store     SnapshotStore
	batchSize int
	logger    *zap.Logger
}

// NewClickHouseAdapter creates a new ClickHouse adapter
func NewClickHouseAdapter(store SnapshotStore, logger *zap.Logger) *ClickHouseAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClickHouseAdapter{store: store, batchSize: DefaultBatchSize, logger: logger}
}

// IngestionResult tracks the result of a catalog ingestion
type IngestionResult struct {
	SnapshotID   uuid.UUID     `json:"snapshot_id"`
	Source       string        `json:"source"`
	Hash         string        `json:"hash"`
	EntityCount  int           `json:"entity_count"`
	Batches      int           `json:"batches"`
	Skipped      bool          `json:"skipped"`
	Duration     time.Duration `json:"duration"`
	Success      bool          `json:"success"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

// Ingest validates entities, stores them as a new snapshot and activates it.
// A catalog identical to a complete existing snapshot is not written again;
// that snapshot is activated instead. Snapshots are verified before they go
// active.
func (a *ClickHouseAdapter) Ingest(ctx context.Context, entities []catalog.Entity, source string) (*IngestionResult, error) {
	startTime := time.Now()
	result := &IngestionResult{Source: source, EntityCount: len(entities)}

	for i := range entities {
		if err := entities[i].Validate(); err != nil {
			result.ErrorMessage = err.Error()
			return result, fmt.Errorf("entity %d: %w", i, err)
		}
	}

	hash, err := HashCatalog(entities)
	if err != nil {
		result.ErrorMessage = err.Error()
		return result, err
	}
	result.Hash = hash

	existing, err := a.store.FindSnapshotByHash(ctx, hash)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("failed to look up snapshot: %v", err)
		return result, err
	}
	if existing != nil {
		reused, err := a.reuse(ctx, existing, len(entities))
		if err != nil {
			result.ErrorMessage = err.Error()
			return result, err
		}
		if reused {
			result.SnapshotID = existing.ID
			result.Skipped = true
			result.Success = true
			result.Duration = time.Since(startTime)
			return result, nil
		}
	}

	snapshot := &clickhouse.CatalogSnapshot{
		ID:          uuid.New(),
		Source:      source,
		EntityCount: uint32(len(entities)),
		Hash:        hash,
		Version:     "1.0",
		FetchedAt:   startTime,
		IsActive:    false, // activated after all entities are written
	}
	if err := a.store.CreateSnapshot(ctx, snapshot); err != nil {
		result.ErrorMessage = fmt.Sprintf("failed to create snapshot: %v", err)
		return result, err
	}
	result.SnapshotID = snapshot.ID

	for i := 0; i < len(entities); i += a.batchSize {
		end := i + a.batchSize
		if end > len(entities) {
			end = len(entities)
		}
		if err := a.store.BulkInsertEntities(ctx, snapshot.ID, entities[i:end]); err != nil {
			result.ErrorMessage = fmt.Sprintf("failed to insert batch %d: %v", i/a.batchSize, err)
			return result, err
		}
		result.Batches++
	}

	if err := a.VerifyIngestion(ctx, snapshot.ID, len(entities)); err != nil {
		result.ErrorMessage = err.Error()
		return result, err
	}
	if err := a.store.ActivateSnapshot(ctx, snapshot.ID); err != nil {
		result.ErrorMessage = fmt.Sprintf("failed to activate snapshot: %v", err)
		return result, err
	}

	result.Success = true
	result.Duration = time.Since(startTime)
	a.logger.Info("Catalog ingested",
		zap.String("snapshot_id", snapshot.ID.String()),
		zap.Int("entities", len(entities)),
		zap.Int("batches", result.Batches),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// reuse activates a snapshot with the same hash when it holds the whole
// catalog. An incomplete one, left by an ingestion that failed part way, is
// tombstoned and reported as not reusable.
func (a *ClickHouseAdapter) reuse(ctx context.Context, existing *clickhouse.CatalogSnapshot, expected int) (bool, error) {
	if existing.IsActive {
		a.logger.Info("Catalog unchanged, snapshot already active",
			zap.String("snapshot_id", existing.ID.String()))
		return true, nil
	}

	count, err := a.store.CountEntities(ctx, existing.ID)
	if err != nil {
		return false, fmt.Errorf("failed to count snapshot entities: %w", err)
	}
	if count != expected {
		a.logger.Warn("Discarding incomplete snapshot",
			zap.String("snapshot_id", existing.ID.String()),
			zap.Int("entities", count),
			zap.Int("expected", expected))
		if err := a.store.DeleteSnapshot(ctx, existing.ID); err != nil {
			return false, err
		}
		return false, nil
	}

	if err := a.store.ActivateSnapshot(ctx, existing.ID); err != nil {
		return false, fmt.Errorf("failed to activate snapshot: %w", err)
	}
	a.logger.Info("Catalog unchanged, reusing snapshot",
		zap.String("snapshot_id", existing.ID.String()),
		zap.String("hash", existing.Hash))
	return true, nil
}

// VerifyIngestion checks that a snapshot holds the expected number of entities.
func (a *ClickHouseAdapter) VerifyIngestion(ctx context.Context, snapshotID uuid.UUID, expected int) error {
	count, err := a.store.CountEntities(ctx, snapshotID)
	if err != nil {
		return err
	}
	if count != expected {
		return fmt.Errorf("snapshot %s has %d entities, expected %d", snapshotID, count, expected)
	}
	return nil
}

// IngestionStats describes the active catalog snapshot
type IngestionStats struct {
	ActiveSnapshotID uuid.UUID `json:"active_snapshot_id"`
	Source           string    `json:"source"`
	Hash             string    `json:"hash"`
	LastUpdated      time.Time `json:"last_updated"`
	EntityCount      int       `json:"entity_count"`
	IsActive         bool      `json:"is_active"`
}

// GetIngestionStats returns statistics about the active snapshot
func (a *ClickHouseAdapter) GetIngestionStats(ctx context.Context) (*IngestionStats, error) {
	stats := &IngestionStats{}
	snapshot, err := a.store.GetActiveSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if snapshot != nil {
		stats.ActiveSnapshotID = snapshot.ID
		stats.Source = snapshot.Source
		stats.Hash = snapshot.Hash
		stats.LastUpdated = snapshot.FetchedAt
		stats.EntityCount = int(snapshot.EntityCount)
		stats.IsActive = true
	}
	return stats, nil
}

// HashCatalog is the sha256 of the canonical JSON encoding of entities.
func HashCatalog(entities []catalog.Entity) (string, error) {
	data, err := catalog.MarshalCanonical(entities)
	if err != nil {
		return "", fmt.Errorf("failed to encode catalog: %w", err)
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:]), nil
}
