// Package clickhouse provides the ClickHouse catalog store.
// Entities and their tiers are written per snapshot; reads always go through
// the single active snapshot.
package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"saas-compare/decision/catalog"
	"saas-compare/decision/source"
	"saas-compare/pkg/units"
)

// CatalogSnapshot is one ingested version of the catalog.
type CatalogSnapshot struct {
	ID          uuid.UUID `ch:"id"`
	Source      string    `ch:"source"`
	EntityCount uint32    `ch:"entity_count"`
	Hash        string    `ch:"hash"`
	Version     string    `ch:"version"`
	IsActive    bool      `ch:"is_active"`
	FetchedAt   time.Time `ch:"fetched_at"`
	CreatedAt   time.Time `ch:"created_at"`
}

// EntityRow is the catalog_entities projection of an entity.
type EntityRow struct {
	SnapshotID  uuid.UUID
	ID          string
	Name        string
	Category    string
	Kind        string
	Provider    string
	LogoRef     string
	Description string
	Currency    string
	Tags        []string
	HasTags     bool
	HasGroups   bool
}

// TierRow is one catalog_tiers row. A tier key listed with no attribute set
// is stored with IsNull set so "not offered" survives a round trip.
type TierRow struct {
	SnapshotID    uuid.UUID
	EntityID      string
	TierKey       string
	Ordinal       uint16
	IsNull        bool
	Price         *decimal.Decimal
	PriceLabel    string
	BillingPeriod string
	Features      []string
	Limitations   []string
}

// Config holds ClickHouse connection configuration
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Debug    bool
}

// DefaultConfig returns default development configuration
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     9000,
		Database: "saascompare",
		Username: "default",
		Password: "",
		Debug:    false,
	}
}

// Store implements the catalog store using ClickHouse
type Store struct {
	conn clickhouse.Conn
	cfg  *Config
}

// NewStore creates a new ClickHouse catalog store
func NewStore(cfg *Config) (*Store, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: cfg.Debug,
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	return &Store{conn: conn, cfg: cfg}, nil
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

// Migrate creates the catalog tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if err := s.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS catalog_snapshots (
		id UUID,
		source String,
		entity_count UInt32,
		hash String,
		version String,
		is_active UInt8,
		fetched_at DateTime64(3),
		created_at DateTime64(3),
		_version UInt64 DEFAULT 1,
		_deleted UInt8 DEFAULT 0
	) ENGINE = ReplacingMergeTree(_version) ORDER BY id`,
	`CREATE TABLE IF NOT EXISTS catalog_entities (
		snapshot_id UUID,
		id String,
		name String,
		category LowCardinality(String),
		kind LowCardinality(String),
		provider LowCardinality(String),
		logo_ref String,
		description String,
		currency LowCardinality(String),
		tags Array(String),
		has_tags UInt8,
		has_groups UInt8,
		created_at DateTime64(3),
		_version UInt64 DEFAULT 1,
		_deleted UInt8 DEFAULT 0
	) ENGINE = ReplacingMergeTree(_version) ORDER BY (snapshot_id, id)`,
	`CREATE TABLE IF NOT EXISTS catalog_tiers (
		snapshot_id UUID,
		entity_id String,
		tier_key String,
		ordinal UInt16,
		is_null UInt8,
		price Nullable(Decimal(18, 4)),
		price_label String,
		billing_period LowCardinality(String),
		features Array(String),
		limitations Array(String),
		created_at DateTime64(3),
		_version UInt64 DEFAULT 1,
		_deleted UInt8 DEFAULT 0
	) ENGINE = ReplacingMergeTree(_version) ORDER BY (snapshot_id, entity_id, tier_key)`,
}

// =============================================================================
// SNAPSHOT OPERATIONS
// =============================================================================

const snapshotColumns = `id, source, entity_count, hash, version, is_active, fetched_at, created_at`

// CreateSnapshot inserts a new catalog snapshot
func (s *Store) CreateSnapshot(ctx context.Context, snapshot *CatalogSnapshot) error {
	query := `
		INSERT INTO catalog_snapshots (` + snapshotColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	return s.conn.Exec(ctx, query,
		snapshot.ID,
		snapshot.Source,
		snapshot.EntityCount,
		snapshot.Hash,
		snapshot.Version,
		boolToUInt8(snapshot.IsActive),
		snapshot.FetchedAt,
		time.Now(),
	)
}

// GetSnapshot retrieves a snapshot by ID
func (s *Store) GetSnapshot(ctx context.Context, id uuid.UUID) (*CatalogSnapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM catalog_snapshots FINAL
		WHERE id = ? AND _deleted = 0
	`
	return s.scanSnapshot(s.conn.QueryRow(ctx, query, id), "get snapshot")
}

// GetActiveSnapshot retrieves the active catalog snapshot, or nil when none
// has been activated yet.
func (s *Store) GetActiveSnapshot(ctx context.Context) (*CatalogSnapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM catalog_snapshots FINAL
		WHERE is_active = 1 AND _deleted = 0
		ORDER BY created_at DESC
		LIMIT 1
	`
	return s.scanSnapshot(s.conn.QueryRow(ctx, query), "get active snapshot")
}

// FindSnapshotByHash finds a snapshot by its content hash
func (s *Store) FindSnapshotByHash(ctx context.Context, hash string) (*CatalogSnapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM catalog_snapshots FINAL
		WHERE hash = ? AND _deleted = 0
		ORDER BY created_at DESC
		LIMIT 1
	`
	return s.scanSnapshot(s.conn.QueryRow(ctx, query, hash), "find snapshot by hash")
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) scanSnapshot(row rowScanner, op string) (*CatalogSnapshot, error) {
	var snapshot CatalogSnapshot
	var isActive uint8
	err := row.Scan(
		&snapshot.ID, &snapshot.Source, &snapshot.EntityCount, &snapshot.Hash,
		&snapshot.Version, &isActive, &snapshot.FetchedAt, &snapshot.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	snapshot.IsActive = isActive == 1
	return &snapshot, nil
}

// ActivateSnapshot marks a snapshot active and deactivates all others.
func (s *Store) ActivateSnapshot(ctx context.Context, id uuid.UUID) error {
	snapshot, err := s.GetSnapshot(ctx, id)
	if err != nil {
		return err
	}
	if snapshot == nil {
		return fmt.Errorf("snapshot not found: %s", id)
	}

	deactivateQuery := `
		INSERT INTO catalog_snapshots
		SELECT id, source, entity_count, hash, version, 0 as is_active, fetched_at, created_at,
			   _version + 1 as _version, _deleted
		FROM catalog_snapshots FINAL
		WHERE is_active = 1 AND _deleted = 0 AND id != ?
	`
	if err := s.conn.Exec(ctx, deactivateQuery, id); err != nil {
		return fmt.Errorf("failed to deactivate snapshots: %w", err)
	}

	activateQuery := `
		INSERT INTO catalog_snapshots
		SELECT id, source, entity_count, hash, version, 1 as is_active, fetched_at, created_at,
			   _version + 1 as _version, _deleted
		FROM catalog_snapshots FINAL
		WHERE id = ?
	`
	return s.conn.Exec(ctx, activateQuery, id)
}

// DeleteSnapshot tombstones a snapshot so hash lookups no longer return it.
func (s *Store) DeleteSnapshot(ctx context.Context, id uuid.UUID) error {
	query := `
		INSERT INTO catalog_snapshots
		SELECT id, source, entity_count, hash, version, 0 as is_active, fetched_at, created_at,
			   _version + 1 as _version, 1 as _deleted
		FROM catalog_snapshots FINAL
		WHERE id = ? AND _deleted = 0
	`
	if err := s.conn.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// =============================================================================
// ENTITY OPERATIONS
// =============================================================================

// BulkInsertEntities writes entities and their tiers into a snapshot using
// one batch per table.
func (s *Store) BulkInsertEntities(ctx context.Context, snapshotID uuid.UUID, entities []catalog.Entity) error {
	if len(entities) == 0 {
		return nil
	}
	now := time.Now()

	entityBatch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO catalog_entities (
			snapshot_id, id, name, category, kind, provider, logo_ref,
			description, currency, tags, has_tags, has_groups, created_at
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare entity batch: %w", err)
	}
	tierBatch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO catalog_tiers (
			snapshot_id, entity_id, tier_key, ordinal, is_null, price, price_label,
			billing_period, features, limitations, created_at
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare tier batch: %w", err)
	}

	for i := range entities {
		row, tiers := ToRows(snapshotID, &entities[i])
		if err := entityBatch.Append(
			row.SnapshotID, row.ID, row.Name, row.Category, row.Kind, row.Provider, row.LogoRef,
			row.Description, row.Currency, row.Tags, boolToUInt8(row.HasTags), boolToUInt8(row.HasGroups), now,
		); err != nil {
			return fmt.Errorf("failed to append entity %s: %w", row.ID, err)
		}
		for _, t := range tiers {
			if err := tierBatch.Append(
				t.SnapshotID, t.EntityID, t.TierKey, t.Ordinal, boolToUInt8(t.IsNull), t.Price, t.PriceLabel,
				t.BillingPeriod, t.Features, t.Limitations, now,
			); err != nil {
				return fmt.Errorf("failed to append tier %s/%s: %w", t.EntityID, t.TierKey, err)
			}
		}
	}

	if err := entityBatch.Send(); err != nil {
		return fmt.Errorf("failed to send entity batch: %w", err)
	}
	if err := tierBatch.Send(); err != nil {
		return fmt.Errorf("failed to send tier batch: %w", err)
	}
	return nil
}

// CountEntities returns the number of entities in a snapshot
func (s *Store) CountEntities(ctx context.Context, snapshotID uuid.UUID) (int, error) {
	query := `SELECT count() FROM catalog_entities FINAL WHERE snapshot_id = ? AND _deleted = 0`
	row := s.conn.QueryRow(ctx, query, snapshotID)
	var count uint64
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count entities: %w", err)
	}
	return int(count), nil
}

// GetEntities loads entities by ID from the active snapshot. Unknown IDs are
// skipped; callers compare against the request to find them.
func (s *Store) GetEntities(ctx context.Context, ids []string) ([]catalog.Entity, error) {
	if len(ids) == 0 {
		return []catalog.Entity{}, nil
	}
	snapshot, err := s.GetActiveSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return []catalog.Entity{}, nil
	}
	query := `
		SELECT ` + entityColumns + `
		FROM catalog_entities FINAL
		WHERE snapshot_id = ? AND id IN (?) AND _deleted = 0
	`
	return s.loadEntities(ctx, snapshot.ID, query, snapshot.ID, ids)
}

// ListEntities lists entities of the active snapshot matching q.
func (s *Store) ListEntities(ctx context.Context, q source.Query) ([]catalog.Entity, error) {
	snapshot, err := s.GetActiveSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return []catalog.Entity{}, nil
	}
	query, args := BuildListQuery(snapshot.ID, q)
	return s.loadEntities(ctx, snapshot.ID, query, args...)
}

const entityColumns = `id, name, category, kind, provider, logo_ref, description, currency, tags, has_tags, has_groups`

// BuildListQuery renders the entity listing query for a filter.
func BuildListQuery(snapshotID uuid.UUID, q source.Query) (string, []interface{}) {
	conds := []string{"snapshot_id = ?", "_deleted = 0"}
	args := []interface{}{snapshotID}
	if q.Category != "" {
		conds = append(conds, "lower(category) = ?")
		args = append(args, strings.ToLower(q.Category))
	}
	if q.Kind != "" {
		conds = append(conds, "lower(kind) = ?")
		args = append(args, strings.ToLower(q.Kind))
	}
	if q.Search != "" {
		conds = append(conds, "(positionCaseInsensitive(name, ?) > 0 OR positionCaseInsensitive(id, ?) > 0 OR positionCaseInsensitive(description, ?) > 0)")
		args = append(args, q.Search, q.Search, q.Search)
	}
	query := "SELECT " + entityColumns + " FROM catalog_entities FINAL WHERE " +
		strings.Join(conds, " AND ") + " ORDER BY name, id"
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}
	return query, args
}

func (s *Store) loadEntities(ctx context.Context, snapshotID uuid.UUID, query string, args ...interface{}) ([]catalog.Entity, error) {
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	var entityRows []EntityRow
	var ids []string
	for rows.Next() {
		var r EntityRow
		var hasTags, hasGroups uint8
		if err := rows.Scan(
			&r.ID, &r.Name, &r.Category, &r.Kind, &r.Provider, &r.LogoRef,
			&r.Description, &r.Currency, &r.Tags, &hasTags, &hasGroups,
		); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		r.SnapshotID = snapshotID
		r.HasTags = hasTags == 1
		r.HasGroups = hasGroups == 1
		entityRows = append(entityRows, r)
		ids = append(ids, r.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read entities: %w", err)
	}
	if len(entityRows) == 0 {
		return []catalog.Entity{}, nil
	}

	tiers, err := s.loadTiers(ctx, snapshotID, ids)
	if err != nil {
		return nil, err
	}
	entities := make([]catalog.Entity, len(entityRows))
	for i := range entityRows {
		entities[i] = FromRows(entityRows[i], tiers[entityRows[i].ID])
	}
	return entities, nil
}

func (s *Store) loadTiers(ctx context.Context, snapshotID uuid.UUID, ids []string) (map[string][]TierRow, error) {
	query := `
		SELECT entity_id, tier_key, ordinal, is_null, price, price_label, billing_period, features, limitations
		FROM catalog_tiers FINAL
		WHERE snapshot_id = ? AND entity_id IN (?) AND _deleted = 0
		ORDER BY entity_id, ordinal
	`
	rows, err := s.conn.Query(ctx, query, snapshotID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query tiers: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]TierRow)
	for rows.Next() {
		var t TierRow
		var isNull uint8
		if err := rows.Scan(
			&t.EntityID, &t.TierKey, &t.Ordinal, &isNull, &t.Price, &t.PriceLabel,
			&t.BillingPeriod, &t.Features, &t.Limitations,
		); err != nil {
			return nil, fmt.Errorf("failed to scan tier: %w", err)
		}
		t.SnapshotID = snapshotID
		t.IsNull = isNull == 1
		out[t.EntityID] = append(out[t.EntityID], t)
	}
	return out, rows.Err()
}

// =============================================================================
// ROW MAPPING
// =============================================================================

// ToRows flattens an entity into its entity row and tier rows.
func ToRows(snapshotID uuid.UUID, e *catalog.Entity) (EntityRow, []TierRow) {
	row := EntityRow{
		SnapshotID:  snapshotID,
		ID:          e.ID,
		Name:        e.Name,
		Category:    e.Category,
		Kind:        string(e.Kind),
		Provider:    string(e.Provider),
		LogoRef:     e.LogoRef,
		Description: e.Description,
		Currency:    e.Currency,
		Tags:        nonNil(e.Tags),
		HasTags:     e.Tags != nil,
		HasGroups:   e.AttributeGroups != nil,
	}

	keys := e.TierKeys()
	tiers := make([]TierRow, 0, len(keys))
	for i, key := range keys {
		t := TierRow{
			SnapshotID:  snapshotID,
			EntityID:    e.ID,
			TierKey:     key,
			Ordinal:     uint16(i),
			Features:    []string{},
			Limitations: []string{},
		}
		set := e.AttributeGroups[key]
		if set == nil {
			t.IsNull = true
		} else {
			t.Price, t.PriceLabel = priceColumns(set.Price)
			t.BillingPeriod = string(set.BillingPeriod)
			t.Features = nonNil(set.Features)
			t.Limitations = nonNil(set.Limitations)
		}
		tiers = append(tiers, t)
	}
	return row, tiers
}

// FromRows rebuilds an entity from its stored rows.
func FromRows(row EntityRow, tiers []TierRow) catalog.Entity {
	e := catalog.Entity{
		ID:          row.ID,
		Name:        row.Name,
		Category:    row.Category,
		Kind:        catalog.Kind(row.Kind),
		Provider:    catalog.CloudProvider(row.Provider),
		LogoRef:     row.LogoRef,
		Description: row.Description,
		Currency:    row.Currency,
	}
	if row.HasTags {
		e.Tags = nonNil(row.Tags)
	}
	if row.HasGroups || len(tiers) > 0 {
		e.AttributeGroups = make(map[string]*catalog.AttributeSet, len(tiers))
	}
	for _, t := range tiers {
		if t.IsNull {
			e.AttributeGroups[t.TierKey] = nil
			continue
		}
		e.AttributeGroups[t.TierKey] = &catalog.AttributeSet{
			Price:         priceFromColumns(t.Price, t.PriceLabel),
			BillingPeriod: units.BillingPeriod(t.BillingPeriod),
			Features:      nonNil(t.Features),
			Limitations:   nonNil(t.Limitations),
		}
	}
	return e
}

func priceColumns(p catalog.Price) (*decimal.Decimal, string) {
	switch p.Kind {
	case catalog.PriceAmount:
		amount := p.Amount
		return &amount, ""
	case catalog.PriceLabel:
		return nil, p.Label
	default:
		return nil, ""
	}
}

func priceFromColumns(amount *decimal.Decimal, label string) catalog.Price {
	switch {
	case amount != nil:
		return catalog.NewPrice(*amount)
	case label != "":
		return catalog.LabelPrice(label)
	default:
		return catalog.Price{}
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
