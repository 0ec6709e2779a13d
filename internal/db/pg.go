package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	_ "github.com/lib/pq"

	"github.com/kubelane/kubelane/internal/state"
	"github.com/kubelane/kubelane/internal/types"
)

// PostgresStore persists the raw ingested event history in an
// append-only table, with an in-memory cache serving batch reads. Only
// raw events are stored; derived structures (lanes, spans, scores) are
// always recomputed and never persisted.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger

	mu      sync.RWMutex
	events  []types.TimelineEvent
	byRef   map[string][]types.TimelineEvent
	batchID uint64
}

// NewPostgresStore connects, initializes the schema and loads recent
// history into the cache.
func NewPostgresStore(connStr string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	store := &PostgresStore{
		db:     db,
		logger: logger,
		byRef:  make(map[string][]types.TimelineEvent),
	}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := store.loadCache(); err != nil {
		logger.Warn("failed to load event history cache", "error", err)
	}
	return store, nil
}

func (s *PostgresStore) initSchema() error {
	schema := `
	-- Append-only ingested event history. Derived timeline state is
	-- recomputed on every read and never stored here.
	CREATE TABLE IF NOT EXISTS timeline_events (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		namespace TEXT,
		name TEXT NOT NULL,
		ts TIMESTAMPTZ NOT NULL,
		category TEXT NOT NULL,
		operation TEXT,
		reason TEXT,
		message TEXT,
		severity TEXT,
		health_state TEXT,
		owner_kind TEXT,
		owner_namespace TEXT,
		owner_name TEXT,
		diff_summary TEXT,
		labels JSONB,
		resource_created_at TIMESTAMPTZ,
		ingested_at TIMESTAMPTZ DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_timeline_events_ts ON timeline_events(ts DESC);
	CREATE INDEX IF NOT EXISTS idx_timeline_events_ref ON timeline_events(kind, namespace, name);
	CREATE INDEX IF NOT EXISTS idx_timeline_events_labels ON timeline_events USING GIN(labels);
	`
	_, err := s.db.Exec(schema)
	return err
}

// loadCache pulls the recent history so batch reads are served from
// memory.
func (s *PostgresStore) loadCache() error {
	rows, err := s.db.Query(`
		SELECT id, kind, namespace, name, ts, category, operation, reason,
		       message, severity, health_state, owner_kind, owner_namespace,
		       owner_name, diff_summary, labels, resource_created_at
		FROM timeline_events
		ORDER BY ts ASC
		LIMIT 50000`)
	if err != nil {
		return err
	}
	defer rows.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return err
		}
		s.events = append(s.events, ev)
		key := ev.Ref().Key()
		s.byRef[key] = append(s.byRef[key], ev)
	}
	if len(s.events) > 0 {
		s.batchID = 1
	}
	return rows.Err()
}

func scanEvent(rows *sql.Rows) (types.TimelineEvent, error) {
	var ev types.TimelineEvent
	var operation, reason, message, severity, healthState sql.NullString
	var ownerKind, ownerNamespace, ownerName, diffSummary sql.NullString
	var namespace sql.NullString
	var labelsRaw []byte
	var createdAt sql.NullTime

	err := rows.Scan(&ev.ID, &ev.Kind, &namespace, &ev.Name, &ev.Timestamp,
		&ev.Category, &operation, &reason, &message, &severity, &healthState,
		&ownerKind, &ownerNamespace, &ownerName, &diffSummary, &labelsRaw, &createdAt)
	if err != nil {
		return ev, err
	}

	ev.Namespace = namespace.String
	ev.Operation = types.Operation(operation.String)
	ev.Reason = reason.String
	ev.Message = message.String
	ev.Severity = severity.String
	ev.HealthState = types.HealthState(healthState.String)
	ev.DiffSummary = diffSummary.String
	if ownerKind.Valid && ownerKind.String != "" {
		ev.Owner = &types.ResourceRef{
			Kind:      ownerKind.String,
			Namespace: ownerNamespace.String,
			Name:      ownerName.String,
		}
	}
	if len(labelsRaw) > 0 {
		if err := json.Unmarshal(labelsRaw, &ev.Labels); err != nil {
			ev.Labels = nil
		}
	}
	if createdAt.Valid {
		t := createdAt.Time
		ev.CreatedAt = &t
	}
	return ev, nil
}

func (s *PostgresStore) Append(events ...types.TimelineEvent) error {
	if len(events) == 0 {
		return nil
	}
	for _, ev := range events {
		var labelsRaw []byte
		if len(ev.Labels) > 0 {
			labelsRaw, _ = json.Marshal(ev.Labels)
		}
		var ownerKind, ownerNamespace, ownerName string
		if ev.Owner != nil {
			ownerKind = ev.Owner.Kind
			ownerNamespace = ev.Owner.Namespace
			ownerName = ev.Owner.Name
		}
		_, err := s.db.Exec(`
			INSERT INTO timeline_events (
				id, kind, namespace, name, ts, category, operation, reason,
				message, severity, health_state, owner_kind, owner_namespace,
				owner_name, diff_summary, labels, resource_created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
			ON CONFLICT (id) DO NOTHING`,
			ev.ID, ev.Kind, ev.Namespace, ev.Name, ev.Timestamp, ev.Category,
			string(ev.Operation), ev.Reason, ev.Message, ev.Severity,
			string(ev.HealthState), ownerKind, ownerNamespace, ownerName,
			ev.DiffSummary, labelsRaw, ev.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert event %s: %w", ev.ID, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range events {
		s.events = append(s.events, ev)
		key := ev.Ref().Key()
		s.byRef[key] = append(s.byRef[key], ev)
	}
	s.batchID++
	return nil
}

func (s *PostgresStore) Batch() state.Batch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]types.TimelineEvent, len(s.events))
	copy(events, s.events)
	return state.Batch{ID: s.batchID, Events: events}
}

func (s *PostgresStore) ByRef(ref types.ResourceRef) []types.TimelineEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.byRef[ref.Key()]
	events := make([]types.TimelineEvent, len(stored))
	copy(events, stored)
	return events
}

func (s *PostgresStore) EventCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
