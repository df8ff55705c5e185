// Package draft persists the durable workflow snapshot as a single
// keyed JSON blob. One draft exists at a time; concurrent writers are
// not coordinated and the last write wins.
package draft

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mrogier/actaflow/internal/log"
	"github.com/mrogier/actaflow/internal/workflow"
)

// SchemaVersion is bumped whenever the snapshot shape changes. A stored
// draft with a different version is treated as not restorable instead
// of being decoded into the wrong shape.
const SchemaVersion = 1

// defaultKey identifies the single in-progress draft row.
const defaultKey = "acte_en_cours"

// Store reads and writes draft snapshots. It implements workflow.Store.
type Store struct {
	db  *sql.DB
	key string
}

// NewStore builds a store over an open draft database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, key: defaultKey}
}

// Save upserts the snapshot under the draft key.
func (s *Store) Save(snap workflow.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding draft snapshot: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO drafts (key, schema, payload, updated_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET
			schema = excluded.schema,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, s.key, SchemaVersion, string(payload))
	if err != nil {
		return fmt.Errorf("writing draft snapshot: %w", err)
	}
	return nil
}

// Load returns the stored snapshot, or (nil, nil) when none exists or
// the stored schema version does not match the current one.
func (s *Store) Load() (*workflow.Snapshot, error) {
	var schema int
	var payload string
	err := s.db.QueryRow(`SELECT schema, payload FROM drafts WHERE key = ?`, s.key).Scan(&schema, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading draft snapshot: %w", err)
	}

	if schema != SchemaVersion {
		log.Warn(log.CatDB, "Draft snapshot has a different schema version, ignoring",
			"stored", schema, "current", SchemaVersion)
		return nil, nil
	}

	var snap workflow.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, fmt.Errorf("decoding draft snapshot: %w", err)
	}
	return &snap, nil
}

// Delete removes the stored snapshot. Deleting a missing draft is not
// an error.
func (s *Store) Delete() error {
	if _, err := s.db.Exec(`DELETE FROM drafts WHERE key = ?`, s.key); err != nil {
		return fmt.Errorf("deleting draft snapshot: %w", err)
	}
	return nil
}
