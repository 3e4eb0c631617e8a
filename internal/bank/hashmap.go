package bank

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/forecastbench/forecastbench/internal/domain"
	"github.com/forecastbench/forecastbench/internal/objstore"
)

// HashMapping records, per source, the key dict behind each synthesized
// id so resolution can reconstruct the question from its hash.
type HashMapping struct {
	repo   *Repository
	source domain.Source
}

// NewHashMapping creates the hash-mapping accessor for a source.
func (r *Repository) NewHashMapping(source domain.Source) *HashMapping {
	return &HashMapping{repo: r, source: source}
}

// Record stores the key dict for a synthesized id. Re-recording the same
// hash replaces the row (the key dict is a pure function of the hash, so
// this is idempotent).
func (m *HashMapping) Record(hash string, key map[string]string) error {
	data, err := json.Marshal(key)
	if err != nil {
		return fmt.Errorf("failed to encode key dict for %s: %w", hash, err)
	}
	_, err = m.repo.db.Exec(`
		INSERT INTO hash_mappings (source, hash, key_json) VALUES (?, ?, ?)
		ON CONFLICT (source, hash) DO UPDATE SET key_json = excluded.key_json`,
		string(m.source), hash, string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to record hash mapping %s: %w", hash, err)
	}
	return nil
}

// Lookup returns the key dict behind a synthesized id.
func (m *HashMapping) Lookup(hash string) (map[string]string, error) {
	var keyJSON string
	err := m.repo.db.QueryRow(
		`SELECT key_json FROM hash_mappings WHERE source = ? AND hash = ?`,
		string(m.source), hash,
	).Scan(&keyJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("hash mapping %s/%s not found", m.source, hash)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up hash mapping %s: %w", hash, err)
	}
	var key map[string]string
	if err := json.Unmarshal([]byte(keyJSON), &key); err != nil {
		return nil, fmt.Errorf("corrupt hash mapping %s: %w", hash, err)
	}
	return key, nil
}

// Publish writes the source's full hash mapping to the object store as
// question_bank/<source>/hash_mapping.json, sorted by hash for stable
// diffs.
func (m *HashMapping) Publish(ctx context.Context, store objstore.Store) error {
	rows, err := m.repo.db.Query(
		`SELECT hash, key_json FROM hash_mappings WHERE source = ? ORDER BY hash`,
		string(m.source),
	)
	if err != nil {
		return fmt.Errorf("failed to query hash mappings for %s: %w", m.source, err)
	}
	defer rows.Close()

	table := make(map[string]map[string]string)
	for rows.Next() {
		var hash, keyJSON string
		if err := rows.Scan(&hash, &keyJSON); err != nil {
			return fmt.Errorf("failed to scan hash mapping: %w", err)
		}
		var key map[string]string
		if err := json.Unmarshal([]byte(keyJSON), &key); err != nil {
			return fmt.Errorf("corrupt hash mapping %s: %w", hash, err)
		}
		table[hash] = key
	}
	if err := rows.Err(); err != nil {
		return err
	}

	data, err := marshalSortedJSON(table)
	if err != nil {
		return fmt.Errorf("failed to encode hash mapping table: %w", err)
	}
	return store.Put(ctx, objstore.HashMappingKey(m.source), data)
}

// LoadPublished reads a source's published hash mapping from the object
// store. A missing object yields an empty table (fresh source).
func LoadPublishedHashMapping(ctx context.Context, store objstore.Store, source domain.Source) (map[string]map[string]string, error) {
	data, err := store.Get(ctx, objstore.HashMappingKey(source))
	if errors.Is(err, objstore.ErrNotFound) {
		return map[string]map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	var table map[string]map[string]string
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("corrupt published hash mapping for %s: %w", source, err)
	}
	return table, nil
}

// marshalSortedJSON encodes with indentation and stable key order.
func marshalSortedJSON(table map[string]map[string]string) ([]byte, error) {
	// encoding/json sorts map keys; indent for reviewable diffs
	hashes := make([]string, 0, len(table))
	for h := range table {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)
	return json.MarshalIndent(table, "", "  ")
}
