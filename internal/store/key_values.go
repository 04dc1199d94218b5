// ABOUTME: Typed helpers over the namespaced key/value table
// ABOUTME: Values are JSON-encoded strings or integers; decode failures fall back to defaults

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const keyValueColumns = `namespace, key, created_at, updated_at, value`

func scanKeyValue(sc scanner) (*KeyValue, error) {
	var (
		kv               KeyValue
		created, updated string
	)
	if err := sc.Scan(&kv.Namespace, &kv.Key, &created, &updated, &kv.Value); err != nil {
		return nil, err
	}
	var err error
	if kv.CreatedAt, kv.UpdatedAt, err = stamps(created, updated); err != nil {
		return nil, err
	}
	kv.Model = KindKeyValue
	return &kv, nil
}

// GetKeyValueRaw returns the entry for namespace and key.
func (s *SQLiteStore) GetKeyValueRaw(ctx context.Context, namespace, key string) (*KeyValue, error) {
	return getOne(ctx, s, "key value", scanKeyValue,
		`SELECT `+keyValueColumns+` FROM key_values WHERE namespace = ? AND key = ?`, namespace, key)
}

// ListKeyValues returns every entry in a namespace ordered by key.
func (s *SQLiteStore) ListKeyValues(ctx context.Context, namespace string) ([]*KeyValue, error) {
	return listAll(ctx, s, "key values", scanKeyValue,
		`SELECT `+keyValueColumns+` FROM key_values WHERE namespace = ? ORDER BY key`, namespace)
}

// SetKeyValueRaw stores an already JSON-encoded value. The bool result
// reports whether the entry was newly created.
func (s *SQLiteStore) SetKeyValueRaw(ctx context.Context, namespace, key, value string) (*KeyValue, bool, error) {
	if !json.Valid([]byte(value)) {
		return nil, false, fmt.Errorf("setting key value %s/%s: value is not valid JSON", namespace, key)
	}

	_, err := s.GetKeyValueRaw(ctx, namespace, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}
	created := errors.Is(err, ErrNotFound)

	now := formatTime(s.now())
	if _, err := s.exec(ctx, `
		INSERT INTO key_values (namespace, key, created_at, updated_at, value)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET
			updated_at = excluded.updated_at,
			value = excluded.value
	`, namespace, key, now, now, value); err != nil {
		return nil, false, fmt.Errorf("setting key value: %w", err)
	}

	kv, err := s.GetKeyValueRaw(ctx, namespace, key)
	if err != nil {
		return nil, false, err
	}
	s.upserted(kv)
	return kv, created, nil
}

// SetKeyValueString stores a string value.
func (s *SQLiteStore) SetKeyValueString(ctx context.Context, namespace, key, value string) (*KeyValue, bool, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, false, err
	}
	return s.SetKeyValueRaw(ctx, namespace, key, string(encoded))
}

// SetKeyValueInt stores an integer value.
func (s *SQLiteStore) SetKeyValueInt(ctx context.Context, namespace, key string, value int64) (*KeyValue, bool, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, false, err
	}
	return s.SetKeyValueRaw(ctx, namespace, key, string(encoded))
}

// GetKeyValueString returns the stored string, or def when the entry is
// missing, unreadable, or not a JSON string.
func (s *SQLiteStore) GetKeyValueString(ctx context.Context, namespace, key, def string) string {
	var v string
	if !s.decodeKeyValue(ctx, namespace, key, &v) {
		return def
	}
	return v
}

// GetKeyValueInt returns the stored integer, or def when the entry is
// missing, unreadable, or not a JSON integer.
func (s *SQLiteStore) GetKeyValueInt(ctx context.Context, namespace, key string, def int64) int64 {
	var v int64
	if !s.decodeKeyValue(ctx, namespace, key, &v) {
		return def
	}
	return v
}

func (s *SQLiteStore) decodeKeyValue(ctx context.Context, namespace, key string, dst any) bool {
	kv, err := s.GetKeyValueRaw(ctx, namespace, key)
	if errors.Is(err, ErrNotFound) {
		return false
	}
	if err != nil {
		s.logger.Error("failed to read key value", "namespace", namespace, "key", key, "error", err)
		return false
	}
	// Unmarshal accepts null into any type and leaves dst untouched.
	if strings.TrimSpace(kv.Value) == "null" {
		s.logger.Error("failed to decode key value", "namespace", namespace, "key", key, "error", "value is null")
		return false
	}
	if err := json.Unmarshal([]byte(kv.Value), dst); err != nil {
		s.logger.Error("failed to decode key value", "namespace", namespace, "key", key, "error", err)
		return false
	}
	return true
}

// DeleteKeyValue removes an entry.
func (s *SQLiteStore) DeleteKeyValue(ctx context.Context, namespace, key string) (*KeyValue, error) {
	kv, err := s.GetKeyValueRaw(ctx, namespace, key)
	if err != nil {
		return nil, err
	}
	if _, err := s.exec(ctx, `DELETE FROM key_values WHERE namespace = ? AND key = ?`, namespace, key); err != nil {
		return nil, fmt.Errorf("deleting key value: %w", err)
	}
	s.deleted(kv)
	return kv, nil
}
