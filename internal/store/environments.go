// ABOUTME: Environment persistence
// ABOUTME: Environments are flat variable sets owned by a workspace

package store

import (
	"context"
	"fmt"
	"time"
)

const environmentColumns = `id, workspace_id, created_at, updated_at, name, variables`

func scanEnvironment(sc scanner) (*Environment, error) {
	var (
		e                         Environment
		created, updated, varsRaw string
	)
	if err := sc.Scan(&e.ID, &e.WorkspaceID, &created, &updated, &e.Name, &varsRaw); err != nil {
		return nil, err
	}
	var err error
	if e.CreatedAt, e.UpdatedAt, err = stamps(created, updated); err != nil {
		return nil, err
	}
	if e.Variables, err = decodeList[Variable](varsRaw); err != nil {
		return nil, err
	}
	e.Model = KindEnvironment
	return &e, nil
}

// GetEnvironment retrieves an environment by id.
func (s *SQLiteStore) GetEnvironment(ctx context.Context, id string) (*Environment, error) {
	return getOne(ctx, s, "environment", scanEnvironment,
		`SELECT `+environmentColumns+` FROM environments WHERE id = ?`, id)
}

// ListEnvironments returns a workspace's environments in creation order.
func (s *SQLiteStore) ListEnvironments(ctx context.Context, workspaceID string) ([]*Environment, error) {
	return listAll(ctx, s, "environments", scanEnvironment,
		`SELECT `+environmentColumns+` FROM environments WHERE workspace_id = ? ORDER BY created_at, rowid`,
		workspaceID)
}

// UpsertEnvironment inserts or overwrites an environment.
func (s *SQLiteStore) UpsertEnvironment(ctx context.Context, e *Environment) (_ *Environment, err error) {
	defer s.observe(KindEnvironment, "upsert", time.Now(), &err)

	id := ensureID(e.ID, prefixEnvironment)
	vars, err := encodeJSON(e.Variables)
	if err != nil {
		return nil, err
	}
	now := formatTime(s.now())

	_, err = s.exec(ctx, `
		INSERT INTO environments (id, workspace_id, created_at, updated_at, name, variables)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			updated_at = excluded.updated_at,
			name = excluded.name,
			variables = excluded.variables
	`, id, e.WorkspaceID, now, now, trimName(e.Name), vars)
	if err != nil {
		return nil, fmt.Errorf("upserting environment: %w", err)
	}

	out, err := s.GetEnvironment(ctx, id)
	if err != nil {
		return nil, err
	}
	s.upserted(out)
	return out, nil
}

// DeleteEnvironment removes an environment.
func (s *SQLiteStore) DeleteEnvironment(ctx context.Context, id string) (_ *Environment, err error) {
	defer s.observe(KindEnvironment, "delete", time.Now(), &err)

	e, err := s.GetEnvironment(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.deleteRow(ctx, "environments", id); err != nil {
		return nil, err
	}
	s.deleted(e)
	return e, nil
}
