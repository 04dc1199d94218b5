// ABOUTME: Workspace persistence and the workspace delete cascade
// ABOUTME: Responses are removed explicitly so their body files are cleaned up

package store

import (
	"context"
	"fmt"
	"time"
)

const workspaceColumns = `id, created_at, updated_at, name, description, variables,
	setting_validate_certificates, setting_follow_redirects, setting_request_timeout`

func scanWorkspace(sc scanner) (*Workspace, error) {
	var (
		w                         Workspace
		created, updated, varsRaw string
	)
	if err := sc.Scan(&w.ID, &created, &updated, &w.Name, &w.Description, &varsRaw,
		&w.SettingValidateCertificates, &w.SettingFollowRedirects, &w.SettingRequestTimeout); err != nil {
		return nil, err
	}
	var err error
	if w.CreatedAt, w.UpdatedAt, err = stamps(created, updated); err != nil {
		return nil, err
	}
	if w.Variables, err = decodeList[Variable](varsRaw); err != nil {
		return nil, err
	}
	w.Model = KindWorkspace
	return &w, nil
}

// GetWorkspace retrieves a workspace by id.
func (s *SQLiteStore) GetWorkspace(ctx context.Context, id string) (*Workspace, error) {
	return getOne(ctx, s, "workspace", scanWorkspace,
		`SELECT `+workspaceColumns+` FROM workspaces WHERE id = ?`, id)
}

// ListWorkspaces returns every workspace in creation order.
func (s *SQLiteStore) ListWorkspaces(ctx context.Context) ([]*Workspace, error) {
	return listAll(ctx, s, "workspaces", scanWorkspace,
		`SELECT `+workspaceColumns+` FROM workspaces ORDER BY created_at, rowid`)
}

// UpsertWorkspace inserts w, or overwrites the existing row with the same id.
func (s *SQLiteStore) UpsertWorkspace(ctx context.Context, w *Workspace) (_ *Workspace, err error) {
	defer s.observe(KindWorkspace, "upsert", time.Now(), &err)

	id := ensureID(w.ID, prefixWorkspace)
	vars, err := encodeJSON(w.Variables)
	if err != nil {
		return nil, err
	}
	now := formatTime(s.now())

	_, err = s.exec(ctx, `
		INSERT INTO workspaces (
			id, created_at, updated_at, name, description, variables,
			setting_validate_certificates, setting_follow_redirects, setting_request_timeout
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			updated_at = excluded.updated_at,
			name = excluded.name,
			description = excluded.description,
			variables = excluded.variables,
			setting_validate_certificates = excluded.setting_validate_certificates,
			setting_follow_redirects = excluded.setting_follow_redirects,
			setting_request_timeout = excluded.setting_request_timeout
	`, id, now, now, trimName(w.Name), w.Description, vars,
		w.SettingValidateCertificates, w.SettingFollowRedirects, w.SettingRequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("upserting workspace: %w", err)
	}

	out, err := s.GetWorkspace(ctx, id)
	if err != nil {
		return nil, err
	}
	s.upserted(out)
	return out, nil
}

// DeleteWorkspace removes a workspace. Its HTTP responses are deleted first,
// one at a time, so body files are removed; the remaining children go with
// the row through foreign key cascades.
func (s *SQLiteStore) DeleteWorkspace(ctx context.Context, id string) (_ *Workspace, err error) {
	defer s.observe(KindWorkspace, "delete", time.Now(), &err)

	w, err := s.GetWorkspace(ctx, id)
	if err != nil {
		return nil, err
	}

	responses, err := s.ListHTTPResponsesByWorkspace(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, r := range responses {
		if _, err := s.DeleteHTTPResponse(ctx, r.ID); err != nil {
			return nil, fmt.Errorf("deleting workspace responses: %w", err)
		}
	}

	if err := s.deleteRow(ctx, "workspaces", id); err != nil {
		return nil, err
	}
	s.deleted(w)
	return w, nil
}
