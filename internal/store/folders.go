// ABOUTME: Folder persistence and the recursive folder delete cascade
// ABOUTME: Folder deletes walk child folders and requests through their own delete paths

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const folderColumns = `id, workspace_id, folder_id, created_at, updated_at, name, sort_priority`

func scanFolder(sc scanner) (*Folder, error) {
	var (
		f                Folder
		folderID         sql.NullString
		created, updated string
	)
	if err := sc.Scan(&f.ID, &f.WorkspaceID, &folderID, &created, &updated, &f.Name, &f.SortPriority); err != nil {
		return nil, err
	}
	var err error
	if f.CreatedAt, f.UpdatedAt, err = stamps(created, updated); err != nil {
		return nil, err
	}
	f.FolderID = stringPtr(folderID)
	f.Model = KindFolder
	return &f, nil
}

// GetFolder retrieves a folder by id.
func (s *SQLiteStore) GetFolder(ctx context.Context, id string) (*Folder, error) {
	return getOne(ctx, s, "folder", scanFolder,
		`SELECT `+folderColumns+` FROM folders WHERE id = ?`, id)
}

// ListFolders returns every folder in a workspace ordered by sort priority,
// ties broken by creation order.
func (s *SQLiteStore) ListFolders(ctx context.Context, workspaceID string) ([]*Folder, error) {
	return listAll(ctx, s, "folders", scanFolder,
		`SELECT `+folderColumns+` FROM folders WHERE workspace_id = ?
		ORDER BY sort_priority, created_at, rowid`, workspaceID)
}

// ListChildFolders returns the folders directly inside parentID.
func (s *SQLiteStore) ListChildFolders(ctx context.Context, parentID string) ([]*Folder, error) {
	return listAll(ctx, s, "folders", scanFolder,
		`SELECT `+folderColumns+` FROM folders WHERE folder_id = ?
		ORDER BY sort_priority, created_at, rowid`, parentID)
}

// UpsertFolder inserts or overwrites a folder.
func (s *SQLiteStore) UpsertFolder(ctx context.Context, f *Folder) (_ *Folder, err error) {
	defer s.observe(KindFolder, "upsert", time.Now(), &err)

	id := ensureID(f.ID, prefixFolder)
	if f.FolderID != nil {
		if err := s.checkFolderParent(ctx, id, *f.FolderID); err != nil {
			return nil, err
		}
	}
	now := formatTime(s.now())

	_, err = s.exec(ctx, `
		INSERT INTO folders (id, workspace_id, folder_id, created_at, updated_at, name, sort_priority)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			updated_at = excluded.updated_at,
			folder_id = excluded.folder_id,
			name = excluded.name,
			sort_priority = excluded.sort_priority
	`, id, f.WorkspaceID, nullString(f.FolderID), now, now, trimName(f.Name), f.SortPriority)
	if err != nil {
		return nil, fmt.Errorf("upserting folder: %w", err)
	}

	out, err := s.GetFolder(ctx, id)
	if err != nil {
		return nil, err
	}
	s.upserted(out)
	return out, nil
}

// checkFolderParent walks the ancestors of parentID and fails with
// ErrFolderCycle if id is among them.
func (s *SQLiteStore) checkFolderParent(ctx context.Context, id, parentID string) error {
	seen := map[string]bool{}
	for cur := parentID; cur != ""; {
		if cur == id {
			return fmt.Errorf("%w: %s cannot be placed inside %s", ErrFolderCycle, id, parentID)
		}
		if seen[cur] {
			// A cycle above id that id is not part of.
			return fmt.Errorf("%w: ancestors of %s loop at %s", ErrFolderCycle, parentID, cur)
		}
		seen[cur] = true

		parent, err := s.GetFolder(ctx, cur)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if parent.FolderID == nil {
			return nil
		}
		cur = *parent.FolderID
	}
	return nil
}

// DeleteFolder removes a folder after deleting everything inside it:
// child folders (recursively), HTTP requests with their responses, and
// gRPC requests with their connections.
func (s *SQLiteStore) DeleteFolder(ctx context.Context, id string) (_ *Folder, err error) {
	defer s.observe(KindFolder, "delete", time.Now(), &err)
	return s.deleteFolder(ctx, id, map[string]bool{})
}

// deleteFolder skips folders already in visited, so rows linked in a loop
// by older builds still delete.
func (s *SQLiteStore) deleteFolder(ctx context.Context, id string, visited map[string]bool) (*Folder, error) {
	visited[id] = true

	f, err := s.GetFolder(ctx, id)
	if err != nil {
		return nil, err
	}

	children, err := s.ListChildFolders(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		if visited[child.ID] {
			continue
		}
		if _, err := s.deleteFolder(ctx, child.ID, visited); err != nil {
			return nil, err
		}
	}

	httpRequests, err := listAll(ctx, s, "http requests", scanHTTPRequest,
		`SELECT `+httpRequestColumns+` FROM http_requests WHERE folder_id = ?`, id)
	if err != nil {
		return nil, err
	}
	for _, r := range httpRequests {
		if _, err := s.DeleteHTTPRequest(ctx, r.ID); err != nil {
			return nil, err
		}
	}

	grpcRequests, err := listAll(ctx, s, "grpc requests", scanGRPCRequest,
		`SELECT `+grpcRequestColumns+` FROM grpc_requests WHERE folder_id = ?`, id)
	if err != nil {
		return nil, err
	}
	for _, r := range grpcRequests {
		if _, err := s.DeleteGRPCRequest(ctx, r.ID); err != nil {
			return nil, err
		}
	}

	if err := s.deleteRow(ctx, "folders", id); err != nil {
		return nil, err
	}
	s.deleted(f)
	return f, nil
}
