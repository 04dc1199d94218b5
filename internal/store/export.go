// ABOUTME: Read-only workspace export snapshots
// ABOUTME: Assembled from the store's own list operations

package store

import (
	"context"
	"time"
)

// ExportSchema is the schema version written into every export.
const ExportSchema = 1

// WorkspaceExport is a snapshot of one workspace's definitions.
type WorkspaceExport struct {
	Version   string          `json:"version"`
	Schema    int             `json:"schema"`
	Timestamp time.Time       `json:"timestamp"`
	Resources ExportResources `json:"resources"`
}

// ExportResources holds the exported entities. Responses, connections
// and cookie jars are runtime state and are not exported.
type ExportResources struct {
	Workspaces   []*Workspace   `json:"workspaces"`
	Environments []*Environment `json:"environments"`
	Folders      []*Folder      `json:"folders"`
	HTTPRequests []*HTTPRequest `json:"requests"`
	GRPCRequests []*GRPCRequest `json:"grpcRequests"`
}

// ExportWorkspace snapshots a workspace and its definitions. version is
// the application version recorded in the bundle.
func (s *SQLiteStore) ExportWorkspace(ctx context.Context, workspaceID, version string) (*WorkspaceExport, error) {
	w, err := s.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	environments, err := s.ListEnvironments(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	folders, err := s.ListFolders(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	httpRequests, err := s.ListHTTPRequests(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	grpcRequests, err := s.ListGRPCRequests(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	return &WorkspaceExport{
		Version:   version,
		Schema:    ExportSchema,
		Timestamp: time.Now().UTC(),
		Resources: ExportResources{
			Workspaces:   []*Workspace{w},
			Environments: nonNil(environments),
			Folders:      nonNil(folders),
			HTTPRequests: nonNil(httpRequests),
			GRPCRequests: nonNil(grpcRequests),
		},
	}, nil
}

// nonNil keeps empty collections serializing as [] instead of null.
func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
