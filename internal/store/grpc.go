// ABOUTME: gRPC request, connection and message persistence
// ABOUTME: Deletes cascade request -> connections -> messages through per-row deletes

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const grpcRequestColumns = `id, workspace_id, folder_id, created_at, updated_at, name, sort_priority,
	url, service, method, message, proto_files`

func scanGRPCRequest(sc scanner) (*GRPCRequest, error) {
	var (
		r                            GRPCRequest
		folderID, service, method    sql.NullString
		created, updated, protoFiles string
	)
	if err := sc.Scan(&r.ID, &r.WorkspaceID, &folderID, &created, &updated, &r.Name, &r.SortPriority,
		&r.URL, &service, &method, &r.Message, &protoFiles); err != nil {
		return nil, err
	}
	var err error
	if r.CreatedAt, r.UpdatedAt, err = stamps(created, updated); err != nil {
		return nil, err
	}
	if r.ProtoFiles, err = decodeList[string](protoFiles); err != nil {
		return nil, err
	}
	r.FolderID = stringPtr(folderID)
	r.Service = stringPtr(service)
	r.Method = stringPtr(method)
	r.Model = KindGRPCRequest
	return &r, nil
}

// GetGRPCRequest retrieves a gRPC request by id.
func (s *SQLiteStore) GetGRPCRequest(ctx context.Context, id string) (*GRPCRequest, error) {
	return getOne(ctx, s, "grpc request", scanGRPCRequest,
		`SELECT `+grpcRequestColumns+` FROM grpc_requests WHERE id = ?`, id)
}

// ListGRPCRequests returns a workspace's gRPC requests ordered by sort
// priority, ties broken by creation order.
func (s *SQLiteStore) ListGRPCRequests(ctx context.Context, workspaceID string) ([]*GRPCRequest, error) {
	return listAll(ctx, s, "grpc requests", scanGRPCRequest,
		`SELECT `+grpcRequestColumns+` FROM grpc_requests WHERE workspace_id = ?
		ORDER BY sort_priority, created_at, rowid`, workspaceID)
}

// UpsertGRPCRequest inserts or overwrites a gRPC request.
func (s *SQLiteStore) UpsertGRPCRequest(ctx context.Context, r *GRPCRequest) (_ *GRPCRequest, err error) {
	defer s.observe(KindGRPCRequest, "upsert", time.Now(), &err)

	id := ensureID(r.ID, prefixGRPCRequest)
	protoFiles, err := encodeJSON(r.ProtoFiles)
	if err != nil {
		return nil, err
	}
	now := formatTime(s.now())

	_, err = s.exec(ctx, `
		INSERT INTO grpc_requests (
			id, workspace_id, folder_id, created_at, updated_at, name, sort_priority,
			url, service, method, message, proto_files
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			updated_at = excluded.updated_at,
			workspace_id = excluded.workspace_id,
			folder_id = excluded.folder_id,
			name = excluded.name,
			sort_priority = excluded.sort_priority,
			url = excluded.url,
			service = excluded.service,
			method = excluded.method,
			message = excluded.message,
			proto_files = excluded.proto_files
	`, id, r.WorkspaceID, nullString(r.FolderID), now, now, trimName(r.Name), r.SortPriority,
		r.URL, nullString(r.Service), nullString(r.Method), r.Message, protoFiles)
	if err != nil {
		return nil, fmt.Errorf("upserting grpc request: %w", err)
	}

	out, err := s.GetGRPCRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	s.upserted(out)
	return out, nil
}

// DuplicateGRPCRequest copies a gRPC request under a new id.
func (s *SQLiteStore) DuplicateGRPCRequest(ctx context.Context, id string) (*GRPCRequest, error) {
	r, err := s.GetGRPCRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	r.ID = ""
	return s.UpsertGRPCRequest(ctx, r)
}

// DeleteGRPCRequest removes a gRPC request after deleting its connections.
func (s *SQLiteStore) DeleteGRPCRequest(ctx context.Context, id string) (_ *GRPCRequest, err error) {
	defer s.observe(KindGRPCRequest, "delete", time.Now(), &err)

	r, err := s.GetGRPCRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.DeleteAllGRPCConnections(ctx, id); err != nil {
		return nil, err
	}
	if err := s.deleteRow(ctx, "grpc_requests", id); err != nil {
		return nil, err
	}
	s.deleted(r)
	return r, nil
}

const grpcConnectionColumns = `id, workspace_id, request_id, created_at, updated_at, service, method, elapsed`

func scanGRPCConnection(sc scanner) (*GRPCConnection, error) {
	var (
		c                GRPCConnection
		created, updated string
	)
	if err := sc.Scan(&c.ID, &c.WorkspaceID, &c.RequestID, &created, &updated,
		&c.Service, &c.Method, &c.Elapsed); err != nil {
		return nil, err
	}
	var err error
	if c.CreatedAt, c.UpdatedAt, err = stamps(created, updated); err != nil {
		return nil, err
	}
	c.Model = KindGRPCConnection
	return &c, nil
}

// GetGRPCConnection retrieves a connection by id.
func (s *SQLiteStore) GetGRPCConnection(ctx context.Context, id string) (*GRPCConnection, error) {
	return getOne(ctx, s, "grpc connection", scanGRPCConnection,
		`SELECT `+grpcConnectionColumns+` FROM grpc_connections WHERE id = ?`, id)
}

// ListGRPCConnections returns a request's connections newest first.
func (s *SQLiteStore) ListGRPCConnections(ctx context.Context, requestID string) ([]*GRPCConnection, error) {
	return listAll(ctx, s, "grpc connections", scanGRPCConnection,
		`SELECT `+grpcConnectionColumns+` FROM grpc_connections WHERE request_id = ?
		ORDER BY created_at DESC, rowid DESC`, requestID)
}

// UpsertGRPCConnection inserts or overwrites a connection.
func (s *SQLiteStore) UpsertGRPCConnection(ctx context.Context, c *GRPCConnection) (_ *GRPCConnection, err error) {
	defer s.observe(KindGRPCConnection, "upsert", time.Now(), &err)

	id := ensureID(c.ID, prefixGRPCConnection)
	now := formatTime(s.now())

	_, err = s.exec(ctx, `
		INSERT INTO grpc_connections (id, workspace_id, request_id, created_at, updated_at, service, method, elapsed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			updated_at = excluded.updated_at,
			service = excluded.service,
			method = excluded.method,
			elapsed = excluded.elapsed
	`, id, c.WorkspaceID, c.RequestID, now, now, c.Service, c.Method, c.Elapsed)
	if err != nil {
		return nil, fmt.Errorf("upserting grpc connection: %w", err)
	}

	out, err := s.GetGRPCConnection(ctx, id)
	if err != nil {
		return nil, err
	}
	s.upserted(out)
	return out, nil
}

// DeleteGRPCConnection removes a connection after deleting its messages.
func (s *SQLiteStore) DeleteGRPCConnection(ctx context.Context, id string) (_ *GRPCConnection, err error) {
	defer s.observe(KindGRPCConnection, "delete", time.Now(), &err)

	c, err := s.GetGRPCConnection(ctx, id)
	if err != nil {
		return nil, err
	}

	messages, err := s.ListGRPCMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, m := range messages {
		if _, err := s.DeleteGRPCMessage(ctx, m.ID); err != nil {
			return nil, err
		}
	}

	if err := s.deleteRow(ctx, "grpc_connections", id); err != nil {
		return nil, err
	}
	s.deleted(c)
	return c, nil
}

// DeleteAllGRPCConnections deletes every connection of a request.
func (s *SQLiteStore) DeleteAllGRPCConnections(ctx context.Context, requestID string) error {
	connections, err := s.ListGRPCConnections(ctx, requestID)
	if err != nil {
		return err
	}
	for _, c := range connections {
		if _, err := s.DeleteGRPCConnection(ctx, c.ID); err != nil {
			return err
		}
	}
	return nil
}

const grpcMessageColumns = `id, workspace_id, request_id, connection_id, created_at, updated_at,
	message, is_server, is_info`

func scanGRPCMessage(sc scanner) (*GRPCMessage, error) {
	var (
		m                GRPCMessage
		created, updated string
	)
	if err := sc.Scan(&m.ID, &m.WorkspaceID, &m.RequestID, &m.ConnectionID, &created, &updated,
		&m.Message, &m.IsServer, &m.IsInfo); err != nil {
		return nil, err
	}
	var err error
	if m.CreatedAt, m.UpdatedAt, err = stamps(created, updated); err != nil {
		return nil, err
	}
	m.Model = KindGRPCMessage
	return &m, nil
}

// GetGRPCMessage retrieves a message by id.
func (s *SQLiteStore) GetGRPCMessage(ctx context.Context, id string) (*GRPCMessage, error) {
	return getOne(ctx, s, "grpc message", scanGRPCMessage,
		`SELECT `+grpcMessageColumns+` FROM grpc_messages WHERE id = ?`, id)
}

// ListGRPCMessages returns a connection's messages oldest first.
func (s *SQLiteStore) ListGRPCMessages(ctx context.Context, connectionID string) ([]*GRPCMessage, error) {
	return listAll(ctx, s, "grpc messages", scanGRPCMessage,
		`SELECT `+grpcMessageColumns+` FROM grpc_messages WHERE connection_id = ?
		ORDER BY created_at, rowid`, connectionID)
}

// UpsertGRPCMessage inserts or overwrites a message.
func (s *SQLiteStore) UpsertGRPCMessage(ctx context.Context, m *GRPCMessage) (_ *GRPCMessage, err error) {
	defer s.observe(KindGRPCMessage, "upsert", time.Now(), &err)

	id := ensureID(m.ID, prefixGRPCMessage)
	now := formatTime(s.now())

	_, err = s.exec(ctx, `
		INSERT INTO grpc_messages (
			id, workspace_id, request_id, connection_id, created_at, updated_at, message, is_server, is_info
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			updated_at = excluded.updated_at,
			message = excluded.message,
			is_server = excluded.is_server,
			is_info = excluded.is_info
	`, id, m.WorkspaceID, m.RequestID, m.ConnectionID, now, now, m.Message, m.IsServer, m.IsInfo)
	if err != nil {
		return nil, fmt.Errorf("upserting grpc message: %w", err)
	}

	out, err := s.GetGRPCMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	s.upserted(out)
	return out, nil
}

// DeleteGRPCMessage removes a message.
func (s *SQLiteStore) DeleteGRPCMessage(ctx context.Context, id string) (_ *GRPCMessage, err error) {
	defer s.observe(KindGRPCMessage, "delete", time.Now(), &err)

	m, err := s.GetGRPCMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.deleteRow(ctx, "grpc_messages", id); err != nil {
		return nil, err
	}
	s.deleted(m)
	return m, nil
}
