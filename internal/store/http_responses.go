// ABOUTME: HTTP response persistence and body file cleanup on delete
// ABOUTME: Body removal is best effort and never blocks the row delete

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const httpResponseColumns = `id, workspace_id, request_id, created_at, updated_at, error, url,
	content_length, version, elapsed, elapsed_headers, remote_addr, status, status_reason,
	body_path, headers`

func scanHTTPResponse(sc scanner) (*HTTPResponse, error) {
	var (
		r                                   HTTPResponse
		errMsg, version, remoteAddr, reason sql.NullString
		bodyPath                            sql.NullString
		contentLength                       sql.NullInt64
		created, updated, headersRaw        string
	)
	if err := sc.Scan(&r.ID, &r.WorkspaceID, &r.RequestID, &created, &updated, &errMsg, &r.URL,
		&contentLength, &version, &r.Elapsed, &r.ElapsedHeaders, &remoteAddr, &r.Status, &reason,
		&bodyPath, &headersRaw); err != nil {
		return nil, err
	}
	var err error
	if r.CreatedAt, r.UpdatedAt, err = stamps(created, updated); err != nil {
		return nil, err
	}
	if r.Headers, err = decodeList[ResponseHeader](headersRaw); err != nil {
		return nil, err
	}
	r.Error = stringPtr(errMsg)
	r.ContentLength = int64Ptr(contentLength)
	r.Version = stringPtr(version)
	r.RemoteAddr = stringPtr(remoteAddr)
	r.StatusReason = stringPtr(reason)
	r.BodyPath = stringPtr(bodyPath)
	r.Model = KindHTTPResponse
	return &r, nil
}

// GetHTTPResponse retrieves a response by id.
func (s *SQLiteStore) GetHTTPResponse(ctx context.Context, id string) (*HTTPResponse, error) {
	return getOne(ctx, s, "http response", scanHTTPResponse,
		`SELECT `+httpResponseColumns+` FROM http_responses WHERE id = ?`, id)
}

// ListHTTPResponses returns a request's responses newest first.
// A limit of zero or less returns all of them.
func (s *SQLiteStore) ListHTTPResponses(ctx context.Context, requestID string, limit int) ([]*HTTPResponse, error) {
	if limit <= 0 {
		limit = -1
	}
	return listAll(ctx, s, "http responses", scanHTTPResponse,
		`SELECT `+httpResponseColumns+` FROM http_responses WHERE request_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, requestID, limit)
}

// ListHTTPResponsesByWorkspace returns every response in a workspace newest first.
func (s *SQLiteStore) ListHTTPResponsesByWorkspace(ctx context.Context, workspaceID string) ([]*HTTPResponse, error) {
	return listAll(ctx, s, "http responses", scanHTTPResponse,
		`SELECT `+httpResponseColumns+` FROM http_responses WHERE workspace_id = ?
		ORDER BY created_at DESC, rowid DESC`, workspaceID)
}

// UpsertHTTPResponse inserts or overwrites a response. Request execution
// calls this once when a request starts (elapsed 0) and again when it
// completes.
func (s *SQLiteStore) UpsertHTTPResponse(ctx context.Context, r *HTTPResponse) (_ *HTTPResponse, err error) {
	defer s.observe(KindHTTPResponse, "upsert", time.Now(), &err)

	id := ensureID(r.ID, prefixHTTPResponse)
	headers, err := encodeJSON(r.Headers)
	if err != nil {
		return nil, err
	}
	now := formatTime(s.now())

	_, err = s.exec(ctx, `
		INSERT INTO http_responses (
			id, workspace_id, request_id, created_at, updated_at, error, url, content_length,
			version, elapsed, elapsed_headers, remote_addr, status, status_reason, body_path, headers
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			updated_at = excluded.updated_at,
			error = excluded.error,
			url = excluded.url,
			content_length = excluded.content_length,
			version = excluded.version,
			elapsed = excluded.elapsed,
			elapsed_headers = excluded.elapsed_headers,
			remote_addr = excluded.remote_addr,
			status = excluded.status,
			status_reason = excluded.status_reason,
			body_path = excluded.body_path,
			headers = excluded.headers
	`, id, r.WorkspaceID, r.RequestID, now, now, nullString(r.Error), r.URL, nullInt(r.ContentLength),
		nullString(r.Version), r.Elapsed, r.ElapsedHeaders, nullString(r.RemoteAddr), r.Status,
		nullString(r.StatusReason), nullString(r.BodyPath), headers)
	if err != nil {
		return nil, fmt.Errorf("upserting http response: %w", err)
	}

	out, err := s.GetHTTPResponse(ctx, id)
	if err != nil {
		return nil, err
	}
	s.upserted(out)
	return out, nil
}

// DeleteHTTPResponse removes a response and its body file. A body file
// that cannot be removed is logged and counted; the row is deleted anyway.
func (s *SQLiteStore) DeleteHTTPResponse(ctx context.Context, id string) (_ *HTTPResponse, err error) {
	defer s.observe(KindHTTPResponse, "delete", time.Now(), &err)

	r, err := s.GetHTTPResponse(ctx, id)
	if err != nil {
		return nil, err
	}

	if r.BodyPath != nil && *r.BodyPath != "" {
		if rmErr := s.bodies.Remove(ctx, *r.BodyPath); rmErr != nil {
			s.logger.Error("failed to remove response body", "id", id, "path", *r.BodyPath, "error", rmErr)
			s.metrics.BodyCleanupFailed()
		}
	}

	if err := s.deleteRow(ctx, "http_responses", id); err != nil {
		return nil, err
	}
	s.deleted(r)
	return r, nil
}

// DeleteAllHTTPResponses deletes every response of a request through
// DeleteHTTPResponse so each body file is cleaned up.
func (s *SQLiteStore) DeleteAllHTTPResponses(ctx context.Context, requestID string) error {
	responses, err := s.ListHTTPResponses(ctx, requestID, 0)
	if err != nil {
		return err
	}
	for _, r := range responses {
		if _, err := s.DeleteHTTPResponse(ctx, r.ID); err != nil {
			return err
		}
	}
	return nil
}
