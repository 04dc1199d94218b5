// ABOUTME: HTTP request persistence, duplication, and the request delete cascade
// ABOUTME: Body and authentication payloads are stored as JSON columns

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const httpRequestColumns = `id, workspace_id, folder_id, created_at, updated_at, name, sort_priority,
	url, url_parameters, method, body, body_type, authentication, authentication_type, headers`

func scanHTTPRequest(sc scanner) (*HTTPRequest, error) {
	var (
		r                            HTTPRequest
		folderID, bodyType, authType sql.NullString
		created, updated             string
		paramsRaw, bodyRaw, authRaw  string
		headersRaw                   string
	)
	if err := sc.Scan(&r.ID, &r.WorkspaceID, &folderID, &created, &updated, &r.Name, &r.SortPriority,
		&r.URL, &paramsRaw, &r.Method, &bodyRaw, &bodyType, &authRaw, &authType, &headersRaw); err != nil {
		return nil, err
	}
	var err error
	if r.CreatedAt, r.UpdatedAt, err = stamps(created, updated); err != nil {
		return nil, err
	}
	if r.URLParameters, err = decodeList[Header](paramsRaw); err != nil {
		return nil, err
	}
	if r.Headers, err = decodeList[Header](headersRaw); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(bodyRaw), &r.Body); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(authRaw), &r.Authentication); err != nil {
		return nil, err
	}
	r.FolderID = stringPtr(folderID)
	r.BodyType = stringPtr(bodyType)
	r.AuthenticationType = stringPtr(authType)
	r.Model = KindHTTPRequest
	return &r, nil
}

// GetHTTPRequest retrieves an HTTP request by id.
func (s *SQLiteStore) GetHTTPRequest(ctx context.Context, id string) (*HTTPRequest, error) {
	return getOne(ctx, s, "http request", scanHTTPRequest,
		`SELECT `+httpRequestColumns+` FROM http_requests WHERE id = ?`, id)
}

// ListHTTPRequests returns every HTTP request in a workspace ordered by
// sort priority, ties broken by creation order.
func (s *SQLiteStore) ListHTTPRequests(ctx context.Context, workspaceID string) ([]*HTTPRequest, error) {
	return listAll(ctx, s, "http requests", scanHTTPRequest,
		`SELECT `+httpRequestColumns+` FROM http_requests WHERE workspace_id = ?
		ORDER BY sort_priority, created_at, rowid`, workspaceID)
}

// UpsertHTTPRequest inserts or overwrites an HTTP request. An empty method
// is stored as GET.
func (s *SQLiteStore) UpsertHTTPRequest(ctx context.Context, r *HTTPRequest) (_ *HTTPRequest, err error) {
	defer s.observe(KindHTTPRequest, "upsert", time.Now(), &err)

	id := ensureID(r.ID, prefixHTTPRequest)
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	params, err := encodeJSON(r.URLParameters)
	if err != nil {
		return nil, err
	}
	headers, err := encodeJSON(r.Headers)
	if err != nil {
		return nil, err
	}
	body, err := encodeJSON(r.Body)
	if err != nil {
		return nil, err
	}
	auth, err := encodeJSON(r.Authentication)
	if err != nil {
		return nil, err
	}
	now := formatTime(s.now())

	_, err = s.exec(ctx, `
		INSERT INTO http_requests (
			id, workspace_id, folder_id, created_at, updated_at, name, sort_priority,
			url, url_parameters, method, body, body_type, authentication, authentication_type, headers
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			updated_at = excluded.updated_at,
			workspace_id = excluded.workspace_id,
			folder_id = excluded.folder_id,
			name = excluded.name,
			sort_priority = excluded.sort_priority,
			url = excluded.url,
			url_parameters = excluded.url_parameters,
			method = excluded.method,
			body = excluded.body,
			body_type = excluded.body_type,
			authentication = excluded.authentication,
			authentication_type = excluded.authentication_type,
			headers = excluded.headers
	`, id, r.WorkspaceID, nullString(r.FolderID), now, now, trimName(r.Name), r.SortPriority,
		r.URL, params, method, body, nullString(r.BodyType), auth, nullString(r.AuthenticationType), headers)
	if err != nil {
		return nil, fmt.Errorf("upserting http request: %w", err)
	}

	out, err := s.GetHTTPRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	s.upserted(out)
	return out, nil
}

// DuplicateHTTPRequest copies a request under a new id.
func (s *SQLiteStore) DuplicateHTTPRequest(ctx context.Context, id string) (*HTTPRequest, error) {
	r, err := s.GetHTTPRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	r.ID = ""
	return s.UpsertHTTPRequest(ctx, r)
}

// DeleteHTTPRequest removes a request after deleting all of its responses.
func (s *SQLiteStore) DeleteHTTPRequest(ctx context.Context, id string) (_ *HTTPRequest, err error) {
	defer s.observe(KindHTTPRequest, "delete", time.Now(), &err)

	r, err := s.GetHTTPRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.DeleteAllHTTPResponses(ctx, id); err != nil {
		return nil, err
	}
	if err := s.deleteRow(ctx, "http_requests", id); err != nil {
		return nil, err
	}
	s.deleted(r)
	return r, nil
}
