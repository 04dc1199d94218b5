// ABOUTME: Tests for delete cascades and response body cleanup
// ABOUTME: Verifies ordering, completeness, and best-effort file removal

package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingRemover records paths and always fails.
type failingRemover struct {
	mu    sync.Mutex
	paths []string
}

func (f *failingRemover) Remove(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, path)
	return errors.New("permission denied")
}

func writeBody(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("body"), 0o600))
	return path
}

func seedResponse(t *testing.T, s *SQLiteStore, req *HTTPRequest, bodyPath string) *HTTPResponse {
	t.Helper()
	r := &HTTPResponse{WorkspaceID: req.WorkspaceID, RequestID: req.ID, Status: 200, Elapsed: 10}
	if bodyPath != "" {
		r.BodyPath = &bodyPath
	}
	out, err := s.UpsertHTTPResponse(t.Context(), r)
	require.NoError(t, err)
	return out
}

func channelsAndKinds(events []Notification) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Channel + ":" + e.Model.ModelKind()
	}
	return out
}

func TestDeleteWorkspace_RemovesResponsesAndBodies(t *testing.T) {
	s, rec := newTestStore(t)
	ctx := t.Context()
	bodies := t.TempDir()

	w := seedWorkspace(t, s, "Demo")
	req1 := seedHTTPRequest(t, s, w.ID, nil)
	req2 := seedHTTPRequest(t, s, w.ID, nil)
	p1 := writeBody(t, bodies, "one")
	p2 := writeBody(t, bodies, "two")
	seedResponse(t, s, req1, p1)
	seedResponse(t, s, req2, p2)
	seedResponse(t, s, req2, "")
	env, err := s.UpsertEnvironment(ctx, &Environment{WorkspaceID: w.ID, Name: "env"})
	require.NoError(t, err)
	rec.Reset()

	deleted, err := s.DeleteWorkspace(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, w.ID, deleted.ID)

	responses, err := s.ListHTTPResponsesByWorkspace(ctx, w.ID)
	require.NoError(t, err)
	assert.Empty(t, responses)
	assert.NoFileExists(t, p1)
	assert.NoFileExists(t, p2)

	// Foreign keys take the rest.
	_, err = s.GetHTTPRequest(ctx, req1.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetEnvironment(ctx, env.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, []string{
		"deleted:http_response",
		"deleted:http_response",
		"deleted:http_response",
		"deleted:workspace",
	}, channelsAndKinds(rec.Events()))
}

func TestDeleteHTTPRequest_ResponsesFirst(t *testing.T) {
	s, rec := newTestStore(t)
	ctx := t.Context()
	bodies := t.TempDir()

	w := seedWorkspace(t, s, "Demo")
	req := seedHTTPRequest(t, s, w.ID, nil)
	other := seedHTTPRequest(t, s, w.ID, nil)
	path := writeBody(t, bodies, "body")
	seedResponse(t, s, req, path)
	seedResponse(t, s, req, "")
	kept := seedResponse(t, s, other, "")
	rec.Reset()

	_, err := s.DeleteHTTPRequest(ctx, req.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"deleted:http_response",
		"deleted:http_response",
		"deleted:http_request",
	}, channelsAndKinds(rec.Events()))

	remaining, err := s.ListHTTPResponses(ctx, req.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, remaining)
	assert.NoFileExists(t, path)

	_, err = s.GetHTTPResponse(ctx, kept.ID)
	assert.NoError(t, err, "responses of other requests are untouched")
}

func TestDeleteHTTPResponse_BodyFailureDoesNotBlock(t *testing.T) {
	remover := &failingRemover{}
	s, rec := newTestStore(t, WithBodyRemover(remover))
	ctx := t.Context()

	w := seedWorkspace(t, s, "Demo")
	req := seedHTTPRequest(t, s, w.ID, nil)
	resp := seedResponse(t, s, req, "/nonexistent/body")
	rec.Reset()

	deleted, err := s.DeleteHTTPResponse(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, resp, deleted)
	assert.Equal(t, []string{"/nonexistent/body"}, remover.paths)

	_, err = s.GetHTTPResponse(ctx, resp.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, rec.Filter(ChannelDeleted, KindHTTPResponse), 1)
}

func TestDeleteHTTPResponse_MissingBodyFileIsFine(t *testing.T) {
	s, _ := newTestStore(t)
	w := seedWorkspace(t, s, "Demo")
	req := seedHTTPRequest(t, s, w.ID, nil)
	resp := seedResponse(t, s, req, filepath.Join(t.TempDir(), "already-gone"))

	_, err := s.DeleteHTTPResponse(t.Context(), resp.ID)
	assert.NoError(t, err)
}

func TestDeleteFolder_WalksSubtree(t *testing.T) {
	s, rec := newTestStore(t)
	ctx := t.Context()
	bodies := t.TempDir()

	w := seedWorkspace(t, s, "Demo")
	top, err := s.UpsertFolder(ctx, &Folder{WorkspaceID: w.ID, Name: "top"})
	require.NoError(t, err)
	child, err := s.UpsertFolder(ctx, &Folder{WorkspaceID: w.ID, FolderID: &top.ID, Name: "child"})
	require.NoError(t, err)
	sibling, err := s.UpsertFolder(ctx, &Folder{WorkspaceID: w.ID, Name: "sibling"})
	require.NoError(t, err)

	nested := seedHTTPRequest(t, s, w.ID, &child.ID)
	path := writeBody(t, bodies, "nested")
	seedResponse(t, s, nested, path)
	greq, err := s.UpsertGRPCRequest(ctx, &GRPCRequest{WorkspaceID: w.ID, FolderID: &top.ID, Name: "g"})
	require.NoError(t, err)
	rec.Reset()

	_, err = s.DeleteFolder(ctx, top.ID)
	require.NoError(t, err)

	assert.NoFileExists(t, path)
	_, err = s.GetFolder(ctx, child.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetHTTPRequest(ctx, nested.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetGRPCRequest(ctx, greq.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetFolder(ctx, sibling.ID)
	assert.NoError(t, err)

	assert.Equal(t, []string{
		"deleted:http_response",
		"deleted:http_request",
		"deleted:folder",
		"deleted:grpc_request",
		"deleted:folder",
	}, channelsAndKinds(rec.Events()))
}

func TestUpsertFolder_RejectsCycles(t *testing.T) {
	s, rec := newTestStore(t)
	ctx := t.Context()

	w := seedWorkspace(t, s, "Demo")
	a, err := s.UpsertFolder(ctx, &Folder{WorkspaceID: w.ID, Name: "a"})
	require.NoError(t, err)
	b, err := s.UpsertFolder(ctx, &Folder{WorkspaceID: w.ID, FolderID: &a.ID, Name: "b"})
	require.NoError(t, err)
	rec.Reset()

	self := *a
	self.FolderID = &a.ID
	_, err = s.UpsertFolder(ctx, &self)
	assert.ErrorIs(t, err, ErrFolderCycle)

	loop := *a
	loop.FolderID = &b.ID
	_, err = s.UpsertFolder(ctx, &loop)
	assert.ErrorIs(t, err, ErrFolderCycle)

	stored, err := s.GetFolder(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.FolderID, "rejected upserts must not write")
	assert.Empty(t, rec.Events())

	// Moving a folder under an unrelated sibling is still allowed.
	c, err := s.UpsertFolder(ctx, &Folder{WorkspaceID: w.ID, Name: "c"})
	require.NoError(t, err)
	b.FolderID = &c.ID
	_, err = s.UpsertFolder(ctx, b)
	assert.NoError(t, err)
}

func TestDeleteFolder_TerminatesOnStoredLoop(t *testing.T) {
	s, _ := newTestStore(t)
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	w := seedWorkspace(t, s, "Demo")
	a, err := s.UpsertFolder(ctx, &Folder{WorkspaceID: w.ID, Name: "a"})
	require.NoError(t, err)
	b, err := s.UpsertFolder(ctx, &Folder{WorkspaceID: w.ID, FolderID: &a.ID, Name: "b"})
	require.NoError(t, err)

	// Rows linked in a loop by a build that did not check parents.
	_, err = s.exec(ctx, `UPDATE folders SET folder_id = ? WHERE id = ?`, b.ID, a.ID)
	require.NoError(t, err)

	_, err = s.DeleteFolder(ctx, a.ID)
	require.NoError(t, err)

	_, err = s.GetFolder(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetFolder(ctx, b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteGRPCRequest_Cascades(t *testing.T) {
	s, rec := newTestStore(t)
	ctx := t.Context()

	w := seedWorkspace(t, s, "Demo")
	greq, err := s.UpsertGRPCRequest(ctx, &GRPCRequest{WorkspaceID: w.ID, Name: "g"})
	require.NoError(t, err)
	conn, err := s.UpsertGRPCConnection(ctx, &GRPCConnection{WorkspaceID: w.ID, RequestID: greq.ID})
	require.NoError(t, err)
	for range 2 {
		_, err := s.UpsertGRPCMessage(ctx, &GRPCMessage{WorkspaceID: w.ID, RequestID: greq.ID, ConnectionID: conn.ID})
		require.NoError(t, err)
	}
	rec.Reset()

	_, err = s.DeleteGRPCRequest(ctx, greq.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"deleted:grpc_message",
		"deleted:grpc_message",
		"deleted:grpc_connection",
		"deleted:grpc_request",
	}, channelsAndKinds(rec.Events()))

	conns, err := s.ListGRPCConnections(ctx, greq.ID)
	require.NoError(t, err)
	assert.Empty(t, conns)
}

func TestDeleteAllGRPCConnections(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := t.Context()

	w := seedWorkspace(t, s, "Demo")
	greq, err := s.UpsertGRPCRequest(ctx, &GRPCRequest{WorkspaceID: w.ID, Name: "g"})
	require.NoError(t, err)
	for range 3 {
		_, err := s.UpsertGRPCConnection(ctx, &GRPCConnection{WorkspaceID: w.ID, RequestID: greq.ID})
		require.NoError(t, err)
	}

	require.NoError(t, s.DeleteAllGRPCConnections(ctx, greq.ID))

	conns, err := s.ListGRPCConnections(ctx, greq.ID)
	require.NoError(t, err)
	assert.Empty(t, conns)
	_, err = s.GetGRPCRequest(ctx, greq.ID)
	assert.NoError(t, err, "the request itself survives")
}

func TestDeleteCookieJar(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := t.Context()
	w := seedWorkspace(t, s, "Demo")
	jar, err := s.UpsertCookieJar(ctx, &CookieJar{WorkspaceID: w.ID, Name: "jar"})
	require.NoError(t, err)

	_, err = s.DeleteCookieJar(ctx, jar.ID)
	require.NoError(t, err)
	_, err = s.DeleteCookieJar(ctx, jar.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
