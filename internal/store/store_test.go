// ABOUTME: Tests for the upsert, get, list and notification contract
// ABOUTME: Covers id assignment, timestamps, round trips and ordering across kinds

package store

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts ...Option) (*SQLiteStore, *RecordingNotifier) {
	t.Helper()
	rec := &RecordingNotifier{}
	opts = append([]Option{WithNotifier(rec)}, opts...)
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, rec
}

func seedWorkspace(t *testing.T, s *SQLiteStore, name string) *Workspace {
	t.Helper()
	w, err := s.UpsertWorkspace(t.Context(), NewWorkspace(name))
	require.NoError(t, err)
	return w
}

func seedHTTPRequest(t *testing.T, s *SQLiteStore, workspaceID string, folderID *string) *HTTPRequest {
	t.Helper()
	r, err := s.UpsertHTTPRequest(t.Context(), &HTTPRequest{
		WorkspaceID: workspaceID,
		FolderID:    folderID,
		Name:        "req",
		URL:         "https://example.com",
	})
	require.NoError(t, err)
	return r
}

func ptr[T any](v T) *T { return &v }

func TestUpsert_AssignsPrefixedIDs(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := t.Context()

	w := seedWorkspace(t, s, "Demo")
	env, err := s.UpsertEnvironment(ctx, &Environment{WorkspaceID: w.ID, Name: "prod"})
	require.NoError(t, err)
	folder, err := s.UpsertFolder(ctx, &Folder{WorkspaceID: w.ID, Name: "f"})
	require.NoError(t, err)
	req := seedHTTPRequest(t, s, w.ID, nil)
	resp, err := s.UpsertHTTPResponse(ctx, &HTTPResponse{WorkspaceID: w.ID, RequestID: req.ID})
	require.NoError(t, err)
	greq, err := s.UpsertGRPCRequest(ctx, &GRPCRequest{WorkspaceID: w.ID, Name: "g"})
	require.NoError(t, err)
	conn, err := s.UpsertGRPCConnection(ctx, &GRPCConnection{WorkspaceID: w.ID, RequestID: greq.ID})
	require.NoError(t, err)
	msg, err := s.UpsertGRPCMessage(ctx, &GRPCMessage{WorkspaceID: w.ID, RequestID: greq.ID, ConnectionID: conn.ID})
	require.NoError(t, err)
	jar, err := s.UpsertCookieJar(ctx, &CookieJar{WorkspaceID: w.ID, Name: "jar"})
	require.NoError(t, err)

	tests := []struct {
		id     string
		prefix string
	}{
		{w.ID, "wk_"},
		{env.ID, "ev_"},
		{folder.ID, "fl_"},
		{req.ID, "rq_"},
		{resp.ID, "rp_"},
		{greq.ID, "gr_"},
		{conn.ID, "gc_"},
		{msg.ID, "gm_"},
		{jar.ID, "cj_"},
	}
	for _, tt := range tests {
		assert.True(t, strings.HasPrefix(tt.id, tt.prefix), "id %q should start with %q", tt.id, tt.prefix)
		assert.Len(t, tt.id, len(tt.prefix)+10)
	}
}

func TestUpsert_NewEntityTimestampsMatch(t *testing.T) {
	s, _ := newTestStore(t)

	w := seedWorkspace(t, s, "Demo")

	assert.False(t, w.CreatedAt.IsZero())
	assert.Equal(t, w.CreatedAt, w.UpdatedAt)
	assert.Equal(t, KindWorkspace, w.Model)
}

func TestUpsert_ExistingPreservesCreatedAndAdvancesUpdated(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := t.Context()

	first := seedWorkspace(t, s, "Demo")
	first.Description = "changed"
	second, err := s.UpsertWorkspace(ctx, first)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
	assert.Equal(t, "changed", second.Description)

	all, err := s.ListWorkspaces(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "re-upserting an id must update in place")
}

func TestUpsert_Idempotent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := t.Context()

	w := seedWorkspace(t, s, "Demo")
	req := seedHTTPRequest(t, s, w.ID, nil)

	a, err := s.UpsertHTTPRequest(ctx, req)
	require.NoError(t, err)
	b, err := s.UpsertHTTPRequest(ctx, req)
	require.NoError(t, err)

	assert.True(t, b.UpdatedAt.After(a.UpdatedAt))
	a.UpdatedAt, b.UpdatedAt = req.UpdatedAt, req.UpdatedAt
	assert.Equal(t, a, b)
}

func TestUpsert_TrimsNames(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := t.Context()

	w := seedWorkspace(t, s, "  Demo  ")
	assert.Equal(t, "Demo", w.Name)

	req, err := s.UpsertHTTPRequest(ctx, &HTTPRequest{WorkspaceID: w.ID, Name: " My Req "})
	require.NoError(t, err)
	assert.Equal(t, "My Req", req.Name)
	assert.True(t, strings.HasPrefix(req.ID, "rq_"))

	got, err := s.GetHTTPRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "My Req", got.Name)
}

func TestUpsert_UnknownParentFails(t *testing.T) {
	s, rec := newTestStore(t)

	_, err := s.UpsertEnvironment(t.Context(), &Environment{WorkspaceID: "wk_missing", Name: "x"})
	require.Error(t, err)
	assert.Empty(t, rec.Events())
}

func TestHTTPRequest_RoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := t.Context()
	w := seedWorkspace(t, s, "Demo")
	folder, err := s.UpsertFolder(ctx, &Folder{WorkspaceID: w.ID, Name: "api"})
	require.NoError(t, err)

	want := &HTTPRequest{
		WorkspaceID:   w.ID,
		FolderID:      &folder.ID,
		Name:          "Create user",
		SortPriority:  2.5,
		URL:           "https://api.example.com/users",
		URLParameters: []Header{{Enabled: true, Name: "page", Value: "1"}},
		Method:        "POST",
		Body: Body{
			Text:  `{"name":"ada"}`,
			Extra: map[string]json.RawMessage{"variables": json.RawMessage(`{"x":1}`)},
		},
		BodyType: ptr(BodyTypeJSON),
		Authentication: Authentication{
			Token: "secret",
			Extra: map[string]json.RawMessage{"prefix": json.RawMessage(`"Bearer"`)},
		},
		AuthenticationType: ptr(AuthTypeBearer),
		Headers:            []Header{{Enabled: true, Name: "Accept", Value: "application/json"}},
	}

	created, err := s.UpsertHTTPRequest(ctx, want)
	require.NoError(t, err)
	got, err := s.GetHTTPRequest(ctx, created.ID)
	require.NoError(t, err)

	want.ID = created.ID
	want.Model = KindHTTPRequest
	want.CreatedAt, want.UpdatedAt = got.CreatedAt, got.UpdatedAt
	assert.Equal(t, want, got)
}

func TestHTTPRequest_DefaultsMethodToGET(t *testing.T) {
	s, _ := newTestStore(t)
	w := seedWorkspace(t, s, "Demo")

	req := seedHTTPRequest(t, s, w.ID, nil)
	assert.Equal(t, "GET", req.Method)
	assert.Nil(t, req.FolderID)
	assert.Nil(t, req.BodyType)
}

func TestHTTPResponse_RoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := t.Context()
	w := seedWorkspace(t, s, "Demo")
	req := seedHTTPRequest(t, s, w.ID, nil)

	want := &HTTPResponse{
		WorkspaceID:    w.ID,
		RequestID:      req.ID,
		URL:            "https://example.com",
		ContentLength:  ptr(int64(42)),
		Version:        ptr("HTTP/2.0"),
		Elapsed:        120,
		ElapsedHeaders: 80,
		RemoteAddr:     ptr("93.184.216.34:443"),
		Status:         200,
		StatusReason:   ptr("OK"),
		BodyPath:       ptr("/tmp/body"),
		Headers:        []ResponseHeader{{Name: "Content-Type", Value: "text/html"}},
	}

	created, err := s.UpsertHTTPResponse(ctx, want)
	require.NoError(t, err)
	got, err := s.GetHTTPResponse(ctx, created.ID)
	require.NoError(t, err)

	want.ID = created.ID
	want.Model = KindHTTPResponse
	want.CreatedAt, want.UpdatedAt = got.CreatedAt, got.UpdatedAt
	assert.Equal(t, want, got)
}

func TestGRPC_RoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := t.Context()
	w := seedWorkspace(t, s, "Demo")

	want := &GRPCRequest{
		WorkspaceID: w.ID,
		Name:        "Greeter",
		URL:         "localhost:50051",
		Service:     ptr("helloworld.Greeter"),
		Method:      ptr("SayHello"),
		Message:     `{"name":"world"}`,
		ProtoFiles:  []string{"/protos/hello.proto"},
	}
	created, err := s.UpsertGRPCRequest(ctx, want)
	require.NoError(t, err)
	got, err := s.GetGRPCRequest(ctx, created.ID)
	require.NoError(t, err)

	want.ID = created.ID
	want.Model = KindGRPCRequest
	want.CreatedAt, want.UpdatedAt = got.CreatedAt, got.UpdatedAt
	assert.Equal(t, want, got)

	conn, err := s.UpsertGRPCConnection(ctx, &GRPCConnection{
		WorkspaceID: w.ID, RequestID: created.ID, Service: "helloworld.Greeter", Method: "SayHello",
	})
	require.NoError(t, err)
	msg, err := s.UpsertGRPCMessage(ctx, &GRPCMessage{
		WorkspaceID: w.ID, RequestID: created.ID, ConnectionID: conn.ID, Message: "hi", IsServer: true,
	})
	require.NoError(t, err)

	gotMsg, err := s.GetGRPCMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, gotMsg.IsServer)
	assert.False(t, gotMsg.IsInfo)
	assert.Equal(t, "hi", gotMsg.Message)
}

func TestCookieJar_RoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := t.Context()
	w := seedWorkspace(t, s, "Demo")

	jar, err := s.UpsertCookieJar(ctx, &CookieJar{
		WorkspaceID: w.ID,
		Name:        "Default",
		Cookies:     []json.RawMessage{json.RawMessage(`{"domain":"example.com","name":"sid"}`)},
	})
	require.NoError(t, err)

	jars, err := s.ListCookieJars(ctx, w.ID)
	require.NoError(t, err)
	require.Len(t, jars, 1)
	assert.Equal(t, jar, jars[0])
	assert.JSONEq(t, `{"domain":"example.com","name":"sid"}`, string(jars[0].Cookies[0]))
}

func TestGet_NotFound(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := t.Context()

	_, err := s.GetWorkspace(ctx, "wk_nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetHTTPResponse(ctx, "rp_nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetGRPCMessage(ctx, "gm_nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList_SortPriorityThenCreation(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := t.Context()
	w := seedWorkspace(t, s, "Demo")

	var ids []string
	for _, p := range []float64{2, 1, 1, 0} {
		f, err := s.UpsertFolder(ctx, &Folder{WorkspaceID: w.ID, Name: "f", SortPriority: p})
		require.NoError(t, err)
		ids = append(ids, f.ID)
	}

	folders, err := s.ListFolders(ctx, w.ID)
	require.NoError(t, err)
	var got []string
	for _, f := range folders {
		got = append(got, f.ID)
	}
	assert.Equal(t, []string{ids[3], ids[1], ids[2], ids[0]}, got)
}

func TestListHTTPResponses_NewestFirstWithLimit(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := t.Context()
	w := seedWorkspace(t, s, "Demo")
	req := seedHTTPRequest(t, s, w.ID, nil)

	var ids []string
	for range 3 {
		r, err := s.UpsertHTTPResponse(ctx, &HTTPResponse{WorkspaceID: w.ID, RequestID: req.ID})
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}

	all, err := s.ListHTTPResponses(ctx, req.ID, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID)
	assert.Equal(t, ids[0], all[2].ID)

	limited, err := s.ListHTTPResponses(ctx, req.ID, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, ids[2], limited[0].ID)
}

func TestListGRPC_Ordering(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := t.Context()
	w := seedWorkspace(t, s, "Demo")
	greq, err := s.UpsertGRPCRequest(ctx, &GRPCRequest{WorkspaceID: w.ID, Name: "g"})
	require.NoError(t, err)

	c1, err := s.UpsertGRPCConnection(ctx, &GRPCConnection{WorkspaceID: w.ID, RequestID: greq.ID})
	require.NoError(t, err)
	c2, err := s.UpsertGRPCConnection(ctx, &GRPCConnection{WorkspaceID: w.ID, RequestID: greq.ID})
	require.NoError(t, err)

	conns, err := s.ListGRPCConnections(ctx, greq.ID)
	require.NoError(t, err)
	require.Len(t, conns, 2)
	assert.Equal(t, c2.ID, conns[0].ID, "connections are newest first")

	m1, err := s.UpsertGRPCMessage(ctx, &GRPCMessage{WorkspaceID: w.ID, RequestID: greq.ID, ConnectionID: c1.ID, Message: "a"})
	require.NoError(t, err)
	m2, err := s.UpsertGRPCMessage(ctx, &GRPCMessage{WorkspaceID: w.ID, RequestID: greq.ID, ConnectionID: c1.ID, Message: "b"})
	require.NoError(t, err)

	msgs, err := s.ListGRPCMessages(ctx, c1.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, []string{m1.ID, m2.ID}, []string{msgs[0].ID, msgs[1].ID}, "messages are oldest first")
}

func TestNotifications_OnePerUpsert(t *testing.T) {
	s, rec := newTestStore(t)
	ctx := t.Context()

	w := seedWorkspace(t, s, "Demo")
	w.Name = "Renamed"
	updated, err := s.UpsertWorkspace(ctx, w)
	require.NoError(t, err)

	events := rec.Events()
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, ChannelUpserted, e.Channel)
	}
	assert.Equal(t, updated, events[1].Model, "notification carries the committed value")
}

func TestNotifications_DeleteMissingEmitsNothing(t *testing.T) {
	s, rec := newTestStore(t)
	ctx := t.Context()

	_, err := s.DeleteWorkspace(ctx, "wk_missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.DeleteHTTPRequest(ctx, "rq_missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.DeleteFolder(ctx, "fl_missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.DeleteGRPCConnection(ctx, "gc_missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Empty(t, rec.Events())
}

func TestNotifications_DeleteCarriesLastValue(t *testing.T) {
	s, rec := newTestStore(t)
	ctx := t.Context()
	w := seedWorkspace(t, s, "Demo")
	env, err := s.UpsertEnvironment(ctx, &Environment{WorkspaceID: w.ID, Name: "staging"})
	require.NoError(t, err)
	rec.Reset()

	deleted, err := s.DeleteEnvironment(ctx, env.ID)
	require.NoError(t, err)
	assert.Equal(t, env, deleted)

	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, ChannelDeleted, events[0].Channel)
	assert.Equal(t, env, events[0].Model)
}

func TestDuplicateHTTPRequest(t *testing.T) {
	s, rec := newTestStore(t)
	ctx := t.Context()
	w := seedWorkspace(t, s, "Demo")
	orig := seedHTTPRequest(t, s, w.ID, nil)
	rec.Reset()

	dup, err := s.DuplicateHTTPRequest(ctx, orig.ID)
	require.NoError(t, err)

	assert.NotEqual(t, orig.ID, dup.ID)
	assert.Equal(t, orig.URL, dup.URL)
	assert.Equal(t, orig.Name, dup.Name)
	assert.Len(t, rec.Filter(ChannelUpserted, KindHTTPRequest), 1)

	reqs, err := s.ListHTTPRequests(ctx, w.ID)
	require.NoError(t, err)
	assert.Len(t, reqs, 2)
}

func TestDuplicateGRPCRequest(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := t.Context()
	w := seedWorkspace(t, s, "Demo")
	orig, err := s.UpsertGRPCRequest(ctx, &GRPCRequest{WorkspaceID: w.ID, Name: "g", ProtoFiles: []string{"a.proto"}})
	require.NoError(t, err)

	dup, err := s.DuplicateGRPCRequest(ctx, orig.ID)
	require.NoError(t, err)
	assert.NotEqual(t, orig.ID, dup.ID)
	assert.Equal(t, orig.ProtoFiles, dup.ProtoFiles)

	_, err = s.DuplicateGRPCRequest(ctx, "gr_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentUpserts(t *testing.T) {
	s, rec := newTestStore(t)
	ctx := t.Context()
	w := seedWorkspace(t, s, "Demo")
	rec.Reset()

	const workers, perWorker = 8, 5
	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				_, err := s.UpsertEnvironment(ctx, &Environment{WorkspaceID: w.ID, Name: "env"})
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	envs, err := s.ListEnvironments(ctx, w.ID)
	require.NoError(t, err)
	assert.Len(t, envs, workers*perWorker)
	assert.Len(t, rec.Events(), workers*perWorker)
}
