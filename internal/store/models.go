// ABOUTME: Entity types persisted by the store
// ABOUTME: Field names serialize in camelCase, matching what the UI consumes

package store

import (
	"encoding/json"
	"time"
)

// Variable is a name/value pair on a workspace or environment.
type Variable struct {
	Enabled bool   `json:"enabled"`
	Name    string `json:"name"`
	Value   string `json:"value"`
}

// Workspace is the root of the request hierarchy.
type Workspace struct {
	ID          string     `json:"id"`
	Model       string     `json:"model"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Variables   []Variable `json:"variables"`

	SettingValidateCertificates bool  `json:"settingValidateCertificates"`
	SettingFollowRedirects      bool  `json:"settingFollowRedirects"`
	SettingRequestTimeout       int64 `json:"settingRequestTimeout"`
}

// NewWorkspace returns a workspace with the default request settings.
func NewWorkspace(name string) *Workspace {
	return &Workspace{
		Name:                        name,
		Model:                       KindWorkspace,
		SettingValidateCertificates: true,
		SettingFollowRedirects:      true,
	}
}

func (w *Workspace) ModelID() string   { return w.ID }
func (w *Workspace) ModelKind() string { return KindWorkspace }

// Environment is a named variable set inside a workspace.
type Environment struct {
	ID          string     `json:"id"`
	Model       string     `json:"model"`
	WorkspaceID string     `json:"workspaceId"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	Name        string     `json:"name"`
	Variables   []Variable `json:"variables"`
}

func (e *Environment) ModelID() string   { return e.ID }
func (e *Environment) ModelKind() string { return KindEnvironment }

// Folder groups requests and other folders. FolderID is nil at the workspace root.
type Folder struct {
	ID           string    `json:"id"`
	Model        string    `json:"model"`
	WorkspaceID  string    `json:"workspaceId"`
	FolderID     *string   `json:"folderId"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Name         string    `json:"name"`
	SortPriority float64   `json:"sortPriority"`
}

func (f *Folder) ModelID() string   { return f.ID }
func (f *Folder) ModelKind() string { return KindFolder }

// Header is an enabled-able request header or URL parameter.
type Header struct {
	Enabled bool   `json:"enabled"`
	Name    string `json:"name"`
	Value   string `json:"value"`
}

// HTTPRequest is a saved HTTP request definition.
type HTTPRequest struct {
	ID                 string         `json:"id"`
	Model              string         `json:"model"`
	WorkspaceID        string         `json:"workspaceId"`
	FolderID           *string        `json:"folderId"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
	Name               string         `json:"name"`
	SortPriority       float64        `json:"sortPriority"`
	URL                string         `json:"url"`
	URLParameters      []Header       `json:"urlParameters"`
	Method             string         `json:"method"`
	Body               Body           `json:"body"`
	BodyType           *string        `json:"bodyType"`
	Authentication     Authentication `json:"authentication"`
	AuthenticationType *string        `json:"authenticationType"`
	Headers            []Header       `json:"headers"`
}

func (r *HTTPRequest) ModelID() string   { return r.ID }
func (r *HTTPRequest) ModelKind() string { return KindHTTPRequest }

// ResponseHeader is a header received on an HTTP response.
type ResponseHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// HTTPResponse records one execution of an HTTPRequest. Elapsed is 0 while
// the request is in flight and -1 once cancelled.
type HTTPResponse struct {
	ID             string           `json:"id"`
	Model          string           `json:"model"`
	WorkspaceID    string           `json:"workspaceId"`
	RequestID      string           `json:"requestId"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
	Error          *string          `json:"error"`
	URL            string           `json:"url"`
	ContentLength  *int64           `json:"contentLength"`
	Version        *string          `json:"version"`
	Elapsed        int64            `json:"elapsed"`
	ElapsedHeaders int64            `json:"elapsedHeaders"`
	RemoteAddr     *string          `json:"remoteAddr"`
	Status         int64            `json:"status"`
	StatusReason   *string          `json:"statusReason"`
	BodyPath       *string          `json:"bodyPath"`
	Headers        []ResponseHeader `json:"headers"`
}

func (r *HTTPResponse) ModelID() string   { return r.ID }
func (r *HTTPResponse) ModelKind() string { return KindHTTPResponse }

// GRPCRequest is a saved gRPC call definition.
type GRPCRequest struct {
	ID           string    `json:"id"`
	Model        string    `json:"model"`
	WorkspaceID  string    `json:"workspaceId"`
	FolderID     *string   `json:"folderId"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Name         string    `json:"name"`
	SortPriority float64   `json:"sortPriority"`
	URL          string    `json:"url"`
	Service      *string   `json:"service"`
	Method       *string   `json:"method"`
	Message      string    `json:"message"`
	ProtoFiles   []string  `json:"protoFiles"`
}

func (r *GRPCRequest) ModelID() string   { return r.ID }
func (r *GRPCRequest) ModelKind() string { return KindGRPCRequest }

// GRPCConnection records one call or stream made from a GRPCRequest.
type GRPCConnection struct {
	ID          string    `json:"id"`
	Model       string    `json:"model"`
	WorkspaceID string    `json:"workspaceId"`
	RequestID   string    `json:"requestId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Service     string    `json:"service"`
	Method      string    `json:"method"`
	Elapsed     int64     `json:"elapsed"`
}

func (c *GRPCConnection) ModelID() string   { return c.ID }
func (c *GRPCConnection) ModelKind() string { return KindGRPCConnection }

// GRPCMessage is a single message sent or received on a connection.
type GRPCMessage struct {
	ID           string    `json:"id"`
	Model        string    `json:"model"`
	WorkspaceID  string    `json:"workspaceId"`
	RequestID    string    `json:"requestId"`
	ConnectionID string    `json:"connectionId"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Message      string    `json:"message"`
	IsServer     bool      `json:"isServer"`
	IsInfo       bool      `json:"isInfo"`
}

func (m *GRPCMessage) ModelID() string   { return m.ID }
func (m *GRPCMessage) ModelKind() string { return KindGRPCMessage }

// CookieJar holds cookies captured for a workspace. Cookies are kept opaque.
type CookieJar struct {
	ID          string            `json:"id"`
	Model       string            `json:"model"`
	WorkspaceID string            `json:"workspaceId"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	Name        string            `json:"name"`
	Cookies     []json.RawMessage `json:"cookies"`
}

func (c *CookieJar) ModelID() string   { return c.ID }
func (c *CookieJar) ModelKind() string { return KindCookieJar }

// Settings is the application-wide singleton, always stored under SettingsID.
type Settings struct {
	ID            string    `json:"id"`
	Model         string    `json:"model"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	Theme         string    `json:"theme"`
	Appearance    string    `json:"appearance"`
	UpdateChannel string    `json:"updateChannel"`
}

func (s *Settings) ModelID() string   { return s.ID }
func (s *Settings) ModelKind() string { return KindSettings }

// KeyValue is one entry of the namespaced key/value table. Value holds JSON.
type KeyValue struct {
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Namespace string    `json:"namespace"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
}

// ModelID is namespace and key joined, since key values have no id column.
func (kv *KeyValue) ModelID() string   { return kv.Namespace + "::" + kv.Key }
func (kv *KeyValue) ModelKind() string { return KindKeyValue }
