// ABOUTME: Error sentinels, model kinds, and the change notification contract
// ABOUTME: Shared by the SQLite store and anything observing its mutations

package store

import (
	"errors"
	"strings"

	"github.com/2389/reqstore/internal/idgen"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrClosed is returned for operations issued after Close
var ErrClosed = errors.New("store closed")

// ErrFolderCycle is returned when a folder would become its own ancestor
var ErrFolderCycle = errors.New("folder cycle")

// Model kind tags. These appear in the "model" field of every serialized entity.
const (
	KindWorkspace      = "workspace"
	KindEnvironment    = "environment"
	KindFolder         = "folder"
	KindHTTPRequest    = "http_request"
	KindHTTPResponse   = "http_response"
	KindGRPCRequest    = "grpc_request"
	KindGRPCConnection = "grpc_connection"
	KindGRPCMessage    = "grpc_message"
	KindCookieJar      = "cookie_jar"
	KindSettings       = "settings"
	KindKeyValue       = "key_value"
)

// Id prefixes, one per kind that gets generated ids.
const (
	prefixWorkspace      = "wk"
	prefixEnvironment    = "ev"
	prefixFolder         = "fl"
	prefixHTTPRequest    = "rq"
	prefixHTTPResponse   = "rp"
	prefixGRPCRequest    = "gr"
	prefixGRPCConnection = "gc"
	prefixGRPCMessage    = "gm"
	prefixCookieJar      = "cj"
)

// SettingsID is the fixed id of the settings singleton row.
const SettingsID = "default"

// Model is implemented by every persisted entity.
type Model interface {
	ModelID() string
	ModelKind() string
}

// Notifier receives committed mutations. Implementations must not block;
// the store calls them inline after each write.
type Notifier interface {
	NotifyUpserted(m Model)
	NotifyDeleted(m Model)
}

type nopNotifier struct{}

func (nopNotifier) NotifyUpserted(Model) {}
func (nopNotifier) NotifyDeleted(Model)  {}

// ensureID returns id, or a freshly generated one with prefix when id is empty.
func ensureID(id, prefix string) string {
	if id == "" {
		return idgen.Generate(prefix)
	}
	return id
}

func trimName(name string) string {
	return strings.TrimSpace(name)
}
