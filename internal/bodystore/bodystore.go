// ABOUTME: Removal of HTTP response body files referenced by stored responses
// ABOUTME: Routes paths to the local filesystem or S3 by URI scheme

package bodystore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedScheme is returned when no remover is registered for a path's scheme.
var ErrUnsupportedScheme = errors.New("unsupported body path scheme")

// Remover deletes a response body by the path recorded on the response.
// Removing a path that does not exist is not an error.
type Remover interface {
	Remove(ctx context.Context, path string) error
}

// Router dispatches Remove to a backend chosen by the path's scheme.
// Paths without a scheme go to the local backend.
type Router struct {
	local   Remover
	schemes map[string]Remover
}

// NewRouter creates a Router with local as the fallback for plain paths.
func NewRouter(local Remover) *Router {
	return &Router{local: local, schemes: make(map[string]Remover)}
}

// Register routes paths beginning with "scheme://" to r.
func (rt *Router) Register(scheme string, r Remover) {
	rt.schemes[strings.ToLower(scheme)] = r
}

// Remove implements Remover.
func (rt *Router) Remove(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	scheme, _, ok := strings.Cut(path, "://")
	if !ok {
		if rt.local == nil {
			return fmt.Errorf("%w: local paths", ErrUnsupportedScheme)
		}
		return rt.local.Remove(ctx, path)
	}
	r, found := rt.schemes[strings.ToLower(scheme)]
	if !found {
		return fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}
	return r.Remove(ctx, path)
}
