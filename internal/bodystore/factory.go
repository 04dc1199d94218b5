// ABOUTME: Builds the configured body remover
// ABOUTME: The local filesystem is always available; S3 is added when configured

package bodystore

import (
	"context"
	"fmt"
)

// Options selects which backends the router is built with.
type Options struct {
	Driver string // "fs" or "s3"
	S3     S3Config
}

// New returns a Router that always handles local paths and, when
// opts.Driver is "s3", also handles s3:// paths.
func New(ctx context.Context, opts Options) (*Router, error) {
	rt := NewRouter(FS{})
	rt.Register("file", FS{})
	switch opts.Driver {
	case "", "fs":
	case "s3":
		s3r, err := NewS3(ctx, opts.S3)
		if err != nil {
			return nil, err
		}
		rt.Register("s3", s3r)
	default:
		return nil, fmt.Errorf("unknown bodies driver %q", opts.Driver)
	}
	return rt, nil
}
