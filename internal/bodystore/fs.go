// ABOUTME: Local filesystem body remover
// ABOUTME: Treats already-missing files as removed

package bodystore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// FS removes body files from the local filesystem.
type FS struct{}

// Remove deletes path. A "file://" prefix is accepted and stripped.
func (FS) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path = strings.TrimPrefix(path, "file://")
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing body file: %w", err)
	}
	return nil
}
