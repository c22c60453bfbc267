package store

import (
	"context"
	"strings"
)

// New creates a postgres-backed store when configured, otherwise the
// file-backed store at statePath.
func New(ctx context.Context, databaseURL, statePath string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewFileStore(statePath)
	}
	return NewPostgresStore(ctx, databaseURL)
}
