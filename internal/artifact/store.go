// Package artifact keeps a best-effort audit trail of screenshots and stage
// results per session.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Store persists opaque blobs keyed by session id and relative path.
type Store interface {
	Put(ctx context.Context, sessionID, path string, content []byte) error
	Get(ctx context.Context, sessionID, path string) ([]byte, error)
	// GetURL returns a direct download URL, or "" when the backend has none.
	GetURL(ctx context.Context, sessionID, path string) (string, error)
	List(ctx context.Context, sessionID string) ([]string, error)
}

var ErrNotFound = errors.New("artifact not found")

func normalizeKey(sessionID, path string) (string, string, error) {
	sessionID = strings.TrimSpace(sessionID)
	path = strings.TrimLeft(strings.TrimSpace(path), "/")
	if sessionID == "" {
		return "", "", fmt.Errorf("session_id is required")
	}
	if path == "" {
		return "", "", fmt.Errorf("path is required")
	}
	if strings.Contains(path, "..") {
		return "", "", fmt.Errorf("path %q must not contain ..", path)
	}
	return sessionID, path, nil
}

func objectKey(sessionID, path string) string {
	return sessionID + "/" + path
}
