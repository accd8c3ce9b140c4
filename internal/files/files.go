// Package files stores uploaded evidence images. The flow engine sees the
// Storage interface only; the local-disk implementation serves single-site
// deployments where the kiosk and backend share a machine.
package files

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "garita/pkg/domain-errors"
)

// Storage persists evidence blobs and returns opaque paths. Delete must
// tolerate a path that is already gone; blob cleanup after answer
// replacement runs best-effort outside the step transaction.
type Storage interface {
	Save(ctx context.Context, folder, name string, content []byte) (string, error)
	Delete(ctx context.Context, path string) error
}

// LocalStorage writes blobs under a root directory, partitioned by folder
// and upload date.
type LocalStorage struct {
	root string
}

func NewLocalStorage(root string) (*LocalStorage, error) {
	if root == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "file storage root must not be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStorage{root: root}, nil
}

// Save writes the content and returns a path relative to the storage root.
// The stored name is always freshly generated; the original name only
// contributes its extension.
func (s *LocalStorage) Save(_ context.Context, folder, name string, content []byte) (string, error) {
	if len(content) == 0 {
		return "", dErrors.New(dErrors.CodeBadRequest, "refusing to store an empty file")
	}

	rel := filepath.Join(
		sanitize(folder),
		time.Now().UTC().Format("2006-01"),
		uuid.NewString()+strings.ToLower(filepath.Ext(name)),
	)
	abs := filepath.Join(s.root, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("create storage folder: %w", err)
	}
	if err := os.WriteFile(abs, content, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return rel, nil
}

// Delete removes a stored blob. A missing file is not an error.
func (s *LocalStorage) Delete(_ context.Context, path string) error {
	clean := filepath.Clean(path)
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return dErrors.Newf(dErrors.CodeBadRequest, "invalid storage path %q", path)
	}
	err := os.Remove(filepath.Join(s.root, clean))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

func sanitize(folder string) string {
	folder = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, folder)
	if folder == "" {
		folder = "misc"
	}
	return folder
}
