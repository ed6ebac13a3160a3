package attach

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps attachments as flat files under a root directory, one file
// per (ownerKey, field, extension) address.
type FileStore struct {
	root string
}

// NewFileStore creates the root directory if needed.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create attachment dir: %w", err)
	}
	return &FileStore{root: root}, nil
}

func (f *FileStore) path(ownerKey, field, extension string) string {
	name := ownerKey + "_" + field
	if extension != "" {
		name += "." + extension
	}
	return filepath.Join(f.root, name)
}

func (f *FileStore) Save(_ context.Context, ownerKey, field, extension string, data []byte, overwrite bool) error {
	p := f.path(ownerKey, field, extension)

	if !overwrite {
		if _, err := os.Stat(p); err == nil {
			return nil
		}
	}

	if err := os.WriteFile(p, data, 0o600); err != nil {
		return fmt.Errorf("write attachment %s: %w", p, err)
	}
	return nil
}

func (f *FileStore) Load(_ context.Context, ownerKey, field, extension string) ([]byte, error) {
	p := f.path(ownerKey, field, extension)

	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read attachment %s: %w", p, err)
	}
	return data, nil
}

func (f *FileStore) DeleteAll(_ context.Context, ownerKey string) error {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return fmt.Errorf("list attachment dir: %w", err)
	}

	prefix := ownerKey + "_"
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		if err = os.Remove(filepath.Join(f.root, e.Name())); err != nil {
			return fmt.Errorf("remove attachment %s: %w", e.Name(), err)
		}
	}
	return nil
}
