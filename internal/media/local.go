package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes media into a directory. References are BaseURL/key when
// BaseURL is set, otherwise the absolute file path.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates the directory if needed.
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve media dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &LocalStore{dir: abs, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Put writes data to dir/key.
func (s *LocalStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	p := filepath.Join(s.dir, filepath.Base(key))
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", p, err)
	}
	if s.baseURL != "" {
		return s.baseURL + "/" + filepath.Base(key), nil
	}
	return p, nil
}
