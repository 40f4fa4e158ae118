// Package media keeps images picked during an edit session on local disk until the
// save that uploads them.
package media

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const scheme = "file://"

var ErrNotLocal = errors.New("not a local media uri")

// Store writes uploads under one directory and hands out file:// URIs for them.
type Store struct {
	dir string
}

// NewStore creates dir if needed.
func NewStore(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve media dir %q: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir %q: %w", abs, err)
	}
	return &Store{dir: abs}, nil
}

// Save copies r into a new file. The original file name only contributes its extension.
func (s *Store) Save(filename string, r io.Reader) (string, error) {
	name := uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	return scheme + filepath.ToSlash(path), nil
}

// Open returns the file behind a URI produced by Save.
func (s *Store) Open(uri string) (*os.File, error) {
	path, err := s.path(uri)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Remove deletes the file behind uri. Missing files are not an error.
func (s *Store) Remove(uri string) error {
	path, err := s.path(uri)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// IsLocal reports whether uri points into local storage rather than at the server.
func IsLocal(uri string) bool {
	return strings.HasPrefix(uri, scheme)
}

func (s *Store) path(uri string) (string, error) {
	if !IsLocal(uri) {
		return "", fmt.Errorf("%w: %q", ErrNotLocal, uri)
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotLocal, err)
	}
	path := filepath.Clean(filepath.FromSlash(u.Path))
	if filepath.Dir(path) != s.dir {
		return "", fmt.Errorf("%w: %q is outside the media dir", ErrNotLocal, uri)
	}
	return path, nil
}
