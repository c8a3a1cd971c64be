package service

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// PhotoStore keeps timed note photos as files in one directory. Rows store the
// file name relative to that directory.
type PhotoStore struct {
	dir string
}

func NewPhotoStore(dir string) *PhotoStore {
	return &PhotoStore{dir: dir}
}

func (p *PhotoStore) Dir() string {
	return p.dir
}

// Save writes data under a new random name with the given extension.
func (p *PhotoStore) Save(data []byte, ext string) (string, error) {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return "", fmt.Errorf("create photo dir: %w", err)
	}
	name := uuid.NewString() + "." + photoExtension(ext)
	path, err := p.path(name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write photo: %w", err)
	}
	return name, nil
}

// Read returns the content of a stored photo.
func (p *PhotoStore) Read(name string) ([]byte, error) {
	path, err := p.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read photo: %w", err)
	}
	return data, nil
}

// Remove deletes stored photos; missing files are ignored.
func (p *PhotoStore) Remove(names ...string) error {
	var errs []error
	for _, name := range names {
		path, err := p.path(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove photo: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Clear removes every file in the photo directory.
func (p *PhotoStore) Clear() error {
	return p.RemoveExcept()
}

// RemoveExcept removes every file in the photo directory not named in keep.
func (p *PhotoStore) RemoveExcept(keep ...string) error {
	kept := make(map[string]struct{}, len(keep))
	for _, name := range keep {
		kept[name] = struct{}{}
	}
	entries, err := os.ReadDir(p.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("list photos: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, ok := kept[e.Name()]; !ok && !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return p.Remove(names...)
}

// photoExtension normalises ext to a short alphanumeric suffix, falling back
// to jpg for anything else.
func photoExtension(ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" || len(ext) > 8 {
		return "jpg"
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return "jpg"
		}
	}
	return ext
}

func (p *PhotoStore) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid photo name %q", name)
	}
	return filepath.Join(p.dir, name), nil
}
