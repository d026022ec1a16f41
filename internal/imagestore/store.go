// Package imagestore keeps rendered chart images and hands out URLs for them.
package imagestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"PriceOptimizer/internal/recorder"
)

// Store uploads chart images and returns a retrievable URL.
type Store interface {
	Upload(ctx context.Context, data []byte, ownerID, key string) (string, error)
	Delete(ctx context.Context, ownerID, key string) error
	// Keys lists every stored image.
	Keys(ctx context.Context) ([]recorder.ChartRef, error)
}

// validName keeps owner ids and keys from escaping the store directory.
var validName = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ErrInvalidName is returned for owner ids or keys outside [A-Za-z0-9_-].
var ErrInvalidName = errors.New("invalid image name")

// FileStore writes images to <dir>/<owner>/<key>.png.
type FileStore struct {
	dir     string
	baseURL string
}

// NewFileStore creates dir if needed. baseURL is the public server address;
// URLs take the form <baseURL>/charts/<owner>/<key>.png.
func NewFileStore(dir, baseURL string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chart dir: %w", err)
	}
	return &FileStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir returns the root directory of the store.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(ownerID, key string) (string, error) {
	if !validName.MatchString(ownerID) || !validName.MatchString(key) {
		return "", fmt.Errorf("%w: %q/%q", ErrInvalidName, ownerID, key)
	}
	return filepath.Join(s.dir, ownerID, key+".png"), nil
}

func (s *FileStore) Upload(_ context.Context, data []byte, ownerID, key string) (string, error) {
	p, err := s.path(ownerID, key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("create owner dir: %w", err)
	}
	// Write then rename so readers never see a partial file.
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write chart: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("rename chart: %w", err)
	}
	slog.Debug("chart stored", "owner", ownerID, "key", key, "bytes", len(data))
	return s.URL(ownerID, key), nil
}

// URL returns the public address of an image.
func (s *FileStore) URL(ownerID, key string) string {
	return s.baseURL + "/charts/" + url.PathEscape(ownerID) + "/" + url.PathEscape(key) + ".png"
}

func (s *FileStore) Delete(_ context.Context, ownerID, key string) error {
	p, err := s.path(ownerID, key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete chart: %w", err)
	}
	return nil
}

func (s *FileStore) Keys(_ context.Context) ([]recorder.ChartRef, error) {
	var out []recorder.ChartRef
	err := filepath.WalkDir(s.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(p) != ".png" {
			return nil
		}
		rel, err := filepath.Rel(s.dir, p)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		owner, file := filepath.Split(rel)
		out = append(out, recorder.ChartRef{
			OwnerID:  filepath.Clean(owner),
			Key:      strings.TrimSuffix(file, ".png"),
			StoredAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk chart dir: %w", err)
	}
	return out, nil
}

// Open returns the image file for serving.
func (s *FileStore) Open(ownerID, key string) (*os.File, error) {
	p, err := s.path(ownerID, key)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}
