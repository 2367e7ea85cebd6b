package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage writes files below a directory served at PublicURL.
type LocalStorage struct {
	dir       string
	publicURL string
}

func NewLocalStorage(dir, publicURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStorage{dir: dir, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// Dir is the root directory, used to serve files over HTTP.
func (l *LocalStorage) Dir() string {
	return l.dir
}

func (l *LocalStorage) Upload(ctx context.Context, folder, filename, _ string, body io.Reader, _ int64) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	key, err := objectKey(folder, filename)
	if err != nil {
		return Object{}, err
	}
	target := filepath.Join(l.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return Object{}, fmt.Errorf("create folder: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return Object{}, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return Object{}, fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Object{}, fmt.Errorf("close upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return Object{}, fmt.Errorf("store upload: %w", err)
	}
	return Object{SecureURL: l.publicURL + "/" + key, PublicID: key}, nil
}
