// Package storage keeps uploaded manuscript files, galley proofs and payment
// receipts. Two backends exist: an S3-compatible bucket and a local directory.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"journal-backend/internal/config"
)

var ErrInvalidFolder = errors.New("storage: invalid folder")

// Object describes a stored file.
type Object struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
}

type Storage interface {
	Upload(ctx context.Context, folder, filename, contentType string, body io.Reader, size int64) (Object, error)
}

// New picks the backend named in cfg.Storage.Backend.
func New(ctx context.Context, cfg *config.Config) (Storage, error) {
	switch cfg.Storage.Backend {
	case "s3":
		return NewS3Storage(ctx, cfg.Storage)
	case "local", "":
		return NewLocalStorage(cfg.Storage.LocalDir, cfg.Storage.PublicURL)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Storage.Backend)
	}
}

var folderPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// objectKey builds "<folder>/<uuid><ext>" so user-supplied names never reach the
// key except for a sanitized extension.
func objectKey(folder, filename string) (string, error) {
	folder = strings.ToLower(strings.TrimSpace(folder))
	if folder == "" {
		folder = "misc"
	}
	if !folderPattern.MatchString(folder) {
		return "", ErrInvalidFolder
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}
	return path.Join(folder, uuid.New().String()+ext), nil
}
