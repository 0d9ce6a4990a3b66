package photo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrEmpty           = errors.New("empty image")
	ErrInvalidKey      = errors.New("invalid blob key")
	ErrTooLong         = errors.New("photo identifier too long")
)

// MaxIdentifierLen matches the width of students.photo.
const MaxIdentifierLen = 100

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Store keeps uploaded images and resolves keys to public identifiers.
type Store interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
	Identifier(key string) string
	KeyOf(identifier string) (string, bool)
}

type FileStore struct {
	fs        afero.Fs
	urlPrefix string
	logger    *slog.Logger
}

// NewFileStore stores blobs below dir on the OS filesystem.
func NewFileStore(dir, urlPrefix string, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create photo dir: %w", err)
	}
	return NewFileStoreWithFs(afero.NewBasePathFs(afero.NewOsFs(), dir), urlPrefix, logger), nil
}

// NewFileStoreWithFs is used with afero.NewMemMapFs in tests.
func NewFileStoreWithFs(fs afero.Fs, urlPrefix string, logger *slog.Logger) *FileStore {
	return &FileStore{
		fs:        fs,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
		logger:    logger,
	}
}

func (s *FileStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if dir := filepath.Dir(key); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := afero.WriteFile(s.fs, key, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", key, err)
	}

	s.logger.InfoContext(ctx, "photo stored", "key", key, "bytes", len(data))
	return s.Identifier(key), nil
}

func (s *FileStore) Identifier(key string) string {
	return path.Join(s.urlPrefix, key)
}

// KeyOf reverses Identifier. It reports false for identifiers that were not
// issued by this store.
func (s *FileStore) KeyOf(identifier string) (string, bool) {
	key := identifier
	if s.urlPrefix != "" {
		prefix := s.urlPrefix + "/"
		if !strings.HasPrefix(identifier, prefix) {
			return "", false
		}
		key = strings.TrimPrefix(identifier, prefix)
	}
	if checkKey(key) != nil {
		return "", false
	}
	return key, true
}

// Delete removes a blob. Deleting a missing blob is not an error.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := s.fs.Remove(key); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	s.logger.InfoContext(ctx, "photo removed", "key", key)
	return nil
}

func (s *FileStore) Exists(key string) (bool, error) {
	return afero.Exists(s.fs, key)
}

func checkKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Extension sniffs the image type and returns the file extension for it.
func Extension(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}
	ext, ok := extensions[http.DetectContentType(data)]
	if !ok {
		return "", ErrUnsupportedType
	}
	return ext, nil
}

// NewKey returns a unique key for an owner, e.g. "student-12-<uuid>.png".
func NewKey(owner string, ext string) string {
	return fmt.Sprintf("%s-%s%s", owner, uuid.NewString(), ext)
}
