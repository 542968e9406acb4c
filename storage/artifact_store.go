package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/coreybb/quire/models"
)

// DefaultGeneratedDir is where artifacts land when no directory is configured.
const DefaultGeneratedDir = "public/generated"

// URLPrefix is the public path artifacts are served under.
const URLPrefix = "/generated/"

// ErrInvalidFilename is returned for names that could escape the artifact
// directory.
var ErrInvalidFilename = errors.New("invalid filename")

// ArtifactStore persists generated books.
type ArtifactStore interface {
	Save(ctx context.Context, projectID string, format models.BookFormat, data []byte) (filename string, err error)
	URLFor(filename string) string
	Open(filename string) (*os.File, error)
}

// LocalArtifactStore writes artifacts to a directory on the local file system
// as <projectID>-<unixMillis>.<ext>. Files are never overwritten.
type LocalArtifactStore struct {
	basePath string
	now      func() time.Time
	mu       sync.Mutex
}

// NewLocalArtifactStore creates a store rooted at basePath, defaulting to
// DefaultGeneratedDir.
func NewLocalArtifactStore(basePath string) *LocalArtifactStore {
	if basePath == "" {
		basePath = DefaultGeneratedDir
	}
	return &LocalArtifactStore{basePath: basePath, now: time.Now}
}

func (s *LocalArtifactStore) BasePath() string { return s.basePath }

// Save writes data to a temp file and renames it into place, so readers never
// observe a partial artifact.
func (s *LocalArtifactStore) Save(ctx context.Context, projectID string, format models.BookFormat, data []byte) (string, error) {
	if projectID == "" {
		return "", fmt.Errorf("projectID cannot be empty for storing an artifact")
	}
	if _, ok := models.IsValidBookFormat(string(format)); !ok {
		return "", fmt.Errorf("unsupported artifact format %q", format)
	}
	if err := validateFilename(projectID); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.basePath, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.basePath, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close artifact: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return "", fmt.Errorf("failed to set artifact permissions: %w", err)
	}

	filename, err := s.commit(tmpName, projectID, format)
	if err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "saved artifact",
		"project_id", projectID,
		"filename", filename,
		"size", humanize.Bytes(uint64(len(data))),
	)
	return filename, nil
}

// commit picks the first free timestamped name and renames tmpName to it.
func (s *LocalArtifactStore) commit(tmpName, projectID string, format models.BookFormat) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	millis := s.now().UnixMilli()
	for {
		filename := fmt.Sprintf("%s-%d.%s", projectID, millis, format.Extension())
		target := filepath.Join(s.basePath, filename)
		if _, err := os.Stat(target); errors.Is(err, os.ErrNotExist) {
			if err := os.Rename(tmpName, target); err != nil {
				return "", fmt.Errorf("failed to move artifact into place: %w", err)
			}
			return filename, nil
		} else if err != nil {
			return "", fmt.Errorf("failed to check artifact path: %w", err)
		}
		millis++
	}
}

func (s *LocalArtifactStore) URLFor(filename string) string {
	return URLPrefix + filename
}

// Open returns the stored artifact for reading. The caller closes it.
func (s *LocalArtifactStore) Open(filename string) (*os.File, error) {
	if err := validateFilename(filename); err != nil {
		return nil, err
	}
	return os.Open(filepath.Join(s.basePath, filename))
}

func validateFilename(name string) error {
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	return nil
}

// ContentTypeFor maps an artifact filename to the MIME type it is served with.
func ContentTypeFor(filename string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if format, ok := models.IsValidBookFormat(ext); ok {
		return format.ContentType()
	}
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
