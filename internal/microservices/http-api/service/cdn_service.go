package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUnsupportedFileType = errors.New("invalid file type")
	ErrFileTooLarge        = errors.New("file too large")
	ErrFileNotFound        = errors.New("file not found")
)

// accepted upload types and the extension stored for each
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

type StoredFile struct {
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CDNService stores uploaded images on local disk, one folder per key owner.
type CDNService interface {
	Upload(ctx context.Context, owner, contentType string, r io.Reader) (*StoredFile, error)
	List(ctx context.Context, owner string) ([]StoredFile, error)
	Delete(ctx context.Context, owner, name string) error
	Root() string
}

type cdnService struct {
	root    string
	baseURL string
	maxSize int64
	logger  *slog.Logger
}

func NewCDNService(root, baseURL string, maxSize int64, logger *slog.Logger) (CDNService, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cdn directory: %w", err)
	}
	return &cdnService{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
		maxSize: maxSize,
		logger:  logger,
	}, nil
}

func (s *cdnService) Root() string { return s.root }

// Upload checks both the declared and the sniffed content type before writing.
func (s *cdnService) Upload(_ context.Context, owner, contentType string, r io.Reader) (*StoredFile, error) {
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return nil, ErrUnsupportedFileType
	}

	// read one byte past the limit to detect oversized files
	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, ErrFileTooLarge
	}
	if sniffed := http.DetectContentType(data); sniffed != contentType {
		return nil, ErrUnsupportedFileType
	}

	dir := filepath.Join(s.root, safeSegment(owner))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create owner directory: %w", err)
	}

	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	s.logger.Info("cdn_file_uploaded",
		"owner", owner,
		"name", name,
		"size", len(data),
	)
	return &StoredFile{
		Name:      name,
		URL:       s.url(owner, name),
		Size:      int64(len(data)),
		UpdatedAt: time.Now(),
	}, nil
}

func (s *cdnService) List(_ context.Context, owner string) ([]StoredFile, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, safeSegment(owner)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []StoredFile{}, nil
		}
		return nil, err
	}

	files := make([]StoredFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, StoredFile{
			Name:      e.Name(),
			URL:       s.url(owner, e.Name()),
			Size:      info.Size(),
			UpdatedAt: info.ModTime(),
		})
	}
	slices.SortFunc(files, func(a, b StoredFile) int { return strings.Compare(a.Name, b.Name) })
	return files, nil
}

func (s *cdnService) Delete(_ context.Context, owner, name string) error {
	if name == "" || name != safeSegment(name) {
		return ErrFileNotFound
	}
	err := os.Remove(filepath.Join(s.root, safeSegment(owner), name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrFileNotFound
		}
		return err
	}
	s.logger.Info("cdn_file_deleted", "owner", owner, "name", name)
	return nil
}

func (s *cdnService) url(owner, name string) string {
	return s.baseURL + "/" + path.Join(safeSegment(owner), name)
}

// safeSegment reduces s to a single path element.
func safeSegment(s string) string {
	s = filepath.Base(filepath.Clean("/" + s))
	if s == "/" || s == "." || s == "" {
		return "default"
	}
	return s
}
