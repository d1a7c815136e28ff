package services

import (
	"context"
	"errors"
	"gekoimport/config"
	"io"
	"os"
	"path/filepath"
	"time"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/google/uuid"
)

var ErrUploadTooLarge = errors.New("upload exceeds the size limit")

type StoredFile struct {
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// UploadStorageService keeps uploaded feeds on local disk until their job is pruned.
// Files are named after the job id, never after the client supplied name.
type UploadStorageService struct {
	dir string
	log logger.Logger
}

func NewUploadStorageService(config config.Config) *UploadStorageService {
	dir := config.ImportUploadDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "gekoimport")
	}

	return &UploadStorageService{
		dir: dir,
		log: logger.New("uploadStorageService"),
	}
}

func (s *UploadStorageService) Dir() string {
	return s.dir
}

// Save streams r to disk. It stops reading one byte past maxBytes and fails with
// ErrUploadTooLarge, leaving nothing behind.
func (s *UploadStorageService) Save(
	ctx context.Context,
	jobID uuid.UUID,
	r io.Reader,
	maxBytes int64,
) (StoredFile, error) {
	log := s.log.Function("Save")

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return StoredFile{}, log.Err("failed to create upload directory", err, "directory", s.dir)
	}

	path := filepath.Join(s.dir, jobID.String()+".xml")
	file, err := os.Create(path)
	if err != nil {
		return StoredFile{}, log.Err("failed to create upload file", err, "path", path)
	}

	written, err := io.Copy(file, io.LimitReader(r, maxBytes+1))
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written > maxBytes {
		err = ErrUploadTooLarge
	}
	if err != nil {
		s.Remove(path)
		if errors.Is(err, ErrUploadTooLarge) {
			log.Warn("Upload rejected, too large", "jobID", jobID, "maxBytes", maxBytes)
			return StoredFile{}, err
		}
		return StoredFile{}, log.Err("failed to write upload", err, "path", path)
	}

	log.Info("Upload stored", "jobID", jobID, "path", path, "size", written)
	return StoredFile{Path: path, Size: written, ModifiedAt: time.Now()}, nil
}

func (s *UploadStorageService) Open(path string) (*os.File, error) {
	log := s.log.Function("Open")

	file, err := os.Open(path)
	if err != nil {
		return nil, log.Err("failed to open upload", err, "path", path)
	}
	return file, nil
}

// Remove deletes an upload; a file that is already gone is not an error.
func (s *UploadStorageService) Remove(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.log.Function("Remove").Er("failed to remove upload", err, "path", path)
	}
}

func (s *UploadStorageService) ListStoredFiles(ctx context.Context) ([]StoredFile, error) {
	log := s.log.Function("ListStoredFiles")

	if _, err := os.Stat(s.dir); os.IsNotExist(err) {
		return []StoredFile{}, nil
	}

	var files []StoredFile
	err := filepath.Walk(s.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		files = append(files, StoredFile{
			Path:       path,
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, log.Err("failed to walk upload directory", err, "directory", s.dir)
	}

	return files, nil
}

// CleanupOlderThan removes uploads last modified before cutoff, except those in keep.
func (s *UploadStorageService) CleanupOlderThan(
	ctx context.Context,
	cutoff time.Time,
	keep map[string]bool,
) (int, error) {
	log := s.log.Function("CleanupOlderThan")

	files, err := s.ListStoredFiles(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, file := range files {
		if keep[file.Path] || !file.ModifiedAt.Before(cutoff) {
			continue
		}
		s.Remove(file.Path)
		removed++
	}

	if removed > 0 {
		log.Info("Removed stale uploads", "count", removed, "cutoff", cutoff)
	}
	return removed, nil
}
