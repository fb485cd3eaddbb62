package audio

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/voxweave/voxweave/internal/apperr"
)

// Store keeps generated MP3 files under a single directory, one file per
// job id.
type Store struct {
	dir string
}

// NewStore creates the directory if needed and returns a Store over it.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create audio dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the storage directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes the audio for a job, replacing any previous file.
func (s *Store) Save(jobID string, data []byte) (string, error) {
	path, err := s.path(jobID)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", apperr.AudioProcessing(fmt.Sprintf("write audio file: %v", err))
	}
	return path, nil
}

// Path returns the file path for a job's audio, or JOB_NOT_FOUND when no
// file exists.
func (s *Store) Path(jobID string) (string, error) {
	path, err := s.path(jobID)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", apperr.JobNotFound(jobID)
	}
	return path, nil
}

// Size returns the stored file's size in bytes.
func (s *Store) Size(jobID string) (int64, error) {
	path, err := s.Path(jobID)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, apperr.JobNotFound(jobID)
	}
	return info.Size(), nil
}

// Delete removes a job's audio file. Missing files are not an error.
func (s *Store) Delete(jobID string) error {
	path, err := s.path(jobID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete audio file: %w", err)
	}
	return nil
}

// CleanupOlderThan deletes audio files whose modification time is older than
// maxAge, returning how many were removed.
func (s *Store) CleanupOlderThan(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read audio dir: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".mp3") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.dir, entry.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// path maps a job id to its file, rejecting ids that would escape the
// storage directory.
func (s *Store) path(jobID string) (string, error) {
	if jobID == "" || jobID != filepath.Base(jobID) || strings.ContainsAny(jobID, "/\\") {
		return "", apperr.Validation("invalid job id", map[string]any{"job_id": jobID})
	}
	return filepath.Join(s.dir, jobID+".mp3"), nil
}
