// Package versions tracks document content hashes so ingestion can decide
// which files actually changed. The hash is the source of truth; file
// modification times only travel along as metadata.
package versions

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/models"
)

// Service implements the VersionService interface
type Service struct {
	versions   interfaces.VersionStorage
	backupsDir string
	logger     arbor.ILogger
}

// NewService creates a version tracking service
func NewService(versions interfaces.VersionStorage, backupsDir string, logger arbor.ILogger) *Service {
	return &Service{
		versions:   versions,
		backupsDir: backupsDir,
		logger:     logger,
	}
}

// NeedsReindex reports whether the file's content differs from its last
// recorded version. Files never seen before always need indexing.
func (s *Service) NeedsReindex(path string) (bool, error) {
	hash, err := hashFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to hash %s: %w", path, err)
	}

	record, err := s.versions.GetVersion(filepath.Base(path))
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load version record for %s: %w", path, err)
	}

	return record.ContentHash != hash, nil
}

// Update records the file's current hash, size, and modification time, and
// appends a history entry.
func (s *Service) Update(path string, metadata map[string]string) (*models.VersionRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	hash, err := hashFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to hash %s: %w", path, err)
	}

	record := &models.VersionRecord{
		FileName:     filepath.Base(path),
		ContentHash:  hash,
		LastModified: info.ModTime(),
		Size:         info.Size(),
		Metadata:     metadata,
		UpdatedAt:    time.Now(),
	}

	if err := s.versions.SaveVersion(record); err != nil {
		return nil, fmt.Errorf("failed to save version record for %s: %w", path, err)
	}

	entry := &models.VersionHistoryEntry{
		FileName:    record.FileName,
		ContentHash: hash,
		Size:        info.Size(),
		RecordedAt:  record.UpdatedAt,
	}
	if err := s.versions.AppendHistory(entry); err != nil {
		return nil, fmt.Errorf("failed to append version history for %s: %w", path, err)
	}

	s.logger.Debug().
		Str("file", record.FileName).
		Str("hash", hash[:12]).
		Int64("size", info.Size()).
		Msg("Version record updated")

	return record, nil
}

// History returns recorded versions of a file, newest first
func (s *Service) History(fileName string) ([]*models.VersionHistoryEntry, error) {
	entries, err := s.versions.GetHistory(fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to load version history for %s: %w", fileName, err)
	}
	return entries, nil
}

// Backup copies the file into the backups directory with a timestamped
// name and returns the backup path.
func (s *Service) Backup(path string) (string, error) {
	if s.backupsDir == "" {
		return "", fmt.Errorf("backups directory is not configured")
	}

	if err := os.MkdirAll(s.backupsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backups directory: %w", err)
	}

	stamp := time.Now().Format("20060102-150405")
	backupPath := filepath.Join(s.backupsDir, fmt.Sprintf("%s.%s.bak", filepath.Base(path), stamp))

	if err := copyFile(path, backupPath); err != nil {
		return "", fmt.Errorf("failed to back up %s: %w", path, err)
	}

	s.logger.Info().
		Str("file", filepath.Base(path)).
		Str("backup", backupPath).
		Msg("Document backed up")

	return backupPath, nil
}

// Restore copies a backup over the original and clears the version record
// so the next ingestion run re-indexes the restored content.
func (s *Service) Restore(backupPath string, originalPath string) error {
	if err := copyFile(backupPath, originalPath); err != nil {
		return fmt.Errorf("failed to restore %s from %s: %w", originalPath, backupPath, err)
	}

	fileName := filepath.Base(originalPath)
	if err := s.versions.DeleteVersion(fileName); err != nil && !errors.Is(err, interfaces.ErrKeyNotFound) {
		return fmt.Errorf("failed to clear version record for %s: %w", fileName, err)
	}

	s.logger.Info().
		Str("file", fileName).
		Str("backup", backupPath).
		Msg("Document restored from backup")

	return nil
}

// hashFile returns the hex-encoded SHA-256 of the file contents
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

// Ensure Service implements the interface
var _ interfaces.VersionService = (*Service)(nil)
