package interfaces

import (
	"github.com/ternarybob/respondeo/internal/models"
)

// VersionService tracks document content hashes to drive re-ingestion decisions.
// The content hash, not the modification time alone, is the source of truth:
// a file is unchanged iff its current hash equals the last recorded hash.
type VersionService interface {
	// NeedsReindex reports whether the file's content differs from its last
	// recorded version (true for files never seen before)
	NeedsReindex(path string) (bool, error)

	// Update records the file's current hash, size, and modification time
	Update(path string, metadata map[string]string) (*models.VersionRecord, error)

	// History returns recorded versions of a file, newest first
	History(fileName string) ([]*models.VersionHistoryEntry, error)

	// Backup copies the file into the backups directory before overwrite
	Backup(path string) (string, error)

	// Restore copies a backup over the original and clears the version
	// record so the next ingestion run re-indexes the restored content
	Restore(backupPath string, originalPath string) error
}
