package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pandeptwidyaop/deploy-manager/internal/models"
	"github.com/pandeptwidyaop/deploy-manager/internal/validation"
)

var (
	// ErrNoBackupsDir indicates the instance has no backups directory configured.
	ErrNoBackupsDir = errors.New("instance has no backups directory")
	// ErrBackupNotFound indicates the requested backup does not exist.
	ErrBackupNotFound = errors.New("backup not found")
)

// BackupService lists the web root backups of instances.
type BackupService struct{}

// NewBackupService creates a new BackupService instance.
func NewBackupService() *BackupService {
	return &BackupService{}
}

// List returns the backup ids of the instance, newest first. Backups are the
// directories directly inside the backups directory; their names are the
// date stamps of the builds that made them, so they sort by age. A backups
// directory that does not exist yet has no backups.
func (s *BackupService) List(d models.InstanceDescriptor) ([]string, error) {
	if !d.HasBackups() {
		return nil, ErrNoBackupsDir
	}

	entries, err := os.ReadDir(d.BackupsDir)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backups directory: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}

// Check verifies that id names an existing backup of the instance.
func (s *BackupService) Check(d models.InstanceDescriptor, id string) error {
	if !d.HasBackups() {
		return ErrNoBackupsDir
	}
	if err := validation.ValidateBackupID(id); err != nil {
		return fmt.Errorf("%w: %s", ErrBackupNotFound, id)
	}

	info, err := os.Stat(filepath.Join(d.BackupsDir, id))
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrBackupNotFound, id)
	}
	return nil
}
