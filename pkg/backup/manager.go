package backup

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/pluginsync/pkg/observability"
	"github.com/platinummonkey/pluginsync/pkg/storage"
)

// ErrBackupExists means a snapshot is already on disk
var ErrBackupExists = errors.New("backup already exists")

// ErrHandleMismatch means the handle was not produced by this manager
var ErrHandleMismatch = errors.New("backup handle does not belong to this manager")

// Handle identifies a snapshot
type Handle struct {
	Source    string
	Path      string
	CreatedAt time.Time
}

// Manager snapshots and restores one directory
type Manager struct {
	fs     storage.Filesystem
	source string
	path   string
	log    *logrus.Logger
}

// NewManager creates a manager for source. An empty backupPath defaults to
// the sibling "<source>.bak".
func NewManager(fsys storage.Filesystem, source, backupPath string, log *logrus.Logger) *Manager {
	source = filepath.Clean(source)
	if backupPath == "" {
		backupPath = source + ".bak"
	}
	return &Manager{
		fs:     fsys,
		source: source,
		path:   filepath.Clean(backupPath),
		log:    observability.OrDefault(log),
	}
}

// Path returns where snapshots are stored
func (m *Manager) Path() string {
	return m.path
}

// Pending reports whether a snapshot is on disk
func (m *Manager) Pending() (bool, error) {
	return m.fs.Exists(m.path)
}

// Snapshot copies the source directory to the backup location
func (m *Manager) Snapshot() (*Handle, error) {
	exists, err := m.fs.Exists(m.path)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w at %s: a previous recovery did not complete", ErrBackupExists, m.path)
	}

	if err := m.fs.CopyTree(m.source, m.path); err != nil {
		// leave nothing half-copied behind, or the next snapshot would refuse
		if rmErr := m.fs.RemoveAll(m.path); rmErr != nil {
			m.log.Errorf("Failed to clean up partial backup %s: %v", m.path, rmErr)
		}
		return nil, fmt.Errorf("snapshot %s: %w", m.source, err)
	}

	m.log.WithField("path", m.path).Infof("Backed up %s", m.source)
	return &Handle{Source: m.source, Path: m.path, CreatedAt: time.Now()}, nil
}

// Restore replaces the source directory with the snapshot and removes the
// snapshot
func (m *Manager) Restore(h *Handle) error {
	if err := m.check(h); err != nil {
		return err
	}

	m.log.WithField("path", h.Path).Warnf("Restoring %s from backup", h.Source)

	if err := m.fs.RemoveAll(h.Source); err != nil {
		return fmt.Errorf("restore %s: %w", h.Source, err)
	}
	if err := m.fs.CopyTree(h.Path, h.Source); err != nil {
		return fmt.Errorf("restore %s: %w", h.Source, err)
	}
	if err := m.fs.RemoveAll(h.Path); err != nil {
		return fmt.Errorf("remove backup %s: %w", h.Path, err)
	}
	return nil
}

// Discard removes the snapshot
func (m *Manager) Discard(h *Handle) error {
	if err := m.check(h); err != nil {
		return err
	}
	if err := m.fs.RemoveAll(h.Path); err != nil {
		return fmt.Errorf("discard backup %s: %w", h.Path, err)
	}
	m.log.WithField("path", h.Path).Debug("Discarded backup")
	return nil
}

func (m *Manager) check(h *Handle) error {
	if h == nil || h.Path != m.path || h.Source != m.source {
		return ErrHandleMismatch
	}
	return nil
}
