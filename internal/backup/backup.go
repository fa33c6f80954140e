// Package backup keeps rotating snapshots of the local SQLite database.
package backup

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/logger"
)

const (
	// Retention is the number of snapshots kept after each new one
	Retention = 14
	DirName   = "backups"

	filePrefix = constants.AppName + "-"
	fileSuffix = ".db"
	stampFmt   = "20060102-150405"
)

// ErrNoDatabase is returned when there is nothing to back up.
var ErrNoDatabase = errors.New("database does not exist")

// Snapshot describes one backup file.
type Snapshot struct {
	Path    string
	Taken   time.Time
	Size    int64
	Ordinal int // disambiguates snapshots taken within the same second
}

func (s Snapshot) Name() string {
	return filepath.Base(s.Path)
}

type Manager struct {
	dbPath string
	dir    string
	now    func() time.Time
}

// NewManager stores snapshots in a backups directory next to dbPath.
func NewManager(dbPath string) *Manager {
	return &Manager{
		dbPath: dbPath,
		dir:    filepath.Join(filepath.Dir(dbPath), DirName),
		now:    time.Now,
	}
}

func (m *Manager) Dir() string {
	return m.dir
}

// Create snapshots the database and prunes snapshots beyond Retention.
func (m *Manager) Create() (Snapshot, error) {
	snap, err := m.snapshot()
	if err != nil {
		return Snapshot{}, err
	}
	if err := m.prune(); err != nil {
		logger.Warn("Failed to prune old backups", "dir", m.dir, "error", err)
	}
	return snap, nil
}

func (m *Manager) snapshot() (Snapshot, error) {
	if _, err := os.Stat(m.dbPath); errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNoDatabase, m.dbPath)
	}
	if err := os.MkdirAll(m.dir, 0700); err != nil {
		return Snapshot{}, fmt.Errorf("failed to create backup directory: %w", err)
	}

	taken := m.now().UTC()
	path := ""
	ordinal := 0
	for ; ordinal < 100; ordinal++ {
		path = filepath.Join(m.dir, fileName(taken, ordinal))
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			break
		}
	}
	if ordinal == 100 {
		return Snapshot{}, errors.New("failed to generate unique backup filename")
	}

	if err := vacuumInto(m.dbPath, path); err != nil {
		return Snapshot{}, fmt.Errorf("failed to back up database: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return Snapshot{}, err
	}
	logger.Info("Created backup", "path", path)
	return Snapshot{Path: path, Taken: taken.Truncate(time.Second), Size: info.Size(), Ordinal: ordinal}, nil
}

func fileName(taken time.Time, ordinal int) string {
	stamp := taken.Format(stampFmt)
	if ordinal > 0 {
		stamp = fmt.Sprintf("%s-%d", stamp, ordinal)
	}
	return filePrefix + stamp + fileSuffix
}

// parseName reverses fileName.
func parseName(name string) (time.Time, int, bool) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return time.Time{}, 0, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)

	ordinal := 0
	if len(stamp) > len(stampFmt) {
		if _, err := fmt.Sscanf(stamp[len(stampFmt):], "-%d", &ordinal); err != nil {
			return time.Time{}, 0, false
		}
		stamp = stamp[:len(stampFmt)]
	}
	taken, err := time.Parse(stampFmt, stamp)
	if err != nil {
		return time.Time{}, 0, false
	}
	return taken, ordinal, true
}

// List returns snapshots newest first.
func (m *Manager) List() ([]Snapshot, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var snaps []Snapshot
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		taken, ordinal, ok := parseName(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		snaps = append(snaps, Snapshot{
			Path:    filepath.Join(m.dir, entry.Name()),
			Taken:   taken,
			Size:    info.Size(),
			Ordinal: ordinal,
		})
	}

	sort.Slice(snaps, func(i, j int) bool {
		if !snaps[i].Taken.Equal(snaps[j].Taken) {
			return snaps[i].Taken.After(snaps[j].Taken)
		}
		return snaps[i].Ordinal > snaps[j].Ordinal
	})
	return snaps, nil
}

func (m *Manager) prune() error {
	snaps, err := m.List()
	if err != nil {
		return err
	}
	for _, s := range snaps[min(len(snaps), Retention):] {
		if err := os.Remove(s.Path); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", s.Name(), err)
		}
	}
	return nil
}

// Restore replaces the database with the snapshot at path. The current database,
// if any, is snapshotted first and that snapshot is returned. The database must be closed.
func (m *Manager) Restore(path string) (*Snapshot, error) {
	if err := verify(path); err != nil {
		return nil, fmt.Errorf("backup file is corrupted or invalid: %w", err)
	}

	var current *Snapshot
	if _, err := os.Stat(m.dbPath); err == nil {
		snap, err := m.snapshot()
		if err != nil {
			return nil, fmt.Errorf("failed to back up current database before restore: %w", err)
		}
		current = &snap
	}

	tmp := m.dbPath + ".restore.tmp"
	if err := copyFile(path, tmp); err != nil {
		return current, fmt.Errorf("failed to copy backup file: %w", err)
	}
	if err := os.Rename(tmp, m.dbPath); err != nil {
		_ = os.Remove(tmp)
		return current, fmt.Errorf("failed to restore database: %w", err)
	}
	logger.Info("Restored database", "from", path)
	return current, nil
}

func verify(path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return err
	}
	defer db.Close()

	var count int
	return db.QueryRow("SELECT COUNT(*) FROM sqlite_master").Scan(&count)
}

// vacuumInto writes a consistent copy of src to dst, falling back to a file copy.
func vacuumInto(src, dst string) error {
	db, err := sql.Open("sqlite", src+"?mode=ro")
	if err != nil {
		return fmt.Errorf("failed to open source database: %w", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master").Scan(&count); err != nil {
		return fmt.Errorf("source database appears to be corrupted: %w", err)
	}
	if _, err := db.Exec("VACUUM INTO ?", dst); err != nil {
		logger.Debug("VACUUM INTO failed, copying file", "error", err)
		return copyFile(src, dst)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
