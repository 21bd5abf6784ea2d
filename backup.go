package reportio

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// backupMarkerName is the file recording when the backed up run started.
	backupMarkerName = "startDate.txt"
	// backupDateLayout is the marker's date format.
	backupDateLayout = "2006-01-02"
)

// Hooks customizes how a report persists extra state next to its backup.
// Nil fields are skipped. The dataset copies themselves are not replaceable;
// hooks run alongside them.
type Hooks struct {
	// Backup runs after the datasets are copied and before the marker is
	// written. Use it to persist non-dataset state such as the query list.
	Backup func() error

	// Restore runs when a fresh backup is detected, before the resumed
	// dataset names are returned.
	Restore func() error

	// DeleteFile is called for every file in the backup directory during a
	// purge, before the built-in sweep removes dataset and marker files.
	// Use it to clean up extra file kinds the Backup hook created.
	DeleteFile func(path string) error
}

// backupCache moves cached datasets between the temp directory and a backup
// directory so a failed run can resume on the same day without re-querying.
type backupCache struct {
	dir       string
	startDate time.Time
	store     *tempStore
	logger    Logger
	hooks     Hooks
}

func newBackupCache(dir string, startDate time.Time, store *tempStore, logger Logger, hooks Hooks) *backupCache {
	return &backupCache{
		dir:       dir,
		startDate: startDate,
		store:     store,
		logger:    logger,
		hooks:     hooks,
	}
}

// backupName maps a temp file name to its stable backup name by dropping the
// random prefix CreateTemp added: "123456__Category.gz" becomes
// "Category.gz".
func backupName(path string) string {
	base := filepath.Base(path)
	if i := strings.LastIndex(base, "__"); i >= 0 {
		return base[i+2:]
	}
	return base
}

// backupData copies every tracked temp dataset into the backup directory,
// runs the backup hook, then writes the marker. A dataset that fails to copy
// is logged and skipped; the marker is still written so the surviving copies
// can be resumed.
func (c *backupCache) backupData() error {
	logf(c.logger, LevelWarn, "backing up data")

	for _, f := range c.store.list() {
		dst := filepath.Join(c.dir, backupName(f.path))
		if err := copyDataset(f.path, dst); err != nil {
			logf(c.logger, LevelError, "failed to back up '%s': %v", f.name, err)
			continue
		}
	}

	if c.hooks.Backup != nil {
		if err := c.hooks.Backup(); err != nil {
			return fmt.Errorf("backup hook failed: %w", err)
		}
	}
	if err := c.writeMarker(); err != nil {
		return err
	}

	logf(c.logger, LevelDebug, "backup location: %s", c.dir)
	logf(c.logger, LevelInfo, "backup successful")
	return nil
}

// copyDataset re-serializes one dataset file rather than copying bytes, so a
// truncated temp file surfaces as an error here instead of at resume time.
func copyDataset(src, dst string) error {
	ds, err := readParquet(src)
	if err != nil {
		return err
	}
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if err := writeParquet(f, ds); err != nil {
		_ = f.Close()
		_ = os.Remove(dst)
		return err
	}
	return f.Close()
}

// attemptResume inspects the backup directory. It returns the file names of
// the datasets to read from backup when the marker matches the run's start
// date, purges the directory when the marker is stale, and returns nothing
// when no backup exists. Calling it twice without an intervening backup
// returns the same list.
func (c *backupCache) attemptResume() ([]string, error) {
	logf(c.logger, LevelDebug, "checking for backup files")

	raw, err := os.ReadFile(filepath.Join(c.dir, backupMarkerName))
	if err != nil {
		if os.IsNotExist(err) {
			logf(c.logger, LevelDebug, "no backup found")
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", errBackupMarker, err)
	}

	marked, err := time.Parse(backupDateLayout, strings.TrimSpace(string(raw)))
	if err != nil {
		logf(c.logger, LevelDebug, "backup marker is unreadable, discarding backup")
		return nil, c.deleteBackup()
	}

	// Same calendar date counts as recent regardless of the wall clock gap.
	my, mm, md := marked.Date()
	sy, sm, sd := c.startDate.Date()
	if my != sy || mm != sm || md != sd {
		return nil, c.deleteBackup()
	}

	names, err := c.datasetNames()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		logf(c.logger, LevelDebug, "no recent backup files found")
		return nil, nil
	}

	logf(c.logger, LevelInfo, "resuming previous attempt")
	logf(c.logger, LevelDebug, "these files will be read from backup: %s", strings.Join(names, ", "))

	if c.hooks.Restore != nil {
		if err := c.hooks.Restore(); err != nil {
			return nil, fmt.Errorf("restore hook failed: %w", err)
		}
	}
	return names, nil
}

// deleteBackup purges the backup directory. Every file is offered to the
// delete hook first; the built-in sweep then removes dataset and marker
// files. The first error wins but the sweep keeps going.
func (c *backupCache) deleteBackup() error {
	logf(c.logger, LevelInfo, "cleaning up old data backup")

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var firstErr error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(c.dir, entry.Name())
		if c.hooks.DeleteFile != nil {
			if err := c.hooks.DeleteFile(path); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		switch filepath.Ext(entry.Name()) {
		case extGZ, extTXT:
			logf(c.logger, LevelDebug, "removing '%s'", path)
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// datasetNames lists the dataset files currently in the backup directory,
// sorted for a stable resume order.
func (c *backupCache) datasetNames() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != extGZ {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// datasetPath returns where the dataset called name lives in the backup
// directory.
func (c *backupCache) datasetPath(name string) string {
	return filepath.Join(c.dir, name+extGZ)
}

// writeMarker records the run's start date, not the backup time, so a run
// that starts before midnight and fails after it is treated as stale.
func (c *backupCache) writeMarker() error {
	path := filepath.Join(c.dir, backupMarkerName)
	data := []byte(c.startDate.Format(backupDateLayout) + "\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("%w: %w", errBackupMarker, err)
	}
	return nil
}
