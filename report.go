package reportio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// logExt is the extension of the report's log mirror file.
const logExt = ".log"

// Report orchestrates one reporting run: it resolves connections, executes
// queries, caches every result to a compressed temp file, exports the
// datasets to a workbook or CSV sidecars, and backs the cache up when the
// run fails so a same-day retry resumes instead of re-querying.
//
// A Report's methods are safe to call from Run's worker goroutines, but the
// lifecycle itself (New, Run, Reset, Close) is driven from one goroutine.
type Report struct {
	cfg      *Config
	logger   Logger
	validate *validator

	logMirror  *switchWriter
	logFile    *os.File
	logPath    string
	logDerived bool

	workers     int
	csvComp     CompressionType
	acknowledge func()
	startDate   time.Time
	memLimit    *memoryLimit

	registry *Registry
	store    *tempStore
	backup   *backupCache
	queries  queryList

	mu        sync.Mutex
	name      string
	exporter  *exporter
	completed map[int]bool
}

// New builds a Report called name. The name labels the log mirror and the
// default export path, so it must be usable as a file name fragment.
// Construction loads the configuration, establishes logging, ensures the
// backup and temp directories exist, clears stale output from earlier runs,
// and checks for a same-day backup to resume from.
func New(name string, opts ...Option) (*Report, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	base := o.logger
	if base == nil {
		base = NewTextLogger(os.Stderr, LevelInfo)
	}

	if err := newValidator(base).validateReportName(name); err != nil {
		return nil, err
	}

	cfg, err := loadConfig(o.configPath, name)
	if err != nil {
		return nil, err
	}

	logPath := o.logFile
	derived := logPath == ""
	if derived {
		logPath = filepath.Join(cfg.selfDir(), name+logExt)
	}
	logFile, existed, err := openLogFile(logPath)
	if err != nil {
		return nil, err
	}
	mirror := newSwitchWriter(logFile)
	logger := MultiLogger(base, NewTextLogger(mirror, LevelDebug))

	verb := "new"
	if existed {
		verb = "existing"
	}
	logf(logger, LevelInfo, "starting report with %s log located at '%s'", verb, logPath)

	r := &Report{
		cfg:         cfg,
		logger:      logger,
		validate:    newValidator(logger),
		logMirror:   mirror,
		logFile:     logFile,
		logPath:     logPath,
		logDerived:  derived,
		workers:     o.workers,
		csvComp:     o.csvComp,
		acknowledge: o.acknowledge,
		startDate:   o.clock(),
		memLimit:    newMemoryLimit(o.memoryMB),
		name:        name,
	}
	r.registry = newRegistry(logger, o.creds)
	r.store = newTempStore(cfg.TempDir, logger)
	r.backup = newBackupCache(cfg.BackupDir, r.startDate, r.store, logger, o.hooks)
	r.exporter = newExporter(cfg.ExportTo, logger, o.csvComp)

	ok := false
	defer func() {
		if !ok {
			_ = logFile.Close()
		}
	}()

	if err := r.validate.ensureDir(cfg.BackupDir, "backup"); err != nil {
		return nil, err
	}
	if err := r.validate.ensureDir(cfg.TempDir, "temp"); err != nil {
		return nil, err
	}
	if err := removeStaleOutput(cfg.ExportTo, logger); err != nil {
		return nil, err
	}

	for _, initFunc := range o.initFuncs {
		if err := initFunc(r); err != nil {
			return nil, fmt.Errorf("init hook failed: %w", err)
		}
	}

	if _, err := r.backup.attemptResume(); err != nil {
		return nil, err
	}

	ok = true
	return r, nil
}

// openLogFile opens path for appending and reports whether it existed.
func openLogFile(path string) (*os.File, bool, error) {
	_, statErr := os.Stat(path)
	existed := statErr == nil
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, existed, nil
}

// Name returns the report's current name.
func (r *Report) Name() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.name
}

// Registry exposes the connection registry so embedding programs can map
// additional source kinds with RegisterDriver or adopt handles they dialed
// themselves.
func (r *Report) Registry() *Registry {
	return r.registry
}

// AddQuery appends q to the report. A name containing the reserved "__"
// marker is rejected with ErrDatasetName; a name already in the list is a
// logged no-op so same-day reruns can re-add their queries blindly.
func (r *Report) AddQuery(q Query) error {
	if err := r.validate.validateQueryName(q.Name); err != nil {
		return err
	}
	if !r.queries.add(q) {
		logf(r.logger, LevelWarn, "query '%s' is already in the query list", q.Name)
	}
	return nil
}

// RemoveQuery deletes the query called name from the list.
func (r *Report) RemoveQuery(name string) {
	if r.queries.remove(name) {
		logf(r.logger, LevelInfo, "removing query %s from the query list", name)
	}
}

// Queries returns a snapshot of the query list in run order.
func (r *Report) Queries() []Query {
	return r.queries.list()
}

// Rename validates the new name, persists it to the configuration, and,
// when the log mirror was derived from the name, moves the mirror with it.
func (r *Report) Rename(name string) error {
	if err := r.validate.validateReportName(name); err != nil {
		return err
	}
	logf(r.logger, LevelInfo, "renaming report to %s", name)
	if err := r.cfg.setReportName(name); err != nil {
		return err
	}

	r.mu.Lock()
	r.name = name
	r.mu.Unlock()

	if r.logDerived {
		return r.repointLog(filepath.Join(filepath.Dir(r.logPath), name+logExt))
	}
	return nil
}

// repointLog moves the log mirror to path, carrying its contents along.
func (r *Report) repointLog(path string) error {
	if path == r.logPath {
		return nil
	}
	old := r.logMirror.swap(nil)
	if f, isFile := old.(*os.File); isFile && f != nil {
		if err := f.Close(); err != nil {
			return err
		}
	}
	if err := os.Rename(r.logPath, path); err != nil {
		return err
	}
	f, _, err := openLogFile(path)
	if err != nil {
		return err
	}
	r.logMirror.swap(f)
	r.logFile = f
	r.logPath = path
	return nil
}

// Reset returns the report to a fresh start: the backup is purged, the
// working directories are recreated, stale output is removed, and a new
// empty workbook replaces the current one. The query list is kept.
func (r *Report) Reset() error {
	logf(r.logger, LevelInfo, "resetting report")
	if err := r.backup.deleteBackup(); err != nil {
		return err
	}
	if err := r.validate.ensureDir(r.cfg.BackupDir, "backup"); err != nil {
		return err
	}
	if err := r.validate.ensureDir(r.cfg.TempDir, "temp"); err != nil {
		return err
	}
	if err := removeStaleOutput(r.cfg.ExportTo, r.logger); err != nil {
		return err
	}

	r.mu.Lock()
	old := r.exporter
	r.exporter = newExporter(r.cfg.ExportTo, r.logger, r.csvComp)
	r.completed = nil
	r.mu.Unlock()

	return old.close()
}

// Fetch materializes one query. A dataset that was backed up by a failed
// same-day run is read from the backup directory without touching the
// database; everything else resolves a connection and executes the SQL.
// Named datasets are cached through the temp store so they can be backed up
// if a later query fails.
func (r *Report) Fetch(ctx context.Context, q Query) (*Dataset, error) {
	if q.Name != "" {
		backupPath := r.backup.datasetPath(q.Name)
		if _, err := os.Stat(backupPath); err == nil {
			logf(r.logger, LevelInfo, "reading backup file")
			return readParquet(backupPath)
		}
	}

	ds, err := r.runQuery(ctx, q)
	if err != nil {
		return nil, err
	}
	if ds.Empty() {
		logf(r.logger, LevelWarn, "query was empty")
	}
	if q.Name != "" {
		if _, err := r.store.create(q.Name, ds); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// runQuery resolves the query's connection and scans the result set.
func (r *Report) runQuery(ctx context.Context, q Query) (*Dataset, error) {
	db := q.Conn
	if db == nil {
		source := q.Source
		if source == "" {
			source = q.SourceKind
		}
		dsn := q.SourceLocation
		if dsn == "" {
			var ok bool
			dsn, ok = r.cfg.Source(source)
			if !ok {
				logf(r.logger, LevelDebug, "no [DB] entry for '%s' in %s", source, r.cfg.Path())
				return nil, fmt.Errorf("%w: '%s' has no connection string", ErrUnknownSourceKind, source)
			}
		}
		var err error
		db, err = r.registry.Connect(ctx, source, q.SourceKind, dsn)
		if err != nil {
			return nil, err
		}
	}

	logf(r.logger, LevelInfo, "querying database")
	rows, err := db.QueryContext(ctx, q.SQL)
	if err != nil {
		return nil, NewErrorContext("query", "").WithQuery(q.SQL).Error(err)
	}
	defer rows.Close()

	return scanDataset(rows, r.memLimit)
}

// Export writes one dataset through the report's exporter: a worksheet when
// it fits, a CSV sidecar when it does not. Run calls this for every fetched
// dataset; it is public so callers can add externally produced datasets.
func (r *Report) Export(name string, ds *Dataset) (string, error) {
	return r.currentExporter().export(name, ds)
}

// TempFile caches a dataset through the temp store without exporting it and
// returns the file it landed in. Fetch does this automatically for named
// queries.
func (r *Report) TempFile(name string, ds *Dataset) (string, error) {
	f, err := r.store.create(name, ds)
	if err != nil {
		return "", err
	}
	return f.path, nil
}

// AttemptResume re-checks the backup directory and returns the dataset file
// names a same-day rerun will read from backup. New performs this check
// already; it is public for embedding programs driving their own run loop.
func (r *Report) AttemptResume() ([]string, error) {
	return r.backup.attemptResume()
}

// BackupData copies the run's cached datasets into the backup directory and
// stamps them with the run's start date. Run invokes it when a run fails.
func (r *Report) BackupData() error {
	return r.backup.backupData()
}

// DeleteDataBackup purges the backup directory. Run invokes it after a
// fully successful export.
func (r *Report) DeleteDataBackup() error {
	return r.backup.deleteBackup()
}

// Run executes every registered query, exports the datasets, and saves the
// workbook. Queries fan out across the configured number of workers; when
// the parallel pass fails the incomplete queries are retried sequentially
// before the run is declared failed. On success it returns the paths of
// every artifact produced and purges the backup. On failure it logs at the
// critical level, backs up the cached datasets for a same-day resume, and
// blocks on the acknowledgment function before returning the error.
func (r *Report) Run(ctx context.Context) ([]string, error) {
	queries := r.queries.list()
	if len(queries) == 0 {
		return nil, ErrEmptyReport
	}

	// The log file accumulates across same-day reruns; the run ID ties each
	// line group to one Run call.
	runID := uuid.NewString()
	logf(r.logger, LevelInfo, "starting run %s with %d queries", runID, len(queries))

	r.mu.Lock()
	r.completed = make(map[int]bool, len(queries))
	r.mu.Unlock()

	err := r.dispatch(ctx, queries)
	if err != nil && r.workers > 1 {
		logf(r.logger, LevelWarn, "failed to run parallel, reverting to serial")
		err = r.dispatchSerial(ctx, queries)
	}
	if err != nil {
		return nil, r.fail(runID, err)
	}

	locations, err := r.currentExporter().save(sheetOrder(queries))
	if err != nil {
		return nil, r.fail(runID, err)
	}
	logf(r.logger, LevelDebug, "directory list: %s", strings.Join(locations, ", "))

	if err := r.backup.deleteBackup(); err != nil {
		logf(r.logger, LevelError, "failed to clean up backup: %v", err)
	}
	return locations, nil
}

// dispatch runs every query not yet completed, in parallel when the report
// has more than one worker.
func (r *Report) dispatch(ctx context.Context, queries []Query) error {
	if r.workers <= 1 {
		return r.dispatchSerial(ctx, queries)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := range queries {
		i := i
		g.Go(func() error {
			return r.runOne(gctx, i, queries[i])
		})
	}
	return g.Wait()
}

// dispatchSerial runs the remaining queries one at a time in list order.
func (r *Report) dispatchSerial(ctx context.Context, queries []Query) error {
	for i := range queries {
		if err := r.runOne(ctx, i, queries[i]); err != nil {
			return err
		}
	}
	return nil
}

// runOne fetches and exports one query, skipping it when an earlier pass
// already completed it.
func (r *Report) runOne(ctx context.Context, i int, q Query) error {
	r.mu.Lock()
	done := r.completed[i]
	r.mu.Unlock()
	if done {
		return nil
	}

	ds, err := r.Fetch(ctx, q)
	if err != nil {
		return err
	}
	if _, err := r.Export(q.Name, ds); err != nil {
		return err
	}

	r.mu.Lock()
	r.completed[i] = true
	r.mu.Unlock()
	return nil
}

// fail runs the failure branch: critical log, dataset backup, operator
// acknowledgment. The original error passes through unchanged.
func (r *Report) fail(runID string, err error) error {
	logf(r.logger, LevelCritical, "run %s failed, see log for debug details", runID)
	if backupErr := r.backup.backupData(); backupErr != nil {
		logf(r.logger, LevelError, "failed to back up data: %v", backupErr)
	}
	if r.acknowledge != nil {
		r.acknowledge()
	}
	return err
}

// sheetOrder lists the names that should appear as worksheets, in query
// list order. Unnamed queries float where their Sheet<N> placeholder landed.
func sheetOrder(queries []Query) []string {
	names := make([]string, 0, len(queries))
	for _, q := range queries {
		if q.Name != "" {
			names = append(names, q.Name)
		}
	}
	return names
}

// currentExporter returns the live exporter; Reset swaps it out.
func (r *Report) currentExporter() *exporter {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exporter
}

// Close releases the report's resources: database handles, cached temp
// files, the in-memory workbook, and the log mirror. The backup directory
// is left alone so a failed run can still resume later the same day.
func (r *Report) Close() error {
	var firstErr error
	if err := r.registry.CloseAll(); err != nil {
		firstErr = err
	}
	r.store.removeAll()
	if err := r.currentExporter().close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if r.logFile != nil {
		r.logMirror.swap(nil)
		if err := r.logFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
