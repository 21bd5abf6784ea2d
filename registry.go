package reportio

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	// The sqlite source kind works out of the box.
	_ "modernc.org/sqlite"
)

// maxConnectAttempts is the retry budget for one source.
const maxConnectAttempts = 5

// Registry memoizes one live database handle per source and owns the
// credential retry loop. Each Report carries its own Registry; nothing here
// is process global, so two reports can talk to the same source with
// different credentials.
type Registry struct {
	logger Logger
	creds  CredentialProvider

	mu      sync.Mutex
	conns   map[string]*sql.DB
	drivers map[string]string
}

// newRegistry creates a registry with the builtin sqlite driver mapping.
func newRegistry(logger Logger, creds CredentialProvider) *Registry {
	return &Registry{
		logger: logger,
		creds:  creds,
		conns:  make(map[string]*sql.DB),
		drivers: map[string]string{
			"sqlite": "sqlite",
		},
	}
}

// RegisterDriver maps a source kind to a database/sql driver name. The
// embedding program must import the driver it names so that sql.Open can
// find it.
func (r *Registry) RegisterDriver(kind, driverName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[kind] = driverName
}

// Connect returns the memoized handle for source, dialing it on first use
// with the driver registered for kind. A failed attempt asks the credential
// provider for a username and password, strips any credentials already
// embedded in the connection string, embeds the fresh pair, and tries again,
// up to maxConnectAttempts in total.
func (r *Registry) Connect(ctx context.Context, source, kind, dsn string) (*sql.DB, error) {
	if kind == "" {
		kind = source
	}

	r.mu.Lock()
	if db, ok := r.conns[source]; ok {
		r.mu.Unlock()
		logf(r.logger, LevelDebug, "using existing connection object for '%s'", source)
		return db, nil
	}
	driverName, registered := r.drivers[kind]
	r.mu.Unlock()

	if !registered {
		return nil, fmt.Errorf("%w: no driver registered for '%s'", ErrUnknownSourceKind, kind)
	}

	logf(r.logger, LevelInfo, "connecting to %s", source)

	var lastErr error
	attemptDSN := dsn
	for attempt := 1; attempt <= maxConnectAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		db, err := r.dial(ctx, driverName, attemptDSN)
		if err == nil {
			return r.store(source, db), nil
		}
		lastErr = err
		logf(r.logger, LevelError, "unable to connect!")

		if r.creds == nil || attempt == maxConnectAttempts {
			continue
		}
		logf(r.logger, LevelDebug, "attempting login with username and password from provider")
		creds, credErr := r.creds.Credentials(ctx, source)
		if credErr != nil {
			return nil, fmt.Errorf("%w: credential provider for %s: %w", ErrConnection, source, credErr)
		}
		attemptDSN = embedCredentials(stripCredentials(dsn), creds)
	}

	logf(r.logger, LevelDebug, "connection string (without UID or PWD): %s", stripCredentials(dsn))
	return nil, fmt.Errorf("%w: %s after %d attempts: %w",
		ErrConnection, source, maxConnectAttempts, lastErr)
}

// dial opens and verifies one connection.
func (r *Registry) dial(ctx context.Context, driverName, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// store memoizes db for source. When another goroutine won the dial race the
// fresh handle is closed and the existing one returned, so the registry never
// holds two handles for one source.
func (r *Registry) store(source string, db *sql.DB) *sql.DB {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.conns[source]; ok {
		_ = db.Close()
		return existing
	}
	r.conns[source] = db
	logf(r.logger, LevelDebug, "using new connection object for '%s'", source)
	return db
}

// Add registers an already open handle under source, adopting connections the
// embedding program dialed itself. Closing the registry closes adopted
// handles too.
func (r *Registry) Add(source string, db *sql.DB) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.conns[source]; ok && existing != db {
		_ = existing.Close()
	}
	r.conns[source] = db
}

// CloseAll closes every memoized handle and forgets them. The first error
// wins but every handle is still closed.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for source, db := range r.conns {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close connection for %s: %w", source, err)
		}
		delete(r.conns, source)
	}
	return firstErr
}

// stripCredentials removes UID and PWD segments from a semicolon separated
// connection string so a failed pair is never retried or logged.
func stripCredentials(dsn string) string {
	parts := strings.Split(dsn, ";")
	kept := parts[:0]
	for _, part := range parts {
		key, _, _ := strings.Cut(strings.TrimSpace(part), "=")
		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "UID", "PWD", "USER", "PASSWORD":
			continue
		}
		kept = append(kept, part)
	}
	return strings.Trim(strings.Join(kept, ";"), ";")
}

// embedCredentials appends the pair to a semicolon separated connection
// string. An empty username leaves the string untouched.
func embedCredentials(dsn string, creds Credentials) string {
	if creds.Username == "" {
		return dsn
	}
	return dsn + ";UID=" + creds.Username + ";PWD=" + creds.Password
}
