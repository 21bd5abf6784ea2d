package reportio

import (
	"database/sql"
	"sync"
)

// Query describes one dataset the report produces.
type Query struct {
	// Name labels the dataset, its cache file and its worksheet. Double
	// underscores are reserved for cache file bookkeeping and rejected by
	// AddQuery. An empty name exports as Sheet<N>.
	Name string

	// SQL is the statement to run.
	SQL string

	// SourceKind selects the driver through the registry, for example
	// "sqlite" or a kind added with RegisterDriver.
	SourceKind string

	// Source names the connection entry in the [DB] config section and
	// keys the registry's connection memo. Empty defaults to SourceKind.
	Source string

	// SourceLocation overrides the configured connection string when set.
	SourceLocation string

	// Conn is an optional pre-resolved handle. When set the registry is
	// bypassed for this query.
	Conn *sql.DB
}

// queryList is the mutable, mutex guarded set of queries a report runs.
// Order is preserved; it decides both run order and worksheet order.
type queryList struct {
	mu      sync.Mutex
	queries []Query
}

// add appends q and reports whether it was new. A query with the same name
// as an existing entry is not added.
func (l *queryList) add(q Query) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.queries {
		if existing.Name == q.Name {
			return false
		}
	}
	l.queries = append(l.queries, q)
	return true
}

// remove deletes the query named name and reports whether it was present.
func (l *queryList) remove(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, q := range l.queries {
		if q.Name == name {
			l.queries = append(l.queries[:i], l.queries[i+1:]...)
			return true
		}
	}
	return false
}

// list returns a snapshot in insertion order.
func (l *queryList) list() []Query {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Query, len(l.queries))
	copy(out, l.queries)
	return out
}

// len reports the number of queries.
func (l *queryList) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queries)
}

// clear empties the list.
func (l *queryList) clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queries = nil
}
