package reportio

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// tempFile is one cached query result under the temp directory.
type tempFile struct {
	name string
	path string
}

// tempStore allocates uniquely named dataset caches and tracks them for
// backup consideration. The file list is run scoped and append only;
// concurrent dispatch goroutines share it, so every access takes the lock.
type tempStore struct {
	dir    string
	logger Logger

	mu    sync.Mutex
	files []*tempFile
}

func newTempStore(dir string, logger Logger) *tempStore {
	return &tempStore{dir: dir, logger: logger}
}

// create serializes ds to a uniquely named file suffixed __<name>.gz under
// the temp directory and tracks the handle. Names containing the reserved
// separator, or names the OS rejects, map to ErrDatasetName.
func (s *tempStore) create(name string, ds *Dataset) (*tempFile, error) {
	if strings.Contains(name, "__") {
		return nil, fmt.Errorf("%w: %q contains reserved separator", ErrDatasetName, name)
	}

	file, err := os.CreateTemp(s.dir, "*__"+name+extGZ)
	if err != nil {
		logf(s.logger, LevelDebug, "%v", err)
		return nil, fmt.Errorf("%w: %q", ErrDatasetName, name)
	}

	if err := writeParquet(file, ds); err != nil {
		_ = file.Close()
		_ = os.Remove(file.Name())
		return nil, NewErrorContext("dataset cache", file.Name()).WithQuery(name).Error(err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(file.Name())
		return nil, NewErrorContext("dataset cache", file.Name()).WithQuery(name).Error(err)
	}

	handle := &tempFile{name: name, path: file.Name()}
	s.mu.Lock()
	s.files = append(s.files, handle)
	s.mu.Unlock()

	logf(s.logger, LevelInfo, "file saved")
	return handle, nil
}

// list returns a snapshot of the tracked files.
func (s *tempStore) list() []*tempFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*tempFile, len(s.files))
	copy(out, s.files)
	return out
}

// removeAll deletes every tracked file and clears the list. Files already
// gone are skipped.
func (s *tempStore) removeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.files {
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			logf(s.logger, LevelDebug, "failed to remove %s: %v", f.path, err)
		}
	}
	s.files = nil
}
