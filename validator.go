package reportio

import (
	"fmt"
	"os"
	"strings"
)

// validator handles name and directory validation for Report construction
type validator struct {
	logger Logger
}

// newValidator creates a new validator instance
func newValidator(logger Logger) *validator {
	return &validator{logger: logger}
}

// validateReportName checks that a report name can serve as a temp-file
// suffix. The reserved "__" separator is rejected outright; everything else
// is probed by actually allocating a file, so OS-specific rules apply
// without being re-implemented here.
func (v *validator) validateReportName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is empty", ErrReportName)
	}
	if strings.Contains(name, "__") {
		return fmt.Errorf("%w: %q contains reserved separator", ErrReportName, name)
	}

	probe, err := os.CreateTemp("", "*__"+name)
	if err != nil {
		logf(v.logger, LevelDebug, "%v", err)
		return fmt.Errorf("%w: %q", ErrReportName, name)
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())
	return nil
}

// validateQueryName applies the dataset naming rules to a query name.
func (v *validator) validateQueryName(name string) error {
	if strings.Contains(name, "__") {
		return fmt.Errorf("%w: %q contains reserved separator", ErrDatasetName, name)
	}
	return nil
}

// ensureDir creates dir when missing and verifies it is a directory.
func (v *validator) ensureDir(dir, purpose string) error {
	info, err := os.Stat(dir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return fmt.Errorf("%s path exists but is not a directory: %s", purpose, dir)
		}
		return nil
	case os.IsNotExist(err):
		logf(v.logger, LevelDebug, "creating %s directory at '%s'", purpose, dir)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create %s directory: %w", purpose, err)
		}
		return nil
	default:
		return fmt.Errorf("failed to stat %s directory: %w", purpose, err)
	}
}
