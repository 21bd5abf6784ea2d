package reportio

import (
	"fmt"
	"path/filepath"

	"gopkg.in/ini.v1"
)

// defaultConfigPath is used when no WithConfigPath option is given.
const defaultConfigPath = "config.txt"

// Config section and key names.
const (
	sectionReport = "REPORT"
	sectionDB     = "DB"

	keyExportTo   = "export_to"
	keyBackupDir  = "backup_folder"
	keyTempDir    = "temp_files_folder"
	keyReportName = "report_name"
	keySelfDir    = "self_dir"
)

// Config is the report configuration backed by an INI file. It is read once
// at construction, mutated to inject runtime-discovered paths and the
// current report name, and rewritten to disk.
type Config struct {
	path string
	file *ini.File

	// ReportName is the name injected at construction.
	ReportName string
	// ExportTo is the output base path, without extension.
	ExportTo string
	// BackupDir holds same-day dataset snapshots and the date marker.
	BackupDir string
	// TempDir holds the run's temporary dataset files.
	TempDir string

	sources map[string]string
}

// loadConfig reads the INI file at path. A missing file is fatal: report
// runs are driven by operator-managed configuration, never implicit
// defaults. Relative folder values resolve against the config directory.
func loadConfig(path, reportName string) (*Config, error) {
	if path == "" {
		path = defaultConfigPath
	}

	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConfig, path)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConfig, path)
	}
	selfDir := filepath.Dir(absPath)

	report := file.Section(sectionReport)
	report.Key(keySelfDir).SetValue(selfDir)
	report.Key(keyReportName).SetValue(reportName)

	resolve := func(key, fallback string) string {
		value := report.Key(key).String()
		if value == "" {
			value = fallback
			report.Key(key).SetValue(value)
		}
		if !filepath.IsAbs(value) {
			value = filepath.Join(selfDir, value)
		}
		return value
	}

	cfg := &Config{
		path:       absPath,
		file:       file,
		ReportName: reportName,
		ExportTo:   resolve(keyExportTo, reportName),
		BackupDir:  resolve(keyBackupDir, "backup"),
		TempDir:    resolve(keyTempDir, "temp_files"),
		sources:    file.Section(sectionDB).KeysHash(),
	}

	if err := cfg.rewrite(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the absolute config file location.
func (c *Config) Path() string {
	return c.path
}

// selfDir is the directory holding the config file. Relative folder values
// and default artifact paths resolve against it.
func (c *Config) selfDir() string {
	return filepath.Dir(c.path)
}

// Source returns the connection string for a source kind from the DB
// section.
func (c *Config) Source(kind string) (string, bool) {
	dsn, ok := c.sources[kind]
	return dsn, ok
}

// setReportName updates the injected report name and rewrites the file.
func (c *Config) setReportName(name string) error {
	c.ReportName = name
	c.file.Section(sectionReport).Key(keyReportName).SetValue(name)
	return c.rewrite()
}

// rewrite persists the mutated configuration.
func (c *Config) rewrite() error {
	if err := c.file.SaveTo(c.path); err != nil {
		return fmt.Errorf("failed to rewrite configuration: %w", err)
	}
	return nil
}
