package reportio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/ini.v1"
)

// writeConfigFile writes an INI config under its own directory and returns
// the file path.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600), "writing the config should succeed")
	return path
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := loadConfig(filepath.Join(t.TempDir(), "absent.txt"), "Report")
	assert.ErrorIs(t, err, ErrConfig, "a missing config file should be fatal")
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "[DB]\nsqlite = sample.db\n")
	dir := filepath.Dir(path)

	cfg, err := loadConfig(path, "Sales")
	require.NoError(t, err, "loading should succeed")

	assert.Equal(t, "Sales", cfg.ReportName, "report name should be injected")
	assert.Equal(t, filepath.Join(dir, "Sales"), cfg.ExportTo, "export path should default to the report name")
	assert.Equal(t, filepath.Join(dir, "backup"), cfg.BackupDir, "backup folder should default next to the config")
	assert.Equal(t, filepath.Join(dir, "temp_files"), cfg.TempDir, "temp folder should default next to the config")
	assert.Equal(t, dir, cfg.selfDir(), "selfDir should be the config directory")

	// The resolved values are persisted so the operator can see and edit them.
	reloaded, err := ini.Load(path)
	require.NoError(t, err, "the rewritten file should parse")
	section := reloaded.Section("REPORT")
	assert.Equal(t, "Sales", section.Key("report_name").String(), "report_name should be written back")
	assert.Equal(t, dir, section.Key("self_dir").String(), "self_dir should be written back")
	assert.Equal(t, "backup", section.Key("backup_folder").String(), "defaults should be written back")
}

func TestLoadConfig_ExplicitValues(t *testing.T) {
	t.Parallel()

	outDir := t.TempDir()
	content := "[REPORT]\nexport_to = " + filepath.Join(outDir, "Monthly") + "\nbackup_folder = snapshots\n"
	path := writeConfigFile(t, content)
	dir := filepath.Dir(path)

	cfg, err := loadConfig(path, "Monthly")
	require.NoError(t, err, "loading should succeed")

	assert.Equal(t, filepath.Join(outDir, "Monthly"), cfg.ExportTo, "absolute values should be kept as given")
	assert.Equal(t, filepath.Join(dir, "snapshots"), cfg.BackupDir, "relative values should resolve against the config directory")
}

func TestConfig_Source(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "[DB]\nsqlite = sample.db\nwarehouse = DSN=prod\n")

	cfg, err := loadConfig(path, "Report")
	require.NoError(t, err, "loading should succeed")

	dsn, ok := cfg.Source("warehouse")
	assert.True(t, ok, "a configured source should be found")
	assert.Equal(t, "DSN=prod", dsn, "the connection string should come back verbatim")

	_, ok = cfg.Source("oracle")
	assert.False(t, ok, "an unconfigured source should not be found")
}

func TestConfig_SetReportName(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "[DB]\nsqlite = sample.db\n")

	cfg, err := loadConfig(path, "Old")
	require.NoError(t, err, "loading should succeed")
	require.NoError(t, cfg.setReportName("New"), "renaming should succeed")

	assert.Equal(t, "New", cfg.ReportName, "the in-memory name should change")

	reloaded, err := ini.Load(path)
	require.NoError(t, err, "the rewritten file should parse")
	assert.Equal(t, "New", reloaded.Section("REPORT").Key("report_name").String(),
		"the new name should be persisted")
}

func TestLoadConfig_EmptyPathUsesDefault(t *testing.T) {
	t.Parallel()

	// The default is relative to the working directory, which holds no
	// config.txt in this test environment.
	_, err := loadConfig("", "Report")
	assert.ErrorIs(t, err, ErrConfig, "the default path should be tried and fail here")
}
