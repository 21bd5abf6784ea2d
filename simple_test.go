package reportio

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSimpleReport(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := writeReportConfig(t, dir, seedSampleDB(t, dir))

	s, err := NewSimpleReport("Report", quietOptions(cfgPath)...)
	require.NoError(t, err, "NewSimpleReport should succeed")
	t.Cleanup(func() { _ = s.Close() })

	assert.Equal(t, "Report", s.Name(), "the embedded report should be usable")
	assert.Equal(t, filepath.Join(dir, "backup", metadataFileName), s.metadataPath(),
		"metadata should live in the backup directory")
}

func TestSimpleReport_MetadataSurvivesFailedRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dbPath := seedSampleDB(t, dir)
	cfgPath := writeReportConfig(t, dir, dbPath)
	clock := fixedClock(time.Date(2026, 8, 25, 9, 0, 0, 0, time.Local))

	s1, err := NewSimpleReport("Report", quietOptions(cfgPath, WithSingleThread(), WithClock(clock))...)
	require.NoError(t, err, "NewSimpleReport should succeed")

	category := Query{
		Name: "Category", SQL: "SELECT id, name FROM category ORDER BY id",
		SourceKind: "sqlite", Source: "sqlite",
	}
	require.NoError(t, s1.AddQuery(category), "adding Category should succeed")
	require.NoError(t, s1.AddQuery(Query{
		Name: "Broken", SQL: "SELECT * FROM missing_table", SourceKind: "sqlite",
	}), "adding Broken should succeed")

	_, err = s1.Run(context.Background())
	require.Error(t, err, "the broken query should fail the run")
	require.NoError(t, s1.Close(), "closing the failed report should succeed")

	assert.FileExists(t, filepath.Join(dir, "backup", metadataFileName),
		"the failed run should persist the query list")

	// Dropping the table proves the rerun reads the backup, not the database.
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err, "reopening sqlite should succeed")
	_, err = db.Exec(`DROP TABLE category`)
	require.NoError(t, err, "dropping the table should succeed")
	require.NoError(t, db.Close(), "closing the handle should succeed")

	s2, err := NewSimpleReport("Report", quietOptions(cfgPath, WithSingleThread(), WithClock(clock))...)
	require.NoError(t, err, "the same-day rerun should construct")
	t.Cleanup(func() { _ = s2.Close() })

	restored := s2.Queries()
	require.Len(t, restored, 2, "both queries should be restored from metadata")
	assert.Equal(t, category, restored[0], "query fields should round trip through the metadata workbook")
	assert.Equal(t, "Broken", restored[1].Name, "the failing query should be restored too")

	// The operator fixed the report by dropping the broken query.
	s2.RemoveQuery("Broken")

	locations, err := s2.Run(context.Background())
	require.NoError(t, err, "the rerun should succeed from backup alone")
	assert.Len(t, locations, 1, "one workbook should be produced")

	_, err = os.Stat(filepath.Join(dir, "backup", metadataFileName))
	assert.True(t, os.IsNotExist(err), "the successful rerun should purge the metadata with the backup")
}

func TestSimpleReport_MissingMetadataRestartsReport(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dbPath := seedSampleDB(t, dir)
	cfgPath := writeReportConfig(t, dir, dbPath)
	clock := fixedClock(time.Date(2026, 8, 25, 9, 0, 0, 0, time.Local))

	// A plain Report backs up datasets without metadata.
	r1, err := New("Report", quietOptions(cfgPath, WithSingleThread(), WithClock(clock))...)
	require.NoError(t, err, "New should succeed")
	require.NoError(t, r1.AddQuery(Query{
		Name: "Category", SQL: "SELECT * FROM category", SourceKind: "sqlite",
	}), "adding Category should succeed")
	require.NoError(t, r1.AddQuery(Query{
		Name: "Broken", SQL: "SELECT * FROM missing_table", SourceKind: "sqlite",
	}), "adding Broken should succeed")
	_, err = r1.Run(context.Background())
	require.Error(t, err, "the broken query should fail the run")
	require.NoError(t, r1.Close(), "closing the failed report should succeed")
	require.FileExists(t, filepath.Join(dir, "backup", "Category.gz"), "the dataset backup should exist")

	logger := &recordingLogger{}
	s, err := NewSimpleReport("Report", quietOptions(cfgPath, WithLogger(logger), WithClock(clock))...)
	require.NoError(t, err, "a backup without metadata should not fail construction")
	t.Cleanup(func() { _ = s.Close() })

	assert.True(t, logger.contains("metadata not found, restarting report"),
		"the missing metadata should be logged")
	assert.Empty(t, s.Queries(), "no queries should be restored")
	_, err = os.Stat(filepath.Join(dir, "backup", "Category.gz"))
	assert.True(t, os.IsNotExist(err), "the untrusted backup should be purged")
}

func TestSimpleReport_DeleteMetadata(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := writeReportConfig(t, dir, seedSampleDB(t, dir))

	s, err := NewSimpleReport("Report", quietOptions(cfgPath)...)
	require.NoError(t, err, "NewSimpleReport should succeed")
	t.Cleanup(func() { _ = s.Close() })

	path := s.metadataPath()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600), "writing the metadata file should succeed")

	other := filepath.Join(dir, "backup", "other.bin")
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o600), "writing the other file should succeed")

	require.NoError(t, s.deleteMetadata(path), "deleting the metadata file should succeed")
	require.NoError(t, s.deleteMetadata(other), "other files should be ignored")
	require.NoError(t, s.deleteMetadata(path), "deleting it twice should be harmless")

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "the metadata file should be gone")
	assert.FileExists(t, other, "the other file should be untouched")
}

func TestMetadataCell(t *testing.T) {
	t.Parallel()

	row := []string{"Category", "SELECT 1"}
	assert.Equal(t, "Category", metadataCell(row, 0), "present cells should come back")
	assert.Equal(t, "", metadataCell(row, 4), "cells past the trimmed row should read empty")
}
