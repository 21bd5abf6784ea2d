package reportio

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_Add(t *testing.T) {
	t.Parallel()

	s := NewScheduler(discardLogger{})
	build := func() (*Report, error) { return nil, errors.New("not built in this test") }

	require.NoError(t, s.Add("daily", "0 6 * * *", build), "a five field schedule should parse")
	require.NoError(t, s.Add("hourly", "@hourly", build), "descriptor schedules should parse")
	assert.Len(t, s.entries, 2, "both schedules should be registered")

	require.NoError(t, s.Add("daily", "30 7 * * *", build), "re-adding a name should replace its schedule")
	assert.Len(t, s.entries, 2, "replacing should not grow the entry table")
}

func TestScheduler_AddInvalidSchedule(t *testing.T) {
	t.Parallel()

	s := NewScheduler(discardLogger{})

	err := s.Add("daily", "not a schedule", func() (*Report, error) { return nil, nil })
	require.Error(t, err, "an unparsable schedule should be rejected")
	assert.Contains(t, err.Error(), "invalid schedule", "the error should say what failed")
	assert.Contains(t, err.Error(), "daily", "the error should name the report")
	assert.Empty(t, s.entries, "nothing should be registered")
}

func TestScheduler_Remove(t *testing.T) {
	t.Parallel()

	s := NewScheduler(discardLogger{})
	require.NoError(t, s.Add("daily", "@daily", func() (*Report, error) { return nil, nil }),
		"adding should succeed")

	s.Remove("daily")
	assert.Empty(t, s.entries, "the schedule should be dropped")

	// Removing an unknown name is a no-op.
	s.Remove("unknown")
}

func TestScheduler_RunOnce(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := writeReportConfig(t, dir, seedSampleDB(t, dir))

	s := NewScheduler(discardLogger{})
	s.runOnce("Report", func() (*Report, error) {
		r, err := New("Report", quietOptions(cfgPath, WithSingleThread())...)
		if err != nil {
			return nil, err
		}
		if err := r.AddQuery(Query{
			Name: "Category", SQL: "SELECT * FROM category", SourceKind: "sqlite",
		}); err != nil {
			_ = r.Close()
			return nil, err
		}
		return r, nil
	})

	assert.FileExists(t, filepath.Join(dir, "Report.xlsx"), "a tick should drive a full run")
}

func TestScheduler_RunOnce_BuildFailure(t *testing.T) {
	t.Parallel()

	logger := &recordingLogger{}
	s := NewScheduler(logger)

	s.runOnce("Report", func() (*Report, error) { return nil, errors.New("config missing") })

	assert.True(t, logger.contains("failed to build"), "a build failure should be logged, not panic")
}

func TestScheduler_StartStop(t *testing.T) {
	t.Parallel()

	logger := &recordingLogger{}
	s := NewScheduler(logger)

	s.Start()
	s.Stop()

	assert.True(t, logger.contains("report scheduler started"), "starting should be logged")
	assert.True(t, logger.contains("report scheduler stopped"), "stopping should be logged")
}
