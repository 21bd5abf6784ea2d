package reportio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_ValidateReportName(t *testing.T) {
	t.Parallel()

	v := newValidator(discardLogger{})

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "plain name", input: "Sales", wantErr: false},
		{name: "name with spaces", input: "Monthly Sales 2026", wantErr: false},
		{name: "empty", input: "", wantErr: true},
		{name: "blank", input: "   ", wantErr: true},
		{name: "reserved separator", input: "bad__name", wantErr: true},
		{name: "path separator", input: "bad/name", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := v.validateReportName(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrReportName, "%q should be rejected", tt.input)
			} else {
				assert.NoError(t, err, "%q should be accepted", tt.input)
			}
		})
	}
}

func TestValidator_ValidateQueryName(t *testing.T) {
	t.Parallel()

	v := newValidator(discardLogger{})

	assert.NoError(t, v.validateQueryName("Category"), "a plain name should be accepted")
	assert.NoError(t, v.validateQueryName(""), "an empty query name is allowed")
	assert.ErrorIs(t, v.validateQueryName("bad__name"), ErrDatasetName, "the reserved separator should be rejected")
}

func TestValidator_EnsureDir(t *testing.T) {
	t.Parallel()

	v := newValidator(discardLogger{})
	dir := t.TempDir()

	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, v.ensureDir(nested, "backup"), "missing directories should be created")
	info, err := os.Stat(nested)
	require.NoError(t, err, "the directory should exist")
	assert.True(t, info.IsDir(), "the created path should be a directory")

	assert.NoError(t, v.ensureDir(nested, "backup"), "an existing directory should be accepted")

	file := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600), "writing the file should succeed")
	err = v.ensureDir(file, "backup")
	require.Error(t, err, "a file in the way should be rejected")
	assert.Contains(t, err.Error(), "not a directory", "the error should say what went wrong")
}
