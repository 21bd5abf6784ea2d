package reportio

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticCredentials(t *testing.T) {
	t.Parallel()

	provider := StaticCredentials{Username: "user", Password: "secret"}
	got, err := provider.Credentials(context.Background(), "warehouse")

	require.NoError(t, err, "static provider should never fail")
	assert.Equal(t, Credentials{Username: "user", Password: "secret"}, got, "the configured pair should come back")
}

func TestEnvSourceKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		source string
		want   string
	}{
		{source: "warehouse", want: "WAREHOUSE"},
		{source: "my-db", want: "MY_DB"},
		{source: "My DB 2", want: "MY_DB_2"},
		{source: "a.b/c", want: "A_B_C"},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, envSourceKey(tt.source), "envSourceKey(%q)", tt.source)
		})
	}
}

func TestEnvCredentials(t *testing.T) {
	t.Setenv("REPORTIO_WAREHOUSE_USERNAME", "user")
	t.Setenv("REPORTIO_WAREHOUSE_PASSWORD", "secret")

	provider := &EnvCredentials{}
	got, err := provider.Credentials(context.Background(), "warehouse")

	require.NoError(t, err, "lookup should succeed")
	assert.Equal(t, Credentials{Username: "user", Password: "secret"}, got, "the pair should come from the environment")
}

func TestEnvCredentials_MissingUsername(t *testing.T) {
	provider := &EnvCredentials{}

	_, err := provider.Credentials(context.Background(), "nonexistent-source-xyz")
	require.Error(t, err, "a missing username variable should fail")
	assert.Contains(t, err.Error(), "REPORTIO_NONEXISTENT_SOURCE_XYZ_USERNAME", "the error should name the variable")
}

func TestEnvCredentials_EmptyPasswordAllowed(t *testing.T) {
	t.Setenv("REPORTIO_OPENDB_USERNAME", "user")

	provider := &EnvCredentials{}
	got, err := provider.Credentials(context.Background(), "opendb")

	require.NoError(t, err, "a missing password variable is not an error")
	assert.Equal(t, Credentials{Username: "user", Password: ""}, got, "the password should default to empty")
}

func TestEnvCredentials_Dotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "REPORTIO_FILEDB_USERNAME=fileuser\nREPORTIO_FILEDB_PASSWORD=filepass\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600), "writing the dotenv file should succeed")
	t.Cleanup(func() {
		_ = os.Unsetenv("REPORTIO_FILEDB_USERNAME")
		_ = os.Unsetenv("REPORTIO_FILEDB_PASSWORD")
	})

	provider := &EnvCredentials{DotenvPath: path}
	got, err := provider.Credentials(context.Background(), "filedb")

	require.NoError(t, err, "lookup should succeed after loading the dotenv file")
	assert.Equal(t, Credentials{Username: "fileuser", Password: "filepass"}, got, "the pair should come from the file")
}

func TestEnvCredentials_DotenvMissingFile(t *testing.T) {
	t.Parallel()

	provider := &EnvCredentials{DotenvPath: filepath.Join(t.TempDir(), "absent.env")}

	_, err := provider.Credentials(context.Background(), "warehouse")
	require.Error(t, err, "a missing dotenv file should fail")
	assert.Contains(t, err.Error(), "dotenv", "the error should mention the dotenv load")
}
