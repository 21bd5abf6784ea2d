package reportio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"golang.org/x/term"
)

// Credentials is one username/password pair for a data source.
type Credentials struct {
	Username string
	Password string
}

// CredentialProvider supplies credentials after a connection attempt fails
// authentication. The Registry calls it synchronously inside its retry
// loop; an implementation decides whether that means prompting a person or
// consulting a secret store, and can be swapped without touching the retry
// logic.
type CredentialProvider interface {
	Credentials(ctx context.Context, source string) (Credentials, error)
}

// TerminalCredentials prompts on the terminal. The password is read without
// echo.
type TerminalCredentials struct {
	// In defaults to os.Stdin and must be a terminal for the no-echo read.
	In *os.File
	// Out defaults to os.Stderr.
	Out io.Writer
}

// Credentials implements CredentialProvider.
func (t *TerminalCredentials) Credentials(_ context.Context, source string) (Credentials, error) {
	in := t.In
	if in == nil {
		in = os.Stdin
	}
	out := t.Out
	if out == nil {
		out = os.Stderr
	}

	fmt.Fprintf(out, "Username for %s: ", source)
	username, err := bufio.NewReader(in).ReadString('\n')
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to read username: %w", err)
	}

	fmt.Fprintf(out, "Password for %s: ", source)
	password, err := term.ReadPassword(int(in.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to read password: %w", err)
	}

	return Credentials{
		Username: strings.TrimSpace(username),
		Password: strings.TrimSpace(string(password)),
	}, nil
}

// EnvCredentials reads credentials from the environment, optionally
// preloading a dotenv file first. Variables are looked up as
// REPORTIO_<SOURCE>_USERNAME and REPORTIO_<SOURCE>_PASSWORD with the source
// uppercased and non-alphanumeric runes mapped to underscores.
type EnvCredentials struct {
	// DotenvPath, when set, is loaded once before the first lookup.
	DotenvPath string

	loadOnce sync.Once
	loadErr  error
}

// Credentials implements CredentialProvider.
func (e *EnvCredentials) Credentials(_ context.Context, source string) (Credentials, error) {
	if e.DotenvPath != "" {
		e.loadOnce.Do(func() {
			e.loadErr = godotenv.Load(e.DotenvPath)
		})
		if e.loadErr != nil {
			return Credentials{}, fmt.Errorf("failed to load dotenv file: %w", e.loadErr)
		}
	}

	key := envSourceKey(source)
	username, ok := os.LookupEnv("REPORTIO_" + key + "_USERNAME")
	if !ok {
		return Credentials{}, fmt.Errorf("REPORTIO_%s_USERNAME is not set", key)
	}
	return Credentials{
		Username: username,
		Password: os.Getenv("REPORTIO_" + key + "_PASSWORD"),
	}, nil
}

func envSourceKey(source string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(source) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// StaticCredentials returns the same pair every time. Useful for tests and
// for embedding programs that resolve secrets themselves.
type StaticCredentials struct {
	Username string
	Password string
}

// Credentials implements CredentialProvider.
func (s StaticCredentials) Credentials(context.Context, string) (Credentials, error) {
	return Credentials{Username: s.Username, Password: s.Password}, nil
}
