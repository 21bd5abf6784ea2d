package reportio

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"time"
)

// Option configures a Report at construction.
type Option func(*reportOptions)

// reportOptions carries everything New assembles a Report from.
type reportOptions struct {
	configPath  string
	logger      Logger
	logFile     string
	workers     int
	creds       CredentialProvider
	hooks       Hooks
	initFuncs   []func(*Report) error
	acknowledge func()
	csvComp     CompressionType
	clock       func() time.Time
	memoryMB    int64
}

func defaultOptions() reportOptions {
	return reportOptions{
		configPath:  defaultConfigPath,
		workers:     runtime.NumCPU(),
		creds:       &TerminalCredentials{},
		acknowledge: waitForEnter,
		csvComp:     CompressionNone,
		clock:       time.Now,
		memoryMB:    defaultMemoryLimitMB,
	}
}

// WithConfigPath points the report at a configuration file other than
// ./config.txt.
func WithConfigPath(path string) Option {
	return func(o *reportOptions) { o.configPath = path }
}

// WithLogger replaces the default console logger. The log file mirror is
// layered on top of whatever logger is installed here.
func WithLogger(l Logger) Option {
	return func(o *reportOptions) { o.logger = l }
}

// WithLogFile mirrors every message, debug included, to the file at path.
// Without this option the mirror lives next to the configuration file as
// <name>.log and follows the report when it is renamed.
func WithLogFile(path string) Option {
	return func(o *reportOptions) { o.logFile = path }
}

// WithWorkers bounds how many queries run concurrently. Values below one
// run sequentially.
func WithWorkers(n int) Option {
	return func(o *reportOptions) { o.workers = n }
}

// WithSingleThread runs queries sequentially. Shorthand for WithWorkers(1).
func WithSingleThread() Option {
	return WithWorkers(1)
}

// WithCredentials installs the provider consulted when a connection attempt
// fails. The default prompts on the terminal.
func WithCredentials(p CredentialProvider) Option {
	return func(o *reportOptions) { o.creds = p }
}

// WithHooks attaches backup lifecycle hooks.
func WithHooks(h Hooks) Option {
	return func(o *reportOptions) { o.hooks = h }
}

// WithInitFunc runs fn after logging and directories are set up and before
// the resume check, giving callers a window to register drivers or bind
// hooks that need the half-built report. Repeated options accumulate and
// run in order.
func WithInitFunc(fn func(*Report) error) Option {
	return func(o *reportOptions) { o.initFuncs = append(o.initFuncs, fn) }
}

// WithAcknowledgeFunc replaces how a failed run blocks for operator
// acknowledgment before returning. The default waits for enter on stdin so
// a console window stays open long enough to read the failure.
func WithAcknowledgeFunc(fn func()) Option {
	return func(o *reportOptions) { o.acknowledge = fn }
}

// WithCSVCompression compresses oversized datasets' CSV sidecar files.
func WithCSVCompression(ct CompressionType) Option {
	return func(o *reportOptions) { o.csvComp = ct }
}

// WithClock injects the time source that stamps the run start date.
func WithClock(fn func() time.Time) Option {
	return func(o *reportOptions) { o.clock = fn }
}

// WithMemoryLimit caps the heap growth allowed while scanning query
// results, in megabytes.
func WithMemoryLimit(mb int64) Option {
	return func(o *reportOptions) { o.memoryMB = mb }
}

// waitForEnter blocks until the operator presses enter.
func waitForEnter() {
	fmt.Fprint(os.Stderr, "press enter to quit")
	_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
}
