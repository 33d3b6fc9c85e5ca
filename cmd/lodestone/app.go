// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"

	"github.com/lodestone/lodestone/internal/config"
	"github.com/lodestone/lodestone/internal/fetch"
	"github.com/lodestone/lodestone/internal/issue"
)

type (
	// App wires CLI services and shared dependencies. Cobra handlers receive
	// an App and read configuration, streams and the HTTP client through it.
	App struct {
		Config     ConfigProvider
		HTTPClient *http.Client
		// ConfigDir overrides the platform config directory when set.
		ConfigDir string
		stdout    io.Writer
		stderr    io.Writer

		flags rootFlags
	}

	// Dependencies defines the injection points for building an App. Nil fields
	// are replaced with production defaults by NewApp.
	Dependencies struct {
		Config     ConfigProvider
		HTTPClient *http.Client
		ConfigDir  string
		Stdout     io.Writer
		Stderr     io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, string, error)
	}

	// rootFlags are the persistent flags shared by every command.
	rootFlags struct {
		verbose    bool
		configPath string
		logLevel   string
	}

	// session is the per-invocation state a command builds from its flags
	// and the loaded configuration.
	session struct {
		cfg     *config.Config
		cfgPath string
		verbose bool
		logger  *log.Logger
	}
)

// NewApp creates an App, filling unset dependencies with production defaults.
func NewApp(deps Dependencies) *App {
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}

	return &App{
		Config:     deps.Config,
		HTTPClient: deps.HTTPClient,
		ConfigDir:  deps.ConfigDir,
		stdout:     deps.Stdout,
		stderr:     deps.Stderr,
	}
}

// session loads the configuration and builds the logger. Configuration
// errors are printed and returned as an ExitError.
func (a *App) session(ctx context.Context) (*session, error) {
	cfg, cfgPath, err := a.Config.Load(ctx, config.LoadOptions{
		ConfigFilePath: a.flags.configPath,
		ConfigDirPath:  a.ConfigDir,
	})
	if err != nil {
		return nil, a.fail(ExitUsage, err)
	}

	s := &session{
		cfg:     cfg,
		cfgPath: cfgPath,
		verbose: a.flags.verbose || cfg.UI.Verbose,
	}

	level := cfg.LogLevel()
	if s.verbose {
		level = log.DebugLevel
	}
	if a.flags.logLevel != "" {
		parsed, err := log.ParseLevel(a.flags.logLevel)
		if err != nil {
			return nil, a.fail(ExitUsage, issue.NewErrorContext().
				WithOperation("parse --log-level").
				WithResource(a.flags.logLevel).
				WithSuggestion("Use one of debug, info, warn or error").
				Wrap(err).
				BuildError())
		}
		level = parsed
	}

	s.logger = log.NewWithOptions(a.stderr, log.Options{
		Prefix:          config.AppName,
		ReportTimestamp: true,
		Level:           level,
	})
	return s, nil
}

// fetcher returns the HTTP fetcher configured for this session.
func (a *App) fetcher(s *session) *fetch.Client {
	opts := []fetch.ClientOption{fetch.WithUserAgent(s.cfg.HTTP.UserAgent)}
	if a.HTTPClient != nil {
		opts = append(opts, fetch.WithHTTPClient(a.HTTPClient))
	}
	return fetch.NewClient(opts...)
}

// fail prints err to stderr and wraps it with an exit code.
func (a *App) fail(code ExitCode, err error) error {
	fmt.Fprintln(a.stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, a.flags.verbose))
	return &ExitError{Code: code, Err: err}
}

// warn prints a non-fatal problem to stderr.
func (a *App) warn(msg string) {
	fmt.Fprintln(a.stderr, WarningStyle.Render("Warning: ")+msg)
}

// formatErrorForDisplay formats an error for user display. An ActionableError
// is rendered with its suggestions, and in verbose mode with its error chain.
func formatErrorForDisplay(err error, verbose bool) string {
	if ae, ok := issue.AsActionable(err); ok {
		return ae.Format(verbose)
	}
	return err.Error()
}

// exitCodeOf maps an error returned by the command tree to a process exit code.
func exitCodeOf(err error) int {
	if err == nil {
		return int(ExitOK)
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return int(exitErr.Code)
	}
	return int(ExitUsage)
}
