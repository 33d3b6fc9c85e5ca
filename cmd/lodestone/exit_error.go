// SPDX-License-Identifier: MPL-2.0

package cmd

import "fmt"

// ExitCode is a process exit status.
type ExitCode int

const (
	// ExitOK is a successful run.
	ExitOK ExitCode = 0
	// ExitUsage covers bad input: flags, configuration or the manifest.
	ExitUsage ExitCode = 1
	// ExitInstallFailed is a fatal installation failure.
	ExitInstallFailed ExitCode = 2
	// ExitIncomplete is a finished installation with missing assets under --strict.
	ExitIncomplete ExitCode = 3
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
// The command has already reported Err to the user when it returns one.
type ExitError struct {
	Code ExitCode
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}
