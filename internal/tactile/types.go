// Package tactile is the lowest execution layer of offinstr: it runs external
// processes (transformation agents, the R8 packagers) on the host and reports
// structured results.
//
// Design Principles:
//   - Minimal logic: callers decide what a non-zero exit means
//   - Structured output: exit code, captured streams and timing in one result
//   - Bounded capture: output kept in memory is size limited, streaming is not
package tactile

import (
	"io"
	"strings"
	"time"
)

// Command represents a command to be executed.
type Command struct {
	// Binary is the executable to run (e.g., "java", "r8wrapper").
	Binary string `json:"binary"`

	// Arguments are the command-line arguments.
	Arguments []string `json:"arguments"`

	// WorkingDirectory is the directory to execute in.
	// If empty, uses the executor's default working directory.
	WorkingDirectory string `json:"working_directory,omitempty"`

	// Environment variables to set (in KEY=VALUE format).
	// These are appended to the executor's environment.
	Environment []string `json:"environment,omitempty"`

	// Stdin provides input to the command's standard input.
	Stdin []byte `json:"-"`

	// Timeout bounds wall time. Zero uses the executor default.
	Timeout time.Duration `json:"timeout,omitempty"`

	// Stdout and Stderr, when set, receive the streams live in addition to
	// the bounded capture in ExecutionResult.
	Stdout io.Writer `json:"-"`
	Stderr io.Writer `json:"-"`
}

// CommandString returns the full command as a string (for display/logging).
func (c Command) CommandString() string {
	if len(c.Arguments) == 0 {
		return c.Binary
	}
	return c.Binary + " " + strings.Join(c.Arguments, " ")
}

// ExecutionResult is the output of command execution.
type ExecutionResult struct {
	// Success indicates whether the process ran to completion.
	// Note: A command that runs but returns non-zero exit code has Success=true.
	// Success=false means the execution infrastructure failed.
	Success bool `json:"success"`

	// ExitCode is the command's exit code (-1 if not available).
	ExitCode int `json:"exit_code"`

	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`

	Duration   time.Duration `json:"duration"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`

	// Killed indicates the command was forcibly terminated.
	Killed     bool   `json:"killed"`
	KillReason string `json:"kill_reason,omitempty"`

	// Truncated indicates captured output was cut at the size limit.
	Truncated      bool  `json:"truncated"`
	TruncatedBytes int64 `json:"truncated_bytes,omitempty"`

	// Error contains any infrastructure-level error message.
	Error string `json:"error,omitempty"`
}

// IsError returns true if the execution failed (infrastructure error).
func (r *ExecutionResult) IsError() bool {
	return !r.Success || r.Error != ""
}

// IsNonZeroExit returns true if the command ran but returned non-zero.
func (r *ExecutionResult) IsNonZeroExit() bool {
	return r.Success && r.ExitCode != 0
}

// Output returns Stdout+Stderr.
func (r *ExecutionResult) Output() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// ExecutorCapabilities describes what an executor can do.
type ExecutorCapabilities struct {
	Name           string        `json:"name"`
	Platform       string        `json:"platform"`
	SupportsStdin  bool          `json:"supports_stdin"`
	MaxTimeout     time.Duration `json:"max_timeout"`
	DefaultTimeout time.Duration `json:"default_timeout"`
}

// ExecutorConfig is the configuration for creating executors.
type ExecutorConfig struct {
	// DefaultWorkingDir is used when Command.WorkingDirectory is empty.
	DefaultWorkingDir string `json:"default_working_dir"`

	// DefaultTimeout is used when no timeout is specified. Zero means the
	// process may run until the caller's context ends.
	DefaultTimeout time.Duration `json:"default_timeout"`

	// MaxTimeout caps all timeout values (0 = unlimited).
	MaxTimeout time.Duration `json:"max_timeout"`

	// InheritEnvironment passes the whole parent environment through.
	// When false only AllowedEnvironment is passed.
	InheritEnvironment bool     `json:"inherit_environment"`
	AllowedEnvironment []string `json:"allowed_environment"`

	// MaxOutputBytes caps output capture per stream (default 10MB).
	MaxOutputBytes int64 `json:"max_output_bytes"`
}

// DefaultExecutorConfig returns sensible defaults.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		DefaultTimeout:     30 * time.Second,
		MaxTimeout:         30 * time.Minute,
		MaxOutputBytes:     10 * 1024 * 1024, // 10MB
		InheritEnvironment: true,
		AllowedEnvironment: []string{"PATH", "HOME", "JAVA_HOME", "ANDROID_HOME", "ANDROID_SDK_ROOT", "USER", "LANG", "LC_ALL", "TMPDIR"},
	}
}

// Merge combines this config with command-specific settings.
// Command settings override config defaults.
func (c ExecutorConfig) Merge(cmd Command) Command {
	result := cmd

	if result.WorkingDirectory == "" {
		result.WorkingDirectory = c.DefaultWorkingDir
	}
	if result.Timeout <= 0 {
		result.Timeout = c.DefaultTimeout
	}
	if c.MaxTimeout > 0 && (result.Timeout <= 0 || result.Timeout > c.MaxTimeout) {
		result.Timeout = c.MaxTimeout
	}
	return result
}
