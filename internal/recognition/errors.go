package recognition

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned by Start while a session is starting, streaming or stopping.
	ErrBusy = errors.New("recognition session already active")
	// ErrNotRunning is returned by Stop when no session is active.
	ErrNotRunning = errors.New("no recognition session running")
	// ErrProcessSpawn marks failures to launch an external process.
	ErrProcessSpawn = errors.New("process spawn failed")
	// ErrProcessAbnormalExit marks a process that ended on its own with a failure status.
	ErrProcessAbnormalExit = errors.New("process exited abnormally")
)

// CommandLog captures one external command invocation result.
type CommandLog struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exitCode"`
	Stdout   string   `json:"stdout,omitempty"`
	Stderr   string   `json:"stderr,omitempty"`
}

// ProcessError is a stage-aware process failure with optional command context.
// Kind holds one of the package sentinels when the failure maps to one.
type ProcessError struct {
	Stage      string     `json:"stage"`
	Message    string     `json:"message"`
	CommandLog CommandLog `json:"commandLog"`
	Kind       error      `json:"-"`
	Err        error      `json:"-"`
}

// Error formats process failures for logs and UI.
func (e *ProcessError) Error() string {
	if e == nil {
		return ""
	}
	if e.CommandLog.Command == "" {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}

	return fmt.Sprintf(
		"%s: %s (cmd=%s exit=%d)",
		e.Stage,
		e.Message,
		e.CommandLog.Command,
		e.CommandLog.ExitCode,
	)
}

// Unwrap exposes both the sentinel kind and the cause to errors.Is / errors.As.
func (e *ProcessError) Unwrap() []error {
	if e == nil {
		return nil
	}
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}
