package recognition

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"runtime"
)

// process is a running external program with piped output.
type process interface {
	Stdout() io.Reader
	Stderr() io.Reader
	Pid() int
	// Interrupt asks the program to finish; Kill ends it immediately.
	Interrupt() error
	Kill() error
	// Wait must only be called after both output streams reached EOF.
	Wait() error
}

// processStarter launches long-running processes for the supervisor.
type processStarter interface {
	Start(name string, args ...string) (process, error)
}

// execStarter starts processes via os/exec.
type execStarter struct{}

// Start launches the command with stdout and stderr piped back.
func (execStarter) Start(name string, args ...string) (process, error) {
	cmd := exec.Command(name, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execProcess{cmd: cmd, stdout: stdout, stderr: stderr}, nil
}

// execProcess adapts *exec.Cmd to the process interface.
type execProcess struct {
	cmd    *exec.Cmd
	stdout io.Reader
	stderr io.Reader
}

func (p *execProcess) Stdout() io.Reader { return p.stdout }
func (p *execProcess) Stderr() io.Reader { return p.stderr }
func (p *execProcess) Pid() int          { return p.cmd.Process.Pid }
func (p *execProcess) Wait() error       { return p.cmd.Wait() }

// Interrupt sends SIGINT; Windows has no interrupt signal for child processes.
func (p *execProcess) Interrupt() error {
	if runtime.GOOS == "windows" {
		return p.Kill()
	}
	err := p.cmd.Process.Signal(os.Interrupt)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (p *execProcess) Kill() error {
	err := p.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// exitCodeOf extracts a process exit status; -1 means unknown.
func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var coded interface{ ExitCode() int }
	if errors.As(err, &coded) {
		return coded.ExitCode()
	}
	return -1
}

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts run-to-completion execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCodeOf(err),
	}
	return result, err
}
