package git

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// CommandRunner abstracts subprocess execution so tests can script git output.
type CommandRunner interface {
	// Run executes a command in dir and returns stdout, stderr and the exit
	// code. err is non-nil only when the process could not be started at all.
	Run(ctx context.Context, dir, name string, args ...string) (stdout, stderr string, exitCode int, err error)
}

// RealCommandRunner is the production implementation using os/exec
type RealCommandRunner struct{}

// Run executes a command using os/exec
func (r *RealCommandRunner) Run(ctx context.Context, dir, name string, args ...string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.String(), stderr.String(), exitErr.ExitCode(), nil
		}
		// Could not invoke the executable at all.
		return stdout.String(), stderr.String(), -1, err
	}

	return stdout.String(), stderr.String(), 0, nil
}

// MockCommandRunner is a test implementation that returns scripted responses
type MockCommandRunner struct {
	// RunFunc is called when Run is invoked
	RunFunc func(dir, name string, args ...string) (string, string, int, error)

	// Calls tracks all command invocations
	Calls []MockCall
}

// MockCall represents a single command invocation
type MockCall struct {
	Dir  string
	Name string
	Args []string
}

// Run executes the mock function
func (m *MockCommandRunner) Run(_ context.Context, dir, name string, args ...string) (string, string, int, error) {
	m.Calls = append(m.Calls, MockCall{Dir: dir, Name: name, Args: args})

	if m.RunFunc != nil {
		return m.RunFunc(dir, name, args...)
	}

	return "", "", 0, nil
}
