// Package infra implements infrastructure concerns (processes, pipes, IPC, storage).
package infra

import "os/exec"

// RealCommandRunner executes real system commands.
type RealCommandRunner struct{}

// NewCommandRunner creates a runner backed by os/exec.
func NewCommandRunner() *RealCommandRunner {
	return &RealCommandRunner{}
}

// Run executes a command and waits for it to complete.
func (r *RealCommandRunner) Run(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

// Output executes a command and returns its stdout.
func (r *RealCommandRunner) Output(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).Output()
}
