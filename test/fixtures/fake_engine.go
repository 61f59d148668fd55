// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"os"
	"path/filepath"
	"syscall"
)

// FakeEngine builds a directory layout mimicking a FastCarPlay checkout:
// the compiled binary under out/, the settings dir under conf/, and a
// command FIFO. The binary is a shell script whose behavior each scenario
// chooses.
type FakeEngine struct {
	Dir      string
	PipePath string
}

// NewFakeEngine creates a fake engine rooted at dir.
func NewFakeEngine(dir string) *FakeEngine {
	return &FakeEngine{
		Dir:      dir,
		PipePath: filepath.Join(dir, "pipe"),
	}
}

// ExecutablePath returns where the engine binary lives once built.
func (f *FakeEngine) ExecutablePath() string {
	return filepath.Join(f.Dir, "out", "app")
}

// SettingsPath returns the conventional settings file location.
func (f *FakeEngine) SettingsPath() string {
	return filepath.Join(f.Dir, "conf", "settings.txt")
}

// Build writes the engine script, making the engine count as built.
func (f *FakeEngine) Build(script string) error {
	if err := os.MkdirAll(filepath.Join(f.Dir, "out"), 0755); err != nil {
		return err
	}
	return os.WriteFile(f.ExecutablePath(), []byte("#!/bin/sh\n"+script+"\n"), 0755)
}

// Unbuild removes the binary.
func (f *FakeEngine) Unbuild() error {
	return os.Remove(f.ExecutablePath())
}

// CreatePipe creates the command FIFO the engine would normally own.
func (f *FakeEngine) CreatePipe() error {
	return syscall.Mkfifo(f.PipePath, 0600)
}
