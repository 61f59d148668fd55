package infra

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBuiltReflectsBinaryPresence(t *testing.T) {
	dir := t.TempDir()
	exec := filepath.Join(dir, "app")
	w := NewBuildWatcher(exec, zap.NewNop())

	assert.False(t, w.Built())

	require.NoError(t, os.WriteFile(exec, []byte("#!/bin/sh\n"), 0755))
	assert.True(t, w.Built())
}

func TestBuiltIgnoresDirectory(t *testing.T) {
	dir := t.TempDir()
	exec := filepath.Join(dir, "app")
	require.NoError(t, os.Mkdir(exec, 0755))

	assert.False(t, NewBuildWatcher(exec, zap.NewNop()).Built())
}

func TestWatchTracksBinaryAppearing(t *testing.T) {
	dir := t.TempDir()
	exec := filepath.Join(dir, "app")
	w := NewBuildWatcher(exec, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Watch(ctx)

	require.Eventually(t, func() bool { return w.watching.Load() }, time.Second, 5*time.Millisecond)

	require.NoError(t, os.WriteFile(exec, []byte("#!/bin/sh\n"), 0755))
	require.Eventually(t, func() bool { return w.Built() }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(exec))
	require.Eventually(t, func() bool { return !w.Built() }, 2*time.Second, 10*time.Millisecond)
}
