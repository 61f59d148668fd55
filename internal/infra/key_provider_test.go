package infra

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreateKeyGeneratesOnFirstRun(t *testing.T) {
	dir := t.TempDir()
	p := NewFileKeyProvider(dir)

	assert.False(t, p.KeyExists())
	key, err := p.LoadOrCreateKey()

	require.NoError(t, err)
	assert.Len(t, key, 32)
	assert.True(t, p.KeyExists())
}

func TestLoadOrCreateKeyIsStable(t *testing.T) {
	dir := t.TempDir()
	p := NewFileKeyProvider(dir)

	first, err := p.LoadOrCreateKey()
	require.NoError(t, err)
	second, err := p.LoadOrCreateKey()
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestKeyFilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	dir := t.TempDir()
	p := NewFileKeyProvider(dir)
	_, err := p.LoadOrCreateKey()
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, ".key"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestStoreKeyRejectsBadSize(t *testing.T) {
	p := NewFileKeyProvider(t.TempDir())
	assert.Error(t, p.StoreKey([]byte("too short")))
}

func TestGetKeyRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".key"), []byte("not base64!!"), 0600))

	_, err := NewFileKeyProvider(dir).GetKey()
	assert.Error(t, err)
}
