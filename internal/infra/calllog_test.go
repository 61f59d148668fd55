package infra

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carhud/headunit/internal/domain"
)

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestCallLogAppendAndRecent(t *testing.T) {
	log, err := NewEncryptedCallLog(t.TempDir(), testKey())
	require.NoError(t, err)
	defer log.Close()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		require.NoError(t, log.Append(domain.CallRecord{
			Number:    fmt.Sprintf("+1555000%04d", i),
			Direction: domain.DirectionIncoming,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	recent, err := log.Recent(10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	// Newest first
	assert.Equal(t, "+15550000002", recent[0].Number)
	assert.Equal(t, "+15550000000", recent[2].Number)
	assert.NotEmpty(t, recent[0].ID)
}

func TestCallLogRecentEmptyIsNotNil(t *testing.T) {
	log, err := NewEncryptedCallLog(t.TempDir(), testKey())
	require.NoError(t, err)
	defer log.Close()

	records, err := log.Recent(10)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestCallLogRespectsLimit(t *testing.T) {
	log, err := NewEncryptedCallLog(t.TempDir(), testKey())
	require.NoError(t, err)
	defer log.Close()

	for i := 0; i < 15; i++ {
		require.NoError(t, log.Append(domain.CallRecord{
			Number:    "+15551234567",
			Direction: domain.DirectionOutgoing,
			StartedAt: time.Now().Add(time.Duration(i) * time.Second),
		}))
	}

	recent, err := log.Recent(10)
	require.NoError(t, err)
	assert.Len(t, recent, 10)
}

func TestCallLogPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	key := testKey()

	log, err := NewEncryptedCallLog(dir, key)
	require.NoError(t, err)
	require.NoError(t, log.Append(domain.CallRecord{
		ID:        "fixed-id",
		Number:    "+15551234567",
		Name:      "Alex",
		Direction: domain.DirectionIncoming,
		StartedAt: time.Unix(1700000000, 0),
	}))
	require.NoError(t, log.Close())

	log, err = NewEncryptedCallLog(dir, key)
	require.NoError(t, err)
	defer log.Close()

	recent, err := log.Recent(10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "fixed-id", recent[0].ID)
	assert.Equal(t, "Alex", recent[0].Name)
	assert.Equal(t, int64(1700000000), recent[0].StartedAt.Unix())
}

func TestCallLogRejectsWrongKey(t *testing.T) {
	dir := t.TempDir()

	log, err := NewEncryptedCallLog(dir, testKey())
	require.NoError(t, err)
	require.NoError(t, log.Append(domain.CallRecord{
		Number: "+15551234567", Direction: domain.DirectionIncoming, StartedAt: time.Now(),
	}))
	require.NoError(t, log.Close())

	wrong := make([]byte, 32)
	reopened, err := NewEncryptedCallLog(dir, wrong)
	if err == nil {
		// Some driver versions defer key validation to the first query
		_, qerr := reopened.Recent(1)
		reopened.Close()
		err = qerr
	}
	assert.Error(t, err)
}
