package infra

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/carhud/headunit/internal/domain"
)

// Ensure sqlcipher driver is registered.
var _ = sqlcipher.SQLiteDriver{}

const callLogDBName = "calls.db"

// EncryptedCallLog implements domain.CallLog using a SQLCipher encrypted
// SQLite database. Call history is personal data that lives on a device
// parked in public, so it is never stored in the clear.
type EncryptedCallLog struct {
	db     *sql.DB
	dbPath string
}

// NewEncryptedCallLog opens (or creates) the encrypted call history
// database. The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedCallLog(dataDir string, key []byte) (*EncryptedCallLog, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, callLogDBName)
	keyHex := hex.EncodeToString(key)

	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, keyHex)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	log := &EncryptedCallLog{db: db, dbPath: dbPath}
	if err := log.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return log, nil
}

func (l *EncryptedCallLog) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS calls (
		id TEXT PRIMARY KEY,
		number TEXT NOT NULL,
		name TEXT DEFAULT '',
		direction TEXT NOT NULL,
		started_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_calls_started_at ON calls(started_at DESC);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Append stores one call record. A missing ID is filled in.
func (l *EncryptedCallLog) Append(record domain.CallRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.StartedAt.IsZero() {
		record.StartedAt = time.Now()
	}

	_, err := l.db.Exec(`
		INSERT INTO calls (id, number, name, direction, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		record.ID, record.Number, record.Name, string(record.Direction), record.StartedAt.Unix(),
	)
	return err
}

// Recent returns up to limit records, newest first.
func (l *EncryptedCallLog) Recent(limit int) ([]domain.CallRecord, error) {
	rows, err := l.db.Query(`
		SELECT id, number, name, direction, started_at
		FROM calls ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.CallRecord, 0, limit)
	for rows.Next() {
		var r domain.CallRecord
		var direction string
		var startedAt int64
		if err := rows.Scan(&r.ID, &r.Number, &r.Name, &direction, &startedAt); err != nil {
			return nil, err
		}
		r.Direction = domain.CallDirection(direction)
		r.StartedAt = time.Unix(startedAt, 0)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Close releases the database connection.
func (l *EncryptedCallLog) Close() error {
	return l.db.Close()
}

// Ensure EncryptedCallLog implements domain.CallLog.
var _ domain.CallLog = (*EncryptedCallLog)(nil)
