package sqlite

import (
	"database/sql"

	// Import the SQLite driver.
	_ "github.com/mattn/go-sqlite3"
)

// InitDB opens the SQLite database at path and creates the
// webhook_events table if it doesn't exist.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS webhook_events (
		id INTEGER PRIMARY KEY,
		event_id TEXT UNIQUE,
		payload BLOB,
		received_at DATETIME
	)`)

	if err != nil {
		return nil, err
	}

	return db, nil
}
