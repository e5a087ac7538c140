package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// GameRecord is one finished match read back from the event log.
type GameRecord struct {
	Room       RoomID    `json:"room"`
	Ranking    []int     `json:"ranking"`
	Duration   float64   `json:"duration"`
	FinishedAt time.Time `json:"finished_at"`
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	// Enable WAL mode for better concurrency
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates tables if they don't exist
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS analytics_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		player_id TEXT,
		room_id INTEGER,
		data TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_type_time ON analytics_events(event_type, created_at);
	CREATE INDEX IF NOT EXISTS idx_events_room ON analytics_events(room_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// RecentGames returns the latest finished matches, newest first.
func (db *DB) RecentGames(limit int) ([]GameRecord, error) {
	rows, err := db.conn.Query(`
		SELECT room_id, data, created_at FROM analytics_events
		WHERE event_type = ? AND data IS NOT NULL
		ORDER BY id DESC LIMIT ?`,
		EvtGameFinished, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []GameRecord
	for rows.Next() {
		var (
			room    int64
			data    string
			created string
		)
		if err := rows.Scan(&room, &data, &created); err != nil {
			return nil, err
		}
		var rec finishRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			continue
		}
		at, _ := time.Parse(time.RFC3339, created)
		result = append(result, GameRecord{
			Room:       RoomID(room),
			Ranking:    rec.Ranking,
			Duration:   rec.Duration,
			FinishedAt: at,
		})
	}
	return result, rows.Err()
}

// EventCounts returns counts of each event type for the last N days
func (db *DB) EventCounts(days int) (map[string]int, error) {
	since := time.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339)
	rows, err := db.conn.Query(`
		SELECT event_type, COUNT(*) FROM analytics_events
		WHERE created_at >= ?
		GROUP BY event_type ORDER BY COUNT(*) DESC
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var evtType string
		var count int
		if err := rows.Scan(&evtType, &count); err != nil {
			return nil, err
		}
		result[evtType] = count
	}
	return result, rows.Err()
}
