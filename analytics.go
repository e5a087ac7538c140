package main

import (
	"database/sql"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// Event types for analytics tracking
const (
	EvtRoomCreated  = "room_created"
	EvtRoomDeleted  = "room_deleted"
	EvtPlayerJoined = "player_joined"
	EvtPlayerLeft   = "player_left"
	EvtGameStarted  = "game_started"
	EvtGameFinished = "game_finished"
)

const (
	analyticsBuffer     = 1024
	analyticsBatchSize  = 50
	analyticsFlushEvery = 5 * time.Second
)

// AnalyticsEvent represents a single trackable event
type AnalyticsEvent struct {
	Type      string
	PlayerID  PlayerID
	RoomID    RoomID
	Data      string // JSON metadata (optional)
	Timestamp time.Time
}

// Analytics handles event tracking with batched background writes. With a
// nil DB events are accepted and discarded.
type Analytics struct {
	db     *DB
	logger *slog.Logger
	events chan AnalyticsEvent
	stop   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewAnalytics creates and starts the analytics background writer
func NewAnalytics(db *DB, logger *slog.Logger) *Analytics {
	a := &Analytics{
		db:     db,
		logger: logger,
		events: make(chan AnalyticsEvent, analyticsBuffer),
		stop:   make(chan struct{}),
	}
	a.wg.Add(1)
	go a.writer()
	return a
}

// Track enqueues an event for async persistence (non-blocking)
func (a *Analytics) Track(evtType string, playerID PlayerID, roomID RoomID, data string) {
	select {
	case a.events <- AnalyticsEvent{
		Type:      evtType,
		PlayerID:  playerID,
		RoomID:    roomID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}:
	default:
		// Channel full, drop the event
	}
}

// Stop flushes pending events and shuts the writer down. Safe to call twice.
func (a *Analytics) Stop() {
	a.once.Do(func() { close(a.stop) })
	a.wg.Wait()
}

// writer is the background goroutine that batches and writes events to DB
func (a *Analytics) writer() {
	defer a.wg.Done()

	batch := make([]AnalyticsEvent, 0, analyticsBatchSize)
	ticker := time.NewTicker(analyticsFlushEvery)
	defer ticker.Stop()

	for {
		select {
		case evt := <-a.events:
			batch = append(batch, evt)
			if len(batch) >= analyticsBatchSize {
				a.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				a.flush(batch)
				batch = batch[:0]
			}
		case <-a.stop:
			for {
				select {
				case evt := <-a.events:
					batch = append(batch, evt)
				default:
					a.flush(batch)
					return
				}
			}
		}
	}
}

// flush writes a batch of events to the database
func (a *Analytics) flush(events []AnalyticsEvent) {
	if a.db == nil || len(events) == 0 {
		return
	}
	tx, err := a.db.conn.Begin()
	if err != nil {
		a.logger.Warn("analytics: begin tx", "error", err)
		return
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO analytics_events (event_type, player_id, room_id, data, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		a.logger.Warn("analytics: prepare", "error", err)
		return
	}
	defer stmt.Close()

	for _, evt := range events {
		pid := sql.NullString{String: strconv.FormatUint(uint64(evt.PlayerID), 10), Valid: evt.PlayerID != 0}
		rid := sql.NullInt64{Int64: int64(evt.RoomID), Valid: evt.RoomID != 0}
		data := sql.NullString{String: evt.Data, Valid: evt.Data != ""}
		if _, err := stmt.Exec(evt.Type, pid, rid, data, evt.Timestamp.Format(time.RFC3339)); err != nil {
			a.logger.Warn("analytics: insert", "event", evt.Type, "error", err)
		}
	}
	if err := tx.Commit(); err != nil {
		a.logger.Warn("analytics: commit", "error", err)
	}
}

// Enabled reports whether events are persisted.
func (a *Analytics) Enabled() bool {
	return a.db != nil
}

// EventCounts returns per-type counts for the last N days, or nil when
// the log is disabled.
func (a *Analytics) EventCounts(days int) (map[string]int, error) {
	if a.db == nil {
		return nil, nil
	}
	return a.db.EventCounts(days)
}

// RecentGames returns the latest finished matches, or nil when the log is
// disabled.
func (a *Analytics) RecentGames(limit int) ([]GameRecord, error) {
	if a.db == nil {
		return nil, nil
	}
	return a.db.RecentGames(limit)
}
