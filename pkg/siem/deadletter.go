package siem

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Why an event was dead-lettered. Overflow and stopped events never
// had a delivery attempt.
const (
	DeadLetterDeliveryFailed = "delivery_failed"
	DeadLetterOverflow       = "overflow"
	DeadLetterStopped        = "stopped"
)

// DeadLetteredEvent is an event the forwarder could not deliver.
type DeadLetteredEvent struct {
	Event     *Event    `json:"event"`
	Backend   string    `json:"backend"`
	Reason    string    `json:"reason"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"lastError"`
	FailedAt  time.Time `json:"failedAt"`
}

// DeadLetter holds undeliverable events. The queue is in-memory; when
// constructed with a store path the queue is also persisted to SQLite
// and reloaded on startup, so dead-lettered events survive restarts.
type DeadLetter struct {
	mu     sync.Mutex
	events []DeadLetteredEvent
	db     *sql.DB
	logger *slog.Logger
}

// NewDeadLetter creates an in-memory dead-letter queue.
func NewDeadLetter() *DeadLetter {
	return &DeadLetter{
		logger: slog.Default().With("component", "siem.deadletter"),
	}
}

// NewDeadLetterWithStore creates a dead-letter queue persisted to an
// SQLite database at path, loading any events from a previous run.
func NewDeadLetterWithStore(path string) (*DeadLetter, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dead-letter store: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS dead_letter (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id   TEXT NOT NULL,
	backend    TEXT NOT NULL,
	reason     TEXT NOT NULL DEFAULT 'delivery_failed',
	attempts   INTEGER NOT NULL,
	last_error TEXT NOT NULL,
	failed_at  TEXT NOT NULL,
	event_json TEXT NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create dead-letter schema: %w", err)
	}

	d := &DeadLetter{
		db:     db,
		logger: slog.Default().With("component", "siem.deadletter"),
	}
	if err := d.load(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func (d *DeadLetter) load() error {
	rows, err := d.db.Query(`SELECT backend, reason, attempts, last_error, failed_at, event_json FROM dead_letter ORDER BY seq`)
	if err != nil {
		return fmt.Errorf("failed to load dead-letter events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry DeadLetteredEvent
		var failedAt, eventJSON string
		if err := rows.Scan(&entry.Backend, &entry.Reason, &entry.Attempts, &entry.LastError, &failedAt, &eventJSON); err != nil {
			return err
		}
		entry.FailedAt, _ = time.Parse(time.RFC3339Nano, failedAt)
		if err := json.Unmarshal([]byte(eventJSON), &entry.Event); err != nil {
			d.logger.Warn("skipping undecodable dead-letter row", "error", err)
			continue
		}
		d.events = append(d.events, entry)
	}
	return rows.Err()
}

// Add appends an undeliverable event to the queue.
func (d *DeadLetter) Add(entry DeadLetteredEvent) {
	d.mu.Lock()
	d.events = append(d.events, entry)
	d.mu.Unlock()

	if d.db != nil {
		eventJSON, err := json.Marshal(entry.Event)
		if err == nil {
			_, err = d.db.Exec(
				`INSERT INTO dead_letter (event_id, backend, reason, attempts, last_error, failed_at, event_json) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				entry.Event.ID, entry.Backend, entry.Reason, entry.Attempts, entry.LastError,
				entry.FailedAt.UTC().Format(time.RFC3339Nano), string(eventJSON))
		}
		if err != nil {
			d.logger.Error("failed to persist dead-letter event",
				"event_id", entry.Event.ID, "error", err)
		}
	}

	d.logger.Warn("event dead-lettered",
		"event_id", entry.Event.ID,
		"backend", entry.Backend,
		"reason", entry.Reason,
		"attempts", entry.Attempts,
		"error", entry.LastError)
}

// Events returns a copy of the queued events in arrival order.
func (d *DeadLetter) Events() []DeadLetteredEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]DeadLetteredEvent, len(d.events))
	copy(out, d.events)
	return out
}

// Count returns the number of queued events.
func (d *DeadLetter) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.events)
}

// Close releases the persistent store, if any.
func (d *DeadLetter) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}
