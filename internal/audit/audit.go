// Package audit records critical actions in an append-only trail. Recording
// is best-effort: an audit failure is logged and never blocks the operation
// that triggered it.
package audit

import (
	"context"
	"time"

	"tallybook.org/internal/ids"
	"tallybook.org/internal/obs"
)

// Action names mirror the operations they describe.
const (
	ActionLogin  = "LOGIN"
	ActionLogout = "LOGOUT"
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// Entry is one append-only audit record.
type Entry struct {
	ID         string
	OccurredAt time.Time
	UserID     string
	Action     string
	TableName  string
	RecordID   string
	Changes    map[string]any
	IP         string
	UserAgent  string
}

// Store persists audit entries.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	ListByUser(ctx context.Context, userID string, limit int) ([]Entry, error)
}

// Recorder writes entries to the store and mirrors them to the JSON log.
type Recorder struct {
	store Store
	now   func() time.Time
}

// NewRecorder constructs a Recorder. A nil store records to the log only.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// Record persists the entry. Failures are swallowed after logging so the
// calling operation is never blocked by the trail.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = r.now().UTC()
	}

	logEntry := map[string]any{
		"ts":     entry.OccurredAt.Format(time.RFC3339Nano),
		"type":   "audit",
		"action": entry.Action,
		"table":  entry.TableName,
	}
	if entry.UserID != "" {
		logEntry["user_id"] = entry.UserID
	}
	if entry.RecordID != "" {
		logEntry["record_id"] = entry.RecordID
	}
	obs.LogEntry(logEntry)

	if r.store == nil {
		return
	}
	if err := r.store.Append(ctx, &entry); err != nil {
		obs.LogEntry(map[string]any{
			"ts":    r.now().UTC().Format(time.RFC3339Nano),
			"level": "error",
			"msg":   "audit append failed",
			"err":   err.Error(),
		})
	}
}

// History returns the most recent entries for a user, newest first. With a
// log-only recorder there is no history to return.
func (r *Recorder) History(ctx context.Context, userID string, limit int) ([]Entry, error) {
	if r.store == nil {
		return nil, nil
	}
	return r.store.ListByUser(ctx, userID, limit)
}
