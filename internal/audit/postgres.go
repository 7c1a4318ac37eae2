package audit

import (
	"context"
	"database/sql"
	"encoding/json"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store on the audit_log table.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Append(ctx context.Context, entry *Entry) error {
	changes, _ := json.Marshal(entry.Changes)
	_, err := s.db.ExecContext(ctx,
		`insert into audit_log(id, occurred_at, user_id, action, table_name, record_id, changes, ip, user_agent)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		entry.ID, entry.OccurredAt, entry.UserID, entry.Action,
		entry.TableName, entry.RecordID, changes, entry.IP, entry.UserAgent,
	)
	return err
}

func (s *PGStore) ListByUser(ctx context.Context, userID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`select id, occurred_at, user_id, action, table_name, record_id, changes, ip, user_agent
		 from audit_log where user_id=$1 order by occurred_at desc limit $2`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			changes []byte
		)
		if err := rows.Scan(&e.ID, &e.OccurredAt, &e.UserID, &e.Action,
			&e.TableName, &e.RecordID, &changes, &e.IP, &e.UserAgent); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(changes, &e.Changes)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
