package chronicle

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const schema = `
CREATE TABLE IF NOT EXISTS chronicle_events (
	id TEXT PRIMARY KEY,
	shipment_id TEXT NOT NULL,
	thread_id TEXT DEFAULT '',
	direction TEXT NOT NULL DEFAULT 'inbound',
	from_party TEXT DEFAULT '',
	from_address TEXT DEFAULT '',
	message_type TEXT DEFAULT '',
	sentiment TEXT DEFAULT '',
	summary TEXT DEFAULT '',
	has_issue BOOLEAN NOT NULL DEFAULT 0,
	issue_type TEXT DEFAULT '',
	issue_description TEXT DEFAULT '',
	has_action BOOLEAN NOT NULL DEFAULT 0,
	action_description TEXT DEFAULT '',
	action_owner TEXT DEFAULT '',
	action_deadline DATETIME,
	action_completed_at DATETIME,
	action_priority TEXT DEFAULT '',
	occurred_at DATETIME NOT NULL,
	document_type TEXT DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_chronicle_shipment ON chronicle_events(shipment_id, occurred_at);
CREATE INDEX IF NOT EXISTS idx_chronicle_thread ON chronicle_events(thread_id);
`

// Store reads and seeds chronicle events. The classification pipeline that
// normally writes this table lives outside this repo; Insert exists for the
// ingest command and tests.
type Store struct {
	db *sql.DB
}

// NewStore applies the event schema and returns a store over db.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("apply chronicle schema: %w", err)
	}
	return &Store{db: db}, nil
}

// EventsForShipment returns all events for a shipment ascending by
// occurrence time. An empty result is not an error.
func (s *Store) EventsForShipment(ctx context.Context, shipmentID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, shipment_id, thread_id, direction, from_party, from_address,
		       message_type, sentiment, summary,
		       has_issue, issue_type, issue_description,
		       has_action, action_description, action_owner,
		       action_deadline, action_completed_at, action_priority,
		       occurred_at, document_type
		FROM chronicle_events
		WHERE shipment_id = ?
		ORDER BY occurred_at ASC`, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("query events for %s: %w", shipmentID, err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var deadline, completed sql.NullTime
		if err := rows.Scan(&e.ID, &e.ShipmentID, &e.ThreadID, &e.Direction,
			&e.FromParty, &e.FromAddress, &e.MessageType, &e.Sentiment, &e.Summary,
			&e.HasIssue, &e.IssueType, &e.IssueDescription,
			&e.HasAction, &e.ActionDescription, &e.ActionOwner,
			&deadline, &completed, &e.ActionPriority,
			&e.OccurredAt, &e.DocumentType); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if deadline.Valid {
			t := deadline.Time
			e.ActionDeadline = &t
		}
		if completed.Valid {
			t := completed.Time
			e.ActionCompletedAt = &t
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Insert stores a single event. Duplicate IDs are rejected by the primary key.
func (s *Store) Insert(ctx context.Context, e Event) error {
	if e.ID == "" {
		return fmt.Errorf("insert event: missing id")
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chronicle_events (
			id, shipment_id, thread_id, direction, from_party, from_address,
			message_type, sentiment, summary,
			has_issue, issue_type, issue_description,
			has_action, action_description, action_owner,
			action_deadline, action_completed_at, action_priority,
			occurred_at, document_type
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ShipmentID, e.ThreadID, e.Direction, e.FromParty, e.FromAddress,
		e.MessageType, e.Sentiment, e.Summary,
		e.HasIssue, e.IssueType, e.IssueDescription,
		e.HasAction, e.ActionDescription, e.ActionOwner,
		nullTime(e.ActionDeadline), nullTime(e.ActionCompletedAt), e.ActionPriority,
		e.OccurredAt, e.DocumentType)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", e.ID, err)
	}
	return nil
}

// Count returns the number of stored events.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chronicle_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
