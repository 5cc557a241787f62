package chronicle

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestEventsForShipmentOrdersByOccurrence(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	deadline := base.Add(72 * time.Hour)
	// Inserted out of order on purpose.
	events := []Event{
		{ID: "ev-2", ShipmentID: "SHIP-1", Summary: "second", OccurredAt: base.Add(time.Hour)},
		{ID: "ev-3", ShipmentID: "SHIP-1", Summary: "third", OccurredAt: base.Add(2 * time.Hour),
			HasAction: true, ActionOwner: "ops", ActionDeadline: &deadline},
		{ID: "ev-1", ShipmentID: "SHIP-1", Summary: "first", OccurredAt: base},
		{ID: "ev-other", ShipmentID: "SHIP-2", Summary: "elsewhere", OccurredAt: base},
	}
	for _, e := range events {
		if err := store.Insert(ctx, e); err != nil {
			t.Fatalf("insert %s: %v", e.ID, err)
		}
	}

	got, err := store.EventsForShipment(ctx, "SHIP-1")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("events = %d, want 3", len(got))
	}
	for i, want := range []string{"ev-1", "ev-2", "ev-3"} {
		if got[i].ID != want {
			t.Errorf("events[%d] = %s, want %s", i, got[i].ID, want)
		}
	}
	if got[2].ActionDeadline == nil || !got[2].ActionDeadline.Equal(deadline) {
		t.Errorf("deadline = %v, want %v", got[2].ActionDeadline, deadline)
	}
	if got[0].ActionDeadline != nil {
		t.Errorf("ev-1 deadline = %v, want nil", got[0].ActionDeadline)
	}
}

func TestEventsForUnknownShipment(t *testing.T) {
	store := newTestStore(t)

	got, err := store.EventsForShipment(context.Background(), "NOPE")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("events = %d, want 0", len(got))
	}
}

func TestInsertRejectsDuplicateID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	e := Event{ID: "ev-1", ShipmentID: "SHIP-1", OccurredAt: time.Now().UTC()}

	if err := store.Insert(ctx, e); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := store.Insert(ctx, e); err == nil {
		t.Error("duplicate id must be rejected")
	}
	if err := store.Insert(ctx, Event{ShipmentID: "SHIP-1"}); err == nil {
		t.Error("missing id must be rejected")
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}
