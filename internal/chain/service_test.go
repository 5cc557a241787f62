package chain

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/mrsingh86/chronicled/internal/chronicle"
)

type fakeEvents struct {
	byShipment map[string][]chronicle.Event
	err        error
}

func (f *fakeEvents) EventsForShipment(_ context.Context, shipmentID string) ([]chronicle.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byShipment[shipmentID], nil
}

// fakeRepo is an in-memory chain.Repository keyed the way the sqlite store
// is: one live row per (shipment, type, trigger), superseded rows kept as
// history.
type fakeRepo struct {
	live    map[string]*Chain
	history []*Chain
	nextID  int
	failKey string
	now     time.Time
}

func newFakeRepo(now time.Time) *fakeRepo {
	return &fakeRepo{live: make(map[string]*Chain), now: now}
}

func (f *fakeRepo) Upsert(_ context.Context, c *Chain) error {
	k := c.Key()
	if f.failKey != "" && k == f.failKey {
		return errors.New("disk full")
	}
	if existing, ok := f.live[k]; ok {
		c.ID = existing.ID
		c.CreatedAt = existing.CreatedAt
		if existing.Status != StatusActive {
			c.Status = existing.Status
		}
	} else {
		f.nextID++
		c.ID = fmt.Sprintf("chain-%d", f.nextID)
		c.CreatedAt = f.now
	}
	c.UpdatedAt = f.now
	cp := *c
	f.live[k] = &cp
	return nil
}

func (f *fakeRepo) ActiveChains(_ context.Context, shipmentID string) ([]Chain, error) {
	var out []Chain
	for _, c := range f.live {
		if c.ShipmentID == shipmentID && c.Status == StatusActive {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeRepo) AllChains(_ context.Context, shipmentID string) ([]Chain, error) {
	var out []Chain
	for _, c := range f.live {
		if c.ShipmentID == shipmentID {
			out = append(out, *c)
		}
	}
	for _, c := range f.history {
		if c.ShipmentID == shipmentID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetChain(_ context.Context, id string) (*Chain, error) {
	for _, c := range f.live {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	for _, c := range f.history {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id string, status Status, resolutionSummary string) error {
	for _, c := range f.live {
		if c.ID == id {
			c.Status = status
			if resolutionSummary != "" {
				c.Resolution.Summary = resolutionSummary
			}
			return nil
		}
	}
	return errors.New("not found")
}

func (f *fakeRepo) SupersedeAutoDetected(_ context.Context, shipmentID string) (int, error) {
	n := 0
	for k, c := range f.live {
		if c.ShipmentID == shipmentID && c.AutoDetected {
			c.Status = StatusSuperseded
			f.history = append(f.history, c)
			delete(f.live, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) MarkStaleBefore(_ context.Context, cutoff time.Time) (int, error) {
	n := 0
	for _, c := range f.live {
		if c.Status == StatusActive && c.UpdatedAt.Before(cutoff) {
			c.Status = StatusStale
			n++
		}
	}
	return n, nil
}

func shipmentEvents() []chronicle.Event {
	trig := rolloverIssue()
	action := pendingAction(day(5))
	req := inboundRequest()
	return []chronicle.Event{trig, action, req}
}

func newTestService(repo *fakeRepo, events map[string][]chronicle.Event, now time.Time) *Service {
	return NewService(
		&fakeEvents{byShipment: events},
		repo,
		WithClock(func() time.Time { return now }),
	)
}

func chainKeys(chains []Chain) []string {
	keys := make([]string, len(chains))
	for i, c := range chains {
		keys[i] = c.Key()
	}
	sort.Strings(keys)
	return keys
}

func TestDetectChainsForShipment(t *testing.T) {
	repo := newFakeRepo(day(2))
	svc := newTestService(repo, map[string][]chronicle.Event{"SHIP-1": shipmentEvents()}, day(2))

	result, err := svc.DetectChainsForShipment(context.Background(), "SHIP-1")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	want := []string{
		"SHIP-1|communication_chain|ev-10",
		"SHIP-1|delay_chain|ev-1",
		"SHIP-1|issue_to_action|ev-1",
	}
	if got := chainKeys(result.Chains); !reflect.DeepEqual(got, want) {
		t.Errorf("keys = %v, want %v", got, want)
	}
	for _, c := range result.Chains {
		if c.ID == "" {
			t.Errorf("%s has no persisted id", c.Key())
		}
		if c.Headline == "" || c.Summary == "" {
			t.Errorf("%s missing labels", c.Key())
		}
	}
}

func TestDetectEmptyShipment(t *testing.T) {
	repo := newFakeRepo(day(0))
	svc := newTestService(repo, map[string][]chronicle.Event{}, day(0))

	result, err := svc.DetectChainsForShipment(context.Background(), "NOPE")
	if err != nil {
		t.Fatalf("empty shipment must not error: %v", err)
	}
	if len(result.Chains) != 0 || len(result.Notices) != 0 {
		t.Errorf("result = %+v, want empty", result)
	}
}

func TestDetectFetchErrorPropagates(t *testing.T) {
	svc := NewService(&fakeEvents{err: errors.New("store down")}, newFakeRepo(day(0)))
	if _, err := svc.DetectChainsForShipment(context.Background(), "SHIP-1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestDetectIsIdempotent(t *testing.T) {
	repo := newFakeRepo(day(2))
	svc := newTestService(repo, map[string][]chronicle.Event{"SHIP-1": shipmentEvents()}, day(2))

	first, err := svc.DetectChainsForShipment(context.Background(), "SHIP-1")
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.DetectChainsForShipment(context.Background(), "SHIP-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(repo.live) != len(first.Chains) {
		t.Errorf("rows = %d, want %d (re-detection must update, not duplicate)", len(repo.live), len(first.Chains))
	}
	sortByKey := func(cs []Chain) {
		sort.Slice(cs, func(i, j int) bool { return cs[i].Key() < cs[j].Key() })
	}
	sortByKey(first.Chains)
	sortByKey(second.Chains)
	if !reflect.DeepEqual(first.Chains, second.Chains) {
		t.Error("re-running detection on unchanged data must produce identical chains")
	}
}

func TestDetectContinuesPastUpsertFailure(t *testing.T) {
	repo := newFakeRepo(day(2))
	repo.failKey = "SHIP-1|issue_to_action|ev-1"
	svc := newTestService(repo, map[string][]chronicle.Event{"SHIP-1": shipmentEvents()}, day(2))

	result, err := svc.DetectChainsForShipment(context.Background(), "SHIP-1")
	if err != nil {
		t.Fatalf("one bad upsert must not fail the pass: %v", err)
	}
	if len(result.Chains) != 2 {
		t.Errorf("chains = %d, want 2 surviving", len(result.Chains))
	}
	found := false
	for _, n := range result.Notices {
		if strings.Contains(n.Reason, "disk full") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a persistence notice, got %v", result.Notices)
	}
}

func TestRefreshChains(t *testing.T) {
	repo := newFakeRepo(day(2))
	svc := newTestService(repo, map[string][]chronicle.Event{"SHIP-1": shipmentEvents()}, day(2))

	if _, err := svc.DetectChainsForShipment(context.Background(), "SHIP-1"); err != nil {
		t.Fatal(err)
	}
	before := len(repo.live)

	result, err := svc.RefreshChains(context.Background(), "SHIP-1")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(result.Chains) != before {
		t.Errorf("refreshed chains = %d, want %d", len(result.Chains), before)
	}
	if len(repo.history) != before {
		t.Errorf("superseded rows = %d, want %d", len(repo.history), before)
	}
	for _, c := range repo.history {
		if c.Status != StatusSuperseded {
			t.Errorf("history row %s status = %s, want superseded", c.ID, c.Status)
		}
	}
	for _, c := range repo.live {
		if c.Status == StatusSuperseded {
			t.Errorf("live row %s should not be superseded", c.ID)
		}
	}
}

func TestUpdateStatusValidatesTransition(t *testing.T) {
	repo := newFakeRepo(day(2))
	svc := newTestService(repo, map[string][]chronicle.Event{"SHIP-1": shipmentEvents()}, day(2))

	result, err := svc.DetectChainsForShipment(context.Background(), "SHIP-1")
	if err != nil {
		t.Fatal(err)
	}
	var active *Chain
	for i := range result.Chains {
		if result.Chains[i].Status == StatusActive {
			active = &result.Chains[i]
			break
		}
	}
	if active == nil {
		t.Fatal("no active chain to test with")
	}

	if err := svc.UpdateStatus(context.Background(), active.ID, StatusResolved, "handled by ops"); err != nil {
		t.Fatalf("active -> resolved: %v", err)
	}
	got, _ := repo.GetChain(context.Background(), active.ID)
	if got.Status != StatusResolved || got.Resolution.Summary != "handled by ops" {
		t.Errorf("chain = %+v, want resolved with summary", got)
	}

	if err := svc.UpdateStatus(context.Background(), active.ID, StatusStale, ""); err == nil {
		t.Error("resolved -> stale must be rejected")
	}
}

func TestUpdateStatusRejectsManualSupersede(t *testing.T) {
	repo := newFakeRepo(day(2))
	svc := newTestService(repo, map[string][]chronicle.Event{"SHIP-1": shipmentEvents()}, day(2))

	result, err := svc.DetectChainsForShipment(context.Background(), "SHIP-1")
	if err != nil {
		t.Fatal(err)
	}
	id := result.Chains[0].ID
	if err := svc.UpdateStatus(context.Background(), id, StatusSuperseded, ""); err == nil {
		t.Error("superseding is reserved for refresh")
	}
	got, _ := repo.GetChain(context.Background(), id)
	if got.Status == StatusSuperseded {
		t.Errorf("chain was superseded through the override path")
	}
}

func TestDetectDoesNotRevertSweptStatus(t *testing.T) {
	repo := newFakeRepo(day(0))
	svc := newTestService(repo, map[string][]chronicle.Event{"SHIP-1": shipmentEvents()}, day(0))
	if _, err := svc.DetectChainsForShipment(context.Background(), "SHIP-1"); err != nil {
		t.Fatal(err)
	}

	sw := NewSweeper(repo, SweepConfig{StaleAfter: 14 * 24 * time.Hour}, nil)
	sw.now = func() time.Time { return day(30) }
	if _, err := sw.MarkStaleChains(context.Background()); err != nil {
		t.Fatal(err)
	}

	result, err := svc.DetectChainsForShipment(context.Background(), "SHIP-1")
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range result.Chains {
		if c.Status == StatusActive {
			t.Errorf("%s flipped back to active after the sweep", c.Key())
		}
	}
	active, _ := repo.ActiveChains(context.Background(), "SHIP-1")
	if len(active) != 0 {
		t.Errorf("active after sweep + re-detect = %d, want 0", len(active))
	}
}

func TestUrgentCommunicationAlertsOnCreation(t *testing.T) {
	urgent := inboundRequest()
	urgent.Sentiment = chronicle.SentimentUrgent
	repo := newFakeRepo(day(2))
	alert := &captureAlert{}
	svc := NewService(
		&fakeEvents{byShipment: map[string][]chronicle.Event{"SHIP-1": {urgent}}},
		repo,
		WithClock(func() time.Time { return day(2) }),
		WithAlerter(alert),
	)

	if _, err := svc.DetectChainsForShipment(context.Background(), "SHIP-1"); err != nil {
		t.Fatal(err)
	}
	if len(alert.urgent) != 1 || alert.urgent[0].Trigger.EventID != urgent.ID {
		t.Fatalf("urgent alerts = %+v, want one for %s", alert.urgent, urgent.ID)
	}

	// A later pass updates the same row and must not re-alert.
	repo.now = day(3)
	if _, err := svc.DetectChainsForShipment(context.Background(), "SHIP-1"); err != nil {
		t.Fatal(err)
	}
	if len(alert.urgent) != 1 {
		t.Errorf("urgent alerts after update = %d, want still 1", len(alert.urgent))
	}
}

func TestNonUrgentCommunicationDoesNotAlert(t *testing.T) {
	repo := newFakeRepo(day(2))
	alert := &captureAlert{}
	svc := NewService(
		&fakeEvents{byShipment: map[string][]chronicle.Event{"SHIP-1": shipmentEvents()}},
		repo,
		WithClock(func() time.Time { return day(2) }),
		WithAlerter(alert),
	)
	if _, err := svc.DetectChainsForShipment(context.Background(), "SHIP-1"); err != nil {
		t.Fatal(err)
	}
	if len(alert.urgent) != 0 {
		t.Errorf("urgent alerts = %d, want 0 for a plain request", len(alert.urgent))
	}
}

func TestSweeperMarksStale(t *testing.T) {
	repo := newFakeRepo(day(0))
	svc := newTestService(repo, map[string][]chronicle.Event{"SHIP-1": shipmentEvents()}, day(0))
	if _, err := svc.DetectChainsForShipment(context.Background(), "SHIP-1"); err != nil {
		t.Fatal(err)
	}

	alert := &captureAlert{}
	sw := NewSweeper(repo, SweepConfig{StaleAfter: 14 * 24 * time.Hour}, alert)
	sw.now = func() time.Time { return day(30) }

	n, err := sw.MarkStaleChains(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	active, _ := repo.ActiveChains(context.Background(), "SHIP-1")
	if len(active) != 0 {
		t.Errorf("active after sweep = %d, want 0", len(active))
	}
	if alert.count != n {
		t.Errorf("alert count = %d, want %d", alert.count, n)
	}

	// Inside the window nothing flips.
	repo2 := newFakeRepo(day(0))
	svc2 := newTestService(repo2, map[string][]chronicle.Event{"SHIP-1": shipmentEvents()}, day(0))
	if _, err := svc2.DetectChainsForShipment(context.Background(), "SHIP-1"); err != nil {
		t.Fatal(err)
	}
	sw2 := NewSweeper(repo2, SweepConfig{StaleAfter: 14 * 24 * time.Hour}, nil)
	sw2.now = func() time.Time { return day(3) }
	if n, _ := sw2.MarkStaleChains(context.Background()); n != 0 {
		t.Errorf("marked %d inside the window, want 0", n)
	}
}

type captureAlert struct {
	count  int
	urgent []*Chain
}

func (a *captureAlert) StaleChains(_ context.Context, n int) error {
	a.count += n
	return nil
}

func (a *captureAlert) UrgentChain(_ context.Context, c *Chain) error {
	a.urgent = append(a.urgent, c)
	return nil
}
