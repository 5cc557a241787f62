package chain

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mrsingh86/chronicled/internal/chronicle"
)

// EventReader is the read side of the chronicle event store.
type EventReader interface {
	EventsForShipment(ctx context.Context, shipmentID string) ([]chronicle.Event, error)
}

// Repository is the persistence facade for chains. Upsert is keyed by the
// live (shipmentID, chainType, triggerEventID) tuple and must be atomic.
type Repository interface {
	Upsert(ctx context.Context, c *Chain) error
	ActiveChains(ctx context.Context, shipmentID string) ([]Chain, error)
	AllChains(ctx context.Context, shipmentID string) ([]Chain, error)
	GetChain(ctx context.Context, id string) (*Chain, error)
	UpdateStatus(ctx context.Context, id string, status Status, resolutionSummary string) error
	SupersedeAutoDetected(ctx context.Context, shipmentID string) (int, error)
	MarkStaleBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// Feed receives chain updates for downstream consumers. Implementations are
// best-effort; a feed error never fails a detection pass.
type Feed interface {
	Publish(ctx context.Context, kind string, c *Chain) error
}

// Feed update kinds.
const (
	FeedChainDetected   = "chain_detected"
	FeedChainSuperseded = "chains_superseded"
	FeedStatusChanged   = "status_changed"
)

// Result is the outcome of one detection pass: the chains produced and the
// skip/degrade notices gathered along the way, including persistence
// failures (those chains are simply absent until the next pass).
type Result struct {
	Chains  []Chain
	Notices []Notice
}

// Service orchestrates detection passes, refreshes, and operator status
// overrides over the two capability interfaces.
type Service struct {
	events EventReader
	repo   Repository
	rules  Rules
	feed   Feed
	alert  Alerter
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithRules overrides the default detection rules.
func WithRules(r Rules) Option {
	return func(s *Service) { s.rules = r }
}

// WithFeed attaches a downstream chain-update feed.
func WithFeed(f Feed) Option {
	return func(s *Service) { s.feed = f }
}

// WithAlerter attaches an escalation alerter for urgent chains.
func WithAlerter(a Alerter) Option {
	return func(s *Service) { s.alert = a }
}

// WithClock fixes the service clock. Tests use this to make every
// "now"-relative value deterministic.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires a detection service over an event reader and a chain
// repository.
func NewService(events EventReader, repo Repository, opts ...Option) *Service {
	s := &Service{
		events: events,
		repo:   repo,
		rules:  DefaultRules(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DetectChainsForShipment runs a full pass: fetch events, run every
// applicable detector, dedup, and upsert each resulting chain. A failed
// upsert is logged and noted but does not block the rest of the pass;
// detection is idempotent so the chain reappears on the next run.
func (s *Service) DetectChainsForShipment(ctx context.Context, shipmentID string) (Result, error) {
	events, err := s.events.EventsForShipment(ctx, shipmentID)
	if err != nil {
		return Result{}, fmt.Errorf("fetch events for %s: %w", shipmentID, err)
	}
	if len(events) == 0 {
		return Result{}, nil
	}

	now := s.now()
	candidates, notices := Detect(events, now, s.rules)
	chains := Dedupe(candidates)

	urgent := make(map[string]bool)
	for i := range events {
		if events[i].Sentiment == chronicle.SentimentUrgent {
			urgent[events[i].ID] = true
		}
	}

	result := Result{Notices: notices}
	for i := range chains {
		c := &chains[i]
		BuildLabels(c)
		if err := s.repo.Upsert(ctx, c); err != nil {
			slog.Warn("chain upsert failed, continuing pass",
				"shipment", shipmentID, "type", c.Type, "trigger", c.Trigger.EventID, "error", err)
			result.Notices = append(result.Notices, Notice{
				EventID: c.Trigger.EventID,
				Reason:  fmt.Sprintf("persist %s chain: %v", c.Type, err),
			})
			continue
		}
		s.publish(ctx, FeedChainDetected, c)
		s.escalate(ctx, c, urgent)
		result.Chains = append(result.Chains, *c)
	}
	slog.Info("detection pass complete",
		"shipment", shipmentID, "events", len(events), "chains", len(result.Chains), "notices", len(result.Notices))
	return result, nil
}

// RefreshChains supersedes every auto-detected chain for the shipment and
// immediately re-runs detection. If interrupted between the two steps the
// shipment transiently shows zero active chains; the next pass heals it.
func (s *Service) RefreshChains(ctx context.Context, shipmentID string) (Result, error) {
	n, err := s.repo.SupersedeAutoDetected(ctx, shipmentID)
	if err != nil {
		return Result{}, fmt.Errorf("supersede chains for %s: %w", shipmentID, err)
	}
	if n > 0 {
		slog.Info("superseded chains for refresh", "shipment", shipmentID, "count", n)
		s.publish(ctx, FeedChainSuperseded, &Chain{ShipmentID: shipmentID})
	}
	return s.DetectChainsForShipment(ctx, shipmentID)
}

// UpdateStatus is the manual operator override. It validates the transition
// against the persisted row before applying it; resolving stamps the
// resolution time in the repository. Superseding is not an override:
// only the refresh pass retires rows.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status, resolutionSummary string) error {
	if status == StatusSuperseded {
		return fmt.Errorf("chain %s: superseded is set by refresh, not manually", id)
	}
	current, err := s.repo.GetChain(ctx, id)
	if err != nil {
		return fmt.Errorf("load chain %s: %w", id, err)
	}
	if !ValidTransition(current.Status, status) {
		return fmt.Errorf("invalid status transition %s -> %s for chain %s", current.Status, status, id)
	}
	if err := s.repo.UpdateStatus(ctx, id, status, resolutionSummary); err != nil {
		return fmt.Errorf("update chain %s: %w", id, err)
	}
	current.Status = status
	s.publish(ctx, FeedStatusChanged, current)
	return nil
}

// ActiveChains returns the live, non-superseded chains for a shipment with
// read-time fields rehydrated by the repository.
func (s *Service) ActiveChains(ctx context.Context, shipmentID string) ([]Chain, error) {
	return s.repo.ActiveChains(ctx, shipmentID)
}

// AllChains returns every chain row for a shipment, superseded history
// included.
func (s *Service) AllChains(ctx context.Context, shipmentID string) ([]Chain, error) {
	return s.repo.AllChains(ctx, shipmentID)
}

// escalate pings the alerter once, when an urgent-sentiment communication
// chain is first persisted. CreatedAt equals UpdatedAt only on the pass
// that created the row.
func (s *Service) escalate(ctx context.Context, c *Chain, urgent map[string]bool) {
	if s.alert == nil || c.Type != TypeCommunication || c.Status != StatusActive {
		return
	}
	if !urgent[c.Trigger.EventID] || !c.CreatedAt.Equal(c.UpdatedAt) {
		return
	}
	if err := s.alert.UrgentChain(ctx, c); err != nil {
		slog.Warn("urgent chain alert failed", "shipment", c.ShipmentID, "trigger", c.Trigger.EventID, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, kind string, c *Chain) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(ctx, kind, c); err != nil {
		slog.Warn("chain feed publish failed", "kind", kind, "shipment", c.ShipmentID, "error", err)
	}
}
