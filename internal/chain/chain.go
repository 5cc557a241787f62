// Package chain turns a shipment's chronicle events into causally-linked
// narrative chains: a trigger event, the effects it caused, and how (or
// whether) the situation resolved. Detection is a pure pass over the event
// list; lifecycle state lives in the chain repository.
package chain

import (
	"fmt"
	"time"
)

// Type identifies the cause/effect pattern a chain was built from.
type Type string

const (
	TypeIssueToAction      Type = "issue_to_action"
	TypeActionToResolution Type = "action_to_resolution"
	TypeCommunication      Type = "communication_chain"
	TypeEscalation         Type = "escalation_chain"
	TypeDelay              Type = "delay_chain"
	TypeDocument           Type = "document_chain"
)

// Status is the lifecycle state of a chain row.
type Status string

const (
	StatusActive     Status = "active"
	StatusResolved   Status = "resolved"
	StatusStale      Status = "stale"
	StatusSuperseded Status = "superseded" // terminal for the row
)

// ValidTransition reports whether a status change is allowed. Superseding is
// reserved for the refresh pass and accepts any non-superseded state;
// everything else only moves forward from active.
func ValidTransition(from, to Status) bool {
	switch to {
	case StatusSuperseded:
		return from != StatusSuperseded
	case StatusResolved, StatusStale:
		return from == StatusActive
	default:
		return false
	}
}

// Relation describes how a chain event relates to the trigger.
type Relation string

const (
	RelationCausedBy   Relation = "caused_by"
	RelationResolvedBy Relation = "resolved_by"
	RelationFollowedBy Relation = "followed_by"
)

// Trigger is a snapshot of the event that started the chain. DaysAgo is
// computed against the clock at read time, never persisted.
type Trigger struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	Summary    string    `json:"summary"`
	OccurredAt time.Time `json:"occurred_at"`
	Party      string    `json:"party"`
	DaysAgo    int       `json:"days_ago"`
}

// ChainEvent is one effect linked to the trigger.
type ChainEvent struct {
	ChronicleID     string    `json:"chronicle_id"`
	EventType       string    `json:"event_type"`
	Summary         string    `json:"summary"`
	OccurredAt      time.Time `json:"occurred_at"`
	Party           string    `json:"party"`
	Relation        Relation  `json:"relation"`
	DaysFromTrigger int       `json:"days_from_trigger"`
}

// Impact estimates the operational cost of the chain.
type Impact struct {
	DelayDays       *int     `json:"delay_days,omitempty"`
	FinancialUSD    *float64 `json:"financial_usd,omitempty"`
	AffectedParties []string `json:"affected_parties,omitempty"`
}

// Resolution tracks whether and how the chain closed out.
type Resolution struct {
	Required   bool       `json:"required"`
	Deadline   *time.Time `json:"deadline,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy string     `json:"resolved_by,omitempty"`
	Summary    string     `json:"summary,omitempty"`
}

// Chain is one detected narrative: trigger, effects, current state, and
// display strings for the downstream renderer.
type Chain struct {
	ID                 string       `json:"id"`
	ShipmentID         string       `json:"shipment_id"`
	Type               Type         `json:"chain_type"`
	Status             Status       `json:"chain_status"`
	Trigger            Trigger      `json:"trigger"`
	Events             []ChainEvent `json:"events"`
	CurrentState       string       `json:"current_state"`
	CurrentStateParty  string       `json:"current_state_party,omitempty"`
	DaysInCurrentState int          `json:"days_in_current_state"`
	Headline           string       `json:"narrative_headline"`
	Summary            string       `json:"narrative_summary"`
	Full               string       `json:"narrative_full"`
	Impact             Impact       `json:"impact"`
	Resolution         Resolution   `json:"resolution"`
	AutoDetected       bool         `json:"auto_detected"`
	Confidence         int          `json:"confidence_score"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// Key identifies the live row for a chain: at most one non-superseded chain
// may exist per key at any time.
func (c *Chain) Key() string {
	return fmt.Sprintf("%s|%s|%s", c.ShipmentID, c.Type, c.Trigger.EventID)
}

// Notice records an event the detectors skipped or handled in degraded form.
// The caller decides how to surface these.
type Notice struct {
	EventID string `json:"event_id"`
	Reason  string `json:"reason"`
}

func daysBetween(from, to time.Time) int {
	d := int(to.Sub(from).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}
