// Package chronicle defines the classified correspondence record and its
// sqlite-backed store. One event is produced per classified email by the
// upstream pipeline; this core only reads and (for ops tooling) seeds them.
package chronicle

import (
	"time"
)

// Direction values for Event.Direction.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Well-known message types produced by the classifier.
const (
	MessageActionRequired = "action_required"
	MessageRequest        = "request"
	MessageQuery          = "query"
	MessageUpdate         = "update"
	MessageConfirmation   = "confirmation"
	MessageNotification   = "notification"
)

// Sentiment values.
const (
	SentimentUrgent   = "urgent"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
	SentimentPositive = "positive"
)

// Issue types with a known schedule impact.
const (
	IssueDelay    = "delay"
	IssueRollover = "rollover"
	IssueHold     = "hold"
	IssueCustoms  = "customs"
)

// Event is a single classified, timestamped correspondence record.
// Events are immutable once written; the chain engine never mutates them.
type Event struct {
	ID                string     `json:"id"`
	ShipmentID        string     `json:"shipment_id"`
	ThreadID          string     `json:"thread_id"`
	Direction         string     `json:"direction"` // inbound | outbound
	FromParty         string     `json:"from_party"`
	FromAddress       string     `json:"from_address"`
	MessageType       string     `json:"message_type"`
	Sentiment         string     `json:"sentiment"`
	Summary           string     `json:"summary"`
	HasIssue          bool       `json:"has_issue"`
	IssueType         string     `json:"issue_type,omitempty"`
	IssueDescription  string     `json:"issue_description,omitempty"`
	HasAction         bool       `json:"has_action"`
	ActionDescription string     `json:"action_description,omitempty"`
	ActionOwner       string     `json:"action_owner,omitempty"`
	ActionDeadline    *time.Time `json:"action_deadline,omitempty"`
	ActionCompletedAt *time.Time `json:"action_completed_at,omitempty"`
	ActionPriority    string     `json:"action_priority,omitempty"`
	OccurredAt        time.Time  `json:"occurred_at"`
	DocumentType      string     `json:"document_type,omitempty"`
}

// ActionCompleted reports whether the event carries a completed action.
func (e *Event) ActionCompleted() bool {
	return e.HasAction && e.ActionCompletedAt != nil
}

// ActionOverdue reports whether the event carries an open action whose
// deadline has passed at the given time.
func (e *Event) ActionOverdue(now time.Time) bool {
	return e.HasAction && e.ActionCompletedAt == nil &&
		e.ActionDeadline != nil && e.ActionDeadline.Before(now)
}

// EventType returns a coarse label for the event, preferring the issue
// classification, then the action flag, then the message type.
func (e *Event) EventType() string {
	switch {
	case e.HasIssue && e.IssueType != "":
		return "issue:" + e.IssueType
	case e.HasIssue:
		return "issue"
	case e.HasAction:
		return "action"
	case e.MessageType != "":
		return e.MessageType
	default:
		return "message"
	}
}
