package chain

import (
	"fmt"
	"strings"
	"time"

	"github.com/mrsingh86/chronicled/internal/chronicle"
)

// Current-state strings produced by the detectors. The renderer and tests
// key off these verbatim.
const (
	StateAwaitingAction   = "Issue reported - awaiting action"
	StateActionsCompleted = "All actions completed"
	StateResponseSent     = "Response sent"
	StateScheduleDone     = "New schedule confirmed"
	StateScheduleAwaiting = "Awaiting new schedule from carrier"
)

// Confidence weights for the issue→action detector.
const (
	issueActionBase          = 60
	issueActionTypedBonus    = 15
	issueActionEffectBonus   = 10
	issueActionDeadlineBonus = 10

	communicationConfidence = 85
	missingThreadPenalty    = 15
	delayConfidence         = 80
)

var scheduleKeywords = []string{
	"delay", "rollover", "rolled", "postpon", "resched", "schedule", "etd", "eta",
}

// Detect runs every applicable detector over each event of one shipment and
// returns the raw candidate chains in event order, plus notices for events
// that were skipped or handled in degraded form. Candidates are not yet
// deduplicated; see Dedupe.
func Detect(events []chronicle.Event, now time.Time, rules Rules) ([]Chain, []Notice) {
	var candidates []Chain
	var notices []Notice

	for i := range events {
		trig := &events[i]
		if trig.OccurredAt.IsZero() {
			notices = append(notices, Notice{EventID: trig.ID, Reason: "missing occurred_at, skipped as trigger"})
			continue
		}
		if trig.HasIssue {
			c, ns := DetectIssueAction(trig, events, now, rules)
			notices = append(notices, ns...)
			if c != nil {
				candidates = append(candidates, *c)
			}
		}
		if communicationTrigger(trig) {
			c, ns := DetectCommunication(trig, events, now, rules)
			notices = append(notices, ns...)
			if c != nil {
				candidates = append(candidates, *c)
			}
		}
		if delayTrigger(trig) {
			c, ns := DetectDelay(trig, events, now, rules)
			notices = append(notices, ns...)
			if c != nil {
				candidates = append(candidates, *c)
			}
		}
	}
	return candidates, notices
}

// DetectIssueAction links a reported issue to every action taken at or after
// it. The chain resolves once all linked actions are completed.
func DetectIssueAction(trig *chronicle.Event, events []chronicle.Event, now time.Time, rules Rules) (*Chain, []Notice) {
	if !trig.HasIssue {
		return nil, nil
	}
	var notices []Notice
	if trig.IssueType == "" {
		notices = append(notices, Notice{EventID: trig.ID, Reason: "issue without issue_type, confidence degraded"})
	}

	c := newChain(trig, TypeIssueToAction, now)

	var pending, completed int
	var overdue int
	var earliestDeadline *time.Time
	var anyDeadline bool
	var lastCompleted *chronicle.Event
	var pendingOwners []string
	for i := range events {
		e := &events[i]
		if !e.HasAction || e.ID == trig.ID || e.OccurredAt.Before(trig.OccurredAt) {
			continue
		}
		rel := RelationCausedBy
		if e.ActionCompleted() {
			rel = RelationResolvedBy
			completed++
			if lastCompleted == nil || e.ActionCompletedAt.After(*lastCompleted.ActionCompletedAt) {
				lastCompleted = e
			}
		} else {
			pending++
			if e.ActionOverdue(now) {
				overdue++
			}
			if e.ActionDeadline != nil && (earliestDeadline == nil || e.ActionDeadline.Before(*earliestDeadline)) {
				d := *e.ActionDeadline
				earliestDeadline = &d
			}
			if owner := e.ActionOwner; owner != "" {
				if c.CurrentStateParty == "" {
					c.CurrentStateParty = owner
				}
				pendingOwners = append(pendingOwners, owner)
			}
		}
		if e.ActionDeadline != nil {
			anyDeadline = true
		}
		c.Events = append(c.Events, effectOf(e, trig, rel))
	}

	total := pending + completed
	switch {
	case total == 0:
		c.Status = StatusActive
		c.CurrentState = StateAwaitingAction
		c.CurrentStateParty = rules.DefaultActionOwner
	case pending == 0:
		c.Status = StatusResolved
		c.CurrentState = StateActionsCompleted
		c.CurrentStateParty = ""
		if lastCompleted != nil {
			t := *lastCompleted.ActionCompletedAt
			c.Resolution.ResolvedAt = &t
			c.Resolution.ResolvedBy = lastCompleted.ActionOwner
		}
	default:
		c.Status = StatusActive
		if overdue > 0 {
			c.CurrentState = fmt.Sprintf("%d action(s) pending - %d overdue", pending, overdue)
		} else {
			c.CurrentState = fmt.Sprintf("%d action(s) pending", pending)
		}
		if c.CurrentStateParty == "" {
			c.CurrentStateParty = rules.DefaultActionOwner
		}
	}

	c.Impact.DelayDays = rules.delayDays(trig.IssueType)
	c.Impact.AffectedParties = affectedParties(trig, pendingOwners, rules)
	c.Resolution.Required = true
	c.Resolution.Deadline = earliestDeadline

	score := issueActionBase
	if trig.IssueType != "" {
		score += issueActionTypedBonus
	}
	if total > 0 {
		score += issueActionEffectBonus
	}
	if anyDeadline {
		score += issueActionDeadlineBonus
	}
	c.Confidence = clampConfidence(score)
	return c, notices
}

func communicationTrigger(e *chronicle.Event) bool {
	if e.Direction != chronicle.DirectionInbound {
		return false
	}
	switch e.MessageType {
	case chronicle.MessageActionRequired, chronicle.MessageRequest, chronicle.MessageQuery:
		return true
	}
	return e.Sentiment == chronicle.SentimentUrgent
}

// DetectCommunication links an inbound request to the outbound replies in
// the same thread. Any reply resolves the chain.
func DetectCommunication(trig *chronicle.Event, events []chronicle.Event, now time.Time, rules Rules) (*Chain, []Notice) {
	if !communicationTrigger(trig) {
		return nil, nil
	}
	c := newChain(trig, TypeCommunication, now)
	c.Confidence = communicationConfidence

	var notices []Notice
	if trig.ThreadID == "" {
		// Without a thread there is nothing to match replies against; keep
		// the chain but say so and mark it down.
		notices = append(notices, Notice{EventID: trig.ID, Reason: "missing thread_id, replies cannot be matched"})
		c.Confidence = clampConfidence(communicationConfidence - missingThreadPenalty)
	} else {
		for i := range events {
			e := &events[i]
			if e.Direction != chronicle.DirectionOutbound || e.ThreadID != trig.ThreadID || !e.OccurredAt.After(trig.OccurredAt) {
				continue
			}
			rel := RelationFollowedBy
			if len(c.Events) == 0 {
				rel = RelationResolvedBy
			}
			c.Events = append(c.Events, effectOf(e, trig, rel))
		}
	}

	c.Resolution.Required = true
	if len(c.Events) > 0 {
		c.Status = StatusResolved
		c.CurrentState = StateResponseSent
		first := c.Events[0]
		t := first.OccurredAt
		c.Resolution.ResolvedAt = &t
		c.Resolution.ResolvedBy = first.Party
	} else {
		c.Status = StatusActive
		c.CurrentState = fmt.Sprintf("Awaiting response - %d days", daysBetween(trig.OccurredAt, now))
		c.CurrentStateParty = rules.DefaultActionOwner
	}
	return c, notices
}

func delayTrigger(e *chronicle.Event) bool {
	if !e.HasIssue {
		return false
	}
	switch e.IssueType {
	case chronicle.IssueDelay, chronicle.IssueRollover:
		return true
	}
	return mentionsSchedule(e.IssueType) || mentionsSchedule(e.Summary)
}

func delayEffect(e *chronicle.Event) bool {
	if e.DocumentType == "booking_amendment" {
		return true
	}
	switch e.MessageType {
	case chronicle.MessageUpdate, chronicle.MessageConfirmation:
		return true
	}
	s := strings.ToLower(e.Summary)
	return strings.Contains(s, "schedule") || strings.Contains(s, "new etd") || strings.Contains(s, "revised")
}

func delayConfirmation(e *chronicle.Event) bool {
	return e.MessageType == chronicle.MessageConfirmation ||
		strings.Contains(strings.ToLower(e.Summary), "confirmed")
}

// DetectDelay links a schedule disruption to the booking amendments and
// schedule updates that follow it. A confirmation closes the chain.
func DetectDelay(trig *chronicle.Event, events []chronicle.Event, now time.Time, rules Rules) (*Chain, []Notice) {
	if !delayTrigger(trig) {
		return nil, nil
	}
	c := newChain(trig, TypeDelay, now)
	c.Confidence = delayConfidence

	var confirmedAt *time.Time
	var confirmedBy string
	for i := range events {
		e := &events[i]
		if e.ID == trig.ID || !e.OccurredAt.After(trig.OccurredAt) || !delayEffect(e) {
			continue
		}
		rel := RelationFollowedBy
		if delayConfirmation(e) {
			rel = RelationResolvedBy
			if confirmedAt == nil {
				t := e.OccurredAt
				confirmedAt = &t
				confirmedBy = e.FromParty
			}
		}
		c.Events = append(c.Events, effectOf(e, trig, rel))
	}

	c.Impact.DelayDays = rules.delayDays(trig.IssueType)
	c.Impact.AffectedParties = affectedParties(trig, nil, rules)
	c.Resolution.Required = true
	if confirmedAt != nil {
		c.Status = StatusResolved
		c.CurrentState = StateScheduleDone
		c.Resolution.ResolvedAt = confirmedAt
		c.Resolution.ResolvedBy = confirmedBy
	} else {
		c.Status = StatusActive
		c.CurrentState = StateScheduleAwaiting
		c.CurrentStateParty = "carrier"
	}
	return c, nil
}

func newChain(trig *chronicle.Event, t Type, now time.Time) *Chain {
	return &Chain{
		ShipmentID: trig.ShipmentID,
		Type:       t,
		Status:     StatusActive,
		Trigger: Trigger{
			EventID:    trig.ID,
			EventType:  trig.EventType(),
			Summary:    trig.Summary,
			OccurredAt: trig.OccurredAt,
			Party:      trig.FromParty,
			DaysAgo:    daysBetween(trig.OccurredAt, now),
		},
		AutoDetected: true,
	}
}

func effectOf(e, trig *chronicle.Event, rel Relation) ChainEvent {
	return ChainEvent{
		ChronicleID:     e.ID,
		EventType:       e.EventType(),
		Summary:         e.Summary,
		OccurredAt:      e.OccurredAt,
		Party:           e.FromParty,
		Relation:        rel,
		DaysFromTrigger: daysBetween(trig.OccurredAt, e.OccurredAt),
	}
}

// affectedParties collects the external trigger party, the owners of still
// pending actions other than the default internal owner, and always the
// shipper and consignee. Order is stable and duplicates are dropped.
func affectedParties(trig *chronicle.Event, pendingOwners []string, rules Rules) []string {
	var parties []string
	seen := map[string]bool{}
	add := func(p string) {
		p = strings.TrimSpace(p)
		key := strings.ToLower(p)
		if p == "" || seen[key] {
			return
		}
		seen[key] = true
		parties = append(parties, p)
	}
	if !rules.internal(trig.FromParty) {
		add(trig.FromParty)
	}
	for _, owner := range pendingOwners {
		if !strings.EqualFold(owner, rules.DefaultActionOwner) {
			add(owner)
		}
	}
	add("shipper")
	add("consignee")
	return parties
}

func mentionsSchedule(s string) bool {
	s = strings.ToLower(s)
	for _, kw := range scheduleKeywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func clampConfidence(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
