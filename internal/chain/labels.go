package chain

import (
	"fmt"
	"strings"
)

// BuildLabels fills the chain's headline, summary, and full narrative from
// its own fields. Labels are deterministic; the LLM prose renderer that may
// replace them downstream is out of scope here.
func BuildLabels(c *Chain) {
	c.Headline = headline(c)
	c.Summary = summaryLine(c)
	c.Full = fullNarrative(c)
}

func headline(c *Chain) string {
	party := c.Trigger.Party
	if party == "" {
		party = "unknown party"
	}
	switch c.Type {
	case TypeIssueToAction:
		issue := strings.TrimPrefix(c.Trigger.EventType, "issue:")
		if issue == "issue" || issue == "" {
			return fmt.Sprintf("Issue reported by %s", party)
		}
		return fmt.Sprintf("%s issue reported by %s", titleWord(issue), party)
	case TypeCommunication:
		return fmt.Sprintf("Inbound request from %s", party)
	case TypeDelay:
		return fmt.Sprintf("Schedule disruption reported by %s", party)
	default:
		return fmt.Sprintf("%s on shipment %s", titleWord(string(c.Type)), c.ShipmentID)
	}
}

func summaryLine(c *Chain) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s. ", headline(c))
	if n := len(c.Events); n == 1 {
		b.WriteString("1 linked event. ")
	} else if n > 1 {
		fmt.Fprintf(&b, "%d linked events. ", n)
	}
	b.WriteString(c.CurrentState)
	if c.Impact.DelayDays != nil {
		fmt.Fprintf(&b, ". Estimated delay %d day(s)", *c.Impact.DelayDays)
	}
	b.WriteString(".")
	return b.String()
}

func fullNarrative(c *Chain) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", headline(c))
	fmt.Fprintf(&b, "Trigger: %s (%s)\n", firstNonEmpty(c.Trigger.Summary, c.Trigger.EventType), c.Trigger.OccurredAt.Format("2006-01-02"))
	for _, ev := range c.Events {
		fmt.Fprintf(&b, "  %s +%dd: %s (%s)\n", relationArrow(ev.Relation), ev.DaysFromTrigger,
			firstNonEmpty(ev.Summary, ev.EventType), firstNonEmpty(ev.Party, "internal"))
	}
	fmt.Fprintf(&b, "Now: %s", c.CurrentState)
	if c.CurrentStateParty != "" {
		fmt.Fprintf(&b, " (with %s)", c.CurrentStateParty)
	}
	if c.Resolution.ResolvedAt != nil {
		fmt.Fprintf(&b, "\nResolved %s", c.Resolution.ResolvedAt.Format("2006-01-02"))
		if c.Resolution.ResolvedBy != "" {
			fmt.Fprintf(&b, " by %s", c.Resolution.ResolvedBy)
		}
	}
	return b.String()
}

func relationArrow(r Relation) string {
	switch r {
	case RelationResolvedBy:
		return "resolved by"
	case RelationFollowedBy:
		return "followed by"
	default:
		return "caused"
	}
}

func titleWord(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
