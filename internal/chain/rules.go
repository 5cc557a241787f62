package chain

import "strings"

// Rules carries the detection knobs that vary per deployment: which parties
// count as internal, who owns actions by default, and the per-issue-type
// schedule impact used for Impact.DelayDays.
type Rules struct {
	InternalParties    []string
	DefaultActionOwner string
	DelayDaysByIssue   map[string]int
}

// DefaultRules returns the standard rule set.
func DefaultRules() Rules {
	return Rules{
		InternalParties:    []string{"ops", "operations", "internal"},
		DefaultActionOwner: "ops",
		DelayDaysByIssue: map[string]int{
			"delay":    3,
			"rollover": 7,
			"hold":     5,
			"customs":  3,
		},
	}
}

func (r Rules) internal(party string) bool {
	p := strings.ToLower(strings.TrimSpace(party))
	if p == "" {
		return true
	}
	for _, in := range r.InternalParties {
		if p == strings.ToLower(in) {
			return true
		}
	}
	return false
}

// delayDays returns the fixed schedule impact for an issue type, or nil when
// the type has no known impact.
func (r Rules) delayDays(issueType string) *int {
	if d, ok := r.DelayDaysByIssue[strings.ToLower(issueType)]; ok {
		return &d
	}
	return nil
}
