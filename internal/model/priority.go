package model

import "strings"

// Priority is the urgency level of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Priorities lists the accepted levels in ascending order.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// ParsePriority accepts only the exact lowercase level names.
func ParsePriority(raw string) (Priority, bool) {
	for _, p := range Priorities {
		if raw == string(p) {
			return p, true
		}
	}
	return "", false
}

func (p Priority) Valid() bool {
	_, ok := ParsePriority(string(p))
	return ok
}

// CSSClass returns the presentation class for the level. Stored tasks always
// carry a valid level (validation plus a CHECK constraint), so anything else
// renders as medium instead of an empty class.
func (p Priority) CSSClass() string {
	if !p.Valid() {
		return "priority-" + string(PriorityMedium)
	}
	return "priority-" + string(p)
}

// Label is the capitalized level name for chat output.
func (p Priority) Label() string {
	if p == "" {
		return ""
	}
	return strings.ToUpper(string(p[:1])) + string(p[1:])
}
