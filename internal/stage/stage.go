// Package stage drives a conversation through the fixed intake workflow and
// decides which slots are still needed before it can move on.
package stage

import "strings"

// Stage is a position in the intake workflow.
type Stage string

const (
	Collect  Stage = "collect"
	Enrich   Stage = "enrich"
	Match    Stage = "match"
	Schedule Stage = "schedule"
	Close    Stage = "close"
)

// Order lists every stage from first to last.
var Order = []Stage{Collect, Enrich, Match, Schedule, Close}

// Parse maps a stage name to a Stage. Unknown or empty names become Collect.
func Parse(name string) Stage {
	st := Stage(strings.ToLower(strings.TrimSpace(name)))
	if st.Valid() {
		return st
	}
	return Collect
}

// Valid reports whether st is one of the workflow stages.
func (st Stage) Valid() bool {
	switch st {
	case Collect, Enrich, Match, Schedule, Close:
		return true
	}
	return false
}

// Successor returns the stage that follows st. Close is absorbing.
func (st Stage) Successor() Stage {
	switch st {
	case Collect:
		return Enrich
	case Enrich:
		return Match
	case Match:
		return Schedule
	case Schedule, Close:
		return Close
	}
	return Enrich
}

// Index returns the position of st in Order; unknown stages sit at Collect.
func (st Stage) Index() int {
	for i, s := range Order {
		if s == st {
			return i
		}
	}
	return 0
}

func (st Stage) String() string { return string(st) }
