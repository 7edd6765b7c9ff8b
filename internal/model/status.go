package model

// Status represents the lifecycle stage of a lead.
type Status string

const (
	StatusNew             Status = "NEW"
	StatusTechAnalyzed    Status = "TECH_ANALYZED"
	StatusWaitingDecision Status = "WAITING_DECISION"
	StatusEnriched        Status = "ENRICHED"
	StatusDiscarded       Status = "DISCARDED"
	StatusCopiesReady     Status = "COPIES_READY"
)

// transitions is the closed set of allowed forward moves. Operator reset is
// handled separately and is the only sanctioned backward move.
var transitions = map[Status][]Status{
	StatusNew:             {StatusTechAnalyzed},
	StatusTechAnalyzed:    {StatusWaitingDecision},
	StatusWaitingDecision: {StatusEnriched, StatusDiscarded},
	StatusEnriched:        {StatusCopiesReady},
	StatusDiscarded:       {},
	StatusCopiesReady:     {},
}

// rank orders statuses along the pipeline so handlers can detect redelivery
// of a message for a lead that already moved past their stage.
var rank = map[Status]int{
	StatusNew:             0,
	StatusTechAnalyzed:    1,
	StatusWaitingDecision: 2,
	StatusEnriched:        3,
	StatusDiscarded:       3,
	StatusCopiesReady:     4,
}

// Valid reports whether s is one of the six defined statuses.
func (s Status) Valid() bool {
	_, ok := rank[s]
	return ok
}

// CanTransition reports whether moving from s to next is allowed by the
// state machine.
func (s Status) CanTransition(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// AtOrPast reports whether s is already at stage other or beyond it. A
// discarded lead is considered past every non-terminal stage.
func (s Status) AtOrPast(other Status) bool {
	rs, ok1 := rank[s]
	ro, ok2 := rank[other]
	if !ok1 || !ok2 {
		return false
	}
	if s == StatusDiscarded {
		return true
	}
	return rs >= ro
}

// Terminal reports whether no further transitions exist from s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}
