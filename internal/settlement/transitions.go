package settlement

import "fmt"

// legalTransitions is the full transition graph. A status missing from the
// map, or absent from its source's list, is an illegal target.
//
// completed, refunded, failed and cancelled are terminal: no outgoing edges.
var legalTransitions = map[Status][]Status{
	StatusPending:      {StatusProcessing, StatusCancelled, StatusFailed},
	StatusProcessing:   {StatusHeldInEscrow, StatusFailed, StatusCancelled},
	StatusHeldInEscrow: {StatusCompleted, StatusDisputed, StatusRefunded},
	StatusDisputed:     {StatusRefunded, StatusCompleted, StatusHeldInEscrow},
	StatusCompleted:    {},
	StatusRefunded:     {},
	StatusFailed:       {},
	StatusCancelled:    {},
}

// ValidStatus reports whether s is a known settlement status.
func ValidStatus(s Status) bool {
	_, ok := legalTransitions[s]
	return ok
}

// CanTransition reports whether from → to is a legal edge.
func CanTransition(from, to Status) bool {
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// checkTransition returns ErrInvalidTransition (with context) for an illegal
// edge, nil otherwise.
func checkTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
