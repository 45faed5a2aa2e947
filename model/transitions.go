package model

import (
	"fmt"
	"time"
)

// allowedTransitions lists the valid target states for each source state.
// SUCCESS and FAILED are terminal. PROCESSING is reserved for an intermediate
// gateway step and is not reached by settlement today.
var allowedTransitions = map[PaymentStatus][]PaymentStatus{
	StatusInitiated:  {StatusProcessing, StatusSuccess, StatusFailed},
	StatusProcessing: {StatusSuccess, StatusFailed},
	StatusSuccess:    {},
	StatusFailed:     {},
}

// CanTransition checks if a transition from one state to another is allowed.
func CanTransition(from, to PaymentStatus) bool {
	allowed, exists := allowedTransitions[from]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Transition moves the record to status to, refreshes UpdatedAt and appends
// the settlement audit entry.
func (p *PaymentRecord) Transition(to PaymentStatus, at time.Time) error {
	if !CanTransition(p.Status, to) {
		return &InvalidTransitionError{PaymentID: p.ID, From: p.Status, To: to}
	}
	p.Status = to
	p.AppendLog(at, fmt.Sprintf(LogSettled, to))
	return nil
}
