package investigation

import "fmt"

// DefaultTransitions is the forward lifecycle plus reopening, enforced only
// when strict transitions are enabled.
var DefaultTransitions = map[Status][]Status{
	StatusReady:       {StatusActive, StatusClosed},
	StatusActive:      {StatusContainment, StatusClosed},
	StatusContainment: {StatusActive, StatusClosed},
	StatusClosed:      {StatusActive},
}

// StatusMachine validates status transitions. In permissive mode any known
// status may follow any other.
type StatusMachine struct {
	strict      bool
	transitions map[Status][]Status
}

// NewStatusMachine creates a machine. strict enables DefaultTransitions.
func NewStatusMachine(strict bool) *StatusMachine {
	return &StatusMachine{strict: strict, transitions: DefaultTransitions}
}

// ValidateTransition returns nil if from->to is allowed.
func (m *StatusMachine) ValidateTransition(from, to Status) error {
	if !to.Valid() {
		return invalidField("status", fmt.Sprintf("invalid status %q", to))
	}
	if !m.strict || from == to {
		return nil
	}
	for _, next := range m.transitions[from] {
		if next == to {
			return nil
		}
	}
	return &TransitionError{
		Code:    "STATUS_TRANSITION_DENIED",
		From:    from,
		To:      to,
		Allowed: m.AllowedTransitions(from),
		Message: fmt.Sprintf("transition from %s to %s is not allowed", from, to),
	}
}

// AllowedTransitions returns the statuses reachable from from.
func (m *StatusMachine) AllowedTransitions(from Status) []Status {
	if !m.strict {
		var out []Status
		for _, s := range Statuses() {
			if s != from {
				out = append(out, s)
			}
		}
		return out
	}
	return append([]Status(nil), m.transitions[from]...)
}

// TransitionError is a structured error for a rejected status change.
// It is a validation failure: nothing is written.
type TransitionError struct {
	Code    string   `json:"code"`
	From    Status   `json:"from"`
	To      Status   `json:"to"`
	Allowed []Status `json:"allowed"`
	Message string   `json:"error"`
}

func (e *TransitionError) Error() string {
	return e.Message
}
