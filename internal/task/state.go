package task

import (
	"encoding/json"
	"strings"
)

// RunState is the backend-authoritative execution status of a task
// instance. The console never advances it on its own; it only mirrors
// what the backend reported last.
type RunState string

const (
	StateSubmitted     RunState = "SUBMITTED"
	StateWorking       RunState = "WORKING"
	StateInputRequired RunState = "INPUT_REQUIRED"
	StateCompleted     RunState = "COMPLETED"
	StateCanceled      RunState = "CANCELED"
)

// ParseRunState normalizes a state token. Older records use the
// two-value projection {ready, running}; it maps onto SUBMITTED/WORKING
// for display grouping and takes no other part in transition logic.
func ParseRunState(s string) RunState {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SUBMITTED", "READY":
		return StateSubmitted
	case "WORKING", "RUNNING":
		return StateWorking
	case "INPUT_REQUIRED":
		return StateInputRequired
	case "COMPLETED":
		return StateCompleted
	case "CANCELED", "CANCELLED":
		return StateCanceled
	default:
		return RunState(s)
	}
}

func (s *RunState) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParseRunState(raw)
	return nil
}

func (s RunState) Terminal() bool {
	return s == StateCompleted || s == StateCanceled
}

// CanRun reports whether an operator run command is valid from s.
func (s RunState) CanRun() bool {
	return s == StateSubmitted || s == StateInputRequired
}

// CanPause reports whether an operator pause command is valid from s.
func (s RunState) CanPause() bool {
	return s == StateWorking
}

// CanCancel reports whether an operator cancel command is valid from s.
func (s RunState) CanCancel() bool {
	return !s.Terminal()
}

// CanTransition reports whether s -> to is a legal lifecycle move. The
// dev backend enforces this server-side; the console uses the per-command
// predicates above instead.
func (s RunState) CanTransition(to RunState) bool {
	if to == StateCanceled {
		return !s.Terminal()
	}
	switch s {
	case StateSubmitted:
		return to == StateWorking
	case StateWorking:
		return to == StateInputRequired || to == StateCompleted
	case StateInputRequired:
		return to == StateWorking
	default:
		return false
	}
}

// State is the task's run-state document as the backend reports it. Top
// is the only field this layer interprets; the backend may nest more.
type State struct {
	Top RunState `json:"top" yaml:"top"`
}
