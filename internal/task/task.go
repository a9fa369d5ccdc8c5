// Package task holds the console-side model of a schedulable unit of
// work: its identity, trigger, priority, schedule, and the run state the
// backend last reported for it. Execution itself is backend-owned; this
// layer validates input, serializes submissions, and mirrors state.
package task

import (
	"encoding/json"
	"strconv"
	"strings"
)

type Task struct {
	ID          string          `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string          `json:"name" yaml:"name"`
	Owner       string          `json:"owner" yaml:"owner"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Skill       string          `json:"skill,omitempty" yaml:"skill,omitempty"`
	Priority    Priority        `json:"priority,omitempty" yaml:"priority,omitempty"`
	Trigger     Trigger         `json:"trigger" yaml:"trigger"`
	Schedule    *Schedule       `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	State       State           `json:"state" yaml:"state"`
	Metadata    json.RawMessage `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	LastRunAt   *WireTime       `json:"last_run_datetime,omitempty" yaml:"last_run_datetime,omitempty"`
}

func (t Task) Key() string {
	return t.ID
}

// Priority is a fixed display-grouping enumeration. It does not order
// scheduling; the backend runs tasks by its own rules.
type Priority string

const (
	PriorityNone   Priority = "none"
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority normalizes a priority token. Older records carry label
// aliases (ASAP/Urgent/High/mid/low) and numeric levels 0..4; both decode
// onto the canonical enumeration. Unknown tokens fall back to none.
func ParsePriority(s string) Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "0":
		return PriorityNone
	case "low", "1":
		return PriorityLow
	case "medium", "mid", "2":
		return PriorityMedium
	case "high", "3":
		return PriorityHigh
	case "urgent", "asap", "4":
		return PriorityUrgent
	default:
		return PriorityNone
	}
}

func (p *Priority) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = ParsePriority(s)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*p = ParsePriority(strconv.Itoa(n))
		return nil
	}
	*p = PriorityNone
	return nil
}

// Trigger is the class of external event that makes a task runnable.
type Trigger string

const (
	TriggerSchedule     Trigger = "schedule"
	TriggerHumanChat    Trigger = "human_chat"
	TriggerAgentMessage Trigger = "agent_message"
	TriggerChatQueue    Trigger = "chat_queue"
	TriggerA2AQueue     Trigger = "a2a_queue"
	TriggerManual       Trigger = "manual"
	TriggerInteraction  Trigger = "interaction"
	TriggerMessage      Trigger = "message"
)

func (t Trigger) Valid() bool {
	switch t {
	case TriggerSchedule, TriggerHumanChat, TriggerAgentMessage, TriggerChatQueue,
		TriggerA2AQueue, TriggerManual, TriggerInteraction, TriggerMessage:
		return true
	}
	return false
}
