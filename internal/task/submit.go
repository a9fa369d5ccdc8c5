package task

import (
	"encoding/json"
	"fmt"
)

// SubmitSchedule is the schedule shape the backend expects on newTasks
// and saveTasks calls. Timestamps go out as wire strings and an absent
// end becomes the literal "none".
type SubmitSchedule struct {
	RepeatType    string `json:"repeat_type"`
	RepeatNumber  int    `json:"repeat_number"`
	RepeatUnit    string `json:"repeat_unit"`
	StartDateTime string `json:"start_date_time"`
	EndDateTime   string `json:"end_date_time"`
	TimeOut       int    `json:"time_out"`
}

type SubmitPayload struct {
	ID          string          `json:"id,omitempty"`
	Name        string          `json:"name"`
	Owner       string          `json:"owner"`
	Description string          `json:"description"`
	Skill       string          `json:"skill"`
	Priority    string          `json:"priority"`
	Trigger     string          `json:"trigger"`
	Schedule    *SubmitSchedule `json:"schedule,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// BuildSubmitPayload validates a task and shapes it for submission.
// A schedule trigger must carry a schedule and gets it validated; other
// triggers carry whatever schedule they hold through unchanged.
func BuildSubmitPayload(t Task) (*SubmitPayload, []string, error) {
	if t.Name == "" {
		return nil, nil, &ValidationError{Reason: ReasonMissingName, Field: "name", Msg: "name is required"}
	}
	if !t.Trigger.Valid() {
		return nil, nil, &ValidationError{Reason: ReasonInvalidTrigger, Field: "trigger", Msg: fmt.Sprintf("unknown trigger %q", t.Trigger)}
	}
	if len(t.Metadata) > 0 {
		var obj map[string]any
		if err := json.Unmarshal(t.Metadata, &obj); err != nil {
			return nil, nil, &ValidationError{Reason: ReasonInvalidMetadataJSON, Field: "metadata", Msg: "metadata must be a JSON object"}
		}
	}
	if t.Trigger == TriggerSchedule && t.Schedule == nil {
		return nil, nil, &ValidationError{Reason: ReasonMissingSchedule, Field: "schedule", Msg: "a schedule trigger requires a schedule"}
	}

	p := &SubmitPayload{
		ID:          t.ID,
		Name:        t.Name,
		Owner:       t.Owner,
		Description: t.Description,
		Skill:       t.Skill,
		Priority:    string(t.Priority),
		Trigger:     string(t.Trigger),
		Metadata:    t.Metadata,
	}

	var warnings []string
	if t.Schedule != nil {
		sched := *t.Schedule
		if t.Trigger == TriggerSchedule {
			var err error
			sched, warnings, err = ValidateSchedule(sched)
			if err != nil {
				return nil, nil, err
			}
		}
		p.Schedule = buildSubmitSchedule(sched)
	}
	return p, warnings, nil
}

func buildSubmitSchedule(s Schedule) *SubmitSchedule {
	out := &SubmitSchedule{
		RepeatType:    string(s.RepeatType),
		RepeatNumber:  s.RepeatNumber,
		RepeatUnit:    s.RepeatUnit,
		StartDateTime: s.StartDateTime.String(),
		EndDateTime:   "none",
		TimeOut:       s.TimeOut,
	}
	if s.EndDateTime != nil && !s.EndDateTime.IsZero() {
		out.EndDateTime = s.EndDateTime.String()
	}
	if out.RepeatUnit == "" {
		out.RepeatUnit = "hour"
	}
	if out.TimeOut == 0 {
		out.TimeOut = DefaultTimeout
	}
	return out
}
