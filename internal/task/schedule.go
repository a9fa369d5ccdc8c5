package task

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// The wire carries instants as "YYYY-MM-DD HH:MM:SS:ffffff" with a colon
// before the microseconds. The layout predates this console and cannot
// change without the backend.
const wireTimeLayout = "2006-01-02 15:04:05"

// WireTime is a time.Time that marshals in the backend's timestamp
// convention. The zero value is "unset".
type WireTime struct {
	time.Time
}

func NewWireTime(t time.Time) WireTime {
	return WireTime{Time: t}
}

func (t WireTime) String() string {
	if t.IsZero() {
		return ""
	}
	return t.Format(wireTimeLayout) + fmt.Sprintf(":%06d", t.Nanosecond()/1000)
}

// ParseWireTime parses the backend layout, tolerating a missing
// microsecond field and RFC 3339 input from newer backend builds.
func ParseWireTime(s string) (WireTime, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "none") {
		return WireTime{}, nil
	}
	if len(s) > len(wireTimeLayout) && s[len(wireTimeLayout)] == ':' {
		base, err := time.Parse(wireTimeLayout, s[:len(wireTimeLayout)])
		if err == nil {
			var micros int
			if _, err := fmt.Sscanf(s[len(wireTimeLayout)+1:], "%d", &micros); err == nil {
				return WireTime{Time: base.Add(time.Duration(micros) * time.Microsecond)}, nil
			}
		}
	}
	if parsed, err := time.Parse(wireTimeLayout, s); err == nil {
		return WireTime{Time: parsed}, nil
	}
	if parsed, err := time.Parse(time.RFC3339, s); err == nil {
		return WireTime{Time: parsed}, nil
	}
	return WireTime{}, fmt.Errorf("invalid timestamp %q", s)
}

func (t WireTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *WireTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseWireTime(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t WireTime) MarshalYAML() (any, error) {
	return t.String(), nil
}

func (t *WireTime) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseWireTime(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

type RepeatType string

const (
	RepeatNone      RepeatType = "none"
	RepeatBySeconds RepeatType = "by_seconds"
	RepeatByMinutes RepeatType = "by_minutes"
	RepeatByHours   RepeatType = "by_hours"
	RepeatByDays    RepeatType = "by_days"
	RepeatByWeeks   RepeatType = "by_weeks"
	RepeatByMonths  RepeatType = "by_months"
	RepeatByYears   RepeatType = "by_years"
)

func (r RepeatType) Valid() bool {
	switch r {
	case RepeatNone, RepeatBySeconds, RepeatByMinutes, RepeatByHours,
		RepeatByDays, RepeatByWeeks, RepeatByMonths, RepeatByYears:
		return true
	}
	return false
}

// UnitLabel is the display unit mirrored into repeat_unit.
func (r RepeatType) UnitLabel() string {
	switch r {
	case RepeatBySeconds:
		return "second"
	case RepeatByMinutes:
		return "minute"
	case RepeatByHours:
		return "hour"
	case RepeatByDays:
		return "day"
	case RepeatByWeeks:
		return "week"
	case RepeatByMonths:
		return "month"
	case RepeatByYears:
		return "year"
	default:
		return ""
	}
}

type Schedule struct {
	RepeatType    RepeatType `json:"repeat_type" yaml:"repeat_type"`
	RepeatNumber  int        `json:"repeat_number" yaml:"repeat_number"`
	RepeatUnit    string     `json:"repeat_unit" yaml:"repeat_unit"`
	StartDateTime WireTime   `json:"start_date_time" yaml:"start_date_time"`
	EndDateTime   *WireTime  `json:"end_date_time,omitempty" yaml:"end_date_time,omitempty"`
	TimeOut       int        `json:"time_out" yaml:"time_out"` // seconds
}

const (
	// DefaultTimeout is applied when a schedule is submitted without one.
	DefaultTimeout = 3600
	// MinSaneTimeout is the floor below which a timeout draws a warning.
	// The form lets operators save shorter values anyway.
	MinSaneTimeout = 60
)

// ValidateSchedule checks a schedule against the rules the backend
// enforces at submission and returns it with repeat_unit normalized from
// repeat_type. Warnings flag accepted-but-suspect values; an error blocks
// submission.
func ValidateSchedule(s Schedule) (Schedule, []string, error) {
	if s.StartDateTime.IsZero() {
		return s, nil, &ValidationError{Reason: ReasonMissingStart, Field: "start_date_time", Msg: "start_date_time is required"}
	}
	if s.EndDateTime != nil && !s.EndDateTime.IsZero() && !s.EndDateTime.After(s.StartDateTime.Time) {
		return s, nil, &ValidationError{Reason: ReasonEndBeforeStart, Field: "end_date_time", Msg: "end_date_time must be after start_date_time"}
	}
	if !s.RepeatType.Valid() {
		return s, nil, &ValidationError{Reason: ReasonInvalidRepeatType, Field: "repeat_type", Msg: fmt.Sprintf("unknown repeat_type %q", s.RepeatType)}
	}
	if s.RepeatType != RepeatNone && s.RepeatNumber < 1 {
		return s, nil, &ValidationError{Reason: ReasonInvalidRepeatNumber, Field: "repeat_number", Msg: "repeat_number must be a positive integer"}
	}
	if s.TimeOut < 0 {
		return s, nil, &ValidationError{Reason: ReasonInvalidTimeout, Field: "time_out", Msg: "time_out must be a positive integer"}
	}

	var warnings []string
	if s.TimeOut > 0 && s.TimeOut < MinSaneTimeout {
		warnings = append(warnings, fmt.Sprintf("time_out %ds is below the %ds floor", s.TimeOut, MinSaneTimeout))
	}

	s.RepeatUnit = s.RepeatType.UnitLabel()
	return s, warnings, nil
}

// NextRuntime computes the next occurrence of a schedule relative to now
// and whether the task is due. A non-repeating schedule never becomes due
// on its own; an exhausted schedule (end in the past) clamps to its end.
func NextRuntime(s Schedule, now time.Time) (time.Time, bool) {
	start := s.StartDateTime.Time
	if s.RepeatType == RepeatNone {
		return start, false
	}

	next := nextAfter(s.RepeatType, s.RepeatNumber, start, now)
	if s.EndDateTime != nil && !s.EndDateTime.IsZero() && next.After(s.EndDateTime.Time) {
		next = s.EndDateTime.Time
	}
	return next, !now.Before(next)
}

// RuntimeBounds returns the occurrence at or before now and the one after
// it, both clamped to the schedule's end.
func RuntimeBounds(s Schedule, now time.Time) (last, next time.Time) {
	start := s.StartDateTime.Time
	if s.RepeatType == RepeatNone {
		return start, start
	}

	switch s.RepeatType {
	case RepeatByMonths, RepeatByYears:
		last, next = calendarBounds(s.RepeatType, s.RepeatNumber, start, now)
	default:
		interval := fixedInterval(s.RepeatType, s.RepeatNumber)
		elapsed := now.Sub(start)
		intervals := int64(0)
		if elapsed > 0 {
			intervals = int64(elapsed / interval)
		}
		last = start.Add(interval * time.Duration(intervals))
		next = last.Add(interval)
	}

	if s.EndDateTime != nil && !s.EndDateTime.IsZero() {
		end := s.EndDateTime.Time
		if next.After(end) {
			next = end
		}
		if last.After(end) {
			last = end
		}
	}
	return last, next
}

// RepeatInterval is the schedule's period. Month and year periods use
// rough 30/365-day averages; they only feed the overdue heuristic.
func RepeatInterval(s Schedule) time.Duration {
	n := time.Duration(clampRepeat(s.RepeatNumber))
	switch s.RepeatType {
	case RepeatBySeconds:
		return n * time.Second
	case RepeatByMinutes:
		return n * time.Minute
	case RepeatByHours:
		return n * time.Hour
	case RepeatByDays:
		return n * 24 * time.Hour
	case RepeatByWeeks:
		return n * 7 * 24 * time.Hour
	case RepeatByMonths:
		return n * 30 * 24 * time.Hour
	case RepeatByYears:
		return n * 365 * 24 * time.Hour
	default:
		return 0
	}
}

// clampRepeat floors the repeat count at one. Validation rejects smaller
// counts on submission, but decoded backend records and hand-edited data
// files bypass it and must never zero an interval.
func clampRepeat(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func fixedInterval(r RepeatType, n int) time.Duration {
	n = clampRepeat(n)
	switch r {
	case RepeatBySeconds:
		return time.Duration(n) * time.Second
	case RepeatByMinutes:
		return time.Duration(n) * time.Minute
	case RepeatByHours:
		return time.Duration(n) * time.Hour
	case RepeatByDays:
		return time.Duration(n) * 24 * time.Hour
	default: // RepeatByWeeks
		return time.Duration(n) * 7 * 24 * time.Hour
	}
}

func nextAfter(r RepeatType, n int, start, now time.Time) time.Time {
	n = clampRepeat(n)
	switch r {
	case RepeatByMonths:
		next := start
		for !next.After(now) {
			next = addMonths(next, n)
		}
		return next
	case RepeatByYears:
		next := start
		for !next.After(now) {
			next = addYears(next, n)
		}
		return next
	default:
		if start.After(now) {
			return start
		}
		interval := fixedInterval(r, n)
		intervals := int64(now.Sub(start) / interval)
		return start.Add(interval * time.Duration(intervals+1))
	}
}

func calendarBounds(r RepeatType, n int, start, now time.Time) (last, next time.Time) {
	n = clampRepeat(n)
	step := func(t time.Time) time.Time {
		if r == RepeatByMonths {
			return addMonths(t, n)
		}
		return addYears(t, n)
	}
	last = start
	for !last.After(now) {
		future := step(last)
		if future.After(now) {
			return last, future
		}
		last = future
	}
	return last, step(last)
}

// addMonths adds calendar months, clamping the day to the target month's
// length (Jan 31 + 1 month = Feb 28/29).
func addMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	m := int(month) - 1 + months
	year += m / 12
	month = time.Month(m%12 + 1)
	if d := daysIn(year, month); day > d {
		day = d
	}
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// addYears adds calendar years, clamping Feb 29 to Feb 28 off leap years.
func addYears(t time.Time, years int) time.Time {
	year := t.Year() + years
	month, day := t.Month(), t.Day()
	if month == time.February && day == 29 && daysIn(year, time.February) == 28 {
		day = 28
	}
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// NextDue picks the most overdue schedule-triggered task that should run
// now, or nil. A task counts as runnable when its occurrence has passed
// and at least half a period elapsed since its last recorded run, which
// keeps a just-run task from immediately retriggering.
func NextDue(tasks []Task, now time.Time) *Task {
	var (
		pick    *Task
		overdue time.Duration
	)
	for i := range tasks {
		t := &tasks[i]
		if t.Trigger != TriggerSchedule || t.Schedule == nil || t.Schedule.RepeatType == RepeatNone {
			continue
		}
		last, _ := RuntimeBounds(*t.Schedule, now)
		if now.Before(last) {
			continue
		}
		if t.LastRunAt != nil && !t.LastRunAt.IsZero() {
			if now.Sub(t.LastRunAt.Time) <= RepeatInterval(*t.Schedule)/2 {
				continue
			}
		}
		if d := now.Sub(last); pick == nil || d > overdue {
			pick, overdue = t, d
		}
	}
	return pick
}
