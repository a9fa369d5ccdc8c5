package task

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSubmitPayload_RejectsMalformedMetadata(t *testing.T) {
	_, _, err := BuildSubmitPayload(Task{
		Name:     "inspect depot",
		Trigger:  TriggerManual,
		Metadata: json.RawMessage(`{not json`),
	})
	require.Error(t, err)
	assert.Equal(t, ReasonInvalidMetadataJSON, ReasonOf(err))
}

func TestBuildSubmitPayload_RejectsNonObjectMetadata(t *testing.T) {
	_, _, err := BuildSubmitPayload(Task{
		Name:     "inspect depot",
		Trigger:  TriggerManual,
		Metadata: json.RawMessage(`[1,2,3]`),
	})
	require.Error(t, err)
	assert.Equal(t, ReasonInvalidMetadataJSON, ReasonOf(err))
}

func TestBuildSubmitPayload_RequiresNameAndKnownTrigger(t *testing.T) {
	_, _, err := BuildSubmitPayload(Task{Trigger: TriggerManual})
	require.Error(t, err)
	assert.Equal(t, ReasonMissingName, ReasonOf(err))

	_, _, err = BuildSubmitPayload(Task{Name: "x", Trigger: Trigger("telepathy")})
	require.Error(t, err)
	assert.Equal(t, ReasonInvalidTrigger, ReasonOf(err))
}

func TestBuildSubmitPayload_RequiresScheduleForScheduleTrigger(t *testing.T) {
	_, _, err := BuildSubmitPayload(Task{
		Name:    "patrol",
		Trigger: TriggerSchedule,
	})
	require.Error(t, err)
	assert.Equal(t, ReasonMissingSchedule, ReasonOf(err))

	// A manual task without a schedule is fine.
	p, _, err := BuildSubmitPayload(Task{Name: "patrol", Trigger: TriggerManual})
	require.NoError(t, err)
	assert.Nil(t, p.Schedule)
}

func TestBuildSubmitPayload_ValidatesScheduleOnlyForScheduleTrigger(t *testing.T) {
	// An invalid schedule on a schedule-triggered task blocks submission.
	_, _, err := BuildSubmitPayload(Task{
		Name:     "patrol",
		Trigger:  TriggerSchedule,
		Schedule: &Schedule{RepeatType: RepeatByHours, RepeatNumber: 0, StartDateTime: wt(t, "2026-01-01 00:00:00")},
	})
	require.Error(t, err)
	assert.Equal(t, ReasonInvalidRepeatNumber, ReasonOf(err))

	// The same schedule on a manual task rides along untouched.
	p, warnings, err := BuildSubmitPayload(Task{
		Name:     "patrol",
		Trigger:  TriggerManual,
		Schedule: &Schedule{RepeatType: RepeatByHours, RepeatNumber: 0, StartDateTime: wt(t, "2026-01-01 00:00:00")},
	})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.NotNil(t, p.Schedule)
	assert.Equal(t, 0, p.Schedule.RepeatNumber)
}

func TestBuildSubmitPayload_WireDefaults(t *testing.T) {
	p, warnings, err := BuildSubmitPayload(Task{
		Name:    "patrol",
		Trigger: TriggerSchedule,
		Schedule: &Schedule{
			RepeatType:    RepeatByDays,
			RepeatNumber:  2,
			StartDateTime: wt(t, "2026-01-01 09:00:00"),
		},
	})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.NotNil(t, p.Schedule)
	assert.Equal(t, "2026-01-01 09:00:00:000000", p.Schedule.StartDateTime)
	assert.Equal(t, "none", p.Schedule.EndDateTime)
	assert.Equal(t, "day", p.Schedule.RepeatUnit)
	assert.Equal(t, DefaultTimeout, p.Schedule.TimeOut)
}

func TestParsePriority_LegacyAliases(t *testing.T) {
	assert.Equal(t, PriorityUrgent, ParsePriority("ASAP"))
	assert.Equal(t, PriorityMedium, ParsePriority("mid"))
	assert.Equal(t, PriorityHigh, ParsePriority("3"))
	assert.Equal(t, PriorityLow, ParsePriority("low"))
	assert.Equal(t, PriorityNone, ParsePriority("whenever"))
}

func TestPriority_UnmarshalAcceptsStringOrNumber(t *testing.T) {
	var p Priority
	require.NoError(t, json.Unmarshal([]byte(`"Urgent"`), &p))
	assert.Equal(t, PriorityUrgent, p)

	require.NoError(t, json.Unmarshal([]byte(`2`), &p))
	assert.Equal(t, PriorityMedium, p)
}
