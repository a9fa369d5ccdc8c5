package task

import (
	"errors"
	"fmt"
)

// Reason codes are stable identifiers callers can branch on without
// string-matching messages.
const (
	ReasonMissingName         = "MISSING_NAME"
	ReasonInvalidTrigger      = "INVALID_TRIGGER"
	ReasonInvalidMetadataJSON = "INVALID_METADATA_JSON"
	ReasonMissingSchedule     = "MISSING_SCHEDULE"
	ReasonMissingStart        = "MISSING_START"
	ReasonEndBeforeStart      = "END_BEFORE_START"
	ReasonInvalidRepeatType   = "INVALID_REPEAT_TYPE"
	ReasonInvalidRepeatNumber = "INVALID_REPEAT_NUMBER"
	ReasonInvalidTimeout      = "INVALID_TIMEOUT"
)

type ValidationError struct {
	Reason string
	Field  string
	Msg    string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// ReasonOf returns the reason code of a validation error, or "" for any
// other error.
func ReasonOf(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Reason
	}
	return ""
}
