// Package transport defines the port through which the console core talks
// to the backend. Every backend interaction is a named operation invoked
// with JSON params and answered with a {success, data, error} envelope;
// the core never sees the wire beneath it.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fleetdeck/fleetdeck/pkg/cerr"
)

// Operation names understood by the backend. The set is backend-defined
// and open-ended; these are the ones the core invokes.
const (
	OpGetTasks            = "getTasks"
	OpNewTasks            = "newTasks"
	OpSaveTasks           = "saveTasks"
	OpRunTask             = "runTask"
	OpPauseTask           = "pauseTask"
	OpCancelTask          = "cancelTask"
	OpGetVehicles         = "getVehicles"
	OpUpdateVehicleStatus = "updateVehicleStatus"
	OpGetTools            = "getTools"
	OpGetProviders        = "getProviders"
	OpSaveProvider        = "saveProvider"
	OpDeleteProvider      = "deleteProvider"
	OpTestProvider        = "testProvider"
)

// APIError is the backend's error shape inside a response envelope.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Envelope is the response wrapper every operation answers with.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *APIError       `json:"error,omitempty"`
}

// Port is the request/response call into the backend. Implementations own
// cancellation and timeouts; callers suspend on ctx.
type Port interface {
	Invoke(ctx context.Context, operation string, params any) (json.RawMessage, error)
}

// RejectionError reports a completed round trip that the backend answered
// with success=false. It is distinct from a transport failure: the backend
// was reached and said no, and its code is available for branching (e.g.
// a provider's "not configured").
type RejectionError struct {
	Operation string
	Code      string
	Message   string
}

func (e *RejectionError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%s rejected: %s", e.Operation, e.Message)
	}
	return fmt.Sprintf("%s rejected [%s]: %s", e.Operation, e.Code, e.Message)
}

// AsRejection unwraps err into a *RejectionError if the backend rejected
// the operation, as opposed to the transport failing.
func AsRejection(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// DecodeEnvelope applies the envelope contract shared by all Port
// implementations: success yields data, failure yields a RejectionError.
func DecodeEnvelope(operation string, env *Envelope) (json.RawMessage, error) {
	if env.Success {
		return env.Data, nil
	}
	rej := &RejectionError{Operation: operation}
	if env.Error != nil {
		rej.Code = env.Error.Code
		rej.Message = env.Error.Message
	}
	if rej.Message == "" {
		rej.Message = "backend reported failure without detail"
	}
	return nil, rej
}

// CodeOf classifies an invoke error onto a cerr code: rejections map
// through their backend code string, everything else counts as the
// transport being unavailable.
func CodeOf(err error) cerr.Code {
	if err == nil {
		return cerr.OK
	}
	if rej, ok := AsRejection(err); ok {
		return cerr.ParseCode(rej.Code)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return cerr.DeadlineExceeded
	}
	if errors.Is(err, context.Canceled) {
		return cerr.Canceled
	}
	return cerr.Unavailable
}
