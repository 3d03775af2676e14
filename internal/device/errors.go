package device

import (
	"errors"
	"fmt"
)

// ErrNoDeviceAvailable signals that the registry could neither find a free
// device matching the query nor create a new one. Callers may retry with a
// different query or fail their run with the message; it is never fatal to
// the registry itself.
var ErrNoDeviceAvailable = errors.New("no device available for query")

// PreconditionError reports a lifecycle operation invoked in a state that
// does not permit it. This is an integration bug in the caller, not a device
// failure, and is never retried internally.
type PreconditionError struct {
	DeviceID string
	Op       string
	State    State
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("device %s: %s not allowed in state %q", e.DeviceID, e.Op, e.State)
}

// BackendError wraps a failure reported by the control backend with enough
// context to diagnose which device and operation failed.
type BackendError struct {
	DeviceID string
	Op       string
	Err      error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("device %s: %s failed: %v", e.DeviceID, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func backendErr(deviceID, op string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{DeviceID: deviceID, Op: op, Err: err}
}
