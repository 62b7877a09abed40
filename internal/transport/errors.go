package transport

import (
	"errors"
	"fmt"
)

// ErrUndecodedReply means the server accepted the message but its reply
// body could not be decoded. The message itself was delivered.
var ErrUndecodedReply = errors.New("reply not decoded")

// TransportError means the request never reached the server or the
// response could not be read.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServiceError is a non-success response. Detail is the server's
// explanation when it sent one.
type ServiceError struct {
	Op     string
	Status int
	Detail string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: server error %d: %s", e.Op, e.Status, e.Detail)
}

// PreconditionError is raised client-side before any request is sent.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

// IsNetwork reports whether err is a TransportError.
func IsNetwork(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Describe renders err as the short text shown in chat notices.
func Describe(err error) string {
	var (
		te *TransportError
		se *ServiceError
		pe *PreconditionError
	)
	switch {
	case errors.As(err, &se):
		return "Server error: " + se.Detail
	case errors.As(err, &te):
		return "Network error: " + te.Err.Error()
	case errors.As(err, &pe):
		return pe.Reason
	case err == nil:
		return ""
	default:
		return err.Error()
	}
}
