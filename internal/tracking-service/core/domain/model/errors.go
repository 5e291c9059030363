package model

import "errors"

var (
	ErrAuthorization          = errors.New("identity is not authorized")
	ErrNotTracking            = errors.New("location tracking is not enabled")
	ErrInvalidCoordinate      = errors.New("coordinate out of range")
	ErrInvalidStateTransition = errors.New("invalid tracking state transition")
	ErrPersistence            = errors.New("history persistence failed")
	ErrVehicleNotFound        = errors.New("vehicle not found")
	ErrSessionNotFound        = errors.New("session not found")
)

// Error codes sent to clients.
const (
	CodeAuthorization          = "AUTHORIZATION"
	CodeNotTracking            = "NOT_TRACKING"
	CodeInvalidCoordinate      = "INVALID_COORDINATE"
	CodeInvalidStateTransition = "INVALID_STATE_TRANSITION"
	CodeVehicleNotFound        = "VEHICLE_NOT_FOUND"
	CodeBadRequest             = "BAD_REQUEST"
	CodeInternal               = "INTERNAL"
)

// ErrorCode maps err onto the code reported to the client.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrAuthorization), errors.Is(err, ErrSessionNotFound):
		return CodeAuthorization
	case errors.Is(err, ErrNotTracking):
		return CodeNotTracking
	case errors.Is(err, ErrInvalidCoordinate):
		return CodeInvalidCoordinate
	case errors.Is(err, ErrInvalidStateTransition):
		return CodeInvalidStateTransition
	case errors.Is(err, ErrVehicleNotFound):
		return CodeVehicleNotFound
	}
	return CodeInternal
}
