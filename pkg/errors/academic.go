package errors

import (
	"fmt"
	"net/http"
)

// Enrollment violation templates. Use the constructors below to attach details.
var (
	ErrEnrollmentClosed       = New("ENROLLMENT_CLOSED", http.StatusUnprocessableEntity, "enrollment period is closed")
	ErrRegistrationLocked     = New("REGISTRATION_LOCKED", http.StatusConflict, "registration can no longer be edited")
	ErrClassFull              = New("CLASS_FULL", http.StatusUnprocessableEntity, "class is full")
	ErrDuplicateCourse        = New("DUPLICATE_COURSE", http.StatusUnprocessableEntity, "course already registered")
	ErrSksLimitExceeded       = New("SKS_LIMIT_EXCEEDED", http.StatusUnprocessableEntity, "credit limit exceeded")
	ErrScheduleConflict       = New("SCHEDULE_CONFLICT", http.StatusUnprocessableEntity, "schedule conflict")
	ErrPrerequisiteNotMet     = New("PREREQUISITE_NOT_MET", http.StatusUnprocessableEntity, "prerequisite not met")
	ErrRegistrationEmpty      = New("REGISTRATION_EMPTY", http.StatusUnprocessableEntity, "registration has no courses")
	ErrInvalidStateTransition = New("INVALID_STATE_TRANSITION", http.StatusConflict, "invalid registration state transition")
	ErrTransactionConflict    = New("TRANSACTION_CONFLICT", http.StatusConflict, "concurrent update detected, retry the request")
	ErrNoActivePeriod         = New("NO_ACTIVE_PERIOD", http.StatusPreconditionFailed, "no active academic period")
)

// EnrollmentClosed is returned when neither the regular nor the late window is open.
func EnrollmentClosed() *Error {
	return Clone(ErrEnrollmentClosed, "")
}

// RegistrationLocked is returned when the registration is not in draft.
func RegistrationLocked(status string) *Error {
	return WithDetails(ErrRegistrationLocked,
		fmt.Sprintf("registration with status %s can no longer be edited", status),
		map[string]interface{}{"status": status})
}

// ClassFull is returned when the section has reached capacity.
func ClassFull(course string, capacity int) *Error {
	return WithDetails(ErrClassFull,
		fmt.Sprintf("class %s is full (capacity %d)", course, capacity),
		map[string]interface{}{"course": course, "capacity": capacity})
}

// DuplicateCourse is returned when a section of the same course is already registered.
func DuplicateCourse(course string) *Error {
	return WithDetails(ErrDuplicateCourse,
		fmt.Sprintf("course %s is already in the registration", course),
		map[string]interface{}{"course": course})
}

// SksLimitExceeded is returned when adding credits would pass the ceiling.
func SksLimitExceeded(current, max, adding int) *Error {
	return WithDetails(ErrSksLimitExceeded,
		fmt.Sprintf("adding %d credits to %d exceeds the limit of %d", adding, current, max),
		map[string]interface{}{"current": current, "max": max, "adding": adding})
}

// ScheduleConflict is returned when two sections meet at overlapping times.
func ScheduleConflict(course1, course2, at string) *Error {
	return WithDetails(ErrScheduleConflict,
		fmt.Sprintf("%s conflicts with %s on %s", course1, course2, at),
		map[string]interface{}{"course1": course1, "course2": course2, "time": at})
}

// PrerequisiteNotMet is returned when the prerequisite course has no passing grade.
func PrerequisiteNotMet(course, prerequisite string) *Error {
	return WithDetails(ErrPrerequisiteNotMet,
		fmt.Sprintf("%s requires %s to be passed first", course, prerequisite),
		map[string]interface{}{"course": course, "prerequisite": prerequisite})
}

// RegistrationEmpty is returned when submitting a registration without lines.
func RegistrationEmpty() *Error {
	return Clone(ErrRegistrationEmpty, "")
}

// NotFound describes a missing entity.
func NotFound(entity, id string) *Error {
	return WithDetails(ErrNotFound,
		fmt.Sprintf("%s not found", entity),
		map[string]interface{}{"entity": entity, "id": id})
}

// InvalidStateTransition is returned for transitions outside the lifecycle table.
func InvalidStateTransition(from, to string) *Error {
	return WithDetails(ErrInvalidStateTransition,
		fmt.Sprintf("cannot move registration from %s to %s", from, to),
		map[string]interface{}{"from": from, "to": to})
}

// TransactionConflict signals the caller may retry the whole operation.
func TransactionConflict(err error) *Error {
	clone := Clone(ErrTransactionConflict, "")
	clone.Err = err
	return clone
}
