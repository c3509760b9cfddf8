package payroll

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
)

var (
	ErrPayrollRecordNotFound      = errors.New("payroll record not found")
	ErrMissingCompensationProfile = errors.New("compensation profile not found")
	ErrNoAttendanceData           = errors.New("no attendance data for the period")
	ErrNoWorkingDaysInMonth       = errors.New("period has no working days")
	ErrInvalidStateTransition     = errors.New("invalid payroll state transition")
	ErrDuplicateCalculation       = errors.New("payroll already approved or paid for this period")
	ErrPersistenceConflict        = errors.New("payroll record was modified concurrently")
	ErrBatchInProgress            = errors.New("a payroll run for this period is already in progress")
	ErrInvalidPeriod              = errors.New("invalid payroll period")
)

// StateTransitionError is returned when a record is not in a state that
// allows the requested transition.
type StateTransitionError struct {
	RecordID string
	From     PayrollStatus
	To       PayrollStatus
	Required []PayrollStatus
}

func (e *StateTransitionError) Error() string {
	if len(e.Required) == 0 {
		return fmt.Sprintf("cannot move payroll record %s from %s to %s: %s is not reachable by transition",
			e.RecordID, e.From, e.To, e.To)
	}
	required := make([]string, 0, len(e.Required))
	for _, s := range e.Required {
		required = append(required, string(s))
	}
	return fmt.Sprintf("cannot move payroll record %s from %s to %s: status must be %s",
		e.RecordID, e.From, e.To, strings.Join(required, " or "))
}

func (e *StateTransitionError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}

// DuplicateCalculationError is returned by calculate when the live record for
// the period is already approved or paid.
type DuplicateCalculationError struct {
	RecordID string
	Status   PayrollStatus
}

func (e *DuplicateCalculationError) Error() string {
	return fmt.Sprintf("payroll record %s is %s: cancel it before recalculating (status must be %s)",
		e.RecordID, e.Status, PayrollStatusCalculated)
}

func (e *DuplicateCalculationError) Is(target error) bool {
	return target == ErrDuplicateCalculation || target == ErrInvalidStateTransition
}

// ErrorCode maps an engine error to the stable code used in API and batch results.
func ErrorCode(err error) string {
	var validationErrs validator.ValidationErrors
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validationErrs):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrMissingCompensationProfile):
		return "MISSING_COMPENSATION_PROFILE"
	case errors.Is(err, ErrNoAttendanceData):
		return "NO_ATTENDANCE_DATA"
	case errors.Is(err, ErrNoWorkingDaysInMonth):
		return "NO_WORKING_DAYS_IN_MONTH"
	case errors.Is(err, ErrDuplicateCalculation):
		return "DUPLICATE_CALCULATION"
	case errors.Is(err, ErrInvalidStateTransition):
		return "INVALID_STATE_TRANSITION"
	case errors.Is(err, ErrPersistenceConflict):
		return "PERSISTENCE_CONFLICT"
	case errors.Is(err, ErrPayrollRecordNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrBatchInProgress):
		return "BATCH_IN_PROGRESS"
	case errors.Is(err, ErrInvalidPeriod):
		return "INVALID_PERIOD"
	case errors.Is(err, attendance.ErrUnknownPresenceState), errors.Is(err, attendance.ErrDuplicateAttendance):
		return "INVALID_ATTENDANCE_DATA"
	default:
		return "INTERNAL_ERROR"
	}
}
