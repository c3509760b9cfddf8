package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/auth"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	code := payroll.ErrorCode(err)

	switch {
	// Auth errors
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingActor):
		Unauthorized(w, err.Error())
	case errors.Is(err, auth.ErrInsufficientRole):
		Forbidden(w, err.Error())

	// Payroll domain errors
	case errors.Is(err, payroll.ErrPayrollRecordNotFound):
		NotFound(w, "Payroll record not found")
	case errors.Is(err, payroll.ErrMissingCompensationProfile):
		Error(w, http.StatusNotFound, code, err.Error(), nil)
	case errors.Is(err, payroll.ErrDuplicateCalculation),
		errors.Is(err, payroll.ErrInvalidStateTransition),
		errors.Is(err, payroll.ErrPersistenceConflict),
		errors.Is(err, payroll.ErrBatchInProgress):
		Error(w, http.StatusConflict, code, err.Error(), nil)
	case errors.Is(err, payroll.ErrNoWorkingDaysInMonth),
		errors.Is(err, payroll.ErrNoAttendanceData),
		errors.Is(err, attendance.ErrUnknownPresenceState),
		errors.Is(err, attendance.ErrDuplicateAttendance):
		Error(w, http.StatusUnprocessableEntity, code, err.Error(), nil)
	case errors.Is(err, payroll.ErrInvalidPeriod):
		Error(w, http.StatusBadRequest, code, err.Error(), nil)

	// Default
	default:
		slog.Error("unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
