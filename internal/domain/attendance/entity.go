package attendance

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PresenceState is the canonical day state of an attendance ledger row.
type PresenceState string

const (
	PresenceStatePresent     PresenceState = "present"
	PresenceStateAbsent      PresenceState = "absent"
	PresenceStateHalfDay     PresenceState = "half_day"
	PresenceStateSickLeave   PresenceState = "sick_leave"
	PresenceStateCasualLeave PresenceState = "casual_leave"
)

// PresenceStates lists every accepted state.
var PresenceStates = []PresenceState{
	PresenceStatePresent,
	PresenceStateAbsent,
	PresenceStateHalfDay,
	PresenceStateSickLeave,
	PresenceStateCasualLeave,
}

// ParsePresenceState converts a stored value into a PresenceState.
// Legacy values such as "late" or "holiday" are rejected.
func ParsePresenceState(s string) (PresenceState, error) {
	switch PresenceState(s) {
	case PresenceStatePresent, PresenceStateAbsent, PresenceStateHalfDay,
		PresenceStateSickLeave, PresenceStateCasualLeave:
		return PresenceState(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPresenceState, s)
	}
}

// CountsHours reports whether worked hours on this state are paid time.
func (s PresenceState) CountsHours() bool {
	return s == PresenceStatePresent || s == PresenceStateHalfDay
}

// IsLeave reports whether the state is a leave day.
func (s PresenceState) IsLeave() bool {
	return s == PresenceStateSickLeave || s == PresenceStateCasualLeave
}

// AttendanceRecord is one ledger row per (employee, date).
type AttendanceRecord struct {
	ID            string
	EmployeeID    string
	Date          time.Time
	PresenceState PresenceState
	CheckIn       *time.Time
	CheckOut      *time.Time
	WorkedHours   *decimal.Decimal
	IsLate        bool
}

// Hours returns the stored worked hours, or derives them from the
// check-in/check-out pair. Missing data yields zero.
func (r AttendanceRecord) Hours() decimal.Decimal {
	if r.WorkedHours != nil {
		return *r.WorkedHours
	}
	if r.CheckIn == nil || r.CheckOut == nil || !r.CheckOut.After(*r.CheckIn) {
		return decimal.Zero
	}
	minutes := int64(r.CheckOut.Sub(*r.CheckIn) / time.Minute)
	return decimal.NewFromInt(minutes).Div(decimal.NewFromInt(60))
}
