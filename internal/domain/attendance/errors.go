package attendance

import "errors"

// Attendance ledger errors
var (
	ErrUnknownPresenceState = errors.New("unknown attendance presence state")
	ErrDuplicateAttendance  = errors.New("more than one attendance record for the same date")
)
