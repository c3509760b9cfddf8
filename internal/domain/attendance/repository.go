package attendance

import (
	"context"
	"time"
)

// Ledger is the read-only view of captured attendance.
type Ledger interface {
	// GetAttendance returns the employee's rows with from <= date < to, ordered by date.
	// An empty slice is not an error.
	GetAttendance(ctx context.Context, employeeID string, from, to time.Time) ([]AttendanceRecord, error)
}
