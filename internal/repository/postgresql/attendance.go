package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/google/uuid"
)

type attendanceRepositoryImpl struct {
	db *database.DB
}

func NewAttendanceRepository(db *database.DB) attendance.Ledger {
	return &attendanceRepositoryImpl{db: db}
}

// GetAttendance implements attendance.Ledger. Stored states outside the
// canonical set fail with attendance.ErrUnknownPresenceState.
func (r *attendanceRepositoryImpl) GetAttendance(ctx context.Context, employeeID string, from, to time.Time) ([]attendance.AttendanceRecord, error) {
	if _, err := uuid.Parse(employeeID); err != nil {
		return nil, nil
	}

	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, employee_id, date, status, clock_in, clock_out, worked_hours, is_late
		FROM attendances
		WHERE employee_id = $1 AND date >= $2 AND date < $3
		ORDER BY date ASC, id ASC
	`

	rows, err := q.Query(ctx, query, employeeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get attendances: %w", err)
	}
	defer rows.Close()

	var records []attendance.AttendanceRecord
	for rows.Next() {
		var (
			rec    attendance.AttendanceRecord
			status string
		)
		if err := rows.Scan(
			&rec.ID, &rec.EmployeeID, &rec.Date, &status,
			&rec.CheckIn, &rec.CheckOut, &rec.WorkedHours, &rec.IsLate,
		); err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}

		state, err := attendance.ParsePresenceState(status)
		if err != nil {
			return nil, fmt.Errorf("attendance %s on %s: %w", rec.ID, rec.Date.Format("2006-01-02"), err)
		}
		rec.PresenceState = state
		records = append(records, rec)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}
