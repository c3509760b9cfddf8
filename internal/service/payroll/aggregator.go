package payroll

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

// Aggregator reduces a month of attendance ledger rows to payable counts.
type Aggregator struct {
	ledger attendance.Ledger
	policy payroll.Policy
}

func NewAggregator(ledger attendance.Ledger, policy payroll.Policy) *Aggregator {
	return &Aggregator{ledger: ledger, policy: policy}
}

func (a *Aggregator) Aggregate(ctx context.Context, employeeID string, period payroll.Period) (payroll.AttendanceSummary, error) {
	if a.policy.WorkingDays(period) == 0 {
		return payroll.AttendanceSummary{}, fmt.Errorf("%w: %s", payroll.ErrNoWorkingDaysInMonth, period)
	}

	rows, err := a.ledger.GetAttendance(ctx, employeeID, period.Start(), period.End())
	if err != nil {
		return payroll.AttendanceSummary{}, fmt.Errorf("failed to get attendance: %w", err)
	}

	return Summarize(employeeID, period, a.policy, rows)
}

// Summarize is the pure reduction behind Aggregate.
func Summarize(employeeID string, period payroll.Period, policy payroll.Policy, rows []attendance.AttendanceRecord) (payroll.AttendanceSummary, error) {
	summary := payroll.AttendanceSummary{
		EmployeeID:    employeeID,
		WorkingDays:   policy.WorkingDays(period),
		PresentDays:   decimal.Zero,
		TotalHours:    decimal.Zero,
		OvertimeHours: decimal.Zero,
	}
	if summary.WorkingDays == 0 {
		return payroll.AttendanceSummary{}, fmt.Errorf("%w: %s", payroll.ErrNoWorkingDaysInMonth, period)
	}

	seen := make(map[string]bool, len(rows))
	coveredWorkingDays := 0
	for _, row := range rows {
		if !period.Contains(row.Date) {
			continue
		}
		if _, err := attendance.ParsePresenceState(string(row.PresenceState)); err != nil {
			return payroll.AttendanceSummary{}, err
		}
		key := row.Date.Format("2006-01-02")
		if seen[key] {
			return payroll.AttendanceSummary{}, fmt.Errorf("%w: employee %s on %s", attendance.ErrDuplicateAttendance, employeeID, key)
		}
		seen[key] = true

		if row.IsLate {
			summary.LateDays++
		}
		if row.PresenceState.CountsHours() {
			summary.TotalHours = summary.TotalHours.Add(row.Hours())
		}
		if !policy.IsWorkingDay(row.Date) {
			continue
		}

		coveredWorkingDays++
		summary.PresentDays = summary.PresentDays.Add(policy.PresenceWeight(row.PresenceState))
		switch row.PresenceState {
		case attendance.PresenceStatePresent:
			summary.FullPresentDays++
		case attendance.PresenceStateAbsent:
			summary.AbsentDays++
		}
	}

	if len(seen) == 0 {
		return payroll.AttendanceSummary{}, fmt.Errorf("%w: employee %s, %s", payroll.ErrNoAttendanceData, employeeID, period)
	}

	// Working days with no ledger row count as absent.
	summary.AbsentDays += summary.WorkingDays - coveredWorkingDays

	baseline := decimal.NewFromInt(int64(summary.FullPresentDays)).Mul(policy.StandardDailyHours)
	if summary.TotalHours.GreaterThan(baseline) {
		summary.OvertimeHours = summary.TotalHours.Sub(baseline)
	}

	return summary, nil
}
