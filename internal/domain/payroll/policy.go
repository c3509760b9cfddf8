package payroll

import (
	"errors"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/attendance"
	"github.com/shopspring/decimal"
)

// Policy carries the pay rules and calendar used by a calculation.
type Policy struct {
	WeekendDays []time.Weekday
	Holidays    []time.Time

	HalfDayWeight decimal.Decimal
	LeaveCredit   bool

	StandardDailyHours   decimal.Decimal
	OvertimeMultiplier   decimal.Decimal
	HouseAllowanceRate   decimal.Decimal
	MedicalAllowanceRate decimal.Decimal
	ProvidentFundRate    decimal.Decimal
	TransportAllowance   decimal.Decimal
	LatePenalty          decimal.Decimal

	RejectNegativeNet bool
}

// DefaultPolicy returns Saturday/Sunday weekends and the standard rates.
func DefaultPolicy() Policy {
	return Policy{
		WeekendDays:          []time.Weekday{time.Saturday, time.Sunday},
		HalfDayWeight:        decimal.NewFromFloat(0.5),
		StandardDailyHours:   decimal.NewFromInt(8),
		OvertimeMultiplier:   decimal.NewFromFloat(1.5),
		HouseAllowanceRate:   decimal.NewFromFloat(0.40),
		MedicalAllowanceRate: decimal.NewFromFloat(0.10),
		ProvidentFundRate:    decimal.NewFromFloat(0.08),
		TransportAllowance:   decimal.Zero,
		LatePenalty:          decimal.Zero,
	}
}

func (p Policy) Validate() error {
	switch {
	case p.HalfDayWeight.IsNegative() || p.HalfDayWeight.GreaterThan(decimal.NewFromInt(1)):
		return errors.New("half day weight must be between 0 and 1")
	case !p.StandardDailyHours.IsPositive():
		return errors.New("standard daily hours must be positive")
	case p.OvertimeMultiplier.IsNegative(), p.HouseAllowanceRate.IsNegative(),
		p.MedicalAllowanceRate.IsNegative(), p.ProvidentFundRate.IsNegative(),
		p.TransportAllowance.IsNegative(), p.LatePenalty.IsNegative():
		return errors.New("payroll rates and amounts must be non-negative")
	}
	return nil
}

// IsWorkingDay reports whether the date is neither a weekend day nor a holiday.
func (p Policy) IsWorkingDay(day time.Time) bool {
	for _, wd := range p.WeekendDays {
		if day.Weekday() == wd {
			return false
		}
	}
	for _, h := range p.Holidays {
		if sameDate(h, day) {
			return false
		}
	}
	return true
}

// WorkingDays counts the working days of the period.
func (p Policy) WorkingDays(period Period) int {
	count := 0
	for day := period.Start(); day.Before(period.End()); day = day.AddDate(0, 0, 1) {
		if p.IsWorkingDay(day) {
			count++
		}
	}
	return count
}

// PresenceWeight is the fraction of a day credited for the state.
func (p Policy) PresenceWeight(state attendance.PresenceState) decimal.Decimal {
	switch state {
	case attendance.PresenceStatePresent:
		return decimal.NewFromInt(1)
	case attendance.PresenceStateHalfDay:
		return p.HalfDayWeight
	case attendance.PresenceStateSickLeave, attendance.PresenceStateCasualLeave:
		if p.LeaveCredit {
			return decimal.NewFromInt(1)
		}
	}
	return decimal.Zero
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
