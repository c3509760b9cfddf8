package payroll

import (
	"fmt"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

const (
	moneyPlaces      = 2
	percentagePlaces = 1
)

var hundred = decimal.NewFromInt(100)

// Calculator applies the pay rules of a Policy to an attendance summary.
type Calculator struct {
	policy payroll.Policy
}

func NewCalculator(policy payroll.Policy) *Calculator {
	return &Calculator{policy: policy}
}

// Calculate derives every component of the settlement. Each monetary
// component is rounded half-up to cents once; totals add rounded components.
func (c *Calculator) Calculate(summary payroll.AttendanceSummary, profile employee.CompensationProfile, adj payroll.Adjustments) (payroll.Settlement, error) {
	var errs validator.ValidationErrors
	if !profile.BaseSalary.IsPositive() {
		errs = append(errs, validator.ValidationError{Field: "base_salary", Message: "must be positive"})
	}
	if adj.Bonus.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: "bonus", Message: "must be non-negative"})
	}
	if adj.OtherAllowances.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: "other_allowances", Message: "must be non-negative"})
	}
	if adj.OtherDeductions.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: "other_deductions", Message: "must be non-negative"})
	}
	if len(errs) > 0 {
		return payroll.Settlement{}, errs
	}
	if summary.WorkingDays <= 0 {
		return payroll.Settlement{}, payroll.ErrNoWorkingDaysInMonth
	}

	p := c.policy
	base := profile.BaseSalary
	workingDays := decimal.NewFromInt(int64(summary.WorkingDays))
	dailyRate := base.Div(workingDays)
	hourlyRate := base.Div(workingDays.Mul(p.StandardDailyHours))

	s := payroll.Settlement{
		BaseSalary: base,
		DailyRate:  money(dailyRate),
		HourlyRate: money(hourlyRate),

		EarnedBasic:        money(dailyRate.Mul(summary.PresentDays)),
		HouseAllowance:     money(base.Mul(p.HouseAllowanceRate)),
		MedicalAllowance:   money(base.Mul(p.MedicalAllowanceRate)),
		TransportAllowance: money(p.TransportAllowance),
		OtherAllowances:    money(adj.OtherAllowances),
		OvertimeAmount:     money(summary.OvertimeHours.Mul(hourlyRate).Mul(p.OvertimeMultiplier)),
		Bonus:              money(adj.Bonus),

		AbsentDeduction: money(dailyRate.Mul(decimal.NewFromInt(int64(summary.AbsentDays)))),
		LateDeduction:   money(decimal.NewFromInt(int64(summary.LateDays)).Mul(p.LatePenalty)),
		ProvidentFund:   money(base.Mul(p.ProvidentFundRate)),
		OtherDeductions: money(adj.OtherDeductions),

		WorkingDays:          summary.WorkingDays,
		PresentDays:          summary.PresentDays.Round(moneyPlaces),
		AbsentDays:           summary.AbsentDays,
		LateDays:             summary.LateDays,
		OvertimeHours:        summary.OvertimeHours.Round(moneyPlaces),
		TotalHours:           summary.TotalHours.Round(moneyPlaces),
		AttendancePercentage: summary.PresentDays.Div(workingDays).Mul(hundred).Round(percentagePlaces),
	}

	s.GrossSalary = decimal.Sum(s.EarnedBasic, s.HouseAllowance, s.MedicalAllowance,
		s.TransportAllowance, s.OtherAllowances, s.OvertimeAmount, s.Bonus)
	s.TotalDeductions = decimal.Sum(s.AbsentDeduction, s.LateDeduction, s.ProvidentFund, s.OtherDeductions)
	s.NetSalary = s.GrossSalary.Sub(s.TotalDeductions)

	if s.NetSalary.IsNegative() {
		if p.RejectNegativeNet {
			return payroll.Settlement{}, validator.ValidationErrors{{
				Field:   "net_salary",
				Message: fmt.Sprintf("deductions %s exceed gross salary %s", s.TotalDeductions.StringFixed(moneyPlaces), s.GrossSalary.StringFixed(moneyPlaces)),
			}}
		}
		s.Warnings = []string{payroll.WarningNegativeNetSalary}
	}

	return s, nil
}

func money(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}
