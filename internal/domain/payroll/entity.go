package payroll

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Period is a calendar month.
type Period struct {
	Year  int
	Month time.Month
}

const periodLayout = "2006-01"

// NewPeriod builds a Period, rejecting months outside 1..12 and years before 2000.
func NewPeriod(year, month int) (Period, error) {
	if month < 1 || month > 12 || year < 2000 || year > 9999 {
		return Period{}, fmt.Errorf("%w: %04d-%02d", ErrInvalidPeriod, year, month)
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

// ParsePeriod parses a "YYYY-MM" string.
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse(periodLayout, s)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return NewPeriod(t.Year(), int(t.Month()))
}

// PeriodOf returns the month containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

// Start is midnight UTC on the first day of the month.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is the exclusive upper bound: the first day of the next month.
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, 0)
}

// Contains reports whether the calendar date of t falls inside the month.
func (p Period) Contains(t time.Time) bool {
	return t.Year() == p.Year && t.Month() == p.Month
}

func (p Period) Previous() Period {
	return PeriodOf(p.Start().AddDate(0, -1, 0))
}

func (p Period) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Period) UnmarshalText(b []byte) error {
	parsed, err := ParsePeriod(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// PayrollStatus enum
type PayrollStatus string

const (
	PayrollStatusCalculated PayrollStatus = "calculated"
	PayrollStatusApproved   PayrollStatus = "approved"
	PayrollStatusPaid       PayrollStatus = "paid"
	PayrollStatusCancelled  PayrollStatus = "cancelled"
)

// allowedSources maps each target status to the statuses it may be entered from.
var allowedSources = map[PayrollStatus][]PayrollStatus{
	PayrollStatusApproved:  {PayrollStatusCalculated},
	PayrollStatusPaid:      {PayrollStatusApproved},
	PayrollStatusCancelled: {PayrollStatusCalculated, PayrollStatusApproved},
}

func ParsePayrollStatus(s string) (PayrollStatus, error) {
	switch PayrollStatus(s) {
	case PayrollStatusCalculated, PayrollStatusApproved, PayrollStatusPaid, PayrollStatusCancelled:
		return PayrollStatus(s), nil
	default:
		return "", fmt.Errorf("unknown payroll status %q", s)
	}
}

// CanTransitionTo reports whether a record in status s may move to target.
func (s PayrollStatus) CanTransitionTo(target PayrollStatus) bool {
	for _, from := range allowedSources[target] {
		if from == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s PayrollStatus) IsTerminal() bool {
	return s == PayrollStatusPaid || s == PayrollStatusCancelled
}

// CheckTransition returns a *StateTransitionError when record cannot move to target.
func CheckTransition(record PayrollRecord, target PayrollStatus) error {
	if record.Status.CanTransitionTo(target) {
		return nil
	}
	return &StateTransitionError{
		RecordID: record.ID,
		From:     record.Status,
		To:       target,
		Required: allowedSources[target],
	}
}

// PaymentMethod enum
type PaymentMethod string

const (
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCheque       PaymentMethod = "cheque"
	PaymentMethodMobileWallet PaymentMethod = "mobile_wallet"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodBankTransfer, PaymentMethodCash, PaymentMethodCheque, PaymentMethodMobileWallet:
		return true
	}
	return false
}

// RequiresReference reports whether a payment reference must accompany the method.
func (m PaymentMethod) RequiresReference() bool {
	return m != PaymentMethodCash
}

// WarningNegativeNetSalary flags a settlement whose deductions exceed gross pay.
const WarningNegativeNetSalary = "negative_net_salary"

// AttendanceSummary - Month of ledger rows reduced to payable counts
type AttendanceSummary struct {
	EmployeeID      string
	WorkingDays     int
	PresentDays     decimal.Decimal
	FullPresentDays int
	AbsentDays      int
	LateDays        int
	TotalHours      decimal.Decimal
	OvertimeHours   decimal.Decimal
}

// Adjustments are one-off manual inputs to a calculation.
type Adjustments struct {
	Bonus           decimal.Decimal
	OtherAllowances decimal.Decimal
	OtherDeductions decimal.Decimal
}

// Settlement holds the computed figures of a payroll record.
type Settlement struct {
	BaseSalary decimal.Decimal
	DailyRate  decimal.Decimal
	HourlyRate decimal.Decimal

	EarnedBasic        decimal.Decimal
	HouseAllowance     decimal.Decimal
	MedicalAllowance   decimal.Decimal
	TransportAllowance decimal.Decimal
	OtherAllowances    decimal.Decimal
	OvertimeAmount     decimal.Decimal
	Bonus              decimal.Decimal
	GrossSalary        decimal.Decimal

	AbsentDeduction decimal.Decimal
	LateDeduction   decimal.Decimal
	ProvidentFund   decimal.Decimal
	OtherDeductions decimal.Decimal
	TotalDeductions decimal.Decimal
	NetSalary       decimal.Decimal

	WorkingDays          int
	PresentDays          decimal.Decimal
	AbsentDays           int
	LateDays             int
	OvertimeHours        decimal.Decimal
	TotalHours           decimal.Decimal
	AttendancePercentage decimal.Decimal

	Warnings []string
}

// Equal compares figures numerically, so 40000 and 40000.00 are equal.
func (s Settlement) Equal(o Settlement) bool {
	amounts := [][2]decimal.Decimal{
		{s.BaseSalary, o.BaseSalary}, {s.DailyRate, o.DailyRate}, {s.HourlyRate, o.HourlyRate},
		{s.EarnedBasic, o.EarnedBasic}, {s.HouseAllowance, o.HouseAllowance},
		{s.MedicalAllowance, o.MedicalAllowance}, {s.TransportAllowance, o.TransportAllowance},
		{s.OtherAllowances, o.OtherAllowances}, {s.OvertimeAmount, o.OvertimeAmount},
		{s.Bonus, o.Bonus}, {s.GrossSalary, o.GrossSalary},
		{s.AbsentDeduction, o.AbsentDeduction}, {s.LateDeduction, o.LateDeduction},
		{s.ProvidentFund, o.ProvidentFund}, {s.OtherDeductions, o.OtherDeductions},
		{s.TotalDeductions, o.TotalDeductions}, {s.NetSalary, o.NetSalary},
		{s.PresentDays, o.PresentDays}, {s.OvertimeHours, o.OvertimeHours},
		{s.TotalHours, o.TotalHours}, {s.AttendancePercentage, o.AttendancePercentage},
	}
	for _, pair := range amounts {
		if !pair[0].Equal(pair[1]) {
			return false
		}
	}
	if s.WorkingDays != o.WorkingDays || s.AbsentDays != o.AbsentDays || s.LateDays != o.LateDays {
		return false
	}
	if len(s.Warnings) != len(o.Warnings) {
		return false
	}
	for i := range s.Warnings {
		if s.Warnings[i] != o.Warnings[i] {
			return false
		}
	}
	return true
}

// PayrollRecord - Settlement of one employee for one month
type PayrollRecord struct {
	ID         string
	EmployeeID string
	Period     Period
	Settlement
	Status PayrollStatus

	CalculatedBy string
	CalculatedAt time.Time
	ApprovedBy   *string
	ApprovedAt   *time.Time
	PaidBy       *string
	PaidAt       *time.Time
	CancelledBy  *string
	CancelledAt  *time.Time

	PaymentMethod    *PaymentMethod
	PaymentReference *string

	CreatedAt time.Time
	UpdatedAt time.Time

	// Joined fields
	EmployeeName *string
	EmployeeCode *string
}
