package payroll

import (
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// ========== CALCULATION DTOs ==========

type CalculatePayrollRequest struct {
	EmployeeID      string           `json:"employee_id" validate:"required"`
	Period          Period           `json:"period"`
	Bonus           *decimal.Decimal `json:"bonus,omitempty"`
	OtherAllowances *decimal.Decimal `json:"other_allowances,omitempty"`
	OtherDeductions *decimal.Decimal `json:"other_deductions,omitempty"`
	Actor           string           `json:"-" validate:"required"`
}

func (r *CalculatePayrollRequest) Validate() error {
	var errs validator.ValidationErrors
	if err := validator.Struct(r); err != nil {
		tagErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		errs = append(errs, tagErrs...)
	}

	if r.Period.IsZero() {
		errs = append(errs, validator.ValidationError{Field: "period", Message: "is required"})
	}
	if r.Bonus != nil && r.Bonus.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: "bonus", Message: "must be non-negative"})
	}
	if r.OtherAllowances != nil && r.OtherAllowances.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: "other_allowances", Message: "must be non-negative"})
	}
	if r.OtherDeductions != nil && r.OtherDeductions.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: "other_deductions", Message: "must be non-negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Adjustments returns the manual inputs with absent values as zero.
func (r *CalculatePayrollRequest) Adjustments() Adjustments {
	adj := Adjustments{Bonus: decimal.Zero, OtherAllowances: decimal.Zero, OtherDeductions: decimal.Zero}
	if r.Bonus != nil {
		adj.Bonus = *r.Bonus
	}
	if r.OtherAllowances != nil {
		adj.OtherAllowances = *r.OtherAllowances
	}
	if r.OtherDeductions != nil {
		adj.OtherDeductions = *r.OtherDeductions
	}
	return adj
}

type RunBatchRequest struct {
	Period      Period   `json:"period"`
	EmployeeIDs []string `json:"employee_ids,omitempty" validate:"dive,required"` // Empty = all active employees
	Actor       string   `json:"-" validate:"required"`
}

func (r *RunBatchRequest) Validate() error {
	var errs validator.ValidationErrors
	if err := validator.Struct(r); err != nil {
		tagErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		errs = append(errs, tagErrs...)
	}

	if r.Period.IsZero() {
		errs = append(errs, validator.ValidationError{Field: "period", Message: "is required"})
	}
	seen := make(map[string]bool, len(r.EmployeeIDs))
	for _, id := range r.EmployeeIDs {
		if seen[id] {
			errs = append(errs, validator.ValidationError{Field: "employee_ids", Message: "must not contain duplicates"})
			break
		}
		seen[id] = true
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type BatchItemError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type BatchItemResult struct {
	EmployeeID string                 `json:"employee_id"`
	Record     *PayrollRecordResponse `json:"record,omitempty"`
	Error      *BatchItemError        `json:"error,omitempty"`

	// Err keeps the typed error for errors.Is checks by Go callers.
	Err error `json:"-"`
}

type BatchRunResponse struct {
	Period    string            `json:"period"`
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Results   []BatchItemResult `json:"results"`
}

// ========== TRANSITION DTOs ==========

type TransitionRequest struct {
	RecordID string `json:"-" validate:"required"`
	Actor    string `json:"-" validate:"required"`
}

func (r *TransitionRequest) Validate() error {
	return validator.Struct(r)
}

type MarkPaidRequest struct {
	RecordID         string `json:"-" validate:"required"`
	Actor            string `json:"-" validate:"required"`
	PaymentMethod    string `json:"payment_method" validate:"required,oneof=bank_transfer cash cheque mobile_wallet"`
	PaymentReference string `json:"payment_reference" validate:"required_unless=PaymentMethod cash,max=100"`
}

func (r *MarkPaidRequest) Validate() error {
	return validator.Struct(r)
}

// ========== QUERY DTOs ==========

type PayrollRecordResponse struct {
	ID           string  `json:"id"`
	EmployeeID   string  `json:"employee_id"`
	EmployeeName *string `json:"employee_name,omitempty"`
	EmployeeCode *string `json:"employee_code,omitempty"`
	Period       string  `json:"period"`
	PeriodMonth  int     `json:"period_month"`
	PeriodYear   int     `json:"period_year"`

	BaseSalary decimal.Decimal `json:"base_salary"`
	DailyRate  decimal.Decimal `json:"daily_rate"`
	HourlyRate decimal.Decimal `json:"hourly_rate"`

	EarnedBasic        decimal.Decimal `json:"earned_basic"`
	HouseAllowance     decimal.Decimal `json:"house_allowance"`
	MedicalAllowance   decimal.Decimal `json:"medical_allowance"`
	TransportAllowance decimal.Decimal `json:"transport_allowance"`
	OtherAllowances    decimal.Decimal `json:"other_allowances"`
	OvertimeAmount     decimal.Decimal `json:"overtime_amount"`
	Bonus              decimal.Decimal `json:"bonus"`
	GrossSalary        decimal.Decimal `json:"gross_salary"`

	AbsentDeduction decimal.Decimal `json:"absent_deduction"`
	LateDeduction   decimal.Decimal `json:"late_deduction"`
	ProvidentFund   decimal.Decimal `json:"provident_fund"`
	OtherDeductions decimal.Decimal `json:"other_deductions"`
	TotalDeductions decimal.Decimal `json:"total_deductions"`
	NetSalary       decimal.Decimal `json:"net_salary"`

	WorkingDays          int             `json:"working_days"`
	PresentDays          decimal.Decimal `json:"present_days"`
	AbsentDays           int             `json:"absent_days"`
	LateDays             int             `json:"late_days"`
	OvertimeHours        decimal.Decimal `json:"overtime_hours"`
	TotalHours           decimal.Decimal `json:"total_hours"`
	AttendancePercentage decimal.Decimal `json:"attendance_percentage"`

	Status           string   `json:"status"`
	CalculatedBy     string   `json:"calculated_by"`
	CalculatedAt     string   `json:"calculated_at"`
	ApprovedBy       *string  `json:"approved_by,omitempty"`
	ApprovedAt       *string  `json:"approved_at,omitempty"`
	PaidBy           *string  `json:"paid_by,omitempty"`
	PaidAt           *string  `json:"paid_at,omitempty"`
	CancelledBy      *string  `json:"cancelled_by,omitempty"`
	CancelledAt      *string  `json:"cancelled_at,omitempty"`
	PaymentMethod    *string  `json:"payment_method,omitempty"`
	PaymentReference *string  `json:"payment_reference,omitempty"`
	Warnings         []string `json:"warnings,omitempty"`
	CreatedAt        string   `json:"created_at"`
	UpdatedAt        string   `json:"updated_at"`
}

// ToResponse converts a record into its API representation.
func ToResponse(r PayrollRecord) PayrollRecordResponse {
	resp := PayrollRecordResponse{
		ID:                   r.ID,
		EmployeeID:           r.EmployeeID,
		EmployeeName:         r.EmployeeName,
		EmployeeCode:         r.EmployeeCode,
		Period:               r.Period.String(),
		PeriodMonth:          int(r.Period.Month),
		PeriodYear:           r.Period.Year,
		BaseSalary:           r.BaseSalary,
		DailyRate:            r.DailyRate,
		HourlyRate:           r.HourlyRate,
		EarnedBasic:          r.EarnedBasic,
		HouseAllowance:       r.HouseAllowance,
		MedicalAllowance:     r.MedicalAllowance,
		TransportAllowance:   r.TransportAllowance,
		OtherAllowances:      r.OtherAllowances,
		OvertimeAmount:       r.OvertimeAmount,
		Bonus:                r.Bonus,
		GrossSalary:          r.GrossSalary,
		AbsentDeduction:      r.AbsentDeduction,
		LateDeduction:        r.LateDeduction,
		ProvidentFund:        r.ProvidentFund,
		OtherDeductions:      r.OtherDeductions,
		TotalDeductions:      r.TotalDeductions,
		NetSalary:            r.NetSalary,
		WorkingDays:          r.WorkingDays,
		PresentDays:          r.PresentDays,
		AbsentDays:           r.AbsentDays,
		LateDays:             r.LateDays,
		OvertimeHours:        r.OvertimeHours,
		TotalHours:           r.TotalHours,
		AttendancePercentage: r.AttendancePercentage,
		Status:               string(r.Status),
		CalculatedBy:         r.CalculatedBy,
		CalculatedAt:         r.CalculatedAt.UTC().Format(time.RFC3339),
		ApprovedBy:           r.ApprovedBy,
		ApprovedAt:           formatTime(r.ApprovedAt),
		PaidBy:               r.PaidBy,
		PaidAt:               formatTime(r.PaidAt),
		CancelledBy:          r.CancelledBy,
		CancelledAt:          formatTime(r.CancelledAt),
		PaymentReference:     r.PaymentReference,
		Warnings:             r.Warnings,
		CreatedAt:            r.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:            r.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if r.PaymentMethod != nil {
		method := string(*r.PaymentMethod)
		resp.PaymentMethod = &method
	}
	return resp
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

type PayrollFilter struct {
	Period     *Period `json:"period,omitempty"`
	Status     *string `json:"status,omitempty" validate:"omitempty,oneof=calculated approved paid cancelled"`
	EmployeeID *string `json:"employee_id,omitempty"`
	Page       int     `json:"page" validate:"gte=0"`
	Limit      int     `json:"limit" validate:"gte=0,lte=100"`
	SortBy     string  `json:"sort_by" validate:"omitempty,oneof=period employee_code net_salary status created_at"`
	SortOrder  string  `json:"sort_order" validate:"omitempty,oneof=asc desc"`
}

func (f *PayrollFilter) Validate() error {
	return validator.Struct(f)
}

type ListPayrollRecordResponse struct {
	Data       []PayrollRecordResponse `json:"data"`
	TotalCount int64                   `json:"total_count"`
	Page       int                     `json:"page"`
	Limit      int                     `json:"limit"`
}

type PayrollSummaryResponse struct {
	Period           string          `json:"period"`
	TotalRecords     int             `json:"total_records"`
	TotalBaseSalary  decimal.Decimal `json:"total_base_salary"`
	TotalOvertime    decimal.Decimal `json:"total_overtime"`
	TotalGrossSalary decimal.Decimal `json:"total_gross_salary"`
	TotalDeductions  decimal.Decimal `json:"total_deductions"`
	TotalNetSalary   decimal.Decimal `json:"total_net_salary"`
	CalculatedCount  int             `json:"calculated_count"`
	ApprovedCount    int             `json:"approved_count"`
	PaidCount        int             `json:"paid_count"`
	CancelledCount   int             `json:"cancelled_count"`
}
