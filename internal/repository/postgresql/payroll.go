package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const liveRecordConstraint = "uq_payroll_records_live"

// payrollSortColumns holds ORDER BY templates; %[1]s is the sort direction.
var payrollSortColumns = map[string]string{
	"created_at":    "pr.created_at %[1]s",
	"period":        "pr.period_year %[1]s, pr.period_month %[1]s",
	"employee_code": "e.employee_code %[1]s",
	"net_salary":    "pr.net_salary %[1]s",
	"status":        "pr.status %[1]s",
}

// payrollColumns is the select list shared by every record query; it expects
// payroll_records aliased as pr joined with employees aliased as e.
const payrollColumns = `
	pr.id, pr.employee_id, pr.period_year, pr.period_month,
	pr.base_salary, pr.daily_rate, pr.hourly_rate,
	pr.earned_basic, pr.house_allowance, pr.medical_allowance, pr.transport_allowance,
	pr.other_allowances, pr.overtime_amount, pr.bonus, pr.gross_salary,
	pr.absent_deduction, pr.late_deduction, pr.provident_fund, pr.other_deductions,
	pr.total_deductions, pr.net_salary,
	pr.working_days, pr.present_days, pr.absent_days, pr.late_days,
	pr.overtime_hours, pr.total_hours, pr.attendance_percentage, pr.warnings,
	pr.status, pr.calculated_by, pr.calculated_at, pr.approved_by, pr.approved_at,
	pr.paid_by, pr.paid_at, pr.cancelled_by, pr.cancelled_at,
	pr.payment_method, pr.payment_reference, pr.created_at, pr.updated_at,
	e.full_name, e.employee_code`

type payrollRepository struct {
	db *database.DB
}

func NewPayrollRepository(db *database.DB) payroll.PayrollRepository {
	return &payrollRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPayrollRecord(row scanner) (payroll.PayrollRecord, error) {
	var (
		r     payroll.PayrollRecord
		month int
	)
	err := row.Scan(
		&r.ID, &r.EmployeeID, &r.Period.Year, &month,
		&r.BaseSalary, &r.DailyRate, &r.HourlyRate,
		&r.EarnedBasic, &r.HouseAllowance, &r.MedicalAllowance, &r.TransportAllowance,
		&r.OtherAllowances, &r.OvertimeAmount, &r.Bonus, &r.GrossSalary,
		&r.AbsentDeduction, &r.LateDeduction, &r.ProvidentFund, &r.OtherDeductions,
		&r.TotalDeductions, &r.NetSalary,
		&r.WorkingDays, &r.PresentDays, &r.AbsentDays, &r.LateDays,
		&r.OvertimeHours, &r.TotalHours, &r.AttendancePercentage, &r.Warnings,
		&r.Status, &r.CalculatedBy, &r.CalculatedAt, &r.ApprovedBy, &r.ApprovedAt,
		&r.PaidBy, &r.PaidAt, &r.CancelledBy, &r.CancelledAt,
		&r.PaymentMethod, &r.PaymentReference, &r.CreatedAt, &r.UpdatedAt,
		&r.EmployeeName, &r.EmployeeCode,
	)
	if err != nil {
		return payroll.PayrollRecord{}, err
	}
	r.Period.Month = time.Month(month)
	if len(r.Warnings) == 0 {
		r.Warnings = nil
	}
	return r, nil
}

// getOne runs a query selecting payrollColumns and expecting at most one row.
func (r *payrollRepository) getOne(ctx context.Context, op, query string, args ...any) (payroll.PayrollRecord, error) {
	q := GetQuerier(ctx, r.db)

	record, err := scanPayrollRecord(q.QueryRow(ctx, query, args...))
	if err != nil {
		if err == pgx.ErrNoRows {
			return payroll.PayrollRecord{}, payroll.ErrPayrollRecordNotFound
		}
		return payroll.PayrollRecord{}, fmt.Errorf("failed to %s: %w", op, err)
	}
	return record, nil
}

func warningsOrEmpty(w []string) []string {
	if w == nil {
		return []string{}
	}
	return w
}

func (r *payrollRepository) CreatePayrollRecord(ctx context.Context, record payroll.PayrollRecord) (payroll.PayrollRecord, error) {
	query := `
		WITH pr AS (
			INSERT INTO payroll_records (
				id, employee_id, period_year, period_month,
				base_salary, daily_rate, hourly_rate,
				earned_basic, house_allowance, medical_allowance, transport_allowance,
				other_allowances, overtime_amount, bonus, gross_salary,
				absent_deduction, late_deduction, provident_fund, other_deductions,
				total_deductions, net_salary,
				working_days, present_days, absent_days, late_days,
				overtime_hours, total_hours, attendance_percentage, warnings,
				status, calculated_by, calculated_at, created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
				$18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33, $34
			)
			RETURNING *
		)
		SELECT ` + payrollColumns + `
		FROM pr
		JOIN employees e ON e.id = pr.employee_id
	`

	s := record.Settlement
	created, err := r.getOne(ctx, "create payroll record", query,
		record.ID, record.EmployeeID, record.Period.Year, int(record.Period.Month),
		s.BaseSalary, s.DailyRate, s.HourlyRate,
		s.EarnedBasic, s.HouseAllowance, s.MedicalAllowance, s.TransportAllowance,
		s.OtherAllowances, s.OvertimeAmount, s.Bonus, s.GrossSalary,
		s.AbsentDeduction, s.LateDeduction, s.ProvidentFund, s.OtherDeductions,
		s.TotalDeductions, s.NetSalary,
		s.WorkingDays, s.PresentDays, s.AbsentDays, s.LateDays,
		s.OvertimeHours, s.TotalHours, s.AttendancePercentage, warningsOrEmpty(s.Warnings),
		record.Status, record.CalculatedBy, record.CalculatedAt, record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == liveRecordConstraint {
			return payroll.PayrollRecord{}, fmt.Errorf("%w: live record for employee %s in %s already exists",
				payroll.ErrPersistenceConflict, record.EmployeeID, record.Period)
		}
		return payroll.PayrollRecord{}, err
	}

	return created, nil
}

func (r *payrollRepository) GetPayrollRecordByID(ctx context.Context, id string) (payroll.PayrollRecord, error) {
	if !validator.IsValidUUID(id) {
		return payroll.PayrollRecord{}, payroll.ErrPayrollRecordNotFound
	}

	query := `
		SELECT ` + payrollColumns + `
		FROM payroll_records pr
		JOIN employees e ON e.id = pr.employee_id
		WHERE pr.id = $1
	`
	return r.getOne(ctx, "get payroll record", query, id)
}

func (r *payrollRepository) LockPayrollRecordByID(ctx context.Context, id string) (payroll.PayrollRecord, error) {
	if !validator.IsValidUUID(id) {
		return payroll.PayrollRecord{}, payroll.ErrPayrollRecordNotFound
	}

	query := `
		SELECT ` + payrollColumns + `
		FROM payroll_records pr
		JOIN employees e ON e.id = pr.employee_id
		WHERE pr.id = $1
		FOR UPDATE OF pr
	`
	return r.getOne(ctx, "lock payroll record", query, id)
}

func (r *payrollRepository) GetLivePayrollRecord(ctx context.Context, employeeID string, period payroll.Period) (payroll.PayrollRecord, error) {
	if _, err := uuid.Parse(employeeID); err != nil {
		return payroll.PayrollRecord{}, payroll.ErrPayrollRecordNotFound
	}

	query := `
		SELECT ` + payrollColumns + `
		FROM payroll_records pr
		JOIN employees e ON e.id = pr.employee_id
		WHERE pr.employee_id = $1 AND pr.period_year = $2 AND pr.period_month = $3
			AND pr.status <> 'cancelled'
	`
	return r.getOne(ctx, "get live payroll record", query, employeeID, period.Year, int(period.Month))
}

func (r *payrollRepository) LockLivePayrollRecord(ctx context.Context, employeeID string, period payroll.Period) (payroll.PayrollRecord, error) {
	query := `
		SELECT ` + payrollColumns + `
		FROM payroll_records pr
		JOIN employees e ON e.id = pr.employee_id
		WHERE pr.employee_id = $1 AND pr.period_year = $2 AND pr.period_month = $3
			AND pr.status <> 'cancelled'
		FOR UPDATE OF pr
	`
	return r.getOne(ctx, "lock live payroll record", query, employeeID, period.Year, int(period.Month))
}

func (r *payrollRepository) UpdateSettlement(ctx context.Context, record payroll.PayrollRecord) (payroll.PayrollRecord, error) {
	query := `
		WITH pr AS (
			UPDATE payroll_records SET
				base_salary = $2, daily_rate = $3, hourly_rate = $4,
				earned_basic = $5, house_allowance = $6, medical_allowance = $7, transport_allowance = $8,
				other_allowances = $9, overtime_amount = $10, bonus = $11, gross_salary = $12,
				absent_deduction = $13, late_deduction = $14, provident_fund = $15, other_deductions = $16,
				total_deductions = $17, net_salary = $18,
				working_days = $19, present_days = $20, absent_days = $21, late_days = $22,
				overtime_hours = $23, total_hours = $24, attendance_percentage = $25, warnings = $26,
				calculated_by = $27, calculated_at = $28, updated_at = $29
			WHERE id = $1 AND status = 'calculated'
			RETURNING *
		)
		SELECT ` + payrollColumns + `
		FROM pr
		JOIN employees e ON e.id = pr.employee_id
	`

	s := record.Settlement
	return r.getOne(ctx, "update payroll settlement", query,
		record.ID,
		s.BaseSalary, s.DailyRate, s.HourlyRate,
		s.EarnedBasic, s.HouseAllowance, s.MedicalAllowance, s.TransportAllowance,
		s.OtherAllowances, s.OvertimeAmount, s.Bonus, s.GrossSalary,
		s.AbsentDeduction, s.LateDeduction, s.ProvidentFund, s.OtherDeductions,
		s.TotalDeductions, s.NetSalary,
		s.WorkingDays, s.PresentDays, s.AbsentDays, s.LateDays,
		s.OvertimeHours, s.TotalHours, s.AttendancePercentage, warningsOrEmpty(s.Warnings),
		record.CalculatedBy, record.CalculatedAt, record.UpdatedAt,
	)
}

func (r *payrollRepository) UpdateStatus(ctx context.Context, record payroll.PayrollRecord) (payroll.PayrollRecord, error) {
	query := `
		WITH pr AS (
			UPDATE payroll_records SET
				status = $2,
				approved_by = $3, approved_at = $4,
				paid_by = $5, paid_at = $6,
				cancelled_by = $7, cancelled_at = $8,
				payment_method = $9, payment_reference = $10,
				updated_at = $11
			WHERE id = $1
			RETURNING *
		)
		SELECT ` + payrollColumns + `
		FROM pr
		JOIN employees e ON e.id = pr.employee_id
	`

	return r.getOne(ctx, "update payroll status", query,
		record.ID, record.Status,
		record.ApprovedBy, record.ApprovedAt,
		record.PaidBy, record.PaidAt,
		record.CancelledBy, record.CancelledAt,
		record.PaymentMethod, record.PaymentReference,
		record.UpdatedAt,
	)
}

func (r *payrollRepository) ListPayrollRecords(ctx context.Context, filter payroll.PayrollFilter) ([]payroll.PayrollRecord, int64, error) {
	q := GetQuerier(ctx, r.db)

	baseQuery := `
		FROM payroll_records pr
		JOIN employees e ON e.id = pr.employee_id
		WHERE 1 = 1
	`
	var args []any
	argIdx := 1

	if filter.Period != nil {
		baseQuery += fmt.Sprintf(" AND pr.period_year = $%d AND pr.period_month = $%d", argIdx, argIdx+1)
		args = append(args, filter.Period.Year, int(filter.Period.Month))
		argIdx += 2
	}
	if filter.Status != nil {
		baseQuery += fmt.Sprintf(" AND pr.status = $%d", argIdx)
		args = append(args, *filter.Status)
		argIdx++
	}
	if filter.EmployeeID != nil {
		if _, err := uuid.Parse(*filter.EmployeeID); err != nil {
			return []payroll.PayrollRecord{}, 0, nil
		}
		baseQuery += fmt.Sprintf(" AND pr.employee_id = $%d", argIdx)
		args = append(args, *filter.EmployeeID)
		argIdx++
	}

	// Count query
	var totalCount int64
	countQuery := "SELECT COUNT(*) " + baseQuery
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count payroll records: %w", err)
	}

	// Sort
	orderBy := payrollSortColumns["created_at"]
	if col, ok := payrollSortColumns[filter.SortBy]; ok {
		orderBy = col
	}
	sortOrder := "DESC"
	if filter.SortOrder == "asc" {
		sortOrder = "ASC"
	}
	orderBy = fmt.Sprintf(orderBy, sortOrder)

	// Pagination
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	offset := (filter.Page - 1) * filter.Limit

	selectQuery := fmt.Sprintf(`
		SELECT %s
		%s
		ORDER BY %s, pr.id
		LIMIT $%d OFFSET $%d
	`, payrollColumns, baseQuery, orderBy, argIdx, argIdx+1)

	args = append(args, filter.Limit, offset)

	rows, err := q.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payroll records: %w", err)
	}
	defer rows.Close()

	var records []payroll.PayrollRecord
	for rows.Next() {
		record, err := scanPayrollRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan payroll record: %w", err)
		}
		records = append(records, record)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, err
	}

	return records, totalCount, nil
}

// GetPayrollSummary totals the period's non-cancelled records; the status
// counts include cancelled history.
func (r *payrollRepository) GetPayrollSummary(ctx context.Context, period payroll.Period) (payroll.PayrollSummaryResponse, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT
			COUNT(*) FILTER (WHERE status <> 'cancelled') as total_records,
			COALESCE(SUM(base_salary) FILTER (WHERE status <> 'cancelled'), 0) as total_base_salary,
			COALESCE(SUM(overtime_amount) FILTER (WHERE status <> 'cancelled'), 0) as total_overtime,
			COALESCE(SUM(gross_salary) FILTER (WHERE status <> 'cancelled'), 0) as total_gross_salary,
			COALESCE(SUM(total_deductions) FILTER (WHERE status <> 'cancelled'), 0) as total_deductions,
			COALESCE(SUM(net_salary) FILTER (WHERE status <> 'cancelled'), 0) as total_net_salary,
			COUNT(*) FILTER (WHERE status = 'calculated') as calculated_count,
			COUNT(*) FILTER (WHERE status = 'approved') as approved_count,
			COUNT(*) FILTER (WHERE status = 'paid') as paid_count,
			COUNT(*) FILTER (WHERE status = 'cancelled') as cancelled_count
		FROM payroll_records
		WHERE period_year = $1 AND period_month = $2
	`

	var summary payroll.PayrollSummaryResponse
	err := q.QueryRow(ctx, query, period.Year, int(period.Month)).Scan(
		&summary.TotalRecords, &summary.TotalBaseSalary, &summary.TotalOvertime,
		&summary.TotalGrossSalary, &summary.TotalDeductions, &summary.TotalNetSalary,
		&summary.CalculatedCount, &summary.ApprovedCount, &summary.PaidCount, &summary.CancelledCount,
	)
	if err != nil {
		return payroll.PayrollSummaryResponse{}, fmt.Errorf("failed to get payroll summary: %w", err)
	}

	summary.Period = period.String()

	return summary, nil
}
