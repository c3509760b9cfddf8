package payroll

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	registerSheet    = "Payroll Register"
	exportPageSize   = 100
	moneyNumFmtStyle = 4 // #,##0.00
)

var registerColumns = []string{
	"Employee Code", "Employee Name", "Status", "Working Days", "Present Days", "Absent Days", "Late Days",
	"Overtime Hours", "Base Salary", "Earned Basic", "House Allowance", "Medical Allowance",
	"Transport Allowance", "Other Allowances", "Overtime", "Bonus", "Gross Salary",
	"Absent Deduction", "Late Deduction", "Provident Fund", "Other Deductions", "Total Deductions", "Net Salary",
}

func (s *PayrollServiceImpl) ExportPayrollRegister(ctx context.Context, period payroll.Period) (*bytes.Buffer, string, error) {
	records, err := s.recordsForPeriod(ctx, period)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(registerSheet)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create register sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, "", fmt.Errorf("failed to remove default sheet: %w", err)
	}

	if err := writeRegister(f, period, records); err != nil {
		return nil, "", err
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		slog.Error("failed to write payroll register", "period", period.String(), "error", err)
		return nil, "", fmt.Errorf("failed to write payroll register: %w", err)
	}

	return buf, fmt.Sprintf("payroll_register_%s.xlsx", period), nil
}

// writeRegister fills the register sheet with a title, the column headers,
// one row per record and a totals row over the non-cancelled records.
func writeRegister(f *excelize.File, period payroll.Period, records []payroll.PayrollRecord) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: moneyNumFmtStyle})
	if err != nil {
		return fmt.Errorf("failed to create money style: %w", err)
	}

	lastCol := colName(len(registerColumns) - 1)
	if err := f.SetCellValue(registerSheet, "A1", fmt.Sprintf("Payroll Register %s", period)); err != nil {
		return fmt.Errorf("failed to write register title: %w", err)
	}
	if err := f.MergeCell(registerSheet, "A1", cell(lastCol, 1)); err != nil {
		return fmt.Errorf("failed to merge register title: %w", err)
	}
	if err := f.SetCellStyle(registerSheet, "A1", "A1", headerStyle); err != nil {
		return fmt.Errorf("failed to style register title: %w", err)
	}

	headers := make([]any, len(registerColumns))
	for i, title := range registerColumns {
		headers[i] = title
	}
	if err := setRow(f, 2, headers); err != nil {
		return fmt.Errorf("failed to write register header: %w", err)
	}
	if err := f.SetCellStyle(registerSheet, "A2", cell(lastCol, 2), headerStyle); err != nil {
		return fmt.Errorf("failed to style register header: %w", err)
	}
	if err := f.SetColWidth(registerSheet, "A", "B", 22); err != nil {
		return fmt.Errorf("failed to size register columns: %w", err)
	}
	if err := f.SetColWidth(registerSheet, "C", lastCol, 16); err != nil {
		return fmt.Errorf("failed to size register columns: %w", err)
	}

	totalGross, totalDeductions, totalNet := decimal.Zero, decimal.Zero, decimal.Zero
	row := 3
	for _, r := range records {
		values := []any{
			deref(r.EmployeeCode), deref(r.EmployeeName), string(r.Status),
			r.WorkingDays, r.PresentDays.InexactFloat64(), r.AbsentDays, r.LateDays,
			r.OvertimeHours.InexactFloat64(),
			r.BaseSalary.InexactFloat64(), r.EarnedBasic.InexactFloat64(), r.HouseAllowance.InexactFloat64(),
			r.MedicalAllowance.InexactFloat64(), r.TransportAllowance.InexactFloat64(), r.OtherAllowances.InexactFloat64(),
			r.OvertimeAmount.InexactFloat64(), r.Bonus.InexactFloat64(), r.GrossSalary.InexactFloat64(),
			r.AbsentDeduction.InexactFloat64(), r.LateDeduction.InexactFloat64(), r.ProvidentFund.InexactFloat64(),
			r.OtherDeductions.InexactFloat64(), r.TotalDeductions.InexactFloat64(), r.NetSalary.InexactFloat64(),
		}
		if err := setRow(f, row, values); err != nil {
			return fmt.Errorf("failed to write register row for record %s: %w", r.ID, err)
		}
		if r.Status != payroll.PayrollStatusCancelled {
			totalGross = totalGross.Add(r.GrossSalary)
			totalDeductions = totalDeductions.Add(r.TotalDeductions)
			totalNet = totalNet.Add(r.NetSalary)
		}
		row++
	}

	totals := map[string]any{
		"A":         "Total",
		colName(16): totalGross.InexactFloat64(),
		colName(21): totalDeductions.InexactFloat64(),
		colName(22): totalNet.InexactFloat64(),
	}
	for col, v := range totals {
		if err := f.SetCellValue(registerSheet, cell(col, row), v); err != nil {
			return fmt.Errorf("failed to write register totals: %w", err)
		}
	}
	if err := f.SetCellStyle(registerSheet, cell(colName(8), 3), cell(lastCol, row), moneyStyle); err != nil {
		return fmt.Errorf("failed to style register amounts: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, values []any) error {
	for i, v := range values {
		if err := f.SetCellValue(registerSheet, cell(colName(i), row), v); err != nil {
			return err
		}
	}
	return nil
}

func (s *PayrollServiceImpl) recordsForPeriod(ctx context.Context, period payroll.Period) ([]payroll.PayrollRecord, error) {
	filter := payroll.PayrollFilter{Period: &period, Page: 1, Limit: exportPageSize, SortBy: "employee_code", SortOrder: "asc"}

	var all []payroll.PayrollRecord
	for {
		records, total, err := s.payrollRepo.ListPayrollRecords(ctx, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
		if len(records) == 0 || int64(len(all)) >= total {
			return all, nil
		}
		filter.Page++
	}
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
