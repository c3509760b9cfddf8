package payroll

import (
	"bytes"
	"context"
)

type PayrollService interface {
	// CalculatePayroll creates or recomputes the live record of the employee
	// for the period. Approved or paid records are never recomputed.
	CalculatePayroll(ctx context.Context, req CalculatePayrollRequest) (PayrollRecordResponse, error)
	// RunBatchPayroll calculates every listed employee, or every active
	// employee when none are listed. One failure does not stop the others.
	RunBatchPayroll(ctx context.Context, req RunBatchRequest) (BatchRunResponse, error)

	ApprovePayroll(ctx context.Context, req TransitionRequest) (PayrollRecordResponse, error)
	MarkPaid(ctx context.Context, req MarkPaidRequest) (PayrollRecordResponse, error)
	CancelPayroll(ctx context.Context, req TransitionRequest) (PayrollRecordResponse, error)

	GetPayrollRecord(ctx context.Context, id string) (PayrollRecordResponse, error)
	ListPayrollRecords(ctx context.Context, filter PayrollFilter) (ListPayrollRecordResponse, error)
	GetPayrollSummary(ctx context.Context, period Period) (PayrollSummaryResponse, error)
	// ExportPayrollRegister renders the period's records as an XLSX workbook.
	ExportPayrollRegister(ctx context.Context, period Period) (*bytes.Buffer, string, error)
}
