package payroll

import (
	"context"
	"time"
)

// PayrollRepository defines data access methods for payroll records.
// Lock* methods take a row lock and must run inside WithinTransaction.
type PayrollRepository interface {
	CreatePayrollRecord(ctx context.Context, record PayrollRecord) (PayrollRecord, error)
	GetPayrollRecordByID(ctx context.Context, id string) (PayrollRecord, error)
	LockPayrollRecordByID(ctx context.Context, id string) (PayrollRecord, error)
	// GetLivePayrollRecord returns the non-cancelled record of the employee
	// for the period without locking it, or ErrPayrollRecordNotFound.
	GetLivePayrollRecord(ctx context.Context, employeeID string, period Period) (PayrollRecord, error)
	// LockLivePayrollRecord returns the non-cancelled record of the employee
	// for the period, or ErrPayrollRecordNotFound.
	LockLivePayrollRecord(ctx context.Context, employeeID string, period Period) (PayrollRecord, error)
	UpdateSettlement(ctx context.Context, record PayrollRecord) (PayrollRecord, error)
	UpdateStatus(ctx context.Context, record PayrollRecord) (PayrollRecord, error)
	ListPayrollRecords(ctx context.Context, filter PayrollFilter) ([]PayrollRecord, int64, error)
	GetPayrollSummary(ctx context.Context, period Period) (PayrollSummaryResponse, error)
}

// TxManager runs fn in a database transaction carried by the returned context.
// Driver conflicts surface as ErrPersistenceConflict.
type TxManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// BatchLocker serialises batch runs across instances.
type BatchLocker interface {
	// Acquire returns ErrBatchInProgress when the key is already held.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}
