package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"github.com/google/uuid"
)

// Config tunes the payroll service. Zero values fall back to defaults.
type Config struct {
	Policy       payroll.Policy
	Retry        RetryPolicy
	Workers      int
	BatchLockTTL time.Duration
	// PublishTimeout bounds each event publish after commit.
	PublishTimeout time.Duration
}

type PayrollServiceImpl struct {
	txManager   payroll.TxManager
	payrollRepo payroll.PayrollRepository
	profileRepo employee.ProfileRepository
	aggregator  *Aggregator
	calculator  *Calculator
	publisher   payroll.EventPublisher
	locker      payroll.BatchLocker
	retry       RetryPolicy
	workers     int
	lockTTL     time.Duration
	pubTimeout  time.Duration
	now         func() time.Time
}

// NewPayrollService wires the engine. publisher and locker may be nil: events
// are then dropped and batch runs are not serialised across instances.
func NewPayrollService(
	txManager payroll.TxManager,
	payrollRepo payroll.PayrollRepository,
	profileRepo employee.ProfileRepository,
	ledger attendance.Ledger,
	publisher payroll.EventPublisher,
	locker payroll.BatchLocker,
	cfg Config,
) payroll.PayrollService {
	return newPayrollService(txManager, payrollRepo, profileRepo, ledger, publisher, locker, cfg)
}

func newPayrollService(
	txManager payroll.TxManager,
	payrollRepo payroll.PayrollRepository,
	profileRepo employee.ProfileRepository,
	ledger attendance.Ledger,
	publisher payroll.EventPublisher,
	locker payroll.BatchLocker,
	cfg Config,
) *PayrollServiceImpl {
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BatchLockTTL <= 0 {
		cfg.BatchLockTTL = 10 * time.Minute
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}
	return &PayrollServiceImpl{
		txManager:   txManager,
		payrollRepo: payrollRepo,
		profileRepo: profileRepo,
		aggregator:  NewAggregator(ledger, cfg.Policy),
		calculator:  NewCalculator(cfg.Policy),
		publisher:   publisher,
		locker:      locker,
		retry:       cfg.Retry,
		workers:     cfg.Workers,
		lockTTL:     cfg.BatchLockTTL,
		pubTimeout:  cfg.PublishTimeout,
		now:         time.Now,
	}
}

// ========== CALCULATION ==========

func (s *PayrollServiceImpl) CalculatePayroll(ctx context.Context, req payroll.CalculatePayrollRequest) (payroll.PayrollRecordResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayrollRecordResponse{}, err
	}

	// A settled record rejects recalculation before its inputs are read.
	// upsertSettlement checks again under the row lock.
	live, err := s.payrollRepo.GetLivePayrollRecord(ctx, req.EmployeeID, req.Period)
	switch {
	case err == nil && live.Status != payroll.PayrollStatusCalculated:
		return payroll.PayrollRecordResponse{}, &payroll.DuplicateCalculationError{RecordID: live.ID, Status: live.Status}
	case err != nil && !errors.Is(err, payroll.ErrPayrollRecordNotFound):
		return payroll.PayrollRecordResponse{}, err
	}

	profile, err := s.profileRepo.GetCompensationProfile(ctx, req.EmployeeID)
	if err != nil {
		if errors.Is(err, employee.ErrEmployeeNotFound) {
			return payroll.PayrollRecordResponse{}, fmt.Errorf("%w: employee %s", payroll.ErrMissingCompensationProfile, req.EmployeeID)
		}
		return payroll.PayrollRecordResponse{}, fmt.Errorf("failed to get compensation profile: %w", err)
	}

	summary, err := s.aggregator.Aggregate(ctx, req.EmployeeID, req.Period)
	if err != nil {
		return payroll.PayrollRecordResponse{}, err
	}

	settlement, err := s.calculator.Calculate(summary, profile, req.Adjustments())
	if err != nil {
		return payroll.PayrollRecordResponse{}, err
	}

	var (
		record  payroll.PayrollRecord
		changed bool
	)
	err = withRetry(ctx, s.retry, "calculate", func() error {
		return s.txManager.WithinTransaction(ctx, func(txCtx context.Context) error {
			var upsertErr error
			record, changed, upsertErr = s.upsertSettlement(txCtx, req, settlement)
			return upsertErr
		})
	})
	if err != nil {
		return payroll.PayrollRecordResponse{}, err
	}

	if record.EmployeeName == nil {
		record.EmployeeName = &profile.FullName
		record.EmployeeCode = &profile.EmployeeCode
	}
	if changed {
		s.publish(ctx, payroll.EventPayrollCalculated, record, req.Actor)
	}

	return payroll.ToResponse(record), nil
}

// upsertSettlement writes the settlement into the live record, creating it
// when none exists. It reports false when the stored record already matches.
func (s *PayrollServiceImpl) upsertSettlement(ctx context.Context, req payroll.CalculatePayrollRequest, settlement payroll.Settlement) (payroll.PayrollRecord, bool, error) {
	existing, err := s.payrollRepo.LockLivePayrollRecord(ctx, req.EmployeeID, req.Period)
	if err != nil && !errors.Is(err, payroll.ErrPayrollRecordNotFound) {
		return payroll.PayrollRecord{}, false, err
	}

	now := s.now().UTC()
	if errors.Is(err, payroll.ErrPayrollRecordNotFound) {
		id, err := uuid.NewV7()
		if err != nil {
			return payroll.PayrollRecord{}, false, fmt.Errorf("failed to generate payroll record id: %w", err)
		}
		created, err := s.payrollRepo.CreatePayrollRecord(ctx, payroll.PayrollRecord{
			ID:           id.String(),
			EmployeeID:   req.EmployeeID,
			Period:       req.Period,
			Settlement:   settlement,
			Status:       payroll.PayrollStatusCalculated,
			CalculatedBy: req.Actor,
			CalculatedAt: now,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			return payroll.PayrollRecord{}, false, err
		}
		return created, true, nil
	}

	if existing.Status != payroll.PayrollStatusCalculated {
		return payroll.PayrollRecord{}, false, &payroll.DuplicateCalculationError{RecordID: existing.ID, Status: existing.Status}
	}
	if existing.Settlement.Equal(settlement) && existing.CalculatedBy == req.Actor {
		return existing, false, nil
	}

	existing.Settlement = settlement
	existing.CalculatedBy = req.Actor
	existing.CalculatedAt = now
	existing.UpdatedAt = now
	updated, err := s.payrollRepo.UpdateSettlement(ctx, existing)
	if err != nil {
		return payroll.PayrollRecord{}, false, err
	}
	return updated, true, nil
}

// ========== TRANSITIONS ==========

func (s *PayrollServiceImpl) ApprovePayroll(ctx context.Context, req payroll.TransitionRequest) (payroll.PayrollRecordResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayrollRecordResponse{}, err
	}

	return s.transition(ctx, req.RecordID, req.Actor, payroll.PayrollStatusApproved, payroll.EventPayrollApproved,
		func(r *payroll.PayrollRecord, now time.Time) {
			r.ApprovedBy = &req.Actor
			r.ApprovedAt = &now
		})
}

func (s *PayrollServiceImpl) MarkPaid(ctx context.Context, req payroll.MarkPaidRequest) (payroll.PayrollRecordResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayrollRecordResponse{}, err
	}
	method := payroll.PaymentMethod(req.PaymentMethod)
	if !method.IsValid() {
		return payroll.PayrollRecordResponse{}, validator.ValidationErrors{{Field: "payment_method", Message: "is invalid"}}
	}

	return s.transition(ctx, req.RecordID, req.Actor, payroll.PayrollStatusPaid, payroll.EventPayrollPaid,
		func(r *payroll.PayrollRecord, now time.Time) {
			r.PaidBy = &req.Actor
			r.PaidAt = &now
			r.PaymentMethod = &method
			if req.PaymentReference != "" {
				reference := req.PaymentReference
				r.PaymentReference = &reference
			}
		})
}

func (s *PayrollServiceImpl) CancelPayroll(ctx context.Context, req payroll.TransitionRequest) (payroll.PayrollRecordResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayrollRecordResponse{}, err
	}

	return s.transition(ctx, req.RecordID, req.Actor, payroll.PayrollStatusCancelled, payroll.EventPayrollCancelled,
		func(r *payroll.PayrollRecord, now time.Time) {
			r.CancelledBy = &req.Actor
			r.CancelledAt = &now
		})
}

// transition moves one record to target under a row lock. stamp sets the
// audit fields; nothing is written when the transition is not allowed.
func (s *PayrollServiceImpl) transition(
	ctx context.Context,
	recordID, actor string,
	target payroll.PayrollStatus,
	eventType payroll.EventType,
	stamp func(r *payroll.PayrollRecord, now time.Time),
) (payroll.PayrollRecordResponse, error) {
	var record payroll.PayrollRecord
	err := withRetry(ctx, s.retry, string(target), func() error {
		return s.txManager.WithinTransaction(ctx, func(txCtx context.Context) error {
			current, err := s.payrollRepo.LockPayrollRecordByID(txCtx, recordID)
			if err != nil {
				return err
			}
			if err := payroll.CheckTransition(current, target); err != nil {
				return err
			}

			now := s.now().UTC()
			stamp(&current, now)
			current.Status = target
			current.UpdatedAt = now

			record, err = s.payrollRepo.UpdateStatus(txCtx, current)
			return err
		})
	})
	if err != nil {
		return payroll.PayrollRecordResponse{}, err
	}

	s.publish(ctx, eventType, record, actor)
	return payroll.ToResponse(record), nil
}

func (s *PayrollServiceImpl) publish(ctx context.Context, eventType payroll.EventType, record payroll.PayrollRecord, actor string) {
	if s.publisher == nil {
		return
	}
	event := payroll.NewEvent(eventType, record, actor, s.now())

	// The record is committed; a cancelled request must not drop the event and
	// a slow broker must not hold the caller.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.pubTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, event); err != nil {
		slog.Error("failed to publish payroll event",
			"event", eventType,
			"record_id", record.ID,
			"employee_id", record.EmployeeID,
			"period", record.Period.String(),
			"error", err,
		)
	}
}

// ========== QUERIES ==========

func (s *PayrollServiceImpl) GetPayrollRecord(ctx context.Context, id string) (payroll.PayrollRecordResponse, error) {
	record, err := s.payrollRepo.GetPayrollRecordByID(ctx, id)
	if err != nil {
		return payroll.PayrollRecordResponse{}, err
	}
	return payroll.ToResponse(record), nil
}

func (s *PayrollServiceImpl) ListPayrollRecords(ctx context.Context, filter payroll.PayrollFilter) (payroll.ListPayrollRecordResponse, error) {
	if err := filter.Validate(); err != nil {
		return payroll.ListPayrollRecordResponse{}, err
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}

	records, totalCount, err := s.payrollRepo.ListPayrollRecords(ctx, filter)
	if err != nil {
		return payroll.ListPayrollRecordResponse{}, err
	}

	data := make([]payroll.PayrollRecordResponse, 0, len(records))
	for _, r := range records {
		data = append(data, payroll.ToResponse(r))
	}

	return payroll.ListPayrollRecordResponse{
		Data:       data,
		TotalCount: totalCount,
		Page:       filter.Page,
		Limit:      filter.Limit,
	}, nil
}

func (s *PayrollServiceImpl) GetPayrollSummary(ctx context.Context, period payroll.Period) (payroll.PayrollSummaryResponse, error) {
	if period.IsZero() {
		return payroll.PayrollSummaryResponse{}, validator.ValidationErrors{{Field: "period", Message: "is required"}}
	}
	return s.payrollRepo.GetPayrollSummary(ctx, period)
}
