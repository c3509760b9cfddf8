package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
)

// SystemActor is recorded as calculated_by for scheduled runs.
const SystemActor = "system"

// PayrollJobs settles the previous month on a fixed day of each month.
type PayrollJobs struct {
	payrollService payroll.PayrollService
	runDay         int
	now            func() time.Time

	mu      sync.Mutex
	lastRun payroll.Period
}

func NewPayrollJobs(payrollService payroll.PayrollService, runDay int) *PayrollJobs {
	return &PayrollJobs{
		payrollService: payrollService,
		runDay:         runDay,
		now:            time.Now,
	}
}

// RegisterJobs registers the monthly run when a run day is configured.
func (j *PayrollJobs) RegisterJobs(scheduler *Scheduler) {
	if j.runDay == 0 {
		return
	}
	// checked hourly; runs at most once per period
	scheduler.AddJob("monthly_payroll_run", time.Hour, j.RunMonthlyPayroll)
}

func (j *PayrollJobs) RunMonthlyPayroll(ctx context.Context) error {
	today := j.now().UTC()
	if j.runDay == 0 || today.Day() != j.runDay {
		return nil
	}

	period := payroll.PeriodOf(today).Previous()

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.lastRun == period {
		return nil
	}

	slog.Info("cron: starting monthly payroll run", "period", period.String())

	resp, err := j.payrollService.RunBatchPayroll(ctx, payroll.RunBatchRequest{
		Period: period,
		Actor:  SystemActor,
	})
	if errors.Is(err, payroll.ErrBatchInProgress) {
		slog.Info("cron: payroll run already in progress elsewhere", "period", period.String())
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run payroll for %s: %w", period, err)
	}

	j.lastRun = period
	slog.Info("cron: monthly payroll run finished",
		"period", resp.Period,
		"succeeded", resp.Succeeded,
		"failed", resp.Failed,
	)
	return nil
}
