package payroll

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"golang.org/x/sync/errgroup"
)

func batchLockKey(period payroll.Period) string {
	return fmt.Sprintf("lock:payroll:run:%s", period)
}

func (s *PayrollServiceImpl) RunBatchPayroll(ctx context.Context, req payroll.RunBatchRequest) (payroll.BatchRunResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.BatchRunResponse{}, err
	}

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, batchLockKey(req.Period), s.lockTTL)
		if err != nil {
			return payroll.BatchRunResponse{}, err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				slog.Warn("failed to release payroll batch lock", "period", req.Period.String(), "error", err)
			}
		}()
	}

	employeeIDs := req.EmployeeIDs
	if len(employeeIDs) == 0 {
		var err error
		employeeIDs, err = s.profileRepo.ListActiveEmployees(ctx)
		if err != nil {
			return payroll.BatchRunResponse{}, fmt.Errorf("failed to list active employees: %w", err)
		}
	}

	start := time.Now()
	results := make([]payroll.BatchItemResult, len(employeeIDs))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, employeeID := range employeeIDs {
		i, employeeID := i, employeeID
		g.Go(func() error {
			results[i] = s.calculateOne(ctx, req, employeeID)
			return nil
		})
	}
	_ = g.Wait()

	resp := payroll.BatchRunResponse{
		Period:  req.Period.String(),
		Total:   len(results),
		Results: results,
	}
	for _, r := range results {
		if r.Err != nil {
			resp.Failed++
		} else {
			resp.Succeeded++
		}
	}

	slog.Info("payroll batch run completed",
		"period", resp.Period,
		"actor", req.Actor,
		"total", resp.Total,
		"succeeded", resp.Succeeded,
		"failed", resp.Failed,
		"duration", time.Since(start),
	)

	return resp, nil
}

// calculateOne isolates one employee: any error becomes part of its result.
func (s *PayrollServiceImpl) calculateOne(ctx context.Context, req payroll.RunBatchRequest, employeeID string) payroll.BatchItemResult {
	result := payroll.BatchItemResult{EmployeeID: employeeID}

	record, err := s.CalculatePayroll(ctx, payroll.CalculatePayrollRequest{
		EmployeeID: employeeID,
		Period:     req.Period,
		Actor:      req.Actor,
	})
	if err != nil {
		slog.Warn("payroll calculation failed in batch",
			"employee_id", employeeID,
			"period", req.Period.String(),
			"error", err,
		)
		result.Err = err
		result.Error = &payroll.BatchItemError{Code: payroll.ErrorCode(err), Message: err.Error()}
		return result
	}

	result.Record = &record
	return result
}
