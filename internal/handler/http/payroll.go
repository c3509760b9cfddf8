package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/middleware"
	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type PayrollHandler interface {
	// Settlement
	CalculatePayroll(w http.ResponseWriter, r *http.Request)
	RunBatchPayroll(w http.ResponseWriter, r *http.Request)

	// Lifecycle
	ApprovePayroll(w http.ResponseWriter, r *http.Request)
	MarkPaid(w http.ResponseWriter, r *http.Request)
	CancelPayroll(w http.ResponseWriter, r *http.Request)

	// Queries
	GetPayrollRecord(w http.ResponseWriter, r *http.Request)
	ListPayrollRecords(w http.ResponseWriter, r *http.Request)
	GetPayrollSummary(w http.ResponseWriter, r *http.Request)
	ExportPayrollRegister(w http.ResponseWriter, r *http.Request)
}

type payrollHandlerImpl struct {
	payrollService payroll.PayrollService
}

func NewPayrollHandler(payrollService payroll.PayrollService) PayrollHandler {
	return &payrollHandlerImpl{payrollService: payrollService}
}

// decodeBody reports a malformed period the same way as other period errors.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, payroll.ErrInvalidPeriod) {
			response.HandleError(w, err)
			return false
		}
		response.BadRequest(w, "Invalid request body", nil)
		return false
	}
	return true
}

// ========== SETTLEMENT ==========

func (h *payrollHandlerImpl) CalculatePayroll(w http.ResponseWriter, r *http.Request) {
	var req payroll.CalculatePayrollRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Actor = middleware.ActorFromContext(r.Context())

	result, err := h.payrollService.CalculatePayroll(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll calculated", result)
}

func (h *payrollHandlerImpl) RunBatchPayroll(w http.ResponseWriter, r *http.Request) {
	var req payroll.RunBatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Actor = middleware.ActorFromContext(r.Context())

	result, err := h.payrollService.RunBatchPayroll(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll run completed", result)
}

// ========== LIFECYCLE ==========

func (h *payrollHandlerImpl) ApprovePayroll(w http.ResponseWriter, r *http.Request) {
	result, err := h.payrollService.ApprovePayroll(r.Context(), payroll.TransitionRequest{
		RecordID: chi.URLParam(r, "id"),
		Actor:    middleware.ActorFromContext(r.Context()),
	})
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll approved", result)
}

func (h *payrollHandlerImpl) MarkPaid(w http.ResponseWriter, r *http.Request) {
	var req payroll.MarkPaidRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.RecordID = chi.URLParam(r, "id")
	req.Actor = middleware.ActorFromContext(r.Context())

	result, err := h.payrollService.MarkPaid(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll marked as paid", result)
}

func (h *payrollHandlerImpl) CancelPayroll(w http.ResponseWriter, r *http.Request) {
	result, err := h.payrollService.CancelPayroll(r.Context(), payroll.TransitionRequest{
		RecordID: chi.URLParam(r, "id"),
		Actor:    middleware.ActorFromContext(r.Context()),
	})
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll cancelled", result)
}

// ========== QUERIES ==========

func (h *payrollHandlerImpl) GetPayrollRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Payroll record ID is required", nil)
		return
	}

	result, err := h.payrollService.GetPayrollRecord(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) ListPayrollRecords(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var filter payroll.PayrollFilter

	if pageStr := query.Get("page"); pageStr != "" {
		if page, err := strconv.Atoi(pageStr); err == nil && page > 0 {
			filter.Page = page
		}
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}
	if periodStr := query.Get("period"); periodStr != "" {
		period, err := payroll.ParsePeriod(periodStr)
		if err != nil {
			response.HandleError(w, err)
			return
		}
		filter.Period = &period
	}
	if status := query.Get("status"); status != "" {
		filter.Status = &status
	}
	if employeeID := query.Get("employee_id"); employeeID != "" {
		filter.EmployeeID = &employeeID
	}
	filter.SortBy = query.Get("sort_by")
	filter.SortOrder = query.Get("sort_order")

	result, err := h.payrollService.ListPayrollRecords(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	totalPages := 0
	if result.Limit > 0 {
		totalPages = int((result.TotalCount + int64(result.Limit) - 1) / int64(result.Limit))
	}
	response.SuccessWithMeta(w, result.Data, &response.Meta{
		Page:       result.Page,
		Limit:      result.Limit,
		TotalItems: result.TotalCount,
		TotalPages: totalPages,
	})
}

func (h *payrollHandlerImpl) GetPayrollSummary(w http.ResponseWriter, r *http.Request) {
	period, ok := periodQuery(w, r)
	if !ok {
		return
	}

	result, err := h.payrollService.GetPayrollSummary(r.Context(), period)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) ExportPayrollRegister(w http.ResponseWriter, r *http.Request) {
	period, ok := periodQuery(w, r)
	if !ok {
		return
	}

	buf, filename, err := h.payrollService.ExportPayrollRegister(r.Context(), period)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.File(w, xlsxContentType, filename, buf)
}

func periodQuery(w http.ResponseWriter, r *http.Request) (payroll.Period, bool) {
	raw := r.URL.Query().Get("period")
	if raw == "" {
		response.BadRequest(w, "period query parameter is required", map[string]string{"period": "is required"})
		return payroll.Period{}, false
	}
	period, err := payroll.ParsePeriod(raw)
	if err != nil {
		response.HandleError(w, err)
		return payroll.Period{}, false
	}
	return period, true
}
