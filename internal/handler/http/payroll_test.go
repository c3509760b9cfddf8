package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/auth"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const handlerTestSecret = "test-secret-key-for-jwt"

// fakePayrollService answers each call through the matching function field.
type fakePayrollService struct {
	calculate func(ctx context.Context, req payroll.CalculatePayrollRequest) (payroll.PayrollRecordResponse, error)
	runBatch  func(ctx context.Context, req payroll.RunBatchRequest) (payroll.BatchRunResponse, error)
	approve   func(ctx context.Context, req payroll.TransitionRequest) (payroll.PayrollRecordResponse, error)
	markPaid  func(ctx context.Context, req payroll.MarkPaidRequest) (payroll.PayrollRecordResponse, error)
	cancel    func(ctx context.Context, req payroll.TransitionRequest) (payroll.PayrollRecordResponse, error)
	get       func(ctx context.Context, id string) (payroll.PayrollRecordResponse, error)
	list      func(ctx context.Context, filter payroll.PayrollFilter) (payroll.ListPayrollRecordResponse, error)
	summary   func(ctx context.Context, period payroll.Period) (payroll.PayrollSummaryResponse, error)
	export    func(ctx context.Context, period payroll.Period) (*bytes.Buffer, string, error)
}

func (f *fakePayrollService) CalculatePayroll(ctx context.Context, req payroll.CalculatePayrollRequest) (payroll.PayrollRecordResponse, error) {
	return f.calculate(ctx, req)
}

func (f *fakePayrollService) RunBatchPayroll(ctx context.Context, req payroll.RunBatchRequest) (payroll.BatchRunResponse, error) {
	return f.runBatch(ctx, req)
}

func (f *fakePayrollService) ApprovePayroll(ctx context.Context, req payroll.TransitionRequest) (payroll.PayrollRecordResponse, error) {
	return f.approve(ctx, req)
}

func (f *fakePayrollService) MarkPaid(ctx context.Context, req payroll.MarkPaidRequest) (payroll.PayrollRecordResponse, error) {
	return f.markPaid(ctx, req)
}

func (f *fakePayrollService) CancelPayroll(ctx context.Context, req payroll.TransitionRequest) (payroll.PayrollRecordResponse, error) {
	return f.cancel(ctx, req)
}

func (f *fakePayrollService) GetPayrollRecord(ctx context.Context, id string) (payroll.PayrollRecordResponse, error) {
	return f.get(ctx, id)
}

func (f *fakePayrollService) ListPayrollRecords(ctx context.Context, filter payroll.PayrollFilter) (payroll.ListPayrollRecordResponse, error) {
	return f.list(ctx, filter)
}

func (f *fakePayrollService) GetPayrollSummary(ctx context.Context, period payroll.Period) (payroll.PayrollSummaryResponse, error) {
	return f.summary(ctx, period)
}

func (f *fakePayrollService) ExportPayrollRegister(ctx context.Context, period payroll.Period) (*bytes.Buffer, string, error) {
	return f.export(ctx, period)
}

type testServer struct {
	t   *testing.T
	srv http.Handler
	jwt jwt.Service
}

func newTestServer(t *testing.T, svc *fakePayrollService) *testServer {
	jwtService := jwt.NewJWTService(handlerTestSecret, "1h")
	router := NewRouter(RouterOptions{Env: "test"}, jwtService, NewPayrollHandler(svc))
	return &testServer{t: t, srv: router, jwt: jwtService}
}

func (s *testServer) do(method, path string, body any, userID string, role auth.Role) *httptest.ResponseRecorder {
	s.t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, _, err := s.jwt.GenerateAccessToken(userID, role)
		require.NoError(s.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.srv.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	} `json:"error"`
	Meta *struct {
		Page       int   `json:"page"`
		TotalItems int64 `json:"total_items"`
		TotalPages int   `json:"total_pages"`
	} `json:"meta"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestCalculatePayroll_UsesTokenActor(t *testing.T) {
	var got payroll.CalculatePayrollRequest
	svc := &fakePayrollService{
		calculate: func(_ context.Context, req payroll.CalculatePayrollRequest) (payroll.PayrollRecordResponse, error) {
			got = req
			return payroll.PayrollRecordResponse{ID: "rec-1", Status: "calculated"}, nil
		},
	}
	s := newTestServer(t, svc)

	rec := s.do(http.MethodPost, "/api/v1/payroll/records/calculate",
		`{"employee_id":"emp-1","period":"2024-04","bonus":"500"}`, "officer-1", auth.RolePayrollOfficer)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "officer-1", got.Actor)
	assert.Equal(t, "emp-1", got.EmployeeID)
	assert.Equal(t, "2024-04", got.Period.String())
	require.NotNil(t, got.Bonus)
	assert.Equal(t, "500", got.Bonus.String())

	env := decode(t, rec)
	assert.True(t, env.Success)
	assert.JSONEq(t, `"rec-1"`, string(mustField(t, env.Data, "id")))
}

func mustField(t *testing.T, raw json.RawMessage, key string) json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &m))
	v, ok := m[key]
	require.True(t, ok, "missing field %s", key)
	return v
}

func TestCalculatePayroll_BadInput(t *testing.T) {
	s := newTestServer(t, &fakePayrollService{})

	rec := s.do(http.MethodPost, "/api/v1/payroll/records/calculate", `{"employee_id":`, "officer-1", auth.RolePayrollOfficer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/payroll/records/calculate", `{"employee_id":"e1","period":"2024-13"}`, "officer-1", auth.RolePayrollOfficer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PERIOD", decode(t, rec).Error.Code)
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t, &fakePayrollService{})

	rec := s.do(http.MethodGet, "/api/v1/payroll/records/rec-1", nil, "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	other := jwt.NewJWTService("another-secret", "1h")
	token, _, err := other.GenerateAccessToken("user-1", auth.RoleAdmin)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payroll/records/rec-1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	s.srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	for _, userID := range []any{"", "   ", 42} {
		_, blank, err := s.jwt.JWTAuth().Encode(map[string]interface{}{
			"user_id": userID,
			"role":    string(auth.RoleAdmin),
			"type":    jwt.TokenTypeAccess,
			"exp":     time.Now().Add(time.Hour).Unix(),
		})
		require.NoError(t, err)
		req = httptest.NewRequest(http.MethodGet, "/api/v1/payroll/records/rec-1", nil)
		req.Header.Set("Authorization", "Bearer "+blank)
		rec = httptest.NewRecorder()
		s.srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "user_id %v", userID)
		assert.Equal(t, "UNAUTHORIZED", decode(t, rec).Error.Code)
	}
}

func TestApprovePayroll_RequiresSettlementRole(t *testing.T) {
	var got payroll.TransitionRequest
	svc := &fakePayrollService{
		approve: func(_ context.Context, req payroll.TransitionRequest) (payroll.PayrollRecordResponse, error) {
			got = req
			return payroll.PayrollRecordResponse{ID: req.RecordID, Status: "approved"}, nil
		},
	}
	s := newTestServer(t, svc)

	rec := s.do(http.MethodPost, "/api/v1/payroll/records/rec-1/approve", nil, "officer-1", auth.RolePayrollOfficer)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/payroll/records/rec-1/approve", nil, "manager-1", auth.RolePayrollManager)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, payroll.TransitionRequest{RecordID: "rec-1", Actor: "manager-1"}, got)
}

func TestLifecycleErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"invalid transition", &payroll.StateTransitionError{RecordID: "rec-1", From: payroll.PayrollStatusPaid, To: payroll.PayrollStatusCancelled}, http.StatusConflict, "INVALID_STATE_TRANSITION"},
		{"not found", fmt.Errorf("%w: rec-1", payroll.ErrPayrollRecordNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"conflict", payroll.ErrPersistenceConflict, http.StatusConflict, "PERSISTENCE_CONFLICT"},
		{"unexpected", fmt.Errorf("boom"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakePayrollService{
				cancel: func(context.Context, payroll.TransitionRequest) (payroll.PayrollRecordResponse, error) {
					return payroll.PayrollRecordResponse{}, tt.err
				},
			}
			s := newTestServer(t, svc)

			rec := s.do(http.MethodPost, "/api/v1/payroll/records/rec-1/cancel", nil, "admin-1", auth.RoleAdmin)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantErr, decode(t, rec).Error.Code)
		})
	}
}

func TestMarkPaid_PassesPaymentDetails(t *testing.T) {
	var got payroll.MarkPaidRequest
	svc := &fakePayrollService{
		markPaid: func(_ context.Context, req payroll.MarkPaidRequest) (payroll.PayrollRecordResponse, error) {
			got = req
			if err := req.Validate(); err != nil {
				return payroll.PayrollRecordResponse{}, err
			}
			return payroll.PayrollRecordResponse{ID: req.RecordID, Status: "paid"}, nil
		},
	}
	s := newTestServer(t, svc)

	rec := s.do(http.MethodPost, "/api/v1/payroll/records/rec-1/pay",
		map[string]string{"payment_method": "bank_transfer"}, "manager-1", auth.RolePayrollManager)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "is required", decode(t, rec).Error.Details["payment_reference"])

	rec = s.do(http.MethodPost, "/api/v1/payroll/records/rec-1/pay",
		map[string]string{"payment_method": "bank_transfer", "payment_reference": "TRX-1"}, "manager-1", auth.RolePayrollManager)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "rec-1", got.RecordID)
	assert.Equal(t, "manager-1", got.Actor)
	assert.Equal(t, "TRX-1", got.PaymentReference)
}

func TestRunBatchPayroll(t *testing.T) {
	svc := &fakePayrollService{
		runBatch: func(_ context.Context, req payroll.RunBatchRequest) (payroll.BatchRunResponse, error) {
			assert.Equal(t, []string{"e1", "e2"}, req.EmployeeIDs)
			assert.Equal(t, "officer-1", req.Actor)
			return payroll.BatchRunResponse{
				Period: req.Period.String(), Total: 2, Succeeded: 1, Failed: 1,
				Results: []payroll.BatchItemResult{
					{EmployeeID: "e1", Record: &payroll.PayrollRecordResponse{ID: "r1"}},
					{EmployeeID: "e2", Error: &payroll.BatchItemError{Code: "MISSING_COMPENSATION_PROFILE", Message: "missing"}},
				},
			}, nil
		},
	}
	s := newTestServer(t, svc)

	rec := s.do(http.MethodPost, "/api/v1/payroll/runs",
		map[string]any{"period": "2024-04", "employee_ids": []string{"e1", "e2"}}, "officer-1", auth.RolePayrollOfficer)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body payroll.BatchRunResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &body))
	assert.Equal(t, 1, body.Failed)
	assert.Equal(t, "MISSING_COMPENSATION_PROFILE", body.Results[1].Error.Code)
}

func TestRunBatchPayroll_InProgress(t *testing.T) {
	svc := &fakePayrollService{
		runBatch: func(context.Context, payroll.RunBatchRequest) (payroll.BatchRunResponse, error) {
			return payroll.BatchRunResponse{}, payroll.ErrBatchInProgress
		},
	}
	s := newTestServer(t, svc)

	rec := s.do(http.MethodPost, "/api/v1/payroll/runs", map[string]any{"period": "2024-04"}, "officer-1", auth.RolePayrollOfficer)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "BATCH_IN_PROGRESS", decode(t, rec).Error.Code)
}

func TestListPayrollRecords_ParsesFilter(t *testing.T) {
	var got payroll.PayrollFilter
	svc := &fakePayrollService{
		list: func(_ context.Context, filter payroll.PayrollFilter) (payroll.ListPayrollRecordResponse, error) {
			got = filter
			return payroll.ListPayrollRecordResponse{
				Data:       []payroll.PayrollRecordResponse{{ID: "r1"}},
				TotalCount: 41, Page: 2, Limit: 20,
			}, nil
		},
	}
	s := newTestServer(t, svc)

	rec := s.do(http.MethodGet, "/api/v1/payroll/records?period=2024-04&status=approved&employee_id=e1&page=2&limit=20&sort_by=net_salary&sort_order=desc",
		nil, "officer-1", auth.RolePayrollOfficer)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, got.Period)
	assert.Equal(t, "2024-04", got.Period.String())
	assert.Equal(t, "approved", *got.Status)
	assert.Equal(t, "e1", *got.EmployeeID)
	assert.Equal(t, 2, got.Page)
	assert.Equal(t, "net_salary", got.SortBy)

	env := decode(t, rec)
	require.NotNil(t, env.Meta)
	assert.Equal(t, int64(41), env.Meta.TotalItems)
	assert.Equal(t, 3, env.Meta.TotalPages)
}

func TestListPayrollRecords_ValidationError(t *testing.T) {
	svc := &fakePayrollService{
		list: func(_ context.Context, filter payroll.PayrollFilter) (payroll.ListPayrollRecordResponse, error) {
			return payroll.ListPayrollRecordResponse{}, validator.ValidationErrors{{Field: "status", Message: "must be one of: calculated, approved, paid, cancelled"}}
		},
	}
	s := newTestServer(t, svc)

	rec := s.do(http.MethodGet, "/api/v1/payroll/records?status=draft", nil, "officer-1", auth.RolePayrollOfficer)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode(t, rec).Error.Details, "status")
}

func TestGetPayrollSummary(t *testing.T) {
	svc := &fakePayrollService{
		summary: func(_ context.Context, period payroll.Period) (payroll.PayrollSummaryResponse, error) {
			return payroll.PayrollSummaryResponse{Period: period.String(), TotalRecords: 3}, nil
		},
	}
	s := newTestServer(t, svc)

	rec := s.do(http.MethodGet, "/api/v1/payroll/summary", nil, "officer-1", auth.RolePayrollOfficer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/payroll/summary?period=2024-04", nil, "officer-1", auth.RolePayrollOfficer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"2024-04"`, string(mustField(t, decode(t, rec).Data, "period")))
}

func TestExportPayrollRegister(t *testing.T) {
	svc := &fakePayrollService{
		export: func(_ context.Context, period payroll.Period) (*bytes.Buffer, string, error) {
			return bytes.NewBufferString("xlsx-bytes"), "payroll_register_" + period.String() + ".xlsx", nil
		},
	}
	s := newTestServer(t, svc)

	rec := s.do(http.MethodGet, "/api/v1/payroll/export?period=2024-04", nil, "officer-1", auth.RolePayrollOfficer)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="payroll_register_2024-04.xlsx"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "xlsx-bytes", rec.Body.String())
}
