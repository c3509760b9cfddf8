package payroll

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var (
	april2024 = payroll.Period{Year: 2024, Month: time.April}
	fixedNow  = time.Date(2024, time.May, 2, 9, 30, 0, 0, time.UTC)
)

type fakeTxManager struct {
	mu    sync.Mutex
	calls int
	// afterCommit runs once fn succeeds.
	afterCommit func()
}

func (f *fakeTxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if err := fn(ctx); err != nil {
		return err
	}
	if f.afterCommit != nil {
		f.afterCommit()
	}
	return nil
}

// memoryPayrollRepo keeps records in memory and enforces the live-record key.
type memoryPayrollRepo struct {
	mu      sync.Mutex
	records map[string]payroll.PayrollRecord

	createErrs []error
	creates    int
	updates    int
}

func newMemoryPayrollRepo() *memoryPayrollRepo {
	return &memoryPayrollRepo{records: make(map[string]payroll.PayrollRecord)}
}

func (r *memoryPayrollRepo) CreatePayrollRecord(ctx context.Context, record payroll.PayrollRecord) (payroll.PayrollRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.createErrs) > 0 {
		err := r.createErrs[0]
		r.createErrs = r.createErrs[1:]
		return payroll.PayrollRecord{}, err
	}
	for _, existing := range r.records {
		if existing.EmployeeID == record.EmployeeID && existing.Period == record.Period &&
			existing.Status != payroll.PayrollStatusCancelled {
			return payroll.PayrollRecord{}, payroll.ErrPersistenceConflict
		}
	}
	r.creates++
	r.records[record.ID] = record
	return record, nil
}

func (r *memoryPayrollRepo) GetPayrollRecordByID(ctx context.Context, id string) (payroll.PayrollRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok {
		return payroll.PayrollRecord{}, payroll.ErrPayrollRecordNotFound
	}
	return record, nil
}

func (r *memoryPayrollRepo) LockPayrollRecordByID(ctx context.Context, id string) (payroll.PayrollRecord, error) {
	return r.GetPayrollRecordByID(ctx, id)
}

func (r *memoryPayrollRepo) LockLivePayrollRecord(ctx context.Context, employeeID string, period payroll.Period) (payroll.PayrollRecord, error) {
	return r.GetLivePayrollRecord(ctx, employeeID, period)
}

func (r *memoryPayrollRepo) GetLivePayrollRecord(ctx context.Context, employeeID string, period payroll.Period) (payroll.PayrollRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, record := range r.records {
		if record.EmployeeID == employeeID && record.Period == period && record.Status != payroll.PayrollStatusCancelled {
			return record, nil
		}
	}
	return payroll.PayrollRecord{}, payroll.ErrPayrollRecordNotFound
}

func (r *memoryPayrollRepo) UpdateSettlement(ctx context.Context, record payroll.PayrollRecord) (payroll.PayrollRecord, error) {
	return r.update(record)
}

func (r *memoryPayrollRepo) UpdateStatus(ctx context.Context, record payroll.PayrollRecord) (payroll.PayrollRecord, error) {
	return r.update(record)
}

func (r *memoryPayrollRepo) update(record payroll.PayrollRecord) (payroll.PayrollRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[record.ID]; !ok {
		return payroll.PayrollRecord{}, payroll.ErrPayrollRecordNotFound
	}
	r.updates++
	r.records[record.ID] = record
	return record, nil
}

func (r *memoryPayrollRepo) ListPayrollRecords(ctx context.Context, filter payroll.PayrollFilter) ([]payroll.PayrollRecord, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []payroll.PayrollRecord
	for _, record := range r.records {
		if filter.Period != nil && record.Period != *filter.Period {
			continue
		}
		if filter.Status != nil && string(record.Status) != *filter.Status {
			continue
		}
		if filter.EmployeeID != nil && record.EmployeeID != *filter.EmployeeID {
			continue
		}
		matched = append(matched, record)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].EmployeeID < matched[j].EmployeeID })

	total := int64(len(matched))
	start := (filter.Page - 1) * filter.Limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *memoryPayrollRepo) GetPayrollSummary(ctx context.Context, period payroll.Period) (payroll.PayrollSummaryResponse, error) {
	return payroll.PayrollSummaryResponse{Period: period.String()}, nil
}

func (r *memoryPayrollRepo) byStatus(status payroll.PayrollStatus) []payroll.PayrollRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []payroll.PayrollRecord
	for _, record := range r.records {
		if record.Status == status {
			out = append(out, record)
		}
	}
	return out
}

type fakeProfileRepo struct {
	profiles  map[string]employee.CompensationProfile
	activeIDs []string
}

func (f *fakeProfileRepo) GetCompensationProfile(ctx context.Context, employeeID string) (employee.CompensationProfile, error) {
	profile, ok := f.profiles[employeeID]
	if !ok {
		return employee.CompensationProfile{}, employee.ErrEmployeeNotFound
	}
	return profile, nil
}

func (f *fakeProfileRepo) ListActiveEmployees(ctx context.Context) ([]string, error) {
	return f.activeIDs, nil
}

type fakeLedger struct {
	mu   sync.Mutex
	rows map[string][]attendance.AttendanceRecord
}

func (f *fakeLedger) GetAttendance(ctx context.Context, employeeID string, from, to time.Time) ([]attendance.AttendanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []attendance.AttendanceRecord
	for _, row := range f.rows[employeeID] {
		if !row.Date.Before(from) && row.Date.Before(to) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeLedger) set(employeeID string, rows []attendance.AttendanceRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[employeeID] = rows
}

type fakePublisher struct {
	mu      sync.Mutex
	events  []payroll.Event
	err     error
	block   bool
	ctxErrs []error
}

// Publish waits for ctx to end when block is set, like a stalled broker.
func (f *fakePublisher) Publish(ctx context.Context, event payroll.Event) error {
	if f.block {
		<-ctx.Done()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	return f.err
}

func (f *fakePublisher) types() []payroll.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []payroll.EventType
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	released []string
}

func (f *fakeLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.held[key] {
		return nil, payroll.ErrBatchInProgress
	}
	f.held[key] = true
	return func(context.Context) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.held, key)
		f.released = append(f.released, key)
		return nil
	}, nil
}

type testEnv struct {
	svc       *PayrollServiceImpl
	tx        *fakeTxManager
	repo      *memoryPayrollRepo
	profiles  *fakeProfileRepo
	ledger    *fakeLedger
	publisher *fakePublisher
	locker    *fakeLocker
}

func newTestEnv(t *testing.T, policy payroll.Policy) *testEnv {
	t.Helper()

	env := &testEnv{
		tx:        &fakeTxManager{},
		repo:      newMemoryPayrollRepo(),
		profiles:  &fakeProfileRepo{profiles: make(map[string]employee.CompensationProfile)},
		ledger:    &fakeLedger{rows: make(map[string][]attendance.AttendanceRecord)},
		publisher: &fakePublisher{},
		locker:    &fakeLocker{held: make(map[string]bool)},
	}
	env.svc = newPayrollService(env.tx, env.repo, env.profiles, env.ledger, env.publisher, env.locker, Config{
		Policy:  policy,
		Retry:   RetryPolicy{MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond},
		Workers: 2,
	})
	env.svc.now = func() time.Time { return fixedNow }
	return env
}

func (e *testEnv) addEmployee(id, baseSalary string, rows []attendance.AttendanceRecord) {
	e.profiles.profiles[id] = employee.CompensationProfile{
		EmployeeID:       id,
		EmployeeCode:     "EMP-" + id,
		FullName:         "Employee " + id,
		BaseSalary:       decimal.RequireFromString(baseSalary),
		EmploymentStatus: employee.EmploymentStatusActive,
	}
	e.profiles.activeIDs = append(e.profiles.activeIDs, id)
	e.ledger.set(id, rows)
}

func hoursPtr(h string) *decimal.Decimal {
	d := decimal.RequireFromString(h)
	return &d
}

func decimalPtr(v string) *decimal.Decimal {
	return hoursPtr(v)
}

// scenarioLedger builds April 2024 (22 working days): 20 present days of
// 8.4 hours with the first one late, and the last two working days absent.
func scenarioLedger(employeeID string) []attendance.AttendanceRecord {
	policy := payroll.DefaultPolicy()
	var rows []attendance.AttendanceRecord
	present := 0
	for day := april2024.Start(); day.Before(april2024.End()); day = day.AddDate(0, 0, 1) {
		if !policy.IsWorkingDay(day) {
			continue
		}
		row := attendance.AttendanceRecord{EmployeeID: employeeID, Date: day}
		if present < 20 {
			row.PresenceState = attendance.PresenceStatePresent
			row.WorkedHours = hoursPtr("8.4")
			row.IsLate = present == 0
			present++
		} else {
			row.PresenceState = attendance.PresenceStateAbsent
		}
		rows = append(rows, row)
	}
	return rows
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got), "%s: want %s, got %s", field, want, got)
}
