package payroll

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventPayrollCalculated EventType = "payroll.calculated"
	EventPayrollApproved   EventType = "payroll.approved"
	EventPayrollPaid       EventType = "payroll.paid"
	EventPayrollCancelled  EventType = "payroll.cancelled"
)

// Event is emitted after a payroll record change commits.
type Event struct {
	Type       EventType       `json:"type"`
	RecordID   string          `json:"record_id"`
	EmployeeID string          `json:"employee_id"`
	Period     string          `json:"period"`
	Status     PayrollStatus   `json:"status"`
	Actor      string          `json:"actor"`
	NetSalary  decimal.Decimal `json:"net_salary"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func NewEvent(eventType EventType, record PayrollRecord, actor string, at time.Time) Event {
	return Event{
		Type:       eventType,
		RecordID:   record.ID,
		EmployeeID: record.EmployeeID,
		Period:     record.Period.String(),
		Status:     record.Status,
		Actor:      actor,
		NetSalary:  record.NetSalary,
		OccurredAt: at.UTC(),
	}
}

type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}
