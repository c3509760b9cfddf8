package employee

import (
	"github.com/shopspring/decimal"
)

type EmploymentStatus string

const (
	EmploymentStatusActive     EmploymentStatus = "active"
	EmploymentStatusInactive   EmploymentStatus = "inactive"
	EmploymentStatusTerminated EmploymentStatus = "terminated"
)

// CompensationProfile is the pay-relevant slice of an employee owned by HR.
type CompensationProfile struct {
	EmployeeID       string
	EmployeeCode     string
	FullName         string
	BaseSalary       decimal.Decimal
	EmploymentStatus EmploymentStatus
}

func (p CompensationProfile) IsActive() bool {
	return p.EmploymentStatus == EmploymentStatusActive
}
