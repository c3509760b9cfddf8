package postgresql

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type employeeRepositoryImpl struct {
	db *database.DB
}

func NewEmployeeRepository(db *database.DB) employee.ProfileRepository {
	return &employeeRepositoryImpl{db: db}
}

// GetCompensationProfile implements employee.ProfileRepository. An employee
// without a base salary has no compensation profile.
func (e *employeeRepositoryImpl) GetCompensationProfile(ctx context.Context, employeeID string) (employee.CompensationProfile, error) {
	if _, err := uuid.Parse(employeeID); err != nil {
		return employee.CompensationProfile{}, employee.ErrEmployeeNotFound
	}

	q := GetQuerier(ctx, e.db)

	query := `
		SELECT id, employee_code, full_name, base_salary, employment_status
		FROM employees
		WHERE id = $1 AND deleted_at IS NULL
	`

	var (
		found      employee.CompensationProfile
		baseSalary *decimal.Decimal
	)
	err := q.QueryRow(ctx, query, employeeID).Scan(
		&found.EmployeeID, &found.EmployeeCode, &found.FullName, &baseSalary, &found.EmploymentStatus,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return employee.CompensationProfile{}, employee.ErrEmployeeNotFound
		}
		return employee.CompensationProfile{}, fmt.Errorf("failed to get compensation profile: %w", err)
	}
	if baseSalary == nil {
		return employee.CompensationProfile{}, employee.ErrEmployeeNotFound
	}
	found.BaseSalary = *baseSalary

	return found, nil
}

// ListActiveEmployees implements employee.ProfileRepository.
func (e *employeeRepositoryImpl) ListActiveEmployees(ctx context.Context) ([]string, error) {
	q := GetQuerier(ctx, e.db)

	query := `
		SELECT id
		FROM employees
		WHERE employment_status = $1 AND deleted_at IS NULL
		ORDER BY employee_code
	`

	rows, err := q.Query(ctx, query, employee.EmploymentStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list active employees: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan employee id: %w", err)
		}
		ids = append(ids, id)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}
