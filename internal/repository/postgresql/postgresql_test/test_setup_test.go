package postgresql_test

import (
	"context"
	"fmt"
	"os"

	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
)

// TestDatabaseSetup holds a migrated connection to the integration database.
type TestDatabaseSetup struct {
	DB *database.DB
}

// NewTestDatabase connects to TEST_DATABASE_URL and applies migrations. It
// returns nil without error when the variable is unset.
func NewTestDatabase(ctx context.Context) (*TestDatabaseSetup, error) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		return nil, nil
	}

	db, err := database.NewPostgreSQLDB(ctx, dsn, database.PoolOptions{MaxConns: 10})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}
	if err := database.RunMigrations(dsn); err != nil {
		db.Close()
		return nil, err
	}

	return &TestDatabaseSetup{DB: db}, nil
}

// TruncateAllTables removes every row the tests may have written.
func (t *TestDatabaseSetup) TruncateAllTables(ctx context.Context) error {
	tx, err := t.DB.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tables := []string{
		"payroll_records",
		"attendances",
		"employees",
	}

	for _, table := range tables {
		_, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		if err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return tx.Commit(ctx)
}

// SeedEmployee inserts an employee and returns its id. A nil salary leaves
// the compensation profile incomplete.
func (t *TestDatabaseSetup) SeedEmployee(ctx context.Context, code string, baseSalary *string, status string) (string, error) {
	var id string
	err := t.DB.QueryRow(ctx, `
		INSERT INTO employees (employee_code, full_name, base_salary, employment_status)
		VALUES ($1, $2, $3::numeric, $4)
		RETURNING id
	`, code, "Employee "+code, baseSalary, status).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to seed employee %s: %w", code, err)
	}
	return id, nil
}

// SeedAttendance inserts one ledger row; hours may be nil.
func (t *TestDatabaseSetup) SeedAttendance(ctx context.Context, employeeID, date, status string, hours *string, late bool) error {
	_, err := t.DB.Exec(ctx, `
		INSERT INTO attendances (employee_id, date, status, worked_hours, is_late)
		VALUES ($1, $2::date, $3, $4::numeric, $5)
	`, employeeID, date, status, hours, late)
	if err != nil {
		return fmt.Errorf("failed to seed attendance %s %s: %w", employeeID, date, err)
	}
	return nil
}

// Close closes the database connection
func (t *TestDatabaseSetup) Close() {
	t.DB.Close()
}
