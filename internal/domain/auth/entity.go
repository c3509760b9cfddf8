package auth

import "fmt"

// Role is carried in the access token's "role" claim.
type Role string

const (
	RoleAdmin          Role = "admin"
	RolePayrollManager Role = "payroll_manager"
	RolePayrollOfficer Role = "payroll_officer"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAdmin, RolePayrollManager, RolePayrollOfficer:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// CanSettle reports whether the role may approve, pay or cancel payroll records.
func (r Role) CanSettle() bool {
	return r == RoleAdmin || r == RolePayrollManager
}
