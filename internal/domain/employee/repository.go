package employee

import "context"

// ProfileRepository reads compensation data from the HR domain.
type ProfileRepository interface {
	GetCompensationProfile(ctx context.Context, employeeID string) (CompensationProfile, error)
	ListActiveEmployees(ctx context.Context) ([]string, error)
}
