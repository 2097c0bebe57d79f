package clearance

import (
	"context"
	"errors"

	"registrar/clearance/internal/model"
)

// PermitDetails is the verification result shown to scanning staff.
type PermitDetails struct {
	Permit  model.Permit
	Student model.Student
	Officer model.Officer
}

// Verify validates a presented credential against current permit state.
// Token validity is necessary but not sufficient: revocation works by
// mutating the row, which stale-but-unexpired tokens must still respect, so
// the row's status and expiry are checked independently of the claims.
func (s *Service) Verify(ctx context.Context, token string) (PermitDetails, error) {
	if token == "" {
		return PermitDetails{}, ErrValidation
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return PermitDetails{}, ErrInvalidToken
	}

	permit, err := s.store.GetPermit(ctx, claims.PermitID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return PermitDetails{}, ErrPermitNotFound
		}
		return PermitDetails{}, err
	}
	if permit.Status != model.PermitActive {
		return PermitDetails{}, ErrPermitNotActive
	}
	// Row-level expiry guards against claim skew and a lagging expiry sweep.
	if s.now().After(permit.ExpiresAt) {
		return PermitDetails{}, ErrPermitExpired
	}

	student, err := s.store.GetStudent(ctx, permit.StudentID)
	if err != nil {
		return PermitDetails{}, err
	}
	officer, err := s.store.GetOfficer(ctx, permit.OfficerID)
	if err != nil {
		return PermitDetails{}, err
	}
	return PermitDetails{Permit: permit, Student: student, Officer: officer}, nil
}
