package clearance

import (
	"context"
	"errors"
	"time"

	"registrar/clearance/internal/events"
	"registrar/clearance/internal/model"
)

// Revoke is the explicit officer-initiated early revocation of one permit.
func (s *Service) Revoke(ctx context.Context, permitID, revokedBy string) (model.Permit, error) {
	if permitID == "" {
		return model.Permit{}, ErrValidation
	}
	permit, err := s.store.GetPermit(ctx, permitID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.Permit{}, ErrPermitNotFound
		}
		return model.Permit{}, err
	}

	unlock := s.locks.lock(permit.StudentID)
	defer unlock()

	count, err := s.store.SetPermitStatus(ctx, permitID, model.PermitRevoked)
	if err != nil {
		return model.Permit{}, err
	}
	permit.Status = model.PermitRevoked
	if count > 0 {
		s.publish(ctx, events.TopicPermitRevoked, PermitRevokedPayload{
			StudentID: permit.StudentID,
			PermitID:  permit.ID,
			Reason:    "officer_revoked",
			RevokedBy: revokedBy,
			Count:     count,
			Timestamp: s.now().Format(time.RFC3339),
		})
		if student, err := s.store.GetStudent(ctx, permit.StudentID); err == nil {
			s.notifier.PermitRevoked(student, "officer_revoked")
		}
	}
	return permit, nil
}

// ReconcileRevocations is the out-of-band sweep behind the revocation
// trigger: it revokes active permits of any student whose ledgers have
// drifted out of the all-signed state, catching trigger failures.
func (s *Service) ReconcileRevocations(ctx context.Context) (int64, error) {
	students, err := s.store.RevokeOutOfSyncPermits(ctx)
	if err != nil {
		return 0, err
	}
	for _, studentID := range students {
		s.publish(ctx, events.TopicPermitRevoked, PermitRevokedPayload{
			StudentID: studentID,
			Reason:    "requirement_unsigned",
			Timestamp: s.now().Format(time.RFC3339),
		})
	}
	return int64(len(students)), nil
}
