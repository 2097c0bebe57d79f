package clearance

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"registrar/clearance/internal/events"
	"registrar/clearance/internal/model"
	"registrar/clearance/internal/qr"
)

// IssuedPermit bundles the permit row with its credential and renderable.
type IssuedPermit struct {
	Permit  model.Permit
	Token   string
	QRURL   string
	QRImage string
}

// Issue runs the issuance state machine for one student. The eligibility
// re-check, the officer's self-sign and the permit insert share one
// transaction with the ledger rows locked, so a concurrent unsign cannot
// slip between the aggregate read and the permit write. The per-student lock
// additionally serializes against the revocation trigger.
func (s *Service) Issue(ctx context.Context, officerID, studentID string) (IssuedPermit, error) {
	if officerID == "" || studentID == "" {
		return IssuedPermit{}, ErrValidation
	}

	officer, err := s.store.GetOfficer(ctx, officerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return IssuedPermit{}, ErrOfficerNotFound
		}
		return IssuedPermit{}, err
	}
	if !strings.EqualFold(officer.Role, IssuerRole) {
		return IssuedPermit{}, ErrNotAuthorized
	}

	student, err := s.store.GetStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return IssuedPermit{}, ErrStudentNotFound
		}
		return IssuedPermit{}, err
	}

	unlock := s.locks.lock(studentID)
	defer unlock()

	now := s.now()
	permit := model.Permit{
		ID:         uuid.NewString(),
		OfficerID:  officerID,
		StudentID:  studentID,
		PermitCode: newPermitCode(now),
		Status:     model.PermitActive,
		CreatedAt:  now,
		ExpiresAt:  now.Add(PermitValidity),
	}

	var selfSigned []model.RequirementRecord
	err = s.store.WithTx(ctx, func(tx Store) error {
		unsigned, err := eligibility(ctx, tx, studentID, officerID, true)
		if err != nil {
			return err
		}
		if len(unsigned) > 0 {
			return &NotEligibleError{Unsigned: unsigned}
		}
		if _, err := tx.SignOfficerRequirements(ctx, studentID, officerID, officer.DisplayName()); err != nil {
			return err
		}
		selfSigned, err = tx.ListOfficerRequirements(ctx, studentID, officerID)
		if err != nil {
			return err
		}
		return tx.CreatePermit(ctx, permit)
	})
	if err != nil {
		return IssuedPermit{}, err
	}

	token, err := s.tokens.Mint(permit.ID, officerID, PermitValidity)
	if err != nil {
		return IssuedPermit{}, err
	}
	qrURL := qr.PermitURL(s.frontendBaseURL, token)
	qrImage, err := qr.DataURL(qrURL)
	if err != nil {
		return IssuedPermit{}, err
	}

	for _, record := range selfSigned {
		s.publish(ctx, events.TopicRequirementUpdated, s.requirementPayload(record))
	}
	s.publish(ctx, events.TopicPermitIssued, PermitIssuedPayload{
		PermitID:   permit.ID,
		PermitCode: permit.PermitCode,
		StudentID:  studentID,
		OfficerID:  officerID,
		ExpiresAt:  permit.ExpiresAt.Format(time.RFC3339),
		Timestamp:  s.now().Format(time.RFC3339),
	})
	s.notifier.PermitIssued(student, permit)

	return IssuedPermit{Permit: permit, Token: token, QRURL: qrURL, QRImage: qrImage}, nil
}

// GetStudentPermit re-fetches the most recent active permit and mints a
// fresh credential against it. Any number of tokens may reference one
// permit; all stand or fall with the row.
func (s *Service) GetStudentPermit(ctx context.Context, studentID string) (IssuedPermit, error) {
	if studentID == "" {
		return IssuedPermit{}, ErrValidation
	}
	permit, err := s.store.LatestActivePermit(ctx, studentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return IssuedPermit{}, ErrPermitNotFound
		}
		return IssuedPermit{}, err
	}
	token, err := s.tokens.Mint(permit.ID, permit.OfficerID, PermitValidity)
	if err != nil {
		return IssuedPermit{}, err
	}
	qrURL := qr.PermitURL(s.frontendBaseURL, token)
	qrImage, err := qr.DataURL(qrURL)
	if err != nil {
		return IssuedPermit{}, err
	}
	return IssuedPermit{Permit: permit, Token: token, QRURL: qrURL, QRImage: qrImage}, nil
}

// newPermitCode is unique per issuance with negligible collision odds: a
// millisecond timestamp plus a random suffix, backed by the permit_code
// unique constraint.
func newPermitCode(now time.Time) string {
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	return fmt.Sprintf("PERMIT-%d-%s", now.UnixMilli(), strings.ToUpper(hex.EncodeToString(suffix)))
}
