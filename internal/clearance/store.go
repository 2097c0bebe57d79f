package clearance

import (
	"context"
	"time"

	"registrar/clearance/internal/model"
)

// Store is the persistence port for the clearance core. The pgx adapter in
// internal/db implements it; tests use the in-memory implementation in
// internal/storetest. Lookup methods report a missing row as ErrNotFound and
// a unique-key violation as ErrConflict.
type Store interface {
	GetOfficer(ctx context.Context, id string) (model.Officer, error)
	GetStudent(ctx context.Context, id string) (model.Student, error)

	ListRequirements(ctx context.Context, ledger model.Ledger, studentID string) ([]model.RequirementRecord, error)
	// ListRequirementsForUpdate is ListRequirements with row locks held for
	// the duration of the surrounding transaction.
	ListRequirementsForUpdate(ctx context.Context, ledger model.Ledger, studentID string) ([]model.RequirementRecord, error)
	// ListOfficerRequirements returns the officer's own institutional-ledger
	// records for the student.
	ListOfficerRequirements(ctx context.Context, studentID, officerID string) ([]model.RequirementRecord, error)

	// UpdateRequirementStatus mutates every record matching the
	// (studentId, officerId, requirementId) tuple and reports the affected
	// count; zero means the combination is unknown, not an error.
	UpdateRequirementStatus(ctx context.Context, ledger model.Ledger, studentID, officerID, requirementID string, status model.RequirementStatus, signedBy string) (int64, error)
	FindRequirement(ctx context.Context, ledger model.Ledger, studentID, officerID, requirementID string) (model.RequirementRecord, error)
	// SignOfficerRequirements marks all of the officer's institutional
	// records for the student as signed.
	SignOfficerRequirements(ctx context.Context, studentID, officerID, signedBy string) (int64, error)
	DeleteRequirement(ctx context.Context, ledger model.Ledger, recordID string) (model.RequirementRecord, error)

	CreatePermit(ctx context.Context, permit model.Permit) error
	GetPermit(ctx context.Context, id string) (model.Permit, error)
	LatestActivePermit(ctx context.Context, studentID string) (model.Permit, error)
	SetPermitStatus(ctx context.Context, permitID string, status model.PermitStatus) (int64, error)
	RevokeActivePermits(ctx context.Context, studentID string) (int64, error)

	MarkExpiredPermits(ctx context.Context, now time.Time) (int64, error)
	// RevokeOutOfSyncPermits revokes active permits of students with any
	// non-signed record in either ledger and returns the affected students.
	RevokeOutOfSyncPermits(ctx context.Context) ([]string, error)
	MarkMissingPastDeadline(ctx context.Context, now time.Time) (int64, error)

	WithTx(ctx context.Context, fn func(Store) error) error
}
