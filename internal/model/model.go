package model

import (
	"errors"
	"strings"
	"time"
)

// RequirementStatus is the closed set of signing states. Inputs arrive in
// mixed case from older clients; normalize once at the boundary.
type RequirementStatus string

const (
	StatusIncomplete RequirementStatus = "incomplete"
	StatusMissing    RequirementStatus = "missing"
	StatusSigned     RequirementStatus = "signed"
)

var ErrInvalidStatus = errors.New("invalid requirement status")

func NormalizeStatus(value string) (RequirementStatus, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "incomplete":
		return StatusIncomplete, nil
	case "missing":
		return StatusMissing, nil
	case "signed":
		return StatusSigned, nil
	default:
		return "", ErrInvalidStatus
	}
}

// Ledger selects which of the two requirement tables a record lives in.
type Ledger string

const (
	LedgerCourse        Ledger = "course"
	LedgerInstitutional Ledger = "institutional"
)

var ErrInvalidLedger = errors.New("invalid ledger")

func ParseLedger(value string) (Ledger, error) {
	switch value {
	case "course":
		return LedgerCourse, nil
	case "institutional":
		return LedgerInstitutional, nil
	default:
		return "", ErrInvalidLedger
	}
}

type PermitStatus string

const (
	PermitActive  PermitStatus = "active"
	PermitRevoked PermitStatus = "revoked"
	PermitExpired PermitStatus = "expired"
)

type Student struct {
	ID          string
	SchoolID    string
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
	YearLevel   string
	CreatedAt   time.Time
}

type Officer struct {
	ID          string
	SchoolID    string
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
	Role        string
	CreatedAt   time.Time
}

func (o Officer) DisplayName() string {
	return strings.TrimSpace(o.FirstName + " " + o.LastName)
}

// RequirementRecord is one officer's sign-off obligation for one student
// under one requirement definition. The same (studentId, requirementId) pair
// may appear more than once; aggregation treats records as an AND.
type RequirementRecord struct {
	ID            string
	Ledger        Ledger
	StudentID     string
	OfficerID     string
	RequirementID string
	Status        RequirementStatus
	SignedBy      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Permit struct {
	ID         string
	OfficerID  string
	StudentID  string
	PermitCode string
	Status     PermitStatus
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// ClearancePeriod bounds a clearance cycle; once the effective deadline has
// passed, incomplete course-ledger records are swept to missing.
type ClearancePeriod struct {
	ID               string
	SchoolYear       string
	Semester         string
	Deadline         time.Time
	ExtendedDeadline *time.Time
	CreatedAt        time.Time
}

func (p ClearancePeriod) EffectiveDeadline() time.Time {
	if p.ExtendedDeadline != nil {
		return *p.ExtendedDeadline
	}
	return p.Deadline
}
