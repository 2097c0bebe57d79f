package clearance

import (
	"errors"
	"fmt"

	"registrar/clearance/internal/model"
)

// Sentinel errors let the transport layer map core outcomes to status codes
// without string matching. Each verification failure is distinct because each
// implies a different remedy for the person holding the permit.
var (
	ErrValidation          = errors.New("invalid input")
	ErrNotFound            = errors.New("not found")
	ErrOfficerNotFound     = errors.New("clearing officer not found")
	ErrStudentNotFound     = errors.New("student not found")
	ErrRequirementNotFound = errors.New("requirement record not found")
	ErrPermitNotFound      = errors.New("permit not found")
	ErrNotAuthorized       = errors.New("officer is not authorized to issue permits")
	ErrInvalidToken        = errors.New("invalid or expired permit token")
	ErrPermitNotActive     = errors.New("permit is revoked or inactive")
	ErrPermitExpired       = errors.New("permit has expired")
	ErrConflict            = errors.New("duplicate record")
)

// UnsignedRequirement identifies one record that still blocks issuance.
type UnsignedRequirement struct {
	RecordID      string                  `json:"recordId"`
	Ledger        model.Ledger            `json:"ledger"`
	RequirementID string                  `json:"requirementId"`
	OfficerID     string                  `json:"coId"`
	Status        model.RequirementStatus `json:"status"`
}

// NotEligibleError carries the itemized unsigned records so callers can show
// the student exactly what is still pending.
type NotEligibleError struct {
	Unsigned []UnsignedRequirement
}

func (e *NotEligibleError) Error() string {
	return fmt.Sprintf("not all requirements are signed (%d pending)", len(e.Unsigned))
}
