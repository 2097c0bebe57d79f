package clearance

import (
	"time"

	"registrar/clearance/internal/model"
)

// Event payloads carry enough identifying keys for an observer to reconcile
// its cached view without a follow-up fetch. The coId key matches what the
// frontend already consumes.

type RequirementEventPayload struct {
	RecordID      string `json:"recordId"`
	Ledger        string `json:"ledger"`
	StudentID     string `json:"studentId"`
	OfficerID     string `json:"coId"`
	RequirementID string `json:"requirementId"`
	Status        string `json:"status"`
	SignedBy      string `json:"signedBy,omitempty"`
	Timestamp     string `json:"timestamp"`
}

type PermitIssuedPayload struct {
	PermitID   string `json:"permitId"`
	PermitCode string `json:"permitCode"`
	StudentID  string `json:"studentId"`
	OfficerID  string `json:"coId"`
	ExpiresAt  string `json:"expiresAt"`
	Timestamp  string `json:"timestamp"`
}

type PermitRevokedPayload struct {
	PermitID  string `json:"permitId,omitempty"`
	StudentID string `json:"studentId"`
	Reason    string `json:"reason"`
	RevokedBy string `json:"revokedBy,omitempty"`
	Count     int64  `json:"count,omitempty"`
	Timestamp string `json:"timestamp"`
}

func (s *Service) requirementPayload(record model.RequirementRecord) RequirementEventPayload {
	return RequirementEventPayload{
		RecordID:      record.ID,
		Ledger:        string(record.Ledger),
		StudentID:     record.StudentID,
		OfficerID:     record.OfficerID,
		RequirementID: record.RequirementID,
		Status:        string(record.Status),
		SignedBy:      record.SignedBy,
		Timestamp:     s.now().Format(time.RFC3339),
	}
}
