package clearance

import (
	"context"

	"registrar/clearance/internal/model"
)

// CanIssuePermit answers "is everyone other than the issuing officer done".
// The issuer's own institutional records are excluded because issuance signs
// them as a side effect; they are not a precondition. Callers must have
// already checked the officer's role.
func (s *Service) CanIssuePermit(ctx context.Context, studentID, officerID string) (bool, []UnsignedRequirement, error) {
	unsigned, err := eligibility(ctx, s.store, studentID, officerID, false)
	if err != nil {
		return false, nil, err
	}
	return len(unsigned) == 0, unsigned, nil
}

// eligibility collects every record that still blocks issuance. An empty
// ledger is vacuously satisfied. Duplicate records per (student, requirement)
// are each evaluated; all of them must be signed.
func eligibility(ctx context.Context, store Store, studentID, officerID string, forUpdate bool) ([]UnsignedRequirement, error) {
	list := store.ListRequirements
	if forUpdate {
		list = store.ListRequirementsForUpdate
	}

	var unsigned []UnsignedRequirement

	courseRecords, err := list(ctx, model.LedgerCourse, studentID)
	if err != nil {
		return nil, err
	}
	for _, record := range courseRecords {
		if record.Status != model.StatusSigned {
			unsigned = append(unsigned, unsignedFrom(record))
		}
	}

	institutionalRecords, err := list(ctx, model.LedgerInstitutional, studentID)
	if err != nil {
		return nil, err
	}
	for _, record := range institutionalRecords {
		if record.OfficerID == officerID {
			continue
		}
		if record.Status != model.StatusSigned {
			unsigned = append(unsigned, unsignedFrom(record))
		}
	}
	return unsigned, nil
}

func unsignedFrom(record model.RequirementRecord) UnsignedRequirement {
	return UnsignedRequirement{
		RecordID:      record.ID,
		Ledger:        record.Ledger,
		RequirementID: record.RequirementID,
		OfficerID:     record.OfficerID,
		Status:        record.Status,
	}
}
