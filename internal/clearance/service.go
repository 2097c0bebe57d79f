package clearance

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"registrar/clearance/internal/auth"
	"registrar/clearance/internal/events"
	"registrar/clearance/internal/model"
	"registrar/clearance/internal/notify"
)

// PermitValidity is fixed policy, not call-time configuration.
const PermitValidity = 30 * 24 * time.Hour

// IssuerRole is the one officer role allowed to issue permits. Compared
// case-insensitively because officer roles are free-form strings.
const IssuerRole = "cashier"

// Service owns the permit state machine: ledger mutations, eligibility
// aggregation, issuance, verification and revocation. Issuance and
// revocation for one student are serialized through a per-student lock on
// top of the store transaction.
type Service struct {
	store    Store
	events   events.Publisher
	tokens   *auth.PermitTokens
	notifier notify.Notifier

	frontendBaseURL string

	locks *studentLocks
	now   func() time.Time
}

func NewService(store Store, publisher events.Publisher, tokens *auth.PermitTokens, notifier notify.Notifier, frontendBaseURL string) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &Service{
		store:           store,
		events:          publisher,
		tokens:          tokens,
		notifier:        notifier,
		frontendBaseURL: frontendBaseURL,
		locks:           newStudentLocks(),
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// UpdateRequirementInput addresses records by the (studentId, coId,
// requirementId) tuple, matching how officers sign: every record under that
// tuple moves together.
type UpdateRequirementInput struct {
	Ledger        model.Ledger
	StudentID     string
	OfficerID     string
	RequirementID string
	Status        string
	SignedBy      string
}

// SetRequirementStatus applies an officer's signing decision. The mutation
// commits before the revocation trigger runs; a trigger failure is logged
// and left to the reconciliation sweep, never surfaced to the caller.
func (s *Service) SetRequirementStatus(ctx context.Context, in UpdateRequirementInput) (model.RequirementRecord, error) {
	if in.StudentID == "" || in.OfficerID == "" || in.RequirementID == "" {
		return model.RequirementRecord{}, ErrValidation
	}
	status, err := model.NormalizeStatus(in.Status)
	if err != nil {
		return model.RequirementRecord{}, ErrValidation
	}

	unlock := s.locks.lock(in.StudentID)
	defer unlock()

	count, err := s.store.UpdateRequirementStatus(ctx, in.Ledger, in.StudentID, in.OfficerID, in.RequirementID, status, in.SignedBy)
	if err != nil {
		return model.RequirementRecord{}, err
	}
	if count == 0 {
		return model.RequirementRecord{}, ErrRequirementNotFound
	}

	record, err := s.store.FindRequirement(ctx, in.Ledger, in.StudentID, in.OfficerID, in.RequirementID)
	if err != nil {
		// The update committed; fall back to the input for the event payload.
		record = model.RequirementRecord{
			Ledger:        in.Ledger,
			StudentID:     in.StudentID,
			OfficerID:     in.OfficerID,
			RequirementID: in.RequirementID,
			Status:        status,
			SignedBy:      in.SignedBy,
			UpdatedAt:     s.now(),
		}
	}

	s.publish(ctx, events.TopicRequirementUpdated, s.requirementPayload(record))

	if status != model.StatusSigned {
		s.revokeStudentPermits(ctx, in.StudentID, "requirement_unsigned", in.OfficerID)
	}
	return record, nil
}

// ListRequirements returns one ledger's records for a student.
func (s *Service) ListRequirements(ctx context.Context, ledger model.Ledger, studentID string) ([]model.RequirementRecord, error) {
	if studentID == "" {
		return nil, ErrValidation
	}
	return s.store.ListRequirements(ctx, ledger, studentID)
}

// DeleteRequirement removes a record and returns the deleted value. Deletion
// always runs the revocation trigger for the affected student.
func (s *Service) DeleteRequirement(ctx context.Context, ledger model.Ledger, recordID string) (model.RequirementRecord, error) {
	if recordID == "" {
		return model.RequirementRecord{}, ErrValidation
	}
	record, err := s.store.DeleteRequirement(ctx, ledger, recordID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.RequirementRecord{}, ErrRequirementNotFound
		}
		return model.RequirementRecord{}, err
	}

	s.publish(ctx, events.TopicRequirementDeleted, s.requirementPayload(record))

	unlock := s.locks.lock(record.StudentID)
	defer unlock()
	s.revokeStudentPermits(ctx, record.StudentID, "requirement_deleted", "")
	return record, nil
}

// revokeStudentPermits is the revocation trigger: it flips every active
// permit for the student in one batch. Errors are logged only; the
// triggering mutation has already committed and must still succeed.
func (s *Service) revokeStudentPermits(ctx context.Context, studentID, reason, revokedBy string) {
	count, err := s.store.RevokeActivePermits(ctx, studentID)
	if err != nil {
		log.Printf("permit revocation failed for student %s: %v (left to sweep)", studentID, err)
		return
	}
	if count == 0 {
		return
	}
	s.publish(ctx, events.TopicPermitRevoked, PermitRevokedPayload{
		StudentID: studentID,
		Reason:    reason,
		RevokedBy: revokedBy,
		Count:     count,
		Timestamp: s.now().Format(time.RFC3339),
	})
	if student, err := s.store.GetStudent(ctx, studentID); err == nil {
		s.notifier.PermitRevoked(student, reason)
	}
}

func (s *Service) publish(ctx context.Context, topic string, payload interface{}) {
	if err := s.events.Publish(ctx, topic, payload); err != nil {
		log.Printf("event publish failed on %s: %v", topic, err)
	}
}

// studentLocks hands out one mutex per student id, reference-counted so idle
// entries do not accumulate.
type studentLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newStudentLocks() *studentLocks {
	return &studentLocks{entries: make(map[string]*lockEntry)}
}

func (l *studentLocks) lock(studentID string) func() {
	l.mu.Lock()
	entry, ok := l.entries[studentID]
	if !ok {
		entry = &lockEntry{}
		l.entries[studentID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, studentID)
		}
		l.mu.Unlock()
	}
}
