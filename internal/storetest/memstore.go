// Package storetest provides an in-memory clearance.Store so the core and
// the HTTP handlers can be tested without postgres. DB-backed behavior is
// covered by the env-gated integration tests.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"registrar/clearance/internal/clearance"
	"registrar/clearance/internal/model"
)

type MemStore struct {
	mu sync.Mutex

	Officers map[string]model.Officer
	Students map[string]model.Student
	records  map[model.Ledger]map[string]model.RequirementRecord
	Permits  map[string]model.Permit
	Periods  []model.ClearancePeriod

	seq int

	// Error injection for failure-path tests.
	CreatePermitErr error
	RevokeErr       error
}

var _ clearance.Store = (*MemStore)(nil)

func New() *MemStore {
	return &MemStore{
		Officers: make(map[string]model.Officer),
		Students: make(map[string]model.Student),
		records: map[model.Ledger]map[string]model.RequirementRecord{
			model.LedgerCourse:        make(map[string]model.RequirementRecord),
			model.LedgerInstitutional: make(map[string]model.RequirementRecord),
		},
		Permits: make(map[string]model.Permit),
	}
}

// Seeding helpers

func (m *MemStore) AddOfficer(officer model.Officer) model.Officer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if officer.ID == "" {
		officer.ID = m.nextID("officer")
	}
	m.Officers[officer.ID] = officer
	return officer
}

func (m *MemStore) AddStudent(student model.Student) model.Student {
	m.mu.Lock()
	defer m.mu.Unlock()
	if student.ID == "" {
		student.ID = m.nextID("student")
	}
	m.Students[student.ID] = student
	return student
}

func (m *MemStore) AddRequirement(ledger model.Ledger, studentID, officerID, requirementID string, status model.RequirementStatus) model.RequirementRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	record := model.RequirementRecord{
		ID:            m.nextID("req"),
		Ledger:        ledger,
		StudentID:     studentID,
		OfficerID:     officerID,
		RequirementID: requirementID,
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.records[ledger][record.ID] = record
	return record
}

func (m *MemStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

// clearance.Store

func (m *MemStore) GetOfficer(_ context.Context, id string) (model.Officer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	officer, ok := m.Officers[id]
	if !ok {
		return model.Officer{}, clearance.ErrNotFound
	}
	return officer, nil
}

func (m *MemStore) GetStudent(_ context.Context, id string) (model.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	student, ok := m.Students[id]
	if !ok {
		return model.Student{}, clearance.ErrNotFound
	}
	return student, nil
}

func (m *MemStore) ListRequirements(_ context.Context, ledger model.Ledger, studentID string) ([]model.RequirementRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listLocked(ledger, studentID), nil
}

func (m *MemStore) ListRequirementsForUpdate(ctx context.Context, ledger model.Ledger, studentID string) ([]model.RequirementRecord, error) {
	return m.ListRequirements(ctx, ledger, studentID)
}

func (m *MemStore) listLocked(ledger model.Ledger, studentID string) []model.RequirementRecord {
	var records []model.RequirementRecord
	for _, record := range m.records[ledger] {
		if record.StudentID == studentID {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records
}

func (m *MemStore) ListOfficerRequirements(_ context.Context, studentID, officerID string) ([]model.RequirementRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var records []model.RequirementRecord
	for _, record := range m.records[model.LedgerInstitutional] {
		if record.StudentID == studentID && record.OfficerID == officerID {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

func (m *MemStore) UpdateRequirementStatus(_ context.Context, ledger model.Ledger, studentID, officerID, requirementID string, status model.RequirementStatus, signedBy string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for id, record := range m.records[ledger] {
		if record.StudentID == studentID && record.OfficerID == officerID && record.RequirementID == requirementID {
			record.Status = status
			record.SignedBy = signedBy
			record.UpdatedAt = time.Now().UTC()
			m.records[ledger][id] = record
			count++
		}
	}
	return count, nil
}

func (m *MemStore) FindRequirement(_ context.Context, ledger model.Ledger, studentID, officerID, requirementID string) (model.RequirementRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, record := range m.records[ledger] {
		if record.StudentID == studentID && record.OfficerID == officerID && record.RequirementID == requirementID {
			return record, nil
		}
	}
	return model.RequirementRecord{}, clearance.ErrNotFound
}

func (m *MemStore) SignOfficerRequirements(_ context.Context, studentID, officerID, signedBy string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	ledger := m.records[model.LedgerInstitutional]
	for id, record := range ledger {
		if record.StudentID == studentID && record.OfficerID == officerID {
			record.Status = model.StatusSigned
			record.SignedBy = signedBy
			record.UpdatedAt = time.Now().UTC()
			ledger[id] = record
			count++
		}
	}
	return count, nil
}

func (m *MemStore) DeleteRequirement(_ context.Context, ledger model.Ledger, recordID string) (model.RequirementRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[ledger][recordID]
	if !ok {
		return model.RequirementRecord{}, clearance.ErrNotFound
	}
	delete(m.records[ledger], recordID)
	return record, nil
}

func (m *MemStore) CreatePermit(_ context.Context, permit model.Permit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreatePermitErr != nil {
		return m.CreatePermitErr
	}
	for _, existing := range m.Permits {
		if existing.PermitCode == permit.PermitCode {
			return clearance.ErrConflict
		}
	}
	m.Permits[permit.ID] = permit
	return nil
}

func (m *MemStore) GetPermit(_ context.Context, id string) (model.Permit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	permit, ok := m.Permits[id]
	if !ok {
		return model.Permit{}, clearance.ErrNotFound
	}
	return permit, nil
}

func (m *MemStore) LatestActivePermit(_ context.Context, studentID string) (model.Permit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest model.Permit
	found := false
	for _, permit := range m.Permits {
		if permit.StudentID != studentID || permit.Status != model.PermitActive {
			continue
		}
		if !found || permit.CreatedAt.After(latest.CreatedAt) {
			latest = permit
			found = true
		}
	}
	if !found {
		return model.Permit{}, clearance.ErrNotFound
	}
	return latest, nil
}

func (m *MemStore) SetPermitStatus(_ context.Context, permitID string, status model.PermitStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	permit, ok := m.Permits[permitID]
	if !ok || permit.Status == status {
		return 0, nil
	}
	permit.Status = status
	m.Permits[permitID] = permit
	return 1, nil
}

func (m *MemStore) RevokeActivePermits(_ context.Context, studentID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RevokeErr != nil {
		return 0, m.RevokeErr
	}
	return m.revokeActiveLocked(studentID), nil
}

func (m *MemStore) revokeActiveLocked(studentID string) int64 {
	var count int64
	for id, permit := range m.Permits {
		if permit.StudentID == studentID && permit.Status == model.PermitActive {
			permit.Status = model.PermitRevoked
			m.Permits[id] = permit
			count++
		}
	}
	return count
}

func (m *MemStore) MarkExpiredPermits(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for id, permit := range m.Permits {
		if permit.Status == model.PermitActive && permit.ExpiresAt.Before(now) {
			permit.Status = model.PermitExpired
			m.Permits[id] = permit
			count++
		}
	}
	return count, nil
}

func (m *MemStore) RevokeOutOfSyncPermits(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	unsignedStudents := make(map[string]bool)
	for _, ledger := range m.records {
		for _, record := range ledger {
			if record.Status != model.StatusSigned {
				unsignedStudents[record.StudentID] = true
			}
		}
	}
	var affected []string
	for studentID := range unsignedStudents {
		if m.revokeActiveLocked(studentID) > 0 {
			affected = append(affected, studentID)
		}
	}
	sort.Strings(affected)
	return affected, nil
}

func (m *MemStore) MarkMissingPastDeadline(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	expired := false
	for _, period := range m.Periods {
		if period.EffectiveDeadline().Before(now) {
			expired = true
			break
		}
	}
	if !expired {
		return 0, nil
	}
	var count int64
	ledger := m.records[model.LedgerCourse]
	for id, record := range ledger {
		if record.Status == model.StatusIncomplete {
			record.Status = model.StatusMissing
			record.UpdatedAt = now
			ledger[id] = record
			count++
		}
	}
	return count, nil
}

// WithTx snapshots the mutable state and restores it if fn fails, matching
// the all-or-nothing commit of the pgx adapter.
func (m *MemStore) WithTx(_ context.Context, fn func(clearance.Store) error) error {
	m.mu.Lock()
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.restoreLocked(snapshot)
		m.mu.Unlock()
		return err
	}
	return nil
}

type memSnapshot struct {
	records map[model.Ledger]map[string]model.RequirementRecord
	permits map[string]model.Permit
}

func (m *MemStore) snapshotLocked() memSnapshot {
	snap := memSnapshot{
		records: make(map[model.Ledger]map[string]model.RequirementRecord, len(m.records)),
		permits: make(map[string]model.Permit, len(m.Permits)),
	}
	for ledger, records := range m.records {
		copied := make(map[string]model.RequirementRecord, len(records))
		for id, record := range records {
			copied[id] = record
		}
		snap.records[ledger] = copied
	}
	for id, permit := range m.Permits {
		snap.permits[id] = permit
	}
	return snap
}

func (m *MemStore) restoreLocked(snap memSnapshot) {
	m.records = snap.records
	m.Permits = snap.permits
}
