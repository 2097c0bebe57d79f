package db

import (
	"context"
	"time"

	"registrar/clearance/internal/model"
)

const requirementColumns = `id, student_id, co_id, requirement_id, status, COALESCE(signed_by, ''), created_at, updated_at`

func (s *Store) GetOfficer(ctx context.Context, id string) (model.Officer, error) {
	var officer model.Officer
	row := s.q.QueryRow(ctx, `
		SELECT id, school_id, first_name, last_name, email, phone_number, role, created_at
		FROM clearing_officers
		WHERE id = $1
	`, id)
	err := row.Scan(
		&officer.ID,
		&officer.SchoolID,
		&officer.FirstName,
		&officer.LastName,
		&officer.Email,
		&officer.PhoneNumber,
		&officer.Role,
		&officer.CreatedAt,
	)
	return officer, mapErr(err)
}

func (s *Store) GetStudent(ctx context.Context, id string) (model.Student, error) {
	var student model.Student
	row := s.q.QueryRow(ctx, `
		SELECT id, school_id, first_name, last_name, email, phone_number, year_level, created_at
		FROM students
		WHERE id = $1
	`, id)
	err := row.Scan(
		&student.ID,
		&student.SchoolID,
		&student.FirstName,
		&student.LastName,
		&student.Email,
		&student.PhoneNumber,
		&student.YearLevel,
		&student.CreatedAt,
	)
	return student, mapErr(err)
}

func (s *Store) ListRequirements(ctx context.Context, ledger model.Ledger, studentID string) ([]model.RequirementRecord, error) {
	return s.listRequirements(ctx, ledger, studentID, false)
}

func (s *Store) ListRequirementsForUpdate(ctx context.Context, ledger model.Ledger, studentID string) ([]model.RequirementRecord, error) {
	return s.listRequirements(ctx, ledger, studentID, true)
}

func (s *Store) listRequirements(ctx context.Context, ledger model.Ledger, studentID string, forUpdate bool) ([]model.RequirementRecord, error) {
	query := `SELECT ` + requirementColumns + ` FROM ` + reqTable(ledger) + ` WHERE student_id = $1 ORDER BY created_at`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	rows, err := s.q.Query(ctx, query, studentID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var records []model.RequirementRecord
	for rows.Next() {
		record, err := scanRequirement(rows, ledger)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *Store) ListOfficerRequirements(ctx context.Context, studentID, officerID string) ([]model.RequirementRecord, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+requirementColumns+`
		FROM student_requirements_institutional
		WHERE student_id = $1 AND co_id = $2
		ORDER BY created_at
	`, studentID, officerID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var records []model.RequirementRecord
	for rows.Next() {
		record, err := scanRequirement(rows, model.LedgerInstitutional)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *Store) UpdateRequirementStatus(ctx context.Context, ledger model.Ledger, studentID, officerID, requirementID string, status model.RequirementStatus, signedBy string) (int64, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE `+reqTable(ledger)+`
		SET status = $4, signed_by = $5, updated_at = now()
		WHERE student_id = $1 AND co_id = $2 AND requirement_id = $3
	`, studentID, officerID, requirementID, string(status), signedBy)
	if err != nil {
		return 0, mapErr(err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) FindRequirement(ctx context.Context, ledger model.Ledger, studentID, officerID, requirementID string) (model.RequirementRecord, error) {
	row := s.q.QueryRow(ctx, `
		SELECT `+requirementColumns+`
		FROM `+reqTable(ledger)+`
		WHERE student_id = $1 AND co_id = $2 AND requirement_id = $3
		ORDER BY updated_at DESC
		LIMIT 1
	`, studentID, officerID, requirementID)
	record, err := scanRequirement(row, ledger)
	if err != nil {
		return model.RequirementRecord{}, mapErr(err)
	}
	return record, nil
}

func (s *Store) SignOfficerRequirements(ctx context.Context, studentID, officerID, signedBy string) (int64, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE student_requirements_institutional
		SET status = 'signed', signed_by = $3, updated_at = now()
		WHERE student_id = $1 AND co_id = $2
	`, studentID, officerID, signedBy)
	if err != nil {
		return 0, mapErr(err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) DeleteRequirement(ctx context.Context, ledger model.Ledger, recordID string) (model.RequirementRecord, error) {
	row := s.q.QueryRow(ctx, `
		DELETE FROM `+reqTable(ledger)+`
		WHERE id = $1
		RETURNING `+requirementColumns+`
	`, recordID)
	record, err := scanRequirement(row, ledger)
	if err != nil {
		return model.RequirementRecord{}, mapErr(err)
	}
	return record, nil
}

func (s *Store) MarkMissingPastDeadline(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE student_requirements
		SET status = 'missing', updated_at = now()
		WHERE status = 'incomplete'
		  AND EXISTS (
			SELECT 1 FROM clearance_periods
			WHERE COALESCE(extended_deadline, deadline) < $1
		  )
	`, now)
	if err != nil {
		return 0, mapErr(err)
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequirement(row rowScanner, ledger model.Ledger) (model.RequirementRecord, error) {
	record := model.RequirementRecord{Ledger: ledger}
	err := row.Scan(
		&record.ID,
		&record.StudentID,
		&record.OfficerID,
		&record.RequirementID,
		&record.Status,
		&record.SignedBy,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	return record, err
}
