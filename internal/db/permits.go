package db

import (
	"context"
	"time"

	"registrar/clearance/internal/model"
)

const permitColumns = `id, co_id, student_id, permit_code, status, created_at, expires_at`

func (s *Store) CreatePermit(ctx context.Context, permit model.Permit) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO permits (id, co_id, student_id, permit_code, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, permit.ID, permit.OfficerID, permit.StudentID, permit.PermitCode, string(permit.Status), permit.CreatedAt, permit.ExpiresAt)
	return mapErr(err)
}

func (s *Store) GetPermit(ctx context.Context, id string) (model.Permit, error) {
	row := s.q.QueryRow(ctx, `SELECT `+permitColumns+` FROM permits WHERE id = $1`, id)
	permit, err := scanPermit(row)
	return permit, mapErr(err)
}

func (s *Store) LatestActivePermit(ctx context.Context, studentID string) (model.Permit, error) {
	row := s.q.QueryRow(ctx, `
		SELECT `+permitColumns+`
		FROM permits
		WHERE student_id = $1 AND status = 'active'
		ORDER BY created_at DESC
		LIMIT 1
	`, studentID)
	permit, err := scanPermit(row)
	return permit, mapErr(err)
}

func (s *Store) SetPermitStatus(ctx context.Context, permitID string, status model.PermitStatus) (int64, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE permits SET status = $2 WHERE id = $1 AND status <> $2
	`, permitID, string(status))
	if err != nil {
		return 0, mapErr(err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) RevokeActivePermits(ctx context.Context, studentID string) (int64, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE permits SET status = 'revoked' WHERE student_id = $1 AND status = 'active'
	`, studentID)
	if err != nil {
		return 0, mapErr(err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) MarkExpiredPermits(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE permits SET status = 'expired' WHERE status = 'active' AND expires_at < $1
	`, now)
	if err != nil {
		return 0, mapErr(err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) RevokeOutOfSyncPermits(ctx context.Context) ([]string, error) {
	rows, err := s.q.Query(ctx, `
		UPDATE permits p
		SET status = 'revoked'
		WHERE p.status = 'active'
		  AND (
			EXISTS (
				SELECT 1 FROM student_requirements r
				WHERE r.student_id = p.student_id AND r.status <> 'signed'
			)
			OR EXISTS (
				SELECT 1 FROM student_requirements_institutional r
				WHERE r.student_id = p.student_id AND r.status <> 'signed'
			)
		  )
		RETURNING p.student_id
	`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var students []string
	for rows.Next() {
		var studentID string
		if err := rows.Scan(&studentID); err != nil {
			return nil, err
		}
		if !seen[studentID] {
			seen[studentID] = true
			students = append(students, studentID)
		}
	}
	return students, rows.Err()
}

func scanPermit(row rowScanner) (model.Permit, error) {
	var permit model.Permit
	err := row.Scan(
		&permit.ID,
		&permit.OfficerID,
		&permit.StudentID,
		&permit.PermitCode,
		&permit.Status,
		&permit.CreatedAt,
		&permit.ExpiresAt,
	)
	return permit, err
}
