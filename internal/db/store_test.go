package db

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"registrar/clearance/internal/clearance"
	"registrar/clearance/internal/model"
)

func openTestDB(t *testing.T) *pgxpool.Pool {
	url := os.Getenv("CLEARANCE_TEST_DB")
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		t.Skip("CLEARANCE_TEST_DB or DATABASE_URL not set")
		return nil
	}
	pool, err := NewPool(context.Background(), url)
	if err != nil {
		t.Skipf("db unavailable: %v", err)
		return nil
	}
	return pool
}

func seedParties(t *testing.T, pool *pgxpool.Pool) (officerID, studentID string) {
	t.Helper()
	ctx := context.Background()
	officerID = uuid.NewString()
	studentID = uuid.NewString()
	if _, err := pool.Exec(ctx, `
		INSERT INTO clearing_officers (id, school_id, first_name, last_name, email, role)
		VALUES ($1, 'sch-1', 'Carla', 'Cruz', $2, 'cashier')
	`, officerID, officerID+"@test.local"); err != nil {
		t.Fatalf("seed officer: %v", err)
	}
	if _, err := pool.Exec(ctx, `
		INSERT INTO students (id, school_id, first_name, last_name, email)
		VALUES ($1, $2, 'Ana', 'Reyes', $3)
	`, studentID, studentID[:13], studentID+"@test.local"); err != nil {
		t.Fatalf("seed student: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM students WHERE id = $1`, studentID)
		_, _ = pool.Exec(context.Background(), `DELETE FROM clearing_officers WHERE id = $1`, officerID)
	})
	return officerID, studentID
}

func TestRequirementLifecycle(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	ctx := context.Background()
	store := NewStore(pool)
	officerID, studentID := seedParties(t, pool)
	requirementID := uuid.NewString()

	if _, err := pool.Exec(ctx, `
		INSERT INTO student_requirements (student_id, co_id, requirement_id)
		VALUES ($1, $2, $3)
	`, studentID, officerID, requirementID); err != nil {
		t.Fatalf("seed requirement: %v", err)
	}

	count, err := store.UpdateRequirementStatus(ctx, model.LedgerCourse, studentID, officerID, requirementID, model.StatusSigned, "Carla Cruz")
	if err != nil || count != 1 {
		t.Fatalf("update: count=%d err=%v", count, err)
	}

	record, err := store.FindRequirement(ctx, model.LedgerCourse, studentID, officerID, requirementID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if record.Status != model.StatusSigned || record.SignedBy != "Carla Cruz" {
		t.Fatalf("unexpected record %+v", record)
	}

	records, err := store.ListRequirements(ctx, model.LedgerCourse, studentID)
	if err != nil || len(records) != 1 {
		t.Fatalf("list: records=%d err=%v", len(records), err)
	}

	deleted, err := store.DeleteRequirement(ctx, model.LedgerCourse, record.ID)
	if err != nil || deleted.ID != record.ID {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.DeleteRequirement(ctx, model.LedgerCourse, record.ID); !errors.Is(err, clearance.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on repeat delete, got %v", err)
	}
}

func TestPermitQueries(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	ctx := context.Background()
	store := NewStore(pool)
	officerID, studentID := seedParties(t, pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	permit := model.Permit{
		ID:         uuid.NewString(),
		OfficerID:  officerID,
		StudentID:  studentID,
		PermitCode: "PERMIT-TEST-" + uuid.NewString()[:8],
		Status:     model.PermitActive,
		CreatedAt:  now,
		ExpiresAt:  now.Add(time.Hour),
	}
	if err := store.CreatePermit(ctx, permit); err != nil {
		t.Fatalf("create: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM permits WHERE id = $1`, permit.ID)
	})

	if err := store.CreatePermit(ctx, model.Permit{
		ID: uuid.NewString(), OfficerID: officerID, StudentID: studentID,
		PermitCode: permit.PermitCode, Status: model.PermitActive,
		CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}); !errors.Is(err, clearance.ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate code, got %v", err)
	}

	latest, err := store.LatestActivePermit(ctx, studentID)
	if err != nil || latest.ID != permit.ID {
		t.Fatalf("latest: %v %v", latest.ID, err)
	}

	count, err := store.SetPermitStatus(ctx, permit.ID, model.PermitRevoked)
	if err != nil || count != 1 {
		t.Fatalf("set status: count=%d err=%v", count, err)
	}
	count, err = store.SetPermitStatus(ctx, permit.ID, model.PermitRevoked)
	if err != nil || count != 0 {
		t.Fatalf("repeat set status must affect 0 rows: count=%d err=%v", count, err)
	}

	if _, err := store.LatestActivePermit(ctx, studentID); !errors.Is(err, clearance.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after revocation, got %v", err)
	}
}

func TestWithTxRollback(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	ctx := context.Background()
	store := NewStore(pool)
	officerID, studentID := seedParties(t, pool)

	permitID := uuid.NewString()
	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx clearance.Store) error {
		if err := tx.CreatePermit(ctx, model.Permit{
			ID: permitID, OfficerID: officerID, StudentID: studentID,
			PermitCode: "PERMIT-TX-" + uuid.NewString()[:8], Status: model.PermitActive,
			CreatedAt: time.Now().UTC(), ExpiresAt: time.Now().UTC().Add(time.Hour),
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if _, err := store.GetPermit(ctx, permitID); !errors.Is(err, clearance.ErrNotFound) {
		t.Fatalf("expected rollback, got %v", err)
	}
}
