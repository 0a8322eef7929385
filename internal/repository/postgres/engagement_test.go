package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ignite/outreach-tracker/internal/service/engagement"
)

func newMockDB(t *testing.T) (*EngagementRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewEngagementRepo(db), mock
}

func TestRecordOpenSQL(t *testing.T) {
	repo, mock := newMockDB(t)
	now := time.Now()

	mock.ExpectExec("UPDATE engagements e SET").
		WithArgs("d-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.RecordOpen(context.Background(), "d-1", now); err != nil {
		t.Fatalf("record open: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestRecordOpenMissingRow(t *testing.T) {
	repo, mock := newMockDB(t)
	now := time.Now()

	mock.ExpectExec("UPDATE engagements e SET").
		WithArgs("ghost", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.RecordOpen(context.Background(), "ghost", now); err != engagement.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateFromDeliveryConflictIsNoop(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectExec("INSERT INTO engagements").
		WithArgs("d-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("d-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	if err := repo.CreateFromDelivery(context.Background(), "d-1"); err != nil {
		t.Fatalf("create from delivery: %v", err)
	}
}

func TestCreateFromDeliveryUnknownDelivery(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectExec("INSERT INTO engagements").
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	if err := repo.CreateFromDelivery(context.Background(), "ghost"); err != engagement.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLeadSummaryScopedToCampaign(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("lead-1", "camp-1").
		WillReturnRows(sqlmock.NewRows(
			[]string{"total", "delivered", "opened", "clicked", "secure", "otp"},
		).AddRow(10, 8, 5, 2, 1, 1))

	sum, err := repo.LeadSummary(context.Background(), "lead-1", "camp-1")
	if err != nil {
		t.Fatalf("lead summary: %v", err)
	}
	if sum.TotalEmails != 10 || sum.Opened != 5 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}
