package books

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRevenueCreateAssignsID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`insert into revenues`).
		WithArgs(sqlmock.AnyArg(), "2026-02-02", 100.0, 20.0, 0.0, 0.0, 100.0, 120.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewPGStore(db)
	entry := Revenue{Date: "2026-02-02", Base20: 100, TVA20: 20, HT: 100, TTC: 120}
	if err := store.Revenues(context.Background()).Create(context.Background(), &entry); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if entry.ID == "" {
		t.Fatalf("Create must assign an id")
	}
	if entry.CreatedAt.IsZero() {
		t.Fatalf("Create must set CreatedAt")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGRevenueListFiltersByMonth(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`select .* from revenues where to_char\(entry_date, 'YYYY-MM'\) = \$1 order by entry_date desc`).
		WithArgs("2026-02").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "to_char", "base20", "tva20", "base55", "tva55", "ht", "ttc", "created_at",
		}).AddRow("r1", "2026-02-02", 100.0, 20.0, 0.0, 0.0, 100.0, 120.0, now))

	store := NewPGStore(db)
	items, err := store.Revenues(context.Background()).List(context.Background(), "2026-02")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].Date != "2026-02-02" || items[0].TTC != 120 {
		t.Fatalf("unexpected items: %+v", items)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGRevenueListWithoutMonth(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`select .* from revenues order by entry_date desc`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "to_char", "base20", "tva20", "base55", "tva55", "ht", "ttc", "created_at",
		}))

	store := NewPGStore(db)
	items, err := store.Revenues(context.Background()).List(context.Background(), "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty result, got %+v", items)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGPurchaseDeleteAllReturnsCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`delete from purchases`).
		WillReturnResult(sqlmock.NewResult(0, 7))

	store := NewPGStore(db)
	n, err := store.Purchases(context.Background()).DeleteAll(context.Background())
	if err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if n != 7 {
		t.Fatalf("deleted = %d, want 7", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
