package store

import (
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/teranos/concord/errors"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db, nil), mock
}

// TestAppend_InsertFailure verifies insert errors come back wrapped.
func TestAppend_InsertFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO records`).
		WillReturnError(errors.New("disk I/O error"))

	_, err := store.Append(CategoryResolution, resolutionRecord{})
	if err == nil {
		t.Fatal("expected insert error")
	}
	if !strings.Contains(err.Error(), "append resolution record") {
		t.Errorf("expected wrapped append error, got: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// TestAppend_LastInsertIdFailure verifies result errors come back wrapped.
func TestAppend_LastInsertIdFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO records`).
		WillReturnResult(sqlmock.NewErrorResult(errors.New("no id")))

	_, err := store.Append(CategoryResolution, resolutionRecord{})
	if err == nil {
		t.Fatal("expected result error")
	}
	if !strings.Contains(err.Error(), "read inserted record id") {
		t.Errorf("expected wrapped id error, got: %v", err)
	}
}

// TestQueryByCategory_QueryFailure verifies query errors come back wrapped.
func TestQueryByCategory_QueryFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, category, payload, created_at FROM records`).
		WillReturnError(errors.New("database is locked"))

	_, err := store.QueryByCategory(CategoryResolution, 5)
	if err == nil {
		t.Fatal("expected query error")
	}
	if !strings.Contains(err.Error(), "query resolution records") {
		t.Errorf("expected wrapped query error, got: %v", err)
	}
}

// TestQueryByCategory_ScanFailure verifies scan errors abort the read.
func TestQueryByCategory_ScanFailure(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "category", "payload", "created_at"}).
		AddRow(1, CategoryResolution, "{}", "not-a-timestamp")
	mock.ExpectQuery(`SELECT id, category, payload, created_at FROM records`).
		WillReturnRows(rows)

	_, err := store.QueryByCategory(CategoryResolution, 0)
	if err == nil {
		t.Fatal("expected scan error")
	}
	if !strings.Contains(err.Error(), "scan resolution record") {
		t.Errorf("expected wrapped scan error, got: %v", err)
	}
}

// TestCountByCategory_Failure verifies count errors come back wrapped.
func TestCountByCategory_Failure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM records`).
		WillReturnError(errors.New("database is locked"))

	_, err := store.CountByCategory(CategoryTombstone)
	if err == nil {
		t.Fatal("expected count error")
	}
	if !strings.Contains(err.Error(), "count cache_tombstone records") {
		t.Errorf("expected wrapped count error, got: %v", err)
	}
}
