package kv

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStore(db), mock
}

func TestPostgresStore_Get(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"value", "expires_at"}).
		AddRow([]byte(`{"last_version":"1.0.0"}`), int64(0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT value, expires_at")).
		WithArgs("watch-state").
		WillReturnRows(rows)

	got, err := store.Get(context.Background(), "watch-state")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if string(got) != `{"last_version":"1.0.0"}` {
		t.Errorf("unexpected value: %s", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresStore_Get_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT value, expires_at")).
		WithArgs("absent").
		WillReturnRows(sqlmock.NewRows([]string{"value", "expires_at"}))

	_, err := store.Get(context.Background(), "absent")
	if !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestPostgresStore_Get_Expired(t *testing.T) {
	store, mock := newMockStore(t)

	expired := time.Now().Add(-time.Minute).Unix()
	rows := sqlmock.NewRows([]string{"value", "expires_at"}).
		AddRow([]byte("stale"), expired)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT value, expires_at")).
		WithArgs("watch-state").
		WillReturnRows(rows)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM kv_entries")).
		WithArgs("watch-state").
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := store.Get(context.Background(), "watch-state")
	if !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound for expired entry, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresStore_Put(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO kv_entries")).
		WithArgs("watch-state", []byte("payload"), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Put(context.Background(), "watch-state", []byte("payload"), 30*24*time.Hour)
	if err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresStore_Delete(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM kv_entries")).
		WithArgs("watch-state").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.Delete(context.Background(), "watch-state"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
