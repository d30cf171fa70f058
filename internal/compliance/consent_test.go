package compliance

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var consentColumns = []string{"id", "user_id", "consent_type", "version", "ip_address_hash", "user_agent", "created_at"}

func newConsentStore(t *testing.T) (*ConsentStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := NewConsentStore(db)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }
	return store, mock
}

func TestHashIP(t *testing.T) {
	assert.Equal(t, "12ca17b49af2289436f303e0166030a21e525d266e209267433801a8fd4071a0", HashIP("127.0.0.1"))
	assert.Equal(t, HashIP("0.0.0.0"), HashIP(""))
	assert.Len(t, HashIP("2001:db8::1"), 64)
	assert.NotContains(t, HashIP("10.0.0.7"), "10.0.0.7")
}

func TestConsentStore_Record(t *testing.T) {
	store, mock := newConsentStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO consent_records")).
		WithArgs(sqlmock.AnyArg(), "user-1", ConsentTypeHealthData, ConsentVersion, ConsentText,
			HashIP("203.0.113.9"), "unknown", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec, err := store.Record(context.Background(), "user-1", "203.0.113.9", "")
	require.NoError(t, err)
	assert.Equal(t, "v1.0", rec.Version)
	assert.Equal(t, "unknown", rec.UserAgent)
	assert.NotEmpty(t, rec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsentStore_RecordFailure(t *testing.T) {
	store, mock := newConsentStore(t)
	mock.ExpectExec("INSERT INTO consent_records").WillReturnError(errors.New("unique violation"))

	_, err := store.Record(context.Background(), "user-1", "1.2.3.4", "curl")
	assert.Error(t, err)
}

func TestConsentStore_Active(t *testing.T) {
	store, mock := newConsentStore(t)
	created := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM consent_records").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(consentColumns).
			AddRow("rec-1", "user-1", ConsentTypeHealthData, "v1.0", "hash", "Mozilla", created))
	mock.ExpectQuery("SELECT (.+) FROM consent_records").
		WithArgs("user-2").
		WillReturnRows(sqlmock.NewRows(consentColumns))

	rec, err := store.Active(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "rec-1", rec.ID)
	assert.Equal(t, created, rec.CreatedAt)

	_, err = store.Active(context.Background(), "user-2")
	assert.ErrorIs(t, err, ErrNoConsent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsentStore_HasActiveConsent(t *testing.T) {
	store, mock := newConsentStore(t)

	mock.ExpectQuery("SELECT (.+) FROM consent_records").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(consentColumns).
			AddRow("rec-1", "user-1", ConsentTypeHealthData, "v1.0", "hash", "ua", time.Now()))
	mock.ExpectQuery("SELECT (.+) FROM consent_records").
		WithArgs("user-2").
		WillReturnRows(sqlmock.NewRows(consentColumns))
	mock.ExpectQuery("SELECT (.+) FROM consent_records").
		WithArgs("user-3").
		WillReturnError(errors.New("timeout"))

	ok, err := store.HasActiveConsent(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.HasActiveConsent(context.Background(), "user-2")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.HasActiveConsent(context.Background(), "user-3")
	assert.Error(t, err)
}

func TestConsentStore_Withdraw(t *testing.T) {
	store, mock := newConsentStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE consent_records SET withdrawn_at = $2")).
		WithArgs("user-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE consent_records SET withdrawn_at = $2")).
		WithArgs("user-2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Withdraw(context.Background(), "user-1"))
	assert.ErrorIs(t, store.Withdraw(context.Background(), "user-2"), ErrNoConsent)
	assert.NoError(t, mock.ExpectationsWereMet())
}
