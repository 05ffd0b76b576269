package storage

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/antaracrm/messaging-pipeline/internal/apperrors"
	"github.com/antaracrm/messaging-pipeline/internal/model"
)

func contactRows(contact model.Contact, createdAt, updatedAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "phone_number", "display_name", "email", "lead_source", "tags", "created_at", "updated_at", "last_metadata"}).
		AddRow(contact.ID, contact.PhoneNumber, contact.DisplayName, contact.Email, contact.LeadSource, nil, createdAt, updatedAt, nil)
}

func TestPostgresRepo_UpsertByPhone_New(t *testing.T) {
	repo, mock := newTestRepo(t)
	ctx := context.Background()

	contact := model.Contact{
		ID:          "contact-1",
		PhoneNumber: "+6281234567890",
		DisplayName: "WhatsApp +6281234567890",
		LeadSource:  model.LeadSourceWhatsApp,
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "contacts"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "contacts" WHERE phone_number = $1`)).
		WithArgs(contact.PhoneNumber, 1).
		WillReturnRows(contactRows(contact, now, now))

	result, created, err := repo.UpsertByPhone(ctx, contact)

	assert.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, contact.PhoneNumber, result.PhoneNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_UpsertByPhone_Existing(t *testing.T) {
	repo, mock := newTestRepo(t)
	ctx := context.Background()

	contact := model.Contact{
		ID:          "contact-2",
		PhoneNumber: "+6289999999999",
		DisplayName: "Returning Caller",
		LeadSource:  model.LeadSourceWhatsApp,
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "contacts"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// An existing row keeps its original created_at, so the timestamps differ.
	createdAt := time.Now().Add(-48 * time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "contacts" WHERE phone_number = $1`)).
		WithArgs(contact.PhoneNumber, 1).
		WillReturnRows(contactRows(contact, createdAt, time.Now()))

	result, created, err := repo.UpsertByPhone(ctx, contact)

	assert.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, contact.PhoneNumber, result.PhoneNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_UpsertByPhone_NoProfileNameKeepsStoredDisplayName(t *testing.T) {
	repo, mock := newTestRepo(t)
	ctx := context.Background()

	// Without a profile name on the event, the conflict-update set carries
	// only the refresh columns. An operator-set display_name survives the
	// duplicate delivery.
	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT ("phone_number") DO UPDATE SET "updated_at"="excluded"."updated_at","last_metadata"="excluded"."last_metadata"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	stored := model.Contact{
		ID:          "contact-4",
		PhoneNumber: "+6287777777777",
		DisplayName: "Key Account (VIP)",
		LeadSource:  model.LeadSourceWhatsApp,
	}
	createdAt := time.Now().Add(-72 * time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "contacts" WHERE phone_number = $1`)).
		WithArgs(stored.PhoneNumber, 1).
		WillReturnRows(contactRows(stored, createdAt, time.Now()))

	result, created, err := repo.UpsertByPhone(ctx, model.Contact{
		ID:          "contact-dup",
		PhoneNumber: stored.PhoneNumber,
		LeadSource:  model.LeadSourceWhatsApp,
	})

	assert.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "Key Account (VIP)", result.DisplayName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_UpsertByPhone_ProfileNameJoinsConflictSet(t *testing.T) {
	repo, mock := newTestRepo(t)
	ctx := context.Background()

	contact := model.Contact{
		ID:          "contact-5",
		PhoneNumber: "+6286666666666",
		DisplayName: "Ada Lovelace",
		LeadSource:  model.LeadSourceWhatsApp,
	}

	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT ("phone_number") DO UPDATE SET "display_name"="excluded"."display_name","updated_at"="excluded"."updated_at","last_metadata"="excluded"."last_metadata"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "contacts" WHERE phone_number = $1`)).
		WithArgs(contact.PhoneNumber, 1).
		WillReturnRows(contactRows(contact, time.Now().Add(-time.Hour), time.Now()))

	result, created, err := repo.UpsertByPhone(ctx, contact)

	assert.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "Ada Lovelace", result.DisplayName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_UpsertByPhone_NewRowDefaultsDisplayName(t *testing.T) {
	repo, mock := newTestRepo(t)
	ctx := context.Background()

	inserted := model.Contact{
		ID:          "contact-6",
		PhoneNumber: "+6285555555555",
		DisplayName: model.FallbackDisplayName("+6285555555555"),
		LeadSource:  model.LeadSourceWhatsApp,
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "contacts"`)).
		WithArgs(inserted.ID, inserted.PhoneNumber, "WhatsApp +6285555555555", "", model.LeadSourceWhatsApp, "", sqlmock.AnyArg(), sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "contacts" WHERE phone_number = $1`)).
		WithArgs(inserted.PhoneNumber, 1).
		WillReturnRows(contactRows(inserted, now, now))

	result, created, err := repo.UpsertByPhone(ctx, model.Contact{
		ID:          "contact-6",
		PhoneNumber: "+6285555555555",
		LeadSource:  model.LeadSourceWhatsApp,
	})

	assert.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "WhatsApp +6285555555555", result.DisplayName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_UpsertByPhone_EmptyPhone(t *testing.T) {
	repo, mock := newTestRepo(t)

	_, _, err := repo.UpsertByPhone(context.Background(), model.Contact{ID: "contact-3"})

	assert.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_FindContactByPhone_NotFound(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "contacts" WHERE phone_number = $1`)).
		WithArgs("+620000000000", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	result, err := repo.FindContactByPhone(context.Background(), "+620000000000")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
