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

func TestPostgresRepo_IncrementCampaignCounter(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "campaigns" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.IncrementCampaignCounter(context.Background(), "camp-1", "total_delivered")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_IncrementCampaignCounter_UnknownColumn(t *testing.T) {
	repo, mock := newTestRepo(t)

	err := repo.IncrementCampaignCounter(context.Background(), "camp-1", "status; DROP TABLE campaigns")

	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_IncrementCampaignCounter_NotFound(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "campaigns" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.IncrementCampaignCounter(context.Background(), "camp-missing", "total_opened")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_ReadWriteCampaignCounter(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery(`SELECT .* FROM "campaigns" WHERE id = \$1`).
		WithArgs("camp-1").
		WillReturnRows(sqlmock.NewRows([]string{"total_bounced"}).AddRow(int64(4)))

	value, err := repo.ReadCampaignCounter(context.Background(), "camp-1", "total_bounced")
	assert.NoError(t, err)
	assert.Equal(t, int64(4), value)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "campaigns" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.WriteCampaignCounter(context.Background(), "camp-1", "total_bounced", 5)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_FindDueScheduledCampaigns(t *testing.T) {
	repo, mock := newTestRepo(t)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "campaigns" WHERE status = $1 AND scheduled_at IS NOT NULL AND scheduled_at <= $2`)).
		WithArgs(model.CampaignScheduled, now).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "status", "scheduled_at"}).
			AddRow("camp-due-1", "August promo", model.CampaignScheduled, now.Add(-time.Minute)).
			AddRow("camp-due-2", "Welcome series", model.CampaignScheduled, now.Add(-time.Second)))

	campaigns, err := repo.FindDueScheduledCampaigns(context.Background(), now)

	assert.NoError(t, err)
	assert.Len(t, campaigns, 2)
	assert.Equal(t, "camp-due-1", campaigns[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_FindCampaignByProviderEmailID_NotFound(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "campaigns" WHERE provider_email_id = $1`)).
		WithArgs("email-missing", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	result, err := repo.FindCampaignByProviderEmailID(context.Background(), "email-missing")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
