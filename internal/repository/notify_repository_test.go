package repository

import (
	"context"
	"testing"

	"github.com/nimasrn/campaign-dispatcher/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyRepository_CreateAndList(t *testing.T) {
	db := NewTestDB(t)
	repo := NewNotifyRepository(db)
	ctx := context.Background()

	for i, user := range []int64{7, 7, 8} {
		_, err := repo.Create(ctx, &model.Notify{
			Title:   "Envio de Mensajes",
			Message: "mensaje",
			Status:  model.NotifyStatusInProgress,
			Type:    model.NotifyTypeScheduled,
			UserID:  user,
		})
		require.NoError(t, err, "notify %d", i)
	}

	all, err := repo.List(ctx, model.NotifyFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Greater(t, all[0].ID, all[1].ID, "latest first")
	assert.NotZero(t, all[0].CreatedAt)

	user := int64(7)
	mine, err := repo.List(ctx, model.NotifyFilter{UserID: &user, Limit: 1})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, int64(7), mine[0].UserID)
}

func TestTemplateRepository_Get(t *testing.T) {
	db := NewTestDB(t)
	repo := NewTemplateRepository(db)
	ctx := context.Background()

	tpl := seedTemplate(t, repo)
	got, err := repo.Get(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "cita_recordatorio", got.ProviderName)

	_, err = repo.Get(ctx, tpl.ID+1)
	assert.ErrorIs(t, err, ErrNotFound)
}
