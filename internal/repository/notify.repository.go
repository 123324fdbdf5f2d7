package repository

import (
	"context"

	"github.com/nimasrn/campaign-dispatcher/internal/model"
	"github.com/nimasrn/campaign-dispatcher/pkg/pg"
)

type NotifyRepository struct {
	*pg.DB
}

func NewNotifyRepository(db *pg.DB) *NotifyRepository {
	return &NotifyRepository{
		db,
	}
}

func (r *NotifyRepository) Create(ctx context.Context, n *model.Notify) (*model.Notify, error) {
	entity := toNotifyEntity(n)

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toNotifyModel(entity), nil
}

// List returns the latest notify records first.
func (r *NotifyRepository) List(ctx context.Context, f model.NotifyFilter) ([]*model.Notify, error) {
	q := r.Read(ctx).Model(&NotifyEntity{})
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}

	var entities []*NotifyEntity
	if err := q.Order("id DESC").Limit(clampLimit(f.Limit)).Find(&entities).Error; err != nil {
		return nil, err
	}
	return toNotifyModels(entities), nil
}
