package repository

import (
	"context"

	"github.com/nimasrn/campaign-dispatcher/internal/model"
	"github.com/nimasrn/campaign-dispatcher/pkg/pg"
)

type MessageStatusRepository struct {
	*pg.DB
}

func NewMessageStatusRepository(db *pg.DB) *MessageStatusRepository {
	return &MessageStatusRepository{
		db,
	}
}

func (r *MessageStatusRepository) Create(ctx context.Context, s *model.MessageStatus) (*model.MessageStatus, error) {
	entity := toMessageStatusEntity(s)

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toMessageStatusModel(entity), nil
}

func (r *MessageStatusRepository) ListByMessage(ctx context.Context, providerID string) ([]*model.MessageStatus, error) {
	var entities []*MessageStatusEntity
	err := r.Read(ctx).
		Where("message_id = ?", providerID).
		Order("id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}

	out := make([]*model.MessageStatus, len(entities))
	for i, e := range entities {
		out[i] = toMessageStatusModel(e)
	}
	return out, nil
}
