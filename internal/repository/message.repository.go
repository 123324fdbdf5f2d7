package repository

import (
	"context"

	"github.com/nimasrn/campaign-dispatcher/internal/model"
	"github.com/nimasrn/campaign-dispatcher/pkg/pg"
)

type MessageRepository struct {
	*pg.DB
}

func NewMessageRepository(db *pg.DB) *MessageRepository {
	return &MessageRepository{
		db,
	}
}

func (r *MessageRepository) Create(ctx context.Context, msg *model.Message) (*model.Message, error) {
	entity := toMessageEntity(msg)

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toMessageModel(entity), nil
}

func (r *MessageRepository) Get(ctx context.Context, id int64) (*model.Message, error) {
	var entity MessageEntity
	if err := r.Read(ctx).First(&entity, id).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toMessageModel(&entity), nil
}

// AttachProviderID stores the provider id on a local message and records the
// accepted status row in the same transaction.
func (r *MessageRepository) AttachProviderID(ctx context.Context, id int64, status *model.MessageStatus) error {
	return r.WithinTransaction(ctx, func(ctx context.Context) error {
		res := r.Write(ctx).
			Model(&MessageEntity{}).
			Where("id = ?", id).
			Update("message_id", status.ProviderMessageID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return r.Write(ctx).Create(toMessageStatusEntity(status)).Error
	})
}

// UpdateAck raises the ack of the message with providerID. Acks never move
// backwards; a lower or equal ack leaves the row untouched and reports false.
func (r *MessageRepository) UpdateAck(ctx context.Context, providerID string, ack model.MessageAck) (bool, error) {
	res := r.Write(ctx).
		Model(&MessageEntity{}).
		Where("message_id = ? AND ack < ?", providerID, int(ack)).
		Update("ack", int(ack))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
