package repository

import (
	"time"

	"github.com/nimasrn/campaign-dispatcher/internal/model"
)

type NotifyEntity struct {
	ID        int64     `db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	Title     string    `db:"title"      gorm:"column:title;not null"`
	Message   string    `db:"message"    gorm:"column:message"`
	Status    string    `db:"status"     gorm:"column:status;not null"`
	Type      string    `db:"type"       gorm:"column:type;not null"`
	UserID    int64     `db:"user_id"    gorm:"column:user_id;not null;index"`
	CreatedAt time.Time `db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (NotifyEntity) TableName() string {
	return "notify"
}

func toNotifyEntity(m *model.Notify) *NotifyEntity {
	if m == nil {
		return nil
	}
	return &NotifyEntity{
		ID:        m.ID,
		Title:     m.Title,
		Message:   m.Message,
		Status:    string(m.Status),
		Type:      m.Type,
		UserID:    m.UserID,
		CreatedAt: m.CreatedAt,
	}
}

func toNotifyModel(e *NotifyEntity) *model.Notify {
	if e == nil {
		return nil
	}
	return &model.Notify{
		ID:        e.ID,
		Title:     e.Title,
		Message:   e.Message,
		Status:    model.NotifyStatus(e.Status),
		Type:      e.Type,
		UserID:    e.UserID,
		CreatedAt: e.CreatedAt,
	}
}

func toNotifyModels(entities []*NotifyEntity) []*model.Notify {
	if entities == nil {
		return nil
	}
	models := make([]*model.Notify, len(entities))
	for i, e := range entities {
		models[i] = toNotifyModel(e)
	}
	return models
}
