package repository

import (
	"time"

	"github.com/nimasrn/campaign-dispatcher/internal/model"
)

type MessageEntity struct {
	ID        int64     `db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	MessageID string    `db:"message_id" gorm:"column:message_id;index"`
	Number    string    `db:"number"     gorm:"column:number;not null"`
	Body      string    `db:"body"       gorm:"column:body"`
	MediaType string    `db:"media_type" gorm:"column:media_type"`
	MediaURL  string    `db:"media_url"  gorm:"column:media_url"`
	MediaID   string    `db:"media_id"   gorm:"column:media_id"`
	FromMe    bool      `db:"from_me"    gorm:"column:from_me;not null;default:false"`
	Ack       int       `db:"ack"        gorm:"column:ack;not null;default:0"`
	PersonID  int64     `db:"person_id"  gorm:"column:person_id"`
	UserID    int64     `db:"user_id"    gorm:"column:user_id"`
	CreatedAt time.Time `db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (MessageEntity) TableName() string {
	return "messages"
}

type MessageStatusEntity struct {
	ID           int64     `db:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	MessageID    string    `db:"message_id"    gorm:"column:message_id;not null;index"`
	Status       string    `db:"status"        gorm:"column:status;not null"`
	RecipientID  string    `db:"recipient_id"  gorm:"column:recipient_id"`
	Billable     *bool     `db:"billable"      gorm:"column:billable"`
	PricingModel string    `db:"pricing_model" gorm:"column:pricing_model"`
	Category     string    `db:"category"      gorm:"column:category"`
	Type         string    `db:"type"          gorm:"column:type"`
	CreatedAt    time.Time `db:"created_at"    gorm:"column:created_at;autoCreateTime"`
}

func (MessageStatusEntity) TableName() string {
	return "message_status"
}

func toMessageEntity(m *model.Message) *MessageEntity {
	if m == nil {
		return nil
	}
	return &MessageEntity{
		ID:        m.ID,
		MessageID: m.ProviderID,
		Number:    m.Number,
		Body:      m.Body,
		MediaType: string(m.MediaType),
		MediaURL:  m.MediaURL,
		MediaID:   m.MediaID,
		FromMe:    m.FromMe,
		Ack:       int(m.Ack),
		PersonID:  m.PersonID,
		UserID:    m.UserID,
		CreatedAt: m.CreatedAt,
	}
}

func toMessageModel(e *MessageEntity) *model.Message {
	if e == nil {
		return nil
	}
	return &model.Message{
		ID:         e.ID,
		ProviderID: e.MessageID,
		Number:     e.Number,
		Body:       e.Body,
		MediaType:  model.MediaKind(e.MediaType),
		MediaURL:   e.MediaURL,
		MediaID:    e.MediaID,
		FromMe:     e.FromMe,
		Ack:        model.MessageAck(e.Ack),
		PersonID:   e.PersonID,
		UserID:     e.UserID,
		CreatedAt:  e.CreatedAt,
	}
}

func toMessageStatusEntity(m *model.MessageStatus) *MessageStatusEntity {
	if m == nil {
		return nil
	}
	e := &MessageStatusEntity{
		ID:          m.ID,
		MessageID:   m.ProviderMessageID,
		Status:      m.Status,
		RecipientID: m.RecipientPhone,
		CreatedAt:   m.CreatedAt,
	}
	if p := m.Pricing; p != nil {
		billable := p.Billable
		e.Billable = &billable
		e.PricingModel = p.PricingModel
		e.Category = p.Category
		e.Type = p.Type
	}
	return e
}

func toMessageStatusModel(e *MessageStatusEntity) *model.MessageStatus {
	if e == nil {
		return nil
	}
	m := &model.MessageStatus{
		ID:                e.ID,
		ProviderMessageID: e.MessageID,
		Status:            e.Status,
		RecipientPhone:    e.RecipientID,
		CreatedAt:         e.CreatedAt,
	}
	if e.Billable != nil {
		m.Pricing = &model.Pricing{
			Billable:     *e.Billable,
			PricingModel: e.PricingModel,
			Category:     e.Category,
			Type:         e.Type,
		}
	}
	return m
}
