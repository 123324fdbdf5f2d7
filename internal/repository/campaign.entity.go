package repository

import (
	"time"

	"github.com/nimasrn/campaign-dispatcher/internal/model"
)

type CampaignEntity struct {
	ID          int64     `db:"id"           gorm:"primaryKey;autoIncrement;column:id"`
	Title       string    `db:"title"        gorm:"column:title;not null"`
	Description string    `db:"description"  gorm:"column:description"`
	StartDate   time.Time `db:"start_date"   gorm:"column:start_date;type:date;not null"`
	TimeStart   string    `db:"time_start"   gorm:"column:time_start;size:5;not null"`
	Category    string    `db:"category"     gorm:"column:category;not null"`
	Status      string    `db:"status"       gorm:"column:status;not null;index"`
	Deleted     bool      `db:"deleted"      gorm:"column:deleted;not null;default:false"`
	UserID      int64     `db:"user_id"      gorm:"column:user_id;not null"`
	TemplateID  int64     `db:"template_id"  gorm:"column:template_id;not null"`
	CountryTime string    `db:"country_time" gorm:"column:country_time;not null"`
	CreatedAt   time.Time `db:"created_at"   gorm:"column:created_at;autoCreateTime"`
}

func (CampaignEntity) TableName() string {
	return "calendar"
}

type RecipientEntity struct {
	ID         int64  `db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	CalendarID int64  `db:"calendar_id" gorm:"column:calendar_id;not null;index"`
	PersonID   int64  `db:"person_id"   gorm:"column:person_id"`
	Name       string `db:"name"        gorm:"column:name"`
	Phone      string `db:"phone"       gorm:"column:phone;not null"`
	Status     string `db:"status"      gorm:"column:status;not null;index"`
}

func (RecipientEntity) TableName() string {
	return "history_sending"
}

// campaignRow is a calendar row joined with its template name and recipient count.
type campaignRow struct {
	CampaignEntity
	TemplateName   string `gorm:"column:template_name"`
	RecipientCount int64  `gorm:"column:recipient_count"`
}

// pendingRecipientRow is one drain row: recipient, owning campaign and template.
type pendingRecipientRow struct {
	ID                 int64  `gorm:"column:id"`
	CalendarID         int64  `gorm:"column:calendar_id"`
	PersonID           int64  `gorm:"column:person_id"`
	Name               string `gorm:"column:name"`
	Phone              string `gorm:"column:phone"`
	Status             string `gorm:"column:status"`
	CampaignTitle      string `gorm:"column:campaign_title"`
	CampaignUserID     int64  `gorm:"column:campaign_user_id"`
	TemplateID         int64  `gorm:"column:template_id"`
	TemplateName       string `gorm:"column:template_name"`
	TemplateMetaName   string `gorm:"column:template_meta_name"`
	TemplateLanguage   string `gorm:"column:template_language"`
	TemplateComponents string `gorm:"column:template_components"`
	TemplateMessage    string `gorm:"column:template_message"`
	TemplateFile       string `gorm:"column:template_file"`
}

func toCampaignEntity(m *model.Campaign) *CampaignEntity {
	if m == nil {
		return nil
	}
	return &CampaignEntity{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		StartDate:   m.StartDate,
		TimeStart:   m.TimeStart,
		Category:    m.Category,
		Status:      string(m.Status),
		Deleted:     m.Deleted,
		UserID:      m.UserID,
		TemplateID:  m.TemplateID,
		CountryTime: m.Zone,
		CreatedAt:   m.CreatedAt,
	}
}

func toCampaignModel(e *CampaignEntity) *model.Campaign {
	if e == nil {
		return nil
	}
	return &model.Campaign{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		StartDate:   e.StartDate.UTC(),
		TimeStart:   e.TimeStart,
		Category:    e.Category,
		Status:      model.CampaignStatus(e.Status),
		Deleted:     e.Deleted,
		UserID:      e.UserID,
		TemplateID:  e.TemplateID,
		Zone:        e.CountryTime,
		CreatedAt:   e.CreatedAt,
	}
}

func (r *campaignRow) toModel() *model.Campaign {
	m := toCampaignModel(&r.CampaignEntity)
	m.TemplateName = r.TemplateName
	m.RecipientCount = r.RecipientCount
	return m
}

func toRecipientModel(e *RecipientEntity) *model.Recipient {
	if e == nil {
		return nil
	}
	return &model.Recipient{
		ID:         e.ID,
		CampaignID: e.CalendarID,
		PersonID:   e.PersonID,
		Name:       e.Name,
		Phone:      e.Phone,
		Status:     model.RecipientStatus(e.Status),
	}
}

func (r *pendingRecipientRow) toModel() *model.PendingRecipient {
	p := &model.PendingRecipient{
		Recipient: model.Recipient{
			ID:         r.ID,
			CampaignID: r.CalendarID,
			PersonID:   r.PersonID,
			Name:       r.Name,
			Phone:      r.Phone,
			Status:     model.RecipientStatus(r.Status),
		},
		CampaignTitle:  r.CampaignTitle,
		CampaignUserID: r.CampaignUserID,
		Template: model.Template{
			ID:           r.TemplateID,
			Name:         r.TemplateName,
			ProviderName: r.TemplateMetaName,
			Language:     r.TemplateLanguage,
			Message:      r.TemplateMessage,
			File:         r.TemplateFile,
		},
	}
	if r.TemplateComponents != "" {
		p.Template.Components = []byte(r.TemplateComponents)
	}
	return p
}
