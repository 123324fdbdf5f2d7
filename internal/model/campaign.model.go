package model

import (
	"errors"
	"regexp"
	"time"
)

// CampaignStatus values are persisted verbatim.
type CampaignStatus string

const (
	CampaignStatusPending    CampaignStatus = "Pendiente"
	CampaignStatusInProgress CampaignStatus = "En Proceso"
	CampaignStatusCompleted  CampaignStatus = "Finalizado"
)

// CategoryScheduled is the only calendar category the dispatcher looks at.
const CategoryScheduled = "Programación"

type Campaign struct {
	ID          int64          `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	StartDate   time.Time      `json:"start_date"` // zone-local calendar day at UTC midnight
	TimeStart   string         `json:"time_start"` // HH:mm
	Category    string         `json:"category"`
	Status      CampaignStatus `json:"status"`
	Deleted     bool           `json:"deleted"`
	UserID      int64          `json:"user_id"`
	TemplateID  int64          `json:"template_id"`
	Zone        string         `json:"zone"`
	CreatedAt   time.Time      `json:"created_at"`

	// filled by lookups that join the template and count recipients
	TemplateName   string `json:"template_name,omitempty"`
	RecipientCount int64  `json:"recipient_count,omitempty"`
}

// RecipientStatus values are persisted verbatim.
type RecipientStatus string

const (
	RecipientStatusPending RecipientStatus = "Pendiente"
	RecipientStatusSent    RecipientStatus = "Enviado"
	RecipientStatusNotSent RecipientStatus = "No Enviado"
)

func (s RecipientStatus) Terminal() bool {
	return s == RecipientStatusSent || s == RecipientStatusNotSent
}

type Recipient struct {
	ID         int64           `json:"id"`
	CampaignID int64           `json:"campaign_id"`
	PersonID   int64           `json:"person_id"`
	Name       string          `json:"name"`
	Phone      string          `json:"phone"`
	Status     RecipientStatus `json:"status"`
}

// PendingRecipient is one row of a drain: the recipient plus what is needed
// to build its message.
type PendingRecipient struct {
	Recipient
	CampaignTitle  string
	CampaignUserID int64
	Template       Template
}

// CampaignProgress counts recipients per status.
type CampaignProgress struct {
	Pending int64 `json:"pending"`
	Sent    int64 `json:"sent"`
	NotSent int64 `json:"not_sent"`
}

func (p CampaignProgress) Total() int64 {
	return p.Pending + p.Sent + p.NotSent
}

type CampaignDetail struct {
	*Campaign
	Progress CampaignProgress `json:"progress"`
}

var (
	datePattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

type CampaignRecipientRequest struct {
	PersonID int64  `json:"person_id"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

// CampaignCreateRequest is the authoring input for a scheduled campaign.
type CampaignCreateRequest struct {
	Title       string                     `json:"title"`
	Description string                     `json:"description"`
	StartDate   string                     `json:"start_date"`
	TimeStart   string                     `json:"time_start"`
	Zone        string                     `json:"zone"`
	UserID      int64                      `json:"user_id"`
	TemplateID  int64                      `json:"template_id"`
	Recipients  []CampaignRecipientRequest `json:"recipients"`
}

func (p CampaignCreateRequest) Validate() error {
	if p.Title == "" {
		return errors.New("title is required")
	}
	if !datePattern.MatchString(p.StartDate) {
		return errors.New("start_date must be YYYY-MM-DD")
	}
	if _, err := time.Parse(time.DateOnly, p.StartDate); err != nil {
		return errors.New("start_date is not a valid date")
	}
	if !clockPattern.MatchString(p.TimeStart) {
		return errors.New("time_start must be HH:mm")
	}
	if p.Zone == "" {
		return errors.New("zone is required")
	}
	if p.UserID == 0 {
		return errors.New("user_id is required")
	}
	if p.TemplateID == 0 {
		return errors.New("template_id is required")
	}
	if len(p.Recipients) == 0 {
		return errors.New("at least one recipient is required")
	}
	for _, r := range p.Recipients {
		if r.Phone == "" {
			return errors.New("recipient phone is required")
		}
	}
	return nil
}
