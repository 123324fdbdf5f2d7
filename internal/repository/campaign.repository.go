package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/nimasrn/campaign-dispatcher/internal/model"
	"github.com/nimasrn/campaign-dispatcher/pkg/pg"
	"gorm.io/gorm"
)

const recipientBatchSize = 500

type CampaignRepository struct {
	*pg.DB
}

func NewCampaignRepository(db *pg.DB) *CampaignRepository {
	return &CampaignRepository{
		db,
	}
}

func (r *CampaignRepository) campaignQuery(ctx context.Context) *gorm.DB {
	return r.Read(ctx).
		Table("calendar AS c").
		Select(`c.*,
			COALESCE(t.name, '') AS template_name,
			(SELECT COUNT(*) FROM history_sending hs WHERE hs.calendar_id = c.id) AS recipient_count`).
		Joins("LEFT JOIN templates t ON t.id = c.template_id")
}

// FindDueCampaign returns the oldest scheduled campaign of zone that is still
// pending and due exactly at day and clock, or nil when there is none.
func (r *CampaignRepository) FindDueCampaign(ctx context.Context, day time.Time, clock, zone string) (*model.Campaign, error) {
	var rows []*campaignRow
	err := r.campaignQuery(ctx).
		Where("c.deleted = ?", false).
		Where("c.category = ?", model.CategoryScheduled).
		Where("c.status = ?", model.CampaignStatusPending).
		Where("c.start_date = ?", day).
		Where("c.time_start = ?", clock).
		Where("c.country_time = ?", zone).
		Order("c.id ASC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].toModel(), nil
}

// ActivateCampaign moves a pending campaign to in progress. It reports false
// when the campaign was not pending anymore.
func (r *CampaignRepository) ActivateCampaign(ctx context.Context, id int64) (bool, error) {
	return r.transition(ctx, id, model.CampaignStatusPending, model.CampaignStatusInProgress)
}

// CompleteCampaign moves an in progress campaign to completed.
func (r *CampaignRepository) CompleteCampaign(ctx context.Context, id int64) (bool, error) {
	return r.transition(ctx, id, model.CampaignStatusInProgress, model.CampaignStatusCompleted)
}

func (r *CampaignRepository) transition(ctx context.Context, id int64, from, to model.CampaignStatus) (bool, error) {
	res := r.Write(ctx).
		Model(&CampaignEntity{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListPendingRecipients returns the pending recipients of every in progress
// campaign of zone, ordered by campaign then recipient id.
func (r *CampaignRepository) ListPendingRecipients(ctx context.Context, zone string) ([]*model.PendingRecipient, error) {
	var rows []*pendingRecipientRow
	err := r.Read(ctx).
		Table("history_sending AS hs").
		Select(`hs.id, hs.calendar_id, hs.person_id, hs.name, hs.phone, hs.status,
			c.title AS campaign_title,
			c.user_id AS campaign_user_id,
			t.id AS template_id,
			t.name AS template_name,
			t.meta_name AS template_meta_name,
			t.language AS template_language,
			COALESCE(t.components_send, '') AS template_components,
			COALESCE(t.message, '') AS template_message,
			COALESCE(t.file, '') AS template_file`).
		Joins("JOIN calendar c ON c.id = hs.calendar_id").
		Joins("JOIN templates t ON t.id = c.template_id").
		Where("hs.status = ?", model.RecipientStatusPending).
		Where("c.status = ?", model.CampaignStatusInProgress).
		Where("c.deleted = ?", false).
		Where("c.category = ?", model.CategoryScheduled).
		Where("c.country_time = ?", zone).
		Order("c.id ASC, hs.id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]*model.PendingRecipient, len(rows))
	for i, row := range rows {
		out[i] = row.toModel()
	}
	return out, nil
}

// RecordOutcome sets the terminal status of a pending recipient. Recording an
// outcome for a recipient that already has one is a no-op.
func (r *CampaignRepository) RecordOutcome(ctx context.Context, recipientID int64, status model.RecipientStatus) error {
	if !status.Terminal() {
		return ErrInvalidOutcome
	}

	res := r.Write(ctx).
		Model(&RecipientEntity{}).
		Where("id = ? AND status = ?", recipientID, model.RecipientStatusPending).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := r.Write(ctx).Model(&RecipientEntity{}).Where("id = ?", recipientID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("recipient %d: %w", recipientID, ErrNotFound)
	}
	return nil
}

func (r *CampaignRepository) CountPending(ctx context.Context, campaignID int64) (int64, error) {
	var count int64
	err := r.Read(ctx).
		Model(&RecipientEntity{}).
		Where("calendar_id = ? AND status = ?", campaignID, model.RecipientStatusPending).
		Count(&count).Error
	return count, err
}

func (r *CampaignRepository) CountRecipients(ctx context.Context, campaignID int64) (int64, error) {
	var count int64
	err := r.Read(ctx).
		Model(&RecipientEntity{}).
		Where("calendar_id = ?", campaignID).
		Count(&count).Error
	return count, err
}

// Create stores a campaign and its recipients in one transaction.
func (r *CampaignRepository) Create(ctx context.Context, campaign *model.Campaign, recipients []model.Recipient) (*model.Campaign, error) {
	entity := toCampaignEntity(campaign)

	err := r.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := r.Write(ctx).Create(entity).Error; err != nil {
			return err
		}

		rows := make([]*RecipientEntity, len(recipients))
		for i, rc := range recipients {
			status := rc.Status
			if status == "" {
				status = model.RecipientStatusPending
			}
			rows[i] = &RecipientEntity{
				CalendarID: entity.ID,
				PersonID:   rc.PersonID,
				Name:       rc.Name,
				Phone:      rc.Phone,
				Status:     string(status),
			}
		}
		if len(rows) == 0 {
			return nil
		}
		return r.Write(ctx).CreateInBatches(rows, recipientBatchSize).Error
	})
	if err != nil {
		return nil, err
	}

	created := toCampaignModel(entity)
	created.RecipientCount = int64(len(recipients))
	return created, nil
}

func (r *CampaignRepository) Get(ctx context.Context, id int64) (*model.Campaign, error) {
	var rows []*campaignRow
	if err := r.campaignQuery(ctx).Where("c.id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0].toModel(), nil
}

func (r *CampaignRepository) ListRecipients(ctx context.Context, campaignID int64) ([]*model.Recipient, error) {
	var entities []*RecipientEntity
	err := r.Read(ctx).
		Where("calendar_id = ?", campaignID).
		Order("id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}

	out := make([]*model.Recipient, len(entities))
	for i, e := range entities {
		out[i] = toRecipientModel(e)
	}
	return out, nil
}

// Progress counts the recipients of a campaign per status.
func (r *CampaignRepository) Progress(ctx context.Context, campaignID int64) (model.CampaignProgress, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	err := r.Read(ctx).
		Model(&RecipientEntity{}).
		Select("status, COUNT(*) AS total").
		Where("calendar_id = ?", campaignID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return model.CampaignProgress{}, err
	}

	var p model.CampaignProgress
	for _, row := range rows {
		switch model.RecipientStatus(row.Status) {
		case model.RecipientStatusPending:
			p.Pending = row.Total
		case model.RecipientStatusSent:
			p.Sent = row.Total
		case model.RecipientStatusNotSent:
			p.NotSent = row.Total
		}
	}
	return p, nil
}
