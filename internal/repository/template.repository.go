package repository

import (
	"context"

	"github.com/nimasrn/campaign-dispatcher/internal/model"
	"github.com/nimasrn/campaign-dispatcher/pkg/pg"
)

type TemplateRepository struct {
	*pg.DB
}

func NewTemplateRepository(db *pg.DB) *TemplateRepository {
	return &TemplateRepository{
		db,
	}
}

func (r *TemplateRepository) Create(ctx context.Context, t *model.Template) (*model.Template, error) {
	entity := toTemplateEntity(t)

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toTemplateModel(entity), nil
}

func (r *TemplateRepository) Get(ctx context.Context, id int64) (*model.Template, error) {
	var entity TemplateEntity
	if err := r.Read(ctx).First(&entity, id).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toTemplateModel(&entity), nil
}
