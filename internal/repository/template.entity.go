package repository

import (
	"github.com/nimasrn/campaign-dispatcher/internal/model"
)

type TemplateEntity struct {
	ID             int64  `db:"id"              gorm:"primaryKey;autoIncrement;column:id"`
	Name           string `db:"name"            gorm:"column:name;not null"`
	MetaName       string `db:"meta_name"       gorm:"column:meta_name;not null"`
	Language       string `db:"language"        gorm:"column:language;not null"`
	ComponentsSend string `db:"components_send" gorm:"column:components_send"`
	Message        string `db:"message"         gorm:"column:message"`
	File           string `db:"file"            gorm:"column:file"`
}

func (TemplateEntity) TableName() string {
	return "templates"
}

func toTemplateEntity(m *model.Template) *TemplateEntity {
	if m == nil {
		return nil
	}
	return &TemplateEntity{
		ID:             m.ID,
		Name:           m.Name,
		MetaName:       m.ProviderName,
		Language:       m.Language,
		ComponentsSend: string(m.Components),
		Message:        m.Message,
		File:           m.File,
	}
}

func toTemplateModel(e *TemplateEntity) *model.Template {
	if e == nil {
		return nil
	}
	t := &model.Template{
		ID:           e.ID,
		Name:         e.Name,
		ProviderName: e.MetaName,
		Language:     e.Language,
		Message:      e.Message,
		File:         e.File,
	}
	if e.ComponentsSend != "" {
		t.Components = []byte(e.ComponentsSend)
	}
	return t
}
