package repository

import (
	"context"

	"foodtruck/internal/model"

	"gorm.io/gorm"
)

// AuditoriaRepository is append-only.
type AuditoriaRepository interface {
	Create(ctx context.Context, a *model.Auditoria) error
}

type auditoriaRepo struct{ db *gorm.DB }

func NewAuditoriaRepository(db *gorm.DB) AuditoriaRepository { return &auditoriaRepo{db: db} }

func (r *auditoriaRepo) Create(ctx context.Context, a *model.Auditoria) error {
	return r.db.WithContext(ctx).Create(a).Error
}
