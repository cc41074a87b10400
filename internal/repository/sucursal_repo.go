package repository

import (
	"context"

	"foodtruck/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SucursalRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Sucursal, error)
	// FindAsignacionActiva returns the user's first active branch assignment.
	FindAsignacionActiva(ctx context.Context, usuarioID uuid.UUID) (*model.Sucursal, error)
}

type sucursalRepo struct{ db *gorm.DB }

func NewSucursalRepository(db *gorm.DB) SucursalRepository { return &sucursalRepo{db: db} }

func (r *sucursalRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Sucursal, error) {
	var s model.Sucursal
	err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error
	return &s, err
}

func (r *sucursalRepo) FindAsignacionActiva(ctx context.Context, usuarioID uuid.UUID) (*model.Sucursal, error) {
	var a model.UsuarioSucursal
	err := r.db.WithContext(ctx).
		Preload("Sucursal").
		Where("usuario_id = ? AND estado = ?", usuarioID, model.AsignacionActiva).
		Order("created_at ASC").
		First(&a).Error
	if err != nil {
		return nil, err
	}
	if a.Sucursal == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return a.Sucursal, nil
}
