package repository

import (
	"context"

	"foodtruck/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CatalogoRepository is the read side of the catalog the order flow depends on.
type CatalogoRepository interface {
	FindProducto(ctx context.Context, id uuid.UUID) (*model.Producto, error)
	FindModificador(ctx context.Context, id uuid.UUID) (*model.Modificador, error)
	FindMetodoPago(ctx context.Context, id uuid.UUID) (*model.MetodoPago, error)
}

type catalogoRepo struct{ db *gorm.DB }

func NewCatalogoRepository(db *gorm.DB) CatalogoRepository { return &catalogoRepo{db: db} }

func (r *catalogoRepo) FindProducto(ctx context.Context, id uuid.UUID) (*model.Producto, error) {
	var p model.Producto
	err := r.db.WithContext(ctx).Preload("Categoria").First(&p, "id = ?", id).Error
	return &p, err
}

func (r *catalogoRepo) FindModificador(ctx context.Context, id uuid.UUID) (*model.Modificador, error) {
	var m model.Modificador
	err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error
	return &m, err
}

func (r *catalogoRepo) FindMetodoPago(ctx context.Context, id uuid.UUID) (*model.MetodoPago, error) {
	var m model.MetodoPago
	err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error
	return &m, err
}
