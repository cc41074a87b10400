package repository

import (
	"context"

	"foodtruck/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CierreCajaRepository interface {
	Create(ctx context.Context, c *model.CierreCaja) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.CierreCaja, error)
	FindAbiertaPorUsuario(ctx context.Context, sucursalID, usuarioID uuid.UUID) (*model.CierreCaja, error)
	// Cerrar persists the close only if the row is still abierta.
	// It reports false when the cycle was already closed.
	Cerrar(ctx context.Context, c *model.CierreCaja) (bool, error)
}

type cierreCajaRepo struct{ db *gorm.DB }

func NewCierreCajaRepository(db *gorm.DB) CierreCajaRepository { return &cierreCajaRepo{db: db} }

func (r *cierreCajaRepo) Create(ctx context.Context, c *model.CierreCaja) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *cierreCajaRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.CierreCaja, error) {
	var c model.CierreCaja
	err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error
	return &c, err
}

func (r *cierreCajaRepo) FindAbiertaPorUsuario(ctx context.Context, sucursalID, usuarioID uuid.UUID) (*model.CierreCaja, error) {
	var c model.CierreCaja
	err := r.db.WithContext(ctx).
		Where("sucursal_id = ? AND usuario_id = ? AND estado = ?", sucursalID, usuarioID, model.EstadoCajaAbierta).
		Order("fecha_apertura DESC").
		First(&c).Error
	return &c, err
}

func (r *cierreCajaRepo) Cerrar(ctx context.Context, c *model.CierreCaja) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.CierreCaja{}).
		Where("id = ? AND estado = ?", c.ID, model.EstadoCajaAbierta).
		Updates(map[string]interface{}{
			"ingresos_efectivo":     c.IngresosEfectivo,
			"ingresos_electronicos": c.IngresosElectronicos,
			"total_esperado":        c.TotalEsperado,
			"total_real":            c.TotalReal,
			"diferencia":            c.Diferencia,
			"clasificacion_desvio":  c.ClasificacionDesvio,
			"observaciones":         c.Observaciones,
			"estado":                c.Estado,
			"fecha_cierre":          c.FechaCierre,
		})
	return res.RowsAffected == 1, res.Error
}
