package repository

import (
	"context"
	"errors"

	"foodtruck/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrPagoExcedeTotal is returned when a payment would push the paid amount over total_neto.
	ErrPagoExcedeTotal = errors.New("el pago excede el total del pedido")
	// ErrTotalBajoPagado is returned when new totals would leave total_neto below what is already paid.
	ErrTotalBajoPagado = errors.New("el total del pedido quedaria bajo lo ya pagado")
)

type PedidoRepository interface {
	Create(ctx context.Context, p *model.Pedido) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Pedido, error)
	// UpdateTotales persists the four monetary fields and the sync timestamp
	// under the same row lock CreatePago takes, rejecting with ErrTotalBajoPagado
	// when total_neto would drop below sum(pagos). Estado is only ever written
	// through CambiarEstado.
	UpdateTotales(ctx context.Context, p *model.Pedido) error
	// CambiarEstado moves the order from desde to hacia only if it is still in desde.
	// It reports false when another request changed the state first.
	CambiarEstado(ctx context.Context, id uuid.UUID, desde, hacia string) (bool, error)
	// DeleteCascade removes the order with its lines, line modifiers and payments.
	DeleteCascade(ctx context.Context, id uuid.UUID) error

	CreateDetalle(ctx context.Context, d *model.PedidoDetalle) error
	FindDetalleByID(ctx context.Context, id uuid.UUID) (*model.PedidoDetalle, error)
	UpdateDetalle(ctx context.Context, d *model.PedidoDetalle) error
	DeleteDetalle(ctx context.Context, id uuid.UUID) error
	CreateDetalleModificador(ctx context.Context, m *model.PedidoDetalleModificador) error

	// CreatePago inserts the payment while holding the order row lock, rejecting
	// it with ErrPagoExcedeTotal when sum(pagos) would exceed total_neto.
	CreatePago(ctx context.Context, p *model.Pago) error
	SumPagos(ctx context.Context, pedidoID uuid.UUID) (decimal.Decimal, error)
}

type pedidoRepo struct{ db *gorm.DB }

func NewPedidoRepository(db *gorm.DB) PedidoRepository { return &pedidoRepo{db: db} }

func (r *pedidoRepo) Create(ctx context.Context, p *model.Pedido) error {
	return r.db.WithContext(ctx).Omit("Detalles", "Pagos").Create(p).Error
}

func (r *pedidoRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Pedido, error) {
	var p model.Pedido
	err := r.db.WithContext(ctx).
		Preload("Detalles.Producto").
		Preload("Detalles.Modificadores").
		Preload("Pagos").
		First(&p, "id = ?", id).Error
	return &p, err
}

func (r *pedidoRepo) UpdateTotales(ctx context.Context, p *model.Pedido) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPedido(tx, p.ID, &model.Pedido{}); err != nil {
			return err
		}
		pagado, err := sumPagos(tx, p.ID)
		if err != nil {
			return err
		}
		if p.TotalNeto.LessThan(pagado) {
			return ErrTotalBajoPagado
		}
		return tx.Model(&model.Pedido{}).
			Where("id = ?", p.ID).
			Updates(map[string]interface{}{
				"total_bruto":          p.TotalBruto,
				"descuento_total":      p.DescuentoTotal,
				"iva":                  p.IVA,
				"total_neto":           p.TotalNeto,
				"fecha_sincronizacion": p.FechaSincronizacion,
			}).Error
	})
}

func (r *pedidoRepo) CambiarEstado(ctx context.Context, id uuid.UUID, desde, hacia string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Pedido{}).
		Where("id = ? AND estado = ?", id, desde).
		Update("estado", hacia)
	return res.RowsAffected == 1, res.Error
}

func (r *pedidoRepo) DeleteCascade(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		detalles := tx.Model(&model.PedidoDetalle{}).Select("id").Where("pedido_id = ?", id)
		if err := tx.Where("pedido_detalle_id IN (?)", detalles).Delete(&model.PedidoDetalleModificador{}).Error; err != nil {
			return err
		}
		if err := tx.Where("pedido_id = ?", id).Delete(&model.PedidoDetalle{}).Error; err != nil {
			return err
		}
		if err := tx.Where("pedido_id = ?", id).Delete(&model.Pago{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&model.Pedido{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *pedidoRepo) CreateDetalle(ctx context.Context, d *model.PedidoDetalle) error {
	return r.db.WithContext(ctx).Omit("Producto", "Modificadores").Create(d).Error
}

func (r *pedidoRepo) FindDetalleByID(ctx context.Context, id uuid.UUID) (*model.PedidoDetalle, error) {
	var d model.PedidoDetalle
	err := r.db.WithContext(ctx).Preload("Modificadores").First(&d, "id = ?", id).Error
	return &d, err
}

// UpdateDetalle only writes the mutable columns; precio_unitario is never rewritten.
func (r *pedidoRepo) UpdateDetalle(ctx context.Context, d *model.PedidoDetalle) error {
	return r.db.WithContext(ctx).Model(&model.PedidoDetalle{}).
		Where("id = ?", d.ID).
		Updates(map[string]interface{}{
			"cantidad":    d.Cantidad,
			"descuento":   d.Descuento,
			"total_linea": d.TotalLinea,
			"notas":       d.Notas,
		}).Error
}

func (r *pedidoRepo) DeleteDetalle(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("pedido_detalle_id = ?", id).Delete(&model.PedidoDetalleModificador{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.PedidoDetalle{}).Error
	})
}

func (r *pedidoRepo) CreateDetalleModificador(ctx context.Context, m *model.PedidoDetalleModificador) error {
	return r.db.WithContext(ctx).Omit("Modificador").Create(m).Error
}

func (r *pedidoRepo) CreatePago(ctx context.Context, p *model.Pago) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pedido model.Pedido
		if err := lockPedido(tx, p.PedidoID, &pedido); err != nil {
			return err
		}
		pagado, err := sumPagos(tx, p.PedidoID)
		if err != nil {
			return err
		}
		if pagado.Add(p.Monto).GreaterThan(pedido.TotalNeto) {
			return ErrPagoExcedeTotal
		}
		return tx.Omit("MetodoPago").Create(p).Error
	})
}

func (r *pedidoRepo) SumPagos(ctx context.Context, pedidoID uuid.UUID) (decimal.Decimal, error) {
	return sumPagos(r.db.WithContext(ctx), pedidoID)
}

// lockPedido takes the order row lock shared by payments and recomputes.
func lockPedido(tx *gorm.DB, id uuid.UUID, dest *model.Pedido) error {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "total_neto").
		First(dest, "id = ?", id).Error
}

func sumPagos(db *gorm.DB, pedidoID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := db.Model(&model.Pago{}).
		Select("COALESCE(SUM(monto), 0)").
		Where("pedido_id = ?", pedidoID).
		Scan(&total).Error
	return total, err
}
