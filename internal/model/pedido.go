package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EstadoPedidoAbierto    = "abierto"
	EstadoPedidoEnProceso  = "en_proceso"
	EstadoPedidoCompletado = "completado"
	EstadoPedidoAnulado    = "anulado"
)

// transicionesPedido lists the allowed next states. Completado and anulado are terminal.
var transicionesPedido = map[string][]string{
	EstadoPedidoAbierto:   {EstadoPedidoEnProceso, EstadoPedidoAnulado},
	EstadoPedidoEnProceso: {EstadoPedidoCompletado, EstadoPedidoAnulado},
}

var (
	ErrTotalesInconsistentes = errors.New("total_neto debe ser total_bruto - descuento_total + iva")
	ErrTransicionInvalida    = errors.New("transicion de estado no permitida")
)

// Pedido is an order taken at a branch.
// Estado: "abierto" | "en_proceso" | "completado" | "anulado"
// TipoVenta: "local" | "para_llevar" | "delivery"
type Pedido struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SucursalID   uuid.UUID `gorm:"type:uuid;index;not null"`
	UsuarioID    uuid.UUID `gorm:"type:uuid;index;not null"`
	NumeroPedido string    `gorm:"type:varchar(50);not null"`
	FechaHora    time.Time `gorm:"not null"`
	Estado       string    `gorm:"type:varchar(20);not null;default:'abierto'"`
	TipoVenta    string    `gorm:"type:varchar(20);not null"`
	// EsOffline marks orders captured without connectivity and uploaded later.
	EsOffline           bool `gorm:"not null;default:false"`
	FechaSincronizacion *time.Time
	TotalBruto          decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	DescuentoTotal      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	IVA                 decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0;column:iva"`
	TotalNeto           decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CreatedAt           time.Time
	UpdatedAt           time.Time

	Detalles []PedidoDetalle `gorm:"foreignKey:PedidoID"`
	Pagos    []Pago          `gorm:"foreignKey:PedidoID"`
}

func (Pedido) TableName() string { return "pedidos" }

// TotalesConsistentes reports whether total_neto = total_bruto - descuento_total + iva.
func (p *Pedido) TotalesConsistentes() bool {
	return p.TotalNeto.Equal(p.TotalBruto.Sub(p.DescuentoTotal).Add(p.IVA))
}

// EsTerminal reports whether no further transition may be applied.
func (p *Pedido) EsTerminal() bool {
	return p.Estado == EstadoPedidoCompletado || p.Estado == EstadoPedidoAnulado
}

// PuedeTransicionar reports whether the order may move to destino.
func (p *Pedido) PuedeTransicionar(destino string) bool {
	for _, e := range transicionesPedido[p.Estado] {
		if e == destino {
			return true
		}
	}
	return false
}

// Transicionar applies the state change or returns ErrTransicionInvalida.
func (p *Pedido) Transicionar(destino string) error {
	if !p.PuedeTransicionar(destino) {
		return ErrTransicionInvalida
	}
	p.Estado = destino
	return nil
}

// TotalPagado sums the loaded payments.
func (p *Pedido) TotalPagado() decimal.Decimal {
	total := decimal.Zero
	for _, pg := range p.Pagos {
		total = total.Add(pg.Monto)
	}
	return total
}

// RecalcularTotales derives gross and discount from the loaded lines and keeps
// the tax amount as given. Paid modifiers add their applied value per unit.
func (p *Pedido) RecalcularTotales(iva decimal.Decimal) {
	bruto := decimal.Zero
	descuento := decimal.Zero
	for _, d := range p.Detalles {
		cant := decimal.NewFromInt(int64(d.Cantidad))
		unitario := d.PrecioUnitario
		for _, m := range d.Modificadores {
			if !m.EsGratuito {
				unitario = unitario.Add(m.ValorAplicado)
			}
		}
		bruto = bruto.Add(unitario.Mul(cant))
		descuento = descuento.Add(d.Descuento.Mul(cant))
	}
	p.TotalBruto = bruto
	p.DescuentoTotal = descuento
	p.IVA = iva
	p.TotalNeto = bruto.Sub(descuento).Add(iva)
}

// PedidoDetalle is a line item. PrecioUnitario is copied from the product at
// creation and never changes afterwards.
type PedidoDetalle struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PedidoID       uuid.UUID       `gorm:"type:uuid;index;not null"`
	ProductoID     uuid.UUID       `gorm:"type:uuid;not null"`
	Cantidad       int             `gorm:"not null"`
	PrecioUnitario decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Descuento      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	TotalLinea     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Notas          *string
	CreatedAt      time.Time

	Producto      *Producto                  `gorm:"foreignKey:ProductoID"`
	Modificadores []PedidoDetalleModificador `gorm:"foreignKey:PedidoDetalleID"`
}

func (PedidoDetalle) TableName() string { return "pedido_detalles" }

// CalcularTotalLinea returns (precio_unitario - descuento) * cantidad.
func CalcularTotalLinea(precioUnitario, descuento decimal.Decimal, cantidad int) decimal.Decimal {
	return precioUnitario.Sub(descuento).Mul(decimal.NewFromInt(int64(cantidad)))
}

// Recalcular refreshes TotalLinea after a quantity or discount change.
func (d *PedidoDetalle) Recalcular() {
	d.TotalLinea = CalcularTotalLinea(d.PrecioUnitario, d.Descuento, d.Cantidad)
}

// PedidoDetalleModificador applies a modifier to a line. The pair
// (pedido_detalle_id, modificador_id) is unique.
type PedidoDetalleModificador struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PedidoDetalleID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_detalle_modificador"`
	ModificadorID   uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_detalle_modificador"`
	ValorAplicado   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	EsGratuito      bool            `gorm:"not null;default:false"`
	CreatedAt       time.Time

	Modificador *Modificador `gorm:"foreignKey:ModificadorID"`
}

func (PedidoDetalleModificador) TableName() string { return "pedido_detalle_modificadores" }

// Pago is a local payment registered against an order. Card gateway attempts
// live in TransaccionWebpay and never create a Pago on their own.
type Pago struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PedidoID     uuid.UUID       `gorm:"type:uuid;index;not null"`
	MetodoPagoID uuid.UUID       `gorm:"type:uuid;not null"`
	Monto        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Referencia   *string
	// PosID identifies the card terminal, when there is one.
	PosID     *string `gorm:"type:varchar(50)"`
	CreatedAt time.Time

	MetodoPago *MetodoPago `gorm:"foreignKey:MetodoPagoID"`
}

func (Pago) TableName() string { return "pagos" }
