package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

// CrearPedidoRequest: the four totals are taken as given and must satisfy
// total_neto = total_bruto - descuento_total + iva.
type CrearPedidoRequest struct {
	SucursalID     string           `json:"sucursal_id"     validate:"required,uuid"`
	NumeroPedido   string           `json:"numero_pedido"   validate:"required,max=50"`
	TipoVenta      string           `json:"tipo_venta"      validate:"required,oneof=local para_llevar delivery"`
	EsOffline      bool             `json:"es_offline"`
	FechaHora      *time.Time       `json:"fecha_hora"`
	TotalBruto     *decimal.Decimal `json:"total_bruto"     validate:"required"`
	DescuentoTotal *decimal.Decimal `json:"descuento_total" validate:"required"`
	IVA            *decimal.Decimal `json:"iva"             validate:"required"`
	TotalNeto      *decimal.Decimal `json:"total_neto"      validate:"required"`
}

type AgregarDetalleRequest struct {
	ProductoID string          `json:"producto_id" validate:"required,uuid"`
	Cantidad   int             `json:"cantidad"    validate:"required,min=1"`
	Descuento  decimal.Decimal `json:"descuento"   validate:"min=0"`
	Notas      *string         `json:"notas"       validate:"omitempty,max=500"`
}

// ActualizarDetalleRequest: nil fields are left unchanged.
type ActualizarDetalleRequest struct {
	Cantidad  *int             `json:"cantidad"  validate:"omitempty,min=1"`
	Descuento *decimal.Decimal `json:"descuento"`
	Notas     *string          `json:"notas"     validate:"omitempty,max=500"`
}

type AgregarModificadorRequest struct {
	ModificadorID string `json:"modificador_id" validate:"required,uuid"`
	// ValorAplicado defaults to the modifier's valor_adicional when omitted.
	ValorAplicado *decimal.Decimal `json:"valor_aplicado"`
	EsGratuito    bool             `json:"es_gratuito"`
}

type RegistrarPagoRequest struct {
	MetodoPagoID string          `json:"metodo_pago_id" validate:"required,uuid"`
	Monto        decimal.Decimal `json:"monto"          validate:"gt=0"`
	Referencia   *string         `json:"referencia"     validate:"omitempty,max=100"`
	PosID        *string         `json:"pos_id"         validate:"omitempty,max=50"`
}

type CambiarEstadoRequest struct {
	Estado string `json:"estado" validate:"required,oneof=en_proceso completado anulado"`
}

// RecalcularRequest: IVA nil keeps the order's current tax amount.
type RecalcularRequest struct {
	IVA *decimal.Decimal `json:"iva"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ModificadorAplicadoResponse struct {
	ID            string          `json:"id"`
	ModificadorID string          `json:"modificador_id"`
	ValorAplicado decimal.Decimal `json:"valor_aplicado"`
	EsGratuito    bool            `json:"es_gratuito"`
}

type DetalleResponse struct {
	ID             string                        `json:"id"`
	PedidoID       string                        `json:"pedido_id"`
	ProductoID     string                        `json:"producto_id"`
	Producto       string                        `json:"producto,omitempty"`
	Cantidad       int                           `json:"cantidad"`
	PrecioUnitario decimal.Decimal               `json:"precio_unitario"`
	Descuento      decimal.Decimal               `json:"descuento"`
	TotalLinea     decimal.Decimal               `json:"total_linea"`
	Notas          *string                       `json:"notas"`
	Modificadores  []ModificadorAplicadoResponse `json:"modificadores"`
}

type PagoResponse struct {
	ID           string          `json:"id"`
	PedidoID     string          `json:"pedido_id"`
	MetodoPagoID string          `json:"metodo_pago_id"`
	Monto        decimal.Decimal `json:"monto"`
	Referencia   *string         `json:"referencia"`
	PosID        *string         `json:"pos_id"`
	CreatedAt    string          `json:"created_at"`
}

type PedidoResponse struct {
	ID                  string            `json:"id"`
	SucursalID          string            `json:"sucursal_id"`
	UsuarioID           string            `json:"usuario_id"`
	NumeroPedido        string            `json:"numero_pedido"`
	FechaHora           string            `json:"fecha_hora"`
	Estado              string            `json:"estado"`
	TipoVenta           string            `json:"tipo_venta"`
	EsOffline           bool              `json:"es_offline"`
	FechaSincronizacion *string           `json:"fecha_sincronizacion"`
	TotalBruto          decimal.Decimal   `json:"total_bruto"`
	DescuentoTotal      decimal.Decimal   `json:"descuento_total"`
	IVA                 decimal.Decimal   `json:"iva"`
	TotalNeto           decimal.Decimal   `json:"total_neto"`
	TotalPagado         decimal.Decimal   `json:"total_pagado"`
	Detalles            []DetalleResponse `json:"detalles"`
	Pagos               []PagoResponse    `json:"pagos"`
}
