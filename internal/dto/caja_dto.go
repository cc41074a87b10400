package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type AbrirCajaRequest struct {
	SucursalID   string           `json:"sucursal_id"   validate:"required,uuid"`
	MontoInicial *decimal.Decimal `json:"monto_inicial" validate:"required"`
}

// CerrarCajaRequest carries the declared income and the physically counted total.
// All three amounts are mandatory; a missing value is never treated as zero.
type CerrarCajaRequest struct {
	IngresosEfectivo     *decimal.Decimal `json:"ingresos_efectivo"     validate:"required"`
	IngresosElectronicos *decimal.Decimal `json:"ingresos_electronicos" validate:"required"`
	TotalReal            *decimal.Decimal `json:"total_real"            validate:"required"`
	Observaciones        *string          `json:"observaciones"         validate:"omitempty,max=1000"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type CierreCajaResponse struct {
	ID                   string           `json:"id"`
	SucursalID           string           `json:"sucursal_id"`
	UsuarioID            string           `json:"usuario_id"`
	FechaApertura        string           `json:"fecha_apertura"`
	FechaCierre          *string          `json:"fecha_cierre"`
	MontoInicial         decimal.Decimal  `json:"monto_inicial"`
	IngresosEfectivo     decimal.Decimal  `json:"ingresos_efectivo"`
	IngresosElectronicos decimal.Decimal  `json:"ingresos_electronicos"`
	TotalEsperado        *decimal.Decimal `json:"total_esperado"`
	TotalReal            *decimal.Decimal `json:"total_real"`
	Diferencia           *decimal.Decimal `json:"diferencia"`
	ClasificacionDesvio  *string          `json:"clasificacion_desvio"` // normal | advertencia | critico
	Estado               string           `json:"estado"`
	Observaciones        *string          `json:"observaciones"`
}
