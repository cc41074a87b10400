package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EstadoCajaAbierta = "abierta"
	EstadoCajaCerrada = "cerrada"
)

var ErrCajaCerrada = errors.New("la caja ya esta cerrada")

// CierreCaja is one open-to-close window of a branch till.
// Estado: "abierta" | "cerrada"
type CierreCaja struct {
	ID                   uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SucursalID           uuid.UUID `gorm:"type:uuid;index;not null"`
	UsuarioID            uuid.UUID `gorm:"type:uuid;index;not null"`
	FechaApertura        time.Time `gorm:"not null"`
	FechaCierre          *time.Time
	MontoInicial         decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	IngresosEfectivo     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	IngresosElectronicos decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	// TotalEsperado and Diferencia are computed on close
	TotalEsperado *decimal.Decimal `gorm:"type:decimal(12,2)"`
	TotalReal     *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Diferencia    *decimal.Decimal `gorm:"type:decimal(12,2)"`
	// ClasificacionDesvio: "normal" | "advertencia" | "critico"
	ClasificacionDesvio *string `gorm:"type:varchar(20)"`
	Estado              string  `gorm:"type:varchar(20);not null;default:'abierta'"`
	Observaciones       *string
}

func (CierreCaja) TableName() string { return "cierres_caja" }

// Cerrar computes expected = inicial + efectivo + electronicos and
// diferencia = real - expected, then moves the cycle to cerrada.
func (c *CierreCaja) Cerrar(efectivo, electronicos, real decimal.Decimal, observaciones *string, at time.Time) error {
	if c.Estado != EstadoCajaAbierta {
		return ErrCajaCerrada
	}
	esperado := c.MontoInicial.Add(efectivo).Add(electronicos)
	diferencia := real.Sub(esperado)
	clasificacion := ClasificarDesvio(diferencia, esperado)

	c.IngresosEfectivo = efectivo
	c.IngresosElectronicos = electronicos
	c.TotalEsperado = &esperado
	c.TotalReal = &real
	c.Diferencia = &diferencia
	c.ClasificacionDesvio = &clasificacion
	c.Observaciones = observaciones
	c.Estado = EstadoCajaCerrada
	c.FechaCierre = &at
	return nil
}

// ClasificarDesvio returns "normal" | "advertencia" | "critico".
// normal: |desvio| <= 1%, advertencia: <= 5%, critico: > 5%
func ClasificarDesvio(diferencia, esperado decimal.Decimal) string {
	if esperado.IsZero() {
		if diferencia.IsZero() {
			return "normal"
		}
		return "critico"
	}
	pct := diferencia.Div(esperado).Mul(decimal.NewFromInt(100)).Abs()
	switch {
	case pct.LessThanOrEqual(decimal.NewFromInt(1)):
		return "normal"
	case pct.LessThanOrEqual(decimal.NewFromInt(5)):
		return "advertencia"
	default:
		return "critico"
	}
}
