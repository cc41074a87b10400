package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Boleta is the fiscal receipt of an order. Folio is assigned once at issuance
// and is never reused, even after the document is voided.
// EstadoEnvioSII: nil (not submitted) | "pendiente" | "aceptado" | "rechazado" | "error"
type Boleta struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PedidoID     uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`
	Folio        int64     `gorm:"uniqueIndex;not null"`
	FechaEmision time.Time `gorm:"not null"`
	RUTCliente   *string   `gorm:"type:varchar(12);column:rut_cliente"`
	EmailCliente *string
	// MontoTotal is the order snapshot at issuance (total_neto + iva).
	MontoTotal     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CodigoQR       *string         `gorm:"column:codigo_qr"`
	EstadoEnvioSII *string         `gorm:"type:varchar(20);column:estado_envio_sii"`
	TrackID        *string         `gorm:"type:varchar(50)"`
	XMLBoleta      *string         `gorm:"column:xml_boleta"`
	URLPDF         *string         `gorm:"column:url_pdf"`
	// Retry fields used by the retry cron to re-attempt failed SII submissions
	RetryCount  int        `gorm:"not null;default:0"`
	NextRetryAt *time.Time `gorm:"column:next_retry_at"`
	LastError   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Pedido *Pedido `gorm:"foreignKey:PedidoID"`
}

func (Boleta) TableName() string { return "boletas" }

const (
	EnvioSIIPendiente = "pendiente"
	EnvioSIIAceptado  = "aceptado"
	EnvioSIIRechazado = "rechazado"
	EnvioSIIError     = "error"
)
