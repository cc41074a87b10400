package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EstadoWebpayPendiente  = "pendiente"
	EstadoWebpayAutorizado = "autorizado"
	EstadoWebpayRechazado  = "rechazado"
)

// TransaccionWebpay is one card authorization attempt against Webpay Plus.
// It is independent of Pago: authorizing a transaction does not register a payment.
// Estado: "pendiente" | "autorizado" | "rechazado"
type TransaccionWebpay struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PedidoID  uuid.UUID       `gorm:"type:uuid;index;not null"`
	Token     string          `gorm:"type:varchar(200);uniqueIndex;not null"`
	BuyOrder  string          `gorm:"type:varchar(26);not null"`
	SessionID string          `gorm:"type:varchar(61);not null"`
	Monto     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Estado    string          `gorm:"type:varchar(20);not null;default:'pendiente'"`
	// Commit result, filled once the gateway answers with a recognized status
	CodigoAutorizacion *string `gorm:"type:varchar(20)"`
	ResponseCode       *int
	RespuestaCommit    *string `gorm:"type:text"`

	FechaCreacion      time.Time `gorm:"autoCreateTime"`
	FechaActualizacion time.Time `gorm:"autoUpdateTime"`
}

func (TransaccionWebpay) TableName() string { return "transacciones_webpay" }

// EsTerminal reports whether the transaction reached autorizado or rechazado.
func (t *TransaccionWebpay) EsTerminal() bool {
	return t.Estado == EstadoWebpayAutorizado || t.Estado == EstadoWebpayRechazado
}
