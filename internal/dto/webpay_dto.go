package dto

import "github.com/shopspring/decimal"

type IniciarWebpayRequest struct {
	PedidoID string `json:"pedido_id"  validate:"required,uuid"`
	// Monto defaults to the order's unpaid balance when omitted.
	Monto     *decimal.Decimal `json:"monto"`
	ReturnURL string           `json:"return_url" validate:"required,url"`
}

type IniciarWebpayResponse struct {
	ID    string `json:"id"`
	Token string `json:"token"`
	URL   string `json:"url"`
}

// ConfirmarWebpayRequest: Webpay redirects back with token_ws; clients forward it here.
type ConfirmarWebpayRequest struct {
	Token string `json:"token" validate:"required,max=200"`
}

type TransaccionWebpayResponse struct {
	ID                 string          `json:"id"`
	PedidoID           string          `json:"pedido_id"`
	Token              string          `json:"token"`
	BuyOrder           string          `json:"buy_order"`
	SessionID          string          `json:"session_id"`
	Monto              decimal.Decimal `json:"monto"`
	Estado             string          `json:"estado"` // pendiente | autorizado | rechazado
	CodigoAutorizacion *string         `json:"codigo_autorizacion"`
	ResponseCode       *int            `json:"response_code"`
	FechaCreacion      string          `json:"fecha_creacion"`
	FechaActualizacion string          `json:"fecha_actualizacion"`
}
