package dto

import "github.com/shopspring/decimal"

type EmitirBoletaRequest struct {
	RUTCliente   *string `json:"rut_cliente"   validate:"omitempty,max=12"`
	EmailCliente *string `json:"email_cliente" validate:"omitempty,email"`
}

type BoletaResponse struct {
	ID             string          `json:"id"`
	PedidoID       string          `json:"pedido_id"`
	Folio          int64           `json:"folio"`
	FechaEmision   string          `json:"fecha_emision"`
	RUTCliente     *string         `json:"rut_cliente"`
	EmailCliente   *string         `json:"email_cliente"`
	MontoTotal     decimal.Decimal `json:"monto_total"`
	EstadoEnvioSII *string         `json:"estado_envio_sii"` // null | pendiente | aceptado | rechazado | error
	TrackID        *string         `json:"track_id"`
	CodigoQR       *string         `json:"codigo_qr"`
	URLPDF         *string         `json:"url_pdf"`
}
