package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// SIIItem is one line of the electronic receipt.
type SIIItem struct {
	Nombre   string          `json:"nombre"`
	Cantidad int             `json:"cantidad"`
	Precio   decimal.Decimal `json:"precio"`
	Monto    decimal.Decimal `json:"monto"`
}

// SIIPayload is what the sidecar needs to sign and submit a boleta electronica (DTE 39).
type SIIPayload struct {
	TipoDTE      int             `json:"tipo_dte"`
	Folio        int64           `json:"folio"`
	RUTEmisor    string          `json:"rut_emisor"`
	RUTReceptor  string          `json:"rut_receptor"`
	FechaEmision string          `json:"fecha_emision"` // YYYY-MM-DD
	MontoNeto    decimal.Decimal `json:"monto_neto"`
	MontoIVA     decimal.Decimal `json:"monto_iva"`
	MontoTotal   decimal.Decimal `json:"monto_total"`
	Items        []SIIItem       `json:"items"`
}

// SIIResponse: Estado "aceptado" | "rechazado" | "pendiente"
type SIIResponse struct {
	TrackID string `json:"track_id"`
	Estado  string `json:"estado"`
	XML     string `json:"xml"`
	Timbre  string `json:"timbre"` // TED, printed as the receipt barcode
	Glosa   string `json:"glosa"`
}

// ConsumidorFinal is the generic RUT used when the buyer does not identify.
const ConsumidorFinal = "66666666-6"

const TipoDTEBoleta = 39

// SIIClient forwards boletas to the signing sidecar, which holds the CAF and
// the certificate and talks to the SII web services.
type SIIClient struct {
	sidecarURL string
	httpClient *http.Client
}

func NewSIIClient(sidecarURL string) *SIIClient {
	return &SIIClient{
		sidecarURL: sidecarURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *SIIClient) Emitir(ctx context.Context, payload SIIPayload) (*SIIResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("sii: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sidecarURL+"/boletas", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("sii: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sii: sidecar unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("sii: sidecar returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out SIIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("sii: decode response: %w", err)
	}
	return &out, nil
}
