package worker

// boleta_worker.go
// Post-issuance work for a boleta, consumed from QueueBoletas:
//  1. Submit the DTE to the SII sidecar (backoff, behind the circuit breaker)
//  2. Persist estado_envio_sii / track_id / xml / timbre, or schedule a retry
//  3. Render the PDF and upload it to the blob store
//  4. Enqueue the customer email when an address was given

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"foodtruck/internal/infra"
	"foodtruck/internal/model"
	"foodtruck/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MaxBoletaRetries is the number of failed SII submissions after which the
// boleta is marked error and parked in the dead-letter list.
const MaxBoletaRetries = 5

// errReintentosAgotados signals the pool to dead-letter the job.
var errReintentosAgotados = errors.New("sii submission retries exhausted")

// SIISubmitter is satisfied by *infra.SIIClient.
type SIISubmitter interface {
	Emitir(ctx context.Context, payload infra.SIIPayload) (*infra.SIIResponse, error)
}

// BlobStore is satisfied by *infra.S3BlobStore.
type BlobStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
	DeleteByURL(ctx context.Context, url string) error
}

// EmailEnqueuer is satisfied by *Dispatcher.
type EmailEnqueuer interface {
	EnqueueEmail(ctx context.Context, payload EmailJobPayload) error
}

type BoletaWorkerConfig struct {
	RUTEmisor      string
	NombreComercio string
	// Attempts is the number of immediate submissions per job before the
	// boleta is left to the retry cron.
	Attempts int
}

type BoletaProcessor struct {
	boletas    repository.BoletaRepository
	pedidos    repository.PedidoRepository
	sucursales repository.SucursalRepository
	sii        SIISubmitter
	breaker    *infra.CircuitBreaker
	blobs      BlobStore
	emails     EmailEnqueuer
	cfg        BoletaWorkerConfig

	now     func() time.Time
	backoff func(attempt int) time.Duration
}

func NewBoletaProcessor(
	boletas repository.BoletaRepository,
	pedidos repository.PedidoRepository,
	sucursales repository.SucursalRepository,
	sii SIISubmitter,
	breaker *infra.CircuitBreaker,
	blobs BlobStore,
	emails EmailEnqueuer,
	cfg BoletaWorkerConfig,
) *BoletaProcessor {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	return &BoletaProcessor{
		boletas:    boletas,
		pedidos:    pedidos,
		sucursales: sucursales,
		sii:        sii,
		breaker:    breaker,
		blobs:      blobs,
		emails:     emails,
		cfg:        cfg,
		now:        time.Now,
		backoff:    exponentialBackoff,
	}
}

func (w *BoletaProcessor) Process(ctx context.Context, raw json.RawMessage) error {
	var payload BoletaJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("boleta_worker: invalid payload: %w", err)
	}
	id, err := uuid.Parse(payload.BoletaID)
	if err != nil {
		return fmt.Errorf("boleta_worker: invalid boleta_id %q", payload.BoletaID)
	}

	b, err := w.boletas.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("boleta_worker: load boleta %s: %w", id, err)
	}
	pedido, err := w.pedidos.FindByID(ctx, b.PedidoID)
	if err != nil {
		return fmt.Errorf("boleta_worker: load pedido %s: %w", b.PedidoID, err)
	}

	if enviable(b) {
		if err := w.enviarSII(ctx, b, pedido, w.cfg.Attempts); err != nil {
			return err
		}
	}

	if b.URLPDF != nil {
		return nil
	}
	pdf, url, err := w.renderYSubir(ctx, b, pedido)
	if err != nil {
		log.Warn().Err(err).Int64("folio", b.Folio).Msg("boleta_worker: PDF generation failed")
		return nil
	}
	log.Info().Str("url", url).Int64("folio", b.Folio).Msg("boleta_worker: PDF stored")

	if b.EmailCliente != nil && *b.EmailCliente != "" {
		job := EmailJobPayload{
			ToEmail:  *b.EmailCliente,
			Subject:  fmt.Sprintf("%s: boleta N° %d", w.cfg.NombreComercio, b.Folio),
			Body:     fmt.Sprintf("Adjuntamos su boleta electronica N° %d.\nTotal: %s", b.Folio, b.MontoTotal.StringFixed(0)),
			Filename: fmt.Sprintf("boleta_%d.pdf", b.Folio),
			PDF:      pdf,
		}
		if err := w.emails.EnqueueEmail(ctx, job); err != nil {
			log.Warn().Err(err).Str("email", *b.EmailCliente).Msg("boleta_worker: failed to enqueue email")
		}
	}
	return nil
}

// GenerarPDF renders the boleta, uploads it and stores the new url_pdf. A
// previous document, if any, is deleted from the store afterwards.
func (w *BoletaProcessor) GenerarPDF(ctx context.Context, b *model.Boleta) (string, error) {
	pedido, err := w.pedidos.FindByID(ctx, b.PedidoID)
	if err != nil {
		return "", fmt.Errorf("load pedido: %w", err)
	}
	_, url, err := w.renderYSubir(ctx, b, pedido)
	return url, err
}

func (w *BoletaProcessor) renderYSubir(ctx context.Context, b *model.Boleta, pedido *model.Pedido) ([]byte, string, error) {
	pdf, err := infra.RenderBoletaPDF(w.documento(ctx, b, pedido))
	if err != nil {
		return nil, "", err
	}
	key := fmt.Sprintf("%d/boleta_%d.pdf", b.FechaEmision.Year(), b.Folio)
	url, err := w.blobs.Upload(ctx, key, "application/pdf", pdf)
	if err != nil {
		return nil, "", err
	}

	// Only url_pdf is written; b may predate the stored SII outcome.
	anterior := b.URLPDF
	b.URLPDF = &url
	if err := w.boletas.UpdatePDF(ctx, b.ID, url); err != nil {
		return nil, "", fmt.Errorf("save url_pdf: %w", err)
	}
	if anterior != nil && *anterior != url {
		if err := w.blobs.DeleteByURL(ctx, *anterior); err != nil {
			log.Warn().Err(err).Str("url", *anterior).Msg("boleta_worker: could not delete previous PDF")
		}
	}
	return pdf, url, nil
}

func (w *BoletaProcessor) documento(ctx context.Context, b *model.Boleta, pedido *model.Pedido) infra.BoletaDocumento {
	doc := infra.BoletaDocumento{
		NombreComercio: w.cfg.NombreComercio,
		RUTEmisor:      w.cfg.RUTEmisor,
		Folio:          b.Folio,
		FechaEmision:   b.FechaEmision,
		Descuento:      pedido.DescuentoTotal,
		IVA:            pedido.IVA,
		Total:          b.MontoTotal,
	}
	if suc, err := w.sucursales.FindByID(ctx, pedido.SucursalID); err == nil {
		doc.Sucursal = suc.Nombre
	}
	if b.CodigoQR != nil {
		doc.Timbre = *b.CodigoQR
	}
	for _, d := range pedido.Detalles {
		doc.Items = append(doc.Items, infra.BoletaItem{
			Nombre:   nombreProducto(d),
			Cantidad: d.Cantidad,
			Total:    d.TotalLinea,
		})
	}
	return doc
}

// ── SII submission ────────────────────────────────────────────────────────────

// enviarSII submits up to attempts times and records the outcome on b. It
// returns errReintentosAgotados once the boleta reached MaxBoletaRetries.
func (w *BoletaProcessor) enviarSII(ctx context.Context, b *model.Boleta, pedido *model.Pedido, attempts int) error {
	payload := w.siiPayload(b, pedido)

	var resp *infra.SIIResponse
	err := withRetry(ctx, attempts, w.backoff, func(attempt int) error {
		return w.breaker.Do(func() error {
			r, err := w.sii.Emitir(ctx, payload)
			if err != nil {
				log.Warn().Err(err).Int("attempt", attempt+1).Int64("folio", b.Folio).
					Msg("boleta_worker: SII attempt failed")
				return err
			}
			resp = r
			return nil
		})
	})

	agotado := w.aplicarResultado(b, resp, err)
	if uerr := w.boletas.UpdateEnvioSII(ctx, b); uerr != nil {
		log.Error().Err(uerr).Int64("folio", b.Folio).Msg("boleta_worker: could not save SII outcome")
	}
	if agotado {
		return fmt.Errorf("%w: folio %d: %v", errReintentosAgotados, b.Folio, err)
	}
	return nil
}

// aplicarResultado maps the submission outcome onto b and reports whether
// the retry budget is spent.
func (w *BoletaProcessor) aplicarResultado(b *model.Boleta, resp *infra.SIIResponse, err error) bool {
	now := w.now()
	if err != nil {
		b.RetryCount++
		msg := err.Error()
		b.LastError = &msg
		if b.RetryCount >= MaxBoletaRetries {
			estado := model.EnvioSIIError
			b.EstadoEnvioSII = &estado
			b.NextRetryAt = nil
			log.Error().Int64("folio", b.Folio).Int("retries", b.RetryCount).
				Msg("boleta_worker: max retries exceeded, marking error")
			return true
		}
		next := now.Add(computeRetryBackoff(b.RetryCount))
		b.NextRetryAt = &next
		return false
	}

	if resp.TrackID != "" {
		b.TrackID = &resp.TrackID
	}
	if resp.XML != "" {
		b.XMLBoleta = &resp.XML
	}
	if resp.Timbre != "" {
		b.CodigoQR = &resp.Timbre
	}

	switch strings.ToLower(resp.Estado) {
	case model.EnvioSIIAceptado:
		estado := model.EnvioSIIAceptado
		b.EstadoEnvioSII = &estado
		b.NextRetryAt = nil
		b.LastError = nil
		log.Info().Int64("folio", b.Folio).Str("track_id", resp.TrackID).Msg("boleta_worker: accepted by SII")
	case model.EnvioSIIRechazado:
		estado := model.EnvioSIIRechazado
		b.EstadoEnvioSII = &estado
		b.NextRetryAt = nil
		glosa := resp.Glosa
		b.LastError = &glosa
		log.Warn().Int64("folio", b.Folio).Str("glosa", resp.Glosa).Msg("boleta_worker: rejected by SII")
	default:
		// Received but not yet resolved: ask again later.
		estado := model.EnvioSIIPendiente
		b.EstadoEnvioSII = &estado
		next := now.Add(computeRetryBackoff(1))
		b.NextRetryAt = &next
	}
	return false
}

func (w *BoletaProcessor) siiPayload(b *model.Boleta, pedido *model.Pedido) infra.SIIPayload {
	receptor := infra.ConsumidorFinal
	if b.RUTCliente != nil && *b.RUTCliente != "" {
		receptor = *b.RUTCliente
	}
	items := make([]infra.SIIItem, 0, len(pedido.Detalles))
	for _, d := range pedido.Detalles {
		items = append(items, infra.SIIItem{
			Nombre:   nombreProducto(d),
			Cantidad: d.Cantidad,
			Precio:   d.PrecioUnitario,
			Monto:    d.TotalLinea,
		})
	}
	return infra.SIIPayload{
		TipoDTE:      infra.TipoDTEBoleta,
		Folio:        b.Folio,
		RUTEmisor:    w.cfg.RUTEmisor,
		RUTReceptor:  receptor,
		FechaEmision: b.FechaEmision.Format("2006-01-02"),
		MontoNeto:    b.MontoTotal.Sub(pedido.IVA),
		MontoIVA:     pedido.IVA,
		MontoTotal:   b.MontoTotal,
		Items:        items,
	}
}

// enviable reports whether the SII has not given a final answer yet.
func enviable(b *model.Boleta) bool {
	return b.EstadoEnvioSII == nil || *b.EstadoEnvioSII == model.EnvioSIIPendiente
}

func nombreProducto(d model.PedidoDetalle) string {
	if d.Producto != nil && d.Producto.Nombre != "" {
		return d.Producto.Nombre
	}
	return "Producto"
}

// withRetry calls fn up to maxAttempts times, sleeping backoff(i) before
// attempt i. Returns nil if any attempt succeeds; last error otherwise.
func withRetry(ctx context.Context, maxAttempts int, backoff func(int) time.Duration, fn func(attempt int) error) error {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff(i)):
			}
		}
		if err := fn(i); err != nil {
			lastErr = err
			if errors.Is(err, infra.ErrCircuitOpen) {
				return err
			}
			continue
		}
		return nil
	}
	return lastErr
}

// exponentialBackoff: 1s, 2s, 4s ...
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt-1)) * time.Second
}

// computeRetryBackoff spaces cron retries: 1m, 2m, 4m ... capped at 30m.
func computeRetryBackoff(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	if retryCount > 6 {
		return 30 * time.Minute
	}
	d := time.Minute << uint(retryCount-1)
	if d > 30*time.Minute {
		return 30 * time.Minute
	}
	return d
}
