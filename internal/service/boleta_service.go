package service

import (
	"context"
	"errors"
	"time"

	"foodtruck/internal/apierror"
	"foodtruck/internal/dto"
	"foodtruck/internal/model"
	"foodtruck/internal/repository"
	"foodtruck/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// BoletaJobs enqueues the post-issuance work (SII submission, PDF, email).
type BoletaJobs interface {
	EnqueueBoleta(ctx context.Context, payload worker.BoletaJobPayload) error
}

// BoletaDocumentos renders a boleta and stores it, returning its URL.
type BoletaDocumentos interface {
	GenerarPDF(ctx context.Context, b *model.Boleta) (string, error)
}

type BoletaService interface {
	// Emitir issues the single boleta of an order with the next folio.
	Emitir(ctx context.Context, pedidoID uuid.UUID, req dto.EmitirBoletaRequest) (*dto.BoletaResponse, error)
	Obtener(ctx context.Context, id uuid.UUID) (*dto.BoletaResponse, error)
	ObtenerPorPedido(ctx context.Context, pedidoID uuid.UUID) (*dto.BoletaResponse, error)
	GenerarPDF(ctx context.Context, id uuid.UUID) (*dto.BoletaResponse, error)
}

type boletaService struct {
	repo    repository.BoletaRepository
	pedidos repository.PedidoRepository
	jobs    BoletaJobs
	docs    BoletaDocumentos
	now     func() time.Time
}

func NewBoletaService(
	repo repository.BoletaRepository,
	pedidos repository.PedidoRepository,
	jobs BoletaJobs,
	docs BoletaDocumentos,
) BoletaService {
	return &boletaService{repo: repo, pedidos: pedidos, jobs: jobs, docs: docs, now: time.Now}
}

// ── Emitir ────────────────────────────────────────────────────────────────────
//   1. Load the order; voided orders are never invoiced
//   2. Snapshot monto_total = total_neto + iva
//   3. Allocate folio and insert under the folio lock (one boleta per order)
//   4. Enqueue SII submission; if the queue is down the retry cron takes over

func (s *boletaService) Emitir(ctx context.Context, pedidoID uuid.UUID, req dto.EmitirBoletaRequest) (*dto.BoletaResponse, error) {
	pedido, err := s.pedidos.FindByID(ctx, pedidoID)
	if err != nil {
		return nil, lookupErr(err, "pedido no encontrado")
	}
	if pedido.Estado == model.EstadoPedidoAnulado {
		return nil, apierror.Conflict("no se puede emitir boleta para un pedido anulado")
	}

	pendiente := model.EnvioSIIPendiente
	b := &model.Boleta{
		PedidoID:       pedidoID,
		FechaEmision:   s.now(),
		RUTCliente:     req.RUTCliente,
		EmailCliente:   req.EmailCliente,
		MontoTotal:     pedido.TotalNeto.Add(pedido.IVA),
		EstadoEnvioSII: &pendiente,
	}
	if err := s.repo.CreateConFolio(ctx, b); err != nil {
		if errors.Is(err, repository.ErrBoletaExistente) || repository.IsUniqueViolation(err) {
			return nil, apierror.Conflict("el pedido ya tiene una boleta emitida")
		}
		return nil, apierror.Internal("no se pudo emitir la boleta", err)
	}
	log.Info().Int64("folio", b.Folio).Str("pedido_id", pedidoID.String()).Msg("boleta: emitida")

	job := worker.BoletaJobPayload{BoletaID: b.ID.String()}
	if err := s.jobs.EnqueueBoleta(ctx, job); err != nil {
		log.Warn().Err(err).Int64("folio", b.Folio).Msg("boleta: enqueue failed, deferring to retry cron")
		next := s.now().Add(time.Minute)
		b.NextRetryAt = &next
		if uerr := s.repo.UpdateEnvioSII(ctx, b); uerr != nil {
			log.Error().Err(uerr).Int64("folio", b.Folio).Msg("boleta: could not schedule retry")
		}
	}
	return boletaToResponse(b), nil
}

func (s *boletaService) Obtener(ctx context.Context, id uuid.UUID) (*dto.BoletaResponse, error) {
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "boleta no encontrada")
	}
	return boletaToResponse(b), nil
}

func (s *boletaService) ObtenerPorPedido(ctx context.Context, pedidoID uuid.UUID) (*dto.BoletaResponse, error) {
	b, err := s.repo.FindByPedidoID(ctx, pedidoID)
	if err != nil {
		return nil, lookupErr(err, "el pedido no tiene boleta")
	}
	return boletaToResponse(b), nil
}

// GenerarPDF renders the document again and replaces url_pdf.
func (s *boletaService) GenerarPDF(ctx context.Context, id uuid.UUID) (*dto.BoletaResponse, error) {
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "boleta no encontrada")
	}
	url, err := s.docs.GenerarPDF(ctx, b)
	if err != nil {
		return nil, apierror.Upstream("no se pudo generar el PDF de la boleta", nil, err)
	}
	b.URLPDF = &url
	return boletaToResponse(b), nil
}

func boletaToResponse(b *model.Boleta) *dto.BoletaResponse {
	return &dto.BoletaResponse{
		ID:             b.ID.String(),
		PedidoID:       b.PedidoID.String(),
		Folio:          b.Folio,
		FechaEmision:   fmtTime(b.FechaEmision),
		RUTCliente:     b.RUTCliente,
		EmailCliente:   b.EmailCliente,
		MontoTotal:     b.MontoTotal,
		EstadoEnvioSII: b.EstadoEnvioSII,
		TrackID:        b.TrackID,
		CodigoQR:       b.CodigoQR,
		URLPDF:         b.URLPDF,
	}
}
