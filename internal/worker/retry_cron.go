package worker

// retry_cron.go
// Background goroutine that periodically re-submits boletas stuck in
// estado_envio_sii='pendiente' with a next_retry_at in the past.
// Uses the circuit breaker to avoid hammering a downed sidecar.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"foodtruck/internal/infra"
	"foodtruck/internal/repository"

	"github.com/rs/zerolog/log"
)

const (
	retryTickInterval = 30 * time.Second
	retryBatchSize    = 10
)

// RetryCronConfig holds all dependencies for the retry goroutine.
type RetryCronConfig struct {
	Boletas   repository.BoletaRepository
	Processor *BoletaProcessor
	CB        *infra.CircuitBreaker
	Broker    Broker
	// Interval defaults to 30s.
	Interval time.Duration
}

// StartRetryCron launches the retry ticker. It stops when ctx is cancelled.
func StartRetryCron(ctx context.Context, cfg RetryCronConfig) {
	interval := cfg.Interval
	if interval <= 0 {
		interval = retryTickInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Info().Dur("interval", interval).Msg("retry_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("retry_cron: shutting down")
				return
			case <-ticker.C:
				processRetries(ctx, cfg)
			}
		}
	}()
}

func processRetries(ctx context.Context, cfg RetryCronConfig) {
	// If CB is open, skip entirely
	if cfg.CB.State() == infra.BreakerOpen {
		log.Debug().Msg("retry_cron: circuit breaker is open, skipping tick")
		return
	}

	boletas, err := cfg.Boletas.ListPendingRetries(ctx, cfg.Processor.now(), retryBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("retry_cron: failed to query pending retries")
		return
	}
	if len(boletas) == 0 {
		return
	}

	log.Info().Int("count", len(boletas)).Msg("retry_cron: processing pending boletas")

	for i := range boletas {
		b := &boletas[i]

		// It may have tripped mid-batch
		if cfg.CB.State() == infra.BreakerOpen {
			log.Debug().Msg("retry_cron: circuit breaker opened mid-batch, stopping")
			return
		}

		pedido, err := cfg.Processor.pedidos.FindByID(ctx, b.PedidoID)
		if err != nil {
			log.Error().Err(err).Int64("folio", b.Folio).Msg("retry_cron: pedido not found")
			continue
		}

		err = cfg.Processor.enviarSII(ctx, b, pedido, 1)
		if errors.Is(err, errReintentosAgotados) {
			payload := []byte(fmt.Sprintf(`{"boleta_id":%q}`, b.ID.String()))
			deadLetter(ctx, cfg.Broker, QueueBoletas, JobBoleta, payload,
				fmt.Sprintf("max retries (%d) exceeded: %s", MaxBoletaRetries, derefStr(b.LastError)),
				b.RetryCount)
			continue
		}
		if b.NextRetryAt != nil {
			log.Warn().
				Int64("folio", b.Folio).
				Int("retry_count", b.RetryCount).
				Time("next_retry_at", *b.NextRetryAt).
				Msg("retry_cron: SII retry did not resolve, scheduled next attempt")
			continue
		}

		// Resolved now: the PDF and email follow the normal job path.
		if b.URLPDF == nil {
			if err := cfg.Processor.Process(ctx, []byte(fmt.Sprintf(`{"boleta_id":%q}`, b.ID.String()))); err != nil {
				log.Warn().Err(err).Int64("folio", b.Folio).Msg("retry_cron: post-submission work failed")
			}
		}
	}
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
