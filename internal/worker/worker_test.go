package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"foodtruck/internal/infra"
	"foodtruck/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boletaJob(t *testing.T, f *fixture) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(BoletaJobPayload{BoletaID: f.boleta.ID.String()})
	require.NoError(t, err)
	return raw
}

// ── Dispatcher / pool ─────────────────────────────────────────────────────────

func TestDispatcher_EnqueueBoleta(t *testing.T) {
	broker := newFakeBroker()
	d := NewDispatcher(broker)

	require.NoError(t, d.EnqueueBoleta(context.Background(), BoletaJobPayload{BoletaID: "abc"}))

	items := broker.items(QueueBoletas)
	require.Len(t, items, 1)
	var job Job
	require.NoError(t, json.Unmarshal([]byte(items[0]), &job))
	assert.Equal(t, JobBoleta, job.Type)
	assert.JSONEq(t, `{"boleta_id":"abc"}`, string(job.Payload))
}

type handlerFunc func(ctx context.Context, raw json.RawMessage) error

func (h handlerFunc) Process(ctx context.Context, raw json.RawMessage) error { return h(ctx, raw) }

func TestProcessJob_Routing(t *testing.T) {
	var got string
	handlers := map[string]JobHandler{
		"ok": handlerFunc(func(_ context.Context, raw json.RawMessage) error {
			got = string(raw)
			return nil
		}),
		"fails": handlerFunc(func(context.Context, json.RawMessage) error {
			return errors.New("boom")
		}),
		"panics": handlerFunc(func(context.Context, json.RawMessage) error {
			panic("unexpected")
		}),
	}
	ctx := context.Background()

	t.Run("handler success", func(t *testing.T) {
		broker := newFakeBroker()
		processJob(ctx, broker, handlers, QueueBoletas, `{"type":"ok","payload":{"x":1}}`)
		assert.JSONEq(t, `{"x":1}`, got)
		assert.Empty(t, broker.items(DeadLetterPrefix+QueueBoletas))
	})

	for _, tc := range []struct {
		name, raw, reason string
	}{
		{"handler error", `{"type":"fails","payload":{}}`, "boom"},
		{"handler panic", `{"type":"panics","payload":{}}`, "panic: unexpected"},
		{"unknown type", `{"type":"nope","payload":{}}`, "no handler registered"},
		{"malformed envelope", `not json`, "malformed envelope"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			broker := newFakeBroker()
			processJob(ctx, broker, handlers, QueueBoletas, tc.raw)

			dlq := broker.items(DeadLetterPrefix + QueueBoletas)
			require.Len(t, dlq, 1)
			var entry DeadLetter
			require.NoError(t, json.Unmarshal([]byte(dlq[0]), &entry))
			assert.Equal(t, QueueBoletas, entry.Queue)
			assert.Contains(t, entry.Reason, tc.reason)

			n, err := DeadLetterDepth(ctx, broker, QueueBoletas)
			require.NoError(t, err)
			assert.EqualValues(t, 1, n)
		})
	}
}

func TestWorkerPool_ConsumesAndStops(t *testing.T) {
	broker := newFakeBroker()
	done := make(chan string, 1)
	handlers := map[string]JobHandler{
		JobEmail: handlerFunc(func(_ context.Context, raw json.RawMessage) error {
			done <- string(raw)
			return nil
		}),
	}
	require.NoError(t, NewDispatcher(broker).EnqueueEmail(context.Background(), EmailJobPayload{ToEmail: "a@b.cl"}))

	ctx, cancel := context.WithCancel(context.Background())
	wg := StartWorkerPool(ctx, broker, 2, handlers)

	select {
	case raw := <-done:
		assert.Contains(t, raw, "a@b.cl")
	case <-time.After(2 * time.Second):
		t.Fatal("job was not consumed")
	}
	cancel()
	wg.Wait()
}

// ── BoletaProcessor ───────────────────────────────────────────────────────────

func TestBoletaProcessor_Accepted(t *testing.T) {
	f := newFixture(nil)

	require.NoError(t, f.proc.Process(context.Background(), boletaJob(t, f)))

	b := f.boletas.get(f.boleta.ID)
	require.NotNil(t, b.EstadoEnvioSII)
	assert.Equal(t, model.EnvioSIIAceptado, *b.EstadoEnvioSII)
	assert.Equal(t, "T-1", *b.TrackID)
	assert.Equal(t, "TED-101", *b.CodigoQR)
	assert.Equal(t, "<DTE/>", *b.XMLBoleta)
	assert.Nil(t, b.NextRetryAt)
	require.NotNil(t, b.URLPDF)
	assert.Equal(t, "http://blobs/boletas/2026/boleta_101.pdf", *b.URLPDF)
	assert.Equal(t, []string{"2026/boleta_101.pdf"}, f.blobs.uploaded)

	require.Len(t, f.sii.payloads, 1)
	p := f.sii.payloads[0]
	assert.Equal(t, infra.TipoDTEBoleta, p.TipoDTE)
	assert.EqualValues(t, 101, p.Folio)
	assert.Equal(t, infra.ConsumidorFinal, p.RUTReceptor)
	assert.Equal(t, "2026-03-14", p.FechaEmision)
	assert.True(t, p.MontoTotal.Equal(f.boleta.MontoTotal))
	assert.True(t, p.MontoNeto.Add(p.MontoIVA).Equal(p.MontoTotal))
	require.Len(t, p.Items, 1)
	assert.Equal(t, "Completo italiano", p.Items[0].Nombre)

	require.Len(t, f.emails.jobs, 1)
	mail := f.emails.jobs[0]
	assert.Equal(t, "cliente@example.com", mail.ToEmail)
	assert.Equal(t, "boleta_101.pdf", mail.Filename)
	assert.True(t, len(mail.PDF) > 0)
}

func TestBoletaProcessor_SIIDownSchedulesRetry(t *testing.T) {
	f := newFixture(nil)
	f.sii.err = errors.New("sidecar unreachable")

	require.NoError(t, f.proc.Process(context.Background(), boletaJob(t, f)))

	assert.Equal(t, 2, f.sii.calls)
	b := f.boletas.get(f.boleta.ID)
	assert.Equal(t, model.EnvioSIIPendiente, *b.EstadoEnvioSII)
	assert.Equal(t, 1, b.RetryCount)
	require.NotNil(t, b.NextRetryAt)
	assert.Equal(t, fixedNow.Add(time.Minute), *b.NextRetryAt)
	assert.Contains(t, *b.LastError, "sidecar unreachable")
	// The customer still gets a printable document.
	assert.NotNil(t, b.URLPDF)
}

func TestBoletaProcessor_RetriesExhausted(t *testing.T) {
	f := newFixture(func(b *model.Boleta) { b.RetryCount = MaxBoletaRetries - 1 })
	f.sii.err = errors.New("sidecar unreachable")

	err := f.proc.Process(context.Background(), boletaJob(t, f))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errReintentosAgotados))

	b := f.boletas.get(f.boleta.ID)
	assert.Equal(t, model.EnvioSIIError, *b.EstadoEnvioSII)
	assert.Nil(t, b.NextRetryAt)
	assert.Equal(t, MaxBoletaRetries, b.RetryCount)
}

func TestBoletaProcessor_Rejected(t *testing.T) {
	f := newFixture(func(b *model.Boleta) { b.EmailCliente = nil })
	f.sii.resp = &infra.SIIResponse{TrackID: "T-9", Estado: "RECHAZADO", Glosa: "folio fuera de rango"}

	require.NoError(t, f.proc.Process(context.Background(), boletaJob(t, f)))

	b := f.boletas.get(f.boleta.ID)
	assert.Equal(t, model.EnvioSIIRechazado, *b.EstadoEnvioSII)
	assert.Equal(t, "folio fuera de rango", *b.LastError)
	assert.Nil(t, b.NextRetryAt)
	assert.Empty(t, f.emails.jobs)
}

func TestBoletaProcessor_AlreadyResolvedSkipsSII(t *testing.T) {
	url := "http://blobs/boletas/2026/boleta_101.pdf"
	f := newFixture(func(b *model.Boleta) {
		aceptado := model.EnvioSIIAceptado
		b.EstadoEnvioSII = &aceptado
		b.URLPDF = &url
	})

	require.NoError(t, f.proc.Process(context.Background(), boletaJob(t, f)))
	assert.Zero(t, f.sii.calls)
	assert.Empty(t, f.blobs.uploaded)
	assert.Empty(t, f.emails.jobs)
}

func TestBoletaProcessor_BadPayload(t *testing.T) {
	f := newFixture(nil)
	assert.Error(t, f.proc.Process(context.Background(), json.RawMessage(`{"boleta_id":"nope"}`)))
	assert.Error(t, f.proc.Process(context.Background(), json.RawMessage(`[`)))
}

func TestGenerarPDF_ReplacesPreviousDocument(t *testing.T) {
	old := "http://blobs/boletas/old.pdf"
	f := newFixture(func(b *model.Boleta) { b.URLPDF = &old })

	url, err := f.proc.GenerarPDF(context.Background(), f.boletas.get(f.boleta.ID))
	require.NoError(t, err)
	assert.Equal(t, "http://blobs/boletas/2026/boleta_101.pdf", url)
	assert.Equal(t, []string{old}, f.blobs.deleted)
	assert.Equal(t, url, *f.boletas.get(f.boleta.ID).URLPDF)
}

func TestGenerarPDF_StaleCopyKeepsSIIOutcome(t *testing.T) {
	f := newFixture(nil)
	stale := f.boletas.get(f.boleta.ID)

	require.NoError(t, f.proc.Process(context.Background(), boletaJob(t, f)))

	_, err := f.proc.GenerarPDF(context.Background(), stale)
	require.NoError(t, err)

	b := f.boletas.get(f.boleta.ID)
	assert.Equal(t, model.EnvioSIIAceptado, *b.EstadoEnvioSII)
	require.NotNil(t, b.TrackID)
	assert.Equal(t, "T-1", *b.TrackID)
	assert.Equal(t, "TED-101", *b.CodigoQR)
}

// ── Retry cron ────────────────────────────────────────────────────────────────

func cronFor(f *fixture, broker Broker) RetryCronConfig {
	return RetryCronConfig{Boletas: f.boletas, Processor: f.proc, CB: f.breaker, Broker: broker}
}

func TestProcessRetries_ResolvesPending(t *testing.T) {
	f := newFixture(func(b *model.Boleta) {
		due := fixedNow.Add(-time.Second)
		b.NextRetryAt = &due
		b.RetryCount = 1
	})

	processRetries(context.Background(), cronFor(f, newFakeBroker()))

	b := f.boletas.get(f.boleta.ID)
	assert.Equal(t, model.EnvioSIIAceptado, *b.EstadoEnvioSII)
	assert.NotNil(t, b.URLPDF)
	assert.Equal(t, 1, f.sii.calls)
	assert.Len(t, f.emails.jobs, 1)
}

func TestProcessRetries_ExhaustedIsParked(t *testing.T) {
	f := newFixture(func(b *model.Boleta) {
		due := fixedNow.Add(-time.Second)
		b.NextRetryAt = &due
		b.RetryCount = MaxBoletaRetries - 1
	})
	f.sii.err = errors.New("503 from SII")
	broker := newFakeBroker()

	processRetries(context.Background(), cronFor(f, broker))

	b := f.boletas.get(f.boleta.ID)
	assert.Equal(t, model.EnvioSIIError, *b.EstadoEnvioSII)
	dlq := broker.items(DeadLetterPrefix + QueueBoletas)
	require.Len(t, dlq, 1)
	var entry DeadLetter
	require.NoError(t, json.Unmarshal([]byte(dlq[0]), &entry))
	assert.Equal(t, JobBoleta, entry.JobType)
	assert.Equal(t, f.boleta.ID.String(), entry.BoletaID)
	assert.Equal(t, MaxBoletaRetries, entry.Attempts)
	assert.Contains(t, entry.Reason, fmt.Sprintf("max retries (%d)", MaxBoletaRetries))
}

func TestProcessRetries_SkipsWhileBreakerOpen(t *testing.T) {
	f := newFixture(func(b *model.Boleta) {
		due := fixedNow.Add(-time.Second)
		b.NextRetryAt = &due
	})
	for i := 0; i < 3; i++ {
		_ = f.breaker.Do(func() error { return errors.New("down") })
	}
	require.Equal(t, infra.BreakerOpen, f.breaker.State())

	processRetries(context.Background(), cronFor(f, newFakeBroker()))
	assert.Zero(t, f.sii.calls)
}

func TestProcessRetries_NotDueYet(t *testing.T) {
	f := newFixture(func(b *model.Boleta) {
		later := fixedNow.Add(time.Hour)
		b.NextRetryAt = &later
	})
	processRetries(context.Background(), cronFor(f, newFakeBroker()))
	assert.Zero(t, f.sii.calls)
}

// ── Backoff helpers ───────────────────────────────────────────────────────────

func TestComputeRetryBackoff(t *testing.T) {
	assert.Equal(t, time.Minute, computeRetryBackoff(0))
	assert.Equal(t, time.Minute, computeRetryBackoff(1))
	assert.Equal(t, 4*time.Minute, computeRetryBackoff(3))
	assert.Equal(t, 30*time.Minute, computeRetryBackoff(10))
	assert.Equal(t, 30*time.Minute, computeRetryBackoff(80))
}

func TestWithRetry_StopsOnOpenBreaker(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 5, func(int) time.Duration { return 0 }, func(int) error {
		calls++
		return infra.ErrCircuitOpen
	})
	assert.ErrorIs(t, err, infra.ErrCircuitOpen)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 3, func(int) time.Duration { return 0 }, func(attempt int) error {
		calls++
		if attempt < 2 {
			return errors.New("transient")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}
