package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"foodtruck/internal/infra"
	"foodtruck/internal/model"
	"foodtruck/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── In-memory redis lists ─────────────────────────────────────────────────────

type fakeBroker struct {
	mu    sync.Mutex
	lists map[string][]string
}

func newFakeBroker() *fakeBroker { return &fakeBroker{lists: map[string][]string{}} }

func (b *fakeBroker) LPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, v := range values {
		var s string
		switch x := v.(type) {
		case []byte:
			s = string(x)
		case string:
			s = x
		default:
			return redis.NewIntResult(0, errors.New("unsupported value"))
		}
		b.lists[key] = append([]string{s}, b.lists[key]...)
	}
	return redis.NewIntResult(int64(len(b.lists[key])), nil)
}

func (b *fakeBroker) BRPop(_ context.Context, _ time.Duration, keys ...string) *redis.StringSliceCmd {
	b.mu.Lock()
	for _, k := range keys {
		l := b.lists[k]
		if len(l) > 0 {
			v := l[len(l)-1]
			b.lists[k] = l[:len(l)-1]
			b.mu.Unlock()
			return redis.NewStringSliceResult([]string{k, v}, nil)
		}
	}
	b.mu.Unlock()
	time.Sleep(5 * time.Millisecond)
	return redis.NewStringSliceResult(nil, redis.Nil)
}

func (b *fakeBroker) LLen(_ context.Context, key string) *redis.IntCmd {
	b.mu.Lock()
	defer b.mu.Unlock()
	return redis.NewIntResult(int64(len(b.lists[key])), nil)
}

func (b *fakeBroker) items(key string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.lists[key]...)
}

var _ Broker = (*fakeBroker)(nil)

// ── Repositories ──────────────────────────────────────────────────────────────

type fakeBoletaRepo struct {
	mu      sync.Mutex
	boletas map[uuid.UUID]*model.Boleta
}

func newFakeBoletaRepo(bs ...*model.Boleta) *fakeBoletaRepo {
	r := &fakeBoletaRepo{boletas: map[uuid.UUID]*model.Boleta{}}
	for _, b := range bs {
		cp := *b
		r.boletas[b.ID] = &cp
	}
	return r
}

func (r *fakeBoletaRepo) CreateConFolio(_ context.Context, b *model.Boleta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b.ID = uuid.New()
	b.Folio = int64(len(r.boletas) + 1)
	cp := *b
	r.boletas[b.ID] = &cp
	return nil
}

func (r *fakeBoletaRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Boleta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.boletas[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *fakeBoletaRepo) FindByPedidoID(_ context.Context, pedidoID uuid.UUID) (*model.Boleta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.boletas {
		if b.PedidoID == pedidoID {
			cp := *b
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeBoletaRepo) UpdateEnvioSII(_ context.Context, b *model.Boleta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.boletas[b.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	cur.EstadoEnvioSII = b.EstadoEnvioSII
	cur.TrackID = b.TrackID
	cur.CodigoQR = b.CodigoQR
	cur.XMLBoleta = b.XMLBoleta
	cur.RetryCount = b.RetryCount
	cur.NextRetryAt = b.NextRetryAt
	cur.LastError = b.LastError
	return nil
}

func (r *fakeBoletaRepo) UpdatePDF(_ context.Context, id uuid.UUID, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.boletas[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	cur.URLPDF = &url
	return nil
}

func (r *fakeBoletaRepo) ListPendingRetries(_ context.Context, before time.Time, limit int) ([]model.Boleta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Boleta
	for _, b := range r.boletas {
		if b.EstadoEnvioSII != nil && *b.EstadoEnvioSII == model.EnvioSIIPendiente &&
			b.NextRetryAt != nil && !b.NextRetryAt.After(before) {
			out = append(out, *b)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *fakeBoletaRepo) get(id uuid.UUID) *model.Boleta {
	b, _ := r.FindByID(context.Background(), id)
	return b
}

var _ repository.BoletaRepository = (*fakeBoletaRepo)(nil)

// fakePedidoRepo only serves reads; the worker never mutates orders.
type fakePedidoRepo struct {
	pedidos map[uuid.UUID]*model.Pedido
}

func (r *fakePedidoRepo) Create(context.Context, *model.Pedido) error { return nil }
func (r *fakePedidoRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Pedido, error) {
	p, ok := r.pedidos[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}
func (r *fakePedidoRepo) UpdateTotales(context.Context, *model.Pedido) error { return nil }
func (r *fakePedidoRepo) CambiarEstado(context.Context, uuid.UUID, string, string) (bool, error) {
	return true, nil
}
func (r *fakePedidoRepo) DeleteCascade(context.Context, uuid.UUID) error            { return nil }
func (r *fakePedidoRepo) CreateDetalle(context.Context, *model.PedidoDetalle) error { return nil }
func (r *fakePedidoRepo) FindDetalleByID(context.Context, uuid.UUID) (*model.PedidoDetalle, error) {
	return nil, gorm.ErrRecordNotFound
}
func (r *fakePedidoRepo) UpdateDetalle(context.Context, *model.PedidoDetalle) error { return nil }
func (r *fakePedidoRepo) DeleteDetalle(context.Context, uuid.UUID) error            { return nil }
func (r *fakePedidoRepo) CreateDetalleModificador(context.Context, *model.PedidoDetalleModificador) error {
	return nil
}
func (r *fakePedidoRepo) CreatePago(context.Context, *model.Pago) error { return nil }
func (r *fakePedidoRepo) SumPagos(context.Context, uuid.UUID) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

var _ repository.PedidoRepository = (*fakePedidoRepo)(nil)

type fakeSucursalRepo struct{}

func (fakeSucursalRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Sucursal, error) {
	return &model.Sucursal{ID: id, Nombre: "Providencia"}, nil
}
func (fakeSucursalRepo) FindAsignacionActiva(context.Context, uuid.UUID) (*model.Sucursal, error) {
	return nil, gorm.ErrRecordNotFound
}

var _ repository.SucursalRepository = fakeSucursalRepo{}

// ── Collaborators ─────────────────────────────────────────────────────────────

type fakeSII struct {
	mu       sync.Mutex
	calls    int
	resp     *infra.SIIResponse
	err      error
	payloads []infra.SIIPayload
}

func (f *fakeSII) Emitir(_ context.Context, p infra.SIIPayload) (*infra.SIIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.payloads = append(f.payloads, p)
	if f.err != nil {
		return nil, f.err
	}
	r := *f.resp
	return &r, nil
}

type fakeBlobs struct {
	uploaded []string
	deleted  []string
}

func (f *fakeBlobs) Upload(_ context.Context, key, _ string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty upload")
	}
	f.uploaded = append(f.uploaded, key)
	return "http://blobs/boletas/" + key, nil
}

func (f *fakeBlobs) DeleteByURL(_ context.Context, url string) error {
	f.deleted = append(f.deleted, url)
	return nil
}

type fakeEmails struct {
	jobs []EmailJobPayload
}

func (f *fakeEmails) EnqueueEmail(_ context.Context, p EmailJobPayload) error {
	f.jobs = append(f.jobs, p)
	return nil
}

// ── Fixtures ──────────────────────────────────────────────────────────────────

type fixture struct {
	boletas *fakeBoletaRepo
	sii     *fakeSII
	blobs   *fakeBlobs
	emails  *fakeEmails
	breaker *infra.CircuitBreaker
	proc    *BoletaProcessor
	boleta  *model.Boleta
}

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newFixture(mutate func(b *model.Boleta)) *fixture {
	pedido := &model.Pedido{
		ID:             uuid.New(),
		SucursalID:     uuid.New(),
		TotalBruto:     decimal.NewFromInt(12000),
		DescuentoTotal: decimal.NewFromInt(1000),
		IVA:            decimal.NewFromInt(1900),
		TotalNeto:      decimal.NewFromInt(12900),
		Detalles: []model.PedidoDetalle{{
			ID:             uuid.New(),
			Cantidad:       2,
			PrecioUnitario: decimal.NewFromInt(6000),
			Descuento:      decimal.NewFromInt(500),
			TotalLinea:     decimal.NewFromInt(11000),
			Producto:       &model.Producto{Nombre: "Completo italiano"},
		}},
	}
	pendiente := model.EnvioSIIPendiente
	email := "cliente@example.com"
	b := &model.Boleta{
		ID:             uuid.New(),
		PedidoID:       pedido.ID,
		Folio:          101,
		FechaEmision:   fixedNow,
		EmailCliente:   &email,
		MontoTotal:     decimal.NewFromInt(14800),
		EstadoEnvioSII: &pendiente,
	}
	if mutate != nil {
		mutate(b)
	}

	f := &fixture{
		boletas: newFakeBoletaRepo(b),
		sii:     &fakeSII{resp: &infra.SIIResponse{TrackID: "T-1", Estado: "aceptado", XML: "<DTE/>", Timbre: "TED-101"}},
		blobs:   &fakeBlobs{},
		emails:  &fakeEmails{},
		breaker: infra.NewCircuitBreaker(infra.BreakerConfig{Name: "sii", MaxFailures: 3, Cooldown: time.Minute}),
		boleta:  b,
	}
	f.proc = NewBoletaProcessor(
		f.boletas,
		&fakePedidoRepo{pedidos: map[uuid.UUID]*model.Pedido{pedido.ID: pedido}},
		fakeSucursalRepo{},
		f.sii, f.breaker, f.blobs, f.emails,
		BoletaWorkerConfig{RUTEmisor: "76123456-7", NombreComercio: "FoodTruck", Attempts: 2},
	)
	f.proc.now = func() time.Time { return fixedNow }
	f.proc.backoff = func(int) time.Duration { return 0 }
	return f
}
