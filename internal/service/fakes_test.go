package service_test

import (
	"context"
	"sync"
	"time"

	"foodtruck/internal/infra"
	"foodtruck/internal/model"
	"foodtruck/internal/repository"
	"foodtruck/internal/worker"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── Branches and users ────────────────────────────────────────────────────────

type fakeSucursalRepo struct {
	sucursales   map[uuid.UUID]*model.Sucursal
	asignaciones map[uuid.UUID]uuid.UUID // usuario → sucursal
}

func newFakeSucursalRepo(ids ...uuid.UUID) *fakeSucursalRepo {
	r := &fakeSucursalRepo{sucursales: map[uuid.UUID]*model.Sucursal{}, asignaciones: map[uuid.UUID]uuid.UUID{}}
	for _, id := range ids {
		r.sucursales[id] = &model.Sucursal{ID: id, Nombre: "Sucursal " + id.String()[:4]}
	}
	return r
}

func (r *fakeSucursalRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Sucursal, error) {
	s, ok := r.sucursales[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return s, nil
}

func (r *fakeSucursalRepo) FindAsignacionActiva(_ context.Context, usuarioID uuid.UUID) (*model.Sucursal, error) {
	id, ok := r.asignaciones[usuarioID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return r.FindByID(context.Background(), id)
}

var _ repository.SucursalRepository = (*fakeSucursalRepo)(nil)

type fakeUsuarioRepo struct {
	usuarios map[uuid.UUID]*model.Usuario
}

func newFakeUsuarioRepo(us ...*model.Usuario) *fakeUsuarioRepo {
	r := &fakeUsuarioRepo{usuarios: map[uuid.UUID]*model.Usuario{}}
	for _, u := range us {
		r.usuarios[u.ID] = u
	}
	return r
}

func (r *fakeUsuarioRepo) FindByLogin(_ context.Context, username string) (*model.Usuario, error) {
	for _, u := range r.usuarios {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUsuarioRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Usuario, error) {
	u, ok := r.usuarios[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

var _ repository.UsuarioRepository = (*fakeUsuarioRepo)(nil)

// ── Catalog ───────────────────────────────────────────────────────────────────

type fakeCatalogoRepo struct {
	productos     map[uuid.UUID]*model.Producto
	modificadores map[uuid.UUID]*model.Modificador
	metodos       map[uuid.UUID]*model.MetodoPago
}

func newFakeCatalogoRepo() *fakeCatalogoRepo {
	return &fakeCatalogoRepo{
		productos:     map[uuid.UUID]*model.Producto{},
		modificadores: map[uuid.UUID]*model.Modificador{},
		metodos:       map[uuid.UUID]*model.MetodoPago{},
	}
}

func (r *fakeCatalogoRepo) addProducto(precio int64, sucursalID *uuid.UUID) *model.Producto {
	p := &model.Producto{ID: uuid.New(), Nombre: "Churrasco", PrecioBase: decimal.NewFromInt(precio), Activo: true}
	if sucursalID != nil {
		catID := uuid.New()
		p.CategoriaID = &catID
		p.Categoria = &model.Categoria{ID: catID, SucursalID: *sucursalID, Nombre: "Sandwiches"}
	}
	r.productos[p.ID] = p
	return p
}

func (r *fakeCatalogoRepo) addModificador(valor int64) *model.Modificador {
	m := &model.Modificador{ID: uuid.New(), Nombre: "Extra palta", ValorAdicional: decimal.NewFromInt(valor), Activo: true}
	r.modificadores[m.ID] = m
	return m
}

func (r *fakeCatalogoRepo) addMetodo(activo bool) *model.MetodoPago {
	m := &model.MetodoPago{ID: uuid.New(), Nombre: "efectivo", Activo: activo}
	r.metodos[m.ID] = m
	return m
}

func (r *fakeCatalogoRepo) FindProducto(_ context.Context, id uuid.UUID) (*model.Producto, error) {
	p, ok := r.productos[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (r *fakeCatalogoRepo) FindModificador(_ context.Context, id uuid.UUID) (*model.Modificador, error) {
	m, ok := r.modificadores[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return m, nil
}

func (r *fakeCatalogoRepo) FindMetodoPago(_ context.Context, id uuid.UUID) (*model.MetodoPago, error) {
	m, ok := r.metodos[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return m, nil
}

var _ repository.CatalogoRepository = (*fakeCatalogoRepo)(nil)

// ── Orders ────────────────────────────────────────────────────────────────────

// fakePedidoRepo keeps lines, modifiers and payments in separate maps the way
// the tables do, and assembles them on FindByID.
type fakePedidoRepo struct {
	mu            sync.Mutex
	pedidos       map[uuid.UUID]model.Pedido
	detalles      map[uuid.UUID]model.PedidoDetalle
	modificadores []model.PedidoDetalleModificador
	pagos         []model.Pago
	deleted       []uuid.UUID
}

func newFakePedidoRepo() *fakePedidoRepo {
	return &fakePedidoRepo{pedidos: map[uuid.UUID]model.Pedido{}, detalles: map[uuid.UUID]model.PedidoDetalle{}}
}

func (r *fakePedidoRepo) seed(p model.Pedido) *model.Pedido {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Estado == "" {
		p.Estado = model.EstadoPedidoAbierto
	}
	r.pedidos[p.ID] = p
	return &p
}

func (r *fakePedidoRepo) Create(_ context.Context, p *model.Pedido) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = uuid.New()
	r.pedidos[p.ID] = *p
	return nil
}

func (r *fakePedidoRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Pedido, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pedidos[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	p.Detalles = nil
	for _, d := range r.detalles {
		if d.PedidoID == id {
			d.Modificadores = r.modsOf(d.ID)
			p.Detalles = append(p.Detalles, d)
		}
	}
	p.Pagos = nil
	for _, pg := range r.pagos {
		if pg.PedidoID == id {
			p.Pagos = append(p.Pagos, pg)
		}
	}
	return &p, nil
}

func (r *fakePedidoRepo) modsOf(detalleID uuid.UUID) []model.PedidoDetalleModificador {
	var out []model.PedidoDetalleModificador
	for _, m := range r.modificadores {
		if m.PedidoDetalleID == detalleID {
			out = append(out, m)
		}
	}
	return out
}

func (r *fakePedidoRepo) UpdateTotales(_ context.Context, p *model.Pedido) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.pedidos[p.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	pagado := decimal.Zero
	for _, pg := range r.pagos {
		if pg.PedidoID == p.ID {
			pagado = pagado.Add(pg.Monto)
		}
	}
	if p.TotalNeto.LessThan(pagado) {
		return repository.ErrTotalBajoPagado
	}
	cur.TotalBruto, cur.DescuentoTotal, cur.IVA, cur.TotalNeto = p.TotalBruto, p.DescuentoTotal, p.IVA, p.TotalNeto
	cur.FechaSincronizacion = p.FechaSincronizacion
	r.pedidos[p.ID] = cur
	return nil
}

func (r *fakePedidoRepo) CambiarEstado(_ context.Context, id uuid.UUID, desde, hacia string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.pedidos[id]
	if !ok || cur.Estado != desde {
		return false, nil
	}
	cur.Estado = hacia
	r.pedidos[id] = cur
	return true, nil
}

func (r *fakePedidoRepo) DeleteCascade(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pedidos, id)
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *fakePedidoRepo) CreateDetalle(_ context.Context, d *model.PedidoDetalle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d.ID = uuid.New()
	r.detalles[d.ID] = *d
	return nil
}

func (r *fakePedidoRepo) FindDetalleByID(_ context.Context, id uuid.UUID) (*model.PedidoDetalle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.detalles[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	d.Modificadores = r.modsOf(id)
	return &d, nil
}

func (r *fakePedidoRepo) UpdateDetalle(_ context.Context, d *model.PedidoDetalle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	cp.Modificadores = nil
	r.detalles[d.ID] = cp
	return nil
}

func (r *fakePedidoRepo) DeleteDetalle(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.detalles, id)
	return nil
}

func (r *fakePedidoRepo) CreateDetalleModificador(_ context.Context, m *model.PedidoDetalleModificador) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.ID = uuid.New()
	r.modificadores = append(r.modificadores, *m)
	return nil
}

func (r *fakePedidoRepo) CreatePago(_ context.Context, p *model.Pago) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	pedido, ok := r.pedidos[p.PedidoID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	pagado := decimal.Zero
	for _, pg := range r.pagos {
		if pg.PedidoID == p.PedidoID {
			pagado = pagado.Add(pg.Monto)
		}
	}
	if pagado.Add(p.Monto).GreaterThan(pedido.TotalNeto) {
		return repository.ErrPagoExcedeTotal
	}
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	r.pagos = append(r.pagos, *p)
	return nil
}

func (r *fakePedidoRepo) SumPagos(_ context.Context, pedidoID uuid.UUID) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for _, pg := range r.pagos {
		if pg.PedidoID == pedidoID {
			total = total.Add(pg.Monto)
		}
	}
	return total, nil
}

var _ repository.PedidoRepository = (*fakePedidoRepo)(nil)

// ── Boletas ───────────────────────────────────────────────────────────────────

// fakeBoletaRepo serializes CreateConFolio under a mutex, standing in for the
// advisory lock.
type fakeBoletaRepo struct {
	mu      sync.Mutex
	boletas map[uuid.UUID]model.Boleta
	folio   int64
}

func newFakeBoletaRepo(ultimoFolio int64) *fakeBoletaRepo {
	return &fakeBoletaRepo{boletas: map[uuid.UUID]model.Boleta{}, folio: ultimoFolio}
}

func (r *fakeBoletaRepo) CreateConFolio(_ context.Context, b *model.Boleta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.boletas {
		if existing.PedidoID == b.PedidoID {
			return repository.ErrBoletaExistente
		}
	}
	r.folio++
	b.ID = uuid.New()
	b.Folio = r.folio
	r.boletas[b.ID] = *b
	return nil
}

func (r *fakeBoletaRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Boleta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.boletas[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &b, nil
}

func (r *fakeBoletaRepo) FindByPedidoID(_ context.Context, pedidoID uuid.UUID) (*model.Boleta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.boletas {
		if b.PedidoID == pedidoID {
			return &b, nil
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
	r.boletas[b.ID] = cur
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
	r.boletas[id] = cur
	return nil
}

func (r *fakeBoletaRepo) ListPendingRetries(context.Context, time.Time, int) ([]model.Boleta, error) {
	return nil, nil
}

var _ repository.BoletaRepository = (*fakeBoletaRepo)(nil)

type fakeJobs struct {
	mu   sync.Mutex
	err  error
	jobs []worker.BoletaJobPayload
}

func (f *fakeJobs) EnqueueBoleta(_ context.Context, p worker.BoletaJobPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, p)
	return nil
}

type fakeDocs struct {
	url string
	err error
}

func (f *fakeDocs) GenerarPDF(_ context.Context, b *model.Boleta) (string, error) {
	return f.url, f.err
}

// ── Webpay ────────────────────────────────────────────────────────────────────

type fakeWebpayRepo struct {
	mu  sync.Mutex
	txs map[string]model.TransaccionWebpay // by token
}

func newFakeWebpayRepo() *fakeWebpayRepo {
	return &fakeWebpayRepo{txs: map[string]model.TransaccionWebpay{}}
}

func (r *fakeWebpayRepo) Create(_ context.Context, t *model.TransaccionWebpay) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.txs[t.Token]; ok {
		return gorm.ErrDuplicatedKey
	}
	t.ID = uuid.New()
	t.FechaCreacion = time.Now()
	t.FechaActualizacion = t.FechaCreacion
	r.txs[t.Token] = *t
	return nil
}

func (r *fakeWebpayRepo) FindByID(_ context.Context, id uuid.UUID) (*model.TransaccionWebpay, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.txs {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeWebpayRepo) FindByToken(_ context.Context, token string) (*model.TransaccionWebpay, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txs[token]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &t, nil
}

func (r *fakeWebpayRepo) ResolverPendiente(_ context.Context, t *model.TransaccionWebpay) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.txs[t.Token]
	if !ok || cur.Estado != model.EstadoWebpayPendiente {
		return false, nil
	}
	r.txs[t.Token] = *t
	return true, nil
}

var _ repository.WebpayRepository = (*fakeWebpayRepo)(nil)

type fakeGateway struct {
	mu          sync.Mutex
	createCalls int
	commitCalls int
	createResp  *infra.WebpayCreateResponse
	commitResp  *infra.WebpayCommitResponse
	err         error
	raw         []byte
	// commitDelay widens the window for concurrent commit tests.
	commitDelay time.Duration
}

func (g *fakeGateway) Crear(_ context.Context, req infra.WebpayCreateRequest) (*infra.WebpayCreateResponse, []byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createCalls++
	if g.err != nil {
		return nil, g.raw, g.err
	}
	return g.createResp, []byte(`{"token":"` + g.createResp.Token + `"}`), nil
}

func (g *fakeGateway) Confirmar(_ context.Context, token string) (*infra.WebpayCommitResponse, []byte, error) {
	time.Sleep(g.commitDelay)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.commitCalls++
	if g.err != nil {
		return nil, g.raw, g.err
	}
	r := *g.commitResp
	return &r, []byte(`{"status":"` + r.Status + `"}`), nil
}

// ── Cash register ─────────────────────────────────────────────────────────────

// fakeCajaRepo enforces the open-cycle unique index on Create. With
// staleReads set, FindAbiertaPorUsuario never sees open cycles, as a request
// racing another open would.
type fakeCajaRepo struct {
	mu         sync.Mutex
	cierres    map[uuid.UUID]model.CierreCaja
	staleReads bool
}

func newFakeCajaRepo() *fakeCajaRepo {
	return &fakeCajaRepo{cierres: map[uuid.UUID]model.CierreCaja{}}
}

func (r *fakeCajaRepo) Create(_ context.Context, c *model.CierreCaja) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cur := range r.cierres {
		if cur.SucursalID == c.SucursalID && cur.UsuarioID == c.UsuarioID && cur.Estado == model.EstadoCajaAbierta {
			return gorm.ErrDuplicatedKey
		}
	}
	c.ID = uuid.New()
	r.cierres[c.ID] = *c
	return nil
}

func (r *fakeCajaRepo) FindByID(_ context.Context, id uuid.UUID) (*model.CierreCaja, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cierres[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (r *fakeCajaRepo) FindAbiertaPorUsuario(_ context.Context, sucursalID, usuarioID uuid.UUID) (*model.CierreCaja, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.staleReads {
		return nil, gorm.ErrRecordNotFound
	}
	for _, c := range r.cierres {
		if c.SucursalID == sucursalID && c.UsuarioID == usuarioID && c.Estado == model.EstadoCajaAbierta {
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeCajaRepo) Cerrar(_ context.Context, c *model.CierreCaja) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.cierres[c.ID]
	if !ok || cur.Estado != model.EstadoCajaAbierta {
		return false, nil
	}
	r.cierres[c.ID] = *c
	return true, nil
}

var _ repository.CierreCajaRepository = (*fakeCajaRepo)(nil)

// ── Audit ─────────────────────────────────────────────────────────────────────

type fakeAuditoriaRepo struct {
	mu      sync.Mutex
	entries []model.Auditoria
	err     error
}

func (r *fakeAuditoriaRepo) Create(_ context.Context, a *model.Auditoria) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	a.ID = uuid.New()
	r.entries = append(r.entries, *a)
	return nil
}

var _ repository.AuditoriaRepository = (*fakeAuditoriaRepo)(nil)
