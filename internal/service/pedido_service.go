package service

import (
	"context"
	"errors"
	"time"

	"foodtruck/internal/apierror"
	"foodtruck/internal/dto"
	"foodtruck/internal/model"
	"foodtruck/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type PedidoService interface {
	Crear(ctx context.Context, usuarioID uuid.UUID, req dto.CrearPedidoRequest) (*dto.PedidoResponse, error)
	Obtener(ctx context.Context, id uuid.UUID) (*dto.PedidoResponse, error)

	AgregarDetalle(ctx context.Context, pedidoID uuid.UUID, req dto.AgregarDetalleRequest) (*dto.DetalleResponse, error)
	ActualizarDetalle(ctx context.Context, detalleID uuid.UUID, req dto.ActualizarDetalleRequest) (*dto.DetalleResponse, error)
	EliminarDetalle(ctx context.Context, detalleID uuid.UUID) error
	AgregarModificador(ctx context.Context, detalleID uuid.UUID, req dto.AgregarModificadorRequest) (*dto.ModificadorAplicadoResponse, error)

	RegistrarPago(ctx context.Context, pedidoID uuid.UUID, req dto.RegistrarPagoRequest) (*dto.PagoResponse, error)
	CambiarEstado(ctx context.Context, pedidoID uuid.UUID, req dto.CambiarEstadoRequest) (*dto.PedidoResponse, error)
	Recalcular(ctx context.Context, pedidoID uuid.UUID, req dto.RecalcularRequest) (*dto.PedidoResponse, error)
	MarcarSincronizado(ctx context.Context, pedidoID uuid.UUID) (*dto.PedidoResponse, error)

	// Anular is the soft removal: the order moves to anulado and keeps its rows.
	Anular(ctx context.Context, pedidoID uuid.UUID) (*dto.PedidoResponse, error)
	// Eliminar removes the order with its lines, modifiers and payments.
	Eliminar(ctx context.Context, pedidoID uuid.UUID) error
}

type pedidoService struct {
	repo       repository.PedidoRepository
	catalogo   repository.CatalogoRepository
	sucursales repository.SucursalRepository
	usuarios   repository.UsuarioRepository
	boletas    repository.BoletaRepository
	now        func() time.Time
}

func NewPedidoService(
	repo repository.PedidoRepository,
	catalogo repository.CatalogoRepository,
	sucursales repository.SucursalRepository,
	usuarios repository.UsuarioRepository,
	boletas repository.BoletaRepository,
) PedidoService {
	return &pedidoService{
		repo:       repo,
		catalogo:   catalogo,
		sucursales: sucursales,
		usuarios:   usuarios,
		boletas:    boletas,
		now:        time.Now,
	}
}

// ── Crear ─────────────────────────────────────────────────────────────────────
// Totals are accepted as given (lines may be added later) but must satisfy
// the net total identity.

func (s *pedidoService) Crear(ctx context.Context, usuarioID uuid.UUID, req dto.CrearPedidoRequest) (*dto.PedidoResponse, error) {
	sucursalID, err := parseID(req.SucursalID, "sucursal_id")
	if err != nil {
		return nil, err
	}
	if req.TotalBruto == nil || req.DescuentoTotal == nil || req.IVA == nil || req.TotalNeto == nil {
		return nil, apierror.Validation("total_bruto, descuento_total, iva y total_neto son obligatorios")
	}
	for _, v := range []decimal.Decimal{*req.TotalBruto, *req.DescuentoTotal, *req.IVA, *req.TotalNeto} {
		if v.IsNegative() {
			return nil, apierror.Validation("los montos no pueden ser negativos")
		}
	}
	if err := validarMontos(*req.TotalBruto, *req.DescuentoTotal, *req.IVA, *req.TotalNeto); err != nil {
		return nil, err
	}

	pedido := &model.Pedido{
		SucursalID:     sucursalID,
		UsuarioID:      usuarioID,
		NumeroPedido:   req.NumeroPedido,
		FechaHora:      s.now(),
		Estado:         model.EstadoPedidoAbierto,
		TipoVenta:      req.TipoVenta,
		EsOffline:      req.EsOffline,
		TotalBruto:     *req.TotalBruto,
		DescuentoTotal: *req.DescuentoTotal,
		IVA:            *req.IVA,
		TotalNeto:      *req.TotalNeto,
	}
	if req.FechaHora != nil {
		pedido.FechaHora = *req.FechaHora
	}
	if !pedido.TotalesConsistentes() {
		return nil, apierror.Validation(model.ErrTotalesInconsistentes.Error())
	}

	if _, err := s.sucursales.FindByID(ctx, sucursalID); err != nil {
		return nil, lookupErr(err, "sucursal no encontrada")
	}
	if _, err := s.usuarios.FindByID(ctx, usuarioID); err != nil {
		return nil, lookupErr(err, "usuario no encontrado")
	}

	if err := s.repo.Create(ctx, pedido); err != nil {
		return nil, apierror.Internal("no se pudo crear el pedido", err)
	}
	return pedidoToResponse(pedido), nil
}

func (s *pedidoService) Obtener(ctx context.Context, id uuid.UUID) (*dto.PedidoResponse, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "pedido no encontrado")
	}
	return pedidoToResponse(p), nil
}

// ── Lines ─────────────────────────────────────────────────────────────────────
// Adding or changing a line never touches the order's own totals; that is
// what Recalcular is for.

func (s *pedidoService) AgregarDetalle(ctx context.Context, pedidoID uuid.UUID, req dto.AgregarDetalleRequest) (*dto.DetalleResponse, error) {
	if req.Cantidad <= 0 {
		return nil, apierror.Validation("la cantidad debe ser mayor a cero")
	}
	if req.Descuento.IsNegative() {
		return nil, apierror.Validation("el descuento no puede ser negativo")
	}
	if err := validarMontos(req.Descuento); err != nil {
		return nil, err
	}
	productoID, err := parseID(req.ProductoID, "producto_id")
	if err != nil {
		return nil, err
	}

	if _, err := s.pedidoMutable(ctx, pedidoID); err != nil {
		return nil, err
	}
	producto, err := s.catalogo.FindProducto(ctx, productoID)
	if err != nil {
		return nil, lookupErr(err, "producto no encontrado")
	}
	if !producto.Activo {
		return nil, apierror.Validation("el producto " + producto.Nombre + " esta inactivo")
	}
	if req.Descuento.GreaterThan(producto.PrecioBase) {
		return nil, apierror.Validation("el descuento no puede superar el precio unitario")
	}

	detalle := &model.PedidoDetalle{
		PedidoID:       pedidoID,
		ProductoID:     productoID,
		Cantidad:       req.Cantidad,
		PrecioUnitario: producto.PrecioBase,
		Descuento:      req.Descuento,
		Notas:          req.Notas,
	}
	detalle.Recalcular()
	if err := s.repo.CreateDetalle(ctx, detalle); err != nil {
		return nil, apierror.Internal("no se pudo agregar el detalle", err)
	}
	detalle.Producto = producto
	resp := detalleToResponse(detalle)
	return &resp, nil
}

func (s *pedidoService) ActualizarDetalle(ctx context.Context, detalleID uuid.UUID, req dto.ActualizarDetalleRequest) (*dto.DetalleResponse, error) {
	if req.Cantidad != nil && *req.Cantidad <= 0 {
		return nil, apierror.Validation("la cantidad debe ser mayor a cero")
	}
	if req.Descuento != nil {
		if req.Descuento.IsNegative() {
			return nil, apierror.Validation("el descuento no puede ser negativo")
		}
		if err := validarMontos(*req.Descuento); err != nil {
			return nil, err
		}
	}

	detalle, err := s.repo.FindDetalleByID(ctx, detalleID)
	if err != nil {
		return nil, lookupErr(err, "detalle no encontrado")
	}
	if _, err := s.pedidoMutable(ctx, detalle.PedidoID); err != nil {
		return nil, err
	}

	if req.Cantidad != nil {
		detalle.Cantidad = *req.Cantidad
	}
	if req.Descuento != nil {
		if req.Descuento.GreaterThan(detalle.PrecioUnitario) {
			return nil, apierror.Validation("el descuento no puede superar el precio unitario")
		}
		detalle.Descuento = *req.Descuento
	}
	if req.Notas != nil {
		detalle.Notas = req.Notas
	}
	detalle.Recalcular()

	if err := s.repo.UpdateDetalle(ctx, detalle); err != nil {
		return nil, apierror.Internal("no se pudo actualizar el detalle", err)
	}
	resp := detalleToResponse(detalle)
	return &resp, nil
}

func (s *pedidoService) EliminarDetalle(ctx context.Context, detalleID uuid.UUID) error {
	detalle, err := s.repo.FindDetalleByID(ctx, detalleID)
	if err != nil {
		return lookupErr(err, "detalle no encontrado")
	}
	if _, err := s.pedidoMutable(ctx, detalle.PedidoID); err != nil {
		return err
	}
	if err := s.repo.DeleteDetalle(ctx, detalleID); err != nil {
		return apierror.Internal("no se pudo eliminar el detalle", err)
	}
	return nil
}

// AgregarModificador rejects a modifier already applied to the line; it never merges.
func (s *pedidoService) AgregarModificador(ctx context.Context, detalleID uuid.UUID, req dto.AgregarModificadorRequest) (*dto.ModificadorAplicadoResponse, error) {
	modificadorID, err := parseID(req.ModificadorID, "modificador_id")
	if err != nil {
		return nil, err
	}
	if req.ValorAplicado != nil {
		if req.ValorAplicado.IsNegative() {
			return nil, apierror.Validation("valor_aplicado no puede ser negativo")
		}
		if err := validarMontos(*req.ValorAplicado); err != nil {
			return nil, err
		}
	}

	detalle, err := s.repo.FindDetalleByID(ctx, detalleID)
	if err != nil {
		return nil, lookupErr(err, "detalle no encontrado")
	}
	if _, err := s.pedidoMutable(ctx, detalle.PedidoID); err != nil {
		return nil, err
	}
	mod, err := s.catalogo.FindModificador(ctx, modificadorID)
	if err != nil {
		return nil, lookupErr(err, "modificador no encontrado")
	}
	for _, m := range detalle.Modificadores {
		if m.ModificadorID == modificadorID {
			return nil, apierror.Conflict("el modificador ya fue aplicado a este detalle")
		}
	}

	valor := mod.ValorAdicional
	if req.ValorAplicado != nil {
		valor = *req.ValorAplicado
	}
	if req.EsGratuito {
		valor = decimal.Zero
	}
	aplicado := &model.PedidoDetalleModificador{
		PedidoDetalleID: detalleID,
		ModificadorID:   modificadorID,
		ValorAplicado:   valor,
		EsGratuito:      req.EsGratuito,
	}
	if err := s.repo.CreateDetalleModificador(ctx, aplicado); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apierror.Conflict("el modificador ya fue aplicado a este detalle")
		}
		return nil, apierror.Internal("no se pudo aplicar el modificador", err)
	}
	resp := modificadorToResponse(*aplicado)
	return &resp, nil
}

// ── Payments and state ────────────────────────────────────────────────────────

func (s *pedidoService) RegistrarPago(ctx context.Context, pedidoID uuid.UUID, req dto.RegistrarPagoRequest) (*dto.PagoResponse, error) {
	if !req.Monto.IsPositive() {
		return nil, apierror.Validation("el monto del pago debe ser mayor a cero")
	}
	if err := validarMontos(req.Monto); err != nil {
		return nil, err
	}
	metodoID, err := parseID(req.MetodoPagoID, "metodo_pago_id")
	if err != nil {
		return nil, err
	}
	if _, err := s.pedidoMutable(ctx, pedidoID); err != nil {
		return nil, err
	}
	metodo, err := s.catalogo.FindMetodoPago(ctx, metodoID)
	if err != nil {
		return nil, lookupErr(err, "metodo de pago no encontrado")
	}
	if !metodo.Activo {
		return nil, apierror.Validation("el metodo de pago " + metodo.Nombre + " esta inactivo")
	}

	pago := &model.Pago{
		PedidoID:     pedidoID,
		MetodoPagoID: metodoID,
		Monto:        req.Monto,
		Referencia:   req.Referencia,
		PosID:        req.PosID,
	}
	if err := s.repo.CreatePago(ctx, pago); err != nil {
		switch {
		case errors.Is(err, repository.ErrPagoExcedeTotal):
			return nil, apierror.Conflict(err.Error())
		case repository.IsNotFound(err):
			return nil, apierror.NotFound("pedido no encontrado")
		}
		return nil, apierror.Internal("no se pudo registrar el pago", err)
	}
	resp := pagoToResponse(*pago)
	return &resp, nil
}

// CambiarEstado applies one transition of the order state machine. Moving to
// completado requires the payments to add up to total_neto exactly.
func (s *pedidoService) CambiarEstado(ctx context.Context, pedidoID uuid.UUID, req dto.CambiarEstadoRequest) (*dto.PedidoResponse, error) {
	p, err := s.repo.FindByID(ctx, pedidoID)
	if err != nil {
		return nil, lookupErr(err, "pedido no encontrado")
	}
	desde := p.Estado
	if err := p.Transicionar(req.Estado); err != nil {
		return nil, apierror.Conflict("no se puede pasar de " + desde + " a " + req.Estado)
	}

	if req.Estado == model.EstadoPedidoCompletado {
		pagado, err := s.repo.SumPagos(ctx, pedidoID)
		if err != nil {
			return nil, apierror.Internal("no se pudo sumar los pagos", err)
		}
		if !pagado.Equal(p.TotalNeto) {
			return nil, apierror.Conflict("el pedido no esta pagado: pagado " + pagado.String() + " de " + p.TotalNeto.String())
		}
	}

	ok, err := s.repo.CambiarEstado(ctx, pedidoID, desde, req.Estado)
	if err != nil {
		return nil, apierror.Internal("no se pudo cambiar el estado", err)
	}
	if !ok {
		return nil, apierror.Conflict("el pedido cambio de estado mientras se procesaba la solicitud")
	}
	log.Info().Str("pedido_id", pedidoID.String()).Str("desde", desde).Str("hacia", req.Estado).Msg("pedido: estado cambiado")
	return pedidoToResponse(p), nil
}

func (s *pedidoService) Anular(ctx context.Context, pedidoID uuid.UUID) (*dto.PedidoResponse, error) {
	return s.CambiarEstado(ctx, pedidoID, dto.CambiarEstadoRequest{Estado: model.EstadoPedidoAnulado})
}

// Eliminar refuses orders that already carry a boleta: the folio must stay
// traceable to its order.
func (s *pedidoService) Eliminar(ctx context.Context, pedidoID uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, pedidoID); err != nil {
		return lookupErr(err, "pedido no encontrado")
	}
	if _, err := s.boletas.FindByPedidoID(ctx, pedidoID); err == nil {
		return apierror.Conflict("el pedido tiene una boleta emitida y no puede eliminarse")
	} else if !repository.IsNotFound(err) {
		return apierror.Internal("no se pudo verificar la boleta del pedido", err)
	}

	if err := s.repo.DeleteCascade(ctx, pedidoID); err != nil {
		return lookupErr(err, "pedido no encontrado")
	}
	log.Info().Str("pedido_id", pedidoID.String()).Msg("pedido: eliminado")
	return nil
}

// Recalcular derives gross and discount from the lines. The tax amount comes
// from the request or stays as it is. The new total_neto may not fall below
// what the order has already been paid.
func (s *pedidoService) Recalcular(ctx context.Context, pedidoID uuid.UUID, req dto.RecalcularRequest) (*dto.PedidoResponse, error) {
	p, err := s.pedidoMutable(ctx, pedidoID)
	if err != nil {
		return nil, err
	}
	iva := p.IVA
	if req.IVA != nil {
		if req.IVA.IsNegative() {
			return nil, apierror.Validation("iva no puede ser negativo")
		}
		if err := validarMontos(*req.IVA); err != nil {
			return nil, err
		}
		iva = *req.IVA
	}
	p.RecalcularTotales(iva)
	if err := s.repo.UpdateTotales(ctx, p); err != nil {
		switch {
		case errors.Is(err, repository.ErrTotalBajoPagado):
			return nil, apierror.Conflict(err.Error())
		case repository.IsNotFound(err):
			return nil, apierror.NotFound("pedido no encontrado")
		}
		return nil, apierror.Internal("no se pudo recalcular el pedido", err)
	}
	return pedidoToResponse(p), nil
}

func (s *pedidoService) MarcarSincronizado(ctx context.Context, pedidoID uuid.UUID) (*dto.PedidoResponse, error) {
	p, err := s.repo.FindByID(ctx, pedidoID)
	if err != nil {
		return nil, lookupErr(err, "pedido no encontrado")
	}
	if !p.EsOffline {
		return nil, apierror.Validation("solo los pedidos offline se sincronizan")
	}
	if p.FechaSincronizacion == nil {
		now := s.now()
		p.FechaSincronizacion = &now
		if err := s.repo.UpdateTotales(ctx, p); err != nil {
			return nil, apierror.Internal("no se pudo marcar el pedido como sincronizado", err)
		}
	}
	return pedidoToResponse(p), nil
}

// pedidoMutable loads the order and rejects it when it is already terminal.
func (s *pedidoService) pedidoMutable(ctx context.Context, id uuid.UUID) (*model.Pedido, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "pedido no encontrado")
	}
	if p.EsTerminal() {
		return nil, apierror.Conflict("el pedido esta " + p.Estado + " y no admite cambios")
	}
	return p, nil
}

// ── Mapping ───────────────────────────────────────────────────────────────────

func pedidoToResponse(p *model.Pedido) *dto.PedidoResponse {
	resp := &dto.PedidoResponse{
		ID:                  p.ID.String(),
		SucursalID:          p.SucursalID.String(),
		UsuarioID:           p.UsuarioID.String(),
		NumeroPedido:        p.NumeroPedido,
		FechaHora:           fmtTime(p.FechaHora),
		Estado:              p.Estado,
		TipoVenta:           p.TipoVenta,
		EsOffline:           p.EsOffline,
		FechaSincronizacion: fmtTimePtr(p.FechaSincronizacion),
		TotalBruto:          p.TotalBruto,
		DescuentoTotal:      p.DescuentoTotal,
		IVA:                 p.IVA,
		TotalNeto:           p.TotalNeto,
		TotalPagado:         p.TotalPagado(),
		Detalles:            make([]dto.DetalleResponse, len(p.Detalles)),
		Pagos:               make([]dto.PagoResponse, len(p.Pagos)),
	}
	for i := range p.Detalles {
		resp.Detalles[i] = detalleToResponse(&p.Detalles[i])
	}
	for i, pago := range p.Pagos {
		resp.Pagos[i] = pagoToResponse(pago)
	}
	return resp
}

func detalleToResponse(d *model.PedidoDetalle) dto.DetalleResponse {
	resp := dto.DetalleResponse{
		ID:             d.ID.String(),
		PedidoID:       d.PedidoID.String(),
		ProductoID:     d.ProductoID.String(),
		Cantidad:       d.Cantidad,
		PrecioUnitario: d.PrecioUnitario,
		Descuento:      d.Descuento,
		TotalLinea:     d.TotalLinea,
		Notas:          d.Notas,
		Modificadores:  make([]dto.ModificadorAplicadoResponse, len(d.Modificadores)),
	}
	if d.Producto != nil {
		resp.Producto = d.Producto.Nombre
	}
	for i, m := range d.Modificadores {
		resp.Modificadores[i] = modificadorToResponse(m)
	}
	return resp
}

func modificadorToResponse(m model.PedidoDetalleModificador) dto.ModificadorAplicadoResponse {
	return dto.ModificadorAplicadoResponse{
		ID:            m.ID.String(),
		ModificadorID: m.ModificadorID.String(),
		ValorAplicado: m.ValorAplicado,
		EsGratuito:    m.EsGratuito,
	}
}

func pagoToResponse(p model.Pago) dto.PagoResponse {
	return dto.PagoResponse{
		ID:           p.ID.String(),
		PedidoID:     p.PedidoID.String(),
		MetodoPagoID: p.MetodoPagoID.String(),
		Monto:        p.Monto,
		Referencia:   p.Referencia,
		PosID:        p.PosID,
		CreatedAt:    fmtTime(p.CreatedAt),
	}
}
