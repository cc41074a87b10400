package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"foodtruck/internal/apierror"
	"foodtruck/internal/dto"
	"foodtruck/internal/infra"
	"foodtruck/internal/model"
	"foodtruck/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// WebpayGateway is the card gateway. Both calls return the raw response body
// so failures can be reported with what the gateway actually said.
type WebpayGateway interface {
	Crear(ctx context.Context, req infra.WebpayCreateRequest) (*infra.WebpayCreateResponse, []byte, error)
	Confirmar(ctx context.Context, token string) (*infra.WebpayCommitResponse, []byte, error)
}

// KeyLocker serializes work on a key (infra.RedisLocker, infra.LocalLocker).
type KeyLocker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

type WebpayService interface {
	Iniciar(ctx context.Context, req dto.IniciarWebpayRequest) (*dto.IniciarWebpayResponse, error)
	// Confirmar commits the transaction behind token. Once autorizado or
	// rechazado it is returned as is and the gateway is not called again.
	Confirmar(ctx context.Context, token string) (*dto.TransaccionWebpayResponse, error)
	Obtener(ctx context.Context, id uuid.UUID) (*dto.TransaccionWebpayResponse, error)
}

type WebpayOptions struct {
	// CallTimeout bounds each outbound gateway call.
	CallTimeout time.Duration
	// LockWait bounds how long a commit waits for another commit on the same token.
	LockWait time.Duration
}

type webpayService struct {
	repo    repository.WebpayRepository
	pedidos repository.PedidoRepository
	gateway WebpayGateway
	breaker *infra.CircuitBreaker
	locker  KeyLocker
	opts    WebpayOptions
	now     func() time.Time
}

func NewWebpayService(
	repo repository.WebpayRepository,
	pedidos repository.PedidoRepository,
	gateway WebpayGateway,
	breaker *infra.CircuitBreaker,
	locker KeyLocker,
	opts WebpayOptions,
) WebpayService {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 30 * time.Second
	}
	if opts.LockWait <= 0 {
		opts.LockWait = opts.CallTimeout + 5*time.Second
	}
	return &webpayService{
		repo:    repo,
		pedidos: pedidos,
		gateway: gateway,
		breaker: breaker,
		locker:  locker,
		opts:    opts,
		now:     time.Now,
	}
}

// GatewayTrips tells the breaker which gateway errors mean "gateway down":
// transport failures and 5xx. A 4xx is an answer about the transaction.
func GatewayTrips(err error) bool {
	var wErr *infra.WebpayError
	if errors.As(err, &wErr) {
		return wErr.StatusCode == 0 || wErr.StatusCode >= 500
	}
	return true
}

// ── Iniciar ───────────────────────────────────────────────────────────────────

func (s *webpayService) Iniciar(ctx context.Context, req dto.IniciarWebpayRequest) (*dto.IniciarWebpayResponse, error) {
	pedidoID, err := parseID(req.PedidoID, "pedido_id")
	if err != nil {
		return nil, err
	}
	pedido, err := s.pedidos.FindByID(ctx, pedidoID)
	if err != nil {
		return nil, lookupErr(err, "pedido no encontrado")
	}
	if pedido.EsTerminal() {
		return nil, apierror.Conflict("el pedido esta " + pedido.Estado + " y no admite pagos")
	}

	monto := pedido.TotalNeto.Sub(pedido.TotalPagado())
	if req.Monto != nil {
		monto = *req.Monto
	}
	if !monto.IsPositive() {
		return nil, apierror.Validation("el monto a cobrar debe ser mayor a cero")
	}
	if err := validarMontos(monto); err != nil {
		return nil, err
	}

	creq := infra.WebpayCreateRequest{
		BuyOrder:  buyOrder(pedidoID, s.now()),
		SessionID: "s-" + pedidoID.String(),
		Amount:    monto,
		ReturnURL: req.ReturnURL,
	}
	var resp *infra.WebpayCreateResponse
	var raw []byte
	callCtx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	defer cancel()
	err = s.breaker.Do(func() error {
		var cerr error
		resp, raw, cerr = s.gateway.Crear(callCtx, creq)
		return cerr
	})
	if err != nil {
		return nil, gatewayErr("no se pudo iniciar la transaccion webpay", raw, err)
	}

	t := &model.TransaccionWebpay{
		PedidoID:  pedidoID,
		Token:     resp.Token,
		BuyOrder:  creq.BuyOrder,
		SessionID: creq.SessionID,
		Monto:     monto,
		Estado:    model.EstadoWebpayPendiente,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apierror.Conflict("token webpay duplicado")
		}
		return nil, apierror.Internal("no se pudo registrar la transaccion webpay", err)
	}
	log.Info().Str("pedido_id", pedidoID.String()).Str("buy_order", t.BuyOrder).Str("monto", monto.String()).
		Msg("webpay: transaccion iniciada")
	return &dto.IniciarWebpayResponse{ID: t.ID.String(), Token: t.Token, URL: resp.URL}, nil
}

// ── Confirmar ─────────────────────────────────────────────────────────────────
//   1. Take the per-token lock (concurrent callbacks for one token queue up)
//   2. Terminal transactions are returned unchanged
//   3. One gateway commit call, bounded by CallTimeout
//   4. Map the answer; unrecognized answers leave the row pendiente
//   5. Persist with a conditional update that only moves out of pendiente

func (s *webpayService) Confirmar(ctx context.Context, token string) (*dto.TransaccionWebpayResponse, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apierror.Validation("token es obligatorio")
	}

	lockCtx, cancelLock := context.WithTimeout(ctx, s.opts.LockWait)
	unlock, err := s.locker.Lock(lockCtx, "webpay:"+token)
	cancelLock()
	if err != nil {
		if errors.Is(err, infra.ErrLockTimeout) {
			return nil, apierror.Conflict("la transaccion se esta confirmando en otra solicitud")
		}
		return nil, apierror.Internal("no se pudo bloquear la transaccion", err)
	}
	defer unlock()

	t, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		return nil, lookupErr(err, "transaccion webpay no encontrada")
	}
	if t.EsTerminal() {
		return webpayToResponse(t), nil
	}

	// Once dispatched the call runs to completion even if the client goes away.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.CallTimeout)
	defer cancel()
	var resp *infra.WebpayCommitResponse
	var raw []byte
	err = s.breaker.Do(func() error {
		var cerr error
		resp, raw, cerr = s.gateway.Confirmar(callCtx, token)
		return cerr
	})
	if err != nil {
		log.Warn().Err(err).Str("token", token).Msg("webpay: commit failed")
		return nil, gatewayErr("la confirmacion webpay fallo", raw, err)
	}

	estado := EstadoDesdeCommit(resp)
	if estado == model.EstadoWebpayPendiente {
		log.Info().Str("token", token).Str("status", resp.Status).Msg("webpay: status not final, transaction stays pendiente")
		return webpayToResponse(t), nil
	}

	t.Estado = estado
	t.ResponseCode = resp.ResponseCode
	if resp.AuthorizationCode != "" {
		code := resp.AuthorizationCode
		t.CodigoAutorizacion = &code
	}
	rawStr := string(raw)
	t.RespuestaCommit = &rawStr

	ok, err := s.repo.ResolverPendiente(ctx, t)
	if err != nil {
		return nil, apierror.Internal("no se pudo guardar el resultado webpay", err)
	}
	if !ok {
		// Resolved elsewhere in the meantime: the stored outcome wins.
		current, err := s.repo.FindByToken(ctx, token)
		if err != nil {
			return nil, lookupErr(err, "transaccion webpay no encontrada")
		}
		return webpayToResponse(current), nil
	}
	log.Info().Str("token", token).Str("estado", estado).Msg("webpay: transaccion resuelta")
	return webpayToResponse(t), nil
}

func (s *webpayService) Obtener(ctx context.Context, id uuid.UUID) (*dto.TransaccionWebpayResponse, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "transaccion webpay no encontrada")
	}
	return webpayToResponse(t), nil
}

// EstadoDesdeCommit maps a commit answer to the local state. AUTHORIZED with
// response_code 0 is autorizado; FAILED, or AUTHORIZED with another code, is
// rechazado. Anything else stays pendiente.
func EstadoDesdeCommit(resp *infra.WebpayCommitResponse) string {
	if resp == nil {
		return model.EstadoWebpayPendiente
	}
	switch strings.ToUpper(resp.Status) {
	case "AUTHORIZED":
		if resp.ResponseCode == nil {
			return model.EstadoWebpayPendiente
		}
		if *resp.ResponseCode == 0 {
			return model.EstadoWebpayAutorizado
		}
		return model.EstadoWebpayRechazado
	case "FAILED":
		return model.EstadoWebpayRechazado
	}
	return model.EstadoWebpayPendiente
}

// buyOrder fits Transbank's 26 character limit: "o" + 12 hex chars of the
// order id + unix seconds.
func buyOrder(pedidoID uuid.UUID, at time.Time) string {
	hex := strings.ReplaceAll(pedidoID.String(), "-", "")
	return fmt.Sprintf("o%s%d", hex[:12], at.Unix())
}

func gatewayErr(msg string, raw []byte, err error) error {
	if errors.Is(err, infra.ErrCircuitOpen) {
		return apierror.Upstream("pasarela de pago no disponible, intente mas tarde", nil, err)
	}
	var wErr *infra.WebpayError
	if errors.As(err, &wErr) && len(wErr.Raw) > 0 {
		raw = wErr.Raw
	}
	return apierror.Upstream(msg, raw, err)
}

func webpayToResponse(t *model.TransaccionWebpay) *dto.TransaccionWebpayResponse {
	return &dto.TransaccionWebpayResponse{
		ID:                 t.ID.String(),
		PedidoID:           t.PedidoID.String(),
		Token:              t.Token,
		BuyOrder:           t.BuyOrder,
		SessionID:          t.SessionID,
		Monto:              t.Monto,
		Estado:             t.Estado,
		CodigoAutorizacion: t.CodigoAutorizacion,
		ResponseCode:       t.ResponseCode,
		FechaCreacion:      fmtTime(t.FechaCreacion),
		FechaActualizacion: fmtTime(t.FechaActualizacion),
	}
}
