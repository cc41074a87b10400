package service

import (
	"context"
	"time"

	"foodtruck/internal/apierror"
	"foodtruck/internal/dto"
	"foodtruck/internal/model"
	"foodtruck/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type CajaService interface {
	Abrir(ctx context.Context, usuarioID uuid.UUID, req dto.AbrirCajaRequest) (*dto.CierreCajaResponse, error)
	Cerrar(ctx context.Context, id uuid.UUID, req dto.CerrarCajaRequest) (*dto.CierreCajaResponse, error)
	Obtener(ctx context.Context, id uuid.UUID) (*dto.CierreCajaResponse, error)
	// Activa returns the user's open cycle in the branch.
	Activa(ctx context.Context, sucursalID, usuarioID uuid.UUID) (*dto.CierreCajaResponse, error)
}

type cajaService struct {
	repo       repository.CierreCajaRepository
	sucursales repository.SucursalRepository
	now        func() time.Time
}

func NewCajaService(repo repository.CierreCajaRepository, sucursales repository.SucursalRepository) CajaService {
	return &cajaService{repo: repo, sucursales: sucursales, now: time.Now}
}

// ── Abrir ─────────────────────────────────────────────────────────────────────
// One open cycle per user and branch. Income fields start at zero.

func (s *cajaService) Abrir(ctx context.Context, usuarioID uuid.UUID, req dto.AbrirCajaRequest) (*dto.CierreCajaResponse, error) {
	sucursalID, err := parseID(req.SucursalID, "sucursal_id")
	if err != nil {
		return nil, err
	}
	if req.MontoInicial == nil {
		return nil, apierror.Validation("monto_inicial es obligatorio")
	}
	if req.MontoInicial.IsNegative() {
		return nil, apierror.Validation("monto_inicial no puede ser negativo")
	}
	if err := validarMontos(*req.MontoInicial); err != nil {
		return nil, err
	}
	if _, err := s.sucursales.FindByID(ctx, sucursalID); err != nil {
		return nil, lookupErr(err, "sucursal no encontrada")
	}

	if _, err := s.repo.FindAbiertaPorUsuario(ctx, sucursalID, usuarioID); err == nil {
		return nil, apierror.Conflict("ya existe una caja abierta para este usuario en la sucursal")
	} else if !repository.IsNotFound(err) {
		return nil, apierror.Internal("no se pudo verificar la caja abierta", err)
	}

	c := &model.CierreCaja{
		SucursalID:           sucursalID,
		UsuarioID:            usuarioID,
		FechaApertura:        s.now(),
		MontoInicial:         *req.MontoInicial,
		IngresosEfectivo:     decimal.Zero,
		IngresosElectronicos: decimal.Zero,
		Estado:               model.EstadoCajaAbierta,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		// a concurrent open won the partial unique index
		if repository.IsUniqueViolation(err) {
			return nil, apierror.Conflict("ya existe una caja abierta para este usuario en la sucursal")
		}
		return nil, apierror.Internal("no se pudo abrir la caja", err)
	}
	return cajaToResponse(c), nil
}

// ── Cerrar ────────────────────────────────────────────────────────────────────
// expected = monto_inicial + efectivo + electronicos; diferencia = real - expected.
// A cycle closes once: the second close is a Conflict, never an overwrite.

func (s *cajaService) Cerrar(ctx context.Context, id uuid.UUID, req dto.CerrarCajaRequest) (*dto.CierreCajaResponse, error) {
	if req.IngresosEfectivo == nil || req.IngresosElectronicos == nil || req.TotalReal == nil {
		return nil, apierror.Validation("ingresos_efectivo, ingresos_electronicos y total_real son obligatorios")
	}
	for _, v := range []decimal.Decimal{*req.IngresosEfectivo, *req.IngresosElectronicos, *req.TotalReal} {
		if v.IsNegative() {
			return nil, apierror.Validation("los montos de cierre no pueden ser negativos")
		}
	}
	if err := validarMontos(*req.IngresosEfectivo, *req.IngresosElectronicos, *req.TotalReal); err != nil {
		return nil, err
	}

	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "caja no encontrada")
	}
	if err := c.Cerrar(*req.IngresosEfectivo, *req.IngresosElectronicos, *req.TotalReal, req.Observaciones, s.now()); err != nil {
		return nil, apierror.Conflict(err.Error())
	}

	ok, err := s.repo.Cerrar(ctx, c)
	if err != nil {
		return nil, apierror.Internal("no se pudo cerrar la caja", err)
	}
	if !ok {
		return nil, apierror.Conflict(model.ErrCajaCerrada.Error())
	}
	log.Info().
		Str("cierre_id", c.ID.String()).
		Str("esperado", c.TotalEsperado.String()).
		Str("diferencia", c.Diferencia.String()).
		Str("clasificacion", *c.ClasificacionDesvio).
		Msg("caja: cerrada")
	return cajaToResponse(c), nil
}

func (s *cajaService) Obtener(ctx context.Context, id uuid.UUID) (*dto.CierreCajaResponse, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "caja no encontrada")
	}
	return cajaToResponse(c), nil
}

func (s *cajaService) Activa(ctx context.Context, sucursalID, usuarioID uuid.UUID) (*dto.CierreCajaResponse, error) {
	c, err := s.repo.FindAbiertaPorUsuario(ctx, sucursalID, usuarioID)
	if err != nil {
		return nil, lookupErr(err, "no hay caja abierta")
	}
	return cajaToResponse(c), nil
}

func cajaToResponse(c *model.CierreCaja) *dto.CierreCajaResponse {
	return &dto.CierreCajaResponse{
		ID:                   c.ID.String(),
		SucursalID:           c.SucursalID.String(),
		UsuarioID:            c.UsuarioID.String(),
		FechaApertura:        fmtTime(c.FechaApertura),
		FechaCierre:          fmtTimePtr(c.FechaCierre),
		MontoInicial:         c.MontoInicial,
		IngresosEfectivo:     c.IngresosEfectivo,
		IngresosElectronicos: c.IngresosElectronicos,
		TotalEsperado:        c.TotalEsperado,
		TotalReal:            c.TotalReal,
		Diferencia:           c.Diferencia,
		ClasificacionDesvio:  c.ClasificacionDesvio,
		Estado:               c.Estado,
		Observaciones:        c.Observaciones,
	}
}
