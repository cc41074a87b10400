package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"foodtruck/internal/model"
	"foodtruck/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const sinDetalles = "<sin detalles>"

// AccionAuditada describes a mutating request that already completed successfully.
type AccionAuditada struct {
	UsuarioID uuid.UUID
	Metodo    string // POST | PUT | PATCH | DELETE
	Ruta      string
	Entidad   string
	EntidadID *string
	// Payload is the bound request DTO; RawBody is used when it cannot be serialized.
	Payload      interface{}
	RawBody      []byte
	IP           string
	SucursalHint *uuid.UUID
	FechaHora    time.Time
}

// AuditoriaService appends audit entries. Registrar never fails the caller:
// resolution and persistence errors are logged and dropped.
type AuditoriaService interface {
	Registrar(ctx context.Context, a AccionAuditada)
}

type auditoriaService struct {
	repo     repository.AuditoriaRepository
	resolver SucursalResolver
}

func NewAuditoriaService(repo repository.AuditoriaRepository, resolver SucursalResolver) AuditoriaService {
	return &auditoriaService{repo: repo, resolver: resolver}
}

func (s *auditoriaService) Registrar(ctx context.Context, a AccionAuditada) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("ruta", a.Ruta).Msg("auditoria: panic while recording")
		}
	}()

	sucursalID, ok, err := s.resolver.Resolver(ctx, ContextoSucursal{
		UsuarioID: a.UsuarioID,
		Entidad:   a.Entidad,
		EntidadID: a.EntidadID,
		Hint:      a.SucursalHint,
	})
	if err != nil {
		log.Error().Err(err).Str("usuario_id", a.UsuarioID.String()).Str("ruta", a.Ruta).
			Msg("auditoria: branch resolution failed")
		return
	}
	if !ok {
		log.Warn().Str("usuario_id", a.UsuarioID.String()).Str("entidad", a.Entidad).Str("ruta", a.Ruta).
			Msg("auditoria: branch unresolved, entry skipped")
		return
	}

	fecha := a.FechaHora
	if fecha.IsZero() {
		fecha = time.Now()
	}
	entry := &model.Auditoria{
		UsuarioID:  a.UsuarioID,
		SucursalID: sucursalID,
		Accion:     a.Metodo,
		Entidad:    a.Entidad,
		EntidadID:  a.EntidadID,
		Detalles:   fmt.Sprintf("Endpoint: %s %s\nDatos: %s", a.Metodo, a.Ruta, serializarPayload(a.Payload, a.RawBody)),
		FechaHora:  fecha,
	}
	if a.IP != "" {
		ip := a.IP
		entry.IP = &ip
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		log.Error().Err(err).Str("entidad", a.Entidad).Str("ruta", a.Ruta).Msg("auditoria: failed to persist entry")
	}
}

// serializarPayload: JSON of the payload, else the raw body, else a placeholder.
func serializarPayload(payload interface{}, raw []byte) string {
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			return string(b)
		}
	}
	if len(raw) > 0 {
		return string(raw)
	}
	return sinDetalles
}
