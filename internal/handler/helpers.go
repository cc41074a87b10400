package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"

	"foodtruck/internal/apierror"
	"foodtruck/internal/middleware"
	"foodtruck/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// SucursalHeader lets clients name the branch an action belongs to when
// nothing else identifies it.
const SucursalHeader = "X-Sucursal-ID"

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds the JSON body and runs go-playground/validator tags.
// The body is cached in the context so the audit hook can fall back to it.
// Returns false after writing the error response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindBodyWith(req, binding.JSON); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("JSON invalido: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
			return false
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// respondError writes the envelope for a service error.
func respondError(c *gin.Context, err error) {
	status := apierror.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).
			Str("request_id", c.GetString(middleware.RequestIDKey)).
			Str("path", c.FullPath()).
			Msg("request failed")
	}
	c.AbortWithStatusJSON(status, apierror.FromError(err))
}

// uuidParam parses a path parameter, writing a 422 when it is not a UUID.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, apierror.New(name+" invalido"))
		return uuid.Nil, false
	}
	return id, true
}

// actingUser returns the authenticated user id. JWTAuth has already
// rejected tokens without a valid one.
func actingUser(c *gin.Context) uuid.UUID {
	claims := middleware.GetClaims(c)
	if claims == nil {
		return uuid.Nil
	}
	id, _ := claims.UsuarioID()
	return id
}

// ── Audit hook ────────────────────────────────────────────────────────────────
// Handlers call record after a mutation succeeded and its response is written.
// Failed actions are never recorded.

type auditHook struct {
	svc service.AuditoriaService
}

func newAuditHook(svc service.AuditoriaService) auditHook { return auditHook{svc: svc} }

// record builds the action from the request: the entity id comes from the
// path parameter idParam (empty when the route has none) and the branch hint
// from the X-Sucursal-ID header, the sucursal_id query parameter or a
// sucursal_id field in the body.
func (h auditHook) record(c *gin.Context, entidad, idParam string, payload interface{}) {
	if h.svc == nil {
		return
	}
	var entidadID *string
	if idParam != "" {
		if v := c.Param(idParam); v != "" {
			entidadID = &v
		}
	}
	raw := cachedBody(c)

	// The action already happened; auditing it must outlive a client disconnect.
	ctx := context.WithoutCancel(c.Request.Context())
	h.svc.Registrar(ctx, service.AccionAuditada{
		UsuarioID:    actingUser(c),
		Metodo:       c.Request.Method,
		Ruta:         c.Request.URL.Path,
		Entidad:      entidad,
		EntidadID:    entidadID,
		Payload:      payload,
		RawBody:      raw,
		IP:           c.ClientIP(),
		SucursalHint: sucursalHint(c, raw),
	})
}

func cachedBody(c *gin.Context) []byte {
	if v, ok := c.Get(gin.BodyBytesKey); ok {
		if b, ok := v.([]byte); ok {
			return b
		}
	}
	return nil
}

func sucursalHint(c *gin.Context, raw []byte) *uuid.UUID {
	if id, err := uuid.Parse(c.GetHeader(SucursalHeader)); err == nil {
		return &id
	}
	if id, err := uuid.Parse(c.Query("sucursal_id")); err == nil {
		return &id
	}
	if len(raw) == 0 {
		return nil
	}
	var body struct {
		SucursalID string `json:"sucursal_id"`
	}
	if json.Unmarshal(raw, &body) != nil {
		return nil
	}
	if id, err := uuid.Parse(body.SucursalID); err == nil {
		return &id
	}
	return nil
}
