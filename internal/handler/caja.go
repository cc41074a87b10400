package handler

import (
	"net/http"

	"foodtruck/internal/apierror"
	"foodtruck/internal/dto"
	"foodtruck/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const entidadCaja = "CierreCaja"

type CajaHandler struct {
	svc   service.CajaService
	audit auditHook
}

func NewCajaHandler(svc service.CajaService, audit service.AuditoriaService) *CajaHandler {
	return &CajaHandler{svc: svc, audit: newAuditHook(audit)}
}

// Abrir godoc
// @Summary Abre un ciclo de caja con su fondo inicial
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.AbrirCajaRequest true "Datos de apertura"
// @Success 201 {object} dto.CierreCajaResponse
// @Failure 409 {object} apierror.APIError "Ya hay una caja abierta"
// @Router /v1/caja/abrir [post]
func (h *CajaHandler) Abrir(c *gin.Context) {
	var req dto.AbrirCajaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Abrir(c.Request.Context(), actingUser(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
	h.audit.record(c, entidadCaja, "", req)
}

// Cerrar godoc
// @Summary Cierra el ciclo y calcula esperado y diferencia
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param cierre_id path string true "ID del ciclo"
// @Param body body dto.CerrarCajaRequest true "Ingresos declarados y total contado"
// @Success 200 {object} dto.CierreCajaResponse
// @Failure 409 {object} apierror.APIError "La caja ya esta cerrada"
// @Router /v1/caja/{cierre_id}/cerrar [post]
func (h *CajaHandler) Cerrar(c *gin.Context) {
	id, ok := uuidParam(c, "cierre_id")
	if !ok {
		return
	}
	var req dto.CerrarCajaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Cerrar(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
	h.audit.record(c, entidadCaja, "cierre_id", req)
}

func (h *CajaHandler) Obtener(c *gin.Context) {
	id, ok := uuidParam(c, "cierre_id")
	if !ok {
		return
	}
	resp, err := h.svc.Obtener(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Activa godoc
// @Summary Ciclo abierto del usuario en la sucursal
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Param sucursal_id query string true "ID de la sucursal"
// @Success 200 {object} dto.CierreCajaResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/caja/activa [get]
func (h *CajaHandler) Activa(c *gin.Context) {
	sucursalID, err := uuid.Parse(c.Query("sucursal_id"))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, apierror.New("sucursal_id invalido"))
		return
	}
	resp, err := h.svc.Activa(c.Request.Context(), sucursalID, actingUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
