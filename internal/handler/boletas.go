package handler

import (
	"net/http"

	"foodtruck/internal/dto"
	"foodtruck/internal/service"

	"github.com/gin-gonic/gin"
)

const entidadBoleta = "Boleta"

type BoletasHandler struct {
	svc   service.BoletaService
	audit auditHook
}

func NewBoletasHandler(svc service.BoletaService, audit service.AuditoriaService) *BoletasHandler {
	return &BoletasHandler{svc: svc, audit: newAuditHook(audit)}
}

// Emitir godoc
// @Summary Emite la boleta del pedido con el siguiente folio
// @Tags boletas
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param pedido_id path string true "ID del pedido"
// @Param body body dto.EmitirBoletaRequest false "Datos del receptor"
// @Success 201 {object} dto.BoletaResponse
// @Failure 409 {object} apierror.APIError "El pedido ya tiene boleta"
// @Router /v1/boletas/emitir/{pedido_id} [post]
func (h *BoletasHandler) Emitir(c *gin.Context) {
	pedidoID, ok := uuidParam(c, "pedido_id")
	if !ok {
		return
	}
	var req dto.EmitirBoletaRequest
	if c.Request.ContentLength != 0 && !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Emitir(c.Request.Context(), pedidoID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
	// the boleta is resolved to a branch through its order
	h.audit.record(c, service.EntidadPedido, "pedido_id", req)
}

// Obtener godoc
// @Summary Obtiene una boleta
// @Tags boletas
// @Produce json
// @Security BearerAuth
// @Param boleta_id path string true "ID de la boleta"
// @Success 200 {object} dto.BoletaResponse
// @Router /v1/boletas/{boleta_id} [get]
func (h *BoletasHandler) Obtener(c *gin.Context) {
	id, ok := uuidParam(c, "boleta_id")
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

func (h *BoletasHandler) ObtenerPorPedido(c *gin.Context) {
	id, ok := uuidParam(c, "pedido_id")
	if !ok {
		return
	}
	resp, err := h.svc.ObtenerPorPedido(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GenerarPDF godoc
// @Summary Renderiza la boleta y la sube al almacenamiento
// @Tags boletas
// @Produce json
// @Security BearerAuth
// @Param boleta_id path string true "ID de la boleta"
// @Success 200 {object} dto.BoletaResponse
// @Failure 502 {object} apierror.APIError
// @Router /v1/boletas/{boleta_id}/generar-pdf [post]
func (h *BoletasHandler) GenerarPDF(c *gin.Context) {
	id, ok := uuidParam(c, "boleta_id")
	if !ok {
		return
	}
	resp, err := h.svc.GenerarPDF(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
	h.audit.record(c, entidadBoleta, "boleta_id", nil)
}
