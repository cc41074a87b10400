package handler

import (
	"net/http"

	"foodtruck/internal/dto"
	"foodtruck/internal/service"

	"github.com/gin-gonic/gin"
)

const entidadDetalle = "PedidoDetalle"

type PedidosHandler struct {
	svc   service.PedidoService
	audit auditHook
}

func NewPedidosHandler(svc service.PedidoService, audit service.AuditoriaService) *PedidosHandler {
	return &PedidosHandler{svc: svc, audit: newAuditHook(audit)}
}

// Crear godoc
// @Summary Crea un pedido con sus totales
// @Tags pedidos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CrearPedidoRequest true "Cabecera del pedido"
// @Success 201 {object} dto.PedidoResponse
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/pedidos [post]
func (h *PedidosHandler) Crear(c *gin.Context) {
	var req dto.CrearPedidoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Crear(c.Request.Context(), actingUser(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
	h.audit.record(c, service.EntidadPedido, "", req)
}

// Obtener godoc
// @Summary Obtiene un pedido con lineas y pagos
// @Tags pedidos
// @Produce json
// @Security BearerAuth
// @Param pedido_id path string true "ID del pedido"
// @Success 200 {object} dto.PedidoResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/pedidos/{pedido_id} [get]
func (h *PedidosHandler) Obtener(c *gin.Context) {
	id, ok := uuidParam(c, "pedido_id")
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

// AgregarDetalle godoc
// @Summary Agrega una linea al pedido con el precio vigente del producto
// @Tags pedidos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param pedido_id path string true "ID del pedido"
// @Param body body dto.AgregarDetalleRequest true "Linea"
// @Success 201 {object} dto.DetalleResponse
// @Router /v1/pedidos/{pedido_id}/detalles [post]
func (h *PedidosHandler) AgregarDetalle(c *gin.Context) {
	id, ok := uuidParam(c, "pedido_id")
	if !ok {
		return
	}
	var req dto.AgregarDetalleRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AgregarDetalle(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
	h.audit.record(c, service.EntidadPedido, "pedido_id", req)
}

// ActualizarDetalle godoc
// @Summary Cambia cantidad o descuento de una linea y recalcula su total
// @Tags pedidos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param detalle_id path string true "ID de la linea"
// @Param body body dto.ActualizarDetalleRequest true "Cambios"
// @Success 200 {object} dto.DetalleResponse
// @Router /v1/pedidos/detalles/{detalle_id} [patch]
func (h *PedidosHandler) ActualizarDetalle(c *gin.Context) {
	id, ok := uuidParam(c, "detalle_id")
	if !ok {
		return
	}
	var req dto.ActualizarDetalleRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.ActualizarDetalle(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
	h.audit.record(c, entidadDetalle, "detalle_id", req)
}

func (h *PedidosHandler) EliminarDetalle(c *gin.Context) {
	id, ok := uuidParam(c, "detalle_id")
	if !ok {
		return
	}
	if err := h.svc.EliminarDetalle(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
	h.audit.record(c, entidadDetalle, "detalle_id", nil)
}

// AgregarModificador godoc
// @Summary Aplica un modificador a una linea
// @Tags pedidos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param detalle_id path string true "ID de la linea"
// @Param body body dto.AgregarModificadorRequest true "Modificador"
// @Success 201 {object} dto.ModificadorAplicadoResponse
// @Failure 409 {object} apierror.APIError "El modificador ya esta aplicado"
// @Router /v1/pedidos/detalles/{detalle_id}/modificadores [post]
func (h *PedidosHandler) AgregarModificador(c *gin.Context) {
	id, ok := uuidParam(c, "detalle_id")
	if !ok {
		return
	}
	var req dto.AgregarModificadorRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AgregarModificador(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
	h.audit.record(c, entidadDetalle, "detalle_id", req)
}

// RegistrarPago godoc
// @Summary Registra un pago del pedido
// @Tags pedidos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param pedido_id path string true "ID del pedido"
// @Param body body dto.RegistrarPagoRequest true "Pago"
// @Success 201 {object} dto.PagoResponse
// @Failure 409 {object} apierror.APIError "El pago excede el total"
// @Router /v1/pedidos/{pedido_id}/pagos [post]
func (h *PedidosHandler) RegistrarPago(c *gin.Context) {
	id, ok := uuidParam(c, "pedido_id")
	if !ok {
		return
	}
	var req dto.RegistrarPagoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RegistrarPago(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
	h.audit.record(c, service.EntidadPedido, "pedido_id", req)
}

// CambiarEstado godoc
// @Summary Aplica una transicion de estado
// @Tags pedidos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param pedido_id path string true "ID del pedido"
// @Param body body dto.CambiarEstadoRequest true "Estado destino"
// @Success 200 {object} dto.PedidoResponse
// @Failure 409 {object} apierror.APIError "Transicion no permitida"
// @Router /v1/pedidos/{pedido_id}/estado [patch]
func (h *PedidosHandler) CambiarEstado(c *gin.Context) {
	id, ok := uuidParam(c, "pedido_id")
	if !ok {
		return
	}
	var req dto.CambiarEstadoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CambiarEstado(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
	h.audit.record(c, service.EntidadPedido, "pedido_id", req)
}

// Recalcular godoc
// @Summary Recalcula los totales del pedido desde sus lineas
// @Tags pedidos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param pedido_id path string true "ID del pedido"
// @Param body body dto.RecalcularRequest false "IVA a aplicar"
// @Success 200 {object} dto.PedidoResponse
// @Router /v1/pedidos/{pedido_id}/recalcular [post]
func (h *PedidosHandler) Recalcular(c *gin.Context) {
	id, ok := uuidParam(c, "pedido_id")
	if !ok {
		return
	}
	var req dto.RecalcularRequest
	// the body is optional
	if c.Request.ContentLength != 0 && !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Recalcular(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
	h.audit.record(c, service.EntidadPedido, "pedido_id", req)
}

func (h *PedidosHandler) MarcarSincronizado(c *gin.Context) {
	id, ok := uuidParam(c, "pedido_id")
	if !ok {
		return
	}
	resp, err := h.svc.MarcarSincronizado(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
	h.audit.record(c, service.EntidadPedido, "pedido_id", nil)
}

// Eliminar godoc
// @Summary Anula el pedido, o lo borra con sus lineas y pagos cuando hard=1
// @Tags pedidos
// @Produce json
// @Security BearerAuth
// @Param pedido_id path string true "ID del pedido"
// @Param hard query bool false "Borrado definitivo"
// @Success 200 {object} dto.PedidoResponse
// @Success 204
// @Router /v1/pedidos/{pedido_id} [delete]
func (h *PedidosHandler) Eliminar(c *gin.Context) {
	id, ok := uuidParam(c, "pedido_id")
	if !ok {
		return
	}
	switch c.Query("hard") {
	case "1", "true":
		if err := h.svc.Eliminar(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	default:
		resp, err := h.svc.Anular(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
	h.audit.record(c, service.EntidadPedido, "pedido_id", nil)
}
