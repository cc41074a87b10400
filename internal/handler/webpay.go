package handler

import (
	"net/http"

	"foodtruck/internal/dto"
	"foodtruck/internal/service"

	"github.com/gin-gonic/gin"
)

const entidadWebpay = "TransaccionWebpay"

type WebpayHandler struct {
	svc   service.WebpayService
	audit auditHook
}

func NewWebpayHandler(svc service.WebpayService, audit service.AuditoriaService) *WebpayHandler {
	return &WebpayHandler{svc: svc, audit: newAuditHook(audit)}
}

// Iniciar godoc
// @Summary Abre una transaccion Webpay Plus para el pedido
// @Tags webpay
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.IniciarWebpayRequest true "Pedido, monto y URL de retorno"
// @Success 201 {object} dto.IniciarWebpayResponse
// @Failure 502 {object} apierror.APIError "Respuesta de la pasarela en upstream"
// @Router /v1/webpay/init [post]
func (h *WebpayHandler) Iniciar(c *gin.Context) {
	var req dto.IniciarWebpayRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Iniciar(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
	h.audit.record(c, entidadWebpay, "", req)
}

// Confirmar godoc
// @Summary Confirma (commit) la transaccion del token
// @Description Una transaccion autorizada o rechazada se devuelve sin volver a llamar a la pasarela.
// @Tags webpay
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.ConfirmarWebpayRequest true "token_ws recibido en el retorno"
// @Success 200 {object} dto.TransaccionWebpayResponse
// @Failure 502 {object} apierror.APIError
// @Router /v1/webpay/commit [post]
func (h *WebpayHandler) Confirmar(c *gin.Context) {
	var req dto.ConfirmarWebpayRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Confirmar(c.Request.Context(), req.Token)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
	h.audit.record(c, entidadWebpay, "", req)
}

func (h *WebpayHandler) Obtener(c *gin.Context) {
	id, ok := uuidParam(c, "transaccion_id")
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
