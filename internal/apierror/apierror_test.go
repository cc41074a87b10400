package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation("cantidad invalida"), http.StatusUnprocessableEntity},
		{NotFound("pedido no encontrado"), http.StatusNotFound},
		{Conflict("modificador duplicado"), http.StatusConflict},
		{Upstream("webpay fallo", []byte(`{"error":"x"}`), nil), http.StatusBadGateway},
		{Internal("db caida", errors.New("boom")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), tc.err.Error())
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("emitir boleta: %w", Conflict("el pedido ya tiene boleta"))
	assert.True(t, IsKind(err, KindConflict))
	assert.False(t, IsKind(err, KindNotFound))
	assert.False(t, IsKind(nil, KindInternal))
}

func TestFromError_UpstreamCarriesRawPayload(t *testing.T) {
	resp := FromError(Upstream("webpay rechazo la solicitud", []byte(`{"error_message":"invalid token"}`), nil))
	assert.Equal(t, "webpay rechazo la solicitud", resp.Detail)
	assert.JSONEq(t, `{"error_message":"invalid token"}`, string(resp.Upstream))

	resp = FromError(Upstream("respuesta inesperada", []byte("<html>502</html>"), nil))
	assert.JSONEq(t, `"<html>502</html>"`, string(resp.Upstream))
}

func TestFromError_InternalIsMasked(t *testing.T) {
	resp := FromError(Internal("pq: relation does not exist", errors.New("x")))
	assert.Equal(t, "Error interno del servidor", resp.Detail)
	assert.Nil(t, resp.Upstream)
}
