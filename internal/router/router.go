package router

import (
	"foodtruck/internal/config"
	"foodtruck/internal/handler"
	"foodtruck/internal/infra"
	"foodtruck/internal/middleware"
	"foodtruck/internal/model"
	"foodtruck/internal/service"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Services are the use cases the HTTP layer exposes. The composition root
// builds them; the router only maps routes onto handlers.
type Services struct {
	Auth      service.AuthService
	Pedidos   service.PedidoService
	Boletas   service.BoletaService
	Webpay    service.WebpayService
	Caja      service.CajaService
	Auditoria service.AuditoriaService
}

// Deps are the infrastructure pieces the health check reports on.
type Deps struct {
	DB       *gorm.DB
	Redis    *redis.Client
	Breakers []*infra.CircuitBreaker
}

// Limiters are owned by the caller so their purge loops share its lifetime.
type Limiters struct {
	API   *middleware.RateLimiter
	Login *middleware.RateLimiter
}

// New returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, svcs Services, deps Deps, limiters Limiters) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.AllowedOrigins()...))
	r.Use(middleware.ErrorHandler())
	r.Use(limiters.API.Middleware())

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(svcs.Auth)
	pedidosH := handler.NewPedidosHandler(svcs.Pedidos, svcs.Auditoria)
	boletasH := handler.NewBoletasHandler(svcs.Boletas, svcs.Auditoria)
	webpayH := handler.NewWebpayHandler(svcs.Webpay, svcs.Auditoria)
	cajaH := handler.NewCajaHandler(svcs.Caja, svcs.Auditoria)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(deps.DB, deps.Redis, deps.Breakers...))

	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", limiters.Login.Middleware(), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	// Protected routes
	todos := middleware.RequireRole(model.RolCajero, model.RolSupervisor, model.RolAdministrador)
	supervisores := middleware.RequireRole(model.RolSupervisor, model.RolAdministrador)
	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))

	pedidos := v1.Group("/pedidos", todos)
	{
		pedidos.POST("", pedidosH.Crear)
		pedidos.GET("/:pedido_id", pedidosH.Obtener)
		pedidos.POST("/:pedido_id/detalles", pedidosH.AgregarDetalle)
		pedidos.POST("/:pedido_id/pagos", pedidosH.RegistrarPago)
		pedidos.PATCH("/:pedido_id/estado", pedidosH.CambiarEstado)
		pedidos.POST("/:pedido_id/recalcular", pedidosH.Recalcular)
		pedidos.POST("/:pedido_id/sincronizar", pedidosH.MarcarSincronizado)
		pedidos.PATCH("/detalles/:detalle_id", pedidosH.ActualizarDetalle)
		pedidos.DELETE("/detalles/:detalle_id", pedidosH.EliminarDetalle)
		pedidos.POST("/detalles/:detalle_id/modificadores", pedidosH.AgregarModificador)
	}
	// voiding or deleting an order is a supervisor action
	v1.DELETE("/pedidos/:pedido_id", supervisores, pedidosH.Eliminar)

	boletas := v1.Group("/boletas", todos)
	{
		boletas.POST("/emitir/:pedido_id", boletasH.Emitir)
		boletas.GET("/pedido/:pedido_id", boletasH.ObtenerPorPedido)
		boletas.GET("/:boleta_id", boletasH.Obtener)
		boletas.POST("/:boleta_id/generar-pdf", boletasH.GenerarPDF)
	}

	webpay := v1.Group("/webpay", todos)
	{
		webpay.POST("/init", webpayH.Iniciar)
		webpay.POST("/commit", webpayH.Confirmar)
		webpay.GET("/:transaccion_id", webpayH.Obtener)
	}

	caja := v1.Group("/caja", todos)
	{
		caja.POST("/abrir", cajaH.Abrir)
		caja.GET("/activa", cajaH.Activa)
		caja.GET("/:cierre_id", cajaH.Obtener)
		caja.POST("/:cierre_id/cerrar", cajaH.Cerrar)
	}

	// Swagger UI, outside production only
	if !cfg.IsProduction() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
