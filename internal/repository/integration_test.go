//go:build integration

package repository

// Runs against a real Postgres via testcontainers:
//
//	go test -tags integration ./internal/repository/... -v

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"foodtruck/internal/infra"
	"foodtruck/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

func newPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("integration: skipped with -short")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("foodtruck_test"),
		tcpostgres.WithUsername("foodtruck"),
		tcpostgres.WithPassword("foodtruck"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := infra.NewDatabase(dsn)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, infra.RunMigrations(sqlDB))
	return db
}

// seedSucursal inserts a company, a branch and a cashier.
func seedSucursal(t *testing.T, db *gorm.DB) (sucursalID, usuarioID uuid.UUID) {
	t.Helper()
	var empresaID uuid.UUID
	require.NoError(t, db.Raw(`INSERT INTO empresas (nombre, rut) VALUES ('Test', '76111111-1') RETURNING id`).Scan(&empresaID).Error)
	require.NoError(t, db.Raw(`INSERT INTO sucursales (empresa_id, nombre) VALUES (?, 'Centro') RETURNING id`, empresaID).Scan(&sucursalID).Error)
	require.NoError(t, db.Raw(`INSERT INTO usuarios (username, nombre, email, password_hash, rol)
		VALUES ('cajero', 'Cajero', 'cajero@test.cl', 'x', 'cajero') RETURNING id`).Scan(&usuarioID).Error)
	return sucursalID, usuarioID
}

// seedPedidos inserts a branch with n completed orders.
func seedPedidos(t *testing.T, db *gorm.DB, n int) []uuid.UUID {
	t.Helper()
	sucursalID, usuarioID := seedSucursal(t, db)

	ids := make([]uuid.UUID, 0, n)
	for i := 0; i < n; i++ {
		p := &model.Pedido{
			SucursalID:   sucursalID,
			UsuarioID:    usuarioID,
			NumeroPedido: fmt.Sprintf("P-%03d", i+1),
			FechaHora:    time.Now(),
			Estado:       model.EstadoPedidoCompletado,
			TipoVenta:    "local",
			TotalBruto:   decimal.NewFromInt(10000),
			IVA:          decimal.NewFromInt(1900),
			TotalNeto:    decimal.NewFromInt(11900),
		}
		require.NoError(t, NewPedidoRepository(db).Create(context.Background(), p))
		ids = append(ids, p.ID)
	}
	return ids
}

func TestIntegration_CreateConFolioConcurrent(t *testing.T) {
	db := newPostgres(t)
	const n = 12
	pedidos := seedPedidos(t, db, n)
	repo := NewBoletaRepository(db)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		folios []int64
		errs   []error
	)
	for _, id := range pedidos {
		wg.Add(1)
		go func(pedidoID uuid.UUID) {
			defer wg.Done()
			b := &model.Boleta{PedidoID: pedidoID, FechaEmision: time.Now(), MontoTotal: decimal.NewFromInt(11900)}
			err := repo.CreateConFolio(context.Background(), b)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			folios = append(folios, b.Folio)
		}(id)
	}
	wg.Wait()

	require.Empty(t, errs)
	sort.Slice(folios, func(i, j int) bool { return folios[i] < folios[j] })
	for i, f := range folios {
		assert.Equal(t, int64(i+1), f)
	}

	err := repo.CreateConFolio(context.Background(), &model.Boleta{
		PedidoID: pedidos[0], FechaEmision: time.Now(), MontoTotal: decimal.NewFromInt(11900),
	})
	assert.ErrorIs(t, err, ErrBoletaExistente)
}

func TestIntegration_CambiarEstadoIsCompareAndSet(t *testing.T) {
	db := newPostgres(t)
	id := seedPedidos(t, db, 1)[0]
	repo := NewPedidoRepository(db)
	ctx := context.Background()

	ok, err := repo.CambiarEstado(ctx, id, model.EstadoPedidoCompletado, model.EstadoPedidoAnulado)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.CambiarEstado(ctx, id, model.EstadoPedidoCompletado, model.EstadoPedidoAnulado)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIntegration_DeleteCascade(t *testing.T) {
	db := newPostgres(t)
	id := seedPedidos(t, db, 1)[0]
	repo := NewPedidoRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.DeleteCascade(ctx, id))
	_, err := repo.FindByID(ctx, id)
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(repo.DeleteCascade(ctx, id)))
}

func TestIntegration_MigrationsRoundTrip(t *testing.T) {
	db := newPostgres(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)

	mg, err := infra.NewMigrator(sqlDB)
	require.NoError(t, err)
	v, dirty, err := mg.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)
	assert.False(t, dirty)

	require.NoError(t, mg.Down())
	require.NoError(t, mg.Up())
}

func TestIntegration_RecalcularBajoPagadoRejected(t *testing.T) {
	db := newPostgres(t)
	id := seedPedidos(t, db, 1)[0]
	repo := NewPedidoRepository(db)
	ctx := context.Background()

	var metodoID uuid.UUID
	require.NoError(t, db.Raw(`INSERT INTO metodos_pago (nombre) VALUES ('efectivo') RETURNING id`).Scan(&metodoID).Error)
	require.NoError(t, repo.CreatePago(ctx, &model.Pago{PedidoID: id, MetodoPagoID: metodoID, Monto: decimal.NewFromInt(11900)}))

	p, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	p.RecalcularTotales(decimal.Zero)
	assert.ErrorIs(t, repo.UpdateTotales(ctx, p), ErrTotalBajoPagado)

	stored, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, stored.TotalNeto.Equal(decimal.NewFromInt(11900)))
}

func TestIntegration_OneOpenCajaPerUserAndBranch(t *testing.T) {
	db := newPostgres(t)
	sucursalID, usuarioID := seedSucursal(t, db)
	repo := NewCierreCajaRepository(db)
	ctx := context.Background()

	nueva := func() *model.CierreCaja {
		return &model.CierreCaja{
			SucursalID:    sucursalID,
			UsuarioID:     usuarioID,
			FechaApertura: time.Now(),
			MontoInicial:  decimal.NewFromInt(10000),
			Estado:        model.EstadoCajaAbierta,
		}
	}
	require.NoError(t, repo.Create(ctx, nueva()))
	assert.True(t, IsUniqueViolation(repo.Create(ctx, nueva())))
}
