package repository

import (
	"context"
	"errors"
	"time"

	"foodtruck/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// folioLockKey is the pg_advisory_xact_lock key serializing folio allocation.
const folioLockKey int64 = 0x666f6c696f // "folio"

// ErrBoletaExistente is returned when the order already has a boleta.
var ErrBoletaExistente = errors.New("el pedido ya tiene una boleta emitida")

type BoletaRepository interface {
	// CreateConFolio assigns folio = max(folio)+1 and inserts b under a
	// transaction-scoped advisory lock, so concurrent issuances never collide.
	CreateConFolio(ctx context.Context, b *model.Boleta) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Boleta, error)
	FindByPedidoID(ctx context.Context, pedidoID uuid.UUID) (*model.Boleta, error)
	// UpdateEnvioSII writes the SII outcome and retry bookkeeping of b.
	UpdateEnvioSII(ctx context.Context, b *model.Boleta) error
	// UpdatePDF writes url_pdf alone.
	UpdatePDF(ctx context.Context, id uuid.UUID, url string) error
	ListPendingRetries(ctx context.Context, before time.Time, limit int) ([]model.Boleta, error)
}

type boletaRepo struct{ db *gorm.DB }

func NewBoletaRepository(db *gorm.DB) BoletaRepository { return &boletaRepo{db: db} }

func (r *boletaRepo) CreateConFolio(ctx context.Context, b *model.Boleta) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", folioLockKey).Error; err != nil {
			return err
		}

		var existentes int64
		if err := tx.Model(&model.Boleta{}).Where("pedido_id = ?", b.PedidoID).Count(&existentes).Error; err != nil {
			return err
		}
		if existentes > 0 {
			return ErrBoletaExistente
		}

		var maxFolio int64
		if err := tx.Raw("SELECT COALESCE(MAX(folio), 0) FROM boletas").Scan(&maxFolio).Error; err != nil {
			return err
		}
		b.Folio = maxFolio + 1

		return tx.Omit("Pedido").Create(b).Error
	})
}

func (r *boletaRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Boleta, error) {
	var b model.Boleta
	err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error
	return &b, err
}

func (r *boletaRepo) FindByPedidoID(ctx context.Context, pedidoID uuid.UUID) (*model.Boleta, error) {
	var b model.Boleta
	err := r.db.WithContext(ctx).Where("pedido_id = ?", pedidoID).First(&b).Error
	return &b, err
}

// UpdateEnvioSII never touches folio, pedido_id, monto_total or url_pdf.
func (r *boletaRepo) UpdateEnvioSII(ctx context.Context, b *model.Boleta) error {
	return r.db.WithContext(ctx).Model(&model.Boleta{}).
		Where("id = ?", b.ID).
		Updates(map[string]interface{}{
			"estado_envio_sii": b.EstadoEnvioSII,
			"track_id":         b.TrackID,
			"codigo_qr":        b.CodigoQR,
			"xml_boleta":       b.XMLBoleta,
			"retry_count":      b.RetryCount,
			"next_retry_at":    b.NextRetryAt,
			"last_error":       b.LastError,
		}).Error
}

func (r *boletaRepo) UpdatePDF(ctx context.Context, id uuid.UUID, url string) error {
	return r.db.WithContext(ctx).Model(&model.Boleta{}).
		Where("id = ?", id).
		UpdateColumn("url_pdf", url).Error
}

func (r *boletaRepo) ListPendingRetries(ctx context.Context, before time.Time, limit int) ([]model.Boleta, error) {
	var out []model.Boleta
	err := r.db.WithContext(ctx).
		Where("estado_envio_sii = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?", model.EnvioSIIPendiente, before).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
