package repository

import (
	"context"

	"foodtruck/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type WebpayRepository interface {
	Create(ctx context.Context, t *model.TransaccionWebpay) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.TransaccionWebpay, error)
	FindByToken(ctx context.Context, token string) (*model.TransaccionWebpay, error)
	// ResolverPendiente writes the commit outcome only while the row is still
	// pendiente. It reports false if another commit already resolved it.
	ResolverPendiente(ctx context.Context, t *model.TransaccionWebpay) (bool, error)
}

type webpayRepo struct{ db *gorm.DB }

func NewWebpayRepository(db *gorm.DB) WebpayRepository { return &webpayRepo{db: db} }

func (r *webpayRepo) Create(ctx context.Context, t *model.TransaccionWebpay) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *webpayRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.TransaccionWebpay, error) {
	var t model.TransaccionWebpay
	err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error
	return &t, err
}

func (r *webpayRepo) FindByToken(ctx context.Context, token string) (*model.TransaccionWebpay, error) {
	var t model.TransaccionWebpay
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&t).Error
	return &t, err
}

func (r *webpayRepo) ResolverPendiente(ctx context.Context, t *model.TransaccionWebpay) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.TransaccionWebpay{}).
		Where("token = ? AND estado = ?", t.Token, model.EstadoWebpayPendiente).
		Updates(map[string]interface{}{
			"estado":              t.Estado,
			"codigo_autorizacion": t.CodigoAutorizacion,
			"response_code":       t.ResponseCode,
			"respuesta_commit":    t.RespuestaCommit,
		})
	return res.RowsAffected == 1, res.Error
}
