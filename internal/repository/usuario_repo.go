package repository

import (
	"context"
	"strings"

	"foodtruck/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UsuarioRepository reads users for login and for order authorship checks.
// Inactive users are returned; callers decide what inactivity means.
type UsuarioRepository interface {
	FindByLogin(ctx context.Context, login string) (*model.Usuario, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Usuario, error)
}

type usuarioRepo struct{ db *gorm.DB }

func NewUsuarioRepository(db *gorm.DB) UsuarioRepository { return &usuarioRepo{db: db} }

// FindByLogin matches the username exactly or the email case-insensitively.
func (r *usuarioRepo) FindByLogin(ctx context.Context, login string) (*model.Usuario, error) {
	login = strings.TrimSpace(login)
	var u model.Usuario
	err := r.db.WithContext(ctx).
		Where("username = ?", login).
		Or("LOWER(email) = LOWER(?)", login).
		Order("activo DESC").
		First(&u).Error
	return &u, err
}

func (r *usuarioRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Usuario, error) {
	var u model.Usuario
	err := r.db.WithContext(ctx).Take(&u, "id = ?", id).Error
	return &u, err
}
