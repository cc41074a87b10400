package service

import (
	"context"
	"errors"
	"time"

	"foodtruck/internal/config"
	"foodtruck/internal/dto"
	"foodtruck/internal/model"
	"foodtruck/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrCredencialesInvalidas = errors.New("credenciales invalidas")
	ErrRefreshInvalido       = errors.New("refresh token invalido o expirado")
)

// AuthService issues the bearer tokens the JWT middleware resolves into an
// acting user. Access and refresh tokens are distinguished by the "typ" claim.
type AuthService interface {
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*dto.LoginResponse, error)
}

type authService struct {
	repo       repository.UsuarioRepository
	sucursales repository.SucursalRepository
	cfg        *config.Config
}

func NewAuthService(repo repository.UsuarioRepository, sucursales repository.SucursalRepository, cfg *config.Config) AuthService {
	return &authService{repo: repo, sucursales: sucursales, cfg: cfg}
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := s.repo.FindByLogin(ctx, req.Username)
	if err != nil || !user.Activo {
		return nil, ErrCredencialesInvalidas
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrCredencialesInvalidas
	}
	return s.issue(ctx, user)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*dto.LoginResponse, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(refreshToken, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid || claims["typ"] != "refresh" {
		return nil, ErrRefreshInvalido
	}
	userIDStr, _ := claims["user_id"].(string)
	uid, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, ErrRefreshInvalido
	}

	user, err := s.repo.FindByID(ctx, uid)
	if err != nil || !user.Activo {
		return nil, ErrRefreshInvalido
	}
	return s.issue(ctx, user)
}

func (s *authService) issue(ctx context.Context, user *model.Usuario) (*dto.LoginResponse, error) {
	// The active branch is informational; the audit resolver looks it up again per request.
	var sucursalID *string
	if suc, err := s.sucursales.FindAsignacionActiva(ctx, user.ID); err == nil && suc != nil {
		id := suc.ID.String()
		sucursalID = &id
	}

	access, err := s.generateToken(user, sucursalID, "access", time.Duration(s.cfg.JWTExpirationHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	refresh, err := s.generateToken(user, sucursalID, "refresh", time.Duration(s.cfg.JWTRefreshHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    s.cfg.JWTExpirationHours * 3600,
		User: dto.UsuarioResponse{
			ID:         user.ID.String(),
			Username:   user.Username,
			Nombre:     user.Nombre,
			Email:      user.Email,
			Rol:        user.Rol,
			SucursalID: sucursalID,
		},
	}, nil
}

func (s *authService) generateToken(user *model.Usuario, sucursalID *string, typ string, duration time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id":     user.ID.String(),
		"username":    user.Username,
		"rol":         user.Rol,
		"sucursal_id": sucursalID,
		"typ":         typ,
		"exp":         now.Add(duration).Unix(),
		"iat":         now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}
