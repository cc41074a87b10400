// Command seeduser creates or refreshes a demo company, branch and
// administrator assigned to it, plus the default payment methods.
package main

import (
	"context"
	"os"

	"foodtruck/internal/config"
	"foodtruck/internal/infra"
	"foodtruck/internal/model"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	username = "admin"
	password = "admin1234"
	nombre   = "Admin Demo"
	email    = "admin@foodtruck.cl"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		log.Fatal().Err(err).Msg("bcrypt")
	}

	err = db.WithContext(context.Background()).Transaction(func(tx *gorm.DB) error {
		var empresaID, sucursalID, usuarioID string
		if err := tx.Raw(`
			INSERT INTO empresas (nombre, rut) VALUES (?, ?)
			ON CONFLICT (rut) DO UPDATE SET nombre = EXCLUDED.nombre
			RETURNING id`, cfg.NombreComercio, "76000000-0").Scan(&empresaID).Error; err != nil {
			return err
		}
		if err := tx.Raw(`SELECT id FROM sucursales WHERE empresa_id = ? AND nombre = ?`, empresaID, "Casa Matriz").
			Scan(&sucursalID).Error; err != nil {
			return err
		}
		if sucursalID == "" {
			if err := tx.Raw(`INSERT INTO sucursales (empresa_id, nombre) VALUES (?, ?) RETURNING id`,
				empresaID, "Casa Matriz").Scan(&sucursalID).Error; err != nil {
				return err
			}
		}
		if err := tx.Raw(`
			INSERT INTO usuarios (username, nombre, email, password_hash, rol)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (username) DO UPDATE
			SET password_hash = EXCLUDED.password_hash,
			    nombre = EXCLUDED.nombre,
			    email = EXCLUDED.email,
			    rol = EXCLUDED.rol,
			    activo = true
			RETURNING id`, username, nombre, email, string(hash), model.RolAdministrador).Scan(&usuarioID).Error; err != nil {
			return err
		}
		if err := tx.Exec(`
			INSERT INTO usuarios_sucursales (usuario_id, sucursal_id)
			SELECT ?, ? WHERE NOT EXISTS (
				SELECT 1 FROM usuarios_sucursales WHERE usuario_id = ? AND sucursal_id = ? AND estado = 'activo')`,
			usuarioID, sucursalID, usuarioID, sucursalID).Error; err != nil {
			return err
		}
		return tx.Exec(`
			INSERT INTO metodos_pago (nombre, electronico) VALUES
			('efectivo', false), ('debito', true), ('credito', true), ('webpay', true)
			ON CONFLICT (nombre) DO NOTHING`).Error
	})
	if err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}
	log.Info().Str("username", username).Str("password", password).Msg("demo user ready")
}
