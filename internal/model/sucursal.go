package model

import (
	"time"

	"github.com/google/uuid"
)

// Empresa is the company that owns one or more branches.
type Empresa struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Nombre    string    `gorm:"not null"`
	RUT       string    `gorm:"type:varchar(12);uniqueIndex;not null;column:rut"`
	Activo    bool      `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Empresa) TableName() string { return "empresas" }

// Sucursal is a physical point of sale (a truck or a fixed store).
type Sucursal struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	EmpresaID uuid.UUID `gorm:"type:uuid;index;not null"`
	Nombre    string    `gorm:"not null"`
	Direccion *string
	Activo    bool `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Empresa *Empresa `gorm:"foreignKey:EmpresaID"`
}

func (Sucursal) TableName() string { return "sucursales" }

const (
	AsignacionActiva   = "activo"
	AsignacionInactiva = "inactivo"
)

// UsuarioSucursal assigns a user to a branch.
// Estado: "activo" | "inactivo"
type UsuarioSucursal struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UsuarioID  uuid.UUID `gorm:"type:uuid;index;not null"`
	SucursalID uuid.UUID `gorm:"type:uuid;index;not null"`
	Estado     string    `gorm:"type:varchar(20);not null;default:'activo'"`
	CreatedAt  time.Time

	Sucursal *Sucursal `gorm:"foreignKey:SucursalID"`
}

func (UsuarioSucursal) TableName() string { return "usuarios_sucursales" }

// IDOrNil returns uuid.Nil for a nil branch.
func (s *Sucursal) IDOrNil() uuid.UUID {
	if s == nil {
		return uuid.Nil
	}
	return s.ID
}
