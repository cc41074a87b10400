package model

import (
	"time"

	"github.com/google/uuid"
)

// Categoria groups products and belongs to a single branch.
type Categoria struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SucursalID  uuid.UUID `gorm:"type:uuid;index;not null"`
	Nombre      string    `gorm:"not null"`
	Descripcion *string
	Activo      bool `gorm:"not null;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Sucursal *Sucursal `gorm:"foreignKey:SucursalID"`
}

// TableName overrides GORM's default singular → plural logic for Spanish names.
func (Categoria) TableName() string { return "categorias" }
