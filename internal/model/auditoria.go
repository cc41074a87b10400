package model

import (
	"time"

	"github.com/google/uuid"
)

// Auditoria is an append-only record of a successful mutating request.
// Rows are never updated or deleted.
type Auditoria struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UsuarioID  uuid.UUID `gorm:"type:uuid;index;not null"`
	SucursalID uuid.UUID `gorm:"type:uuid;index;not null"`
	// Accion is the HTTP verb: POST | PUT | PATCH | DELETE
	Accion    string    `gorm:"type:varchar(10);not null"`
	Entidad   string    `gorm:"type:varchar(50);not null"`
	EntidadID *string   `gorm:"type:varchar(64)"`
	Detalles  string    `gorm:"type:text;not null"`
	IP        *string   `gorm:"type:varchar(45);column:ip"`
	FechaHora time.Time `gorm:"not null;index"`
}

func (Auditoria) TableName() string { return "auditorias" }
