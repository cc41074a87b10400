package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Producto is a sellable menu item. Its branch is the branch of its category;
// a product without category has no branch of its own.
type Producto struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CategoriaID *uuid.UUID `gorm:"type:uuid;index"`
	Nombre      string     `gorm:"index;not null"`
	Descripcion *string
	PrecioBase  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	ImagenURL   *string
	Activo      bool `gorm:"not null;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Categoria *Categoria `gorm:"foreignKey:CategoriaID"`
}

func (Producto) TableName() string { return "productos" }

// Modificador is an add-on or variant ("extra queso", "sin cebolla").
type Modificador struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Nombre         string          `gorm:"not null"`
	ValorAdicional decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Activo         bool            `gorm:"not null;default:true"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (Modificador) TableName() string { return "modificadores" }

// MetodoPago is a payment method configured for the company (efectivo, debito, webpay...).
// Electronico separates card/transfer income from cash in the cash register.
type MetodoPago struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Nombre      string    `gorm:"uniqueIndex;not null"`
	Electronico bool      `gorm:"not null;default:false"`
	Activo      bool      `gorm:"not null;default:true"`
}

func (MetodoPago) TableName() string { return "metodos_pago" }
