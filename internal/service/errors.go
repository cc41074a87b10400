package service

import (
	"time"

	"foodtruck/internal/apierror"
	"foodtruck/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// escalaMonto is the scale of every money column (DECIMAL(12,2)).
const escalaMonto = 2

// lookupErr maps a repository lookup failure: missing rows become NotFound
// with msg, anything else is internal.
func lookupErr(err error, msg string) error {
	if repository.IsNotFound(err) {
		return apierror.NotFound(msg)
	}
	return apierror.Internal(msg, err)
}

func parseID(raw, campo string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apierror.Validation(campo + " invalido")
	}
	return id, nil
}

func fmtTime(t time.Time) string { return t.Format(time.RFC3339) }

func fmtTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := fmtTime(*t)
	return &s
}

// validarMontos rejects amounts with more decimals than the columns keep;
// postgres would round them silently and break the stored identities.
func validarMontos(montos ...decimal.Decimal) error {
	for _, m := range montos {
		if !m.Equal(m.Round(escalaMonto)) {
			return apierror.Validation("los montos admiten a lo sumo 2 decimales: " + m.String())
		}
	}
	return nil
}
