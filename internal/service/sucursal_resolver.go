package service

import (
	"context"

	"foodtruck/internal/repository"

	"github.com/google/uuid"
)

// Entity kinds the resolver knows how to follow back to a branch.
const (
	EntidadProducto = "Producto"
	EntidadPedido   = "Pedido"
)

// ContextoSucursal is the input to branch resolution.
type ContextoSucursal struct {
	UsuarioID uuid.UUID
	Entidad   string
	// EntidadID is the raw path parameter, nil when the action has none.
	EntidadID *string
	Hint      *uuid.UUID
}

// estrategiaSucursal returns (branch, true) when it can decide. Missing rows
// are "cannot decide", not errors.
type estrategiaSucursal func(ctx context.Context, in ContextoSucursal) (uuid.UUID, bool, error)

// SucursalResolver decides which branch an authenticated action belongs to.
// Unresolved (false, nil) is a valid outcome.
type SucursalResolver interface {
	Resolver(ctx context.Context, in ContextoSucursal) (uuid.UUID, bool, error)
}

type sucursalResolver struct {
	estrategias []estrategiaSucursal
}

// NewSucursalResolver builds the cascade: user assignment, product category,
// order, explicit hint. The first strategy that decides wins.
func NewSucursalResolver(
	sucursales repository.SucursalRepository,
	catalogo repository.CatalogoRepository,
	pedidos repository.PedidoRepository,
) SucursalResolver {
	return &sucursalResolver{estrategias: []estrategiaSucursal{
		porAsignacion(sucursales),
		porProducto(catalogo),
		porPedido(pedidos),
		porHint(sucursales),
	}}
}

func (r *sucursalResolver) Resolver(ctx context.Context, in ContextoSucursal) (uuid.UUID, bool, error) {
	for _, estrategia := range r.estrategias {
		id, ok, err := estrategia(ctx, in)
		if err != nil {
			return uuid.Nil, false, err
		}
		if ok {
			return id, true, nil
		}
	}
	return uuid.Nil, false, nil
}

// ── Strategies ────────────────────────────────────────────────────────────────

func porAsignacion(repo repository.SucursalRepository) estrategiaSucursal {
	return func(ctx context.Context, in ContextoSucursal) (uuid.UUID, bool, error) {
		s, err := repo.FindAsignacionActiva(ctx, in.UsuarioID)
		return decidir(s.IDOrNil(), err)
	}
}

func porProducto(repo repository.CatalogoRepository) estrategiaSucursal {
	return func(ctx context.Context, in ContextoSucursal) (uuid.UUID, bool, error) {
		id, ok := entidadUUID(in, EntidadProducto)
		if !ok {
			return uuid.Nil, false, nil
		}
		p, err := repo.FindProducto(ctx, id)
		if err != nil {
			return decidir(uuid.Nil, err)
		}
		if p.Categoria == nil {
			return uuid.Nil, false, nil
		}
		return decidir(p.Categoria.SucursalID, nil)
	}
}

func porPedido(repo repository.PedidoRepository) estrategiaSucursal {
	return func(ctx context.Context, in ContextoSucursal) (uuid.UUID, bool, error) {
		id, ok := entidadUUID(in, EntidadPedido)
		if !ok {
			return uuid.Nil, false, nil
		}
		p, err := repo.FindByID(ctx, id)
		if err != nil {
			return decidir(uuid.Nil, err)
		}
		return decidir(p.SucursalID, nil)
	}
}

func porHint(repo repository.SucursalRepository) estrategiaSucursal {
	return func(ctx context.Context, in ContextoSucursal) (uuid.UUID, bool, error) {
		if in.Hint == nil {
			return uuid.Nil, false, nil
		}
		s, err := repo.FindByID(ctx, *in.Hint)
		return decidir(s.IDOrNil(), err)
	}
}

func entidadUUID(in ContextoSucursal, entidad string) (uuid.UUID, bool) {
	if in.Entidad != entidad || in.EntidadID == nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(*in.EntidadID)
	return id, err == nil
}

func decidir(id uuid.UUID, err error) (uuid.UUID, bool, error) {
	if err != nil {
		if repository.IsNotFound(err) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, err
	}
	return id, id != uuid.Nil, nil
}
