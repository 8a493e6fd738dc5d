package repository

import (
	"context"

	"github.com/jhoicas/facturas-api/internal/domain/entity"
)

// UserRepository define el puerto sobre la tabla local de credenciales.
type UserRepository interface {
	// FindByEmail devuelve ErrUserNotFound si el usuario no existe.
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, u *entity.User) error
	List(ctx context.Context) ([]*entity.User, error)
	// UpdateRole cambia el rol; devuelve ErrUserNotFound si el ID no existe.
	UpdateRole(ctx context.Context, id, role string) error
	// SetActive activa o desactiva la cuenta.
	SetActive(ctx context.Context, id string, active bool) error
}
