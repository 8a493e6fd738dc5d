package admin

import (
	"context"
	"fmt"

	"github.com/jhoicas/facturas-api/internal/domain"
	"github.com/jhoicas/facturas-api/internal/domain/entity"
	"github.com/jhoicas/facturas-api/internal/domain/repository"
	"github.com/jhoicas/facturas-api/pkg/logger"
)

// UseCase panel de administración: agregados sobre facturas y gestión de
// usuarios. Todas las operaciones asumen que el llamante ya pasó el control
// de rol en la capa HTTP.
type UseCase struct {
	facturas repository.FacturaRepository
	users    repository.UserRepository
	log      *logger.Logger
}

func NewUseCase(facturas repository.FacturaRepository, users repository.UserRepository, log *logger.Logger) *UseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &UseCase{facturas: facturas, users: users, log: log}
}

// Stats agregados del panel: totales, desglose por moneda y por mes.
func (uc *UseCase) Stats(ctx context.Context) (*repository.FacturaStats, error) {
	stats, err := uc.facturas.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("estadísticas de facturas: %w", err)
	}
	return stats, nil
}

// ListUsers todos los usuarios del almacén de credenciales, sin hashes.
func (uc *UseCase) ListUsers(ctx context.Context) ([]*entity.User, error) {
	users, err := uc.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listar usuarios: %w", err)
	}
	for _, u := range users {
		u.PasswordHash = ""
	}
	return users, nil
}

// SetUserRole cambia el rol de un usuario.
func (uc *UseCase) SetUserRole(ctx context.Context, userID, role string) error {
	if role != entity.RoleUser && role != entity.RoleAdmin {
		return fmt.Errorf("%w: rol desconocido %q", domain.ErrInvalidInput, role)
	}
	if err := uc.users.UpdateRole(ctx, userID, role); err != nil {
		return err
	}
	uc.log.Info().Str("user_id", userID).Str("role", role).Msg("rol actualizado")
	return nil
}

// SetUserActive habilita o deshabilita el acceso de un usuario. Un usuario
// deshabilitado no puede iniciar sesión; sus tokens vigentes expiran solos.
func (uc *UseCase) SetUserActive(ctx context.Context, userID string, active bool) error {
	if err := uc.users.SetActive(ctx, userID, active); err != nil {
		return err
	}
	uc.log.Info().Str("user_id", userID).Bool("active", active).Msg("estado de usuario actualizado")
	return nil
}
