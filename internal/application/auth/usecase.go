package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/facturas-api/internal/application/dto"
	"github.com/jhoicas/facturas-api/internal/domain"
	"github.com/jhoicas/facturas-api/internal/domain/entity"
	"github.com/jhoicas/facturas-api/internal/domain/repository"
	"github.com/jhoicas/facturas-api/pkg/jwt"
	"github.com/jhoicas/facturas-api/pkg/logger"
)

// UseCase registro e inicio de sesión sobre el almacén local de
// credenciales. Las contraseñas se guardan exclusivamente como hash bcrypt.
type UseCase struct {
	users     repository.UserRepository
	jwtSecret string
	jwtIssuer string
	jwtExpMin int
	log       *logger.Logger
}

func NewUseCase(users repository.UserRepository, jwtSecret, jwtIssuer string, jwtExpMin int, log *logger.Logger) *UseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &UseCase{users: users, jwtSecret: jwtSecret, jwtIssuer: jwtIssuer, jwtExpMin: jwtExpMin, log: log}
}

// Register da de alta un usuario nuevo con rol "user". El email se
// normaliza a minúsculas y debe ser único; la contraseña exige un mínimo
// de 8 caracteres.
func (uc *UseCase) Register(ctx context.Context, req dto.RegisterRequest) (*dto.UserResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email inválido", domain.ErrInvalidInput)
	}
	if len(req.Password) < 8 {
		return nil, fmt.Errorf("%w: la contraseña debe tener al menos 8 caracteres", domain.ErrInvalidInput)
	}
	exists, err := uc.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("comprobar email: %w", err)
	}
	if exists {
		return nil, domain.ErrEmailAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash de contraseña: %w", err)
	}

	// El registro público nunca asigna privilegios: el rol es siempre
	// "user" y la promoción a admin pasa por el panel de administración.
	now := time.Now()
	u := &entity.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(req.Name),
		Role:         entity.RoleUser,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uc.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("crear usuario: %w", err)
	}
	uc.log.Info().Str("email", email).Msg("usuario registrado")
	return toUserResponse(u), nil
}

// Login verifica las credenciales y emite un token de sesión. Las
// credenciales incorrectas y el usuario inexistente producen el mismo
// error, sin distinguir el caso.
func (uc *UseCase) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	u, err := uc.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}
	if !u.Active {
		return nil, domain.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, domain.ErrUnauthorized
	}

	token, err := jwt.Generate(uc.jwtSecret, u.ID, u.Email, u.Role, uc.jwtIssuer, uc.jwtExpMin)
	if err != nil {
		return nil, fmt.Errorf("generar token: %w", err)
	}
	uc.log.Info().Str("email", email).Msg("inicio de sesión")
	return &dto.LoginResponse{Token: token, User: *toUserResponse(u)}, nil
}

func toUserResponse(u *entity.User) *dto.UserResponse {
	return &dto.UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
