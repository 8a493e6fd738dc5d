package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jhoicas/facturas-api/internal/domain"
	"github.com/jhoicas/facturas-api/internal/domain/entity"
	"github.com/jhoicas/facturas-api/internal/domain/repository"
)

var _ repository.UserRepository = (*UserRepo)(nil)

// UserRepo implementación del puerto UserRepository sobre SQLite embebido.
// El archivo de base de datos vive junto al servicio; el esquema se crea
// en el arranque si no existe. La columna password guarda exclusivamente
// el hash bcrypt, nunca la contraseña.
type UserRepo struct {
	db *sql.DB
}

// Open abre (o crea) la base de datos y asegura el esquema.
func Open(path string) (*UserRepo, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("abrir SQLite: %w", err)
	}
	// El driver es embebido; una sola conexión evita SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if err := bootstrap(db); err != nil {
		db.Close()
		return nil, err
	}
	return &UserRepo{db: db}, nil
}

func bootstrap(db *sql.DB) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			name          TEXT NOT NULL DEFAULT '',
			role          TEXT NOT NULL DEFAULT 'user',
			active        INTEGER NOT NULL DEFAULT 1,
			created_at    TIMESTAMP NOT NULL,
			updated_at    TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("crear esquema de usuarios: %w", err)
	}
	return nil
}

// Close cierra la base de datos.
func (r *UserRepo) Close() error {
	return r.db.Close()
}

const userColumns = "id, email, password_hash, name, role, active, created_at, updated_at"

// FindByEmail busca un usuario por email (insensible a mayúsculas).
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE email = ?"
	row := r.db.QueryRowContext(ctx, query, strings.ToLower(email))
	return scanUser(row)
}

// ExistsByEmail comprueba si el email ya está registrado.
func (r *UserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM users WHERE email = ?", strings.ToLower(email)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("comprobar email: %w", err)
	}
	return n > 0, nil
}

// Create inserta un usuario nuevo.
func (r *UserRepo) Create(ctx context.Context, u *entity.User) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		u.ID, u.Email, u.PasswordHash, u.Name, u.Role, boolToInt(u.Active), u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.ErrEmailAlreadyExists
		}
		return fmt.Errorf("insertar usuario: %w", err)
	}
	return nil
}

// List devuelve todos los usuarios ordenados por fecha de alta.
func (r *UserRepo) List(ctx context.Context) ([]*entity.User, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY created_at ASC")
	if err != nil {
		return nil, fmt.Errorf("listar usuarios: %w", err)
	}
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listar usuarios: %w", err)
	}
	return users, nil
}

// UpdateRole cambia el rol de un usuario.
func (r *UserRepo) UpdateRole(ctx context.Context, userID, role string) error {
	return r.updateField(ctx, userID, "role", role)
}

// SetActive habilita o deshabilita un usuario.
func (r *UserRepo) SetActive(ctx context.Context, userID string, active bool) error {
	return r.updateField(ctx, userID, "active", boolToInt(active))
}

func (r *UserRepo) updateField(ctx context.Context, userID, column string, value any) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET "+column+" = ?, updated_at = ? WHERE id = ?",
		value, time.Now(), userID,
	)
	if err != nil {
		return fmt.Errorf("actualizar usuario: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("actualizar usuario: %w", err)
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*entity.User, error) {
	var u entity.User
	var active int
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &active, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("leer usuario: %w", err)
	}
	u.Active = active != 0
	return &u, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
