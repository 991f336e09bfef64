package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/libshelf/accounts/internal/database"
	"github.com/libshelf/accounts/internal/models"
)

const userColumns = `id, username, email, mobile, password_hash, name, role, avatar, email_verified, member_since`

// UserPostgresRepository is the Postgres-backed credential store.
// Uniqueness of username, email and mobile is enforced by partial and
// expression indexes in the schema; violations surface as the per-field
// duplicate sentinels via MapPostgresError.
type UserPostgresRepository struct {
	pool *pgxpool.Pool
}

func NewUserPostgresRepository(db *database.DB) *UserPostgresRepository {
	return &UserPostgresRepository{pool: db.Pool}
}

// rowScanner interface for scanning user rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User

	err := scanner.Scan(
		&user.ID, &user.Username, &user.Email, &user.Mobile,
		&user.PasswordHash, &user.Name, &user.Role, &user.Avatar,
		&user.EmailVerified, &user.MemberSince,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &user, nil
}

func scanUserRows(rows pgx.Rows) ([]*models.User, error) {
	defer rows.Close()

	users := make([]*models.User, 0)

	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return users, nil
}

func (r *UserPostgresRepository) GetByUsernameOrEmail(ctx context.Context, key string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users WHERE LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($1)
	`

	return scanUserRow(r.pool.QueryRow(ctx, query, key))
}

func (r *UserPostgresRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users WHERE id = $1
	`

	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

func (r *UserPostgresRepository) GetByMobile(ctx context.Context, mobile string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users WHERE mobile = $1 AND mobile <> ''
	`

	return scanUserRow(r.pool.QueryRow(ctx, query, mobile))
}

func (r *UserPostgresRepository) List(ctx context.Context) ([]*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	return scanUserRows(rows)
}

func (r *UserPostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.Role == "" {
		user.Role = models.RoleMember
	}
	if user.MemberSince.IsZero() {
		user.MemberSince = time.Now()
	}

	query := `
		INSERT INTO users (username, email, mobile, password_hash, name, role, avatar, email_verified, member_since)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + userColumns + `
	`

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.Username, user.Email, user.Mobile, user.PasswordHash,
		user.Name, user.Role, user.Avatar, user.EmailVerified, user.MemberSince,
	))
}

// Update rewrites the mutable fields of the row. The password hash and
// member_since are deliberately excluded; use SetPassword for the former.
func (r *UserPostgresRepository) Update(ctx context.Context, id int, user *models.User) (*models.User, error) {
	query := `
		UPDATE users
		SET username = $1, email = $2, mobile = $3, name = $4, role = $5, avatar = $6, email_verified = $7
		WHERE id = $8
		RETURNING ` + userColumns + `
	`

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.Username, user.Email, user.Mobile, user.Name,
		user.Role, user.Avatar, user.EmailVerified, id,
	))
}

func (r *UserPostgresRepository) SetPassword(ctx context.Context, id int, hash string) error {
	query := `UPDATE users SET password_hash = $1 WHERE id = $2`

	result, err := r.pool.Exec(ctx, query, hash, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

func (r *UserPostgresRepository) Delete(ctx context.Context, id int) error {
	query := `DELETE FROM users WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// EnsureBootstrapAdmin seeds the admin account when the table is empty,
// matching the file store's behavior on first run.
func (r *UserPostgresRepository) EnsureBootstrapAdmin(ctx context.Context) error {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return database.MapPostgresError(err)
	}
	if count > 0 {
		return nil
	}

	_, err := r.Create(ctx, &models.User{
		Username:      "admin",
		Email:         "admin@library.com",
		PasswordHash:  "admin",
		Name:          "Administrator",
		Role:          models.RoleAdmin,
		EmailVerified: true,
	})
	return err
}
