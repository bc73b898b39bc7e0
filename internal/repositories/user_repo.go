package repositories

import (
	"context"
	"time"

	"invoicehub/internal/common"
	"invoicehub/internal/models"

	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ListByTenant(ctx context.Context, scope models.TenantScope, limit, offset int) ([]*models.User, error)
	// SetResetToken stores a reset token hash, replacing any pending one.
	SetResetToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error
	// ConsumeResetToken swaps in newPasswordHash for the user holding tokenHash
	// when the token has not expired at now, and clears the token.
	ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, newPasswordHash string) (*models.User, error)
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

type userRepo struct {
	db DB
}

func NewUserRepo(db DB) UserRepository {
	return &userRepo{db: db}
}

const userColumns = `id, tenant_id, email, password_hash, full_name, role, created_at, updated_at`

func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, tenant_id, email, password_hash, full_name, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, user.ID, user.TenantID, models.NormalizeEmail(user.Email), user.PasswordHash, user.FullName, user.Role)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	err := r.db.QueryRow(ctx, query, id).Scan(&user.ID, &user.TenantID, &user.Email, &user.PasswordHash, &user.FullName, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = $1`
	err := r.db.QueryRow(ctx, query, models.NormalizeEmail(email)).Scan(&user.ID, &user.TenantID, &user.Email, &user.PasswordHash, &user.FullName, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

func (r *userRepo) ListByTenant(ctx context.Context, scope models.TenantScope, limit, offset int) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE tenant_id = $1 ORDER BY created_at LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, scope.TenantID(), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		if err := rows.Scan(&user.ID, &user.TenantID, &user.Email, &user.PasswordHash, &user.FullName, &user.Role, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *userRepo) SetResetToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	query := `UPDATE users SET reset_token_hash = $1, reset_token_expires_at = $2, updated_at = NOW() WHERE id = $3`
	tag, err := r.db.Exec(ctx, query, tokenHash, expiresAt, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *userRepo) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, newPasswordHash string) (*models.User, error) {
	query := `
		UPDATE users
		SET password_hash = $1, reset_token_hash = NULL, reset_token_expires_at = NULL, updated_at = NOW()
		WHERE reset_token_hash = $2 AND reset_token_expires_at > $3
		RETURNING id, tenant_id, email, role
	`
	user := &models.User{}
	err := r.db.QueryRow(ctx, query, newPasswordHash, tokenHash, now).Scan(&user.ID, &user.TenantID, &user.Email, &user.Role)
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

func (r *userRepo) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE users SET reset_token_hash = NULL, reset_token_expires_at = NULL, updated_at = NOW()
		WHERE reset_token_expires_at IS NOT NULL AND reset_token_expires_at <= $1
	`
	tag, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
