package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zest/productapi/internal/domain/user"
	"github.com/zest/productapi/internal/observability"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"

	usernameConstraint = "users_username_key"
	emailConstraint    = "users_email_key"
)

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func pgErrCode(err error) (code, constraint string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

func (r *UsersRepo) Create(ctx context.Context, nu user.NewUser) (user.User, error) {
	u := user.User{
		Username:     nu.Username,
		Email:        nu.Email,
		PasswordHash: nu.PasswordHash,
		Roles:        nu.Roles,
	}

	err := r.observe("users.create", func() error {
		return r.pool.QueryRow(ctx, `
			INSERT INTO users (username, email, password_hash, roles)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at
		`, nu.Username, nu.Email, nu.PasswordHash, nu.Roles).Scan(&u.ID, &u.CreatedAt)
	})

	if err != nil {
		if code, constraint := pgErrCode(err); code == uniqueViolation {
			if constraint == emailConstraint {
				return user.User{}, user.ErrEmailTaken
			}
			return user.User{}, user.ErrUsernameTaken
		}
		return user.User{}, err
	}

	return u, nil
}

const selectUser = `SELECT id, username, email, password_hash, roles, refresh_token_hash, created_at FROM users`

func (r *UsersRepo) getOne(ctx context.Context, op, where string, arg string) (user.User, error) {
	var u user.User

	err := r.observe(op, func() error {
		return r.pool.QueryRow(ctx, selectUser+" WHERE "+where+" = $1", arg).Scan(
			&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Roles, &u.RefreshTokenHash, &u.CreatedAt,
		)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) GetByUsername(ctx context.Context, username string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_username", "username", username)
}

func (r *UsersRepo) GetByRefreshToken(ctx context.Context, tokenHash string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_refresh_token", "refresh_token_hash", tokenHash)
}

func (r *UsersRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "users.exists_by_username", `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username)
}

func (r *UsersRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "users.exists_by_email", `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email)
}

func (r *UsersRepo) exists(ctx context.Context, op, query string, arg string) (bool, error) {
	var ok bool
	err := r.observe(op, func() error {
		return r.pool.QueryRow(ctx, query, arg).Scan(&ok)
	})
	return ok, err
}

func (r *UsersRepo) SetRefreshToken(ctx context.Context, userID int64, tokenHash string) error {
	var tag pgconn.CommandTag
	var err error

	err = r.observe("users.set_refresh_token", func() error {
		tag, err = r.pool.Exec(ctx, `UPDATE users SET refresh_token_hash = $2 WHERE id = $1`, userID, tokenHash)
		return err
	})
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r *UsersRepo) Delete(ctx context.Context, id int64) error {
	var tag pgconn.CommandTag
	var err error

	err = r.observe("users.delete", func() error {
		tag, err = r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

// SwapRefreshToken replaces the stored hash only if it still equals oldHash.
// Of two concurrent rotations of the same token exactly one updates a row.
func (r *UsersRepo) SwapRefreshToken(ctx context.Context, userID int64, oldHash, newHash string) error {
	var tag pgconn.CommandTag
	var err error

	err = r.observe("users.swap_refresh_token", func() error {
		tag, err = r.pool.Exec(ctx, `
			UPDATE users
			SET refresh_token_hash = $3
			WHERE id = $1 AND refresh_token_hash = $2
		`, userID, oldHash, newHash)
		return err
	})
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}
