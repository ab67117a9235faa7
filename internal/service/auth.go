package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/zest/productapi/internal/auth"
	"github.com/zest/productapi/internal/domain/user"
	"github.com/zest/productapi/internal/security"
)

type UserStore interface {
	Create(ctx context.Context, nu user.NewUser) (user.User, error)
	GetByUsername(ctx context.Context, username string) (user.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Delete(ctx context.Context, id int64) error
}

type TokenIssuer interface {
	IssuePair(ctx context.Context, p auth.Principal) (auth.TokenPair, error)
	Rotate(ctx context.Context, refreshToken string) (auth.TokenPair, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Check(hash, plain string) error
}

type AuthService struct {
	users  UserStore
	tokens TokenIssuer
	hasher PasswordHasher
}

func NewAuthService(users UserStore, tokens TokenIssuer, hasher PasswordHasher) *AuthService {
	return &AuthService{users: users, tokens: tokens, hasher: hasher}
}

// Register creates a USER account and opens its first session. The existence
// checks give early, specific errors; the store's uniqueness constraint is
// what actually closes the race between check and insert. If the session
// cannot be opened the account is removed again so the username stays free.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (auth.TokenPair, error) {
	taken, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return auth.TokenPair{}, fmt.Errorf("check username: %w", err)
	}
	if taken {
		return auth.TokenPair{}, user.ErrUsernameTaken
	}

	taken, err = s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return auth.TokenPair{}, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return auth.TokenPair{}, user.ErrEmailTaken
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return auth.TokenPair{}, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.users.Create(ctx, user.NewUser{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Roles:        []string{user.RoleUser},
	})
	if err != nil {
		if errors.Is(err, user.ErrUsernameTaken) || errors.Is(err, user.ErrEmailTaken) {
			return auth.TokenPair{}, err
		}
		return auth.TokenPair{}, fmt.Errorf("create user: %w", err)
	}

	pair, err := s.tokens.IssuePair(ctx, auth.PrincipalFromUser(u))
	if err != nil {
		if derr := s.users.Delete(context.WithoutCancel(ctx), u.ID); derr != nil {
			return auth.TokenPair{}, fmt.Errorf("issue tokens: %w", errors.Join(err, fmt.Errorf("remove user %d: %w", u.ID, derr)))
		}
		return auth.TokenPair{}, fmt.Errorf("issue tokens: %w", err)
	}

	return pair, nil
}

// Login verifies credentials before touching any session state, so a failed
// attempt leaves the stored refresh token as it was.
func (s *AuthService) Login(ctx context.Context, username, password string) (auth.TokenPair, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return auth.TokenPair{}, user.ErrInvalidCredentials
		}
		return auth.TokenPair{}, fmt.Errorf("load user: %w", err)
	}

	if err := s.hasher.Check(u.PasswordHash, password); err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			return auth.TokenPair{}, user.ErrInvalidCredentials
		}
		return auth.TokenPair{}, fmt.Errorf("check password: %w", err)
	}

	return s.tokens.IssuePair(ctx, auth.PrincipalFromUser(u))
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	return s.tokens.Rotate(ctx, refreshToken)
}
