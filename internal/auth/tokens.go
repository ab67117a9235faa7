package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/zest/productapi/internal/domain/user"
)

var (
	// ErrInvalidToken is returned when a refresh token is malformed, expired
	// or no longer the stored one for its user.
	ErrInvalidToken = errors.New("invalid refresh token")

	ErrUnauthenticated = errors.New("invalid or expired access token")
)

const TokenTypeBearer = "Bearer"

// RefreshTokenStore keeps exactly one refresh token digest per user.
type RefreshTokenStore interface {
	// SetRefreshToken overwrites the stored digest unconditionally.
	SetRefreshToken(ctx context.Context, userID int64, tokenHash string) error
	GetByRefreshToken(ctx context.Context, tokenHash string) (user.User, error)
	// SwapRefreshToken replaces oldHash with newHash only if oldHash is still
	// the stored digest; otherwise it returns user.ErrNotFound.
	SwapRefreshToken(ctx context.Context, userID int64, oldHash, newHash string) error
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"` // access token lifetime in ms
}

type TokenService struct {
	jwt   *Manager
	store RefreshTokenStore
}

func NewTokenService(jwtManager *Manager, store RefreshTokenStore) *TokenService {
	return &TokenService{jwt: jwtManager, store: store}
}

// IssueAccessToken is stateless: no store lookup is needed to verify the result.
func (s *TokenService) IssueAccessToken(p Principal) (string, error) {
	return s.jwt.GenerateAccessToken(p)
}

// IssueRefreshToken mints a refresh token and makes it the only valid one for
// the user, invalidating whatever was stored before.
func (s *TokenService) IssueRefreshToken(ctx context.Context, p Principal) (string, error) {
	raw, err := s.jwt.GenerateRefreshToken(p)
	if err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}

	if err := s.store.SetRefreshToken(ctx, p.UserID, s.jwt.HashRefreshToken(raw)); err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}

	return raw, nil
}

func (s *TokenService) IssuePair(ctx context.Context, p Principal) (TokenPair, error) {
	access, err := s.IssueAccessToken(p)
	if err != nil {
		return TokenPair{}, fmt.Errorf("generate access token: %w", err)
	}

	refresh, err := s.IssueRefreshToken(ctx, p)
	if err != nil {
		return TokenPair{}, err
	}

	return s.pair(access, refresh), nil
}

// Rotate exchanges a live refresh token for a new pair. The presented token is
// invalidated by the swap; a second use of it fails with ErrInvalidToken.
func (s *TokenService) Rotate(ctx context.Context, raw string) (TokenPair, error) {
	claims, err := s.jwt.VerifyRefreshToken(raw)
	if err != nil {
		return TokenPair{}, ErrInvalidToken
	}

	oldHash := s.jwt.HashRefreshToken(raw)

	u, err := s.store.GetByRefreshToken(ctx, oldHash)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, fmt.Errorf("lookup refresh token: %w", err)
	}

	if u.Username != claims.Subject {
		return TokenPair{}, ErrInvalidToken
	}

	p := PrincipalFromUser(u)

	access, err := s.IssueAccessToken(p)
	if err != nil {
		return TokenPair{}, fmt.Errorf("generate access token: %w", err)
	}

	newRaw, err := s.jwt.GenerateRefreshToken(p)
	if err != nil {
		return TokenPair{}, fmt.Errorf("generate refresh token: %w", err)
	}

	err = s.store.SwapRefreshToken(ctx, u.ID, oldHash, s.jwt.HashRefreshToken(newRaw))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// lost a concurrent rotation of the same token
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	return s.pair(access, newRaw), nil
}

func (s *TokenService) VerifyAccessToken(raw string) (Principal, error) {
	claims, err := s.jwt.VerifyAccessToken(raw)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	return PrincipalFromClaims(claims), nil
}

func (s *TokenService) pair(access, refresh string) TokenPair {
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    s.jwt.AccessTTL().Milliseconds(),
	}
}
