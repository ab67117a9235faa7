package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	issuer = "productapi"
	leeway = 5 * time.Second
)

var errWrongTokenType = errors.New("wrong token type")

// Claims carries the principal. sub is the username, uid the numeric id.
type Claims struct {
	UserID    string   `json:"uid"`
	Roles     []string `json:"roles"`
	TokenType string   `json:"typ"`
	jwt.RegisteredClaims
}

// Manager signs and verifies HS256 tokens with one shared secret.
type Manager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	parser     *jwt.Parser
}

func NewManager(secret string, accessTTL, refreshTTL time.Duration) *Manager {
	return &Manager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithLeeway(leeway),
		),
	}
}

func (m *Manager) AccessTTL() time.Duration {
	return m.accessTTL
}

func (m *Manager) GenerateAccessToken(p Principal) (string, error) {
	return m.sign(p, tokenTypeAccess, m.accessTTL)
}

// GenerateRefreshToken mints a refresh token. The random jti makes every
// token unique, so two logins in the same second never collide.
func (m *Manager) GenerateRefreshToken(p Principal) (string, error) {
	return m.sign(p, tokenTypeRefresh, m.refreshTTL)
}

func (m *Manager) sign(p Principal, typ string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()

	claims := Claims{
		UserID:    strconv.FormatInt(p.UserID, 10),
		Roles:     p.Roles,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   p.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *Manager) VerifyAccessToken(raw string) (*Claims, error) {
	return m.verify(raw, tokenTypeAccess)
}

func (m *Manager) VerifyRefreshToken(raw string) (*Claims, error) {
	return m.verify(raw, tokenTypeRefresh)
}

func (m *Manager) verify(raw, wantType string) (*Claims, error) {
	claims := &Claims{}
	if _, err := m.parser.ParseWithClaims(raw, claims, m.key); err != nil {
		return nil, err
	}

	if claims.TokenType != wantType {
		return nil, fmt.Errorf("%w: got %q", errWrongTokenType, claims.TokenType)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, errors.New("token is missing sub or jti")
	}

	return claims, nil
}

func (m *Manager) key(*jwt.Token) (interface{}, error) {
	return m.secret, nil
}

// HashRefreshToken returns the HMAC-SHA256 digest stored in place of the raw
// refresh token.
func (m *Manager) HashRefreshToken(raw string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}
