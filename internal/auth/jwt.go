package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// RoleAdmin is the only role that carries the catalog edit capability.
const RoleAdmin = "admin"

const issuer = "pricelist"

// Claims represents admin session claims
type Claims struct {
	Username       string `json:"username"`
	Role           string `json:"role"`
	CanEditCatalog bool   `json:"canEditCatalog"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the session may edit the catalog and the ledger.
func (c *Claims) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin && c.CanEditCatalog
}

// JWTService issues and validates admin session tokens
type JWTService struct {
	secretKey   []byte
	tokenExpiry time.Duration
	now         func() time.Time
}

// NewJWTService creates a new JWT service
func NewJWTService(secretKey string, expiry time.Duration) *JWTService {
	return &JWTService{
		secretKey:   []byte(secretKey),
		tokenExpiry: expiry,
		now:         time.Now,
	}
}

// GenerateAdminToken creates a session token for an authenticated admin
func (s *JWTService) GenerateAdminToken(username string) (string, time.Time, error) {
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.tokenExpiry)

	claims := Claims{
		Username:       username,
		Role:           RoleAdmin,
		CanEditCatalog: true,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			Issuer:    issuer,
			Subject:   username,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

// ValidateToken validates a session token and returns its claims
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secretKey, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// TokenExpiry returns the session lifetime
func (s *JWTService) TokenExpiry() time.Duration {
	return s.tokenExpiry
}
