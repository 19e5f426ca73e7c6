package security

import (
	"errors"
	"strconv"
	"time"

	"feepay-backend/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token has expired")
	ErrWrongTokenType = errors.New("wrong token type for this endpoint")
)

type TokenType string

const (
	TokenTypeAccess TokenType = "access"
)

// UserClaims are the claims issued by the identity provider for an authenticated user
type UserClaims struct {
	UserID    string      `json:"user_id"`
	Email     string      `json:"email,omitempty"`
	Type      TokenType   `json:"type"`
	Role      domain.Role `json:"role"`
	StudentID string      `json:"student_id,omitempty"`
	SchoolID  string      `json:"school_id,omitempty"`
	jwt.RegisteredClaims
}

// Identity converts verified claims to the caller identity used by services
func (c *UserClaims) Identity() domain.Identity {
	return domain.Identity{
		UserID:    c.UserID,
		Role:      c.Role,
		StudentID: c.StudentID,
		SchoolID:  c.SchoolID,
	}
}

type TokenManager interface {
	// GenerateAccessToken is used by tooling and tests; sessions are issued by the identity provider.
	GenerateAccessToken(id domain.Identity, email string, ttl time.Duration) (string, error)
	ValidateToken(tokenString string) (*UserClaims, error)
}

type tokenManager struct {
	secret []byte
	issuer string
}

func NewTokenManager(secret, issuer string) TokenManager {
	return &tokenManager{
		secret: []byte(secret),
		issuer: issuer,
	}
}

func (m *tokenManager) GenerateAccessToken(id domain.Identity, email string, ttl time.Duration) (string, error) {
	claims := UserClaims{
		UserID:    id.UserID,
		Email:     email,
		Type:      TokenTypeAccess,
		Role:      id.Role,
		StudentID: id.StudentID,
		SchoolID:  id.SchoolID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{"api-access"},
			ID:        generateJTI(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *tokenManager) ValidateToken(tokenString string) (*UserClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, opts...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*UserClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != TokenTypeAccess {
		return nil, ErrWrongTokenType
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	// A student token without its student profile cannot be scoped.
	if claims.Role == domain.RoleStudent && claims.StudentID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Simple unique ID generator
func generateJTI() string {
	return strconv.FormatInt(time.Now().UnixNano(), 16)
}
