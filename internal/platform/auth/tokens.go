package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "clinic-server"

type Claims struct {
	jwt.RegisteredClaims
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	ClinicID string `json:"clinic_id,omitempty"`
}

// Identity is what a successful credential check resolves to.
type Identity struct {
	UserID   string
	Email    string
	Name     string
	Role     Role
	ClinicID string
}

// Issuer signs and verifies HS256 session tokens.
type Issuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewIssuer(key []byte, ttl time.Duration) *Issuer {
	return &Issuer{key: key, ttl: ttl, now: time.Now}
}

// Issue starts a session for id and returns its signed token.
func (i *Issuer) Issue(id Identity) (string, *Session, error) {
	now := i.now()
	s := &Session{
		TokenID:   uuid.NewString(),
		UserID:    id.UserID,
		Email:     id.Email,
		Name:      id.Name,
		Role:      id.Role,
		ClinicID:  id.ClinicID,
		IssuedAt:  now.Truncate(time.Second),
		ExpiresAt: now.Add(i.ttl).Truncate(time.Second),
	}

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.TokenID,
			Subject:   s.UserID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(s.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
		Email:    s.Email,
		Name:     s.Name,
		Role:     string(s.Role),
		ClinicID: s.ClinicID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", nil, fmt.Errorf("sign session token: %w", err)
	}
	return signed, s, nil
}

// Parse verifies a token and rebuilds its session.
func (i *Issuer) Parse(tokenStr string) (*Session, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return i.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("parse session token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("parse session token: invalid")
	}

	role, ok := ParseRole(claims.Role)
	if !ok {
		return nil, fmt.Errorf("parse session token: unknown role %q", claims.Role)
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, fmt.Errorf("parse session token: missing jti or sub")
	}

	s := &Session{
		TokenID:  claims.ID,
		UserID:   claims.Subject,
		Email:    claims.Email,
		Name:     claims.Name,
		Role:     role,
		ClinicID: claims.ClinicID,
	}
	if claims.IssuedAt != nil {
		s.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}
