// Package token mints and validates the bearer tokens that accompany a
// credential grant. A token is a convenience for the UI; the session store
// remains authoritative, so a revoked credential fails even with a valid
// token in hand.
package token

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"shelteraccess/internal/credential/models"
	"shelteraccess/internal/platform/middleware"
	dErrors "shelteraccess/pkg/domain-errors"
)

// Claims carried by a session token.
type Claims struct {
	UserID       string `json:"user_id"`
	CredentialID string `json:"credential_id"`
	AccessLevel  string `json:"access_level"`
	jwt.RegisteredClaims
}

// Service signs and validates session tokens with HS256.
type Service struct {
	signingKey []byte
	issuer     string
}

func NewService(signingKey, issuer string) *Service {
	return &Service{signingKey: []byte(signingKey), issuer: issuer}
}

// Mint issues a token bound to the session's identity, level, and expiry.
func (s *Service) Mint(session *models.Session) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:       session.UserID,
		CredentialID: session.CredentialID,
		AccessLevel:  session.Level.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// ValidateToken checks the signature and expiry and returns middleware claims.
func (s *Service) ValidateToken(tokenString string) (*middleware.TokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return &middleware.TokenClaims{
		UserID:       claims.UserID,
		CredentialID: claims.CredentialID,
	}, nil
}
