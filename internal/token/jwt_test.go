package token

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelteraccess/internal/access"
	"shelteraccess/internal/credential/models"
	dErrors "shelteraccess/pkg/domain-errors"
)

func newSession(expiresIn time.Duration) *models.Session {
	now := time.Now()
	return &models.Session{
		CredentialID: uuid.NewString(),
		UserID:       "staff-1",
		Level:        access.LevelMedical,
		IssuedAt:     now,
		ExpiresAt:    now.Add(expiresIn),
	}
}

func TestMintAndValidate(t *testing.T) {
	svc := NewService("test-signing-key", "shelteraccess")
	session := newSession(time.Hour)

	tokenString, err := svc.Mint(session)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, session.UserID, claims.UserID)
	assert.Equal(t, session.CredentialID, claims.CredentialID)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	svc := NewService("test-signing-key", "shelteraccess")
	session := newSession(-time.Minute)

	tokenString, err := svc.Mint(session)
	require.NoError(t, err)

	_, err = svc.ValidateToken(tokenString)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestValidateRejectsWrongKey(t *testing.T) {
	minter := NewService("key-one", "shelteraccess")
	validator := NewService("key-two", "shelteraccess")

	tokenString, err := minter.Mint(newSession(time.Hour))
	require.NoError(t, err)

	_, err = validator.ValidateToken(tokenString)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestValidateRejectsGarbage(t *testing.T) {
	svc := NewService("test-signing-key", "shelteraccess")

	_, err := svc.ValidateToken("not.a.token")
	require.Error(t, err)
}
