package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aditya93941/project-management/internal/models"
)

func TestJWTServiceIssueAndValidate(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "test-secret", Issuer: "worktrack"})
	require.NoError(t, err)

	token, err := svc.GenerateAccessToken("user-1", models.RoleTeamLead)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, models.RoleTeamLead, claims.Role)
	require.Equal(t, "worktrack", claims.Issuer)
}

func TestJWTServiceRejectsTamperedAndExpiredTokens(t *testing.T) {
	issuedAt := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	clock := issuedAt

	svc, err := NewJWTService(JWTConfig{
		Secret:         "test-secret",
		AccessTokenTTL: time.Hour,
		Clock:          func() time.Time { return clock },
	})
	require.NoError(t, err)

	token, err := svc.GenerateAccessToken("user-1", models.RoleDeveloper)
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(token)
	require.NoError(t, err)

	clock = issuedAt.Add(2 * time.Hour)
	_, err = svc.ValidateAccessToken(token)
	require.Error(t, err)

	other, err := NewJWTService(JWTConfig{Secret: "different-secret"})
	require.NoError(t, err)
	_, err = other.ValidateAccessToken(token)
	require.Error(t, err)

	_, err = svc.ValidateAccessToken("")
	require.Error(t, err)
}

func TestJWTServiceConfigValidation(t *testing.T) {
	_, err := NewJWTService(JWTConfig{})
	require.Error(t, err)

	svc, err := NewJWTService(JWTConfig{Secret: "s"})
	require.NoError(t, err)

	_, err = svc.GenerateAccessToken("", models.RoleDeveloper)
	require.Error(t, err)
}
