package auth

import (
	"testing"
	"time"

	"github.com/vitrinhq/vitrin/internal/auth/jwt"
	"github.com/vitrinhq/vitrin/internal/common/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const secret = "0123456789abcdef0123456789abcdef"

func adminConfig(password, version string) *config.AdminConfig {
	return &config.AdminConfig{
		Username:       "admin",
		Password:       password,
		SessionVersion: version,
		JWT:            config.JWTConfig{SecretKey: secret, Duration: time.Hour},
	}
}

func TestAdmin_PlainPassword(t *testing.T) {
	a, err := NewAdmin(zap.NewNop(), adminConfig("lastik123", "v1"))
	require.NoError(t, err)

	s, err := a.Login("admin", "lastik123")
	require.NoError(t, err)
	assert.NotEmpty(t, s.Token)
	assert.Equal(t, "admin", s.Username)
	assert.WithinDuration(t, time.Now().Add(time.Hour), s.ExpiresAt, time.Minute)

	claims, err := a.Verify(s.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)

	_, err = a.Login("admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = a.Login("root", "lastik123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAdmin_BcryptPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("lastik123"), bcrypt.MinCost)
	require.NoError(t, err)
	a, err := NewAdmin(zap.NewNop(), adminConfig(string(hash), "v1"))
	require.NoError(t, err)

	_, err = a.Login("admin", "lastik123")
	assert.NoError(t, err)
	_, err = a.Login("admin", string(hash))
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAdmin_Disabled(t *testing.T) {
	a, err := NewAdmin(zap.NewNop(), adminConfig("", "v1"))
	require.NoError(t, err)
	_, err = a.Login("admin", "")
	assert.ErrorIs(t, err, ErrAdminDisabled)
}

func TestAdmin_SessionVersionLogsEveryoneOut(t *testing.T) {
	a, err := NewAdmin(zap.NewNop(), adminConfig("lastik123", "v_26subat2026"))
	require.NoError(t, err)
	s, err := a.Login("admin", "lastik123")
	require.NoError(t, err)

	bumped, err := NewAdmin(zap.NewNop(), adminConfig("lastik123", "v_27subat2026"))
	require.NoError(t, err)
	_, err = bumped.Verify(s.Token)
	assert.ErrorIs(t, err, jwt.ErrRevokedToken)
}

func TestAdmin_RandomSecret(t *testing.T) {
	cfg := adminConfig("lastik123", "v1")
	cfg.JWT.SecretKey = ""
	a, err := NewAdmin(zap.NewNop(), cfg)
	require.NoError(t, err)
	s, err := a.Login("admin", "lastik123")
	require.NoError(t, err)
	_, err = a.Verify(s.Token)
	assert.NoError(t, err)
}
