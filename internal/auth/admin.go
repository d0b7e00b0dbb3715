// Package auth gates the admin dashboard behind the single configured
// credential and issues the session tokens it accepts.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/vitrinhq/vitrin/internal/auth/jwt"
	"github.com/vitrinhq/vitrin/internal/common/config"

	"github.com/ifuryst/lol"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned for a wrong username or password
	ErrInvalidCredentials = errors.New("invalid admin credentials")
	// ErrAdminDisabled is returned when no admin password is configured
	ErrAdminDisabled = errors.New("admin login is not configured")
)

// Session is an issued admin token
type Session struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Admin checks the static admin credential
type Admin struct {
	logger   *zap.Logger
	username string
	password string
	jwt      *jwt.Service
}

// NewAdmin creates the authenticator. Without a configured secret key a
// random one is used, so tokens do not survive a restart.
func NewAdmin(logger *zap.Logger, cfg *config.AdminConfig) (*Admin, error) {
	logger = logger.Named("auth")
	secret := cfg.JWT.SecretKey
	if secret == "" {
		logger.Warn("admin jwt secret not configured, using a random one")
		secret = lol.RandomString(48)
	}
	svc, err := jwt.NewService(jwt.Config{
		SecretKey: secret,
		Duration:  cfg.JWT.Duration,
		Version:   cfg.SessionVersion,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Password == "" {
		logger.Warn("admin password not configured, admin login is disabled")
	}
	return &Admin{
		logger:   logger,
		username: cfg.Username,
		password: cfg.Password,
		jwt:      svc,
	}, nil
}

// Login checks the credential and issues a token
func (a *Admin) Login(username, password string) (*Session, error) {
	if a.password == "" {
		return nil, ErrAdminDisabled
	}
	userOK := a.username == "" || subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	if !a.checkPassword(password) || !userOK {
		a.logger.Warn("admin login rejected", zap.String("username", username))
		return nil, ErrInvalidCredentials
	}

	token, err := a.jwt.GenerateToken(username)
	if err != nil {
		return nil, err
	}
	a.logger.Info("admin logged in", zap.String("username", username))
	return &Session{
		Token:     token,
		Username:  username,
		ExpiresAt: time.Now().Add(a.jwt.Duration()),
	}, nil
}

func (a *Admin) checkPassword(password string) bool {
	if isBcryptHash(a.password) {
		return bcrypt.CompareHashAndPassword([]byte(a.password), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
}

func isBcryptHash(s string) bool {
	return len(s) == 60 && (strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$"))
}

// Verify validates a token issued by Login
func (a *Admin) Verify(token string) (*jwt.Claims, error) {
	return a.jwt.ValidateToken(token)
}
