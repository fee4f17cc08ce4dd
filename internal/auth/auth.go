// Package auth provides password login and JWT session tokens for the
// admin API.
package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/relayarr/relayarr/internal/database"
)

const tokenExpiry = 24 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSetupComplete      = errors.New("setup has already been completed")
	ErrPasswordRequired   = errors.New("password is required")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token has expired")
)

// UserStore is the subset of the database store the auth service needs.
type UserStore interface {
	UserByUsername(ctx context.Context, username string) (*database.AuthUser, error)
	CreateUser(ctx context.Context, username, passwordHash string) (int64, error)
	UserCount(ctx context.Context) (int, error)
}

// Claims are the JWT claims issued on login.
type Claims struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Service handles admin authentication.
type Service struct {
	store     UserStore
	jwtSecret []byte
	logger    zerolog.Logger
}

// NewService creates an auth service. An empty jwtSecret gets a random
// one, which invalidates existing sessions on restart.
func NewService(store UserStore, jwtSecret string, logger zerolog.Logger) (*Service, error) {
	secret := []byte(jwtSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		logger.Warn().Msg("no JWT secret configured, sessions will not survive restarts")
	}

	return &Service{
		store:     store,
		jwtSecret: secret,
		logger:    logger.With().Str("component", "auth").Logger(),
	}, nil
}

// NeedsSetup reports whether no admin account exists yet.
func (s *Service) NeedsSetup(ctx context.Context) (bool, error) {
	count, err := s.store.UserCount(ctx)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// Setup creates the first admin account. It fails once any account
// exists.
func (s *Service) Setup(ctx context.Context, username, password string) error {
	if password == "" {
		return ErrPasswordRequired
	}

	count, err := s.store.UserCount(ctx)
	if err != nil {
		return fmt.Errorf("failed to check existing users: %w", err)
	}
	if count > 0 {
		return ErrSetupComplete
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if _, err := s.store.CreateUser(ctx, username, string(hash)); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	s.logger.Info().Str("username", username).Msg("admin account created")
	return nil
}

// Login validates credentials and returns a signed session token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.store.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			// Burn a hash comparison so unknown usernames take as long
			// as wrong passwords.
			_ = bcrypt.CompareHashAndPassword(
				[]byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"),
				[]byte(password))
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn().Str("username", username).Msg("failed login attempt")
		return "", ErrInvalidCredentials
	}

	return s.generateToken(user.ID, user.Username)
}

func (s *Service) generateToken(userID int64, username string) (string, error) {
	claims := &Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "relayarr",
			Subject:   fmt.Sprintf("%d", userID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateToken parses and validates a session token.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
