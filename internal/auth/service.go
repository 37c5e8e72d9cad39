// internal/auth/service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/printhive/printhive-backend/internal/common/utils"
)

// Common errors
var (
	ErrUserNotFound          = errors.New("user not found")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrEmailAlreadyExists    = errors.New("email already exists")
	ErrUsernameAlreadyExists = errors.New("username already exists")
	ErrInvalidToken          = errors.New("invalid token")
)

// Service interface
type Service interface {
	Signup(ctx context.Context, req *SignupRequest) (*AuthResponse, error)
	Signin(ctx context.Context, req *SigninRequest) (*AuthResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error)
	ValidateToken(ctx context.Context, token string) (*utils.JWTClaims, error)
	Logout(ctx context.Context, token string) error
	GetUserByID(ctx context.Context, userID int64) (*User, error)
}

// ProfileCreator lets signup seed the user's marketplace profile in
// the same flow. Implemented by the profile package.
type ProfileCreator interface {
	CreateProfile(ctx context.Context, userID int64, fullName, accountType string) error
}

// Config holds service configuration
type Config struct {
	JWTSecret          string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	BCryptCost         int
}

type service struct {
	repo     Repository
	redis    *redis.Client
	profiles ProfileCreator
	config   *Config
}

// NewService creates a new auth service. redis is optional; without it
// logout only takes effect when the token expires.
func NewService(repo Repository, redisClient *redis.Client, profiles ProfileCreator, config *Config) Service {
	if config.BCryptCost == 0 {
		config.BCryptCost = bcrypt.DefaultCost
	}
	return &service{
		repo:     repo,
		redis:    redisClient,
		profiles: profiles,
		config:   config,
	}
}

// Signup creates a new user account plus its marketplace profile
func (s *service) Signup(ctx context.Context, req *SignupRequest) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.ToLower(strings.TrimSpace(req.Username))

	if taken, err := s.repo.IsEmailTaken(ctx, email); err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	} else if taken {
		return nil, ErrEmailAlreadyExists
	}
	if taken, err := s.repo.IsUsernameTaken(ctx, username); err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	} else if taken {
		return nil, ErrUsernameAlreadyExists
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.config.BCryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		Email:        email,
		Username:     username,
		PasswordHash: string(hashed),
		IsVerified:   true,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	if err := s.profiles.CreateProfile(ctx, user.ID, req.FullName, req.AccountType); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	return s.issueTokens(user)
}

// Signin authenticates by email or username
func (s *service) Signin(ctx context.Context, req *SigninRequest) (*AuthResponse, error) {
	user, err := s.repo.GetUserByEmailOrUsername(ctx, req.EmailOrUsername)
	if err != nil {
		if err == ErrUserNotFound {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.repo.TouchLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		// Not worth failing a signin over
		log.Printf("Failed to update last login for user %d: %v", user.ID, err)
	}

	return s.issueTokens(user)
}

// RefreshToken exchanges a valid refresh token for a new token pair
func (s *service) RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	claims, err := s.ValidateToken(ctx, refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Type != "refresh" {
		return nil, ErrInvalidToken
	}

	user, err := s.repo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}

	// Rotate: old refresh token stops working immediately
	if err := s.blacklist(ctx, refreshToken, claims.ExpiresAt); err != nil {
		return nil, err
	}

	return s.issueTokens(user)
}

// ValidateToken checks signature, expiry and the blacklist
func (s *service) ValidateToken(ctx context.Context, token string) (*utils.JWTClaims, error) {
	claims, err := utils.ValidateJWT(token, s.config.JWTSecret)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt < time.Now().Unix() {
		return nil, ErrInvalidToken
	}

	if s.redis != nil {
		blacklisted, err := s.redis.Exists(ctx, blacklistKey(token)).Result()
		if err == nil && blacklisted > 0 {
			return nil, ErrInvalidToken
		}
	}

	return claims, nil
}

// Logout blacklists the token until its natural expiry
func (s *service) Logout(ctx context.Context, token string) error {
	claims, err := utils.ValidateJWT(token, s.config.JWTSecret)
	if err != nil {
		return ErrInvalidToken
	}
	return s.blacklist(ctx, token, claims.ExpiresAt)
}

func (s *service) GetUserByID(ctx context.Context, userID int64) (*User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

func (s *service) issueTokens(user *User) (*AuthResponse, error) {
	now := time.Now()

	access, err := s.signToken(user, "access", now, s.config.AccessTokenExpiry)
	if err != nil {
		return nil, err
	}
	refresh, err := s.signToken(user, "refresh", now, s.config.RefreshTokenExpiry)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		User:         user,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.config.AccessTokenExpiry.Seconds()),
	}, nil
}

func (s *service) signToken(user *User, tokenType string, now time.Time, expiry time.Duration) (string, error) {
	claims := &utils.JWTClaims{
		UserID:    user.ID,
		Email:     user.Email,
		Username:  user.Username,
		Type:      tokenType,
		ExpiresAt: now.Add(expiry).Unix(),
		IssuedAt:  now.Unix(),
		NotBefore: now.Unix(),
		Issuer:    "printhive",
		Subject:   fmt.Sprintf("%d", user.ID),
	}
	token, err := utils.GenerateJWT(claims, s.config.JWTSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s token: %w", tokenType, err)
	}
	return token, nil
}

func (s *service) blacklist(ctx context.Context, token string, expiresAt int64) error {
	if s.redis == nil {
		return nil
	}
	ttl := time.Until(time.Unix(expiresAt, 0))
	if ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, blacklistKey(token), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}
	return nil
}

func blacklistKey(token string) string {
	return "auth:blacklist:" + token
}
