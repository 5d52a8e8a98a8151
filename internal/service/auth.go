package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/phonelink/broker-server-go/internal/config"
	"github.com/phonelink/broker-server-go/internal/database"
	apperrors "github.com/phonelink/broker-server-go/internal/errors"
	"github.com/phonelink/broker-server-go/internal/model"
	"github.com/phonelink/broker-server-go/internal/repository"
	"github.com/phonelink/broker-server-go/internal/token"
	"github.com/phonelink/broker-server-go/internal/util"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 64
	minPasswordLen = 8
	// bcrypt rejects longer inputs.
	maxPasswordLen = 72
)

type AuthResult struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Account   *model.Account `json:"account"`
}

// AuthService handles account registration, credential checks and token
// issuance.
type AuthService struct {
	accountRepo repository.AccountRepository
	tokens      *token.Manager
	rateLimiter Limiter
}

func NewAuthService(
	accountRepo repository.AccountRepository,
	tokens *token.Manager,
	rateLimiter Limiter,
) *AuthService {
	return &AuthService{
		accountRepo: accountRepo,
		tokens:      tokens,
		rateLimiter: rateLimiter,
	}
}

func (s *AuthService) Register(ctx context.Context, username, password string) (*model.Account, error) {
	username = strings.TrimSpace(username)

	if len(username) < minUsernameLen || len(username) > maxUsernameLen {
		return nil, apperrors.ValidationError(
			fmt.Sprintf("username must be between %d and %d characters", minUsernameLen, maxUsernameLen))
	}
	if len(password) < minPasswordLen {
		return nil, apperrors.ValidationError(
			fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}
	if len(password) > maxPasswordLen {
		return nil, apperrors.ValidationError(
			fmt.Sprintf("password must be at most %d characters", maxPasswordLen))
	}

	existing, err := s.accountRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	if existing != nil {
		return nil, apperrors.AlreadyExists("Username")
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account, err := s.accountRepo.Create(ctx, model.CreateAccountParams{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
	})
	if err != nil {
		// Concurrent registration of the same username.
		if database.IsUniqueViolation(err) {
			return nil, apperrors.AlreadyExists("Username")
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	log.Info().
		Str("accountId", account.ID).
		Str("username", account.Username).
		Msg("account registered")

	return account, nil
}

// Login checks the rate limit before the credentials, so a flood of
// attempts against one username is cut off even when every attempt
// carries a wrong password.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)

	key := fmt.Sprintf("login:%s", username)
	allowed, resetAt := s.rateLimiter.CheckLimit(ctx, key, config.AuthAttemptLimit, config.AuthAttemptWindow)
	if !allowed {
		log.Warn().
			Str("username", username).
			Time("resetAt", resetAt).
			Msg("login rate limit exceeded")
		return nil, apperrors.RateLimitedUntil(resetAt)
	}

	account, err := s.accountRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}

	// The same answer for a missing account and a wrong password.
	if account == nil || !util.CheckPasswordHash(password, account.PasswordHash) {
		log.Warn().Str("username", username).Msg("failed login attempt")
		return nil, apperrors.Unauthorized("Invalid username or password")
	}

	tokenString, expiresAt, err := s.tokens.Issue(account.ID, account.Username)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	log.Info().
		Str("accountId", account.ID).
		Str("username", account.Username).
		Time("expiresAt", expiresAt).
		Msg("login successful")

	return &AuthResult{
		Token:     tokenString,
		ExpiresAt: expiresAt,
		Account:   account,
	}, nil
}

// Verify parses and validates a bearer token, returning its claims.
func (s *AuthService) Verify(tokenString string) (*token.Claims, error) {
	claims, err := s.tokens.Parse(tokenString)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return nil, apperrors.TokenExpired()
		}
		return nil, apperrors.InvalidToken("Invalid or malformed token")
	}
	return claims, nil
}
