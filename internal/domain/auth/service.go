package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"sitetrack/internal/core/apperror"
	"sitetrack/internal/core/id"
	"sitetrack/internal/core/tx"
	"sitetrack/internal/domain"
	"sitetrack/pkg/logger"
)

// OTPConfig configures the second login step.
type OTPConfig struct {
	Enabled     bool
	Length      int
	TTL         time.Duration
	MaxAttempts int
}

// ServiceConfig holds auth service configuration.
type ServiceConfig struct {
	MaxLoginAttempts  int
	LockDuration      time.Duration
	PasswordMinLength int
	RefreshTokenTTL   time.Duration
	BcryptCost        int
	OTP               OTPConfig
}

// DefaultServiceConfig returns default configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxLoginAttempts:  5,
		LockDuration:      15 * time.Minute,
		PasswordMinLength: 8,
		RefreshTokenTTL:   7 * 24 * time.Hour,
		BcryptCost:        bcrypt.DefaultCost,
		OTP: OTPConfig{
			Length:      6,
			TTL:         5 * time.Minute,
			MaxAttempts: 5,
		},
	}
}

// Service provides authentication logic.
type Service struct {
	users      UserRepository
	tokens     TokenRepository
	txManager  tx.Manager
	jwtService *JWTService
	config     ServiceConfig

	otpStore OTPStore
	codes    CodeGenerator
	sender   CodeSender

	now func() time.Time
}

// NewService creates a new auth service. OTP login stays disabled until
// SetOTP is called.
func NewService(
	users UserRepository,
	tokens TokenRepository,
	txManager tx.Manager,
	jwtService *JWTService,
	config ServiceConfig,
) *Service {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		users:      users,
		tokens:     tokens,
		txManager:  txManager,
		jwtService: jwtService,
		config:     config,
		now:        time.Now,
	}
}

// SetOTP wires the one-time-code components.
func (s *Service) SetOTP(store OTPStore, codes CodeGenerator, sender CodeSender) {
	s.otpStore = store
	s.codes = codes
	s.sender = sender
}

func (s *Service) otpEnabled() bool {
	return s.config.OTP.Enabled && s.otpStore != nil && s.codes != nil && s.sender != nil
}

// Register creates a user account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if req.Role == "" {
		req.Role = RoleMember
	}
	if len(req.Password) < s.config.PasswordMinLength {
		return nil, apperror.NewValidation(
			fmt.Sprintf("password must be at least %d characters", s.config.PasswordMinLength),
		).WithDetail("field", "password")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := NewUser(req.Email, string(passwordHash), req.FullName, req.Role)
	if err := user.Validate(ctx); err != nil {
		return nil, err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		exists, err := s.users.Exists(ctx, user.Email)
		if err != nil {
			return fmt.Errorf("check email exists: %w", err)
		}
		if exists {
			return apperror.NewConflict("email already registered").WithDetail("email", user.Email)
		}
		if err := s.users.Create(ctx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "user registered",
		"user_id", user.ID,
		"email", user.Email,
		"role", user.Role)

	return user, nil
}

// EnsureBootstrapAdmin creates the first admin when no admin exists yet.
// It reports whether a user was created.
func (s *Service) EnsureBootstrapAdmin(ctx context.Context, email, password, fullName string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}
	admins, err := s.users.CountByRole(ctx, RoleAdmin)
	if err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	if admins > 0 {
		return false, nil
	}
	_, err = s.Register(ctx, RegisterRequest{Email: email, Password: password, FullName: fullName, Role: RoleAdmin})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Login verifies credentials. With OTP enabled it returns a challenge and
// sends a code; otherwise it issues tokens directly.
func (s *Service) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	now := s.now()

	user, err := s.users.GetByEmail(ctx, NormalizeEmail(creds.Email))
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewUnauthorized("invalid credentials")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if err := user.CanLogin(now); err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		user.RecordFailedLogin(now, s.config.MaxLoginAttempts, s.config.LockDuration)
		if uerr := s.users.Update(ctx, user); uerr != nil {
			logger.Warn(ctx, "failed to record login failure", "user_id", user.ID, "error", uerr)
		}
		logger.Warn(ctx, "login failed", "user_id", user.ID, "locked", user.IsLocked(now))
		return nil, apperror.NewUnauthorized("invalid credentials")
	}

	if s.otpEnabled() {
		ch, err := s.issueChallenge(ctx, user)
		if err != nil {
			return nil, err
		}
		return &LoginResult{User: user, Challenge: ch}, nil
	}

	tokens, err := s.completeLogin(ctx, user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Tokens: tokens}, nil
}

func (s *Service) issueChallenge(ctx context.Context, user *User) (*Challenge, error) {
	code, err := s.codes.Generate(s.config.OTP.Length)
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}

	ch := &OTPChallenge{
		ID:        id.New().String(),
		UserID:    user.ID,
		CodeHash:  hashToken(code),
		ExpiresAt: s.now().Add(s.config.OTP.TTL),
	}
	if err := s.otpStore.Save(ctx, ch, s.config.OTP.TTL); err != nil {
		return nil, fmt.Errorf("save otp challenge: %w", err)
	}
	if err := s.sender.Send(ctx, user, code); err != nil {
		_ = s.otpStore.Delete(ctx, ch.ID)
		return nil, fmt.Errorf("send otp: %w", err)
	}

	logger.Info(ctx, "otp challenge issued", "user_id", user.ID, "challenge_id", ch.ID)

	return &Challenge{ID: ch.ID, ExpiresAt: ch.ExpiresAt, SentTo: maskEmail(user.Email)}, nil
}

// VerifyOTP completes a login started with a challenge.
func (s *Service) VerifyOTP(ctx context.Context, challengeID, code string) (*TokenPair, *User, error) {
	if !s.otpEnabled() {
		return nil, nil, apperror.NewValidation("otp login is disabled")
	}

	ch, err := s.otpStore.Get(ctx, challengeID)
	if err != nil {
		if errors.Is(err, ErrChallengeNotFound) {
			return nil, nil, apperror.NewUnauthorized("otp challenge expired or unknown")
		}
		return nil, nil, fmt.Errorf("load otp challenge: %w", err)
	}

	if !ch.Matches(strings.TrimSpace(code)) {
		attempts, err := s.otpStore.IncrementAttempts(ctx, challengeID)
		if err != nil && !errors.Is(err, ErrChallengeNotFound) {
			return nil, nil, fmt.Errorf("record otp attempt: %w", err)
		}
		if attempts >= s.config.OTP.MaxAttempts {
			_ = s.otpStore.Delete(ctx, challengeID)
		}
		return nil, nil, apperror.NewUnauthorized("invalid code").
			WithDetail("attemptsLeft", max(s.config.OTP.MaxAttempts-attempts, 0))
	}

	if err := s.otpStore.Delete(ctx, challengeID); err != nil {
		return nil, nil, fmt.Errorf("consume otp challenge: %w", err)
	}

	user, err := s.users.GetByID(ctx, ch.UserID)
	if err != nil {
		return nil, nil, apperror.NewUnauthorized("user not found")
	}
	if err := user.CanLogin(s.now()); err != nil {
		return nil, nil, err
	}

	tokens, err := s.completeLogin(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return tokens, user, nil
}

func (s *Service) completeLogin(ctx context.Context, user *User) (*TokenPair, error) {
	tokens, err := s.generateTokenPair(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("generate tokens: %w", err)
	}

	user.RecordSuccessfulLogin(s.now().UTC())
	if err := s.users.Update(ctx, user); err != nil {
		logger.Warn(ctx, "failed to record login", "user_id", user.ID, "error", err)
	}

	logger.Info(ctx, "user logged in",
		"user_id", user.ID,
		"email", user.Email)

	return tokens, nil
}

// Refresh exchanges a refresh token for a new pair. The old token is revoked.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	token, err := s.tokens.GetRefreshToken(ctx, hashToken(refreshToken))
	if err != nil {
		return nil, apperror.NewUnauthorized("invalid refresh token")
	}
	if !token.IsValid(s.now()) {
		return nil, apperror.NewUnauthorized("refresh token expired or revoked")
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		return nil, apperror.NewUnauthorized("user not found")
	}
	if err := user.CanLogin(s.now()); err != nil {
		return nil, err
	}

	var pair *TokenPair
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.tokens.RevokeRefreshToken(ctx, token.ID, "refreshed"); err != nil {
			return fmt.Errorf("revoke refresh token: %w", err)
		}
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, user)
		return genErr
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Logout revokes all user's refresh tokens.
func (s *Service) Logout(ctx context.Context, userID id.ID) error {
	if err := s.tokens.RevokeAllUserTokens(ctx, userID, "logout"); err != nil {
		return fmt.Errorf("revoke tokens: %w", err)
	}
	logger.Info(ctx, "user logged out", "user_id", userID)
	return nil
}

// Me returns the current user.
func (s *Service) Me(ctx context.Context, userID id.ID) (*User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("user", userID.String())
		}
		return nil, err
	}
	return user, nil
}

// ListUsers lists users with filtering.
func (s *Service) ListUsers(ctx context.Context, filter UserFilter) (domain.ListResult[*User], error) {
	if err := filter.Normalize(); err != nil {
		return domain.ListResult[*User]{}, err
	}
	return s.users.List(ctx, filter)
}

// CleanupExpiredTokens deletes refresh tokens that expired or were revoked
// more than retention ago.
func (s *Service) CleanupExpiredTokens(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := s.tokens.CleanupExpiredTokens(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("cleanup tokens: %w", err)
	}
	return n, nil
}

// generateTokenPair creates access and refresh tokens.
func (s *Service) generateTokenPair(ctx context.Context, user *User) (*TokenPair, error) {
	accessToken, expiresAt, err := s.jwtService.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	refreshTokenRaw, err := generateRandomToken(32)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	now := s.now().UTC()
	refreshToken := &RefreshToken{
		ID:        id.New(),
		UserID:    user.ID,
		TokenHash: hashToken(refreshTokenRaw),
		ExpiresAt: now.Add(s.config.RefreshTokenTTL),
		CreatedAt: now,
	}
	if err := s.tokens.SaveRefreshToken(ctx, refreshToken); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshTokenRaw,
		ExpiresAt:    expiresAt,
		TokenType:    "Bearer",
	}, nil
}

// hashToken creates SHA256 hash of token.
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// generateRandomToken generates a random token string.
func generateRandomToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func maskEmail(email string) string {
	local, host, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return email
	}
	return local[:1] + "***@" + host
}
