package dto

import (
	"time"

	"sitetrack/internal/domain/auth"
)

// --- Request DTOs ---

// RegisterRequest for user registration (admin only).
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"fullName" binding:"required"`
	Role     string `json:"role" binding:"omitempty,oneof=admin manager member"`
}

// ToAuthRequest converts to domain request.
func (r *RegisterRequest) ToAuthRequest() auth.RegisterRequest {
	return auth.RegisterRequest{
		Email:    r.Email,
		Password: r.Password,
		FullName: r.FullName,
		Role:     auth.Role(r.Role),
	}
}

// LoginRequest for user login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// ToCredentials converts to domain credentials.
func (r *LoginRequest) ToCredentials() auth.Credentials {
	return auth.Credentials{
		Email:    r.Email,
		Password: r.Password,
	}
}

// VerifyOTPRequest completes a login with a one-time code.
type VerifyOTPRequest struct {
	ChallengeID string `json:"challengeId" binding:"required"`
	Code        string `json:"code" binding:"required"`
}

// RefreshTokenRequest for token refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// UserListQuery filters GET /auth/users.
type UserListQuery struct {
	ListQuery
	Role     string `form:"role" binding:"omitempty,oneof=admin manager member"`
	IsActive *bool  `form:"isActive"`
}

// ToFilter converts to the domain filter.
func (q UserListQuery) ToFilter() auth.UserFilter {
	return auth.UserFilter{
		ListFilter: q.ListQuery.ToFilter(),
		Role:       auth.Role(q.Role),
		IsActive:   q.IsActive,
	}
}

// --- Response DTOs ---

// TokenResponse represents token pair response.
type TokenResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	TokenType    string    `json:"tokenType"`
}

// FromTokenPair creates response from domain token pair.
func FromTokenPair(tp *auth.TokenPair) *TokenResponse {
	if tp == nil {
		return nil
	}
	return &TokenResponse{
		AccessToken:  tp.AccessToken,
		RefreshToken: tp.RefreshToken,
		ExpiresAt:    tp.ExpiresAt,
		TokenType:    tp.TokenType,
	}
}

// UserResponse represents user in API response.
type UserResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	FullName    string     `json:"fullName"`
	Role        string     `json:"role"`
	IsActive    bool       `json:"isActive"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// FromUser creates response from domain user.
func FromUser(u *auth.User) *UserResponse {
	return &UserResponse{
		ID:          u.ID.String(),
		Email:       u.Email,
		FullName:    u.FullName,
		Role:        string(u.Role),
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

// ChallengeResponse is returned when a one-time code was sent.
type ChallengeResponse struct {
	ChallengeID string    `json:"challengeId"`
	ExpiresAt   time.Time `json:"expiresAt"`
	SentTo      string    `json:"sentTo"`
}

// LoginResponse includes tokens and user info, or a pending challenge.
type LoginResponse struct {
	Tokens    *TokenResponse     `json:"tokens,omitempty"`
	User      *UserResponse      `json:"user,omitempty"`
	Challenge *ChallengeResponse `json:"challenge,omitempty"`
}

// FromLoginResult maps a login outcome.
func FromLoginResult(r *auth.LoginResult) LoginResponse {
	if r.Challenge != nil {
		return LoginResponse{Challenge: &ChallengeResponse{
			ChallengeID: r.Challenge.ID,
			ExpiresAt:   r.Challenge.ExpiresAt,
			SentTo:      r.Challenge.SentTo,
		}}
	}
	return LoginResponse{Tokens: FromTokenPair(r.Tokens), User: FromUser(r.User)}
}
