package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/roster-search/internal/auth"
	"github.com/sakif/roster-search/internal/model"
	"github.com/sakif/roster-search/internal/repository"
)

// AuthService issues and checks viewer tokens.
//
//	rosterctl token / tests → AuthService → UserRepository (DB)
//	                                      ↘ TokenService (JWT)
//
// Tokens are only ever issued for users that exist, so a token subject always
// names a real viewer at issue time.
type AuthService struct {
	users  repository.UserRepository
	tokens *auth.TokenService
	logger *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(users repository.UserRepository, tokens *auth.TokenService, logger *slog.Logger) *AuthService {
	return &AuthService{users: users, tokens: tokens, logger: logger}
}

// AuthResult bundles the user record and the issued JWT.
type AuthResult struct {
	User  *model.User
	Token string
}

// IssueToken looks up userID and signs a token for it.
// Returns apperror.ErrNotFound (wrapped) for an unknown user.
func (s *AuthService) IssueToken(ctx context.Context, userID int64) (*AuthResult, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %d: %w", userID, err)
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %d: %w", user.ID, err)
	}

	s.logger.Info("token issued", slog.Int64("userID", user.ID))
	return &AuthResult{User: user, Token: token}, nil
}

// ValidateToken returns the user id a token was issued for.
func (s *AuthService) ValidateToken(tokenStr string) (int64, error) {
	userID, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return 0, fmt.Errorf("service/auth: %w", err)
	}
	return userID, nil
}
