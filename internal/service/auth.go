package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"library-circulation-backend/internal/config"
	"library-circulation-backend/internal/logger"
	"library-circulation-backend/internal/security"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

type authService struct {
	accounts map[string]config.AccountConfig
	tokens   security.TokenManager
}

// NewAuthService authenticates against the configured accounts. Staff
// accounts also carry the patron role so they may act on patron routes.
func NewAuthService(accounts []config.AccountConfig, tokens security.TokenManager) AuthService {
	byName := make(map[string]config.AccountConfig, len(accounts))
	for _, a := range accounts {
		byName[a.Username] = a
	}
	return &authService{accounts: byName, tokens: tokens}
}

func (s *authService) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	const method = "authService.Login"
	logger.EnterMethod(method, "username", username)

	account, ok := s.accounts[username]
	if !ok {
		logger.Warn("Login for unknown account", "username", username)
		return "", time.Time{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		logger.Warn("Login with wrong password", "username", username)
		return "", time.Time{}, ErrInvalidCredentials
	}

	roles := []string{security.RolePatron}
	if account.Role == security.RoleStaff {
		roles = append(roles, security.RoleStaff)
	}
	token, expiresAt, err := s.tokens.GenerateAccessToken(account.UserID, account.Username, roles)
	if err != nil {
		logger.ExitMethodWithError(method, err, "username", username)
		return "", time.Time{}, err
	}
	logger.ExitMethod(method, "username", username, "userID", account.UserID)
	return token, expiresAt, nil
}
