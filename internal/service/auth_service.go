package service

import (
	"context"
	"errors"
	"strings"

	"bingoledger/internal/config"
	"bingoledger/internal/credential"
	"bingoledger/internal/model"
	"bingoledger/internal/repository"
	appErr "bingoledger/pkg/errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AuthService struct {
	userRepo *repository.UserRepository
	cfg      *config.Config
	log      *zap.Logger
}

func NewAuthService(db *gorm.DB, cfg *config.Config, log *zap.Logger) *AuthService {
	return &AuthService{
		userRepo: repository.NewUserRepository(db),
		cfg:      cfg,
		log:      log.Named("auth"),
	}
}

// Login authenticates a host. A legacy plaintext credential that matches is
// replaced with a bcrypt hash before Login returns; if that write fails the
// login still succeeds and the upgrade is retried on the next login.
func (s *AuthService) Login(ctx context.Context, username, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, appErr.InvalidInput("username and password are required")
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, appErr.ErrInvalidCredentials
		}
		s.log.Error("load user", zap.String("username", username), zap.Error(err))
		return nil, appErr.Store(err)
	}

	stored := credential.Parse(user.Password)
	switch credential.Authenticate(stored, password) {
	case credential.Mismatch:
		s.log.Info("login rejected", zap.Int64("user_id", user.ID))
		return nil, appErr.ErrInvalidCredentials
	case credential.MatchedLegacy:
		s.upgradeLegacy(ctx, user, password)
	}

	return user, nil
}

func (s *AuthService) upgradeLegacy(ctx context.Context, user *model.User, password string) {
	upgraded, err := credential.Upgrade(password, s.cfg.Business.BcryptCost)
	if err != nil {
		s.log.Warn("hash legacy credential", zap.Int64("user_id", user.ID), zap.Error(err))
		return
	}

	err = s.userRepo.ReplaceCredential(ctx, user.ID, user.Password, upgraded.Encode())
	if err != nil {
		// ErrCredentialChanged means a concurrent login already upgraded it
		s.log.Warn("persist upgraded credential", zap.Int64("user_id", user.ID), zap.Error(err))
		return
	}

	user.Password = upgraded.Encode()
	s.log.Info("legacy credential upgraded", zap.Int64("user_id", user.ID))
}

// ChangePassword verifies the current password under whichever scheme is
// stored and always writes the new one as bcrypt.
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	if userID <= 0 {
		return appErr.InvalidInput("user_id must be positive")
	}
	if current == "" || next == "" {
		return appErr.InvalidInput("current and new password are required")
	}
	if len(next) < s.cfg.Business.MinPasswordLength {
		return appErr.InvalidInput("new password must be at least %d characters", s.cfg.Business.MinPasswordLength)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return appErr.ErrUserNotFound
		}
		s.log.Error("load user", zap.Int64("user_id", userID), zap.Error(err))
		return appErr.Store(err)
	}

	if !credential.Authenticate(credential.Parse(user.Password), current).Matched() {
		return appErr.ErrWrongPassword
	}

	replacement, err := credential.Upgrade(next, s.cfg.Business.BcryptCost)
	if err != nil {
		return appErr.InvalidInput("new password cannot be hashed: %v", err)
	}

	err = s.userRepo.ReplaceCredential(ctx, userID, user.Password, replacement.Encode())
	if err != nil {
		if errors.Is(err, repository.ErrCredentialChanged) {
			return appErr.ErrCredentialChanged
		}
		s.log.Error("store new credential", zap.Int64("user_id", userID), zap.Error(err))
		return appErr.Store(err)
	}

	s.log.Info("password changed", zap.Int64("user_id", userID))
	return nil
}
