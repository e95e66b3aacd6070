package repository

import (
	"context"
	"errors"

	"bingoledger/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrCredentialChanged = errors.New("stored credential changed since it was read")
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreditCommission adds amount to commission_earned in a single UPDATE, so
// concurrent credits never lose each other's increments.
func (r *UserRepository) CreditCommission(ctx context.Context, tx *gorm.DB, userID int64, amount decimal.Decimal) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		UpdateColumn("commission_earned", gorm.Expr("commission_earned + ?", amount))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ReplaceCredential swaps the stored credential only if it still equals
// expected. Of two concurrent upgrades of the same legacy value, exactly one
// writes; the other gets ErrCredentialChanged.
func (r *UserRepository) ReplaceCredential(ctx context.Context, userID int64, expected, replacement string) error {
	result := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND password = ?", userID, expected).
		UpdateColumn("password", replacement)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCredentialChanged
	}
	return nil
}
