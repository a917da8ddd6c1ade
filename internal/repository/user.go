package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/user/cineverse/internal/model"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// CreateWithProfile 创建账号并同时开通公开资料（同一事务）
func (r *AccountRepository) CreateWithProfile(ctx context.Context, email, username, password string) (*model.Account, *model.Profile, error) {
	// 密码哈希
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	account := &model.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
	}
	profile := &model.Profile{
		ID:        account.ID,
		Username:  username,
		UpdatedAt: now,
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(account).Error; err != nil {
			if IsUniqueViolation(err) {
				return model.ErrEmailTaken
			}
			return err
		}
		if err := tx.Create(profile).Error; err != nil {
			if IsUniqueViolation(err) {
				return model.ErrUsernameTaken
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return account, profile, nil
}

// FindByEmail 根据邮箱查找账号
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &account, nil
}

// FindByID 根据 ID 查找账号
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &account, nil
}

// CheckPassword 验证密码
func (r *AccountRepository) CheckPassword(account *model.Account, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password))
	return err == nil
}
