package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/campuslink/campuslink-server/internal/domain"

	"gorm.io/gorm"
)

var ErrCredentialNotFound = errors.New("credential not found")

type CredentialRepository interface {
	Create(credential *domain.Credential) error
	FindByUserID(userID uint) (*domain.Credential, error)
	FindByEmail(email string) (*domain.Credential, error)
	UpdatePassword(userID uint, newHash string) error
}

type GormCredentialRepository struct {
	db *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &GormCredentialRepository{db: db}
}

func (r *GormCredentialRepository) Create(credential *domain.Credential) error {
	return r.db.Create(credential).Error
}

func (r *GormCredentialRepository) FindByUserID(userID uint) (*domain.Credential, error) {
	var c domain.Credential
	if err := r.db.Where("user_id = ?", userID).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *GormCredentialRepository) FindByEmail(email string) (*domain.Credential, error) {
	var c domain.Credential
	normalized := strings.TrimSpace(strings.ToLower(email))
	err := r.db.
		Joins("JOIN users ON users.id = credentials.user_id").
		Where("users.email = ?", normalized).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *GormCredentialRepository) UpdatePassword(userID uint, newHash string) error {
	res := r.db.Model(&domain.Credential{}).Where("user_id = ?", userID).
		Updates(map[string]any{"password_hash": newHash, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCredentialNotFound
	}
	return nil
}
