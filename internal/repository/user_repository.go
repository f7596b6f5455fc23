package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/campuslink/campuslink-server/internal/domain"

	"gorm.io/gorm"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	FindByID(id uint) (*domain.User, error)
	FindByEmail(email string) (*domain.User, error)
	FindByStudentID(studentID string) (*domain.User, error)
	Create(user *domain.User) error
	Update(user *domain.User) error
	UpdateDetails(id uint, fields map[string]any) error
	UpdateAvatarKey(id uint, key string) error
	TouchLastLogin(id uint, now time.Time) error
	SetActive(id uint, active bool) error
	ListPaged(req PageRequest) (*PageResult[domain.User], error)
	ListByDepartment(department string, req PageRequest) (*PageResult[domain.User], error)
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &GormUserRepository{db: db} }

func (r *GormUserRepository) FindByID(id uint) (*domain.User, error) {
	var u domain.User
	err := r.db.Preload("Profile").First(&u, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *GormUserRepository) FindByEmail(email string) (*domain.User, error) {
	var u domain.User
	normalized := strings.TrimSpace(strings.ToLower(email))
	err := r.db.Preload("Profile").Where("email = ?", normalized).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *GormUserRepository) FindByStudentID(studentID string) (*domain.User, error) {
	var u domain.User
	err := r.db.Preload("Profile").Where("student_id = ?", studentID).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *GormUserRepository) Create(user *domain.User) error { return r.db.Create(user).Error }
func (r *GormUserRepository) Update(user *domain.User) error { return r.db.Save(user).Error }

func (r *GormUserRepository) UpdateDetails(id uint, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.db.Model(&domain.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *GormUserRepository) UpdateAvatarKey(id uint, key string) error {
	return r.UpdateDetails(id, map[string]any{"avatar_key": key})
}

func (r *GormUserRepository) TouchLastLogin(id uint, now time.Time) error {
	return r.db.Model(&domain.User{}).Where("id = ?", id).
		Update("last_login", now).Error
}

func (r *GormUserRepository) SetActive(id uint, active bool) error {
	res := r.db.Model(&domain.User{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *GormUserRepository) ListPaged(req PageRequest) (*PageResult[domain.User], error) {
	norm := normalizePageRequest(req)

	var total int64
	if err := r.db.Model(&domain.User{}).Count(&total).Error; err != nil {
		return nil, err
	}

	var users []domain.User
	err := r.db.Preload("Profile").
		Order("id DESC").
		Offset(norm.Offset()).
		Limit(norm.PageSize).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return &PageResult[domain.User]{
		Items:      users,
		Page:       norm.Page,
		PageSize:   norm.PageSize,
		Total:      total,
		TotalPages: calcTotalPages(total, norm.PageSize),
	}, nil
}

func (r *GormUserRepository) ListByDepartment(department string, req PageRequest) (*PageResult[domain.User], error) {
	norm := normalizePageRequest(req)

	var total int64
	err := r.db.Model(&domain.User{}).
		Joins("JOIN student_profiles ON student_profiles.user_id = users.id").
		Where("student_profiles.department = ?", department).
		Count(&total).Error
	if err != nil {
		return nil, err
	}

	var users []domain.User
	err = r.db.Preload("Profile").
		Joins("JOIN student_profiles ON student_profiles.user_id = users.id").
		Where("student_profiles.department = ?", department).
		Order("users.id DESC").
		Offset(norm.Offset()).
		Limit(norm.PageSize).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return &PageResult[domain.User]{
		Items:      users,
		Page:       norm.Page,
		PageSize:   norm.PageSize,
		Total:      total,
		TotalPages: calcTotalPages(total, norm.PageSize),
	}, nil
}
