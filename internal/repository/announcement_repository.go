package repository

import (
	"errors"
	"time"

	"github.com/campuslink/campuslink-server/internal/domain"

	"gorm.io/gorm"
)

var ErrAnnouncementNotFound = errors.New("announcement not found")

type AnnouncementRepository interface {
	Create(a *domain.Announcement) error
	FindByID(id uint) (*domain.Announcement, error)
	Update(a *domain.Announcement) error
	Deactivate(id uint) error
	// ListVisible returns announcements live at the given instant, pinned
	// first, newest first. Audience targeting is evaluated by the caller
	// since target lists are stored serialized.
	ListVisible(now time.Time) ([]domain.Announcement, error)
	ListPaged(req PageRequest) (*PageResult[domain.Announcement], error)
}

type GormAnnouncementRepository struct{ db *gorm.DB }

func NewAnnouncementRepository(db *gorm.DB) AnnouncementRepository {
	return &GormAnnouncementRepository{db: db}
}

func (r *GormAnnouncementRepository) Create(a *domain.Announcement) error {
	return r.db.Create(a).Error
}

func (r *GormAnnouncementRepository) FindByID(id uint) (*domain.Announcement, error) {
	var a domain.Announcement
	err := r.db.Preload("Author").First(&a, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAnnouncementNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *GormAnnouncementRepository) Update(a *domain.Announcement) error {
	return r.db.Save(a).Error
}

func (r *GormAnnouncementRepository) Deactivate(id uint) error {
	res := r.db.Model(&domain.Announcement{}).Where("id = ?", id).
		Updates(map[string]any{"is_active": false, "pinned": false})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAnnouncementNotFound
	}
	return nil
}

func (r *GormAnnouncementRepository) ListVisible(now time.Time) ([]domain.Announcement, error) {
	var list []domain.Announcement
	err := r.db.Preload("Author").
		Where("is_active = ? AND publish_at <= ? AND (expires_at IS NULL OR expires_at > ?)", true, now, now).
		Order("pinned DESC, publish_at DESC").
		Find(&list).Error
	return list, err
}

func (r *GormAnnouncementRepository) ListPaged(req PageRequest) (*PageResult[domain.Announcement], error) {
	norm := normalizePageRequest(req)

	var total int64
	if err := r.db.Model(&domain.Announcement{}).Count(&total).Error; err != nil {
		return nil, err
	}

	var list []domain.Announcement
	err := r.db.Preload("Author").
		Order("id DESC").
		Offset(norm.Offset()).
		Limit(norm.PageSize).
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return &PageResult[domain.Announcement]{
		Items:      list,
		Page:       norm.Page,
		PageSize:   norm.PageSize,
		Total:      total,
		TotalPages: calcTotalPages(total, norm.PageSize),
	}, nil
}
