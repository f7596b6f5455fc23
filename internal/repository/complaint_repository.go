package repository

import (
	"errors"

	"github.com/campuslink/campuslink-server/internal/domain"

	"gorm.io/gorm"
)

var ErrComplaintNotFound = errors.New("complaint not found")

type ComplaintFilter struct {
	Status      domain.ComplaintStatus
	Priority    domain.ComplaintPriority
	Category    string
	HostelBlock string
	ReporterID  uint
}

type ComplaintRepository interface {
	Create(c *domain.Complaint) error
	FindByID(id uint) (*domain.Complaint, error)
	Update(c *domain.Complaint) error
	ListPaged(filter ComplaintFilter, req PageRequest) (*PageResult[domain.Complaint], error)
	ListOpen() ([]domain.Complaint, error)
}

type GormComplaintRepository struct{ db *gorm.DB }

func NewComplaintRepository(db *gorm.DB) ComplaintRepository {
	return &GormComplaintRepository{db: db}
}

func (r *GormComplaintRepository) Create(c *domain.Complaint) error {
	return r.db.Create(c).Error
}

func (r *GormComplaintRepository) FindByID(id uint) (*domain.Complaint, error) {
	var c domain.Complaint
	err := r.db.Preload("Reporter").Preload("StatusHistory").First(&c, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrComplaintNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *GormComplaintRepository) Update(c *domain.Complaint) error {
	return r.db.Session(&gorm.Session{FullSaveAssociations: true}).Save(c).Error
}

func (r *GormComplaintRepository) applyFilter(filter ComplaintFilter) *gorm.DB {
	q := r.db.Model(&domain.Complaint{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		q = q.Where("priority = ?", filter.Priority)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.HostelBlock != "" {
		q = q.Where("hostel_block = ?", filter.HostelBlock)
	}
	if filter.ReporterID != 0 {
		q = q.Where("reporter_id = ?", filter.ReporterID)
	}
	return q
}

func (r *GormComplaintRepository) ListPaged(filter ComplaintFilter, req PageRequest) (*PageResult[domain.Complaint], error) {
	norm := normalizePageRequest(req)

	var total int64
	if err := r.applyFilter(filter).Count(&total).Error; err != nil {
		return nil, err
	}

	var list []domain.Complaint
	err := r.applyFilter(filter).
		Preload("Reporter").Preload("StatusHistory").
		Order("id DESC").
		Offset(norm.Offset()).
		Limit(norm.PageSize).
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return &PageResult[domain.Complaint]{
		Items:      list,
		Page:       norm.Page,
		PageSize:   norm.PageSize,
		Total:      total,
		TotalPages: calcTotalPages(total, norm.PageSize),
	}, nil
}

// ListOpen returns complaints that are neither resolved nor closed, oldest
// first. Used by the escalation sweep.
func (r *GormComplaintRepository) ListOpen() ([]domain.Complaint, error) {
	var list []domain.Complaint
	err := r.db.
		Where("status NOT IN ?", []domain.ComplaintStatus{domain.ComplaintResolved, domain.ComplaintClosed}).
		Order("created_at ASC").
		Find(&list).Error
	return list, err
}
