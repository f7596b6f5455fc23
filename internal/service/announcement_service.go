package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/campuslink/campuslink-server/internal/domain"
	"github.com/campuslink/campuslink-server/internal/observability"
	"github.com/campuslink/campuslink-server/internal/repository"
)

// maxPinned bounds how many announcements can be pinned at once so the feed
// header stays scannable.
const maxPinned = 5

const feedCacheNamespace = "announcements.feed"

var ErrTooManyPinned = errors.New("pinned announcement limit reached")

type AnnouncementService struct {
	repo     repository.AnnouncementRepository
	cache    FeedCacheStore
	cacheTTL time.Duration
}

func NewAnnouncementService(repo repository.AnnouncementRepository) *AnnouncementService {
	return NewCachedAnnouncementService(repo, NewNoopFeedCacheStore(), 0)
}

// NewCachedAnnouncementService layers a short-lived feed cache over the
// repository. The TTL bounds how long a scheduled publish or expiry can lag
// behind wall clock, so keep it small.
func NewCachedAnnouncementService(repo repository.AnnouncementRepository, cache FeedCacheStore, ttl time.Duration) *AnnouncementService {
	if cache == nil {
		cache = NewNoopFeedCacheStore()
	}
	return &AnnouncementService{repo: repo, cache: cache, cacheTTL: ttl}
}

type AnnouncementInput struct {
	Title             string
	Content           string
	Category          domain.AnnouncementCategory
	Pinned            bool
	IsGlobal          bool
	TargetDepartments []string
	TargetYears       []int
	PublishAt         time.Time
	ExpiresAt         *time.Time
}

func (s *AnnouncementService) Create(authorID uint, in AnnouncementInput) (*domain.Announcement, error) {
	a := &domain.Announcement{
		Title:             in.Title,
		Content:           in.Content,
		Category:          in.Category,
		AuthorID:          authorID,
		Pinned:            in.Pinned,
		IsActive:          true,
		IsGlobal:          in.IsGlobal,
		TargetDepartments: in.TargetDepartments,
		TargetYears:       in.TargetYears,
		PublishAt:         in.PublishAt,
		ExpiresAt:         in.ExpiresAt,
	}
	if a.Category == "" {
		a.Category = domain.AnnouncementGeneral
	}
	now := time.Now().UTC()
	a.EnforcePublicationInvariants(now)
	if a.Pinned {
		if err := s.checkPinnedBudget(now, 0); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Create(a); err != nil {
		return nil, err
	}
	s.dropFeedCache()
	return a, nil
}

func (s *AnnouncementService) Update(id uint, in AnnouncementInput) (*domain.Announcement, error) {
	a, err := s.repo.FindByID(id)
	if err != nil {
		return nil, err
	}
	a.Title = in.Title
	a.Content = in.Content
	if in.Category != "" {
		a.Category = in.Category
	}
	a.Pinned = in.Pinned
	a.IsGlobal = in.IsGlobal
	a.TargetDepartments = in.TargetDepartments
	a.TargetYears = in.TargetYears
	if !in.PublishAt.IsZero() {
		a.PublishAt = in.PublishAt
	}
	a.ExpiresAt = in.ExpiresAt

	now := time.Now().UTC()
	a.EnforcePublicationInvariants(now)
	if a.Pinned {
		if err := s.checkPinnedBudget(now, a.ID); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Update(a); err != nil {
		return nil, err
	}
	s.dropFeedCache()
	return a, nil
}

func (s *AnnouncementService) Get(id uint) (*domain.Announcement, error) {
	return s.repo.FindByID(id)
}

func (s *AnnouncementService) Delete(id uint) error {
	if err := s.repo.Deactivate(id); err != nil {
		return err
	}
	s.dropFeedCache()
	return nil
}

// ListFor returns the announcements visible to the given subject, applying
// department and year targeting. A nil subject sees only global items. Feeds
// are cached per audience, not per user; everyone in the same department and
// year shares one entry.
func (s *AnnouncementService) ListFor(u *domain.User) ([]domain.Announcement, error) {
	ctx := context.Background()
	key := feedAudienceKey(u)
	audience := feedAudienceClass(u)
	if payload, ok, err := s.cache.Get(ctx, feedCacheNamespace, key); err == nil && ok {
		var cached []domain.Announcement
		if err := json.Unmarshal(payload, &cached); err == nil {
			observability.RecordFeedCacheLookup(ctx, audience, "hit")
			return cached, nil
		}
	}
	observability.RecordFeedCacheLookup(ctx, audience, "miss")

	visible, err := s.repo.ListVisible(time.Now().UTC())
	if err != nil {
		return nil, err
	}
	out := make([]domain.Announcement, 0, len(visible))
	for _, a := range visible {
		if a.TargetsUser(u) {
			out = append(out, a)
		}
	}

	if s.cacheTTL > 0 {
		if payload, err := json.Marshal(out); err == nil {
			_ = s.cache.Set(ctx, feedCacheNamespace, key, payload, s.cacheTTL)
		}
	}
	return out, nil
}

func (s *AnnouncementService) dropFeedCache() {
	_ = s.cache.Invalidate(context.Background(), feedCacheNamespace)
}

// feedAudienceClass collapses the cache key to a low-cardinality label for
// metrics. Departments and years stay out of metric attributes.
func feedAudienceClass(u *domain.User) string {
	switch {
	case u == nil:
		return "anon"
	case u.IsAdmin():
		return "admin"
	default:
		return "student"
	}
}

func feedAudienceKey(u *domain.User) string {
	switch {
	case u == nil:
		return "anon"
	case u.IsAdmin():
		return "admin"
	case u.Profile == nil:
		return "student"
	default:
		return fmt.Sprintf("student|%s|%d", u.Profile.Department, u.Profile.Year)
	}
}

func (s *AnnouncementService) ListPaged(req repository.PageRequest) (*repository.PageResult[domain.Announcement], error) {
	return s.repo.ListPaged(req)
}

func (s *AnnouncementService) checkPinnedBudget(now time.Time, excludeID uint) error {
	visible, err := s.repo.ListVisible(now)
	if err != nil {
		return err
	}
	pinned := 0
	for _, a := range visible {
		if a.Pinned && a.ID != excludeID {
			pinned++
		}
	}
	if pinned >= maxPinned {
		return ErrTooManyPinned
	}
	return nil
}
