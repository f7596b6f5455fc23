package service

import (
	"context"
	"io"
	"strings"

	"github.com/campuslink/campuslink-server/internal/domain"
	"github.com/campuslink/campuslink-server/internal/repository"
)

type UserService struct {
	userRepo repository.UserRepository
	storage  StorageService
}

func NewUserService(userRepo repository.UserRepository, storage StorageService) *UserService {
	return &UserService{userRepo: userRepo, storage: storage}
}

func (s *UserService) GetByID(id uint) (*domain.User, error) {
	return s.userRepo.FindByID(id)
}

func (s *UserService) ListPaged(req repository.PageRequest) (*repository.PageResult[domain.User], error) {
	return s.userRepo.ListPaged(req)
}

// ListByDepartment backs the department directory. Scope enforcement lives in
// the middleware; the service only filters.
func (s *UserService) ListByDepartment(department string, req repository.PageRequest) (*repository.PageResult[domain.User], error) {
	return s.userRepo.ListByDepartment(department, req)
}

type UpdateDetailsInput struct {
	FirstName   *string
	LastName    *string
	PhoneNumber *string
	Department  *string
	Year        *int
	HostelBlock *string
	RoomNumber  *string
}

// UpdateDetails applies the self-service profile fields. Email, role, student
// ID and activation state are deliberately not updatable here; only the
// fields a subject may edit about themselves pass through.
func (s *UserService) UpdateDetails(userID uint, in UpdateDetailsInput) (*domain.User, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}

	if in.FirstName != nil {
		user.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		user.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.PhoneNumber != nil {
		user.PhoneNumber = strings.TrimSpace(*in.PhoneNumber)
	}
	if user.Profile != nil {
		if in.Department != nil {
			user.Profile.Department = strings.TrimSpace(*in.Department)
		}
		if in.Year != nil {
			user.Profile.Year = *in.Year
		}
		if in.HostelBlock != nil {
			user.Profile.HostelBlock = strings.TrimSpace(*in.HostelBlock)
		}
		if in.RoomNumber != nil {
			user.Profile.RoomNumber = strings.TrimSpace(*in.RoomNumber)
		}
	}

	if err := user.ValidateForRole(); err != nil {
		return nil, err
	}
	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

// UploadAvatar stores the new image, points the user at it, then removes the
// previous object. Removal failures are tolerated; the orphan is harmless.
func (s *UserService) UploadAvatar(ctx context.Context, userID uint, file io.Reader, size int64, contentType string) (string, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return "", err
	}
	key, err := s.storage.UploadAvatar(ctx, userID, file, size, contentType)
	if err != nil {
		return "", err
	}
	if err := s.userRepo.UpdateAvatarKey(userID, key); err != nil {
		return "", err
	}
	if user.AvatarKey != "" {
		_ = s.storage.DeleteAvatar(ctx, userID, user.AvatarKey)
	}
	return s.storage.GenerateAvatarURL(ctx, key)
}

func (s *UserService) DeleteAvatar(ctx context.Context, userID uint) error {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return err
	}
	if user.AvatarKey == "" {
		return nil
	}
	if err := s.storage.DeleteAvatar(ctx, userID, user.AvatarKey); err != nil {
		return err
	}
	return s.userRepo.UpdateAvatarKey(userID, "")
}

func (s *UserService) AvatarURL(ctx context.Context, user *domain.User) (string, error) {
	if user.AvatarKey == "" {
		return "", nil
	}
	return s.storage.GenerateAvatarURL(ctx, user.AvatarKey)
}
