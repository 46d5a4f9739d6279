package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusconnect/campus-connect-api/internal/academic"
	"github.com/campusconnect/campus-connect-api/internal/models"
	appErrors "github.com/campusconnect/campus-connect-api/pkg/errors"
)

const directoryCachePrefix = "directory:"

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
}

type directoryCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// UpdateProfileRequest carries the mutable profile fields. Roll number,
// admission year and role are never client-writable.
type UpdateProfileRequest struct {
	Name       *string  `json:"name"`
	Department *string  `json:"department"`
	Bio        *string  `json:"bio"`
	Skills     []string `json:"skills"`
	Github     *string  `json:"github"`
	Linkedin   *string  `json:"linkedin"`
}

// ChangePasswordRequest carries a password change.
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

// UserService provides profile and directory use cases. Directory listings
// are cached in Redis and invalidated on profile writes; every projection
// attaches a live academic year.
type UserService struct {
	repo      userRepository
	cache     directoryCache
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cacheTTL  time.Duration
	now       func() time.Time
}

// NewUserService constructs a UserService instance.
func NewUserService(repo userRepository, cache directoryCache, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cacheTTL time.Duration) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &UserService{
		repo:      repo,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cacheTTL:  cacheTTL,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the public profile for a user.
func (s *UserService) Get(ctx context.Context, userID string) (*models.Profile, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	profile := ProfileOf(user, s.now())
	return &profile, nil
}

// UpdateProfile applies the mutable fields and invalidates directory caches.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (*models.Profile, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if req.Name != nil {
		if *req.Name == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "name cannot be empty")
		}
		user.Name = *req.Name
	}
	if req.Department != nil {
		user.Department = *req.Department
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
	}
	if req.Skills != nil {
		user.Skills = req.Skills
	}
	if req.Github != nil {
		user.Github = *req.Github
	}
	if req.Linkedin != nil {
		user.Linkedin = *req.Linkedin
	}
	user.UpdatedAt = s.now()

	if err := s.repo.UpdateProfile(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}

	s.invalidateDirectory(ctx)

	profile := ProfileOf(user, s.now())
	return &profile, nil
}

// SetProfilePicture stores the uploaded picture path on the profile.
func (s *UserService) SetProfilePicture(ctx context.Context, userID, path string) (*models.Profile, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	user.ProfilePic = path
	user.UpdatedAt = s.now()
	if err := s.repo.UpdateProfile(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile picture")
	}

	s.invalidateDirectory(ctx)

	profile := ProfileOf(user, s.now())
	return &profile, nil
}

// ChangePassword verifies the old password before storing a new hash.
func (s *UserService) ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "old and new password are required; new password must be at least 6 characters")
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "old password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	if err := s.repo.UpdatePassword(ctx, userID, string(hash), s.now()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}
	return nil
}

// List returns the directory with pagination, served from cache when fresh.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.Profile, *models.Pagination, error) {
	type cached struct {
		Profiles   []models.Profile  `json:"profiles"`
		Pagination models.Pagination `json:"pagination"`
	}

	key := s.directoryKey(filter)
	if s.cache != nil {
		start := time.Now()
		var hit cached
		err := s.cache.Get(ctx, key, &hit)
		s.metrics.RecordCacheOperation(err == nil, time.Since(start))
		if err == nil {
			// Academic year is time-dependent; recompute on the way out so a
			// cached entry never serves a stale year across the July boundary.
			now := s.now()
			for i := range hit.Profiles {
				hit.Profiles[i].AcademicYear = academic.Year(hit.Profiles[i].AdmissionYear, now)
			}
			return hit.Profiles, &hit.Pagination, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("directory cache read failed", zap.Error(err))
		}
	}

	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}

	now := s.now()
	profiles := make([]models.Profile, 0, len(users))
	for i := range users {
		profiles = append(profiles, ProfileOf(&users[i], now))
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}

	if s.cache != nil {
		start := time.Now()
		if err := s.cache.Set(ctx, key, cached{Profiles: profiles, Pagination: *pagination}, s.cacheTTL); err != nil {
			s.logger.Warn("directory cache write failed", zap.Error(err))
		}
		s.metrics.ObserveCacheWrite(time.Since(start))
	}

	return profiles, pagination, nil
}

// Seniors returns the senior + alumni directory used for mentor discovery.
func (s *UserService) Seniors(ctx context.Context, department, search string) ([]models.Profile, error) {
	profiles, _, err := s.List(ctx, models.UserFilter{
		Roles:      []models.UserRole{models.RoleSenior, models.RoleAlumni},
		Department: department,
		Search:     search,
		PageSize:   100,
	})
	return profiles, err
}

func (s *UserService) directoryKey(filter models.UserFilter) string {
	return fmt.Sprintf("%sroles=%v:dept=%s:q=%s:page=%d:size=%d",
		directoryCachePrefix, filter.Roles, filter.Department, filter.Search, filter.Page, filter.PageSize)
}

func (s *UserService) invalidateDirectory(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, directoryCachePrefix+"*"); err != nil {
		s.logger.Warn("directory cache invalidation failed", zap.Error(err))
	}
}
