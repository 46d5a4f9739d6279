package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusconnect/campus-connect-api/internal/academic"
	"github.com/campusconnect/campus-connect-api/internal/models"
	"github.com/campusconnect/campus-connect-api/internal/repository"
	appErrors "github.com/campusconnect/campus-connect-api/pkg/errors"
)

type authUserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateRole(ctx context.Context, id string, role models.UserRole, updatedAt time.Time) error
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	TokenSecret string
	TokenExpiry time.Duration
	Issuer      string
}

// AuthService provides registration, login and token validation. Roles are
// derived from the institutional email at registration and resynced from the
// admission year on every login.
type AuthService struct {
	repo      authUserRepository
	engine    *academic.Engine
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, engine *academic.Engine, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if engine == nil {
		engine = academic.New("", 0, 0)
	}
	return &AuthService{
		repo:      repo,
		engine:    engine,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Register creates an account from an institutional email. Roll number,
// admission year and role are all derived; the request cannot supply them.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "name, email and password are required; password must be at least 6 characters")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	rollNumber, admissionYear, ok := s.engine.ParseEmail(email)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidEmail, "")
	}

	now := s.now()
	year := academic.Year(admissionYear, now)
	if !s.engine.Eligible(year) {
		return nil, appErrors.Clone(appErrors.ErrNotEligible, fmt.Sprintf("academic year %d is outside the active student window", year))
	}

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an account with this email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing account")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		ID:            uuid.NewString(),
		Name:          req.Name,
		Email:         email,
		PasswordHash:  string(hash),
		Role:          academic.RoleForYear(year),
		RollNumber:    rollNumber,
		AdmissionYear: admissionYear,
		Department:    req.Department,
		Bio:           req.Bio,
		Skills:        req.Skills,
		Github:        req.Github,
		Linkedin:      req.Linkedin,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if user.Skills == nil {
		user.Skills = []string{}
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an account with this email already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create account")
	}

	return s.buildAuthResponse(user, year)
}

// Login authenticates a user with a uniform failure message so email
// enumeration is impossible. Before issuing the token it resyncs the stored
// role against the freshly computed academic year; this is how a student
// gains senior privileges the first login after crossing into year 3.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "email and password are required")
	}

	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}

	year := academic.Year(user.AdmissionYear, s.now())
	if derived := academic.RoleForYear(year); s.roleIsDerived(user.Role) && user.Role != derived {
		if err := s.repo.UpdateRole(ctx, user.ID, derived, s.now()); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resync role")
		}
		s.logger.Info("role resynced on login",
			zap.String("user_id", user.ID),
			zap.String("from", string(user.Role)),
			zap.String("to", string(derived)),
			zap.Int("academic_year", year))
		user.Role = derived
	}

	return s.buildAuthResponse(user, year)
}

// GetProfile returns the safe projection for a user with a live academic year.
func (s *AuthService) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
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

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.TokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}

// roleIsDerived reports whether the role participates in the academic-year
// resync. Alumni and admin are manual assignments and never overwritten.
func (s *AuthService) roleIsDerived(role models.UserRole) bool {
	return role == models.RoleJunior || role == models.RoleSenior
}

func (s *AuthService) buildAuthResponse(user *models.User, year int) (*models.AuthResponse, error) {
	token, err := s.generateAccessToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	profile := ProfileOf(user, s.now())
	profile.AcademicYear = year
	return &models.AuthResponse{Token: token, Profile: profile}, nil
}

func (s *AuthService) generateAccessToken(user *models.User) (string, error) {
	issuedAt := s.now()
	claims := &models.JWTClaims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.TokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.TokenSecret))
}

// ProfileOf projects a user into its outward shape with the academic year
// computed as of now.
func ProfileOf(user *models.User, now time.Time) models.Profile {
	return models.Profile{
		ID:            user.ID,
		Name:          user.Name,
		Email:         user.Email,
		Role:          user.Role,
		RollNumber:    user.RollNumber,
		AdmissionYear: user.AdmissionYear,
		AcademicYear:  academic.Year(user.AdmissionYear, now),
		Department:    user.Department,
		Bio:           user.Bio,
		Skills:        user.Skills,
		Github:        user.Github,
		Linkedin:      user.Linkedin,
		ProfilePic:    user.ProfilePic,
		IsVerified:    user.IsVerified,
		CreatedAt:     user.CreatedAt,
	}
}
