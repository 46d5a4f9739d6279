package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusconnect/campus-connect-api/internal/academic"
	"github.com/campusconnect/campus-connect-api/internal/models"
	appErrors "github.com/campusconnect/campus-connect-api/pkg/errors"
)

type mockUserRepo struct {
	usersByEmail map[string]*models.User
	usersByID    map[string]*models.User
	created      []*models.User
	createErr    error
	roleUpdates  map[string]models.UserRole
}

func newMockUserRepo(users ...*models.User) *mockUserRepo {
	m := &mockUserRepo{
		usersByEmail: make(map[string]*models.User),
		usersByID:    make(map[string]*models.User),
		roleUpdates:  make(map[string]models.UserRole),
	}
	for _, u := range users {
		m.usersByEmail[u.Email] = u
		m.usersByID[u.ID] = u
	}
	return m
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, user)
	m.usersByEmail[user.Email] = user
	m.usersByID[user.ID] = user
	return nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := m.usersByEmail[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.usersByID[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) UpdateRole(ctx context.Context, id string, role models.UserRole, updatedAt time.Time) error {
	m.roleUpdates[id] = role
	if u, ok := m.usersByID[id]; ok {
		u.Role = role
	}
	return nil
}

func newAuthService(repo *mockUserRepo, now time.Time) *AuthService {
	svc := NewAuthService(repo, academic.New("kiit.ac.in", 1, 4), validator.New(), zap.NewNop(), AuthConfig{
		TokenSecret: "secret",
		// Far in the future so tokens minted at fixed test instants stay
		// valid under the real-clock JWT validation.
		TokenExpiry: 100 * 365 * 24 * time.Hour,
		Issuer:      "campus-connect",
	})
	svc.now = func() time.Time { return now }
	return svc
}

func TestAuthServiceRegisterDerivesRoleAndYear(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAuthService(repo, time.Date(2025, time.August, 20, 10, 0, 0, 0, time.UTC))

	res, err := svc.Register(context.Background(), models.RegisterRequest{
		Name:     "Asha",
		Email:    "23052234@KIIT.AC.IN",
		Password: "secret123",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "23052234@kiit.ac.in", res.Email)
	assert.Equal(t, "23052234", res.RollNumber)
	assert.Equal(t, 2023, res.AdmissionYear)
	assert.Equal(t, 3, res.AcademicYear)
	assert.Equal(t, models.RoleSenior, res.Role)
	require.Len(t, repo.created, 1)
	assert.Equal(t, models.RoleSenior, repo.created[0].Role)
}

func TestAuthServiceRegisterJuniorBeforeJulyBoundary(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAuthService(repo, time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC))

	res, err := svc.Register(context.Background(), models.RegisterRequest{
		Name:     "Asha",
		Email:    "23052234@kiit.ac.in",
		Password: "secret123",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.AcademicYear)
	assert.Equal(t, models.RoleJunior, res.Role)
}

func TestAuthServiceRegisterRejectsForeignEmail(t *testing.T) {
	svc := newAuthService(newMockUserRepo(), time.Date(2025, time.August, 20, 0, 0, 0, 0, time.UTC))

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Name:     "Someone",
		Email:    "someone@gmail.com",
		Password: "secret123",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidEmail.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRegisterRejectsGraduatedCohort(t *testing.T) {
	svc := newAuthService(newMockUserRepo(), time.Date(2025, time.August, 20, 0, 0, 0, 0, time.UTC))

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Name:     "Old Timer",
		Email:    "19052234@kiit.ac.in",
		Password: "secret123",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotEligible.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	existing := &models.User{ID: "u1", Email: "23052234@kiit.ac.in"}
	svc := newAuthService(newMockUserRepo(existing), time.Date(2025, time.August, 20, 0, 0, 0, 0, time.UTC))

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Name:     "Asha",
		Email:    "23052234@kiit.ac.in",
		Password: "secret123",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginUniformFailure(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.DefaultCost)
	user := &models.User{ID: "u1", Email: "23052234@kiit.ac.in", PasswordHash: string(hash), Role: models.RoleJunior, AdmissionYear: 2023}
	svc := newAuthService(newMockUserRepo(user), time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))

	_, unknownErr := svc.Login(context.Background(), models.LoginRequest{Email: "nobody@kiit.ac.in", Password: "whatever"})
	_, wrongPassErr := svc.Login(context.Background(), models.LoginRequest{Email: "23052234@kiit.ac.in", Password: "wrong"})

	require.Error(t, unknownErr)
	require.Error(t, wrongPassErr)
	assert.Equal(t, appErrors.FromError(unknownErr).Message, appErrors.FromError(wrongPassErr).Message)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(unknownErr).Code)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(wrongPassErr).Code)
}

func TestAuthServiceLoginResyncsDerivedRole(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.DefaultCost)
	user := &models.User{ID: "u1", Email: "23052234@kiit.ac.in", PasswordHash: string(hash), Role: models.RoleJunior, AdmissionYear: 2023}
	repo := newMockUserRepo(user)

	// First login after the cohort crossed into year 3.
	svc := newAuthService(repo, time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC))
	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "23052234@kiit.ac.in", Password: "secret123"})
	require.NoError(t, err)

	assert.Equal(t, models.RoleSenior, res.Role)
	assert.Equal(t, 3, res.AcademicYear)
	assert.Equal(t, models.RoleSenior, repo.roleUpdates["u1"])

	claims, err := svc.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleSenior, claims.Role)
}

func TestAuthServiceLoginKeepsManualRoles(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.DefaultCost)
	user := &models.User{ID: "u1", Email: "19052234@kiit.ac.in", PasswordHash: string(hash), Role: models.RoleAlumni, AdmissionYear: 2019}
	repo := newMockUserRepo(user)

	svc := newAuthService(repo, time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC))
	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "19052234@kiit.ac.in", Password: "secret123"})
	require.NoError(t, err)

	assert.Equal(t, models.RoleAlumni, res.Role)
	assert.Empty(t, repo.roleUpdates)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	svc := newAuthService(newMockUserRepo(), time.Now().UTC())
	other := newAuthService(newMockUserRepo(), time.Now().UTC())
	other.config.TokenSecret = "another-secret"

	token, err := svc.generateAccessToken(&models.User{ID: "u1", Role: models.RoleJunior})
	require.NoError(t, err)

	_, err = other.ValidateToken(token)
	require.Error(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
}
