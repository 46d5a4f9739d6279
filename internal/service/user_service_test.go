package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusconnect/campus-connect-api/internal/models"
	appErrors "github.com/campusconnect/campus-connect-api/pkg/errors"
)

type mockDirectoryRepo struct {
	users     map[string]*models.User
	listCalls int
}

func newMockDirectoryRepo(users ...*models.User) *mockDirectoryRepo {
	m := &mockDirectoryRepo{users: make(map[string]*models.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockDirectoryRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockDirectoryRepo) UpdateProfile(ctx context.Context, user *models.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *mockDirectoryRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if u, ok := m.users[id]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockDirectoryRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	m.listCalls++
	var out []models.User
	for _, u := range m.users {
		if len(filter.Roles) > 0 {
			match := false
			for _, r := range filter.Roles {
				if u.Role == r {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(u.Name), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, *u)
	}
	return out, len(out), nil
}

type memCache struct {
	data     map[string][]byte
	deletion int
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	return nil
}

func (c *memCache) DeleteByPattern(ctx context.Context, pattern string) error {
	c.deletion++
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range c.data {
		if strings.HasPrefix(key, prefix) {
			delete(c.data, key)
		}
	}
	return nil
}

func TestUserServiceListCachesDirectory(t *testing.T) {
	repo := newMockDirectoryRepo(
		&models.User{ID: "u1", Name: "Asha", Role: models.RoleSenior, AdmissionYear: 2022},
		&models.User{ID: "u2", Name: "Ravi", Role: models.RoleJunior, AdmissionYear: 2024},
	)
	cache := newMemCache()
	svc := NewUserService(repo, cache, nil, nil, zap.NewNop(), time.Minute)
	svc.now = func() time.Time { return time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC) }

	filter := models.UserFilter{Page: 1, PageSize: 20}
	first, pagination, err := svc.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Len(t, first, 2)
	assert.Equal(t, 2, pagination.TotalCount)
	assert.Equal(t, 1, repo.listCalls)

	second, _, err := svc.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Len(t, second, 2)
	assert.Equal(t, 1, repo.listCalls, "second read should come from cache")
}

func TestUserServiceCachedListingRecomputesAcademicYear(t *testing.T) {
	repo := newMockDirectoryRepo(&models.User{ID: "u1", Name: "Asha", Role: models.RoleJunior, AdmissionYear: 2023})
	cache := newMemCache()
	svc := NewUserService(repo, cache, nil, nil, zap.NewNop(), time.Hour)

	// Prime the cache in June, read it back after the July boundary.
	svc.now = func() time.Time { return time.Date(2025, time.June, 20, 0, 0, 0, 0, time.UTC) }
	before, _, err := svc.List(context.Background(), models.UserFilter{Page: 1, PageSize: 20})
	require.NoError(t, err)
	require.Len(t, before, 1)
	assert.Equal(t, 2, before[0].AcademicYear)

	svc.now = func() time.Time { return time.Date(2025, time.July, 2, 0, 0, 0, 0, time.UTC) }
	after, _, err := svc.List(context.Background(), models.UserFilter{Page: 1, PageSize: 20})
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, 1, repo.listCalls)
	assert.Equal(t, 3, after[0].AcademicYear)
}

func TestUserServiceUpdateProfileInvalidatesCache(t *testing.T) {
	repo := newMockDirectoryRepo(&models.User{ID: "u1", Name: "Asha", Role: models.RoleJunior, AdmissionYear: 2024})
	cache := newMemCache()
	svc := NewUserService(repo, cache, nil, nil, zap.NewNop(), time.Minute)

	_, _, err := svc.List(context.Background(), models.UserFilter{Page: 1, PageSize: 20})
	require.NoError(t, err)
	require.NotEmpty(t, cache.data)

	name := "Asha K"
	bio := "learning distributed systems"
	profile, err := svc.UpdateProfile(context.Background(), "u1", UpdateProfileRequest{Name: &name, Bio: &bio})
	require.NoError(t, err)

	assert.Equal(t, "Asha K", profile.Name)
	assert.Equal(t, "learning distributed systems", profile.Bio)
	assert.Empty(t, cache.data, "directory cache should be invalidated on profile writes")
	assert.Equal(t, 1, cache.deletion)
}

func TestUserServiceUpdateProfileRejectsEmptyName(t *testing.T) {
	repo := newMockDirectoryRepo(&models.User{ID: "u1", Name: "Asha"})
	svc := NewUserService(repo, nil, nil, nil, zap.NewNop(), time.Minute)

	empty := ""
	_, err := svc.UpdateProfile(context.Background(), "u1", UpdateProfileRequest{Name: &empty})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceChangePassword(t *testing.T) {
	oldHash, _ := bcrypt.GenerateFromPassword([]byte("oldpass"), bcrypt.DefaultCost)
	repo := newMockDirectoryRepo(&models.User{ID: "u1", PasswordHash: string(oldHash)})
	svc := NewUserService(repo, nil, nil, nil, zap.NewNop(), time.Minute)

	err := svc.ChangePassword(context.Background(), "u1", ChangePasswordRequest{OldPassword: "wrong", NewPassword: "newpass1"})
	require.Error(t, err)

	err = svc.ChangePassword(context.Background(), "u1", ChangePasswordRequest{OldPassword: "oldpass", NewPassword: "newpass1"})
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users["u1"].PasswordHash), []byte("newpass1")))
}

func TestUserServiceSeniors(t *testing.T) {
	repo := newMockDirectoryRepo(
		&models.User{ID: "u1", Name: "Asha", Role: models.RoleSenior, AdmissionYear: 2022},
		&models.User{ID: "u2", Name: "Ravi", Role: models.RoleJunior, AdmissionYear: 2024},
		&models.User{ID: "u3", Name: "Meera", Role: models.RoleAlumni, AdmissionYear: 2019},
	)
	svc := NewUserService(repo, nil, nil, nil, zap.NewNop(), time.Minute)

	profiles, err := svc.Seniors(context.Background(), "", "")
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	for _, p := range profiles {
		assert.NotEqual(t, models.RoleJunior, p.Role)
	}
}
