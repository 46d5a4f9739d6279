package academic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusconnect/campus-connect-api/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestYearBeforeJulyBoundary(t *testing.T) {
	assert.Equal(t, 2, Year(2023, date(2025, time.June, 15)))
	assert.Equal(t, 1, Year(2024, date(2025, time.June, 30)))
}

func TestYearOnAndAfterJulyBoundary(t *testing.T) {
	assert.Equal(t, 3, Year(2023, date(2025, time.July, 1)))
	assert.Equal(t, 3, Year(2023, date(2025, time.August, 1)))
	assert.Equal(t, 4, Year(2022, date(2025, time.December, 31)))
}

func TestRoleForYear(t *testing.T) {
	assert.Equal(t, models.RoleJunior, RoleForYear(1))
	assert.Equal(t, models.RoleJunior, RoleForYear(2))
	assert.Equal(t, models.RoleSenior, RoleForYear(3))
	assert.Equal(t, models.RoleSenior, RoleForYear(4))
}

func TestParseEmail(t *testing.T) {
	eng := New("kiit.ac.in", 1, 4)

	roll, admission, ok := eng.ParseEmail("23052234@kiit.ac.in")
	require.True(t, ok)
	assert.Equal(t, "23052234", roll)
	assert.Equal(t, 2023, admission)
}

func TestParseEmailCaseInsensitive(t *testing.T) {
	eng := New("kiit.ac.in", 1, 4)

	roll, admission, ok := eng.ParseEmail("  22051001@KIIT.AC.IN ")
	require.True(t, ok)
	assert.Equal(t, "22051001", roll)
	assert.Equal(t, 2022, admission)
}

func TestParseEmailRejectsForeignAddresses(t *testing.T) {
	eng := New("kiit.ac.in", 1, 4)

	cases := []string{
		"foo@gmail.com",
		"someone@kiit.ac.in",
		"2305@other.kiit.ac.in",
		"23052234@kiitXac.in",
		"@kiit.ac.in",
	}
	for _, email := range cases {
		_, _, ok := eng.ParseEmail(email)
		assert.False(t, ok, "expected %q to be rejected", email)
	}
}

func TestEligibleWindow(t *testing.T) {
	eng := New("kiit.ac.in", 1, 4)

	assert.False(t, eng.Eligible(0))
	assert.False(t, eng.Eligible(-1))
	assert.True(t, eng.Eligible(1))
	assert.True(t, eng.Eligible(4))
	assert.False(t, eng.Eligible(5))
}

func TestCustomDomain(t *testing.T) {
	eng := New("example.edu", 1, 4)

	_, _, ok := eng.ParseEmail("23052234@kiit.ac.in")
	assert.False(t, ok)

	roll, admission, ok := eng.ParseEmail("21010042@example.edu")
	require.True(t, ok)
	assert.Equal(t, "21010042", roll)
	assert.Equal(t, 2021, admission)
}
