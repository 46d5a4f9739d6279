// Package academic derives a student's academic standing from their
// institutional email and the current date. Everything here is pure: callers
// thread time.Time explicitly so production reads use the wall clock and
// tests use fixed instants.
package academic

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/campusconnect/campus-connect-api/internal/models"
)

// cohortBoundaryMonth is when a cohort crosses into its next year of study.
// A student admitted in year Y starts year 1 the following July and advances
// every July after that.
const cohortBoundaryMonth = time.July

// Engine parses institutional emails and computes academic years. The zero
// value is not usable; construct with New.
type Engine struct {
	domain     string
	emailRe    *regexp.Regexp
	minYear    int
	maxYear    int
	centuryOff int
}

// New builds an Engine for the given institution domain and eligibility
// window. An empty domain defaults to kiit.ac.in; a zero window defaults to
// [1, 4].
func New(domain string, minYear, maxYear int) *Engine {
	if domain == "" {
		domain = "kiit.ac.in"
	}
	if minYear <= 0 {
		minYear = 1
	}
	if maxYear <= 0 {
		maxYear = 4
	}
	pattern := fmt.Sprintf(`^(\d{2})(\d+)@%s$`, regexp.QuoteMeta(strings.ToLower(domain)))
	return &Engine{
		domain:     domain,
		emailRe:    regexp.MustCompile(pattern),
		minYear:    minYear,
		maxYear:    maxYear,
		centuryOff: 2000,
	}
}

// Year computes the academic year for a student admitted in admissionYear as
// of now. Before the July boundary the cohort is still in the previous year.
func Year(admissionYear int, now time.Time) int {
	year := now.Year() - admissionYear
	if now.Month() >= cohortBoundaryMonth {
		year++
	}
	return year
}

// RoleForYear maps an academic year onto the derived role. Alumni and admin
// are manual assignments outside this function's range.
func RoleForYear(year int) models.UserRole {
	if year >= 3 {
		return models.RoleSenior
	}
	return models.RoleJunior
}

// ParseEmail validates an institutional email and derives the roll number and
// four-digit admission year. ok is false on any mismatch; the same check runs
// on every registration with the server as source of truth.
func (e *Engine) ParseEmail(email string) (rollNumber string, admissionYear int, ok bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	m := e.emailRe.FindStringSubmatch(email)
	if m == nil {
		return "", 0, false
	}
	offset, err := strconv.Atoi(m[1])
	if err != nil {
		return "", 0, false
	}
	local := email[:strings.IndexByte(email, '@')]
	return local, e.centuryOff + offset, true
}

// Eligible reports whether the academic year falls inside the active student
// window at registration time.
func (e *Engine) Eligible(year int) bool {
	return year >= e.minYear && year <= e.maxYear
}
