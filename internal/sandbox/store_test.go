package sandbox

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/gymbooking/internal/domain"
)

func fixedNow() time.Time { return time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC) }

func newTestStore(t *testing.T) (*Store, map[string]string) {
	t.Helper()
	codes := map[string]string{}
	s := NewStore(fixedNow, time.Minute, func(email, code string) { codes[email] = code })
	return s, codes
}

func TestRegisterVerifyLogin(t *testing.T) {
	s, codes := newTestStore(t)

	user, err := s.Register("New@Gym.local", "secret1")
	require.NoError(t, err)
	require.Equal(t, "new@gym.local", user.Email)

	_, err = s.Authenticate("new@gym.local", "secret1")
	require.ErrorIs(t, err, ErrNotVerified)

	require.NoError(t, s.IssueOtp("new@gym.local"))
	require.Len(t, codes["new@gym.local"], 6)

	_, err = s.VerifyOtp("new@gym.local", codes["new@gym.local"])
	require.NoError(t, err)

	got, err := s.Authenticate("new@gym.local", "secret1")
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)

	_, err = s.Authenticate("new@gym.local", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.Register("new@gym.local", "another")
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestOtpAttemptsAndReset(t *testing.T) {
	s, codes := newTestStore(t)
	require.NoError(t, Seed(s))

	require.ErrorIs(t, s.IssueOtp("ghost@gym.local"), ErrUserNotFound)
	require.NoError(t, s.IssueOtp(DemoEmail))
	code := codes[DemoEmail]

	require.ErrorIs(t, s.ResetPassword(DemoEmail, code, "newpass"), ErrOtpInvalid, "code must be verified first")

	for i := 0; i < maxOtpAttempts; i++ {
		_, err := s.VerifyOtp(DemoEmail, "bad")
		require.ErrorIs(t, err, ErrOtpInvalid)
	}
	_, err := s.VerifyOtp(DemoEmail, code)
	require.ErrorIs(t, err, ErrOtpLocked)

	require.NoError(t, s.IssueOtp(DemoEmail))
	code = codes[DemoEmail]
	_, err = s.VerifyOtp(DemoEmail, code)
	require.NoError(t, err)
	require.NoError(t, s.ResetPassword(DemoEmail, code, "newpass"))

	_, err = s.Authenticate(DemoEmail, "newpass")
	require.NoError(t, err)
	require.ErrorIs(t, s.ResetPassword(DemoEmail, code, "again1"), ErrOtpInvalid)
}

func TestOtpExpires(t *testing.T) {
	now := fixedNow()
	codes := map[string]string{}
	s := NewStore(func() time.Time { return now }, time.Minute, func(email, code string) { codes[email] = code })
	require.NoError(t, Seed(s))
	require.NoError(t, s.IssueOtp(DemoEmail))

	now = now.Add(2 * time.Minute)
	_, err := s.VerifyOtp(DemoEmail, codes[DemoEmail])
	require.ErrorIs(t, err, ErrOtpInvalid)
}

func TestListClassesPagesAndFilters(t *testing.T) {
	s, _ := newTestStore(t)
	s.AddClasses(SeedClasses(fixedNow(), 7)...)

	first := s.ListClasses(domain.FilterCriteria{}, 1, 10)
	require.Len(t, first.Content, 10)
	require.Equal(t, 35, first.TotalElements)

	last := s.ListClasses(domain.FilterCriteria{}, 4, 10)
	require.Len(t, last.Content, 5)
	require.Empty(t, s.ListClasses(domain.FilterCriteria{}, 5, 10).Content)
	require.Empty(t, s.ListClasses(domain.FilterCriteria{}, math.MaxInt, 50).Content)

	yoga := s.ListClasses(domain.FilterCriteria{Discipline: "yoga"}, 1, 20)
	require.Len(t, yoga.Content, 7)
	for _, c := range yoga.Content {
		require.Equal(t, "Yoga", c.Discipline)
	}

	day := s.ListClasses(domain.FilterCriteria{Date: "2025-03-04", Location: "Riverside"}, 1, 20)
	require.Len(t, day.Content, 2)
}

func TestSeedClassIDsAreStable(t *testing.T) {
	a := SeedClasses(fixedNow(), 1)
	b := SeedClasses(fixedNow(), 1)
	require.Equal(t, a[0].ID, b[0].ID)
	require.NotEqual(t, a[0].ID, a[1].ID)
	require.Equal(t, "08:00", a[0].EndTime)
}

func TestReserveEnforcesCapacity(t *testing.T) {
	s, _ := newTestStore(t)
	classes := SeedClasses(fixedNow(), 1)
	s.AddClasses(classes...)

	var hiit domain.GymClass
	for _, c := range classes {
		if c.Discipline == "HIIT" {
			hiit = c
		}
	}
	require.Equal(t, 2, hiit.MaxCapacity)

	r1, err := s.Reserve("u1", hiit.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ReservationConfirmed, r1.Status)

	_, err = s.Reserve("u1", hiit.ID)
	require.ErrorIs(t, err, ErrAlreadyReserved)

	_, err = s.Reserve("u2", hiit.ID)
	require.NoError(t, err)
	_, err = s.Reserve("u3", hiit.ID)
	require.ErrorIs(t, err, ErrClassFull)

	_, err = s.Cancel("u2", r1.ID)
	require.ErrorIs(t, err, ErrForbidden)
	cancelled, err := s.Cancel("u1", r1.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ReservationCancelled, cancelled.Status)
	_, err = s.Cancel("u1", r1.ID)
	require.ErrorIs(t, err, ErrNotCancellable)

	_, err = s.Reserve("u3", hiit.ID)
	require.NoError(t, err)

	_, err = s.Reserve("u1", "missing")
	require.ErrorIs(t, err, ErrClassNotFound)
}

func TestHistoryWindowAndCheckIn(t *testing.T) {
	s, _ := newTestStore(t)
	classes := SeedClasses(fixedNow(), 1)
	s.AddClasses(classes...)

	r, err := s.Reserve("u1", classes[0].ID)
	require.NoError(t, err)
	require.NoError(t, s.CheckIn(r.ID))

	day := fixedNow()
	history := s.History("u1", day, day)
	require.Len(t, history, 1)
	require.True(t, history[0].Attended())
	require.NotNil(t, history[0].Class)

	require.Empty(t, s.History("u1", day.AddDate(0, 0, 1), day.AddDate(0, 0, 2)))
	require.Empty(t, s.History("u2", day, day))
}
