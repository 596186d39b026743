// Package sandbox is an in-memory implementation of the booking API for local development and
// end-to-end tests.
package sandbox

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"example.com/gymbooking/internal/domain"
	"example.com/gymbooking/internal/observability"
)

const maxOtpAttempts = 5

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotVerified        = errors.New("verify your email before logging in")
	ErrUserNotFound       = errors.New("no account for this email")
	ErrOtpInvalid         = errors.New("invalid or expired code")
	ErrOtpLocked          = errors.New("too many attempts, request a new code")
	ErrClassNotFound      = errors.New("class not found")
	ErrClassFull          = errors.New("class is full")
	ErrAlreadyReserved    = errors.New("you already reserved this class")
	ErrReservationMissing = errors.New("reservation not found")
	ErrNotCancellable     = errors.New("only confirmed reservations can be cancelled")
	ErrForbidden          = errors.New("not allowed for this user")
)

type account struct {
	user     domain.User
	hash     []byte
	verified bool
}

type otpEntry struct {
	code      string
	expiresAt time.Time
	attempts  int
	verified  bool
}

// Page is one slice of the class listing.
type Page struct {
	Content       []domain.GymClass `json:"content"`
	Page          int               `json:"page"`
	Size          int               `json:"size"`
	TotalElements int               `json:"totalElements"`
}

// Store holds users, classes and reservations in memory.
type Store struct {
	mu           sync.Mutex
	now          func() time.Time
	otpTTL       time.Duration
	onOtp        func(email, code string)
	accounts     map[string]*account // by email
	byID         map[string]*account
	classes      []domain.GymClass
	reservations []domain.Reservation
	otps         map[string]*otpEntry
}

// NewStore constructs an empty store. onOtp receives every issued code; it may be nil.
func NewStore(now func() time.Time, otpTTL time.Duration, onOtp func(email, code string)) *Store {
	if now == nil {
		now = time.Now
	}
	if otpTTL <= 0 {
		otpTTL = 10 * time.Minute
	}
	return &Store{
		now:      now,
		otpTTL:   otpTTL,
		onOtp:    onOtp,
		accounts: make(map[string]*account),
		byID:     make(map[string]*account),
		otps:     make(map[string]*otpEntry),
	}
}

// AddClasses appends classes to the schedule.
func (s *Store) AddClasses(classes ...domain.GymClass) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classes = append(s.classes, classes...)
	sort.SliceStable(s.classes, func(i, j int) bool {
		a, b := s.classes[i], s.classes[j]
		if a.ClassDate != b.ClassDate {
			return a.ClassDate < b.ClassDate
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return a.ID < b.ID
	})
}

// Register creates an unverified account. Registering an unverified email again replaces its
// password.
func (s *Store) Register(email, password string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if acc, ok := s.accounts[email]; ok {
		if acc.verified {
			return domain.User{}, ErrEmailTaken
		}
		acc.hash = hash
		return acc.user, nil
	}
	acc := &account{
		user: domain.User{ID: uuid.NewString(), Email: email, Name: nameFromEmail(email), CreatedAt: s.now().UTC()},
		hash: hash,
	}
	s.accounts[email] = acc
	s.byID[acc.user.ID] = acc
	return acc.user, nil
}

// MarkVerified flags an account as verified without an OTP round trip. Used for seed users.
func (s *Store) MarkVerified(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc, ok := s.accounts[strings.ToLower(email)]; ok {
		acc.verified = true
	}
}

// Authenticate checks credentials of a verified account.
func (s *Store) Authenticate(email, password string) (domain.User, error) {
	s.mu.Lock()
	acc, ok := s.accounts[strings.ToLower(strings.TrimSpace(email))]
	s.mu.Unlock()
	if !ok {
		return domain.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	if !acc.verified {
		return domain.User{}, ErrNotVerified
	}
	return acc.user, nil
}

// IssueOtp creates a fresh code for email, replacing any earlier one.
func (s *Store) IssueOtp(email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	code, err := newOtpCode()
	if err != nil {
		return err
	}

	s.mu.Lock()
	if _, ok := s.accounts[email]; !ok {
		s.mu.Unlock()
		return ErrUserNotFound
	}
	s.otps[email] = &otpEntry{code: code, expiresAt: s.now().Add(s.otpTTL)}
	s.mu.Unlock()

	if s.onOtp != nil {
		s.onOtp(email, code)
	}
	return nil
}

// VerifyOtp checks code and marks the account verified. The code stays usable for a password
// reset until it expires.
func (s *Store) VerifyOtp(email, code string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.checkOtpLocked(email, code)
	if err != nil {
		observability.RecordSandboxOTP(otpResult(err))
		return domain.User{}, err
	}
	entry.verified = true
	acc := s.accounts[email]
	acc.verified = true
	observability.RecordSandboxOTP("ok")
	return acc.user, nil
}

// ResetPassword replaces the password using a verified code and consumes the code.
func (s *Store) ResetPassword(email, code, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, err := s.checkOtpLocked(email, code)
	if err != nil {
		return err
	}
	if !entry.verified {
		return ErrOtpInvalid
	}
	s.accounts[email].hash = hash
	delete(s.otps, email)
	return nil
}

func (s *Store) checkOtpLocked(email, code string) (*otpEntry, error) {
	entry, ok := s.otps[email]
	if !ok || s.now().After(entry.expiresAt) {
		return nil, ErrOtpInvalid
	}
	if entry.attempts >= maxOtpAttempts {
		return nil, ErrOtpLocked
	}
	if entry.code != strings.TrimSpace(code) {
		entry.attempts++
		return nil, ErrOtpInvalid
	}
	return entry, nil
}

// User returns a profile by id.
func (s *Store) User(id string) (domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.byID[id]
	if !ok {
		return domain.User{}, false
	}
	return acc.user, true
}

// ListClasses returns the page-th page (1-based) of classes matching filter.
func (s *Store) ListClasses(filter domain.FilterCriteria, page, size int) Page {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]domain.GymClass, 0, len(s.classes))
	for _, c := range s.classes {
		if matches(c, filter) {
			matched = append(matched, c)
		}
	}

	out := Page{Content: []domain.GymClass{}, Page: page, Size: size, TotalElements: len(matched)}
	// Compare page counts rather than offsets so huge page numbers cannot overflow.
	if page < 1 || size < 1 || page-1 >= (len(matched)+size-1)/size {
		return out
	}
	start := (page - 1) * size
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}
	out.Content = append(out.Content, matched[start:end]...)
	return out
}

func matches(c domain.GymClass, f domain.FilterCriteria) bool {
	if f.Location != "" && !strings.EqualFold(c.Location, f.Location) {
		return false
	}
	if f.Discipline != "" && !strings.EqualFold(c.Discipline, f.Discipline) {
		return false
	}
	if f.Date != "" && c.ClassDate != f.Date {
		return false
	}
	return true
}

// Class returns one class by id.
func (s *Store) Class(id string) (domain.GymClass, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.classIndexLocked(id); i >= 0 {
		return s.classes[i], true
	}
	return domain.GymClass{}, false
}

func (s *Store) classIndexLocked(id string) int {
	for i := range s.classes {
		if s.classes[i].ID == id {
			return i
		}
	}
	return -1
}

// Reserve books classID for userID, enforcing capacity.
func (s *Store) Reserve(userID, classID string) (domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.classIndexLocked(classID)
	if i < 0 {
		return domain.Reservation{}, ErrClassNotFound
	}
	for _, r := range s.reservations {
		if r.UserID == userID && r.ClassID == classID && r.Status == domain.ReservationConfirmed {
			return domain.Reservation{}, ErrAlreadyReserved
		}
	}
	if s.classes[i].Full() {
		return domain.Reservation{}, ErrClassFull
	}

	s.classes[i].CurrentCapacity++
	class := s.classes[i]
	res := domain.Reservation{
		ID:              uuid.NewString(),
		ClassID:         classID,
		Class:           &class,
		UserID:          userID,
		Status:          domain.ReservationConfirmed,
		ReservationDate: s.now().UTC(),
	}
	s.reservations = append(s.reservations, res)
	observability.RecordSandboxReservations(s.confirmedLocked())
	return res, nil
}

// Cancel cancels a confirmed reservation owned by userID and frees its seat.
func (s *Store) Cancel(userID, reservationID string) (domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.reservations {
		r := &s.reservations[i]
		if r.ID != reservationID {
			continue
		}
		if r.UserID != userID {
			return domain.Reservation{}, ErrForbidden
		}
		if r.Status != domain.ReservationConfirmed {
			return domain.Reservation{}, ErrNotCancellable
		}
		r.Status = domain.ReservationCancelled
		if ci := s.classIndexLocked(r.ClassID); ci >= 0 && s.classes[ci].CurrentCapacity > 0 {
			s.classes[ci].CurrentCapacity--
		}
		observability.RecordSandboxReservations(s.confirmedLocked())
		return *r, nil
	}
	return domain.Reservation{}, ErrReservationMissing
}

// CheckIn marks a confirmed reservation as attended.
func (s *Store) CheckIn(reservationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.reservations {
		r := &s.reservations[i]
		if r.ID != reservationID {
			continue
		}
		if r.Status != domain.ReservationConfirmed {
			return ErrNotCancellable
		}
		at := s.now().UTC()
		r.CheckInAt = &at
		r.Status = domain.ReservationCompleted
		return nil
	}
	return ErrReservationMissing
}

// History returns userID's reservations made on a day within [from, to], oldest first.
func (s *Store) History(userID string, from, to time.Time) []domain.Reservation {
	fromDay := from.Format(domain.DateLayout)
	toDay := to.Format(domain.DateLayout)

	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Reservation{}
	for _, r := range s.reservations {
		if r.UserID != userID {
			continue
		}
		day := r.ReservationDate.Format(domain.DateLayout)
		if day < fromDay || day > toDay {
			continue
		}
		if ci := s.classIndexLocked(r.ClassID); ci >= 0 {
			class := s.classes[ci]
			r.Class = &class
		}
		out = append(out, r)
	}
	return out
}

func (s *Store) confirmedLocked() int {
	n := 0
	for _, r := range s.reservations {
		if r.Status == domain.ReservationConfirmed {
			n++
		}
	}
	return n
}

func newOtpCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func otpResult(err error) string {
	if errors.Is(err, ErrOtpLocked) {
		return "locked"
	}
	return "rejected"
}

func nameFromEmail(email string) string {
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}
