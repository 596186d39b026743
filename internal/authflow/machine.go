// Package authflow drives login, registration, OTP verification, password reset and biometric
// unlock, and persists the resulting session.
package authflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/mail"
	"strings"
	"sync"
	"time"

	"example.com/gymbooking/internal/biometric"
	"example.com/gymbooking/internal/domain"
	"example.com/gymbooking/internal/events"
	"example.com/gymbooking/internal/observability"
	"example.com/gymbooking/internal/scope"
	"example.com/gymbooking/internal/state"
)

// MinPasswordLength is enforced locally before registration and reset.
const MinPasswordLength = 6

// API is the subset of the booking API the flow calls.
type API interface {
	Login(ctx context.Context, email, password string) (*domain.AuthResult, error)
	Register(ctx context.Context, email, password string) error
	SendOtp(ctx context.Context, email string) error
	VerifyOtp(ctx context.Context, email, otp string) (*domain.AuthResult, error)
	ResetPassword(ctx context.Context, email, otp, newPassword string) error
}

// Sessions persists the session record.
type Sessions interface {
	Current(ctx context.Context) (domain.Session, error)
	Save(ctx context.Context, s domain.Session) error
	Clear(ctx context.Context) error
}

// RegisterInput is the sign-up form.
type RegisterInput struct {
	Email    string
	Password string
	Confirm  string
}

// Option configures optional behaviour for the Machine.
type Option func(*Machine)

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// WithPublisher sends transition events to pub.
func WithPublisher(pub events.Publisher) Option {
	return func(m *Machine) {
		m.publisher = pub
	}
}

// WithClock overrides time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

// Machine is the auth state machine. One action runs at a time; a second call while one is in
// flight returns domain.ErrBusy.
type Machine struct {
	api       API
	sessions  Sessions
	logger    *log.Logger
	publisher events.Publisher
	now       func() time.Time

	scope *scope.Scope
	guard scope.Guard
	view  *state.Store[View]

	mu  sync.Mutex
	otp string
}

// New constructs a Machine in the LoggedOut state. Call Restore to load the persisted session.
func New(api API, sessions Sessions, opts ...Option) *Machine {
	m := &Machine{
		api:       api,
		sessions:  sessions,
		logger:    log.New(log.Writer(), "[authflow] ", log.LstdFlags|log.Lshortfile),
		publisher: events.NoopPublisher{},
		now:       time.Now,
		scope:     scope.New(context.Background()),
		view:      state.New(View{State: LoggedOut()}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// View returns the current view.
func (m *Machine) View() View { return m.view.Get() }

// State returns the current flow state.
func (m *Machine) State() State { return m.view.Get().State }

// Subscribe streams view updates. Call the returned func to stop.
func (m *Machine) Subscribe() (<-chan View, func()) { return m.view.Subscribe() }

// Otp returns the buffered verification code.
func (m *Machine) Otp() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.otp
}

// SetOtp buffers the code typed by the user.
func (m *Machine) SetOtp(code string) {
	m.mu.Lock()
	m.otp = strings.TrimSpace(code)
	m.mu.Unlock()
}

func (m *Machine) clearOtp() { m.SetOtp("") }

// Close cancels in-flight work. Results that arrive afterwards are discarded.
func (m *Machine) Close() { m.scope.Close() }

// Restore derives the state from token presence. The token is not checked with the server.
func (m *Machine) Restore(ctx context.Context) error {
	sess, err := m.sessions.Current(ctx)
	if err != nil {
		return m.fail(fmt.Errorf("read session: %w", err))
	}
	next := LoggedOut()
	if sess.Authenticated() {
		next = Authenticated()
	}
	m.transition(ctx, next, sess.UserID, "")
	return nil
}

// Resume continues an OTP flow started earlier, typically by a previous CLI invocation. It only
// applies when no session is stored.
func (m *Machine) Resume(s State, otp string) {
	if !s.Pending() || m.State().Phase != PhaseLoggedOut {
		return
	}
	m.SetOtp(otp)
	m.view.Update(func(v View) View {
		v.State = s
		return v
	})
}

// Login sends credentials and stores the session on success.
func (m *Machine) Login(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return m.fail(err)
	}
	if password == "" {
		return m.fail(domain.Precondition("password", "Enter your password."))
	}

	ctx, done, err := m.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	res, err := m.api.Login(ctx, email, password)
	if err != nil {
		return m.finish(ctx, nil, "", "", err)
	}
	if strings.TrimSpace(res.Token) == "" {
		return m.finish(ctx, nil, "", "", fmt.Errorf("%w: login returned no token", domain.ErrMalformedResponse))
	}
	if err := m.sessions.Save(ctx, domain.Session{AuthToken: res.Token, UserID: res.User.ID}); err != nil {
		return m.finish(ctx, nil, "", "", fmt.Errorf("store session: %w", err))
	}
	next := Authenticated()
	return m.finish(ctx, &next, res.User.ID, "", nil)
}

// RegisterAndSendOtp creates the account and asks for a verification code.
func (m *Machine) RegisterAndSendOtp(ctx context.Context, in RegisterInput) error {
	email := normalizeEmail(in.Email)
	if err := validateEmail(email); err != nil {
		return m.fail(err)
	}
	if err := validatePassword(in.Password); err != nil {
		return m.fail(err)
	}
	if in.Password != in.Confirm {
		return m.fail(domain.Precondition("confirm", "Passwords do not match."))
	}

	ctx, done, err := m.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	if err := m.api.Register(ctx, email, in.Password); err != nil {
		return m.finish(ctx, nil, "", "", err)
	}
	if err := m.api.SendOtp(ctx, email); err != nil {
		return m.finish(ctx, nil, "", "", err)
	}
	m.clearOtp()
	next := AwaitingOtp(email, PurposeRegister)
	return m.finish(ctx, &next, "", "We sent a verification code to "+email+".", nil)
}

// RequestPasswordResetOtp asks for a code to reset the password of email.
func (m *Machine) RequestPasswordResetOtp(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return m.fail(err)
	}

	ctx, done, err := m.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	if err := m.api.SendOtp(ctx, email); err != nil {
		return m.finish(ctx, nil, "", "", err)
	}
	m.clearOtp()
	next := AwaitingOtp(email, PurposeResetPassword)
	return m.finish(ctx, &next, "", "We sent a verification code to "+email+".", nil)
}

// ConfirmOtp submits the buffered code. A registration returns to LoggedOut; a reset moves on to
// AwaitingNewPassword and keeps the verified code for ResetPassword.
func (m *Machine) ConfirmOtp(ctx context.Context, email string, purpose Purpose) error {
	email = normalizeEmail(email)
	if cur := m.State(); cur != AwaitingOtp(email, purpose) {
		return m.fail(domain.Precondition("otp", "No verification is pending for "+email+"."))
	}
	otp := m.Otp()
	if otp == "" {
		return m.fail(domain.Precondition("otp", "Enter the verification code."))
	}

	ctx, done, err := m.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	if _, err := m.api.VerifyOtp(ctx, email, otp); err != nil {
		return m.finish(ctx, nil, "", "", incorrectCode(err))
	}

	if purpose == PurposeResetPassword {
		next := AwaitingNewPassword(email)
		return m.finish(ctx, &next, "", "Code verified. Choose a new password.", nil)
	}
	m.clearOtp()
	next := LoggedOut()
	return m.finish(ctx, &next, "", "Account verified. Log in to continue.", nil)
}

// ResetPassword sets a new password with the code verified in ConfirmOtp. An empty otp falls back
// to the buffered code.
func (m *Machine) ResetPassword(ctx context.Context, email, newPassword, otp string) error {
	email = normalizeEmail(email)
	if m.State() != AwaitingNewPassword(email) {
		return m.fail(domain.Precondition("email", "Verify the code sent to "+email+" first."))
	}
	if otp = strings.TrimSpace(otp); otp == "" {
		otp = m.Otp()
	}
	if otp == "" {
		return m.fail(domain.Precondition("otp", "The verification code is missing or expired. Request a new one."))
	}
	if err := validatePassword(newPassword); err != nil {
		return m.fail(err)
	}

	ctx, done, err := m.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	if err := m.api.ResetPassword(ctx, email, otp, newPassword); err != nil {
		return m.finish(ctx, nil, "", "", err)
	}
	m.clearOtp()
	next := LoggedOut()
	return m.finish(ctx, &next, "", "Password updated. Log in with your new password.", nil)
}

// Unlock runs the biometric prompt and handles its result.
func (m *Machine) Unlock(ctx context.Context, prompt biometric.Prompt) error {
	return m.HandleBiometric(ctx, biometric.Await(ctx, prompt))
}

// HandleBiometric applies a biometric result. Cancellation and soft failures are ignored; hard
// failures are surfaced.
func (m *Machine) HandleBiometric(ctx context.Context, res biometric.Result) error {
	switch res.Outcome {
	case biometric.OutcomeSuccess:
		return m.HandleBiometricSuccess(ctx)
	case biometric.OutcomeError:
		if res.Hard {
			return m.fail(domain.Precondition("biometric", res.Reason))
		}
		m.logger.Printf("biometric attempt not accepted: %s", res.Reason)
	}
	return nil
}

// HandleBiometricSuccess re-enters Authenticated from the persisted token without a network call.
func (m *Machine) HandleBiometricSuccess(ctx context.Context) error {
	if m.scope.Closed() {
		return domain.ErrClosed
	}
	sess, err := m.sessions.Current(ctx)
	if err != nil {
		return m.fail(fmt.Errorf("read session: %w", err))
	}
	if !sess.Authenticated() {
		return m.fail(domain.ErrNotAuthenticated)
	}
	m.transition(ctx, Authenticated(), sess.UserID, "")
	return nil
}

// Logout clears the stored session.
func (m *Machine) Logout(ctx context.Context) error {
	sess, err := m.sessions.Current(ctx)
	if err != nil {
		m.logger.Printf("read session before logout: %v", err)
	}
	if err := m.sessions.Clear(ctx); err != nil {
		return m.fail(fmt.Errorf("clear session: %w", err))
	}
	m.clearOtp()
	m.transition(ctx, LoggedOut(), sess.UserID, "Logged out.")
	return nil
}

func (m *Machine) begin(ctx context.Context) (context.Context, func(), error) {
	if m.scope.Closed() {
		return nil, nil, domain.ErrClosed
	}
	if !m.guard.TryAcquire() {
		observability.RecordDropped("authflow")
		return nil, nil, domain.ErrBusy
	}
	bound, cancel := m.scope.Bind(ctx)
	m.view.Update(func(v View) View {
		v.Loading = true
		v.Err = nil
		v.Retry = false
		v.Message = ""
		return v
	})
	return bound, func() {
		cancel()
		m.guard.Release()
	}, nil
}

// finish publishes the outcome of an action unless the machine was closed meanwhile.
func (m *Machine) finish(ctx context.Context, next *State, userID, message string, err error) error {
	if m.scope.Closed() {
		return domain.ErrClosed
	}
	if err != nil {
		m.logger.Printf("auth action failed in %s: %v", m.State(), err)
		m.view.Update(func(v View) View {
			v.Loading = false
			v.Err = err
			v.Retry = domain.IsConnectivity(err)
			return v
		})
		return err
	}
	cur := m.State()
	if next != nil {
		cur = *next
	}
	m.transition(ctx, cur, userID, message)
	return nil
}

func (m *Machine) fail(err error) error {
	m.view.Update(func(v View) View {
		v.Loading = false
		v.Err = err
		v.Retry = domain.IsConnectivity(err)
		v.Message = ""
		return v
	})
	return err
}

func (m *Machine) transition(ctx context.Context, next State, userID, message string) {
	var prev State
	m.view.Update(func(v View) View {
		prev = v.State
		return View{State: next, Message: message}
	})
	if prev == next {
		return
	}
	m.logger.Printf("auth state %s -> %s", prev, next)
	observability.RecordTransition(string(next.Phase))
	events.Emit(ctx, m.publisher, m.logger, events.TypeAuthStateChanged, userID, events.AuthStateChanged{
		UserID:     userID,
		From:       string(prev.Phase),
		To:         string(next.Phase),
		OccurredAt: m.now().UTC(),
	})
}

// incorrectCode maps a rejected verification to a plain message. Server faults and transport
// errors pass through unchanged.
func incorrectCode(err error) error {
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 && apiErr.Status != http.StatusTooManyRequests {
		return &domain.APIError{Status: apiErr.Status, Message: "Incorrect verification code."}
	}
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return domain.Precondition("email", "Enter your email address.")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return domain.Precondition("email", "Enter a valid email address.")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return domain.Precondition("password", fmt.Sprintf("Password must be at least %d characters.", MinPasswordLength))
	}
	return nil
}
