package authflow

// Phase names where the user is in the auth flow.
type Phase string

const (
	PhaseLoggedOut           Phase = "logged_out"
	PhaseAwaitingOtp         Phase = "awaiting_otp"
	PhaseAwaitingNewPassword Phase = "awaiting_new_password"
	PhaseAuthenticated       Phase = "authenticated"
)

// Purpose says why an OTP was sent.
type Purpose string

const (
	PurposeRegister      Purpose = "register"
	PurposeResetPassword Purpose = "reset_password"
)

// State is the auth flow position. Email and Purpose are set only for the phases that carry them.
type State struct {
	Phase   Phase   `json:"phase"`
	Email   string  `json:"email,omitempty"`
	Purpose Purpose `json:"purpose,omitempty"`
}

func LoggedOut() State { return State{Phase: PhaseLoggedOut} }

func Authenticated() State { return State{Phase: PhaseAuthenticated} }

func AwaitingOtp(email string, purpose Purpose) State {
	return State{Phase: PhaseAwaitingOtp, Email: email, Purpose: purpose}
}

func AwaitingNewPassword(email string) State {
	return State{Phase: PhaseAwaitingNewPassword, Email: email}
}

// Pending reports whether the state is mid-way through an OTP flow.
func (s State) Pending() bool {
	return s.Phase == PhaseAwaitingOtp || s.Phase == PhaseAwaitingNewPassword
}

func (s State) String() string {
	switch s.Phase {
	case PhaseAwaitingOtp:
		return string(s.Phase) + "(" + s.Email + ", " + string(s.Purpose) + ")"
	case PhaseAwaitingNewPassword:
		return string(s.Phase) + "(" + s.Email + ")"
	case "":
		return string(PhaseLoggedOut)
	}
	return string(s.Phase)
}

// View is what a screen renders: the flow state plus the outcome of the last action.
type View struct {
	State   State
	Loading bool
	Err     error
	// Retry is set when the last failure was a connectivity problem the user can resubmit.
	Retry   bool
	Message string
}
