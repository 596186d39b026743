package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"example.com/gymbooking/internal/authflow"
	"example.com/gymbooking/internal/biometric"
	"example.com/gymbooking/internal/classes"
	"example.com/gymbooking/internal/domain"
	"example.com/gymbooking/internal/reservations"
)

type command func(ctx context.Context, a *app, args []string) error

var commands map[string]command

func init() {
	commands = map[string]command{
		"login":           loginCmd,
		"register":        registerCmd,
		"verify-otp":      verifyOtpCmd,
		"forgot-password": forgotPasswordCmd,
		"reset-password":  resetPasswordCmd,
		"unlock":          unlockCmd,
		"logout":          logoutCmd,
		"status":          statusCmd,
		"classes":         classesCmd,
		"class":           classCmd,
		"reserve":         reserveCmd,
		"cancel":          cancelCmd,
		"history":         historyCmd,
		"profile":         profileCmd,
	}
}

func newFlags(a *app, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return nil
}

func loginCmd(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := parse(fs, args); err != nil {
		return err
	}

	m, err := a.machine(ctx)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Login(ctx, *email, *password); err != nil {
		return err
	}
	if err := a.flows.Clear(); err != nil {
		a.logger.Printf("clear flow file: %v", err)
	}
	return a.out.message("Logged in as " + *email + ".")
}

func registerCmd(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "register")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "new password")
	confirm := fs.String("confirm", "", "repeat the password")
	if err := parse(fs, args); err != nil {
		return err
	}

	m, err := a.machine(ctx)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.RegisterAndSendOtp(ctx, authflow.RegisterInput{Email: *email, Password: *password, Confirm: *confirm}); err != nil {
		return err
	}
	if err := a.persistFlow(m); err != nil {
		return err
	}
	return a.out.message(m.View().Message + " Run gymctl verify-otp -code <code>.")
}

func forgotPasswordCmd(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "forgot-password")
	email := fs.String("email", "", "account email")
	if err := parse(fs, args); err != nil {
		return err
	}

	m, err := a.machine(ctx)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.RequestPasswordResetOtp(ctx, *email); err != nil {
		return err
	}
	if err := a.persistFlow(m); err != nil {
		return err
	}
	return a.out.message(m.View().Message + " Run gymctl verify-otp -code <code>.")
}

func verifyOtpCmd(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "verify-otp")
	code := fs.String("code", "", "verification code")
	if err := parse(fs, args); err != nil {
		return err
	}

	m, err := a.machine(ctx)
	if err != nil {
		return err
	}
	defer m.Close()
	st := m.State()
	if st.Phase != authflow.PhaseAwaitingOtp {
		return domain.Precondition("otp", "No verification is pending. Run register or forgot-password first.")
	}
	m.SetOtp(*code)
	if err := m.ConfirmOtp(ctx, st.Email, st.Purpose); err != nil {
		return err
	}
	if err := a.persistFlow(m); err != nil {
		return err
	}
	msg := m.View().Message
	if m.State().Phase == authflow.PhaseAwaitingNewPassword {
		msg += " Run gymctl reset-password -password <new>."
	}
	return a.out.message(msg)
}

func resetPasswordCmd(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "reset-password")
	password := fs.String("password", "", "new password")
	code := fs.String("code", "", "verified code, defaults to the one from verify-otp")
	if err := parse(fs, args); err != nil {
		return err
	}

	m, err := a.machine(ctx)
	if err != nil {
		return err
	}
	defer m.Close()
	st := m.State()
	if st.Phase != authflow.PhaseAwaitingNewPassword {
		return domain.Precondition("otp", "Verify the code first with gymctl verify-otp.")
	}
	if err := m.ResetPassword(ctx, st.Email, *password, *code); err != nil {
		return err
	}
	if err := a.persistFlow(m); err != nil {
		return err
	}
	return a.out.message(m.View().Message)
}

func unlockCmd(ctx context.Context, a *app, args []string) error {
	if err := parse(newFlags(a, "unlock"), args); err != nil {
		return err
	}
	m, err := a.machine(ctx)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Unlock(ctx, biometric.Fixed(a.cfg.BiometricResult)); err != nil {
		return err
	}
	if m.State().Phase != authflow.PhaseAuthenticated {
		return a.out.message("Unlock not confirmed.")
	}
	return a.out.message("Unlocked.")
}

func logoutCmd(ctx context.Context, a *app, args []string) error {
	if err := parse(newFlags(a, "logout"), args); err != nil {
		return err
	}
	m, err := a.machine(ctx)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Logout(ctx); err != nil {
		return err
	}
	if err := a.flows.Clear(); err != nil {
		return err
	}
	return a.out.message(m.View().Message)
}

type statusView struct {
	State     authflow.State `json:"state" yaml:"state"`
	UserID    string         `json:"userId,omitempty" yaml:"userId,omitempty"`
	ExpiresAt *time.Time     `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty"`
	Backend   string         `json:"backend" yaml:"backend"`
}

func statusCmd(ctx context.Context, a *app, args []string) error {
	if err := parse(newFlags(a, "status"), args); err != nil {
		return err
	}
	m, err := a.machine(ctx)
	if err != nil {
		return err
	}
	defer m.Close()

	sess, err := a.sessions.Current(ctx)
	if err != nil {
		return err
	}
	view := statusView{State: m.State(), UserID: sess.UserID, Backend: a.cfg.SessionBackend}
	if exp, ok, err := a.sessions.Expiry(ctx); err == nil && ok {
		view.ExpiresAt = &exp
	}
	return a.out.print(view, func(w io.Writer) {
		fmt.Fprintf(w, "state:   %s\n", view.State)
		if view.UserID != "" {
			fmt.Fprintf(w, "user:    %s\n", view.UserID)
		}
		if view.ExpiresAt != nil {
			fmt.Fprintf(w, "expires: %s\n", view.ExpiresAt.Local().Format(time.RFC1123))
		}
		fmt.Fprintf(w, "backend: %s\n", view.Backend)
	})
}

func classesCmd(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "classes")
	location := fs.String("location", "", "filter by location")
	discipline := fs.String("discipline", "", "filter by discipline")
	date := fs.String("date", "", "filter by date (YYYY-MM-DD)")
	pages := fs.Int("pages", 1, "number of pages to load, 0 for all")
	if err := parse(fs, args); err != nil {
		return err
	}

	c := classes.New(a.api, a.cfg.PageSize, classes.WithLogger(a.logger))
	defer c.Close()
	if err := c.UpdateFilters(ctx, domain.FilterCriteria{Location: *location, Discipline: *discipline, Date: *date}); err != nil {
		return err
	}
	for loaded := 1; c.View().HasMore && (*pages <= 0 || loaded < *pages); loaded++ {
		if err := c.LoadNextPage(ctx); err != nil {
			// Keep what was loaded and report the failure after printing it.
			view := c.View()
			_ = a.out.print(view.Classes, func(w io.Writer) { writeClasses(w, view.Classes) })
			return err
		}
	}

	view := c.View()
	return a.out.print(view.Classes, func(w io.Writer) {
		if len(view.Classes) == 0 {
			fmt.Fprintln(w, "No classes match.")
			return
		}
		writeClasses(w, view.Classes)
		if view.HasMore {
			fmt.Fprintf(w, "\nMore classes available, use -pages %d or -pages 0.\n", view.Page+1)
		}
	})
}

func classCmd(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "class")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return domain.Precondition("id", "Usage: gymctl class <id>")
	}
	c := classes.New(a.api, a.cfg.PageSize, classes.WithLogger(a.logger))
	defer c.Close()
	class, err := c.Class(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	return a.out.print(class, func(w io.Writer) { writeClass(w, *class) })
}

func (a *app) reservations() *reservations.Controller {
	return reservations.New(a.api, a.sessions, reservations.WithLogger(a.logger), reservations.WithPublisher(a.publisher))
}

func reserveCmd(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "reserve")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return domain.Precondition("class", "Usage: gymctl reserve <classID>")
	}
	c := a.reservations()
	defer c.Close()
	res, err := c.Create(ctx, domain.GymClass{ID: fs.Arg(0)})
	if err != nil {
		return err
	}
	return a.out.print(res, func(w io.Writer) {
		fmt.Fprintf(w, "%s Reservation %s.\n", c.View().Message, res.ID)
	})
}

func cancelCmd(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "cancel")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return domain.Precondition("reservation", "Usage: gymctl cancel <reservationID>")
	}
	c := a.reservations()
	defer c.Close()
	if err := c.Cancel(ctx, fs.Arg(0)); err != nil {
		return err
	}
	return a.out.message(c.View().Message)
}

func historyCmd(ctx context.Context, a *app, args []string) error {
	now := time.Now()
	fs := newFlags(a, "history")
	from := fs.String("from", now.AddDate(0, 0, -30).Format(domain.DateLayout), "first day (YYYY-MM-DD)")
	to := fs.String("to", now.AddDate(0, 0, 30).Format(domain.DateLayout), "last day (YYYY-MM-DD)")
	if err := parse(fs, args); err != nil {
		return err
	}
	start, err := time.ParseInLocation(domain.DateLayout, *from, time.Local)
	if err != nil {
		return domain.Precondition("from", "from must use YYYY-MM-DD")
	}
	end, err := time.ParseInLocation(domain.DateLayout, *to, time.Local)
	if err != nil {
		return domain.Precondition("to", "to must use YYYY-MM-DD")
	}

	c := a.reservations()
	defer c.Close()
	if err := c.LoadHistory(ctx, start, end); err != nil {
		return err
	}
	list := c.View().Reservations
	return a.out.print(list, func(w io.Writer) {
		writeReservations(w, list)
		if upcoming := c.Upcoming(); len(upcoming) > 0 {
			fmt.Fprintf(w, "\n%d upcoming, %d attended.\n", len(upcoming), len(c.Attended()))
		}
	})
}

func profileCmd(ctx context.Context, a *app, args []string) error {
	if err := parse(newFlags(a, "profile"), args); err != nil {
		return err
	}
	c := a.reservations()
	defer c.Close()
	user, err := c.Profile(ctx)
	if err != nil {
		return err
	}
	return a.out.print(user, func(w io.Writer) {
		fmt.Fprintf(w, "%s <%s>\n", user.Name, user.Email)
		fmt.Fprintf(w, "  id:      %s\n", user.ID)
		if user.Phone != "" {
			fmt.Fprintf(w, "  phone:   %s\n", user.Phone)
		}
		if !user.CreatedAt.IsZero() {
			fmt.Fprintf(w, "  member since %s\n", user.CreatedAt.Format(domain.DateLayout))
		}
	})
}
