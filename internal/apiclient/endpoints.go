package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"example.com/gymbooking/internal/domain"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges email and password for a token.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	var out domain.AuthResult
	err := c.do(ctx, call{
		route:  "auth.login",
		method: http.MethodPost,
		path:   "/api/auth/login",
		body:   credentials{Email: email, Password: password},
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an unverified account.
func (c *Client) Register(ctx context.Context, email, password string) error {
	return c.do(ctx, call{
		route:  "users.register",
		method: http.MethodPost,
		path:   "/api/users/register",
		body:   credentials{Email: email, Password: password},
	})
}

// SendOtp asks the server to dispatch a one-time code to email.
func (c *Client) SendOtp(ctx context.Context, email string) error {
	return c.do(ctx, call{
		route:  "auth.send_otp",
		method: http.MethodPost,
		path:   "/api/auth/send-otp",
		body:   map[string]string{"email": email},
	})
}

// VerifyOtp checks a code and returns the resulting token and user.
func (c *Client) VerifyOtp(ctx context.Context, email, otp string) (*domain.AuthResult, error) {
	var out domain.AuthResult
	err := c.do(ctx, call{
		route:  "users.verify_otp",
		method: http.MethodPost,
		path:   "/api/users/verify-otp",
		body:   map[string]string{"email": email, "otp": otp},
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ResetPassword sets a new password using a verified code.
func (c *Client) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	return c.do(ctx, call{
		route:  "auth.reset_password",
		method: http.MethodPost,
		path:   "/api/auth/reset-password",
		body:   map[string]string{"email": email, "otp": otp, "newPassword": newPassword},
	})
}

// ListClasses fetches one page of classes. page is 1-based.
func (c *Client) ListClasses(ctx context.Context, filter domain.FilterCriteria, page, size int) ([]domain.GymClass, error) {
	query := url.Values{}
	if filter.Location != "" {
		query.Set("location", filter.Location)
	}
	if filter.Discipline != "" {
		query.Set("discipline", filter.Discipline)
	}
	if filter.Date != "" {
		query.Set("date", filter.Date)
	}
	query.Set("page", strconv.Itoa(page))
	query.Set("size", strconv.Itoa(size))

	var raw json.RawMessage
	if err := c.do(ctx, call{route: "classes.list", method: http.MethodGet, path: "/api/classes", query: query, out: &raw}); err != nil {
		return nil, err
	}
	return decodeClassPage(raw)
}

// decodeClassPage accepts either a bare array or a page object with content/items.
func decodeClassPage(raw json.RawMessage) ([]domain.GymClass, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []domain.GymClass{}, nil
	}

	var classes []domain.GymClass
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &classes); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
		}
		return classes, nil
	}

	var page struct {
		Content []domain.GymClass `json:"content"`
		Items   []domain.GymClass `json:"items"`
	}
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	if page.Content != nil {
		return page.Content, nil
	}
	if page.Items != nil {
		return page.Items, nil
	}
	return []domain.GymClass{}, nil
}

// GetClass fetches one class.
func (c *Client) GetClass(ctx context.Context, id string) (*domain.GymClass, error) {
	var out domain.GymClass
	err := c.do(ctx, call{route: "classes.get", method: http.MethodGet, path: "/api/classes/" + url.PathEscape(id), out: &out})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateReservation books classID for userID.
func (c *Client) CreateReservation(ctx context.Context, userID, classID string) (*domain.Reservation, error) {
	var out domain.Reservation
	err := c.do(ctx, call{
		route:  "reservations.create",
		method: http.MethodPost,
		path:   "/api/reservations",
		body:   map[string]string{"userId": userID, "classId": classID},
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelReservation cancels a reservation by id.
func (c *Client) CancelReservation(ctx context.Context, id string) error {
	return c.do(ctx, call{
		route:  "reservations.cancel",
		method: http.MethodPost,
		path:   "/api/reservations/" + url.PathEscape(id) + "/cancel",
	})
}

// History lists the user's reservations with a reservation date inside [from, to].
func (c *Client) History(ctx context.Context, userID string, from, to time.Time) ([]domain.Reservation, error) {
	query := url.Values{}
	query.Set("userId", userID)
	query.Set("startDate", from.Format(domain.DateLayout))
	query.Set("endDate", to.Format(domain.DateLayout))

	var out []domain.Reservation
	if err := c.do(ctx, call{route: "users.history", method: http.MethodGet, path: "/api/users/history", query: query, out: &out}); err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Reservation{}
	}
	return out, nil
}

// GetUser fetches a profile.
func (c *Client) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var out domain.User
	err := c.do(ctx, call{route: "users.get", method: http.MethodGet, path: "/api/users/" + url.PathEscape(id), out: &out})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
