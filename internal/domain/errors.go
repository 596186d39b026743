package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNotAuthenticated is returned when an operation needs a stored session and none exists.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrBusy is returned when a call is dropped because the same operation is already in flight.
	ErrBusy = errors.New("operation already in progress")
	// ErrClosed is returned when the owning scope was closed before the result arrived.
	ErrClosed = errors.New("scope closed")
	// ErrMalformedResponse signals a 2xx response the client could not use.
	ErrMalformedResponse = errors.New("malformed server response")
)

// ConnectivityError wraps transport and IO failures. The user is told to check the connection.
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// APIError is a request the server rejected with a non-2xx status.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server returned %d", e.Status)
}

// PreconditionError is a local validation failure raised before any network call.
type PreconditionError struct {
	Field  string
	Reason string
}

func (e *PreconditionError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

// Precondition builds a PreconditionError.
func Precondition(field, reason string) error {
	return &PreconditionError{Field: field, Reason: reason}
}

// IsConnectivity reports whether err is a transport failure worth a manual retry.
func IsConnectivity(err error) bool {
	var connErr *ConnectivityError
	return errors.As(err, &connErr)
}

// StatusCode extracts the server status from err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// UserMessage renders err as text for the person using the app.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var (
		apiErr  *APIError
		precond *PreconditionError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return "Request cancelled."
	case errors.As(err, &precond):
		return precond.Reason
	case errors.Is(err, ErrNotAuthenticated):
		return "You need to log in first."
	case errors.Is(err, ErrBusy):
		return "Please wait, a request is already in progress."
	case errors.Is(err, ErrMalformedResponse):
		return "The server sent a response the app could not read."
	case IsConnectivity(err):
		return "Could not reach the server. Check your connection and retry."
	case errors.As(err, &apiErr):
		if msg := strings.TrimSpace(apiErr.Message); msg != "" {
			return msg
		}
		return statusMessage(apiErr.Status)
	}
	return err.Error()
}

func statusMessage(status int) string {
	switch {
	case status == http.StatusBadRequest:
		return "The request was invalid."
	case status == http.StatusUnauthorized:
		return "Incorrect credentials or expired session."
	case status == http.StatusForbidden:
		return "You are not allowed to do that."
	case status == http.StatusNotFound:
		return "Not found."
	case status == http.StatusConflict:
		return "The request conflicts with the current state."
	case status >= 500:
		return fmt.Sprintf("Server error (%d). Try again later.", status)
	}
	return fmt.Sprintf("Request failed (%d).", status)
}
