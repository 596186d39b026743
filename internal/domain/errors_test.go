package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUserMessage(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"server message verbatim", &APIError{Status: 409, Message: "class is full"}, "class is full"},
		{"status fallback", &APIError{Status: 503}, "Server error (503). Try again later."},
		{"connectivity", &ConnectivityError{Op: "GET /api/classes", Err: errors.New("dial tcp: refused")}, "Could not reach the server. Check your connection and retry."},
		{"precondition", Precondition("otp", "enter the verification code"), "enter the verification code"},
		{"wrapped auth", fmt.Errorf("reserve: %w", ErrNotAuthenticated), "You need to log in first."},
		{"cancelled", &ConnectivityError{Op: "GET /api/classes", Err: context.Canceled}, "Request cancelled."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, UserMessage(tc.err))
		})
	}
}

func TestStatusCodeAndConnectivity(t *testing.T) {
	err := fmt.Errorf("create: %w", &APIError{Status: 422})
	require.Equal(t, 422, StatusCode(err))
	require.False(t, IsConnectivity(err))
	require.True(t, IsConnectivity(&ConnectivityError{Op: "x", Err: errors.New("eof")}))
}

func TestFilterCriteriaValidate(t *testing.T) {
	require.NoError(t, FilterCriteria{Date: "2025-03-01"}.Validate())
	err := FilterCriteria{Date: "01/03/2025"}.Validate()
	var precond *PreconditionError
	require.ErrorAs(t, err, &precond)
	require.Equal(t, "date", precond.Field)
	require.True(t, FilterCriteria{Location: "  "}.Normalize().IsZero())
}
