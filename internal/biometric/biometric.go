// Package biometric models the platform identity prompt as a future of Result.
package biometric

import (
	"context"
	"strings"
)

// Outcome classifies a prompt result.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeError
	OutcomeCancelled
)

// Result is what the platform prompt resolved to. Hard errors (lockout, missing hardware) are
// surfaced to the user; soft errors and cancellation are not.
type Result struct {
	Outcome Outcome
	Reason  string
	Hard    bool
}

// Success is a confirmed identity.
func Success() Result { return Result{Outcome: OutcomeSuccess} }

// Failure is a rejected or failed prompt.
func Failure(reason string, hard bool) Result {
	return Result{Outcome: OutcomeError, Reason: reason, Hard: hard}
}

// UserCancelled is a prompt the user dismissed.
func UserCancelled() Result { return Result{Outcome: OutcomeCancelled} }

// Prompt asks the platform to confirm identity. The channel yields exactly one Result.
type Prompt interface {
	Authenticate(ctx context.Context) <-chan Result
}

// PromptFunc adapts a blocking function to Prompt.
type PromptFunc func(ctx context.Context) Result

// Authenticate runs f in its own goroutine.
func (f PromptFunc) Authenticate(ctx context.Context) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		out <- f(ctx)
	}()
	return out
}

// Await blocks until the prompt resolves. A cancelled context counts as a user cancellation.
func Await(ctx context.Context, p Prompt) Result {
	select {
	case res := <-p.Authenticate(ctx):
		return res
	case <-ctx.Done():
		return UserCancelled()
	}
}

// Unavailable is the prompt used where no biometric hardware exists.
var Unavailable = PromptFunc(func(context.Context) Result {
	return Failure("biometric authentication is not available on this device", true)
})

// Fixed returns a prompt that resolves to the named result. Used by headless front ends:
// "success", "cancel", "fail", "lockout". Anything else is Unavailable.
func Fixed(name string) Prompt {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "success", "ok":
		return PromptFunc(func(context.Context) Result { return Success() })
	case "cancel", "cancelled":
		return PromptFunc(func(context.Context) Result { return UserCancelled() })
	case "fail", "failed":
		return PromptFunc(func(context.Context) Result { return Failure("not recognized", false) })
	case "lockout":
		return PromptFunc(func(context.Context) Result {
			return Failure("too many attempts, biometric sensor locked", true)
		})
	}
	return Unavailable
}
