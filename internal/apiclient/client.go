// Package apiclient calls the gym booking REST API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/gymbooking/internal/domain"
	"example.com/gymbooking/internal/observability"
)

const maxErrorBody = 64 << 10

// TokenSource yields the stored bearer token, or "" when logged out.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Option configures optional behaviour for the Client.
type Option func(*Client)

// WithHTTPClient overrides the transport.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithLogger overrides the logger used to report requests.
func WithLogger(logger *log.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// Client is a thin JSON client. It never retries; every failure goes back to the caller.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *log.Logger
}

// New constructs a Client. tokens may be nil for unauthenticated use.
func New(baseURL string, tokens TokenSource, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
		logger:     log.New(log.Writer(), "[apiclient] ", log.LstdFlags|log.Lshortfile),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// call describes one request. route is a fixed label used for metrics.
type call struct {
	route  string
	method string
	path   string
	query  url.Values
	body   interface{}
	out    interface{}
}

func (c *Client) do(ctx context.Context, cl call) error {
	op := cl.method + " " + cl.path
	endpoint := c.baseURL + cl.path
	if len(cl.query) > 0 {
		endpoint += "?" + cl.query.Encode()
	}

	var body io.Reader
	if cl.body != nil {
		encoded, err := json.Marshal(cl.body)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if err := c.authorize(ctx, req); err != nil {
		return &domain.ConnectivityError{Op: "read session", Err: err}
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.RecordRequest(cl.route, observability.OutcomeConnectivity, time.Since(started))
		c.logger.Printf("%s failed: %v", op, err)
		return &domain.ConnectivityError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	c.logger.Printf("%s -> %d", op, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		observability.RecordRequest(cl.route, observability.OutcomeRejected, time.Since(started))
		return decodeAPIError(resp)
	}
	observability.RecordRequest(cl.route, observability.OutcomeOK, time.Since(started))

	if cl.out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(cl.out); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case err == io.EOF:
			return fmt.Errorf("%w: empty body from %s", domain.ErrMalformedResponse, op)
		case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
			c.logger.Printf("%s returned an undecodable body: %v", op, err)
			return fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
		}
		return &domain.ConnectivityError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// authorize attaches the bearer token when one is stored. The session read happens inline with
// request construction.
func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	if c.tokens == nil {
		return nil
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &domain.APIError{Status: resp.StatusCode}

	var payload struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		for _, candidate := range []string{payload.Message, payload.Detail, payload.Error} {
			if strings.TrimSpace(candidate) != "" {
				apiErr.Message = strings.TrimSpace(candidate)
				return apiErr
			}
		}
		return apiErr
	}

	text := strings.TrimSpace(string(raw))
	if text != "" && len(text) <= 200 && !strings.HasPrefix(text, "<") {
		apiErr.Message = text
	}
	return apiErr
}
