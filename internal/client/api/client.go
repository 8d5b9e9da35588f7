// Package api is the HTTP client for the stagepass account API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/stagepass/internal/common"
	"github.com/sethvargo/go-retry"
)

// ErrUnavailable is returned when the server cannot be reached or keeps
// answering 503 after retries.
var ErrUnavailable = errors.New("server unavailable")

// Tokens is the triple returned in response headers by every
// token-issuing endpoint.
type Tokens struct {
	AccessToken  string    `json:"access_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	RefreshToken string    `json:"refresh_token"`
}

// Expired reports whether the access token is past its expiry at now.
func (t Tokens) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// SignUpRequest mirrors the sign-up form accepted by the server.
type SignUpRequest struct {
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
	Name                 string `json:"name"`
	Role                 string `json:"role"`
	BirthDate            string `json:"birth_date"`
	NumberOfParticipants *int   `json:"number_of_participants,omitempty"`
}

// Error is a non-2xx answer from the server.
type Error struct {
	StatusCode int
	Message    string
	Fields     map[string]string
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
	}
	parts := make([]string, 0, len(e.Fields))
	for k, v := range e.Fields {
		parts = append(parts, k+" "+v)
	}
	return fmt.Sprintf("server error (%d): %s: %s", e.StatusCode, e.Message, strings.Join(parts, ", "))
}

// Unauthorized reports whether the server rejected the presented token.
func (e *Error) Unauthorized() bool { return e.StatusCode == http.StatusUnauthorized }

type envelope struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Error   string            `json:"error"`
	Errors  map[string]string `json:"errors"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	maxRetries uint64
	retryDelay time.Duration
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: 2,
		retryDelay: 200 * time.Millisecond,
	}
}

func (c *Client) SignUp(ctx context.Context, req SignUpRequest) (*Tokens, string, error) {
	return c.tokenRequest(ctx, http.MethodPost, "/users/sign_up", req, nil)
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*Tokens, string, error) {
	body := map[string]string{"email": email, "password": password}
	return c.tokenRequest(ctx, http.MethodPost, "/users/sign_in", body, nil)
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Tokens, string, error) {
	h := http.Header{}
	h.Set(common.RefreshTokenHeaderName, refreshToken)
	return c.tokenRequest(ctx, http.MethodPost, "/users/tokens", nil, h)
}

func (c *Client) ChangePassword(ctx context.Context, accessToken, password, confirmation string) (*Tokens, string, error) {
	body := map[string]string{"password": password, "password_confirmation": confirmation}
	return c.tokenRequest(ctx, http.MethodPatch, "/users/passwords", body, bearer(accessToken))
}

func (c *Client) Delete(ctx context.Context, accessToken string) (string, error) {
	_, env, err := c.do(ctx, http.MethodDelete, "/users/delete", nil, bearer(accessToken))
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

// Health asks the server whether it can reach its database.
func (c *Client) Health(ctx context.Context) error {
	_, _, err := c.do(ctx, http.MethodGet, "/health", nil, nil)
	return err
}

func bearer(token string) http.Header {
	h := http.Header{}
	h.Set(common.AuthorizationHeader, "Bearer "+token)
	return h
}

func (c *Client) tokenRequest(ctx context.Context, method, path string, body any, h http.Header) (*Tokens, string, error) {
	resp, env, err := c.do(ctx, method, path, body, h)
	if err != nil {
		return nil, "", err
	}
	t, err := tokensFromHeader(resp.Header)
	if err != nil {
		return nil, "", err
	}
	return t, env.Message, nil
}

func tokensFromHeader(h http.Header) (*Tokens, error) {
	t := &Tokens{
		AccessToken:  h.Get(common.AccessTokenHeaderName),
		RefreshToken: h.Get(common.RefreshTokenHeaderName),
	}
	exp, err := strconv.ParseInt(h.Get(common.ExpireAtHeaderName), 10, 64)
	if err != nil || t.AccessToken == "" || t.RefreshToken == "" {
		return nil, errors.New("response is missing token headers")
	}
	t.ExpiresAt = time.Unix(exp, 0)
	return t, nil
}

// do sends one request, retrying on 503 and connection failures. Other
// errors are returned as *Error without retrying.
func (c *Client) do(ctx context.Context, method, path string, body any, h http.Header) (*http.Response, *envelope, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	var (
		resp *http.Response
		env  *envelope
	)
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.retryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		resp, env, err = c.once(ctx, method, path, payload, h)
		if errors.Is(err, ErrUnavailable) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return resp, env, nil
}

func (c *Client) once(ctx context.Context, method, path string, payload []byte, h http.Header) (*http.Response, *envelope, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range h {
		req.Header[k] = vs
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	env := &envelope{}
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, env); err != nil {
			env.Error = strings.TrimSpace(string(respBody))
		}
	}

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnavailable, env.Error)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, nil, &Error{StatusCode: resp.StatusCode, Message: env.Error, Fields: env.Errors}
	}
	return resp, env, nil
}
