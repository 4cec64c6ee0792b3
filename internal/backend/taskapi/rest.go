package taskapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"taskdash/internal/service"
)

const (
	loginPath    = "/api/users/login"
	registerPath = "/api/users/register"

	// maxErrorBody caps how much of an error response is read.
	maxErrorBody = 64 << 10
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Login implements service.Service.
func (c *Client) Login(ctx context.Context, email, password string) (service.Auth, error) {
	var auth service.Auth
	if err := c.postJSON(ctx, loginPath, loginRequest{Email: email, Password: password}, &auth); err != nil {
		return service.Auth{}, errors.Wrap(err, "login")
	}
	if auth.Token == "" {
		return service.Auth{}, errors.New("login: response has no token")
	}
	return auth, nil
}

// Register implements service.Service.
func (c *Client) Register(ctx context.Context, name, email, password string) error {
	req := registerRequest{Name: name, Email: email, Password: password}
	return errors.Wrap(c.postJSON(ctx, registerPath, req, nil), "register")
}

// postJSON posts body to the gateway and decodes a 2xx response into out
// when out is non-nil.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return wrapError(ctx, err)
	}
	defer resp.Body.Close()
	c.log.Debug().Str("path", path).Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("rest request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "invalid response")
	}
	return nil
}

// decodeError turns a non-2xx response into a *service.APIError, keeping the
// server's message when it sent one.
func decodeError(resp *http.Response) error {
	apiErr := &service.APIError{Status: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body errorBody
	if json.Unmarshal(data, &body) == nil {
		apiErr.Message = body.Message
		if apiErr.Message == "" {
			apiErr.Message = body.Error
		}
	}
	return apiErr
}

// wrapError maps transport failures onto service errors.
func wrapError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return service.ErrTimeout
	}
	return err
}
