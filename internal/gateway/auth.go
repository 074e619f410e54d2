package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/roach88/hexagram/internal/session"
)

// Credentials is the login form.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

// Registration is the sign-up form.
type Registration struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// TokenResponse is the login response body.
type TokenResponse struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	Email       string   `json:"email"`
	UserID      string   `json:"userId"`
	Roles       []string `json:"roles"`
	Plan        string   `json:"plan"`
}

// Session converts the response into the session that gets persisted.
func (r TokenResponse) Session() session.AuthSession {
	return session.AuthSession{
		AccessToken: r.AccessToken,
		TokenType:   r.TokenType,
		Email:       r.Email,
		UserID:      r.UserID,
		Roles:       r.Roles,
		Plan:        r.Plan,
	}
}

// Validate runs the local checks the login form performs.
func (c Credentials) Validate() error {
	if !strings.Contains(strings.TrimSpace(c.Email), "@") {
		return fmt.Errorf("%w: email is required", ErrInvalidCredentials)
	}
	if c.Password == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidCredentials)
	}
	return nil
}

// Validate runs the local checks the sign-up form performs.
func (r Registration) Validate() error {
	if err := (Credentials{Email: r.Email, Password: r.Password}).Validate(); err != nil {
		return err
	}
	if r.Password != r.ConfirmPassword {
		return fmt.Errorf("%w: passwords do not match", ErrInvalidCredentials)
	}
	return nil
}

// Login exchanges credentials for a session. The caller decides which
// tier to persist it in from creds.Remember.
func (c *Client) Login(ctx context.Context, creds Credentials) (session.AuthSession, error) {
	if err := creds.Validate(); err != nil {
		return session.AuthSession{}, err
	}
	creds.Email = strings.TrimSpace(creds.Email)

	data, err := json.Marshal(creds)
	if err != nil {
		return session.AuthSession{}, fmt.Errorf("marshal login: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, LoginPath, data)
	if err != nil {
		return session.AuthSession{}, err
	}

	var resp TokenResponse
	if err := c.do(req, &resp); err != nil {
		return session.AuthSession{}, fmt.Errorf("login: %w", err)
	}
	sess := resp.Session()
	if !sess.Valid() {
		return session.AuthSession{}, fmt.Errorf("login: %w: no access token", ErrMalformedBody)
	}
	return sess, nil
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, reg Registration) error {
	if err := reg.Validate(); err != nil {
		return err
	}
	reg.Email = strings.TrimSpace(reg.Email)

	data, err := json.Marshal(reg)
	if err != nil {
		return fmt.Errorf("marshal registration: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, RegisterPath, data)
	if err != nil {
		return err
	}
	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	return nil
}
