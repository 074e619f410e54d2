package devserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/hexagram/internal/gateway"
)

func newTestServer(t *testing.T, opts ...Option) (*Server, *httptest.Server) {
	t.Helper()
	s, err := New("test-secret", append([]Option{WithBcryptCost(bcrypt.MinCost)}, opts...)...)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return s, ts
}

func call(t *testing.T, method, url, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func register(t *testing.T, base, email, password string) {
	t.Helper()
	resp, _ := call(t, http.MethodPost, base+gateway.RegisterPath, "", gateway.Registration{
		Email: email, Password: password, ConfirmPassword: password,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func login(t *testing.T, base, email, password string) gateway.TokenResponse {
	t.Helper()
	resp, body := call(t, http.MethodPost, base+gateway.LoginPath, "", gateway.Credentials{Email: email, Password: password})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var tok gateway.TokenResponse
	require.NoError(t, json.Unmarshal(body, &tok))
	return tok
}

func TestNew_RequiresSecret(t *testing.T) {
	_, err := New("  ")
	assert.Error(t, err)
}

func TestRegisterLoginProfileRoundTrip(t *testing.T) {
	s, ts := newTestServer(t)
	register(t, ts.URL, "ada@example.com", "hunter22")

	tok := login(t, ts.URL, "ADA@example.com", "hunter22")
	assert.NotEmpty(t, tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Equal(t, "ada@example.com", tok.Email)
	assert.Equal(t, []string{"user"}, tok.Roles)
	assert.NotEmpty(t, tok.UserID)

	resp, body := call(t, http.MethodGet, ts.URL+gateway.ProfilePath, tok.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{}`, string(body))

	resp, _ = call(t, http.MethodPut, ts.URL+gateway.ProfilePath, tok.AccessToken, map[string]any{"region": "CN", "age": 30})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = call(t, http.MethodPut, ts.URL+gateway.ProfilePath, tok.AccessToken, map[string]any{"region": "JP"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = call(t, http.MethodGet, ts.URL+gateway.ProfilePath, tok.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"region":"JP","age":30}`, string(body))
	assert.Equal(t, "JP", s.Profile(tok.UserID)["region"])
}

func TestRegister_Rejections(t *testing.T) {
	_, ts := newTestServer(t)
	register(t, ts.URL, "ada@example.com", "pw")

	resp, _ := call(t, http.MethodPost, ts.URL+gateway.RegisterPath, "", gateway.Registration{
		Email: "Ada@Example.com", Password: "pw", ConfirmPassword: "pw",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = call(t, http.MethodPost, ts.URL+gateway.RegisterPath, "", gateway.Registration{
		Email: "bob@example.com", Password: "pw", ConfirmPassword: "other",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = call(t, http.MethodPost, ts.URL+gateway.RegisterPath, "", "not an object")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLogin_Rejections(t *testing.T) {
	_, ts := newTestServer(t)
	register(t, ts.URL, "ada@example.com", "pw")

	resp, _ := call(t, http.MethodPost, ts.URL+gateway.LoginPath, "", gateway.Credentials{Email: "ada@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = call(t, http.MethodPost, ts.URL+gateway.LoginPath, "", gateway.Credentials{Email: "nobody@example.com", Password: "pw"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = call(t, http.MethodPost, ts.URL+gateway.LoginPath, "", gateway.Credentials{Email: "ada@example.com"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProfile_RequiresValidToken(t *testing.T) {
	_, ts := newTestServer(t)
	register(t, ts.URL, "ada@example.com", "pw")
	tok := login(t, ts.URL, "ada@example.com", "pw")

	other, err := New("other-secret")
	require.NoError(t, err)
	forged, err := issueToken(user{ID: tok.UserID, Email: tok.Email}, other.secret, time.Now(), time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "not-a-jwt"},
		{"tampered", tok.AccessToken + "x"},
		{"wrong secret", forged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := call(t, http.MethodGet, ts.URL+gateway.ProfilePath, tt.token, nil)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestProfile_ExpiredToken(t *testing.T) {
	_, ts := newTestServer(t, WithTokenTTL(-time.Minute))
	register(t, ts.URL, "ada@example.com", "pw")
	tok := login(t, ts.URL, "ada@example.com", "pw")

	resp, _ := call(t, http.MethodGet, ts.URL+gateway.ProfilePath, tok.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSeedProfile(t *testing.T) {
	s, ts := newTestServer(t)
	assert.Error(t, s.SeedProfile("ghost@example.com", nil))

	register(t, ts.URL, "ada@example.com", "pw")
	require.NoError(t, s.SeedProfile("ada@example.com", map[string]any{"displayName": "Ada"}))
	tok := login(t, ts.URL, "ada@example.com", "pw")

	_, body := call(t, http.MethodGet, ts.URL+gateway.ProfilePath, tok.AccessToken, nil)
	assert.JSONEq(t, `{"displayName":"Ada"}`, string(body))
}
