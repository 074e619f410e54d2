package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hexagram/internal/profile"
	"github.com/roach88/hexagram/internal/session"
)

var testSession = session.AuthSession{AccessToken: "tok-123"}

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", srv.Client())
}

func TestFetchProfile(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, ProfilePath, r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"displayName":"B","age":42,"region":null,"vip":true,"tags":["x"],"paidLevel":"pro"}`)
	})

	remote, err := c.FetchProfile(context.Background(), testSession)
	require.NoError(t, err)
	assert.Equal(t, profile.Remote{
		profile.FieldDisplayName: "B",
		profile.FieldAge:         "42",
		profile.FieldPaidLevel:   "pro",
	}, remote)
}

func TestFetchProfile_TokenType(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Token abc", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{}`)
	})

	remote, err := c.FetchProfile(context.Background(), session.AuthSession{AccessToken: "abc", TokenType: "Token"})
	require.NoError(t, err)
	assert.Empty(t, remote)
}

func TestFetchProfile_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{"server error", 500, `{"message":"db down"}`, func(t *testing.T, err error) {
			assert.True(t, IsStatus(err, 500))
			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, "db down", se.Message)
		}},
		{"unauthorized", 401, ``, func(t *testing.T, err error) {
			assert.True(t, IsStatus(err, 401))
		}},
		{"not json", 200, `<html>`, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrMalformedBody)
		}},
		{"array", 200, `[1,2]`, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrMalformedBody)
		}},
		{"null", 200, `null`, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrMalformedBody)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.FetchProfile(context.Background(), testSession)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestFetchProfile_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c := NewClient(srv.URL, nil)
	srv.Close()

	_, err := c.FetchProfile(context.Background(), testSession)
	assert.Error(t, err)
}

func TestFetchProfile_Canceled(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchProfile(ctx, testSession)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPushProfile(t *testing.T) {
	var got map[string]string
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `not even json`)
	})

	err := c.PushProfile(context.Background(), testSession, map[string]string{"displayName": "Alice", "region": "CN"})
	require.NoError(t, err, "success body is ignored")
	assert.Equal(t, map[string]string{"displayName": "Alice", "region": "CN"}, got)
}

func TestPushProfile_ServerError(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	err := c.PushProfile(context.Background(), testSession, map[string]string{})
	assert.True(t, IsStatus(err, 500))
}

func TestRequestIDHeader(t *testing.T) {
	var got []string
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get(RequestIDHeader))
		if r.Method == http.MethodGet {
			_, _ = io.WriteString(w, `{}`)
		}
	})

	ctx := WithRequestID(context.Background(), "req-1")
	_, err := c.FetchProfile(ctx, testSession)
	require.NoError(t, err)
	require.NoError(t, c.PushProfile(ctx, testSession, map[string]string{"region": "JP"}))
	_, err = c.FetchProfile(context.Background(), testSession)
	require.NoError(t, err)

	assert.Equal(t, []string{"req-1", "req-1", ""}, got)
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Empty(t, RequestID(context.Background()))
}
