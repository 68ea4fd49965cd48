package facebook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/picvault/picvault/internal/apperr"
	"github.com/picvault/picvault/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClientConfig() *config.FacebookConfig {
	return &config.FacebookConfig{
		AppID:       "app123",
		AppSecret:   "secret456",
		RedirectURI: "http://localhost:8000/api/callback",
		Scope:       "public_profile",
		Timeout:     2 * time.Second,
	}
}

func TestLoginURL(t *testing.T) {
	cfg := testClientConfig()
	client := NewClient(cfg)

	loginURL := client.LoginURL()

	parsed, err := url.Parse(loginURL)
	require.NoError(t, err)

	q := parsed.Query()
	assert.Equal(t, "app123", q.Get("client_id"))
	assert.Equal(t, "http://localhost:8000/api/callback", q.Get("redirect_uri"))
	assert.Equal(t, "public_profile", q.Get("scope"))
	assert.Equal(t, "code", q.Get("response_type"))
	// The legacy flow carries no CSRF state.
	assert.False(t, q.Has("state"))
}

func TestLoginURLIsDeterministic(t *testing.T) {
	client := NewClient(testClientConfig())
	assert.Equal(t, client.LoginURL(), client.LoginURL())
}

func TestExchangeCode(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "tok1", "token_type": "bearer", "expires_in": 5183944}`))
	}))
	defer ts.Close()

	cfg := testClientConfig()
	cfg.TokenURL = ts.URL + "/oauth/access_token"
	client := NewClient(cfg)

	token, err := client.ExchangeCode(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "tok1", token)
}

func TestExchangeCodeUpstreamFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "boom"}}`))
	}))
	defer ts.Close()

	cfg := testClientConfig()
	cfg.TokenURL = ts.URL + "/oauth/access_token"
	client := NewClient(cfg)

	_, err := client.ExchangeCode(context.Background(), "abc123")
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
}

func TestExchangeCodeTransportFailure(t *testing.T) {
	cfg := testClientConfig()
	// Nothing listens here.
	cfg.TokenURL = "http://127.0.0.1:1/oauth/access_token"
	client := NewClient(cfg)

	_, err := client.ExchangeCode(context.Background(), "abc123")
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
}

func TestExchangeCodeMissingAccessToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token_type": "bearer"}`))
	}))
	defer ts.Close()

	cfg := testClientConfig()
	cfg.TokenURL = ts.URL + "/oauth/access_token"
	client := NewClient(cfg)

	_, err := client.ExchangeCode(context.Background(), "abc123")
	require.Error(t, err)
	assert.Equal(t, apperr.KindProtocol, apperr.KindOf(err))
}

func TestProfilePictureURL(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/picture", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "large", q.Get("type"))
		assert.Equal(t, "false", q.Get("redirect"))
		assert.Equal(t, "tok1", q.Get("access_token"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": {"url": "http://img/x.jpg", "width": 200, "height": 200, "is_silhouette": false}}`))
	}))
	defer ts.Close()

	cfg := testClientConfig()
	cfg.GraphURL = ts.URL
	client := NewClient(cfg)

	pictureURL, err := client.ProfilePictureURL(context.Background(), "tok1")
	require.NoError(t, err)
	assert.Equal(t, "http://img/x.jpg", pictureURL)
}

func TestProfilePictureURLDoesNotFollowRedirects(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://img/x.jpg", http.StatusFound)
	}))
	defer ts.Close()

	cfg := testClientConfig()
	cfg.GraphURL = ts.URL
	client := NewClient(cfg)

	// A redirect answer means the metadata request was not honored; the
	// client must treat it as an upstream failure, not chase the image.
	_, err := client.ProfilePictureURL(context.Background(), "tok1")
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
}

func TestProfilePictureURLMissingField(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": {"width": 200}}`))
	}))
	defer ts.Close()

	cfg := testClientConfig()
	cfg.GraphURL = ts.URL
	client := NewClient(cfg)

	_, err := client.ProfilePictureURL(context.Background(), "tok1")
	require.Error(t, err)
	assert.Equal(t, apperr.KindProtocol, apperr.KindOf(err))
}

func TestProfilePictureURLUpstreamFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	cfg := testClientConfig()
	cfg.GraphURL = ts.URL
	client := NewClient(cfg)

	_, err := client.ProfilePictureURL(context.Background(), "tok1")
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
}

func TestDownloadImage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("123456789"))
	}))
	defer ts.Close()

	client := NewClient(testClientConfig())

	data, err := client.DownloadImage(context.Background(), ts.URL+"/x.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("123456789"), data)
}

func TestDownloadImageUpstreamFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	client := NewClient(testClientConfig())

	_, err := client.DownloadImage(context.Background(), ts.URL+"/missing.jpg")
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
}
