// Package facebook implements the OAuth and Graph API client used to turn
// an authorization code into the raw bytes of the user's profile picture.
package facebook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/picvault/picvault/internal/apperr"
	"github.com/picvault/picvault/internal/config"
	"github.com/picvault/picvault/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	fboauth "golang.org/x/oauth2/facebook"
)

const (
	defaultGraphURL = "https://graph.facebook.com/v12.0"
	defaultTimeout  = 10 * time.Second

	// pictureSizeClass is the fixed size class requested from the Graph API.
	pictureSizeClass = "large"
)

// Client talks to Facebook's OAuth and Graph API endpoints. It is safe for
// concurrent use; all state is read-only after construction.
type Client struct {
	oauth    *oauth2.Config
	graphURL string

	// httpClient follows redirects and is used for token exchange and
	// image download. graphClient has redirect-following disabled so the
	// picture endpoint answers with a URL instead of the image itself.
	httpClient  *http.Client
	graphClient *http.Client
}

// NewClient builds a client from configuration. Endpoint overrides in the
// config take precedence over the live Facebook endpoints.
func NewClient(cfg *config.FacebookConfig) *Client {
	endpoint := fboauth.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}

	graphURL := cfg.GraphURL
	if graphURL == "" {
		graphURL = defaultGraphURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.AppID,
			ClientSecret: cfg.AppSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{cfg.Scope},
			Endpoint:     endpoint,
		},
		graphURL:   graphURL,
		httpClient: &http.Client{Timeout: timeout},
		graphClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// LoginURL returns the provider authorization URL the caller is redirected
// to. Pure string construction, no network call.
func (c *Client) LoginURL() string {
	return c.oauth.AuthCodeURL("")
}

// ExchangeCode trades a single-use authorization code for an access token.
func (c *Client) ExchangeCode(ctx context.Context, code string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return "", apperr.Wrap(apperr.KindUpstream,
				fmt.Sprintf("token endpoint returned status %d", retrieveErr.Response.StatusCode), err)
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return "", apperr.Wrap(apperr.KindUpstream, "token endpoint unreachable", err)
		}
		return "", apperr.Wrap(apperr.KindProtocol, "token response missing access token", err)
	}
	if token.AccessToken == "" {
		return "", apperr.New(apperr.KindProtocol, "token response missing access token")
	}

	logger.Debug("exchanged authorization code for access token")
	return token.AccessToken, nil
}

// ProfilePictureURL asks the Graph API for the picture URL at the fixed
// size class. Redirect-following is disabled so the API answers with
// metadata rather than the image.
func (c *Client) ProfilePictureURL(ctx context.Context, token string) (string, error) {
	q := url.Values{}
	q.Set("type", pictureSizeClass)
	q.Set("redirect", "false")
	q.Set("access_token", token)
	endpoint := fmt.Sprintf("%s/me/picture?%s", c.graphURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", apperr.Wrap(apperr.KindUpstream, "building picture request", err)
	}

	resp, err := c.graphClient.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.KindUpstream, "picture endpoint unreachable", err)
	}
	defer closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		return "", apperr.Newf(apperr.KindUpstream, "picture endpoint returned status %d", resp.StatusCode)
	}

	var payload struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", apperr.Wrap(apperr.KindProtocol, "decoding picture response", err)
	}
	if payload.Data.URL == "" {
		return "", apperr.New(apperr.KindProtocol, "picture response missing url field")
	}

	return payload.Data.URL, nil
}

// DownloadImage fetches the image bytes into memory. Nothing touches disk;
// the buffer is handed straight to the object store.
func (c *Client) DownloadImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "building image request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "image host unreachable", err)
	}
	defer closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Newf(apperr.KindUpstream, "image host returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "reading image body", err)
	}

	logger.Debug("downloaded profile picture", zap.Int("bytes", len(data)))
	return data, nil
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		logger.Error("Failed to close response body", zap.Error(err))
	}
}
