package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultTwitchAuthURL = "https://id.twitch.tv"
	DefaultTwitchAPIURL  = "https://api.twitch.tv"

	tokenRefreshMargin = time.Minute
)

type TwitchConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	APIURL       string
	UserAgent    string
}

// TwitchClient reads live streams with an app access token. The token is
// cached until shortly before it expires and refreshed on a 401.
type TwitchClient struct {
	fetcher
	cfg TwitchConfig

	mu    sync.Mutex
	token *Token
	group singleflight.Group
	now   func() time.Time
}

func NewTwitchClient(httpClient *http.Client, cfg TwitchConfig) *TwitchClient {
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultTwitchAuthURL
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultTwitchAPIURL
	}
	cfg.AuthURL = strings.TrimSuffix(cfg.AuthURL, "/")
	cfg.APIURL = strings.TrimSuffix(cfg.APIURL, "/")

	return &TwitchClient{
		fetcher: newFetcher(httpClient, cfg.UserAgent, nil),
		cfg:     cfg,
		now:     time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// GetAccessToken returns a valid app access token and its expiry. Concurrent
// callers share a single refresh.
func (c *TwitchClient) GetAccessToken(ctx context.Context) (Token, error) {
	c.mu.Lock()
	if c.token != nil && c.now().Add(tokenRefreshMargin).Before(c.token.ExpiresAt) {
		token := *c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do("token", func() (any, error) {
		return c.fetchToken(ctx)
	})
	if err != nil {
		return Token{}, err
	}
	return v.(Token), nil
}

func (c *TwitchClient) fetchToken(ctx context.Context) (Token, error) {
	query := url.Values{
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"grant_type":    {"client_credentials"},
	}

	data, err := c.do(ctx, http.MethodPost, c.cfg.AuthURL+"/oauth2/token?"+query.Encode(), nil, nil)
	if err != nil {
		return Token{}, fmt.Errorf("failed to get twitch token: %w", err)
	}

	var resp tokenResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return Token{}, fmt.Errorf("failed to decode twitch token: %w", err)
	}
	if resp.AccessToken == "" {
		return Token{}, fmt.Errorf("twitch token response has no access token")
	}

	token := Token{
		AccessToken: resp.AccessToken,
		ExpiresAt:   c.now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}
	c.mu.Lock()
	c.token = &token
	c.mu.Unlock()

	slog.Info("Twitch token refreshed", "expires_in", resp.ExpiresIn)
	return token, nil
}

func (c *TwitchClient) invalidateToken() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()
}

type streamsResponse struct {
	Data []Stream `json:"data"`
}

// GetLiveStream returns the user's live stream, or nil when the user is not
// live.
func (c *TwitchClient) GetLiveStream(ctx context.Context, userID string) (*Stream, error) {
	stream, err := c.getLiveStream(ctx, userID)
	if IsStatus(err, http.StatusUnauthorized) {
		slog.Warn("Twitch token rejected, refreshing", "user_id", userID)
		c.invalidateToken()
		stream, err = c.getLiveStream(ctx, userID)
	}
	return stream, err
}

func (c *TwitchClient) getLiveStream(ctx context.Context, userID string) (*Stream, error) {
	token, err := c.GetAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{
		"user_id": {userID},
		"type":    {"live"},
	}

	header := http.Header{}
	header.Set("Client-Id", c.cfg.ClientID)
	header.Set("Authorization", "Bearer "+token.AccessToken)

	var resp streamsResponse
	if err := c.getJSON(ctx, c.cfg.APIURL+"/helix/streams?"+query.Encode(), header, &resp); err != nil {
		return nil, fmt.Errorf("failed to get stream of user %s: %w", userID, err)
	}

	if len(resp.Data) == 0 {
		return nil, nil
	}
	return &resp.Data[0], nil
}
