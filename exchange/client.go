// Package exchange implements the OAuth token endpoint client: exchanging an
// authorization code for tokens and renewing them with a refresh token.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultRequestTimeout    = 30 * time.Second
	maxTokenResponseBodyBytes = 1 << 20 // 1 MiB
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	TokenURL       string
	ClientID       string
	ClientSecret   string
	RequestTimeout time.Duration
	HTTPClient     HTTPDoer
	Now            func() time.Time
}

// Client posts form-encoded grants to one deployment's token endpoint.
// Client id and secret travel in the request body.
type Client struct {
	cfg        Config
	httpClient HTTPDoer
}

// Token is the parsed token endpoint response. ExpiresAt is computed from
// expires_in against the injected clock; nil when the provider omits it.
type Token struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    *time.Time
}

type tokenPayload struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int64  `json:"expires_in"`
	ErrorCode        string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func NewClient(cfg Config) (*Client, error) {
	cfg.TokenURL = strings.TrimSpace(cfg.TokenURL)
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.ClientSecret = strings.TrimSpace(cfg.ClientSecret)
	if cfg.TokenURL == "" {
		return nil, fmt.Errorf("exchange: token url is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("exchange: client id is required")
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("exchange: client secret is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &Client{cfg: cfg, httpClient: httpClient}, nil
}

// ExchangeCode performs the authorization_code grant for the code captured on
// the local redirect.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (Token, error) {
	if c == nil {
		return Token{}, fmt.Errorf("exchange: client is nil")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return Token{}, fmt.Errorf("exchange: authorization code is required")
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	if redirectURI = strings.TrimSpace(redirectURI); redirectURI != "" {
		form.Set("redirect_uri", redirectURI)
	}
	return c.fetchToken(ctx, form)
}

// Refresh performs the refresh_token grant.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (Token, error) {
	if c == nil {
		return Token{}, fmt.Errorf("exchange: client is nil")
	}
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return Token{}, fmt.Errorf("exchange: refresh token is required")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	return c.fetchToken(ctx, form)
}

func (c *Client) fetchToken(ctx context.Context, form url.Values) (Token, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)

	requestCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(
		requestCtx,
		http.MethodPost,
		c.cfg.TokenURL,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return Token{}, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrTokenExchange, err)
	}
	defer response.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxTokenResponseBodyBytes+1))
	if readErr != nil {
		return Token{}, fmt.Errorf("%w: read response: %v", ErrTokenExchange, readErr)
	}
	if int64(len(body)) > maxTokenResponseBodyBytes {
		return Token{}, fmt.Errorf("%w: response exceeds %d bytes", ErrTokenExchange, maxTokenResponseBodyBytes)
	}

	var payload tokenPayload
	if unmarshalErr := json.Unmarshal(body, &payload); unmarshalErr != nil && len(strings.TrimSpace(string(body))) > 0 {
		payload = tokenPayload{}
	}

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return Token{}, &ExchangeError{
			StatusCode:  response.StatusCode,
			ErrorCode:   payload.ErrorCode,
			Description: payload.ErrorDescription,
			Body:        strings.TrimSpace(string(body)),
		}
	}
	if strings.TrimSpace(payload.ErrorCode) != "" {
		return Token{}, &ExchangeError{
			StatusCode:  response.StatusCode,
			ErrorCode:   payload.ErrorCode,
			Description: payload.ErrorDescription,
		}
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return Token{}, &ExchangeError{
			StatusCode:  response.StatusCode,
			Description: "response missing access_token",
			Body:        strings.TrimSpace(string(body)),
		}
	}

	return Token{
		AccessToken:  strings.TrimSpace(payload.AccessToken),
		RefreshToken: strings.TrimSpace(payload.RefreshToken),
		TokenType:    normalizeTokenType(payload.TokenType),
		ExpiresAt:    c.resolveExpiresAt(payload.ExpiresIn),
	}, nil
}

func (c *Client) resolveExpiresAt(expiresIn int64) *time.Time {
	if expiresIn <= 0 {
		return nil
	}
	expiresAt := c.cfg.Now().UTC().Add(time.Duration(expiresIn) * time.Second)
	return &expiresAt
}

func normalizeTokenType(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "bearer"
	}
	return normalized
}
