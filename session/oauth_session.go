// session/oauth_session.go
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/oauth2"
)

// Config holds what is needed to keep an OAuth2 session alive.
type Config struct {
	// Issuer is used for OIDC discovery when TokenURL is empty.
	Issuer   string
	TokenURL string

	ClientID     string
	ClientSecret string // secret-based client authentication
	Scopes       []string

	// RefreshToken seeds the refresh_token grant. Without it renewals use the
	// client_credentials grant.
	RefreshToken string
	// AccessToken optionally seeds the cache; its expiry is read from the JWT.
	AccessToken string

	// ClientCertPath points at a PKCS#12 file used to sign a client assertion
	// instead of sending ClientSecret.
	ClientCertPath     string
	ClientCertPassword string

	HTTPClient *http.Client
}

// tokenResponse represents the JSON structure returned by a token endpoint.
type tokenResponse struct {
	TokenType        string `json:"token_type"`
	ExpiresIn        int    `json:"expires_in"`
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

var (
	ErrNoRefreshCredential = errors.New("session has neither a refresh token nor client credentials")
)

// OAuthSession caches an access token and renews it against a token endpoint.
// It satisfies authbridge.SessionProvider and oauth2.TokenSource.
type OAuthSession struct {
	config   Config
	client   *http.Client
	tokenURL string
	cert     *certificateCredential

	mu           sync.Mutex
	token        *oauth2.Token
	refreshToken string
	now          func() time.Time
}

var _ oauth2.TokenSource = (*OAuthSession)(nil)

// NewOAuthSession validates cfg, discovers the token endpoint from the issuer
// if needed, and loads the client certificate if one is configured.
func NewOAuthSession(ctx context.Context, cfg Config) (*OAuthSession, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, fmt.Errorf("session: client id is required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		if cfg.Issuer == "" {
			return nil, fmt.Errorf("session: token url or issuer is required")
		}
		provider, err := oidc.NewProvider(oidc.ClientContext(ctx, client), cfg.Issuer)
		if err != nil {
			return nil, fmt.Errorf("session: discover issuer %s: %w", cfg.Issuer, err)
		}
		tokenURL = provider.Endpoint().TokenURL
	}

	s := &OAuthSession{
		config:       cfg,
		client:       client,
		tokenURL:     tokenURL,
		refreshToken: cfg.RefreshToken,
		now:          time.Now,
	}

	if cfg.ClientCertPath != "" {
		cert, err := loadCertificate(cfg.ClientCertPath, cfg.ClientCertPassword)
		if err != nil {
			return nil, fmt.Errorf("session: %w", err)
		}
		s.cert = cert
	}

	if cfg.AccessToken != "" {
		s.token = &oauth2.Token{
			AccessToken: cfg.AccessToken,
			TokenType:   "Bearer",
			Expiry:      accessTokenExpiry(cfg.AccessToken),
		}
	}
	return s, nil
}

// TokenURL reports the token endpoint in use.
func (s *OAuthSession) TokenURL() string {
	return s.tokenURL
}

// CurrentToken returns the cached access token if it is still valid, or "".
func (s *OAuthSession) CurrentToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil || !s.token.Valid() {
		return "", nil
	}
	return s.token.AccessToken, nil
}

// RenewToken always contacts the token endpoint.
func (s *OAuthSession) RenewToken(ctx context.Context) (string, error) {
	form, err := s.grantForm()
	if err != nil {
		return "", err
	}
	tok, err := s.doTokenRequest(ctx, form)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.token = tok
	if tok.RefreshToken != "" {
		s.refreshToken = tok.RefreshToken
	}
	s.mu.Unlock()
	return tok.AccessToken, nil
}

// Token implements oauth2.TokenSource: the cached token while valid, a renewed
// one otherwise.
func (s *OAuthSession) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	if s.token != nil && s.token.Valid() {
		tok := *s.token
		s.mu.Unlock()
		return &tok, nil
	}
	s.mu.Unlock()

	if _, err := s.RenewToken(context.Background()); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tok := *s.token
	return &tok, nil
}

func (s *OAuthSession) grantForm() (url.Values, error) {
	s.mu.Lock()
	refresh := s.refreshToken
	s.mu.Unlock()

	form := url.Values{}
	form.Set("client_id", s.config.ClientID)
	if len(s.config.Scopes) > 0 {
		form.Set("scope", strings.Join(s.config.Scopes, " "))
	}

	switch {
	case refresh != "":
		form.Set("grant_type", "refresh_token")
		form.Set("refresh_token", refresh)
	case s.cert != nil || s.config.ClientSecret != "":
		form.Set("grant_type", "client_credentials")
	default:
		return nil, ErrNoRefreshCredential
	}

	if s.cert != nil {
		assertion, err := s.cert.clientAssertion(s.tokenURL, s.config.ClientID, s.now())
		if err != nil {
			return nil, fmt.Errorf("failed to create client assertion: %w", err)
		}
		form.Set("client_assertion_type", "urn:ietf:params:oauth:client-assertion-type:jwt-bearer")
		form.Set("client_assertion", assertion)
	} else if s.config.ClientSecret != "" {
		form.Set("client_secret", s.config.ClientSecret)
	}
	return form, nil
}

// doTokenRequest executes the token request once. Renewal is expected to fail
// fast; the caller decides what a failure means for the session.
func (s *OAuthSession) doTokenRequest(ctx context.Context, form url.Values) (*oauth2.Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}

	var tr tokenResponse
	decodeErr := json.Unmarshal(body, &tr)
	if resp.StatusCode >= 300 {
		// Error bodies are often not JSON; the status is what matters.
		if decodeErr == nil && tr.Error != "" {
			return nil, fmt.Errorf("token request failed: status %d: %s %s", resp.StatusCode, tr.Error, tr.ErrorDescription)
		}
		return nil, fmt.Errorf("token request failed: status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode token response: %w", decodeErr)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("token response has no access_token")
	}

	tok := &oauth2.Token{
		AccessToken:  tr.AccessToken,
		TokenType:    tr.TokenType,
		RefreshToken: tr.RefreshToken,
	}
	if tr.ExpiresIn > 0 {
		tok.Expiry = s.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	} else {
		tok.Expiry = accessTokenExpiry(tr.AccessToken)
	}
	return tok, nil
}

// accessTokenExpiry reads the exp claim of a JWT access token without
// verifying it. Opaque tokens yield the zero time, which oauth2 treats as
// never expiring.
func accessTokenExpiry(accessToken string) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
