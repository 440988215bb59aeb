package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

const (
	// DefaultUserInfoURL is Google's OAuth2 userinfo endpoint.
	DefaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	// DefaultTokenInfoURL is Google's access token introspection endpoint.
	DefaultTokenInfoURL = "https://www.googleapis.com/oauth2/v3/tokeninfo"

	cacheTTL      = 5 * time.Minute
	cacheSweepLen = 1024
)

// GoogleUserInfo is the userinfo payload returned by Google.
type GoogleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	HD            string `json:"hd"` // Hosted domain (GSuite domain)
}

type tokenInfo struct {
	Aud string `json:"aud"`
	Azp string `json:"azp"`
}

// GoogleConfig configures a GoogleVerifier.
type GoogleConfig struct {
	// ClientID, when set, must match the token's audience.
	ClientID string
	// AllowedDomain, when set, must match the account's hosted domain.
	AllowedDomain string
	UserInfoURL   string
	TokenInfoURL  string
	HTTPClient    *http.Client
	Now           func() time.Time
}

type cachedIdentity struct {
	id      Identity
	expires time.Time
}

// GoogleVerifier validates Google OAuth access tokens against the userinfo
// endpoint. Verified identities are cached for five minutes.
type GoogleVerifier struct {
	cfg GoogleConfig

	mu    sync.Mutex
	cache map[string]cachedIdentity
}

// NewGoogleVerifier creates a verifier.
func NewGoogleVerifier(cfg GoogleConfig) *GoogleVerifier {
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = DefaultUserInfoURL
	}
	if cfg.TokenInfoURL == "" {
		cfg.TokenInfoURL = DefaultTokenInfoURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &GoogleVerifier{cfg: cfg, cache: make(map[string]cachedIdentity)}
}

// Verify resolves token to the Google account that owns it.
func (g *GoogleVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	key := cacheKey(token)
	if id, ok := g.cached(key); ok {
		return id, nil
	}

	// The oauth2 transport attaches the bearer header to every call.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.cfg.HTTPClient)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))

	var info GoogleUserInfo
	if err := getJSON(ctx, client, g.cfg.UserInfoURL, &info); err != nil {
		return nil, err
	}
	if info.ID == "" || info.Email == "" {
		return nil, fmt.Errorf("%w: userinfo has no account", ErrUnauthorized)
	}
	if g.cfg.AllowedDomain != "" && !strings.EqualFold(info.HD, g.cfg.AllowedDomain) {
		return nil, fmt.Errorf("%w: domain %q not allowed", ErrUnauthorized, info.HD)
	}
	if g.cfg.ClientID != "" {
		var ti tokenInfo
		u := g.cfg.TokenInfoURL + "?access_token=" + url.QueryEscape(token)
		if err := getJSON(ctx, g.cfg.HTTPClient, u, &ti); err != nil {
			return nil, err
		}
		if ti.Aud != g.cfg.ClientID && ti.Azp != g.cfg.ClientID {
			return nil, fmt.Errorf("%w: token issued to another client", ErrUnauthorized)
		}
	}

	id := Identity{UserID: info.ID, Email: info.Email, Name: info.Name, Domain: info.HD}
	g.store(key, id)
	return &id, nil
}

func (g *GoogleVerifier) cached(key string) (*Identity, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.cache[key]
	if !ok {
		return nil, false
	}
	if g.cfg.Now().After(c.expires) {
		delete(g.cache, key)
		return nil, false
	}
	id := c.id
	return &id, true
}

func (g *GoogleVerifier) store(key string, id Identity) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.cfg.Now()
	if len(g.cache) >= cacheSweepLen {
		for k, c := range g.cache {
			if now.After(c.expires) {
				delete(g.cache, k)
			}
		}
	}
	g.cache[key] = cachedIdentity{id: id, expires: now.Add(cacheTTL)}
}

func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func getJSON(ctx context.Context, client *http.Client, u string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("google request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("read google response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusBadRequest:
		return ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("google API error: status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("parse google response: %w", err)
	}
	return nil
}
