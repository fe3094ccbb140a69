package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// maxKeysPerAccount is the developer portal's per-account key limit
const maxKeysPerAccount = 10

var (
	// ErrNoCredentials is returned when no token or login is configured
	ErrNoCredentials = errors.New("no API credentials configured")
	// ErrLoginFailed is returned when the developer portal rejects the login
	ErrLoginFailed = errors.New("developer portal login failed")
)

// TokenSource supplies bearer tokens for the game API
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	// Invalidate drops a cached token after the API rejected it
	Invalidate()
}

// StaticToken is a fixed API token taken from configuration
type StaticToken string

// Token returns the configured token
func (t StaticToken) Token(ctx context.Context) (string, error) {
	if t == "" {
		return "", ErrNoCredentials
	}
	return string(t), nil
}

// Invalidate is a no-op; a static token cannot be renewed
func (t StaticToken) Invalidate() {}

// DeveloperLogin obtains an API key for the caller's current IP through the
// developer portal, reusing an existing key when one already covers that IP.
type DeveloperLogin struct {
	baseURL    string
	email      string
	password   string
	keyName    string
	httpClient *http.Client

	mu  sync.Mutex
	key string
}

type apiKey struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Key        string   `json:"key"`
	CIDRRanges []string `json:"cidrRanges"`
}

type loginResponse struct {
	TemporaryAPIToken string `json:"temporaryAPIToken"`
}

type keyListResponse struct {
	Keys []apiKey `json:"keys"`
}

type keyCreateResponse struct {
	Key apiKey `json:"key"`
}

// NewDeveloperLogin creates a developer portal token source
func NewDeveloperLogin(baseURL, email, password, keyName string, timeout time.Duration) *DeveloperLogin {
	jar, _ := cookiejar.New(nil)

	return &DeveloperLogin{
		baseURL:  strings.TrimRight(baseURL, "/"),
		email:    email,
		password: password,
		keyName:  keyName,
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
	}
}

// Token returns the cached key, logging in to obtain one if needed
func (d *DeveloperLogin) Token(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.key != "" {
		return d.key, nil
	}
	if d.email == "" || d.password == "" {
		return "", ErrNoCredentials
	}

	key, err := d.obtainKey(ctx)
	if err != nil {
		return "", err
	}
	d.key = key
	return key, nil
}

// Invalidate forgets the cached key
func (d *DeveloperLogin) Invalidate() {
	d.mu.Lock()
	d.key = ""
	d.mu.Unlock()
}

func (d *DeveloperLogin) obtainKey(ctx context.Context) (string, error) {
	var login loginResponse
	if err := d.post(ctx, "/api/login", map[string]string{
		"email":    d.email,
		"password": d.password,
	}, &login); err != nil {
		return "", fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}

	ip, err := clientIP(login.TemporaryAPIToken)
	if err != nil {
		return "", fmt.Errorf("failed to determine client IP: %w", err)
	}

	var list keyListResponse
	if err := d.post(ctx, "/api/apikey/list", struct{}{}, &list); err != nil {
		return "", fmt.Errorf("failed to list API keys: %w", err)
	}

	for _, k := range list.Keys {
		if coversIP(k.CIDRRanges, ip) {
			log.Info().
				Str("key_name", k.Name).
				Str("ip", ip).
				Msg("Reusing existing API key")
			return k.Key, nil
		}
	}

	if len(list.Keys) >= maxKeysPerAccount {
		if err := d.revokeOwnKey(ctx, list.Keys); err != nil {
			return "", err
		}
	}

	var created keyCreateResponse
	if err := d.post(ctx, "/api/apikey/create", map[string]interface{}{
		"name":        d.keyName,
		"description": fmt.Sprintf("Created %s for %s", time.Now().UTC().Format(time.RFC3339), ip),
		"cidrRanges":  []string{ip},
		"scopes":      []string{"clash"},
	}, &created); err != nil {
		return "", fmt.Errorf("failed to create API key: %w", err)
	}
	if created.Key.Key == "" {
		return "", fmt.Errorf("failed to create API key: empty key in response")
	}

	log.Info().
		Str("key_name", d.keyName).
		Str("ip", ip).
		Msg("Created API key")

	return created.Key.Key, nil
}

// revokeOwnKey frees a slot by revoking a key previously created under keyName
func (d *DeveloperLogin) revokeOwnKey(ctx context.Context, keys []apiKey) error {
	for _, k := range keys {
		if k.Name != d.keyName {
			continue
		}
		if err := d.post(ctx, "/api/apikey/revoke", map[string]string{"id": k.ID}, nil); err != nil {
			return fmt.Errorf("failed to revoke API key: %w", err)
		}
		log.Info().Str("key_id", k.ID).Msg("Revoked stale API key")
		return nil
	}
	return fmt.Errorf("API key limit reached and no key named %q to revoke", d.keyName)
}

func (d *DeveloperLogin) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, string(body))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s response: %w", path, err)
	}
	return nil
}

// clientIP reads the caller IP the portal embedded in the temporary token.
// The token is only inspected, never trusted for authorization.
func clientIP(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("login response has no temporary token")
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("failed to parse temporary token: %w", err)
	}

	limits, _ := claims["limits"].([]interface{})
	for _, l := range limits {
		limit, ok := l.(map[string]interface{})
		if !ok || limit["type"] != "client" {
			continue
		}
		cidrs, _ := limit["cidrs"].([]interface{})
		for _, c := range cidrs {
			if s, ok := c.(string); ok && s != "" {
				return strings.TrimSuffix(s, "/32"), nil
			}
		}
	}

	return "", fmt.Errorf("temporary token has no client CIDR")
}

func coversIP(cidrs []string, ip string) bool {
	for _, c := range cidrs {
		if c == ip || c == ip+"/32" {
			return true
		}
	}
	return false
}
