package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"clanchecker/service/internal/metrics"
	"clanchecker/service/internal/models"
	"clanchecker/service/internal/tag"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

var (
	// ErrPlayerNotFound is returned when the API has no player for a tag
	ErrPlayerNotFound = errors.New("player not found")
	// ErrAccessDenied is returned when the API rejects the credentials
	ErrAccessDenied = errors.New("API access denied")
)

// Config holds Clash of Clans client configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
	Tokens  TokenSource

	// BreakerMaxFailures consecutive failures open the breaker; 0 disables it
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration

	HTTPClient *http.Client
}

// Client is the Clash of Clans API client
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewClient creates a new Clash of Clans API client
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		tokens:     cfg.Tokens,
		httpClient: httpClient,
	}

	if cfg.BreakerMaxFailures > 0 {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "coc-players",
			Timeout: cfg.BreakerOpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.BreakerMaxFailures
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrPlayerNotFound)
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				log.Warn().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("Circuit breaker state changed")
			},
		})
	}

	return c
}

// Authenticate resolves an API token, logging in to the developer portal if needed
func (c *Client) Authenticate(ctx context.Context) error {
	if c.tokens == nil {
		return ErrNoCredentials
	}
	if _, err := c.tokens.Token(ctx); err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}
	return nil
}

// get performs an authenticated GET request against the game API
func (c *Client) get(ctx context.Context, endpoint, path string) ([]byte, error) {
	if c.tokens == nil {
		return nil, ErrNoCredentials
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get API token: %w", err)
	}

	reqURL := fmt.Sprintf("%s/%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	log.Debug().
		Str("url", reqURL).
		Str("method", req.Method).
		Msg("Making API request")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordAPICall(endpoint, "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	metrics.RecordAPICall(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		log.Debug().
			Str("url", reqURL).
			Int("status", resp.StatusCode).
			Int("size", len(body)).
			Msg("API request successful")
		return body, nil

	case http.StatusNotFound:
		return nil, ErrPlayerNotFound

	case http.StatusForbidden, http.StatusUnauthorized:
		// Keys are bound to an IP; a rejected key is dropped so the next call logs in again
		c.tokens.Invalidate()
		return nil, fmt.Errorf("%w (status %d): %s", ErrAccessDenied, resp.StatusCode, string(body))

	default:
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}
}

// FetchPlayer fetches a single player by tag
func (c *Client) FetchPlayer(ctx context.Context, playerTag string) (*models.Player, error) {
	normalized := tag.Normalize(playerTag)
	if normalized == "" {
		return nil, fmt.Errorf("failed to fetch player: empty tag")
	}

	body, err := c.get(ctx, "players", "players/"+url.PathEscape(normalized))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch player %s: %w", normalized, err)
	}

	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, fmt.Errorf("failed to fetch player %s: empty response body", normalized)
	}

	var input models.PlayerInput
	if err := json.Unmarshal(body, &input); err != nil {
		return nil, fmt.Errorf("failed to unmarshal player %s: %w", normalized, err)
	}

	if input.Reason == "notFound" {
		return nil, fmt.Errorf("failed to fetch player %s: %w", normalized, ErrPlayerNotFound)
	}
	if input.Name == "" {
		return nil, fmt.Errorf("failed to fetch player %s: response has no name", normalized)
	}

	return input.ToPlayer(), nil
}
