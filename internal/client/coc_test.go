package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"clanchecker/service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTokens struct {
	token       string
	invalidated atomic.Int32
}

func (c *countingTokens) Token(ctx context.Context) (string, error) { return c.token, nil }
func (c *countingTokens) Invalidate()                               { c.invalidated.Add(1) }

func newTestClient(t *testing.T, handler http.HandlerFunc, breakerFailures uint32) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(Config{
		BaseURL:            srv.URL + "/v1",
		Tokens:             StaticToken("test-token"),
		BreakerMaxFailures: breakerFailures,
		BreakerOpenTimeout: time.Minute,
	})
	return c, srv
}

func TestFetchPlayer_Success(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/players/%23P1", r.URL.EscapedPath())
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Write([]byte(`{"tag":"#P1","name":"Ash","townHallLevel":13,"clan":{"tag":"#C1","name":"Acme"}}`))
	}, 0)

	player, err := c.FetchPlayer(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, "Ash", player.Name)
	assert.Equal(t, 13, player.TownHallLevel)
	require.NotNil(t, player.Clan)
	assert.Equal(t, "#C1", player.Clan.Tag)
	assert.Equal(t, "Acme", player.Clan.Name)
}

func TestFetchPlayer_Failures(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		wantNotFound bool
	}{
		{"http not found", http.StatusNotFound, `{"reason":"notFound"}`, true},
		{"not found reason in body", http.StatusOK, `{"reason":"notFound","message":"no such player"}`, true},
		{"empty body", http.StatusOK, ``, false},
		{"malformed body", http.StatusOK, `{"name":`, false},
		{"missing name", http.StatusOK, `{"tag":"#P1"}`, false},
		{"server error", http.StatusInternalServerError, `{"reason":"unknownException"}`, false},
		{"rate limited", http.StatusTooManyRequests, `{"reason":"requestThrottled"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}, 0)

			player, err := c.FetchPlayer(context.Background(), "#P1")
			assert.Nil(t, player)
			require.Error(t, err)
			assert.Equal(t, tt.wantNotFound, errors.Is(err, ErrPlayerNotFound))
		})
	}
}

func TestFetchPlayer_EmptyTag(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty tag")
	}, 0)

	_, err := c.FetchPlayer(context.Background(), "  ")
	assert.Error(t, err)
}

func TestFetchPlayer_ForbiddenInvalidatesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"reason":"accessDenied.invalidIp"}`))
	}))
	defer srv.Close()

	tokens := &countingTokens{token: "stale"}
	c := NewClient(Config{BaseURL: srv.URL, Tokens: tokens})

	_, err := c.FetchPlayer(context.Background(), "#P1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAccessDenied))
	assert.Equal(t, int32(1), tokens.invalidated.Load())
}

func TestFetchPlayer_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Tokens: StaticToken("t")})
	_, err := c.FetchPlayer(context.Background(), "#P1")
	assert.Error(t, err)
}

func TestLookup_FoldsFailures(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}, 0)

	res := c.Lookup(context.Background(), "#P1")

	assert.Equal(t, models.LookupUnavailable, res.Status)
	assert.Nil(t, res.Player)
	assert.Error(t, res.Err)
}

func TestLookup_Found(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tag":"#P1","name":"Ash"}`))
	}, 5)

	res := c.Lookup(context.Background(), "#P1")

	assert.Equal(t, models.LookupFound, res.Status)
	require.NotNil(t, res.Player)
	assert.Equal(t, "Ash", res.Player.Name)
	assert.NoError(t, res.Err)
}

func TestLookup_BreakerOpens(t *testing.T) {
	var hits atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, 2)

	for i := 0; i < 5; i++ {
		res := c.Lookup(context.Background(), "#P1")
		assert.Equal(t, models.LookupUnavailable, res.Status)
	}

	assert.Equal(t, int32(2), hits.Load(), "breaker should stop calls after two consecutive failures")
}

func TestLookup_NotFoundDoesNotTripBreaker(t *testing.T) {
	var hits atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}, 2)

	for i := 0; i < 4; i++ {
		c.Lookup(context.Background(), "#P1")
	}

	assert.Equal(t, int32(4), hits.Load())
}

func TestAuthenticate(t *testing.T) {
	ok := NewClient(Config{BaseURL: "http://unused", Tokens: StaticToken("t")})
	assert.NoError(t, ok.Authenticate(context.Background()))

	empty := NewClient(Config{BaseURL: "http://unused", Tokens: StaticToken("")})
	err := empty.Authenticate(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoCredentials))

	none := NewClient(Config{BaseURL: "http://unused"})
	assert.Error(t, none.Authenticate(context.Background()))
}
