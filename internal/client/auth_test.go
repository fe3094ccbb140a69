package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func temporaryToken(t *testing.T, cidr string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "supercell",
		"limits": []interface{}{
			map[string]interface{}{"tier": "developer/bronze", "type": "throttling"},
			map[string]interface{}{"cidrs": []interface{}{cidr}, "type": "client"},
		},
	})
	signed, err := token.SignedString([]byte("portal-secret"))
	require.NoError(t, err)
	return signed
}

type fakePortal struct {
	t        *testing.T
	keys     []apiKey
	loginOK  bool
	created  atomic.Int32
	revoked  atomic.Int32
	logins   atomic.Int32
	clientIP string
}

func (p *fakePortal) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		p.logins.Add(1)
		if !p.loginOK {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"status":{"code":30,"message":"invalid credentials"}}`))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
		json.NewEncoder(w).Encode(map[string]string{"temporaryAPIToken": temporaryToken(p.t, p.clientIP+"/32")})
	})
	mux.HandleFunc("/api/apikey/list", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("session"); err != nil {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		json.NewEncoder(w).Encode(keyListResponse{Keys: p.keys})
	})
	mux.HandleFunc("/api/apikey/create", func(w http.ResponseWriter, r *http.Request) {
		p.created.Add(1)
		var body struct {
			Name       string   `json:"name"`
			CIDRRanges []string `json:"cidrRanges"`
		}
		assert.NoError(p.t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(p.t, []string{p.clientIP}, body.CIDRRanges)
		json.NewEncoder(w).Encode(keyCreateResponse{Key: apiKey{ID: "new", Name: body.Name, Key: "fresh-key"}})
	})
	mux.HandleFunc("/api/apikey/revoke", func(w http.ResponseWriter, r *http.Request) {
		p.revoked.Add(1)
		w.Write([]byte(`{}`))
	})
	return mux
}

func newPortal(t *testing.T, p *fakePortal) *DeveloperLogin {
	p.t = t
	if p.clientIP == "" {
		p.clientIP = "203.0.113.7"
	}
	srv := httptest.NewServer(p.handler())
	t.Cleanup(srv.Close)
	return NewDeveloperLogin(srv.URL, "me@example.com", "secret", "roster-checker", 5*time.Second)
}

func TestDeveloperLogin_ReusesMatchingKey(t *testing.T) {
	portal := &fakePortal{
		loginOK: true,
		keys: []apiKey{
			{ID: "1", Name: "other", Key: "other-ip", CIDRRanges: []string{"198.51.100.1"}},
			{ID: "2", Name: "roster-checker", Key: "existing-key", CIDRRanges: []string{"203.0.113.7"}},
		},
	}
	login := newPortal(t, portal)

	token, err := login.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "existing-key", token)
	assert.Equal(t, int32(0), portal.created.Load())
}

func TestDeveloperLogin_CreatesKeyAndCaches(t *testing.T) {
	portal := &fakePortal{loginOK: true}
	login := newPortal(t, portal)

	first, err := login.Token(context.Background())
	require.NoError(t, err)
	second, err := login.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "fresh-key", first)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), portal.logins.Load(), "token should be cached after the first login")
	assert.Equal(t, int32(1), portal.created.Load())

	login.Invalidate()
	_, err = login.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), portal.logins.Load())
}

func TestDeveloperLogin_RevokesWhenFull(t *testing.T) {
	keys := make([]apiKey, 0, maxKeysPerAccount)
	for i := 0; i < maxKeysPerAccount; i++ {
		keys = append(keys, apiKey{ID: string(rune('a' + i)), Name: "roster-checker", CIDRRanges: []string{"198.51.100.1"}})
	}
	portal := &fakePortal{loginOK: true, keys: keys}
	login := newPortal(t, portal)

	token, err := login.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "fresh-key", token)
	assert.Equal(t, int32(1), portal.revoked.Load())
}

func TestDeveloperLogin_BadCredentials(t *testing.T) {
	portal := &fakePortal{loginOK: false}
	login := newPortal(t, portal)

	_, err := login.Token(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLoginFailed))
}

func TestDeveloperLogin_MissingCredentials(t *testing.T) {
	login := NewDeveloperLogin("http://unused", "", "", "roster-checker", time.Second)

	_, err := login.Token(context.Background())
	assert.True(t, errors.Is(err, ErrNoCredentials))
}

func TestClientIP(t *testing.T) {
	ip, err := clientIP(temporaryToken(t, "192.0.2.10/32"))
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.10", ip)

	_, err = clientIP("")
	assert.Error(t, err)

	_, err = clientIP("not-a-jwt")
	assert.Error(t, err)
}

func TestStaticToken(t *testing.T) {
	tok, err := StaticToken("abc").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	_, err = StaticToken("").Token(context.Background())
	assert.True(t, errors.Is(err, ErrNoCredentials))
}
