package twitchapi

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const tokenURL = "https://id.twitch.tv/oauth2/token"

// TokenSource fetches and caches a Twitch app access (client credentials)
// token. A cached token is served until shortly before expiry; the refresh
// POST honors the caller's ctx and runs on a timeout-bearing client, so a
// hung token endpoint fails the one call instead of wedging every poll.
type TokenSource struct {
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client

	mu  sync.Mutex
	tok *oauth2.Token
}

// Get returns a valid (fresh or cached) app access token.
// Token endpoint rejections surface as *APIError so callers can distinguish
// bad credentials from connectivity problems.
func (ts *TokenSource) Get(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.tok.Valid() {
		return ts.tok.AccessToken, nil
	}
	if ts.ClientID == "" || ts.ClientSecret == "" {
		return "", errors.New("missing client id/secret for twitch app token")
	}
	cc := &clientcredentials.Config{
		ClientID:     ts.ClientID,
		ClientSecret: ts.ClientSecret,
		TokenURL:     tokenURL,
	}
	tok, err := cc.Token(context.WithValue(ctx, oauth2.HTTPClient, ts.http()))
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil {
			return "", &APIError{Status: rerr.Response.StatusCode, Body: string(rerr.Body)}
		}
		return "", &TransportError{Op: "token", Err: err}
	}
	ts.tok = tok
	return tok.AccessToken, nil
}

func (ts *TokenSource) http() *http.Client {
	if ts.HTTPClient != nil {
		return ts.HTTPClient
	}
	return defaultHTTPClient
}

// SetToken seeds the source with a fixed token. Tests use this to bypass the
// token endpoint.
func (ts *TokenSource) SetToken(token string, expiry time.Time) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.tok = &oauth2.Token{AccessToken: token, Expiry: expiry}
}
