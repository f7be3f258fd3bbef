// Package twitchapi is a small client for the Twitch Helix endpoints the
// watcher needs: stream-by-login lookup, game-by-id lookup, and thumbnail
// download. It holds no watch state; every call is independent and idempotent,
// and retries are deliberately left to the caller.
package twitchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const helixBaseURL = "https://api.twitch.tv/helix"

// defaultHTTPClient bounds every call; a poll that hangs past this is treated
// as a transport failure and retried on the next tick.
var defaultHTTPClient = &http.Client{Timeout: 15 * time.Second}

// Stream is one poll result. Values are never mutated; a later poll produces
// a fresh Stream that supersedes this one.
type Stream struct {
	ID           string
	UserLogin    string
	GameID       string
	Title        string
	Type         string
	ThumbnailURL string
	StartedAt    time.Time
}

// Live reports whether this is a genuine live broadcast. Twitch marks reruns
// with a different type; those must not trigger go-live events.
func (s *Stream) Live() bool { return s != nil && s.Type == "live" }

// Game is a Twitch category.
type Game struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Client calls the Helix API with an app access token. All methods are safe
// for concurrent use. The rate limiter (if set) is shared across metadata
// calls so concurrent watchers stay inside the API budget; thumbnail
// downloads go through a separate pool (see thumbnail.go) so slow image
// fetches cannot starve polling.
type Client struct {
	AppTokenSource *TokenSource
	ClientID       string
	HTTPClient     *http.Client
	Limiter        *rate.Limiter

	thumbnails semaphore
}

// NewClient builds a Client with a shared metadata rate limit (requests per
// second) and a bounded thumbnail download pool.
func NewClient(ts *TokenSource, clientID string, rps float64, maxThumbnails int) *Client {
	c := &Client{
		AppTokenSource: ts,
		ClientID:       clientID,
	}
	if rps > 0 {
		c.Limiter = rate.NewLimiter(rate.Limit(rps), int(rps)+1)
	}
	c.thumbnails.init(maxThumbnails)
	return c
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return defaultHTTPClient
}

func closeBody(rc io.ReadCloser) {
	if err := rc.Close(); err != nil {
		slog.Warn("failed to close response body", slog.Any("err", err))
	}
}

// getJSON performs an authenticated Helix GET and decodes the standard
// {"data": [...]} envelope into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return &TransportError{Op: "rate wait", Err: err}
		}
	}
	tok, err := c.AppTokenSource.Get(ctx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, helixBaseURL+path, nil)
	if err != nil {
		return err
	}
	req.URL.RawQuery = query.Encode()
	req.Header.Set("Client-Id", c.ClientID)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := c.http().Do(req)
	if err != nil {
		return &TransportError{Op: "get " + path, Err: err}
	}
	defer closeBody(resp.Body)
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Body: string(b)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// GetStreamByLogin returns the current stream for a channel, or nil when the
// channel is offline. An empty upstream result set is the normal offline
// answer, never an error.
func (c *Client) GetStreamByLogin(ctx context.Context, login string) (*Stream, error) {
	if login == "" {
		return nil, fmt.Errorf("login empty")
	}
	q := url.Values{}
	q.Set("user_login", login)
	var body struct {
		Data []struct {
			ID           string `json:"id"`
			UserLogin    string `json:"user_login"`
			GameID       string `json:"game_id"`
			Title        string `json:"title"`
			Type         string `json:"type"`
			ThumbnailURL string `json:"thumbnail_url"`
			StartedAt    string `json:"started_at"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, "/streams", q, &body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 {
		return nil, nil
	}
	d := body.Data[0]
	startedAt, err := time.Parse(time.RFC3339, d.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("parse started_at %q: %w", d.StartedAt, err)
	}
	return &Stream{
		ID:           d.ID,
		UserLogin:    d.UserLogin,
		GameID:       d.GameID,
		Title:        d.Title,
		Type:         d.Type,
		ThumbnailURL: d.ThumbnailURL,
		StartedAt:    startedAt,
	}, nil
}

// GetGame resolves a game/category id to its display name. A nil result means
// the id is unknown upstream, which is a legitimate miss (the category can be
// cleared mid-stream).
func (c *Client) GetGame(ctx context.Context, gameID string) (*Game, error) {
	if gameID == "" {
		return nil, fmt.Errorf("gameID empty")
	}
	q := url.Values{}
	q.Set("id", gameID)
	var body struct {
		Data []Game `json:"data"`
	}
	if err := c.getJSON(ctx, "/games", q, &body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 {
		return nil, nil
	}
	g := body.Data[0]
	return &g, nil
}
