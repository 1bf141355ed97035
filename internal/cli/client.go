package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"arena/internal/arena"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx reply. Anything else returned by the client is a
// transport failure.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

// Unreachable reports whether err means the API could not be reached at all.
func Unreachable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	return !errors.As(err, &apiErr)
}

// Permanent reports whether retrying the same request cannot succeed.
func Permanent(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 && apiErr.Status != http.StatusConflict
}

type MatchList struct {
	Day     string        `json:"day"`
	Matches []arena.Match `json:"matches"`
}

func (c *Client) Matches(ctx context.Context, day string) (MatchList, error) {
	path := "/v1/matches"
	if day != "" {
		path += "?day=" + url.QueryEscape(day)
	}
	var out MatchList
	err := c.jsonRequest(ctx, http.MethodGet, path, "", nil, &out, "")
	return out, err
}

func (c *Client) Match(ctx context.Context, id string) (arena.MatchDetail, error) {
	var out arena.MatchDetail
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/matches/"+url.PathEscape(id), "", nil, &out, "")
	return out, err
}

func (c *Client) Leaderboard(ctx context.Context, season string, limit int) ([]arena.LeaderboardRow, error) {
	q := url.Values{}
	if season != "" {
		q.Set("season", season)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	path := "/v1/leaderboard"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out struct {
		Rows []arena.LeaderboardRow `json:"rows"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, path, "", nil, &out, "")
	return out.Rows, err
}

func (c *Client) History(ctx context.Context, actorID string, limit int) ([]arena.HistoryRow, error) {
	path := "/v1/actors/" + url.PathEscape(actorID) + "/history"
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	var out struct {
		Rows []arena.HistoryRow `json:"rows"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, path, "", nil, &out, "")
	return out.Rows, err
}

func (c *Client) Stats(ctx context.Context, actorID, season string) (arena.ActorStats, error) {
	path := "/v1/actors/" + url.PathEscape(actorID) + "/stats"
	if season != "" {
		path += "?season=" + url.QueryEscape(season)
	}
	var out arena.ActorStats
	err := c.jsonRequest(ctx, http.MethodGet, path, "", nil, &out, "")
	return out, err
}

type RematchReply struct {
	Request arena.RematchRequest `json:"request"`
	Created bool                 `json:"created"`
}

func RematchBody(requesterID, targetID string) map[string]any {
	return map[string]any{"requester_id": requesterID, "target_id": targetID}
}

func (c *Client) RequestRematch(ctx context.Context, requesterID, targetID, idem string) (RematchReply, error) {
	var out RematchReply
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/rematches", "", RematchBody(requesterID, targetID), &out, idem)
	return out, err
}

func (c *Client) Tick(ctx context.Context, token, day string, matchesPerDay int, resolveImmediately bool) (arena.TickResult, error) {
	var out arena.TickResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/tick", token, map[string]any{
		"day":                 day,
		"matches_per_day":     matchesPerDay,
		"resolve_immediately": resolveImmediately,
	}, &out, "")
	return out, err
}

func (c *Client) Resolve(ctx context.Context, token, matchID string) (arena.ResolveResult, error) {
	var out arena.ResolveResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/matches/"+url.PathEscape(matchID)+"/resolve", token, nil, &out, "")
	return out, err
}

func (c *Client) Health(ctx context.Context) error {
	return c.jsonRequest(ctx, http.MethodGet, "/healthz", "", nil, nil, "")
}

func (c *Client) Do(ctx context.Context, method, path, accessToken string, body map[string]any, idem string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, method, path, accessToken, body, &out, idem)
	return out, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path, accessToken string, in any, out any, idem string) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	if idem != "" {
		req.Header.Set("Idempotency-Key", idem)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(raw))
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
			msg = payload.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
