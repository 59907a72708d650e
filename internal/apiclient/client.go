// Package apiclient provides a typed HTTP client for the cards API, used by
// the simulator and by integration smoke checks.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound is returned when the API cannot find the requested card.
var ErrNotFound = errors.New("apiclient: not found")

// Card mirrors the API's card payload.
type Card struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
	LikesCount        int64      `json:"likesCount"`
	DislikesCount     int64      `json:"dislikesCount"`
	TotalInteractions int64      `json:"totalInteractions"`
	LastInteractionAt *time.Time `json:"lastInteractionAt,omitempty"`
	EloRating         float64    `json:"eloRating"`
	KFactor           float64    `json:"kFactor"`
	ConfidenceScore   float64    `json:"confidenceScore"`
	RankingScore      float64    `json:"rankingScore"`
}

// CreateCardParams carries the card creation request body.
type CreateCardParams struct {
	Title     string   `json:"title"`
	EloRating *float64 `json:"eloRating,omitempty"`
	KFactor   *float64 `json:"kFactor,omitempty"`
}

// MatchupPair is a proposed comparison returned by the API.
type MatchupPair struct {
	CardA Card `json:"cardA"`
	CardB Card `json:"cardB"`
}

// MatchupResult carries both updated cards after a settled matchup.
type MatchupResult struct {
	Winner Card `json:"winner"`
	Loser  Card `json:"loser"`
}

// RankedCard is one row of the leaderboard.
type RankedCard struct {
	Rank int `json:"rank"`
	Card
}

type rankingsPayload struct {
	Items []RankedCard `json:"items"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client talks to the cards API over HTTP.
type Client struct {
	baseURL *url.URL
	token   string
	client  *http.Client
	logger  *log.Logger
}

// New constructs an HTTP-backed cards API client.
func New(baseURL, token string, timeout time.Duration, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Default()
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse cards api url: %w", err)
	}
	return &Client{
		baseURL: parsed,
		token:   token,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		logger: logger,
	}, nil
}

// CreateCard registers a new card.
func (c *Client) CreateCard(ctx context.Context, params CreateCardParams) (Card, error) {
	var card Card
	err := c.do(ctx, http.MethodPost, "/cards", nil, params, &card, http.StatusCreated)
	return card, err
}

// GetCard fetches a card by id.
func (c *Client) GetCard(ctx context.Context, id string) (Card, error) {
	var card Card
	err := c.do(ctx, http.MethodGet, "/cards/"+url.PathEscape(id), nil, nil, &card, http.StatusOK)
	return card, err
}

// Swipe records a like or dislike and returns the updated card.
func (c *Client) Swipe(ctx context.Context, id string, like bool) (Card, error) {
	body := struct {
		Like bool `json:"like"`
	}{Like: like}

	var card Card
	err := c.do(ctx, http.MethodPost, "/cards/"+url.PathEscape(id)+"/swipes", nil, body, &card, http.StatusOK)
	return card, err
}

// NextMatchup asks the API for a comparison pair.
func (c *Client) NextMatchup(ctx context.Context) (MatchupPair, error) {
	var pair MatchupPair
	err := c.do(ctx, http.MethodGet, "/matchups/next", nil, nil, &pair, http.StatusOK)
	return pair, err
}

// SubmitMatchup reports a comparison outcome.
func (c *Client) SubmitMatchup(ctx context.Context, winnerID, loserID string) (MatchupResult, error) {
	body := struct {
		WinnerID string `json:"winnerId"`
		LoserID  string `json:"loserId"`
	}{WinnerID: winnerID, LoserID: loserID}

	var result MatchupResult
	err := c.do(ctx, http.MethodPost, "/matchups", nil, body, &result, http.StatusOK)
	return result, err
}

// Rankings fetches the leaderboard, top cards first.
func (c *Client) Rankings(ctx context.Context, limit int) ([]RankedCard, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var payload rankingsPayload
	if err := c.do(ctx, http.MethodGet, "/rankings", query, nil, &payload, http.StatusOK); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}, wantStatus int) error {
	rel := &url.URL{Path: path}
	if query != nil {
		rel.RawQuery = query.Encode()
	}
	endpoint := c.baseURL.ResolveReference(rel)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := decodeAPIError(resp.StatusCode, payload)
		if !errors.Is(err, ErrNotFound) {
			c.logger.Printf("cards api: %s %s returned %d", method, path, resp.StatusCode)
		}
		return err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode cards api response: %w", err)
		}
	}
	return nil
}

func decodeAPIError(status int, body []byte) error {
	if status == http.StatusNotFound {
		return ErrNotFound
	}
	var payload errorPayload
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return fmt.Errorf("cards api: %s (%s)", payload.Message, payload.Code)
	}
	return fmt.Errorf("cards api: unexpected status %d", status)
}
