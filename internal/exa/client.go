package exa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/DeafMist/agentic-voice/backend/internal/models"
)

const (
	// DefaultNumResults is used when a search asks for zero or fewer results.
	DefaultNumResults = 5
	// MaxTextLength caps each retrieved text, in characters.
	MaxTextLength = 500
	// MissingTextPlaceholder replaces absent text fields.
	MissingTextPlaceholder = "No text available."
)

// ErrMissingResults means the response decoded but had no results field.
var ErrMissingResults = errors.New("no results found in exa response")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("exa %s failed: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// SearchHit is one entry of a search response.
type SearchHit struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	Author string `json:"author"`
}

// Client talks to the search and contents endpoints.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *slog.Logger
}

// New instantiates a client. A nil logger discards output.
func New(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		log:     logger,
	}
}

// Search runs one query and returns the hits in response order.
func (c *Client) Search(ctx context.Context, query string, numResults int) ([]SearchHit, error) {
	if numResults <= 0 {
		numResults = DefaultNumResults
	}

	body := map[string]any{
		"query":      query,
		"numResults": numResults,
	}

	var parsed struct {
		Results *[]SearchHit `json:"results"`
	}
	if err := c.post(ctx, "search", body, &parsed); err != nil {
		return nil, err
	}
	if parsed.Results == nil {
		return nil, ErrMissingResults
	}

	c.log.Debug("exa search", slog.String("query", query), slog.Int("hits", len(*parsed.Results)))
	return *parsed.Results, nil
}

// Contents fetches full text for ids. Text is truncated to MaxTextLength
// characters and absent text is replaced by MissingTextPlaceholder.
func (c *Client) Contents(ctx context.Context, ids []string) ([]models.RetrievedDocument, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var parsed struct {
		Results *[]struct {
			ID     string  `json:"id"`
			URL    string  `json:"url"`
			Title  string  `json:"title"`
			Author string  `json:"author"`
			Text   *string `json:"text"`
		} `json:"results"`
	}
	if err := c.post(ctx, "contents", map[string]any{"ids": ids}, &parsed); err != nil {
		return nil, err
	}
	if parsed.Results == nil {
		return nil, ErrMissingResults
	}

	docs := make([]models.RetrievedDocument, 0, len(*parsed.Results))
	for _, r := range *parsed.Results {
		text := MissingTextPlaceholder
		if r.Text != nil {
			text = Truncate(*r.Text, MaxTextLength)
		}
		docs = append(docs, models.RetrievedDocument{
			ID:     r.ID,
			URL:    r.URL,
			Title:  r.Title,
			Author: r.Author,
			Text:   text,
		})
	}

	c.log.Debug("exa contents", slog.Int("requested", len(ids)), slog.Int("returned", len(docs)))
	return docs, nil
}

// Truncate cuts s to at most limit characters without splitting a rune.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

func (c *Client) post(ctx context.Context, endpoint string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("exa %s: %w", endpoint, err)
	}
	defer res.Body.Close()

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		data, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &StatusError{Endpoint: endpoint, StatusCode: res.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}
