package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultSearchURL is the You.com search index.
const DefaultSearchURL = "https://ydc-index.io"

// YouComClient is a SearchCapability backed by the You.com search API.
type YouComClient struct {
	baseURL    string
	apiKey     string
	count      int
	httpClient *http.Client
}

func NewYouComClient(baseURL, apiKey string, count int) *YouComClient {
	if baseURL == "" {
		baseURL = DefaultSearchURL
	}
	if count <= 0 {
		count = 5
	}
	return &YouComClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		count:   count,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type youcomResponse struct {
	Results struct {
		Web []struct {
			Title       string   `json:"title"`
			URL         string   `json:"url"`
			Description string   `json:"description"`
			Snippets    []string `json:"snippets"`
		} `json:"web"`
	} `json:"results"`
}

// Search returns web results trimmed to title, url and the first two
// snippets.
func (c *YouComClient) Search(ctx context.Context, query string) ([]Snippet, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("count", strconv.Itoa(c.count))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &RetryableError{StatusCode: resp.StatusCode, Message: string(body)}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("search api status %d: %s", resp.StatusCode, string(body))
	}

	var result youcomResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	snippets := make([]Snippet, 0, len(result.Results.Web))
	for _, hit := range result.Results.Web {
		parts := hit.Snippets
		if len(parts) > 2 {
			parts = parts[:2]
		}
		text := strings.Join(parts, " ")
		if text == "" {
			text = hit.Description
		}
		snippets = append(snippets, Snippet{Title: hit.Title, URL: hit.URL, Text: text})
	}
	return snippets, nil
}

// Close releases resources.
func (c *YouComClient) Close() {
	c.httpClient.CloseIdleConnections()
}
