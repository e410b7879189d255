package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	defaultBaseURL = "https://www.googleapis.com"

	// maxIDsPerRequest is the Data API limit for id lists and maxResults.
	maxIDsPerRequest = 50

	// probeVideoID is a long-lived public video used to check an API key.
	probeVideoID = "dQw4w9WgXcQ"
)

// HTTPClient interface for making HTTP requests (allows injection for testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBaseURL sets a custom base URL (useful for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// Client is a YouTube Data API client authenticated with an API key.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPClient
}

// NewClient creates a new YouTube API client with the given API key.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BatchLookup returns duration and live status for ids. Ids the API does not
// return are absent from the map. If a later chunk fails, the details gathered
// so far are returned together with the error.
func (c *Client) BatchLookup(ctx context.Context, ids []string) (map[string]VideoDetails, error) {
	details := make(map[string]VideoDetails, len(ids))

	for _, chunk := range chunkIDs(ids, maxIDsPerRequest) {
		query := url.Values{}
		query.Set("part", "contentDetails,snippet")
		query.Set("id", strings.Join(chunk, ","))
		query.Set("maxResults", strconv.Itoa(maxIDsPerRequest))

		body, err := c.doRequest(ctx, "videos", query)
		if err != nil {
			return details, err
		}

		var response videosResponse
		if err := json.Unmarshal(body, &response); err != nil {
			return details, fmt.Errorf("failed to parse videos response: %w", err)
		}

		for _, item := range response.Items {
			if item.ID == "" {
				continue
			}
			details[item.ID] = VideoDetails{
				Duration: item.ContentDetails.Duration,
				Liveness: ParseLiveness(item.Snippet.LiveBroadcastContent),
			}
		}
	}

	return details, nil
}

// ResolveChannelNames returns the display name of each channel id the API knows.
func (c *Client) ResolveChannelNames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))

	for _, chunk := range chunkIDs(ids, maxIDsPerRequest) {
		query := url.Values{}
		query.Set("part", "snippet")
		query.Set("id", strings.Join(chunk, ","))
		query.Set("maxResults", strconv.Itoa(maxIDsPerRequest))

		body, err := c.doRequest(ctx, "channels", query)
		if err != nil {
			return names, err
		}

		var response channelsResponse
		if err := json.Unmarshal(body, &response); err != nil {
			return names, fmt.Errorf("failed to parse channels response: %w", err)
		}

		for _, item := range response.Items {
			if item.ID != "" {
				names[item.ID] = item.Snippet.Title
			}
		}
	}

	return names, nil
}

// Search returns up to max videos matching query, in API relevance order.
func (c *Client) Search(ctx context.Context, query string, max int) ([]SearchResult, error) {
	if max <= 0 || max > maxIDsPerRequest {
		max = maxIDsPerRequest
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(max))

	body, err := c.doRequest(ctx, "search", params)
	if err != nil {
		return nil, err
	}

	var response searchResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	results := make([]SearchResult, 0, len(response.Items))
	for _, item := range response.Items {
		if item.ID.VideoID == "" {
			continue
		}
		results = append(results, SearchResult{
			ID:           item.ID.VideoID,
			Title:        item.Snippet.Title,
			ChannelID:    item.Snippet.ChannelID,
			ChannelTitle: item.Snippet.ChannelTitle,
			Published:    item.Snippet.PublishedAt,
		})
	}

	return results, nil
}

// ResolveChannelID turns a channel link, handle or name into a channel id.
//
// Accepted forms: youtube.com/channel/<id>, youtube.com/@handle,
// youtube.com/user/<name>, and a bare name which is looked up by search.
func (c *Client) ResolveChannelID(ctx context.Context, link string) (string, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", fmt.Errorf("%w: link cannot be empty", ErrInvalidChannelLink)
	}

	switch {
	case strings.Contains(link, "youtube.com/channel/"):
		id := segmentAfter(link, "channel/")
		exists, err := c.channelExists(ctx, id)
		if err != nil {
			return "", err
		}
		if !exists {
			return "", fmt.Errorf("%w: %s", ErrChannelNotFound, id)
		}
		return id, nil
	case strings.Contains(link, "/@"):
		return c.channelIDFromName(ctx, segmentAfter(link, "/@"))
	case strings.Contains(link, "/user/"):
		return c.channelIDFromName(ctx, segmentAfter(link, "/user/"))
	case !strings.Contains(link, "youtube.com") && !strings.Contains(link, "youtu.be"):
		return c.channelIDFromName(ctx, strings.TrimPrefix(link, "@"))
	}

	return "", fmt.Errorf("%w: %s", ErrInvalidChannelLink, link)
}

// ValidateKey issues a minimal request to check that the API key works.
func (c *Client) ValidateKey(ctx context.Context) error {
	query := url.Values{}
	query.Set("part", "id")
	query.Set("id", probeVideoID)
	_, err := c.doRequest(ctx, "videos", query)
	return err
}

func (c *Client) channelExists(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	query := url.Values{}
	query.Set("part", "id")
	query.Set("id", id)

	body, err := c.doRequest(ctx, "channels", query)
	if err != nil {
		return false, err
	}

	var response channelsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return false, fmt.Errorf("failed to parse channels response: %w", err)
	}
	return len(response.Items) > 0, nil
}

func (c *Client) channelIDFromName(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: missing channel name", ErrInvalidChannelLink)
	}

	query := url.Values{}
	query.Set("part", "id")
	query.Set("q", name)
	query.Set("type", "channel")
	query.Set("maxResults", "1")

	body, err := c.doRequest(ctx, "search", query)
	if err != nil {
		return "", err
	}

	var response searchResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to parse search response: %w", err)
	}
	if len(response.Items) == 0 || response.Items[0].ID.ChannelID == "" {
		return "", fmt.Errorf("%w: no channel found for %q", ErrChannelNotFound, name)
	}

	id := response.Items[0].ID.ChannelID
	exists, err := c.channelExists(ctx, id)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("%w: could not verify channel for %q", ErrChannelNotFound, name)
	}
	return id, nil
}

func (c *Client) doRequest(ctx context.Context, resource string, query url.Values) ([]byte, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	query.Set("key", c.apiKey)

	endpoint := fmt.Sprintf("%s/youtube/v3/%s?%s", c.baseURL, resource, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("YouTube API request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleAPIError(resp.StatusCode, body)
	}

	return body, nil
}

// chunkIDs splits ids into groups of at most size, skipping blanks and
// duplicates while keeping first-seen order.
func chunkIDs(ids []string, size int) [][]string {
	seen := make(map[string]struct{}, len(ids))
	var chunks [][]string
	var current []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		current = append(current, id)
		if len(current) == size {
			chunks = append(chunks, current)
			current = nil
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

func segmentAfter(link, marker string) string {
	parts := strings.Split(link, marker)
	rest := parts[len(parts)-1]
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

// API response types (private - implementation detail)

type videosResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			LiveBroadcastContent string `json:"liveBroadcastContent"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type channelsResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title string `json:"title"`
		} `json:"snippet"`
	} `json:"items"`
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID   string `json:"videoId"`
			ChannelID string `json:"channelId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelID    string `json:"channelId"`
			ChannelTitle string `json:"channelTitle"`
			PublishedAt  string `json:"publishedAt"`
		} `json:"snippet"`
	} `json:"items"`
}
