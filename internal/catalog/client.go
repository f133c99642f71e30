// Package catalog is the HTTP client for the remote movie catalog (TMDB v3).
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/metrics"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "Reel/1.0"
)

// DefaultBaseURL is the TMDB v3 API root.
const DefaultBaseURL = "https://api.themoviedb.org/3"

// Config configures the catalog client.
type Config struct {
	BaseURL           string
	APIKey            string
	ImageBaseURL      string
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 disables the limiter
	Burst             int
}

// Client implements domain.CatalogClient over HTTP.
type Client struct {
	baseURL      string
	apiKey       string
	imageBaseURL string
	httpClient   *http.Client
	limiter      *rate.Limiter
	logger       *slog.Logger
}

// NewClient creates a new catalog client
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	imageBaseURL := cfg.ImageBaseURL
	if imageBaseURL == "" {
		imageBaseURL = DefaultImageBaseURL
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       cfg.APIKey,
		imageBaseURL: imageBaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: limiter,
		logger:  logger,
	}
}

// BaseURL returns the API root this client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// doRequest performs an authenticated GET and returns the body of a 200 response.
// Unreachable servers yield ErrServerOffline, 401 ErrAuthFailed and 404 ErrNotFound.
func (c *Client) doRequest(ctx context.Context, endpoint, path string, query url.Values) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("api_key", c.apiKey)
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	c.logger.Debug("catalog request", "endpoint", endpoint, "path", path)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordCatalogRequest(endpoint, "error", time.Since(start))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Error("catalog request failed", "endpoint", endpoint, "error", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrServerOffline, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordCatalogRequest(endpoint, "error", time.Since(start))
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		metrics.RecordCatalogRequest(endpoint, "success", time.Since(start))
		return body, nil
	case http.StatusNotFound:
		metrics.RecordCatalogRequest(endpoint, "not_found", time.Since(start))
		return nil, domain.ErrNotFound
	case http.StatusUnauthorized:
		metrics.RecordCatalogRequest(endpoint, "error", time.Since(start))
		return nil, domain.ErrAuthFailed
	default:
		metrics.RecordCatalogRequest(endpoint, "error", time.Since(start))
		var apiErr ErrorDTO
		if json.Unmarshal(body, &apiErr) == nil && apiErr.StatusMessage != "" {
			c.logger.Error("catalog request error", "status", resp.StatusCode, "message", apiErr.StatusMessage)
			return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, apiErr.StatusMessage)
		}
		c.logger.Error("catalog request error", "status", resp.StatusCode, "bodyLen", len(body))
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
}

// FetchPage returns one page of popular movies
func (c *Client) FetchPage(ctx context.Context, page int) (domain.Page, error) {
	if page < 1 {
		return domain.Page{}, fmt.Errorf("invalid page %d", page)
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))

	body, err := c.doRequest(ctx, "popular", "/movie/popular", query)
	if err != nil {
		return domain.Page{}, err
	}

	var dto PageDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		c.logger.Error("JSON parse error", "error", err, "bodyLen", len(body))
		return domain.Page{}, fmt.Errorf("failed to parse popular page: %w", err)
	}
	if dto.Page == 0 {
		dto.Page = page
	}

	return MapPage(dto, c.imageBaseURL), nil
}

// FetchByID returns the details of one movie
func (c *Client) FetchByID(ctx context.Context, id int) (domain.Movie, error) {
	body, err := c.doRequest(ctx, "movie", "/movie/"+strconv.Itoa(id), nil)
	if err != nil {
		return domain.Movie{}, err
	}

	var dto MovieDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		c.logger.Error("JSON parse error", "error", err, "bodyLen", len(body))
		return domain.Movie{}, fmt.Errorf("failed to parse movie %d: %w", id, err)
	}
	if dto.ID == 0 {
		return domain.Movie{}, errors.New("movie response has no id")
	}

	return MapMovie(dto, c.imageBaseURL), nil
}
