// Package source provides page sources that plug into a paginator: an HTTP
// client for page-numbered JSON APIs and a Redis list reader.
package source

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

	"github.com/Sternrassler/go-paginator/pkg/paginator"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// TotalMode selects where HTTPSource reads the total element count from.
type TotalMode string

const (
	// TotalFromHeader reads the element count from a header such as X-Total-Count.
	TotalFromHeader TotalMode = "header"

	// TotalFromPagesHeader reads a page count (X-Pages) and reports
	// pages*pageSize, which keeps the paginator's page arithmetic exact.
	TotalFromPagesHeader TotalMode = "pages"

	// TotalFromEnvelope expects a JSON object holding both items and total.
	TotalFromEnvelope TotalMode = "envelope"
)

// HTTPConfig holds the HTTP source configuration.
type HTTPConfig struct {
	// BaseURL is the API root, e.g. "https://api.example.com"
	BaseURL string

	// Endpoint is the collection path, e.g. "/v1/orders/"
	Endpoint string

	// Query holds extra query parameters sent with every page request
	Query url.Values

	// UserAgent header sent with every request
	UserAgent string

	// Query parameter names for page number and page size
	PageParam string
	SizeParam string

	// Total resolution
	TotalMode   TotalMode
	TotalHeader string // TotalFromHeader
	PagesHeader string // TotalFromPagesHeader
	ItemsField  string // TotalFromEnvelope
	TotalField  string // TotalFromEnvelope

	// Timeout for a single page request (ignored when HTTPClient is set)
	Timeout time.Duration

	// HTTPClient overrides the default client (for testing)
	HTTPClient *http.Client
}

// DefaultHTTPConfig returns a configuration for APIs using page/per_page and
// X-Total-Count.
func DefaultHTTPConfig(baseURL, endpoint string) HTTPConfig {
	return HTTPConfig{
		BaseURL:     baseURL,
		Endpoint:    endpoint,
		UserAgent:   "go-paginator/0.1.0",
		PageParam:   "page",
		SizeParam:   "per_page",
		TotalMode:   TotalFromHeader,
		TotalHeader: "X-Total-Count",
		PagesHeader: "X-Pages",
		ItemsField:  "items",
		TotalField:  "total",
		Timeout:     30 * time.Second,
	}
}

// HTTPSource fetches pages of T from a JSON HTTP API.
type HTTPSource[T any] struct {
	httpClient *http.Client
	endpoint   *url.URL
	config     HTTPConfig
	logger     zerolog.Logger
}

// NewHTTPSource creates an HTTP page source. Zero fields of cfg fall back to
// DefaultHTTPConfig values.
func NewHTTPSource[T any](cfg HTTPConfig) (*HTTPSource[T], error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	defaults := DefaultHTTPConfig(cfg.BaseURL, cfg.Endpoint)
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}
	if cfg.PageParam == "" {
		cfg.PageParam = defaults.PageParam
	}
	if cfg.SizeParam == "" {
		cfg.SizeParam = defaults.SizeParam
	}
	if cfg.TotalMode == "" {
		cfg.TotalMode = defaults.TotalMode
	}
	if cfg.TotalHeader == "" {
		cfg.TotalHeader = defaults.TotalHeader
	}
	if cfg.PagesHeader == "" {
		cfg.PagesHeader = defaults.PagesHeader
	}
	if cfg.ItemsField == "" {
		cfg.ItemsField = defaults.ItemsField
	}
	if cfg.TotalField == "" {
		cfg.TotalField = defaults.TotalField
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}

	switch cfg.TotalMode {
	case TotalFromHeader, TotalFromPagesHeader, TotalFromEnvelope:
	default:
		return nil, fmt.Errorf("unknown total mode %q", cfg.TotalMode)
	}

	endpoint, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.TrimLeft(cfg.Endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse endpoint url: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &HTTPSource[T]{
		httpClient: httpClient,
		endpoint:   endpoint,
		config:     cfg,
		logger:     log.With().Str("component", "http-source").Str("endpoint", endpoint.Path).Logger(),
	}, nil
}

// FetchPage implements paginator.Source.
func (s *HTTPSource[T]) FetchPage(ctx context.Context, page, pageSize int) (paginator.Page[T], error) {
	label := s.endpoint.Path
	startTime := time.Now()
	defer func() {
		sourceRequestDuration.WithLabelValues(label).Observe(time.Since(startTime).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.pageURL(page, pageSize), nil)
	if err != nil {
		return paginator.Page[T]{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	s.logger.Debug().
		Int("page", page).
		Int("page_size", pageSize).
		Msg("Requesting page")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		sourceErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		sourceRequestsTotal.WithLabelValues(label, "network_error").Inc()
		s.logger.Error().Err(err).Int("page", page).Msg("HTTP request failed")
		return paginator.Page[T]{}, &SourceError{
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	sourceRequestsTotal.WithLabelValues(label, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errClass := classifyStatus(resp.StatusCode)
		sourceErrorsTotal.WithLabelValues(string(errClass)).Inc()
		_, _ = io.Copy(io.Discard, resp.Body)

		s.logger.Warn().
			Int("page", page).
			Int("status_code", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Page request error")

		return paginator.Page[T]{}, &SourceError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    resp.Status,
		}
	}

	result, err := s.decode(resp, pageSize)
	if err != nil {
		s.logger.Warn().Err(err).Int("page", page).Msg("Failed to decode page")
		return paginator.Page[T]{}, err
	}

	s.logger.Debug().
		Int("page", page).
		Int("elements", len(result.Items)).
		Int("total", result.Total).
		Dur("duration", time.Since(startTime)).
		Msg("Page fetched")

	return result, nil
}

// pageURL builds the request URL for a page.
func (s *HTTPSource[T]) pageURL(page, pageSize int) string {
	query := url.Values{}
	for key, values := range s.endpoint.Query() {
		query[key] = values
	}
	for key, values := range s.config.Query {
		query[key] = values
	}
	query.Set(s.config.PageParam, strconv.Itoa(page))
	query.Set(s.config.SizeParam, strconv.Itoa(pageSize))

	u := *s.endpoint
	u.RawQuery = query.Encode()
	return u.String()
}

// decode reads items and total from the response according to the total mode.
func (s *HTTPSource[T]) decode(resp *http.Response, pageSize int) (paginator.Page[T], error) {
	if s.config.TotalMode == TotalFromEnvelope {
		return s.decodeEnvelope(resp.Body)
	}

	var items []T
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return paginator.Page[T]{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	switch s.config.TotalMode {
	case TotalFromPagesHeader:
		pages, err := headerInt(resp.Header, s.config.PagesHeader)
		if err != nil {
			return paginator.Page[T]{}, err
		}
		return paginator.Page[T]{Items: items, Total: pages * pageSize}, nil
	default:
		total, err := headerInt(resp.Header, s.config.TotalHeader)
		if err != nil {
			return paginator.Page[T]{}, err
		}
		return paginator.Page[T]{Items: items, Total: total}, nil
	}
}

func (s *HTTPSource[T]) decodeEnvelope(body io.Reader) (paginator.Page[T], error) {
	var envelope map[string]json.RawMessage
	if err := json.NewDecoder(body).Decode(&envelope); err != nil {
		return paginator.Page[T]{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	rawTotal, ok := envelope[s.config.TotalField]
	if !ok {
		return paginator.Page[T]{}, fmt.Errorf("%w: field %q", ErrMissingTotal, s.config.TotalField)
	}
	var total int
	if err := json.Unmarshal(rawTotal, &total); err != nil {
		return paginator.Page[T]{}, fmt.Errorf("%w: total: %v", ErrDecode, err)
	}

	var items []T
	if rawItems, ok := envelope[s.config.ItemsField]; ok {
		if err := json.Unmarshal(rawItems, &items); err != nil {
			return paginator.Page[T]{}, fmt.Errorf("%w: items: %v", ErrDecode, err)
		}
	}

	return paginator.Page[T]{Items: items, Total: total}, nil
}

func headerInt(header http.Header, name string) (int, error) {
	value := header.Get(name)
	if value == "" {
		return 0, fmt.Errorf("%w: header %s", ErrMissingTotal, name)
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("parse %s header: %w", name, err)
	}
	return n, nil
}
