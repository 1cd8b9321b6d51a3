package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"animerec/internal/metrics"
	"animerec/internal/models"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

const (
	aniListAPIURL        = "https://graphql.anilist.co"
	defaultTimeout       = 30 * time.Second
	defaultRatePerMinute = 90
	rateBurst            = 5
	userAgent            = "animerec/1.0"
	homePageSize         = 5
	maxResponseSize      = 5 * 1024 * 1024 // 5MB
	breakerFailures      = 5
	breakerOpenTimeout   = 30 * time.Second
)

// AniListClient talks to the AniList GraphQL endpoint. It is safe for
// concurrent use.
type AniListClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

type ClientConfig struct {
	BaseURL       string
	Timeout       time.Duration
	RatePerMinute int
	HTTPClient    *http.Client
	Logger        *logrus.Logger
}

func NewAniListClientWithConfig(config *ClientConfig) *AniListClient {
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	if config.BaseURL == "" {
		config.BaseURL = aniListAPIURL
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.RatePerMinute <= 0 {
		config.RatePerMinute = defaultRatePerMinute
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		}
	}

	log := config.Logger
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "anilist",
		MaxRequests: 1,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.AniListBreakerState.Set(float64(to))
			log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &AniListClient{
		baseURL:    config.BaseURL,
		httpClient: httpClient,
		logger:     log,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RatePerMinute)), rateBurst),
		breaker:    breaker,
	}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

type graphQLResponse[T any] struct {
	Data   *T             `json:"data"`
	Errors []graphQLError `json:"errors"`
}

type mediaPage struct {
	Media []models.MediaRecord `json:"media"`
}

type homeData struct {
	Trending *mediaPage `json:"trending"`
	Popular  *mediaPage `json:"popular"`
}

type detailsData struct {
	Media *models.MediaRecord `json:"Media"`
}

// FetchHome returns the trending and currently-airing-popular pages. On
// failure both lists are empty and the error says which kind it was.
func (c *AniListClient) FetchHome(ctx context.Context) (models.HomeLists, error) {
	start := time.Now()
	lists, err := c.fetchHome(ctx)
	metrics.RecordAniList("home", Outcome(err), time.Since(start))
	if err != nil {
		return models.HomeLists{Trending: []models.MediaRecord{}, Popular: []models.MediaRecord{}}, err
	}
	return lists, nil
}

func (c *AniListClient) fetchHome(ctx context.Context) (models.HomeLists, error) {
	body, err := c.post(ctx, homeQuery, map[string]any{"perPage": homePageSize})
	if err != nil {
		return models.HomeLists{}, err
	}

	data, err := decodeGraphQL[homeData](body)
	if err != nil {
		return models.HomeLists{}, err
	}
	if data.Trending == nil || data.Popular == nil {
		return models.HomeLists{}, fmt.Errorf("%w: home response missing trending or popular page", ErrMalformedPayload)
	}

	lists := models.HomeLists{
		Trending: c.keepValid(data.Trending.Media),
		Popular:  c.keepValid(data.Popular.Media),
	}

	c.logger.WithFields(logrus.Fields{
		"trending": len(lists.Trending),
		"popular":  len(lists.Popular),
	}).Debug("Fetched homepage lists")

	return lists, nil
}

// FetchDetails resolves a free-text title to AniList's first match.
// A title with no match returns ErrNotFound.
func (c *AniListClient) FetchDetails(ctx context.Context, title string) (*models.MediaRecord, error) {
	start := time.Now()
	record, err := c.fetchDetails(ctx, title)
	metrics.RecordAniList("details", Outcome(err), time.Since(start))
	return record, err
}

func (c *AniListClient) fetchDetails(ctx context.Context, title string) (*models.MediaRecord, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: empty title", ErrNotFound)
	}

	c.logger.WithField("title", title).Debug("Resolving title on AniList")

	body, err := c.post(ctx, detailsQuery, map[string]any{"search": title})
	if err != nil {
		return nil, err
	}

	data, err := decodeGraphQL[detailsData](body)
	if err != nil {
		return nil, err
	}
	if data.Media == nil {
		return nil, fmt.Errorf("%w: no media for %q", ErrNotFound, title)
	}
	if !data.Media.Valid() {
		return nil, fmt.Errorf("%w: media for %q lacks id or title", ErrMalformedPayload, title)
	}

	return data.Media, nil
}

func (c *AniListClient) keepValid(records []models.MediaRecord) []models.MediaRecord {
	out := make([]models.MediaRecord, 0, len(records))
	for _, r := range records {
		if !r.Valid() {
			c.logger.WithField("id", r.ID).Debug("Skipping media without id or title")
			continue
		}
		out = append(out, r)
	}
	return out
}

func (c *AniListClient) post(ctx context.Context, query string, variables map[string]any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %w", ErrTransport, err)
	}

	// GraphQL errors arrive with a 200, so they are classified inside the
	// breaker to count as failures.
	body, err := c.breaker.Execute(func() ([]byte, error) {
		body, err := c.doPost(ctx, query, variables)
		if err != nil {
			return nil, err
		}
		if err := graphQLErrors(body); err != nil {
			return nil, err
		}
		return body, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return body, err
}

func (c *AniListClient) doPost(ctx context.Context, query string, variables map[string]any) ([]byte, error) {
	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := readRespBody(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %w", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// AniList answers a search miss with 404 and a GraphQL error body
		if resp.StatusCode == http.StatusNotFound && reportsNotFound(body) {
			return nil, fmt.Errorf("%w: AniList returned 404", ErrNotFound)
		}
		return nil, fmt.Errorf("%w: AniList returned status code %d", ErrTransport, resp.StatusCode)
	}

	return body, nil
}

func readRespBody(resp *http.Response) ([]byte, error) {
	if resp.ContentLength > maxResponseSize {
		return nil, fmt.Errorf("response too large: %d bytes", resp.ContentLength)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxResponseSize {
		return nil, fmt.Errorf("response too large: exceeded %d bytes", maxResponseSize)
	}
	return body, nil
}

func reportsNotFound(body []byte) bool {
	var envelope graphQLResponse[json.RawMessage]
	if err := json.Unmarshal(body, &envelope); err != nil {
		return false
	}
	for _, e := range envelope.Errors {
		if e.Status == http.StatusNotFound {
			return true
		}
	}
	return false
}

// graphQLErrors maps a non-empty errors array to ErrNotFound or
// ErrServiceReported. Undecodable bodies are left to decodeGraphQL.
func graphQLErrors(body []byte) error {
	var envelope graphQLResponse[json.RawMessage]
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Errors) == 0 {
		return nil
	}

	msgs := make([]string, 0, len(envelope.Errors))
	for _, e := range envelope.Errors {
		if e.Status == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, e.Message)
		}
		msgs = append(msgs, e.Message)
	}
	return fmt.Errorf("%w: %s", ErrServiceReported, strings.Join(msgs, "; "))
}

func decodeGraphQL[T any](body []byte) (*T, error) {
	var envelope graphQLResponse[T]
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if len(envelope.Errors) > 0 {
		return nil, graphQLErrors(body)
	}

	if envelope.Data == nil {
		return nil, fmt.Errorf("%w: response has no data", ErrMalformedPayload)
	}
	return envelope.Data, nil
}
