package weatherapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iabalyuk/weatherbot/forecast"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Endpoint names one of the backend weather resources
type Endpoint string

const (
	EndpointThreeDays Endpoint = "weather_to_days"
	EndpointToday     Endpoint = "today"
	EndpointNow       Endpoint = "now"
)

// Days returns the number of days requested from the endpoint
func (e Endpoint) Days() int {
	if e == EndpointThreeDays {
		return 3
	}
	return 1
}

// Kind returns how the endpoint's records are rendered.
// "today" returns hourly data like the 3-day endpoint.
func (e Endpoint) Kind() forecast.Kind {
	if e == EndpointNow {
		return forecast.KindInstant
	}
	return forecast.KindDaily
}

func (e Endpoint) valid() bool {
	switch e {
	case EndpointThreeDays, EndpointToday, EndpointNow:
		return true
	}
	return false
}

// CityRecord is the backend's view of a user's city
type CityRecord struct {
	City string `json:"city"`
	User int64  `json:"user"`
}

type weatherRequest struct {
	User int64 `json:"user"`
	Days int   `json:"days"`
}

type weatherResponse struct {
	City     string          `json:"city"`
	Forecast json.RawMessage `json:"forecast"`
}

// Config holds the client settings
type Config struct {
	BaseURL           string
	Timeout           time.Duration // per request, zero disables
	RequestsPerSecond float64       // zero disables rate limiting
	Burst             int
	HTTPClient        *http.Client
}

// Client talks to the weather backend
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	timeout    time.Duration
	logger     *zap.Logger
}

// NewClient creates a new backend client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(limit, burst)
	logger.Debug("Initialized weather API rate limiter",
		zap.Float64("rps", float64(limiter.Limit())), zap.Int("burst", limiter.Burst()))

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     60 * time.Second,
			},
		}
	}

	return &Client{
		httpClient: httpClient,
		limiter:    limiter,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout,
		logger:     logger,
	}
}

// call sends one request and classifies the response.
// A 200 body is decoded into target when it is valid JSON; anything else is
// treated as no data.
func (c *Client) call(ctx context.Context, method, path string, payload, target any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter (%s %s): %w", method, path, err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var body io.Reader
	if payload != nil && method != http.MethodGet {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode payload for %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log := c.logger.With(zap.String("method", method), zap.String("path", path), zap.String("request_id", requestID))
	log.Debug("Making backend request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("request context error (%s %s): %w", method, path, ctxErr)
		}
		return fmt.Errorf("failed to execute request (%s %s): %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body (%s %s): %w", method, path, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		if target == nil || !json.Valid(raw) {
			return nil
		}
		if err := json.Unmarshal(raw, target); err != nil {
			return &MalformedResponseError{Path: path, Err: err}
		}
		return nil
	case http.StatusBadRequest:
		msg := validationMessage(raw)
		log.Debug("Backend rejected request", zap.String("message", msg))
		return &ValidationError{Message: msg}
	default:
		log.Warn("Unexpected backend status", zap.Int("status", resp.StatusCode), zap.ByteString("body", raw))
		return &ServiceUnavailableError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
}

// GetUserCity returns the city stored for the user, or an empty string if none is on file
func (c *Client) GetUserCity(ctx context.Context, userID int64) (string, error) {
	var record CityRecord
	err := c.call(ctx, http.MethodGet, fmt.Sprintf("/city/%d/", userID), nil, &record)
	if err != nil {
		var unavailable *ServiceUnavailableError
		if errors.As(err, &unavailable) && unavailable.StatusCode == http.StatusNotFound {
			return "", nil
		}
		return "", fmt.Errorf("failed to get city for user %d: %w", userID, err)
	}
	return record.City, nil
}

// SaveUserCity stores the city for the user and returns the record saved by the backend
func (c *Client) SaveUserCity(ctx context.Context, userID int64, city string) (CityRecord, error) {
	var record CityRecord
	payload := CityRecord{City: city, User: userID}
	if err := c.call(ctx, http.MethodPost, "/city/", payload, &record); err != nil {
		return CityRecord{}, fmt.Errorf("failed to save city for user %d: %w", userID, err)
	}
	return record, nil
}

// GetWeather fetches the forecast for the user's city from the given endpoint
func (c *Client) GetWeather(ctx context.Context, userID int64, endpoint Endpoint) (forecast.Report, error) {
	if !endpoint.valid() {
		return forecast.Report{}, fmt.Errorf("unknown weather endpoint %q", endpoint)
	}

	path := fmt.Sprintf("/weather/%s/", endpoint)
	var resp weatherResponse
	payload := weatherRequest{User: userID, Days: endpoint.Days()}
	if err := c.call(ctx, http.MethodPost, path, payload, &resp); err != nil {
		return forecast.Report{}, fmt.Errorf("failed to get weather (%s) for user %d: %w", endpoint, userID, err)
	}

	report := forecast.Report{City: resp.City, Kind: endpoint.Kind()}
	var err error
	switch report.Kind {
	case forecast.KindInstant:
		report.Readings, err = decodeRecords[forecast.InstantReading](resp.Forecast)
	default:
		report.Days, err = decodeRecords[forecast.DayAggregate](resp.Forecast)
		for _, day := range report.Days {
			if err != nil {
				break
			}
			err = day.Validate()
		}
	}
	if err != nil {
		return forecast.Report{}, &MalformedResponseError{Path: path, Err: err}
	}
	return report, nil
}

// decodeRecords accepts either a list of records or a single record object
func decodeRecords[T any](raw json.RawMessage) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, errors.New("missing forecast")
	}

	if raw[0] == '{' {
		var record T
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, fmt.Errorf("failed to decode forecast record: %w", err)
		}
		return []T{record}, nil
	}

	var records []T
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("failed to decode forecast records: %w", err)
	}
	return records, nil
}
