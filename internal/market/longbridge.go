package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultLongbridgeBaseURL = "https://openapi.longbridgeapp.com"
	DefaultLongbridgeTimeout = 10 * time.Second
	snapshotPath             = "/v1/market/snapshot"
)

var ErrMissingToken = errors.New("longbridge access token is not set")

// LongbridgeConfig configures the snapshot client
type LongbridgeConfig struct {
	AccessToken string
	BaseURL     string
	Timeout     time.Duration
}

// LongbridgeClient fetches market snapshots from the Longbridge OpenAPI
type LongbridgeClient struct {
	httpClient *http.Client
	token      string
	baseURL    string
	logger     zerolog.Logger
}

func NewLongbridgeClient(cfg LongbridgeConfig) (*LongbridgeClient, error) {
	if cfg.AccessToken == "" {
		return nil, ErrMissingToken
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultLongbridgeBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultLongbridgeTimeout
	}

	return &LongbridgeClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		token:      cfg.AccessToken,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		logger:     log.With().Str("component", "longbridge").Logger(),
	}, nil
}

// Snapshot returns the decoded response body. Prices are read from it with
// ExtractPrices.
func (c *LongbridgeClient) Snapshot(ctx context.Context, symbols []string) (any, error) {
	endpoint := c.baseURL + snapshotPath + "?symbols=" + url.QueryEscape(strings.Join(symbols, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build snapshot request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch market snapshot: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read market snapshot: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("market snapshot returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var snapshot any
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode market snapshot: %w", err)
	}
	// responses are usually wrapped in a {"code":..,"data":..} envelope
	if envelope, ok := snapshot.(map[string]any); ok {
		if data, ok := envelope["data"]; ok {
			snapshot = data
		}
	}

	c.logger.Debug().
		Int("symbols", len(symbols)).
		Dur("duration", time.Since(start)).
		Msg("Fetched market snapshot")

	return snapshot, nil
}
