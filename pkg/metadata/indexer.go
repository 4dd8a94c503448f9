package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"github.com/subquery/query-subgraph/pkg/logger"
)

const (
	metaPath   = "meta"
	healthPath = "health"

	defaultIndexerTimeout  = 5 * time.Second
	defaultIndexerRetryMax = 2
)

// IndexerStatus is what the indexer reports about itself.
type IndexerStatus struct {
	Meta    map[string]json.RawMessage
	Healthy bool
}

// IndexerClient reads the meta and health endpoints of a running indexer.
type IndexerClient struct {
	base   *url.URL
	client *http.Client
	logger logger.Logger
}

// IndexerOption configures an IndexerClient.
type IndexerOption func(*indexerConfig)

type indexerConfig struct {
	retryMax int
	timeout  time.Duration
	logger   logger.Logger
}

// WithIndexerRetryMax sets how many times a failed request is retried.
func WithIndexerRetryMax(n int) IndexerOption {
	return func(c *indexerConfig) {
		c.retryMax = n
	}
}

// WithIndexerTimeout bounds every request to the indexer, retries included.
func WithIndexerTimeout(d time.Duration) IndexerOption {
	return func(c *indexerConfig) {
		c.timeout = d
	}
}

// WithIndexerLogger sets the logger failures are reported to.
func WithIndexerLogger(l logger.Logger) IndexerOption {
	return func(c *indexerConfig) {
		c.logger = l
	}
}

// NewIndexerClient returns a client for the indexer served at rawURL. Endpoint paths are
// resolved relative to it, so a base of http://host/api/ reads http://host/api/meta.
func NewIndexerClient(rawURL string, opts ...IndexerOption) (*IndexerClient, error) {
	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid indexer url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid indexer url %q: scheme must be http or https", rawURL)
	}

	cfg := indexerConfig{
		retryMax: defaultIndexerRetryMax,
		timeout:  defaultIndexerTimeout,
		logger:   logger.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = cfg.retryMax
	client.RetryWaitMin = 50 * time.Millisecond
	client.RetryWaitMax = 500 * time.Millisecond
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	std := client.StandardClient()
	std.Timeout = cfg.timeout

	return &IndexerClient{
		base:   base,
		client: std,
		logger: cfg.logger,
	}, nil
}

// Status fetches meta and health concurrently. It never fails: an unreachable or
// misbehaving indexer is reported as unhealthy and the failure is logged.
func (c *IndexerClient) Status(ctx context.Context) IndexerStatus {
	var (
		wg        conc.WaitGroup
		meta      map[string]json.RawMessage
		metaErr   error
		healthy   bool
		healthErr error
	)
	wg.Go(func() {
		meta, metaErr = c.fetchMeta(ctx)
	})
	wg.Go(func() {
		healthy, healthErr = c.fetchHealth(ctx)
	})
	wg.Wait()

	if metaErr != nil {
		c.logger.WarnWithContext(ctx, "failed to fetch indexer meta", zap.Error(metaErr))
		healthy = false
	}
	if healthErr != nil {
		c.logger.WarnWithContext(ctx, "failed to fetch indexer health", zap.Error(healthErr))
		healthy = false
	}
	return IndexerStatus{Meta: meta, Healthy: healthy}
}

func (c *IndexerClient) endpoint(path string) string {
	return c.base.ResolveReference(&url.URL{Path: path}).String()
}

func (c *IndexerClient) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return c.client.Do(req)
}

func (c *IndexerClient) fetchMeta(ctx context.Context) (map[string]json.RawMessage, error) {
	resp, err := c.get(ctx, metaPath)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, metaPath)
	}

	var meta map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode %s: %w", metaPath, err)
	}
	return meta, nil
}

func (c *IndexerClient) fetchHealth(ctx context.Context) (bool, error) {
	resp, err := c.get(ctx, healthPath)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}
