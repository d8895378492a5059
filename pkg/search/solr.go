package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// DefaultTimeout is the maximum time to wait for a single Solr request.
const DefaultTimeout = 10 * time.Second

// SolrConfig configures the Solr indexer.
type SolrConfig struct {
	URL      string
	Core     string
	RetryMax int
	Timeout  time.Duration
	// RetryWaitMin and RetryWaitMax bound the backoff between attempts.
	// Zero keeps the retryablehttp defaults.
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// SolrIndexer pushes documents to a Solr core through the JSON update handler.
type SolrIndexer struct {
	client    *retryablehttp.Client
	updateURL string
	logger    *zap.Logger
}

var _ Indexer = (*SolrIndexer)(nil)

// NewSolrIndexer creates an indexer for cfg.Core at cfg.URL.
func NewSolrIndexer(cfg SolrConfig, logger *zap.Logger) (*SolrIndexer, error) {
	if cfg.Core == "" {
		return nil, fmt.Errorf("solr core is required")
	}
	updateURL, err := buildURL(cfg.URL, "solr", cfg.Core, "update")
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}

	logger = logger.Named("solr")

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	if cfg.RetryWaitMin > 0 {
		client.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		client.RetryWaitMax = cfg.RetryWaitMax
	}
	client.HTTPClient.Timeout = cfg.Timeout
	if client.HTTPClient.Timeout == 0 {
		client.HTTPClient.Timeout = DefaultTimeout
	}
	client.Logger = &leveledLogger{s: logger.Sugar()}

	return &SolrIndexer{
		client:    client,
		updateURL: updateURL,
		logger:    logger,
	}, nil
}

// Push adds or replaces a document. It is not visible until Commit.
func (s *SolrIndexer) Push(ctx context.Context, doc Document) error {
	if err := s.post(ctx, s.updateURL, []Document{doc}); err != nil {
		return fmt.Errorf("push %s: %w", doc.ID, err)
	}
	return nil
}

// Remove deletes a document by id.
func (s *SolrIndexer) Remove(ctx context.Context, id string) error {
	body := map[string]any{"delete": map[string]string{"id": id}}
	if err := s.post(ctx, s.updateURL, body); err != nil {
		return fmt.Errorf("remove %s: %w", id, err)
	}
	documentsRemoved.Inc()
	return nil
}

// Commit makes pending pushes and removals visible to searches.
func (s *SolrIndexer) Commit(ctx context.Context) error {
	body := map[string]any{"commit": map[string]any{}}
	if err := s.post(ctx, s.updateURL, body); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SolrIndexer) post(ctx context.Context, endpoint string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?wt=json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call solr: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("solr returned status %d: %s", resp.StatusCode, solrErrorMessage(body))
	}
	return nil
}

// solrErrorMessage extracts error.msg from a Solr error body, falling back to the raw body.
func solrErrorMessage(body []byte) string {
	var parsed struct {
		Error struct {
			Msg string `json:"msg"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Msg != "" {
		return parsed.Error.Msg
	}
	return string(body)
}

func buildURL(baseURL string, pathSegments ...string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid base URL %q", baseURL)
	}

	segments := append([]string{u.Path}, pathSegments...)
	u.Path = path.Join(segments...)

	return u.String(), nil
}

// leveledLogger adapts zap to retryablehttp.LeveledLogger.
type leveledLogger struct {
	s *zap.SugaredLogger
}

var _ retryablehttp.LeveledLogger = (*leveledLogger)(nil)

func (l *leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, keysAndValues...)
}

func (l *leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Infow(msg, keysAndValues...)
}

func (l *leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l *leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.s.Warnw(msg, keysAndValues...)
}
