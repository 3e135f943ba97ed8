package crossservice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"sustainable-advisor/internal/common/config"
	commonErrors "sustainable-advisor/internal/common/errors"
	commonhttp "sustainable-advisor/internal/common/http"
	"sustainable-advisor/internal/common/logger"
	"sustainable-advisor/internal/common/validation"
)

const (
	defaultUserAgent   = "SustainableAdvisorAgent/1.0"
	healthCheckTimeout = 5 * time.Second
	maxResponseBytes   = 10 << 20
)

type HTTPTransportConfig struct {
	Endpoints []string
	Timeout   time.Duration
	UserAgent string
	Breaker   config.BreakerConfig
}

// HTTPTransportConfigFromSettings builds the transport settings from the
// cross_service config section.
func HTTPTransportConfigFromSettings(cfg config.CrossServiceConfig) HTTPTransportConfig {
	return HTTPTransportConfig{
		Endpoints: cfg.Endpoints,
		Timeout:   config.GetDuration(cfg.Timeout),
		UserAgent: cfg.UserAgent,
		Breaker:   cfg.Breaker,
	}
}

// HTTPTransport posts ranking requests to an ordered list of endpoints and
// returns the first structurally valid response.
type HTTPTransport struct {
	cfg     HTTPTransportConfig
	client  *commonhttp.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  logger.Logger
}

func NewHTTPTransport(cfg HTTPTransportConfig, client *commonhttp.Client, log logger.Logger) *HTTPTransport {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if client == nil {
		client = commonhttp.NewClient(cfg.Timeout)
	}
	t := &HTTPTransport{
		cfg:    cfg,
		client: client,
		logger: logger.ForComponent(log, "ranking-http-transport"),
	}
	if cfg.Breaker.Enabled {
		t.breaker = newBreaker(cfg.Breaker, t.logger)
	}
	return t
}

func newBreaker(cfg config.BreakerConfig, log logger.Logger) *gobreaker.CircuitBreaker[[]byte] {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "ranking-collaborator",
		MaxRequests: cfg.MaxRequests,
		Interval:    config.GetDuration(cfg.Interval),
		Timeout:     config.GetDuration(cfg.Timeout),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("Circuit breaker state changed", map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})
}

func (t *HTTPTransport) Name() string {
	return "http"
}

// EndpointCount is the number of endpoints one Rank call may try.
func (t *HTTPTransport) EndpointCount() int {
	return len(t.cfg.Endpoints)
}

// Rank implements Transport.
func (t *HTTPTransport) Rank(ctx context.Context, req RankRequest) ([]byte, error) {
	if len(t.cfg.Endpoints) == 0 {
		return nil, commonErrors.NewInvalidRankingRequestError("no ranking endpoints configured")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, commonErrors.NewInvalidRankingRequestError(err.Error())
	}

	if t.breaker == nil {
		return t.tryEndpoints(ctx, payload)
	}

	body, err := t.breaker.Execute(func() ([]byte, error) {
		return t.tryEndpoints(ctx, payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, commonErrors.NewRankingCollaboratorFailedError("circuit-breaker", err)
	}
	return body, err
}

func (t *HTTPTransport) tryEndpoints(ctx context.Context, payload []byte) ([]byte, error) {
	var lastErr error
	for _, endpoint := range t.cfg.Endpoints {
		body, err := t.post(ctx, endpoint, payload)
		if err == nil {
			return body, nil
		}
		lastErr = err
		t.logger.Debug("Ranking endpoint failed, trying next", map[string]interface{}{
			"endpoint": endpoint,
			"error":    err.Error(),
		})
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// post bounds each endpoint call by its own timeout.
func (t *HTTPTransport) post(ctx context.Context, endpoint string, payload []byte) ([]byte, error) {
	if t.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, commonErrors.NewRankingCollaboratorFailedError(endpoint, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", t.cfg.UserAgent)
	httpReq.Header.Set("X-Request-ID", uuid.New().String())
	httpReq.Header.Set("X-Agent-Communication", "A2A")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, commonErrors.NewRankingTimeoutError(endpoint, t.cfg.Timeout)
		}
		return nil, commonErrors.NewRankingCollaboratorFailedError(endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, commonErrors.NewRankingCollaboratorFailedError(endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, commonErrors.NewRankingCollaboratorFailedError(endpoint,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	if err := validation.ValidateRankResponse(body); err != nil {
		return nil, commonErrors.NewRankingResponseMalformedError(endpoint, err.Error())
	}
	return body, nil
}

// Health checks the /health sibling of the first endpoint.
func (t *HTTPTransport) Health(ctx context.Context) error {
	if len(t.cfg.Endpoints) == 0 {
		return commonErrors.NewInvalidRankingRequestError("no ranking endpoints configured")
	}
	healthURL, err := HealthURL(t.cfg.Endpoints[0])
	if err != nil {
		return commonErrors.NewRankingCollaboratorFailedError(t.cfg.Endpoints[0], err)
	}

	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return commonErrors.NewRankingCollaboratorFailedError(healthURL, err)
	}
	req.Header.Set("User-Agent", t.cfg.UserAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return commonErrors.NewRankingCollaboratorFailedError(healthURL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return commonErrors.NewRankingCollaboratorFailedError(healthURL,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	return nil
}

// HealthURL replaces the last path segment of a rank URL with "health".
func HealthURL(rankURL string) (string, error) {
	u, err := url.Parse(rankURL)
	if err != nil {
		return "", err
	}
	u.Path = path.Join(path.Dir(u.Path), "health")
	u.RawQuery = ""
	return u.String(), nil
}
