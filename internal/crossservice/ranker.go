// Package crossservice re-ranks scored products through a ranking
// collaborator, retrying with exponential backoff and degrading to a local
// sustainability ordering when the collaborator stays unreachable.
package crossservice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sustainable-advisor/internal/common/config"
	commonErrors "sustainable-advisor/internal/common/errors"
	"sustainable-advisor/internal/common/logger"
	"sustainable-advisor/internal/common/metrics"
	"sustainable-advisor/internal/models"
	"sustainable-advisor/internal/sustainability"
)

const instrumentationName = "sustainable-advisor/crossservice"

// State is a step of the ranking state machine.
type State string

const (
	StateAttempting State = "ATTEMPTING"
	StateDone       State = "DONE"
	StateFallback   State = "FALLBACK"
)

// Transport sends one ranking request and returns the raw response body.
type Transport interface {
	Rank(ctx context.Context, req RankRequest) ([]byte, error)
	Name() string
}

// MultiEndpoint is implemented by transports that try several addresses
// within one Rank call, each under the configured timeout.
type MultiEndpoint interface {
	EndpointCount() int
}

type Config struct {
	MaxRetries  int
	RetryDelay  time.Duration
	Timeout     time.Duration
	AgentID     string
	RequestType string
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:  3,
		RetryDelay:  time.Second,
		Timeout:     30 * time.Second,
		AgentID:     "sustainable_advisor_agent",
		RequestType: "sustainability_ranking",
	}
}

// ConfigFromSettings overlays loaded settings on the defaults.
func ConfigFromSettings(cfg config.CrossServiceConfig) Config {
	c := DefaultConfig()
	if cfg.MaxRetries > 0 {
		c.MaxRetries = cfg.MaxRetries
	}
	if cfg.RetryDelay > 0 {
		c.RetryDelay = config.GetDuration(cfg.RetryDelay)
	}
	if cfg.Timeout > 0 {
		c.Timeout = config.GetDuration(cfg.Timeout)
	}
	if cfg.AgentID != "" {
		c.AgentID = cfg.AgentID
	}
	if cfg.RequestType != "" {
		c.RequestType = cfg.RequestType
	}
	return c
}

// Outcome is the terminal state of one ranking run.
type Outcome struct {
	Products  []RankedProduct
	State     State
	Attempts  int
	LastError error
	Duration  time.Duration
}

// machine holds the retry state as plain data.
type machine struct {
	state   State
	attempt int
	delay   time.Duration
	lastErr error
}

type Ranker struct {
	transport Transport
	cfg       Config
	logger    logger.Logger
	tracer    trace.Tracer
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
	merge     func(base RankedProduct, fields map[string]interface{}) RankedProduct
}

type Option func(*Ranker)

// WithClock replaces the time source used for provenance timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Ranker) { r.now = now }
}

// WithSleep replaces the backoff wait.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Ranker) { r.sleep = sleep }
}

func WithTracer(t trace.Tracer) Option {
	return func(r *Ranker) { r.tracer = t }
}

func NewRanker(transport Transport, cfg Config, log logger.Logger, opts ...Option) *Ranker {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	r := &Ranker{
		transport: transport,
		cfg:       cfg,
		logger:    logger.ForComponent(log, "cross-service-ranker"),
		tracer:    otel.Tracer(instrumentationName),
		now:       time.Now,
		sleep:     sleepContext,
		merge:     mergeFields,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rank orders scored products through the collaborator. It never fails:
// exhausted retries end in the fallback ordering.
func (r *Ranker) Rank(ctx context.Context, scored []sustainability.Scored, prefs *models.Preferences) Outcome {
	if len(scored) == 0 {
		return Outcome{Products: []RankedProduct{}, State: StateDone}
	}

	ctx, span := r.tracer.Start(ctx, "crossservice.Rank", trace.WithAttributes(
		attribute.Int("products.count", len(scored)),
		attribute.String("transport", r.transport.Name()),
	))
	defer span.End()

	start := time.Now()
	req := BuildRequest(scored, prefs, r.cfg.AgentID, r.cfg.RequestType, r.now())

	m := machine{state: StateAttempting, attempt: 1, delay: r.cfg.RetryDelay}
	var out []RankedProduct

	for m.state == StateAttempting {
		products, err := r.attempt(ctx, scored, req, m.attempt)
		if err == nil {
			metrics.CollaboratorAttempts.WithLabelValues("success").Inc()
			out = products
			m.state = StateDone
			break
		}

		metrics.CollaboratorAttempts.WithLabelValues("failure").Inc()
		m.lastErr = err
		r.logger.Warn("Ranking collaborator attempt failed", map[string]interface{}{
			"attempt":    m.attempt,
			"maxRetries": r.cfg.MaxRetries,
			"error":      err.Error(),
		})

		if m.attempt >= r.cfg.MaxRetries {
			m.state = StateFallback
			break
		}
		if err := r.sleep(ctx, m.delay); err != nil {
			m.lastErr = fmt.Errorf("backoff interrupted: %w", err)
			m.state = StateFallback
			break
		}
		m.attempt++
		m.delay *= 2
	}

	if m.state == StateFallback {
		out = r.fallback(scored, m.lastErr)
		metrics.CollaboratorFallbacks.Inc()
		span.RecordError(m.lastErr)
		span.SetStatus(codes.Error, "collaborator unreachable, fallback ranking used")
		r.logger.Warn("Using fallback ranking", map[string]interface{}{
			"attempts": m.attempt,
			"reason":   FallbackReason,
			"error":    m.lastErr.Error(),
		})
	}

	elapsed := time.Since(start)
	metrics.CollaboratorDuration.Observe(elapsed.Seconds())
	span.SetAttributes(
		attribute.String("ranking.state", string(m.state)),
		attribute.Int("ranking.attempts", m.attempt),
	)

	return Outcome{
		Products:  out,
		State:     m.state,
		Attempts:  m.attempt,
		LastError: m.lastErr,
		Duration:  elapsed,
	}
}

func (r *Ranker) attempt(ctx context.Context, scored []sustainability.Scored, req RankRequest, n int) ([]RankedProduct, error) {
	name := r.transport.Name()

	timeout := r.attemptTimeout()
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r.logger.Debug("Calling ranking collaborator", map[string]interface{}{
		"attempt":   n,
		"transport": name,
		"products":  len(req.Products),
	})

	body, err := r.transport.Rank(attemptCtx, req)
	if err != nil {
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, commonErrors.NewRankingTimeoutError(name, timeout)
		}
		return nil, err
	}

	items, err := ParseResponse(body)
	if err != nil {
		return nil, commonErrors.NewRankingResponseMalformedError(name, err.Error())
	}

	products, matched := r.reconstruct(scored, items)
	if matched == 0 {
		return nil, commonErrors.NewRankingResponseMalformedError(name, "no ranked product matches a requested id")
	}
	return products, nil
}

// attemptTimeout gives every endpoint of a multi-endpoint transport the full
// per-call timeout.
func (r *Ranker) attemptTimeout() time.Duration {
	if me, ok := r.transport.(MultiEndpoint); ok {
		if n := me.EndpointCount(); n > 1 {
			return r.cfg.Timeout * time.Duration(n)
		}
	}
	return r.cfg.Timeout
}

// reconstruct joins returned items to the original products by id, in the
// collaborator's order. Unknown and repeated ids are dropped. A panic while
// merging returns the input unranked.
func (r *Ranker) reconstruct(scored []sustainability.Scored, items []map[string]interface{}) (out []RankedProduct, matched int) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Recovered while rebuilding ranked products, returning input order", map[string]interface{}{
				"panic": fmt.Sprint(rec),
			})
			out = passthrough(scored)
			matched = len(out)
		}
	}()

	byID := make(map[string]sustainability.Scored, len(scored))
	for _, s := range scored {
		byID[s.Product.ID] = s
	}

	now := r.now()
	used := make(map[string]bool, len(items))
	out = make([]RankedProduct, 0, len(items))
	for _, item := range items {
		id := itemID(item)
		s, ok := byID[id]
		if !ok || used[id] {
			r.logger.Warn("Dropping ranked product not present in request", map[string]interface{}{
				"productId": id,
			})
			continue
		}
		used[id] = true

		base := RankedProduct{
			Product:  s.Product,
			Analysis: s.Analysis,
			Provenance: &Provenance{
				RankedBy:                    RankedByCollaborator,
				RankingTimestamp:            now,
				OriginalSustainabilityScore: s.Analysis.Score,
			},
		}
		out = append(out, r.merge(base, item))
	}
	return out, len(out)
}

// fallback orders by sustainability score and attaches a discount tier.
func (r *Ranker) fallback(scored []sustainability.Scored, lastErr error) []RankedProduct {
	ordered := append([]sustainability.Scored(nil), scored...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Analysis.Score > ordered[j].Analysis.Score
	})

	lastError := ""
	if lastErr != nil {
		lastError = lastErr.Error()
	}

	now := r.now()
	out := make([]RankedProduct, 0, len(ordered))
	for i, s := range ordered {
		score := s.Analysis.Score
		out = append(out, RankedProduct{
			Product:  s.Product,
			Analysis: s.Analysis,
			Ranking: map[string]interface{}{
				"final_score":      score,
				"rank_position":    i + 1,
				"has_promotion":    true,
				"discount_percent": FallbackDiscount(score),
				"promotion_reason": "Sustainability tier discount",
			},
			Provenance: &Provenance{
				RankedBy:                    RankedByFallback,
				RankingTimestamp:            now,
				OriginalSustainabilityScore: score,
				FallbackReason:              FallbackReason,
				FallbackRank:                i + 1,
				LastError:                   lastError,
			},
		})
	}
	return out
}

// FallbackDiscount maps a sustainability score to the simulated discount
// percent used when the collaborator is unreachable.
func FallbackDiscount(score float64) float64 {
	switch {
	case score >= 80:
		return 15
	case score >= 60:
		return 10
	default:
		return 5
	}
}

func passthrough(scored []sustainability.Scored) []RankedProduct {
	out := make([]RankedProduct, 0, len(scored))
	for _, s := range scored {
		out = append(out, RankedProduct{Product: s.Product, Analysis: s.Analysis})
	}
	return out
}

func mergeFields(base RankedProduct, fields map[string]interface{}) RankedProduct {
	base.Ranking = make(map[string]interface{}, len(fields))
	for k, v := range fields {
		base.Ranking[k] = v
	}
	return base
}

func itemID(item map[string]interface{}) string {
	if id, ok := item["id"].(string); ok {
		return id
	}
	if id, ok := item["product_id"].(string); ok {
		return id
	}
	return ""
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
