package recommender

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	commonErrors "sustainable-advisor/internal/common/errors"
	"sustainable-advisor/internal/common/logger"
	"sustainable-advisor/internal/common/validation"
	"sustainable-advisor/internal/crossservice"
	"sustainable-advisor/internal/models"
	"sustainable-advisor/internal/promotion"
	"sustainable-advisor/internal/ranking"
)

const (
	ServiceName  = "RecommenderAgent"
	maxBodyBytes = 4 << 20
)

// Server exposes the ranking and promotion engines over HTTP. It is the
// remote ranking collaborator of the advisor.
type Server struct {
	engine *ranking.Engine
	now    func() time.Time
	logger logger.Logger
}

func NewServer(engine *ranking.Engine, log logger.Logger) *Server {
	return &Server{
		engine: engine,
		now:    time.Now,
		logger: logger.ForComponent(log, "recommender-api"),
	}
}

// Handler builds the router, wrapped for trace propagation.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.logRequests)

	r.Post("/rank", s.Rank)
	r.Post("/rank/direct", s.RankDirect)
	r.Get("/health", s.Health)
	r.Get("/promotions", s.Promotions)
	r.Get("/trends", s.Trends)
	r.Get("/patterns", s.Patterns)

	return otelhttp.NewHandler(r, "recommender")
}

// Rank handles POST /rank and answers with a flat list of ranked products.
func (s *Server) Rank(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, commonErrors.NewInvalidRankingRequestError(err.Error()))
		return
	}
	if err := validation.ValidateRankRequest(body); err != nil {
		respondError(w, http.StatusBadRequest, commonErrors.NewInvalidRankingRequestError(err.Error()))
		return
	}

	var req crossservice.RankRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, http.StatusBadRequest, commonErrors.NewInvalidRankingRequestError(err.Error()))
		return
	}
	if req.UserPreferences != nil {
		if err := validation.ValidateStruct(req.UserPreferences); err != nil {
			respondError(w, http.StatusBadRequest, commonErrors.NewInvalidRankingRequestError(err.Error()))
			return
		}
	}

	results := s.engine.Rank(candidatesFrom(req), req.UserPreferences, ranking.Options{})

	s.logger.Info("Ranked products", map[string]interface{}{
		"products": len(results),
		"agentId":  req.RequestMetadata.AgentID,
		"a2a":      r.Header.Get("X-Agent-Communication") != "",
	})
	respondJSON(w, http.StatusOK, ranking.Records(results))
}

// DirectRankRequest is the body of POST /rank/direct. Products carry the
// full catalog shape plus an optional sustainability_score.
type DirectRankRequest struct {
	Products []json.RawMessage  `json:"products"`
	Weights  map[string]float64 `json:"weights,omitempty"`
	Factors  []string           `json:"factors,omitempty"`
}

// RankDirect ranks with the direct factor preset. A product without a
// sustainability_score is ranked as neutral.
func (s *Server) RankDirect(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, commonErrors.NewInvalidRankingRequestError(err.Error()))
		return
	}
	if err := validation.ValidateRankRequest(body); err != nil {
		respondError(w, http.StatusBadRequest, commonErrors.NewInvalidRankingRequestError(err.Error()))
		return
	}

	var req DirectRankRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, http.StatusBadRequest, commonErrors.NewInvalidRankingRequestError(err.Error()))
		return
	}

	candidates := make([]ranking.Candidate, 0, len(req.Products))
	for _, raw := range req.Products {
		var p models.Product
		var extra struct {
			Score *float64 `json:"sustainability_score"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			respondError(w, http.StatusBadRequest, commonErrors.NewInvalidRankingRequestError(err.Error()))
			return
		}
		_ = json.Unmarshal(raw, &extra)
		candidates = append(candidates, ranking.Candidate{Product: p, Score: extra.Score})
	}

	results := s.engine.RankByFactors(candidates, req.Weights, req.Factors)
	respondJSON(w, http.StatusOK, ranking.Records(results))
}

// Health ranks a single synthetic product to prove the engine works.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	selfTest := []ranking.Candidate{ranking.NewCandidate(models.Product{
		ID:         "test",
		Name:       "Test Product",
		Price:      10,
		EcoTags:    []string{"sustainable"},
		Categories: []string{"home"},
	}, 80)}

	results := s.engine.Rank(selfTest, nil, ranking.Options{})
	if len(results) != 1 {
		respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "unhealthy",
			"service": ServiceName,
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "healthy",
		"service":    ServiceName,
		"timestamp":  s.now().UTC().Format(time.RFC3339),
		"test_score": results[0].FinalScore,
		"capabilities": []string{
			"multi_factor_ranking",
			"promotion_engine",
			"sustainability_integration",
			"preference_matching",
		},
	})
}

// Promotions lists the active promotion table.
func (s *Server) Promotions(w http.ResponseWriter, r *http.Request) {
	summary := s.engine.Promotions().Summary()
	if summary.Promotions == nil {
		summary.Promotions = []promotion.Active{}
	}
	respondJSON(w, http.StatusOK, summary)
}

// Trends lists the trend buckets and the default weights.
func (s *Server) Trends(w http.ResponseWriter, r *http.Request) {
	cfg := s.engine.Config()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"trends":  s.engine.Trends(),
		"weights": cfg.Weights.ToMap(),
	})
}

// Patterns lists the user behaviour patterns with a summary.
func (s *Server) Patterns(w http.ResponseWriter, r *http.Request) {
	patterns := ranking.DefaultPatterns()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"patterns": patterns,
		"summary":  ranking.SummarizePatterns(patterns),
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("Request served", map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"durationMs": time.Since(start).Milliseconds(),
			"requestId":  chimiddleware.GetReqID(r.Context()),
		})
	})
}

func candidatesFrom(req crossservice.RankRequest) []ranking.Candidate {
	products, scores := req.Candidates()
	out := make([]ranking.Candidate, 0, len(products))
	for i, p := range products {
		out = append(out, ranking.NewCandidate(p, scores[i]))
	}
	return out
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func respondError(w http.ResponseWriter, status int, err *commonErrors.StandardError) {
	respondJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    err.Code,
			"message": err.Message,
			"details": err.Details,
		},
	})
}
