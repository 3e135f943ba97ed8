package crossservice

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sustainable-advisor/internal/common/config"
	commonErrors "sustainable-advisor/internal/common/errors"
	commonhttp "sustainable-advisor/internal/common/http"
	"sustainable-advisor/internal/common/logger"
)

func createTestTransport(t *testing.T, endpoints []string, breaker config.BreakerConfig) *HTTPTransport {
	t.Helper()
	return NewHTTPTransport(HTTPTransportConfig{
		Endpoints: endpoints,
		Timeout:   2 * time.Second,
		Breaker:   breaker,
	}, commonhttp.NewClient(2*time.Second), logger.NewTestLogger(t))
}

func testRequest() RankRequest {
	return BuildRequest(testScored(), nil, "sustainable_advisor_agent", "sustainability_ranking", fixedNow)
}

func TestHTTPTransport_Rank(t *testing.T) {
	var received RankRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "SustainableAdvisorAgent/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "A2A", r.Header.Get("X-Agent-Communication"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"b"},{"id":"a"},{"id":"c"}]`))
	}))
	defer server.Close()

	transport := createTestTransport(t, []string{server.URL + "/rank"}, config.BreakerConfig{})

	body, err := transport.Rank(context.Background(), testRequest())

	require.NoError(t, err)
	items, err := ParseResponse(body)
	require.NoError(t, err)
	assert.Len(t, items, 3)
	assert.Equal(t, 3, received.RequestMetadata.TotalProducts)
	assert.Equal(t, "sustainable_advisor_agent", received.RequestMetadata.AgentID)
	require.Len(t, received.Products, 3)
	assert.Equal(t, "a", received.Products[0].ID)
}

func TestHTTPTransport_TriesEndpointsInOrder(t *testing.T) {
	var hits []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, r.URL.Path)
		switch r.URL.Path {
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		case "/wrong-shape":
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			_, _ = w.Write([]byte(`{"ranked_products":[{"id":"a"}]}`))
		}
	}))
	defer server.Close()

	transport := createTestTransport(t, []string{
		server.URL + "/broken",
		server.URL + "/wrong-shape",
		server.URL + "/rank",
		server.URL + "/never",
	}, config.BreakerConfig{})

	body, err := transport.Rank(context.Background(), testRequest())

	require.NoError(t, err)
	assert.JSONEq(t, `{"ranked_products":[{"id":"a"}]}`, string(body))
	assert.Equal(t, []string{"/broken", "/wrong-shape", "/rank"}, hits)
}

func TestHTTPTransport_HangingEndpointLeavesBudgetForNext(t *testing.T) {
	var hits []string
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits = append(hits, r.URL.Path)
		mu.Unlock()
		if r.URL.Path == "/hanging" {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		_, _ = w.Write([]byte(`[{"id":"b"},{"id":"a"},{"id":"c"}]`))
	}))
	defer server.Close()

	timeout := 200 * time.Millisecond
	transport := NewHTTPTransport(HTTPTransportConfig{
		Endpoints: []string{server.URL + "/hanging", server.URL + "/rank"},
		Timeout:   timeout,
	}, commonhttp.NewClient(timeout), logger.NewTestLogger(t))

	tests := []struct {
		name string
		run  func(t *testing.T)
	}{
		{
			name: "transport reaches the second endpoint",
			run: func(t *testing.T) {
				body, err := transport.Rank(context.Background(), testRequest())
				require.NoError(t, err)
				assert.JSONEq(t, `[{"id":"b"},{"id":"a"},{"id":"c"}]`, string(body))
			},
		},
		{
			name: "ranker finishes on the first attempt",
			run: func(t *testing.T) {
				out := createTestRanker(t, transport, &sleepRecorder{}, func(c *Config) { c.Timeout = timeout }).
					Rank(context.Background(), testScored(), nil)
				assert.Equal(t, StateDone, out.State)
				assert.Equal(t, 1, out.Attempts)
				assert.Equal(t, []string{"b", "a", "c"}, ids(out.Products))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mu.Lock()
			hits = nil
			mu.Unlock()

			tt.run(t)

			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, []string{"/hanging", "/rank"}, hits)
		})
	}
}

func TestHTTPTransport_EndpointCount(t *testing.T) {
	transport := createTestTransport(t, []string{"http://a/rank", "http://b/rank"}, config.BreakerConfig{})

	var me MultiEndpoint = transport
	assert.Equal(t, 2, me.EndpointCount())
}

func TestHTTPTransport_AllEndpointsFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	transport := createTestTransport(t, []string{server.URL + "/a", server.URL + "/b"}, config.BreakerConfig{})

	_, err := transport.Rank(context.Background(), testRequest())

	require.Error(t, err)
	stdErr, ok := commonErrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, commonErrors.ErrCodeRankingCollaboratorFailed, stdErr.Code)
	assert.Contains(t, stdErr.Details, "/b")
}

func TestHTTPTransport_NoEndpoints(t *testing.T) {
	_, err := createTestTransport(t, nil, config.BreakerConfig{}).Rank(context.Background(), testRequest())
	assert.True(t, commonErrors.HasCode(err, commonErrors.ErrCodeInvalidRankingRequest))
}

func TestHTTPTransport_CircuitBreakerOpens(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	transport := createTestTransport(t, []string{server.URL + "/rank"}, config.BreakerConfig{
		Enabled:          true,
		MaxRequests:      1,
		Interval:         60000,
		Timeout:          60000,
		FailureThreshold: 2,
	})

	for i := 0; i < 2; i++ {
		_, err := transport.Rank(context.Background(), testRequest())
		require.Error(t, err)
	}
	_, err := transport.Rank(context.Background(), testRequest())

	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestHTTPTransport_WithRanker(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`[{"id":"c","final_score":99},{"id":"b"},{"id":"a"}]`))
	}))
	defer server.Close()

	transport := createTestTransport(t, []string{server.URL + "/rank"}, config.BreakerConfig{})
	sleeper := &sleepRecorder{}

	out := createTestRanker(t, transport, sleeper).Rank(context.Background(), testScored(), nil)

	assert.Equal(t, StateDone, out.State)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, []string{"c", "b", "a"}, ids(out.Products))
	assert.Len(t, sleeper.delays, 2)
}

func TestHTTPTransport_UnreachableFallsBack(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL + "/rank"
	server.Close()

	transport := createTestTransport(t, []string{url}, config.BreakerConfig{})

	out := createTestRanker(t, transport, &sleepRecorder{}).Rank(context.Background(), testScored(), nil)

	assert.Equal(t, StateFallback, out.State)
	assert.Equal(t, 3, out.Attempts)
	assert.True(t, commonErrors.HasCode(out.LastError, commonErrors.ErrCodeRankingCollaboratorFailed))
	for _, p := range out.Products {
		assert.Equal(t, FallbackReason, p.Provenance.FallbackReason)
	}
}

// ==========================
// Health
// ==========================

func TestHTTPTransport_Health(t *testing.T) {
	healthy := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer server.Close()

	transport := createTestTransport(t, []string{server.URL + "/rank"}, config.BreakerConfig{})

	assert.NoError(t, transport.Health(context.Background()))

	healthy = false
	assert.Error(t, transport.Health(context.Background()))
}

func TestHealthURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://localhost:5001/rank", "http://localhost:5001/health"},
		{"http://recommender:8080/api/v1/rank?debug=1", "http://recommender:8080/api/v1/health"},
		{"http://recommender", "http://recommender/health"},
	}
	for _, tt := range tests {
		got, err := HealthURL(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
