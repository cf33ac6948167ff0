package apiapp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/listergram/backend/internal/config"
	authsvc "github.com/listergram/backend/internal/services/auth"
	"github.com/listergram/backend/internal/transport/http/dto"
)

type observedRequest struct {
	method string
	route  string
	status int
}

type recordingMetrics struct {
	mu       sync.Mutex
	requests []observedRequest
}

func (m *recordingMetrics) ObserveRequest(method, route string, status int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, observedRequest{method: method, route: route, status: status})
}

func TestAuthMiddlewareRejectsMissingAndInvalidTokens(t *testing.T) {
	manager := authsvc.NewJWTManager("secret", "listergram-auth", time.Hour)
	mw := AuthMiddleware(manager, zap.NewNop())

	for name, header := range map[string]string{
		"missing":    "",
		"not bearer": "Basic abc",
		"garbage":    "Bearer not-a-jwt",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/matches", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rr := httptest.NewRecorder()

			mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				t.Fatalf("handler must not be called without a valid token")
			})).ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestAuthMiddlewareSetsIdentity(t *testing.T) {
	manager := authsvc.NewJWTManager("secret", "listergram-auth", time.Hour)
	userID := uuid.New()
	token, _, err := manager.GenerateAccessToken(userID)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/matches", nil)
	req.Header.Set("Authorization", "bearer "+token)
	rr := httptest.NewRecorder()

	AuthMiddleware(manager, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := authsvc.IdentityFromContext(r.Context())
		if !ok || identity.UserID != userID {
			t.Fatalf("identity mismatch: %+v", identity)
		}
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusNoContent)
	}
}

func TestRequestLoggerRecordsRoutePattern(t *testing.T) {
	metrics := &recordingMetrics{}
	r := chi.NewRouter()
	ApplyMiddlewares(r, zaptest.NewLogger(t), metrics, []string{"https://listergram.app"})
	r.Get("/v1/matches/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/matches/"+uuid.NewString(), nil)
	req.Header.Set("Origin", "https://listergram.app")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://listergram.app" {
		t.Fatalf("unexpected allow-origin header: %q", got)
	}
	if len(metrics.requests) != 1 {
		t.Fatalf("unexpected observed requests: %+v", metrics.requests)
	}
	got := metrics.requests[0]
	if got.route != "/v1/matches/{id}" || got.status != http.StatusTeapot || got.method != http.MethodGet {
		t.Fatalf("unexpected observation: %+v", got)
	}
}

func TestAppServesAuthenticatedRoutesOnMemoryStore(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := config.Default()
	cfg.Store.Driver = config.StoreDriverMemory
	cfg.Redis.Addr = mr.Addr()
	cfg.Auth.JWTSecret = "app-test-secret"

	app, err := New(context.Background(), cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("create app: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })

	srv := httptest.NewServer(app.Handler())
	t.Cleanup(srv.Close)

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		var payload struct {
			OK bool `json:"ok"`
		}
		err = json.NewDecoder(resp.Body).Decode(&payload)
		_ = resp.Body.Close()
		if err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
		if resp.StatusCode != http.StatusOK || !payload.OK {
			t.Fatalf("unexpected %s response: status %d ok %v", path, resp.StatusCode, payload.OK)
		}
	}

	resp, err := http.Get(srv.URL + "/v1/me/profile")
	if err != nil {
		t.Fatalf("unauthenticated request: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected status without token: %d", resp.StatusCode)
	}

	manager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, time.Hour)
	userID := uuid.New()
	token, _, err := manager.GenerateAccessToken(userID)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	body := `{"full_name":"Sam Lee","username":"sam","tower":"Henday","floor":2,"year_of_study":"2nd Year"}`
	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/v1/me/profile", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upsert profile: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("unexpected upsert status %d: %s", resp.StatusCode, raw)
	}
	var profile dto.ProfileResponse
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if profile.ID != userID || profile.Username != "sam" {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), `listergram_http_requests_total{method="PUT",route="/v1/me/profile",status="200"} 1`) {
		t.Fatalf("request metric missing from exposition:\n%s", raw)
	}
}
