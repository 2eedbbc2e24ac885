package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	audithandler "github.com/jwalitptl/fieldservice-api/internal/handler/audit"
	authhandler "github.com/jwalitptl/fieldservice-api/internal/handler/auth"
	categoryhandler "github.com/jwalitptl/fieldservice-api/internal/handler/category"
	clienthandler "github.com/jwalitptl/fieldservice-api/internal/handler/client"
	"github.com/jwalitptl/fieldservice-api/internal/handler/health"
	paymenthandler "github.com/jwalitptl/fieldservice-api/internal/handler/payment"
	promhandler "github.com/jwalitptl/fieldservice-api/internal/handler/prometheus"
	reporthandler "github.com/jwalitptl/fieldservice-api/internal/handler/report"
	statshandler "github.com/jwalitptl/fieldservice-api/internal/handler/stats"
	tickethandler "github.com/jwalitptl/fieldservice-api/internal/handler/ticket"
	userhandler "github.com/jwalitptl/fieldservice-api/internal/handler/user"
	"github.com/jwalitptl/fieldservice-api/internal/handler/ws"
	"github.com/jwalitptl/fieldservice-api/internal/middleware"
	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/service/audit"
	authsvc "github.com/jwalitptl/fieldservice-api/internal/service/auth"
	"github.com/jwalitptl/fieldservice-api/internal/service/category"
	"github.com/jwalitptl/fieldservice-api/internal/service/client"
	"github.com/jwalitptl/fieldservice-api/internal/service/event"
	"github.com/jwalitptl/fieldservice-api/internal/service/notification"
	"github.com/jwalitptl/fieldservice-api/internal/service/payment"
	"github.com/jwalitptl/fieldservice-api/internal/service/report"
	"github.com/jwalitptl/fieldservice-api/internal/service/stats"
	"github.com/jwalitptl/fieldservice-api/internal/service/ticket"
	"github.com/jwalitptl/fieldservice-api/internal/service/user"
	"github.com/jwalitptl/fieldservice-api/internal/testutil"
	"github.com/jwalitptl/fieldservice-api/pkg/auth"
	"github.com/jwalitptl/fieldservice-api/pkg/mail"
	"github.com/jwalitptl/fieldservice-api/pkg/metrics"
	"github.com/jwalitptl/fieldservice-api/pkg/security"
	livefeed "github.com/jwalitptl/fieldservice-api/pkg/websocket"
)

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    struct {
		Total int `json:"total"`
	} `json:"meta"`
}

type testServer struct {
	engine *gin.Engine
	repos  *testutil.Repos
	hub    *livefeed.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repos := testutil.NewRepos(t)
	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	jwtSvc := auth.NewJWTService(auth.Config{Secret: "router-secret", AccessTTL: time.Hour, RefreshTTL: 24 * time.Hour})
	auditor := audit.NewService(repos.Audit)
	events := event.NewService(repos.Outbox)
	reg := prometheus.NewRegistry()
	appMetrics := metrics.NewMetrics(reg, "test", "")

	logger := zerolog.Nop()
	hub := livefeed.NewHub(&logger, appMetrics)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	authService := authsvc.NewService(repos.Users, jwtSvc, hasher, auditor, time.Minute)
	reportService := report.NewService(repos.Tx, repos.Services, repos.Reports, events, auditor)
	paymentService := payment.NewService(repos.Tx, repos.Services, repos.Reports, repos.Payments, events, auditor)
	ticketService := ticket.NewService(
		ticket.Repositories{
			Tx:         repos.Tx,
			Services:   repos.Services,
			Users:      repos.Users,
			Clients:    repos.Clients,
			Categories: repos.Categories,
			Payments:   repos.Payments,
		},
		reportService,
		paymentService,
		events,
		auditor,
		notification.NewService(repos.Users, mail.NopSender{}, appMetrics),
	)

	r := NewRouter(
		middleware.NewAuthMiddleware(authService),
		Handlers{
			Auth:       authhandler.NewHandler(authService),
			Health:     health.NewHandler(repos.DB),
			Metrics:    promhandler.New(reg, "test"),
			WS:         ws.NewHandler(authService, hub),
			Users:      userhandler.NewHandler(user.NewService(repos.Users, hasher, auditor, authService)),
			Clients:    clienthandler.NewHandler(client.NewService(repos.Clients, auditor)),
			Categories: categoryhandler.NewHandler(category.NewService(repos.Categories, auditor, time.Minute, time.Minute)),
			Services:   tickethandler.NewHandler(ticketService),
			Reports:    reporthandler.NewHandler(reportService),
			Payments:   paymenthandler.NewHandler(paymentService),
			Stats:      statshandler.NewHandler(stats.NewService(repos.Services, repos.Payments)),
			Audit:      audithandler.NewHandler(auditor),
		},
		RouterConfig{CORSConfig: middleware.DefaultCORSConfig()},
	)
	r.Setup()

	return &testServer{engine: r.Engine(), repos: repos, hub: hub}
}

func (s *testServer) createUser(t *testing.T, email string, role model.Role) {
	t.Helper()
	hash, err := security.NewBcryptHasher(bcrypt.MinCost).Hash("s3cret-pass")
	require.NoError(t, err)
	require.NoError(t, s.repos.Users.Create(context.Background(), &model.User{
		Email:        email,
		Name:         string(role),
		Role:         role,
		PasswordHash: hash,
		IsActive:     true,
	}))
}

func (s *testServer) do(t *testing.T, method, path, token, body string) (int, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	s.engine.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w.Code, env
}

func (s *testServer) login(t *testing.T, email string) (string, uuid.UUID) {
	t.Helper()
	code, env := s.do(t, http.MethodPost, "/api/v1/auth/login", "", `{"email":"`+email+`","password":"s3cret-pass"}`)
	require.Equal(t, http.StatusOK, code)

	var tokens model.TokenResponse
	require.NoError(t, json.Unmarshal(env.Data, &tokens))
	require.NotNil(t, tokens.User)
	return tokens.AccessToken, tokens.User.ID
}

func TestServiceWorkflowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.createUser(t, "admin@example.com", model.RoleAdmin)
	s.createUser(t, "tech@example.com", model.RoleTechnician)

	adminToken, _ := s.login(t, "admin@example.com")
	techToken, techID := s.login(t, "tech@example.com")

	// Create service
	code, env := s.do(t, http.MethodPost, "/api/v1/services", adminToken,
		`{"title":"Fix boiler","technician_id":"`+techID.String()+`","expected_amount":"100"}`)
	require.Equal(t, http.StatusCreated, code, env.Message)

	var created model.Service
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, model.ServiceStatusPending, created.Status)
	path := "/api/v1/services/" + created.ID.String()

	// Technician works through it
	code, _ = s.do(t, http.MethodGet, path, techToken, "")
	assert.Equal(t, http.StatusOK, code)

	code, env = s.do(t, http.MethodPatch, path+"/status", techToken, `{"status":"IN_PROGRESS"}`)
	require.Equal(t, http.StatusOK, code, env.Message)
	code, env = s.do(t, http.MethodPatch, path+"/status", techToken, `{"status":"COMPLETED"}`)
	require.Equal(t, http.StatusOK, code, env.Message)

	// Technicians cannot close
	code, _ = s.do(t, http.MethodPost, path+"/close", techToken, "")
	assert.Equal(t, http.StatusForbidden, code)

	// Close with payment
	code, env = s.do(t, http.MethodPost, path+"/close", adminToken, `{"payment":{"method":"CASH","amount_paid":"80"}}`)
	require.Equal(t, http.StatusOK, code, env.Message)

	var closed model.Service
	require.NoError(t, json.Unmarshal(env.Data, &closed))
	assert.Equal(t, model.ServiceStatusClosed, closed.Status)
	assert.True(t, closed.IsLocked)

	// Locked services reject further status changes
	code, _ = s.do(t, http.MethodPatch, path+"/status", adminToken, `{"status":"IN_PROGRESS"}`)
	assert.Equal(t, http.StatusConflict, code)

	// Stats
	code, env = s.do(t, http.MethodGet, "/api/v1/stats/services", adminToken, "")
	require.Equal(t, http.StatusOK, code)

	var st model.ServiceStats
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, 1, st.Total)
	assert.Equal(t, 1, st.ByStatus[model.ServiceStatusClosed])
}

func TestAccessRules(t *testing.T) {
	s := newTestServer(t)
	s.createUser(t, "admin@example.com", model.RoleAdmin)
	s.createUser(t, "tech@example.com", model.RoleTechnician)

	adminToken, _ := s.login(t, "admin@example.com")
	techToken, _ := s.login(t, "tech@example.com")

	// No token
	code, env := s.do(t, http.MethodGet, "/api/v1/services", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "error", env.Status)

	// Garbage token
	code, _ = s.do(t, http.MethodGet, "/api/v1/services", "not-a-token", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	// Wrong password
	code, _ = s.do(t, http.MethodPost, "/api/v1/auth/login", "", `{"email":"admin@example.com","password":"wrong-pass"}`)
	assert.Equal(t, http.StatusUnauthorized, code)

	// Admin only endpoints
	code, _ = s.do(t, http.MethodGet, "/api/v1/users", techToken, "")
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = s.do(t, http.MethodPost, "/api/v1/services", techToken, `{"title":"x"}`)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = s.do(t, http.MethodGet, "/api/v1/stats/payments", techToken, "")
	assert.Equal(t, http.StatusForbidden, code)

	// Unknown service
	code, _ = s.do(t, http.MethodGet, "/api/v1/services/"+uuid.New().String(), adminToken, "")
	assert.Equal(t, http.StatusNotFound, code)

	// Malformed id
	code, _ = s.do(t, http.MethodGet, "/api/v1/services/nope", adminToken, "")
	assert.Equal(t, http.StatusBadRequest, code)

	// Validation
	code, env = s.do(t, http.MethodPost, "/api/v1/services", adminToken, `{"title":"x","scheduled_time":"25:99"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "error", env.Status)

	// Me
	code, env = s.do(t, http.MethodGet, "/api/v1/auth/me", techToken, "")
	require.Equal(t, http.StatusOK, code)
	var me model.User
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "tech@example.com", me.Email)
}

func TestOperationalEndpoints(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusOK, code)

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `test_requests_total{method="GET",path="/health/live",status="200"} 1`)

	// Security headers and request ids are set on every response
	w = httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderXRequestID))
}
