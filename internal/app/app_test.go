package app

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/memberhub/portal/internal/access"
	audithttp "github.com/memberhub/portal/internal/audit/http"
	"github.com/memberhub/portal/internal/feedback/feedbacktest"
	"github.com/memberhub/portal/internal/functions"
	"github.com/memberhub/portal/internal/identity"
	"github.com/memberhub/portal/internal/identity/identitytest"
	"github.com/memberhub/portal/internal/members"
	membershttp "github.com/memberhub/portal/internal/members/http"
	"github.com/memberhub/portal/internal/members/memberstest"
	"github.com/memberhub/portal/internal/observability"
	"github.com/memberhub/portal/internal/settings"
	"github.com/memberhub/portal/internal/settings/settingstest"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 5, cfg.FeedbackLimit)
	assert.Equal(t, time.Hour, cfg.FeedbackWindow)
	assert.Equal(t, 6, cfg.SignupMinPassword)
	assert.Equal(t, 90, cfg.RetentionDays())

	cfg.ServiceURL, cfg.ServiceRoleKey = "http://portal.local", " "
	assert.False(t, cfg.HasServiceCredentials())
}

func TestLoadConfigRejectsBadLimits(t *testing.T) {
	t.Setenv("FEEDBACK_LIMIT", "0")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestRefreshTestModeFollowsEnvironment(t *testing.T) {
	t.Cleanup(RefreshTestMode)
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	assert.True(t, InTestMode())

	t.Setenv(testModeEnv, "0")
	assert.True(t, InTestMode(), "flag is cached until refreshed")
	RefreshTestMode()
	assert.False(t, InTestMode())
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&Config{LogFormat: "json", AppEnv: "production"}, &buf).Info("hello")
	assert.Contains(t, buf.String(), `"service":"portal"`)

	buf.Reset()
	newLogger(&Config{AppEnv: "development"}, &buf).Debug("dbg")
	assert.Contains(t, buf.String(), "msg=dbg")
}

type routerFixture struct {
	handler http.Handler
	ids     *identitytest.Fixture
	members *memberstest.Repo
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	ids := identitytest.NewProvider(t)
	repo := memberstest.New()
	cfg := &Config{AppEnv: "test", RateLimitPerMinute: 1000, AppRequestTimeout: 5 * time.Second}
	logger := newLogger(cfg, &bytes.Buffer{})
	settingsRepo := settingstest.New(settings.AppSettings{AllowResultsView: true})

	idHandler := identity.NewHandler(logger, ids.Provider, 100)
	t.Cleanup(idHandler.Close)

	handler := NewRouter(RouterParams{
		Logger:  logger,
		Config:  cfg,
		Metrics: observability.NewMetrics(),
		Access: access.Middleware{
			Authorizer: access.NewAuthorizer(ids.Provider, repo, logger),
			Logger:     logger,
		},
		IdentityHandler: idHandler,
		Functions: functions.New(functions.Config{
			ServiceURL:     identitytest.Issuer,
			ServiceRoleKey: identitytest.Secret,
			PasswordCost:   bcrypt.MinCost,
		}, functions.Deps{
			Members:  repo,
			Settings: settingsRepo,
			Feedback: feedbacktest.New(),
			Users:    ids.Users,
			Sessions: ids.Sessions,
			Logger:   logger,
		}),
		ProfileHandler:  membershttp.NewHandler(logger, members.NewService(repo)),
		SettingsHandler: settings.NewHandler(logger, settingsRepo),
		AuditHandler:    audithttp.NewHandler(logger, nil),
	})
	return &routerFixture{handler: handler, ids: ids, members: repo}
}

func (f *routerFixture) serve(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func TestRouterPublicRoutes(t *testing.T) {
	f := newRouterFixture(t)

	rr := f.serve(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = f.serve(http.MethodGet, "/api/settings", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"allow_results_view":true`)

	rr = f.serve(http.MethodOptions, "/functions/v1/signup", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))

	rr = f.serve(http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouterProtectsAPI(t *testing.T) {
	f := newRouterFixture(t)
	admin := f.ids.SignUp(t, "admin@example.org", identity.Metadata{})
	f.members.AddLinked("admin@example.org", members.RoleAdmin, admin.User.ID)

	rr := f.serve(http.MethodGet, "/api/profile", "", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = f.serve(http.MethodGet, "/api/profile", admin.AccessToken, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"is_admin":true`)

	rr = f.serve(http.MethodGet, "/api/admin/audit", admin.AccessToken, "")
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRouterSignInThroughAuthRoutes(t *testing.T) {
	f := newRouterFixture(t)
	f.ids.SignUp(t, "member@example.org", identity.Metadata{})

	rr := f.serve(http.MethodPost, "/auth/v1/token", "", `{"email":"member@example.org","password":"password123"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "access_token")
}
