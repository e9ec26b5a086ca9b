package audithttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/memberhub/portal/internal/audit"
)

type stubService struct {
	result      audit.Result
	err         error
	lastFilters audit.Filters
}

func (s *stubService) Recent(ctx context.Context, filters audit.Filters) (audit.Result, error) {
	s.lastFilters = filters
	return s.result, s.err
}

func newRouter(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/admin", NewHandler(nil, svc).MountRoutes)
	return r
}

func TestRecentParsesFilters(t *testing.T) {
	svc := &stubService{result: audit.Result{Rows: []audit.Row{{ID: 7, Action: "toggle_permission"}}, Paging: audit.PagingInfo{Page: 2, PageSize: 10}}}
	req := httptest.NewRequest(http.MethodGet, "/api/admin/audit?page=2&page_size=10&action=toggle_permission", nil)
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.lastFilters.Page != 2 || svc.lastFilters.PageSize != 10 || svc.lastFilters.Action != "toggle_permission" {
		t.Fatalf("unexpected filters %+v", svc.lastFilters)
	}
	var body audit.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Rows) != 1 || body.Rows[0].ID != 7 {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestRecentRejectsBadPage(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/admin/audit?page=zero", nil)
	rec := httptest.NewRecorder()
	newRouter(&stubService{}).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRecentHidesStoreErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/admin/audit", nil)
	rec := httptest.NewRecorder()
	newRouter(&stubService{err: errors.New("relation admin_audit_logs missing")}).ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "relation") {
		t.Fatalf("store detail leaked: %s", rec.Body.String())
	}
}
