package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simpleindex/simple-repository-server/internal/api"
	"github.com/simpleindex/simple-repository-server/internal/telemetry"
	"github.com/simpleindex/simple-repository-server/pkg/model"
	"github.com/simpleindex/simple-repository-server/pkg/repository"
)

func newTestServer(t *testing.T, opts ...api.ServerOption) http.Handler {
	t.Helper()

	repo := repository.NewFakeRepository()
	repo.AddPage(model.ProjectPage{
		Meta:  model.Meta{APIVersion: "1.0"},
		Name:  "holygrail",
		Files: []model.FileEntry{},
	})
	return api.NewServer(repo, opts...)
}

func TestServerRoutes(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{name: "health", path: "/health", wantStatus: http.StatusOK},
		{name: "readiness", path: "/readiness", wantStatus: http.StatusOK},
		{name: "version", path: "/version", wantStatus: http.StatusOK},
		{name: "project list", path: "/simple/", wantStatus: http.StatusOK},
		{name: "project page", path: "/simple/holygrail/", wantStatus: http.StatusOK},
		{name: "unknown project", path: "/simple/absent/", wantStatus: http.StatusNotFound},
		{name: "no metrics endpoint by default", path: "/metrics", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestServerReadinessFailure(t *testing.T) {
	t.Parallel()

	repo := repository.NewFakeRepository()
	repo.ListErr = &model.UpstreamError{Source: "https://pypi.example/simple/", Err: assert.AnError}
	server := api.NewServer(repo)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readiness", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServerMetricsEndpoint(t *testing.T) {
	t.Parallel()

	tel, err := telemetry.New(context.Background(), telemetry.WithEnabled(true))
	require.NoError(t, err)
	defer tel.Shutdown(context.Background()) //nolint:errcheck

	server := newTestServer(t,
		api.WithMetricsHandler(tel.Handler()),
		api.WithMiddlewares(api.LoggingMiddleware),
	)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
