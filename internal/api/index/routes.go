// Package index provides the HTTP handlers for the simple repository
// protocol: the project list, per-project pages and file resources, served
// in the HTML or JSON shape selected by content negotiation.
package index

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/simpleindex/simple-repository-server/internal/logger"
	"github.com/simpleindex/simple-repository-server/internal/telemetry"
	"github.com/simpleindex/simple-repository-server/pkg/model"
	"github.com/simpleindex/simple-repository-server/pkg/repository"
	"github.com/simpleindex/simple-repository-server/pkg/simple"
)

// Routes defines the routes for the simple index with dependency injection
type Routes struct {
	repo    repository.Repository
	metrics *telemetry.RepositoryMetrics
}

// Option configures the index routes
type Option func(*Routes)

// WithMetrics records repository operation metrics. A nil metrics value is
// a no-op.
func WithMetrics(metrics *telemetry.RepositoryMetrics) Option {
	return func(rr *Routes) {
		rr.metrics = metrics
	}
}

// Router creates a new router for the simple index
func Router(repo repository.Repository, opts ...Option) http.Handler {
	routes := &Routes{repo: repo}
	for _, opt := range opts {
		opt(routes)
	}

	r := chi.NewRouter()

	r.Get("/", routes.getProjectList)
	r.Get("/{project}", routes.redirectToProjectPage)
	r.Get("/{project}/", routes.getProjectPage)
	r.Get("/{project}/{resource}", routes.getResource)

	return r
}

// getProjectList handles GET /simple/
func (rr *Routes) getProjectList(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	list, err := rr.repo.GetProjectList(r.Context())
	rr.record(r, telemetry.OperationProjectList, err, start)
	if err != nil {
		rr.writeRepositoryError(w, err)
		return
	}

	contentType := simple.NegotiateContentType(r.Header.Get("Accept"))
	var body []byte
	if simple.IsJSON(contentType) {
		body, err = simple.SerializeJSONProjectList(list)
		if err != nil {
			rr.writeErrorResponse(w, "Failed to serialize project list", http.StatusInternalServerError)
			return
		}
	} else {
		body = simple.SerializeHTMLProjectList(list)
	}

	serveDocument(w, r, contentType, body)
}

// redirectToProjectPage handles GET /simple/{project} by adding the
// trailing slash the protocol requires.
func (*Routes) redirectToProjectPage(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, r.URL.Path+"/", http.StatusMovedPermanently)
}

// getProjectPage handles GET /simple/{project}/
func (rr *Routes) getProjectPage(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	normalized := model.NormalizeProjectName(project)
	if project != normalized {
		redirectToNormalized(w, r, project, normalized)
		return
	}

	start := time.Now()
	page, err := rr.repo.GetProjectPage(r.Context(), normalized)
	rr.record(r, telemetry.OperationProjectPage, err, start)
	if err != nil {
		rr.writeRepositoryError(w, err)
		return
	}

	contentType := simple.NegotiateContentType(r.Header.Get("Accept"))
	var body []byte
	if simple.IsJSON(contentType) {
		body, err = simple.SerializeJSONProjectPage(page)
		if err != nil {
			rr.writeErrorResponse(w, "Failed to serialize project page", http.StatusInternalServerError)
			return
		}
	} else {
		body = simple.SerializeHTMLProjectPage(page)
	}

	serveDocument(w, r, contentType, body)
}

// getResource handles GET /simple/{project}/{resource}
func (rr *Routes) getResource(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	resourceName := chi.URLParam(r, "resource")

	start := time.Now()
	resource, err := rr.repo.GetResource(r.Context(), project, resourceName)
	rr.record(r, telemetry.OperationResource, err, start)
	if err != nil {
		rr.writeRepositoryError(w, err)
		return
	}

	switch res := resource.(type) {
	case *model.HTTPResource:
		http.Redirect(w, r, res.URL, http.StatusFound)
	case *model.LocalResource:
		setETag(w, res.ETag())
		if notModified(w, r, res.ETag()) {
			return
		}
		http.ServeFile(w, r, res.Path)
	case *model.TextResource:
		setETag(w, res.ETag())
		if notModified(w, r, res.ETag()) {
			return
		}
		w.Header().Set("Content-Type", res.ContentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(res.Content)
	default:
		rr.writeErrorResponse(w, "Resource cannot be served", http.StatusInternalServerError)
	}
}

// redirectToNormalized sends the canonical page location for a
// non-normalized project spelling.
func redirectToNormalized(w http.ResponseWriter, r *http.Request, project, normalized string) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	path = strings.TrimSuffix(path, project)
	http.Redirect(w, r, path+normalized+"/", http.StatusMovedPermanently)
}

// serveDocument writes a serialized index document with a strong validator
// so installers can revalidate cheaply.
func serveDocument(w http.ResponseWriter, r *http.Request, contentType string, body []byte) {
	digest := sha256.Sum256(body)
	etag := `"` + hex.EncodeToString(digest[:16]) + `"`

	w.Header().Set("Content-Type", contentType)
	setETag(w, etag)
	if notModified(w, r, etag) {
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func setETag(w http.ResponseWriter, etag string) {
	if etag == "" {
		return
	}
	if !strings.HasPrefix(etag, `"`) && !strings.HasPrefix(etag, "W/") {
		etag = `"` + etag + `"`
	}
	w.Header().Set("ETag", etag)
}

func notModified(w http.ResponseWriter, r *http.Request, etag string) bool {
	if etag == "" {
		return false
	}
	if !strings.Contains(r.Header.Get("If-None-Match"), strings.Trim(etag, `"`)) {
		return false
	}
	w.WriteHeader(http.StatusNotModified)
	return true
}

// record emits the operation metric for one handled request
func (rr *Routes) record(r *http.Request, operation string, err error, start time.Time) {
	rr.metrics.RecordOperation(r.Context(), operation, outcomeFor(err), time.Since(start))
}

// outcomeFor maps a repository error to the metric outcome label
func outcomeFor(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrInvalidData):
		return "invalid_data"
	default:
		return "upstream_error"
	}
}

// writeRepositoryError maps repository errors onto protocol responses. A
// missing project or resource is a plain 404; upstream and data failures
// surface as a bad gateway so installers retry elsewhere.
func (rr *Routes) writeRepositoryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		rr.writeErrorResponse(w, "Not found", http.StatusNotFound)
	case errors.Is(err, model.ErrInvalidData):
		logger.Errorf("Upstream served invalid data: %v", err)
		rr.writeErrorResponse(w, "Upstream index served invalid data", http.StatusBadGateway)
	case errors.Is(err, model.ErrUpstream):
		logger.Errorf("Upstream failure: %v", err)
		rr.writeErrorResponse(w, "Upstream index unavailable", http.StatusBadGateway)
	default:
		logger.Errorf("Unhandled repository error: %v", err)
		rr.writeErrorResponse(w, "Internal error", http.StatusInternalServerError)
	}
}

// writeErrorResponse writes a standardized error response
func (*Routes) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	errorResp := map[string]string{
		"error": message,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(errorResp); err != nil {
		logger.Errorf("Failed to encode error response: %v", err)
	}
}
