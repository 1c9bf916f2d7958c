package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/simpleindex/simple-repository-server/pkg/cache"
	"github.com/simpleindex/simple-repository-server/pkg/model"
	"github.com/simpleindex/simple-repository-server/pkg/simple"
)

// maxIndexBodySize bounds a single index response body.
const maxIndexBodySize = 64 << 20

// errStatusNotFound marks a 404 or 410 from the upstream index. It is
// mapped per operation: a missing page is a normal miss, a missing list
// means the upstream is broken.
var errStatusNotFound = errors.New("upstream returned not found")

// HTTP is a repository client for a remote simple index. Index responses
// are cached together with their ETag so revalidation is a conditional GET,
// and a cached copy is served when the upstream is unreachable. Concurrent
// requests for the same URL are coalesced.
type HTTP struct {
	baseURL  string
	client   *http.Client
	store    cache.Store
	maxTries uint
	flight   cache.Group[fetched]
}

var _ Repository = (*HTTP)(nil)

// HTTPOption mutates the repository during construction.
type HTTPOption func(*HTTP)

// WithClient replaces the default HTTP client.
func WithClient(client *http.Client) HTTPOption {
	return func(h *HTTP) { h.client = client }
}

// WithStore sets the cache backing conditional requests and stale
// fallback. Without one, every call hits the upstream unconditionally.
func WithStore(store cache.Store) HTTPOption {
	return func(h *HTTP) { h.store = store }
}

// WithMaxTries caps the attempts per upstream request, including the first.
func WithMaxTries(n uint) HTTPOption {
	return func(h *HTTP) { h.maxTries = n }
}

// NewHTTP creates a repository over the index rooted at baseURL, e.g.
// "https://pypi.org/simple/".
func NewHTTP(baseURL string, opts ...HTTPOption) *HTTP {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	h := &HTTP{
		baseURL:  baseURL,
		client:   &http.Client{Timeout: 30 * time.Second},
		maxTries: 3,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// cachedResponse is the JSON shape persisted per URL.
type cachedResponse struct {
	ETag        string `json:"etag"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// fetched is an index document plus the content type it was served with.
type fetched struct {
	contentType string
	body        []byte
}

// GetProjectList implements Repository. An upstream that answers its index
// root with 404 is broken, so the miss surfaces as an upstream error rather
// than a not-found.
func (h *HTTP) GetProjectList(ctx context.Context) (model.ProjectList, error) {
	res, err := h.fetch(ctx, h.baseURL)
	if errors.Is(err, errStatusNotFound) {
		return model.ProjectList{}, &model.UpstreamError{
			Source: h.baseURL,
			Err:    errors.New("index root does not exist"),
		}
	}
	if err != nil {
		return model.ProjectList{}, err
	}

	switch {
	case simple.IsJSON(res.contentType):
		return simple.ParseJSONProjectList(res.body, h.baseURL)
	case simple.IsHTML(res.contentType):
		return simple.ParseHTMLProjectList(res.body, h.baseURL)
	default:
		return model.ProjectList{}, &model.InvalidDataError{
			Source: h.baseURL,
			Reason: fmt.Sprintf("unsupported index content type %q", res.contentType),
		}
	}
}

// GetProjectPage implements Repository.
func (h *HTTP) GetProjectPage(ctx context.Context, project string) (model.ProjectPage, error) {
	normalized := model.NormalizeProjectName(project)
	pageURL := h.baseURL + normalized + "/"

	res, err := h.fetch(ctx, pageURL)
	if errors.Is(err, errStatusNotFound) {
		return model.ProjectPage{}, &model.NotFoundError{Project: project}
	}
	if err != nil {
		return model.ProjectPage{}, err
	}

	var page model.ProjectPage
	switch {
	case simple.IsJSON(res.contentType):
		page, err = simple.ParseJSONProjectPage(res.body, pageURL)
	case simple.IsHTML(res.contentType):
		page, err = simple.ParseHTMLProjectPage(res.body, normalized, pageURL)
	default:
		err = &model.InvalidDataError{
			Source: pageURL,
			Reason: fmt.Sprintf("unsupported index content type %q", res.contentType),
		}
	}
	if err != nil {
		return model.ProjectPage{}, err
	}

	absolutizeFileURLs(&page, pageURL)
	return page, nil
}

// GetResource implements Repository. Resources are resolved through the
// project page: distribution files map to their download URL, and a
// "<filename>.metadata" name maps to the PEP-658 metadata URL when the page
// declares metadata for that file.
func (h *HTTP) GetResource(ctx context.Context, project, resourceName string) (model.Resource, error) {
	page, err := h.GetProjectPage(ctx, project)
	if err != nil {
		return nil, err
	}

	if target, ok := strings.CutSuffix(resourceName, ".metadata"); ok {
		for _, f := range page.Files {
			if f.Filename != target {
				continue
			}
			if f.CoreMetadata == nil {
				break
			}
			return &model.HTTPResource{
				URL:  f.URL + ".metadata",
				Etag: h.headETag(ctx, f.URL+".metadata"),
			}, nil
		}
		return nil, &model.NotFoundError{Project: project, Resource: resourceName}
	}

	for _, f := range page.Files {
		if f.Filename == resourceName {
			return &model.HTTPResource{
				URL:  f.URL,
				Etag: h.headETag(ctx, f.URL),
			}, nil
		}
	}
	return nil, &model.NotFoundError{Project: project, Resource: resourceName}
}

// headETag asks the file host for a validator. Failures are tolerated; the
// resource simply carries no ETag.
func (h *HTTP) headETag(ctx context.Context, rawURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return ""
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return ""
	}
	return resp.Header.Get("ETag")
}

// fetch retrieves an index document, coalescing concurrent callers and
// revalidating any cached copy with If-None-Match. When every attempt fails
// on transport and a cached copy exists, the cached copy is served.
func (h *HTTP) fetch(ctx context.Context, rawURL string) (fetched, error) {
	return h.flight.Do(ctx, rawURL, func(ctx context.Context) (fetched, error) {
		cached := h.loadCached(ctx, rawURL)

		res, err := backoff.Retry(ctx, func() (fetched, error) {
			return h.fetchOnce(ctx, rawURL, cached)
		},
			backoff.WithBackOff(backoff.NewExponentialBackOff()),
			backoff.WithMaxTries(h.maxTries),
		)
		if err == nil {
			return res, nil
		}

		var upstream *model.UpstreamError
		if errors.As(err, &upstream) && cached != nil {
			return fetched{contentType: cached.ContentType, body: cached.Body}, nil
		}
		return fetched{}, err
	})
}

// fetchOnce performs one conditional GET. Errors that another attempt
// cannot fix are marked permanent.
func (h *HTTP) fetchOnce(ctx context.Context, rawURL string, cached *cachedResponse) (fetched, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fetched{}, backoff.Permanent(err)
	}
	req.Header.Set("Accept", simple.AcceptHeader)
	if cached != nil && cached.ETag != "" {
		req.Header.Set("If-None-Match", cached.ETag)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fetched{}, &model.UpstreamError{Source: rawURL, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxIndexBodySize+1))
		if err != nil {
			return fetched{}, &model.UpstreamError{Source: rawURL, Err: err}
		}
		if len(body) > maxIndexBodySize {
			return fetched{}, backoff.Permanent(&model.InvalidDataError{
				Source: rawURL,
				Reason: "index response exceeds the size limit",
			})
		}
		contentType := resp.Header.Get("Content-Type")
		h.storeCached(ctx, rawURL, cachedResponse{
			ETag:        resp.Header.Get("ETag"),
			ContentType: contentType,
			Body:        body,
		})
		return fetched{contentType: contentType, body: body}, nil

	case resp.StatusCode == http.StatusNotModified && cached != nil:
		return fetched{contentType: cached.ContentType, body: cached.Body}, nil

	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return fetched{}, backoff.Permanent(errStatusNotFound)

	case resp.StatusCode >= 500:
		return fetched{}, &model.UpstreamError{
			Source: rawURL,
			Err:    fmt.Errorf("unexpected status %d", resp.StatusCode),
		}

	default:
		return fetched{}, backoff.Permanent(&model.UpstreamError{
			Source: rawURL,
			Err:    fmt.Errorf("unexpected status %d", resp.StatusCode),
		})
	}
}

func (h *HTTP) loadCached(ctx context.Context, rawURL string) *cachedResponse {
	if h.store == nil {
		return nil
	}
	raw, err := h.store.Get(ctx, rawURL)
	if err != nil {
		return nil
	}
	var entry cachedResponse
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil
	}
	return &entry
}

func (h *HTTP) storeCached(ctx context.Context, rawURL string, entry cachedResponse) {
	if h.store == nil {
		return
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_ = h.store.Set(ctx, rawURL, raw)
}

// absolutizeFileURLs resolves relative file URLs against the page URL so
// that downstream components always see absolute locations.
func absolutizeFileURLs(page *model.ProjectPage, pageURL string) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return
	}
	for i, f := range page.Files {
		ref, err := url.Parse(f.URL)
		if err != nil {
			continue
		}
		page.Files[i].URL = base.ResolveReference(ref).String()
	}
}
