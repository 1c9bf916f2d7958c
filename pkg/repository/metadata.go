package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/simpleindex/simple-repository-server/internal/logger"
	"github.com/simpleindex/simple-repository-server/pkg/cache"
	"github.com/simpleindex/simple-repository-server/pkg/model"
	"github.com/simpleindex/simple-repository-server/pkg/wheel"
)

// MetadataInjector augments a repository so that every wheel exposes its
// core metadata, whether or not the upstream publishes PEP-658 files. Pages
// gain an availability descriptor for wheels that lack one; the metadata
// itself is read out of the archive only when a "<wheel>.metadata" resource
// is requested. Extracted metadata is cached keyed by filename and the
// page's declared digest, so a republished archive under the same name is
// re-read.
type MetadataInjector struct {
	source Repository
	client *http.Client
	store  cache.Store
	flight cache.Group[[]byte]
}

var _ Repository = (*MetadataInjector)(nil)

// InjectorOption mutates the injector during construction.
type InjectorOption func(*MetadataInjector)

// WithInjectorClient replaces the HTTP client used for archive reads.
func WithInjectorClient(client *http.Client) InjectorOption {
	return func(m *MetadataInjector) { m.client = client }
}

// WithInjectorStore sets the cache for extracted metadata.
func WithInjectorStore(store cache.Store) InjectorOption {
	return func(m *MetadataInjector) { m.store = store }
}

// NewMetadataInjector wraps source with metadata injection.
func NewMetadataInjector(source Repository, opts ...InjectorOption) *MetadataInjector {
	m := &MetadataInjector{
		source: source,
		client: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetProjectList implements Repository.
func (m *MetadataInjector) GetProjectList(ctx context.Context) (model.ProjectList, error) {
	return m.source.GetProjectList(ctx)
}

// GetProjectPage implements Repository. Wheels without a metadata
// descriptor get one added. The descriptor declares availability without a
// digest; the digest is only known once a consumer requests the metadata
// resource and the archive is actually read.
func (m *MetadataInjector) GetProjectPage(ctx context.Context, project string) (model.ProjectPage, error) {
	page, err := m.source.GetProjectPage(ctx, project)
	if err != nil {
		return model.ProjectPage{}, err
	}

	for i, f := range page.Files {
		if isWheel(f.Filename) && f.CoreMetadata == nil {
			page.Files[i].CoreMetadata = &model.CoreMetadata{Hashes: map[string]string{}}
		}
	}

	return page, nil
}

// GetResource implements Repository. A request for "<wheel>.metadata" is
// answered by the upstream when it has the file, otherwise by extracting
// the metadata out of the wheel listed on the project page. A wheel whose
// metadata cannot be read answers as if the resource did not exist.
func (m *MetadataInjector) GetResource(ctx context.Context, project, resourceName string) (model.Resource, error) {
	target, ok := strings.CutSuffix(resourceName, ".metadata")
	if !ok || !isWheel(target) {
		return m.source.GetResource(ctx, project, resourceName)
	}

	resource, err := m.source.GetResource(ctx, project, resourceName)
	if err == nil {
		return resource, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}

	page, err := m.source.GetProjectPage(ctx, project)
	if err != nil {
		return nil, err
	}

	var entry *model.FileEntry
	for i := range page.Files {
		if page.Files[i].Filename == target {
			entry = &page.Files[i]
			break
		}
	}
	if entry == nil {
		return nil, &model.NotFoundError{Project: project, Resource: resourceName}
	}

	content, err := m.extract(ctx, entry.URL, target, declaredDigest(*entry))
	if err != nil {
		logger.Warnf("no metadata for %s: %v", target, err)
		return nil, &model.NotFoundError{Project: project, Resource: resourceName}
	}

	digest := sha256.Sum256(content)
	return &model.TextResource{
		Content:     content,
		ContentType: "text/plain",
		Etag:        hex.EncodeToString(digest[:]),
	}, nil
}

// extract returns the METADATA contents for the wheel at archiveURL,
// consulting and filling the cache. Concurrent extractions of the same
// wheel are coalesced.
func (m *MetadataInjector) extract(ctx context.Context, archiveURL, filename, digest string) ([]byte, error) {
	key := "metadata/" + filename + "/" + digest
	return m.flight.Do(ctx, key, func(ctx context.Context) ([]byte, error) {
		if m.store != nil {
			if content, err := m.store.Get(ctx, key); err == nil {
				return content, nil
			}
		}

		content, err := wheel.ExtractFromURL(ctx, m.client, archiveURL, filename)
		if err != nil {
			return nil, err
		}

		if m.store != nil {
			if err := m.store.Set(ctx, key, content); err != nil {
				logger.Warnf("caching metadata for %s: %v", filename, err)
			}
		}
		return content, nil
	})
}

func isWheel(filename string) bool {
	return strings.HasSuffix(filename, ".whl")
}

// declaredDigest picks the strongest digest the page declares for a file,
// used to key the metadata cache so a republished archive is re-read.
func declaredDigest(f model.FileEntry) string {
	if digest, ok := f.Hashes["sha256"]; ok {
		return digest
	}
	bestAlgorithm := ""
	for algorithm := range f.Hashes {
		if bestAlgorithm == "" || algorithm < bestAlgorithm {
			bestAlgorithm = algorithm
		}
	}
	if bestAlgorithm == "" {
		return ""
	}
	return bestAlgorithm + "=" + f.Hashes[bestAlgorithm]
}
