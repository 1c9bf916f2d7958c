// Package builder assembles the repository component graph described by a
// server configuration: one leaf per configured source, merged by priority,
// optionally gated by an allow list and augmented with metadata injection.
package builder

import (
	"fmt"
	"net/http"

	"github.com/simpleindex/simple-repository-server/internal/config"
	"github.com/simpleindex/simple-repository-server/pkg/cache"
	"github.com/simpleindex/simple-repository-server/pkg/repository"
)

// cacheDirOff disables the disk cache layer in configuration.
const cacheDirOff = "off"

// Build turns a validated configuration into a ready repository.
func Build(cfg *config.Config) (repository.Repository, error) {
	store, err := buildStore(cfg.Cache)
	if err != nil {
		return nil, err
	}

	sources := make([]repository.Repository, 0, len(cfg.Sources))
	for _, src := range cfg.Sources {
		source, err := buildSource(src, store)
		if err != nil {
			return nil, fmt.Errorf("building source %s: %w", src.Name, err)
		}
		sources = append(sources, source)
	}

	var repo repository.Repository
	if len(sources) == 1 {
		repo = sources[0]
	} else {
		repo, err = repository.NewPrioritySelected(sources)
		if err != nil {
			return nil, err
		}
	}

	if len(cfg.AllowedProjects) > 0 {
		repo = repository.NewAllowListed(repo, cfg.AllowedProjects)
	}

	if cfg.Metadata != nil && cfg.Metadata.Enabled {
		repo = repository.NewMetadataInjector(repo,
			repository.WithInjectorStore(store),
		)
	}

	return repo, nil
}

// buildStore selects the cache backend. The disk store is the default so
// index revalidation and extracted metadata survive restarts and can be
// shared between processes.
func buildStore(cacheCfg *config.CacheConfig) (cache.Store, error) {
	dir := ""
	memoryEntries := 0
	if cacheCfg != nil {
		dir = cacheCfg.Dir
		memoryEntries = cacheCfg.MemoryEntries
	}

	if dir == cacheDirOff {
		return cache.NewMemory(memoryEntries)
	}
	return cache.NewDisk(dir)
}

func buildSource(src config.SourceConfig, store cache.Store) (repository.Repository, error) {
	switch src.GetType() {
	case config.SourceTypeHTTP:
		opts := []repository.HTTPOption{
			repository.WithClient(&http.Client{Timeout: src.HTTP.GetTimeout()}),
			repository.WithStore(store),
		}
		if src.HTTP.MaxTries > 0 {
			opts = append(opts, repository.WithMaxTries(src.HTTP.MaxTries))
		}
		return repository.NewHTTP(src.HTTP.URL, opts...), nil
	case config.SourceTypeLocal:
		return repository.NewLocal(src.Local.Path)
	default:
		return nil, fmt.Errorf("source has no type")
	}
}
