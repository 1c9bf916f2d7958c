package repository

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/simpleindex/simple-repository-server/internal/logger"
	"github.com/simpleindex/simple-repository-server/pkg/model"
)

// PrioritySelected merges an ordered list of sources so that every project
// is served exclusively by the first source that knows it. Later sources
// never contribute files for a project an earlier source carries, which
// stops a public index from shadowing an internal package of the same
// name.
type PrioritySelected struct {
	sources []Repository
}

var _ Repository = (*PrioritySelected)(nil)

// NewPrioritySelected creates the merged view over sources, ordered from
// highest to lowest priority. At least two sources are required; a single
// source needs no merging.
func NewPrioritySelected(sources []Repository) (*PrioritySelected, error) {
	if len(sources) < 2 {
		return nil, fmt.Errorf("priority selection needs at least two sources, got %d", len(sources))
	}
	return &PrioritySelected{sources: sources}, nil
}

// GetProjectList implements Repository. The result is the union of all
// source lists; any source failing to list makes the union unreliable, so
// the error is surfaced instead of a partial list.
func (p *PrioritySelected) GetProjectList(ctx context.Context) (model.ProjectList, error) {
	lists := make([]model.ProjectList, len(p.sources))
	group, ctx := errgroup.WithContext(ctx)
	for i, source := range p.sources {
		group.Go(func() error {
			list, err := source.GetProjectList(ctx)
			if err != nil {
				return err
			}
			lists[i] = list
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return model.ProjectList{}, err
	}

	merged := model.ProjectList{
		Meta:     model.Meta{APIVersion: "1.0"},
		Projects: make(map[string]model.ProjectListEntry),
	}
	// iterate lowest priority first so higher priority spellings win
	for i := len(lists) - 1; i >= 0; i-- {
		for key, entry := range lists[i].Projects {
			merged.Projects[key] = entry
		}
	}
	return merged, nil
}

// GetProjectPage implements Repository. Sources are consulted in priority
// order and the first page found is returned as-is. A not-found moves on to
// the next source; any other failure stops the scan, because skipping a
// source that should have answered would silently hand the project to a
// lower priority index.
func (p *PrioritySelected) GetProjectPage(ctx context.Context, project string) (model.ProjectPage, error) {
	for i, source := range p.sources {
		page, err := source.GetProjectPage(ctx, project)
		if err == nil {
			logger.Debugf("project %s served by source %d of %d", project, i+1, len(p.sources))
			return page, nil
		}
		if errors.Is(err, model.ErrNotFound) {
			continue
		}
		return model.ProjectPage{}, err
	}
	return model.ProjectPage{}, &model.NotFoundError{Project: project}
}

// GetResource implements Repository, with the same first-match scan and
// error discipline as GetProjectPage.
func (p *PrioritySelected) GetResource(ctx context.Context, project, resourceName string) (model.Resource, error) {
	for _, source := range p.sources {
		resource, err := source.GetResource(ctx, project, resourceName)
		if err == nil {
			return resource, nil
		}
		if errors.Is(err, model.ErrNotFound) {
			continue
		}
		return nil, err
	}
	return nil, &model.NotFoundError{Project: project, Resource: resourceName}
}
