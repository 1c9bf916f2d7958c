package repository

import (
	"context"

	"github.com/simpleindex/simple-repository-server/pkg/model"
)

// AllowListed restricts a repository to a fixed set of projects. Anything
// outside the set is reported exactly like a project the upstream never
// had, so a client cannot distinguish a denied name from an absent one.
type AllowListed struct {
	source  Repository
	allowed map[string]struct{}
}

var _ Repository = (*AllowListed)(nil)

// NewAllowListed wraps source, admitting only the given project names. The
// names may be in any spelling; they are normalized before use.
func NewAllowListed(source Repository, projects []string) *AllowListed {
	allowed := make(map[string]struct{}, len(projects))
	for _, name := range projects {
		allowed[model.NormalizeProjectName(name)] = struct{}{}
	}
	return &AllowListed{source: source, allowed: allowed}
}

func (a *AllowListed) permitted(project string) bool {
	_, ok := a.allowed[model.NormalizeProjectName(project)]
	return ok
}

// GetProjectList implements Repository, returning the upstream list reduced
// to the admitted projects.
func (a *AllowListed) GetProjectList(ctx context.Context) (model.ProjectList, error) {
	list, err := a.source.GetProjectList(ctx)
	if err != nil {
		return model.ProjectList{}, err
	}

	filtered := make(map[string]model.ProjectListEntry, len(a.allowed))
	for key, entry := range list.Projects {
		if _, ok := a.allowed[key]; ok {
			filtered[key] = entry
		}
	}
	list.Projects = filtered
	return list, nil
}

// GetProjectPage implements Repository.
func (a *AllowListed) GetProjectPage(ctx context.Context, project string) (model.ProjectPage, error) {
	if !a.permitted(project) {
		return model.ProjectPage{}, &model.NotFoundError{Project: project}
	}
	return a.source.GetProjectPage(ctx, project)
}

// GetResource implements Repository.
func (a *AllowListed) GetResource(ctx context.Context, project, resourceName string) (model.Resource, error) {
	if !a.permitted(project) {
		return nil, &model.NotFoundError{Project: project, Resource: resourceName}
	}
	return a.source.GetResource(ctx, project, resourceName)
}
