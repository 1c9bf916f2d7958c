// Package repository defines the repository interface of the simple
// repository protocol and its composable implementations. Every component
// both consumes and presents the same three-operation interface, so caching,
// merging, filtering and metadata injection stack in any order on top of an
// HTTP or filesystem leaf.
package repository

import (
	"context"

	"github.com/simpleindex/simple-repository-server/pkg/model"
)

// Repository is the uniform read interface over a package index.
//
// Implementations normalize project names before lookup, so callers may
// pass any spelling of a name. A missing project or resource is reported
// with an error matching model.ErrNotFound; transport and data failures use
// model.ErrUpstream and model.ErrInvalidData respectively.
type Repository interface {
	// GetProjectList returns the index of all served projects.
	GetProjectList(ctx context.Context) (model.ProjectList, error)

	// GetProjectPage returns the file listing for one project.
	GetProjectPage(ctx context.Context, project string) (model.ProjectPage, error)

	// GetResource resolves a file or metadata resource of a project to a
	// location it can be served from.
	GetResource(ctx context.Context, project, resourceName string) (model.Resource, error)
}
