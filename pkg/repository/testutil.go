package repository

import (
	"context"

	"github.com/simpleindex/simple-repository-server/pkg/model"
)

// FakeRepository is an in-memory Repository for tests. Lookups are by
// normalized project name; absent entries report not-found unless an error
// is configured for the operation.
type FakeRepository struct {
	List      model.ProjectList
	Pages     map[string]model.ProjectPage
	Resources map[string]model.Resource

	ListErr      error
	PageErrs     map[string]error
	ResourceErrs map[string]error
}

var _ Repository = (*FakeRepository)(nil)

// NewFakeRepository creates an empty fake.
func NewFakeRepository() *FakeRepository {
	return &FakeRepository{
		List: model.ProjectList{
			Meta:     model.Meta{APIVersion: "1.0"},
			Projects: map[string]model.ProjectListEntry{},
		},
		Pages:        map[string]model.ProjectPage{},
		Resources:    map[string]model.Resource{},
		PageErrs:     map[string]error{},
		ResourceErrs: map[string]error{},
	}
}

// AddPage registers a project page and its list entry.
func (f *FakeRepository) AddPage(page model.ProjectPage) {
	key := page.NormalizedName()
	f.Pages[key] = page
	f.List.Projects[key] = model.ProjectListEntry{Name: page.Name}
}

// AddResource registers a resource under project.
func (f *FakeRepository) AddResource(project, resourceName string, resource model.Resource) {
	f.Resources[model.NormalizeProjectName(project)+"/"+resourceName] = resource
}

// GetProjectList implements Repository.
func (f *FakeRepository) GetProjectList(context.Context) (model.ProjectList, error) {
	if f.ListErr != nil {
		return model.ProjectList{}, f.ListErr
	}
	return f.List, nil
}

// GetProjectPage implements Repository.
func (f *FakeRepository) GetProjectPage(_ context.Context, project string) (model.ProjectPage, error) {
	key := model.NormalizeProjectName(project)
	if err := f.PageErrs[key]; err != nil {
		return model.ProjectPage{}, err
	}
	page, ok := f.Pages[key]
	if !ok {
		return model.ProjectPage{}, &model.NotFoundError{Project: project}
	}
	return page, nil
}

// GetResource implements Repository.
func (f *FakeRepository) GetResource(_ context.Context, project, resourceName string) (model.Resource, error) {
	key := model.NormalizeProjectName(project) + "/" + resourceName
	if err := f.ResourceErrs[key]; err != nil {
		return nil, err
	}
	resource, ok := f.Resources[key]
	if !ok {
		return nil, &model.NotFoundError{Project: project, Resource: resourceName}
	}
	return resource, nil
}
