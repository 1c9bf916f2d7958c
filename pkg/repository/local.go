package repository

import (
	"context"
	"crypto/md5" //nolint:gosec // cache validator, not a security boundary
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/simpleindex/simple-repository-server/pkg/model"
)

// Local serves a directory tree laid out as one subdirectory per project,
// each holding that project's distribution files. Subdirectory names must
// already be normalized; others are ignored.
type Local struct {
	root string
}

var _ Repository = (*Local)(nil)

// NewLocal creates a repository over root, which must be an existing
// directory.
func NewLocal(root string) (*Local, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("opening index directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("index path %s is not a directory", root)
	}
	return &Local{root: root}, nil
}

// GetProjectList implements Repository.
func (l *Local) GetProjectList(_ context.Context) (model.ProjectList, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return model.ProjectList{}, &model.UpstreamError{Source: l.root, Err: err}
	}

	projects := make(map[string]model.ProjectListEntry)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if name != model.NormalizeProjectName(name) {
			continue
		}
		projects[name] = model.ProjectListEntry{Name: name}
	}

	return model.ProjectList{
		Meta:     model.Meta{APIVersion: "1.0"},
		Projects: projects,
	}, nil
}

// GetProjectPage implements Repository.
func (l *Local) GetProjectPage(_ context.Context, project string) (model.ProjectPage, error) {
	normalized := model.NormalizeProjectName(project)
	dir := filepath.Join(l.root, normalized)

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return model.ProjectPage{}, &model.NotFoundError{Project: project}
	}
	if err != nil {
		return model.ProjectPage{}, &model.UpstreamError{Source: dir, Err: err}
	}

	files := make([]model.FileEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		files = append(files, model.FileEntry{
			Filename:   entry.Name(),
			URL:        "file://" + filepath.ToSlash(path),
			Hashes:     map[string]string{},
			Size:       info.Size(),
			UploadTime: info.ModTime().UTC(),
		})
	}

	return model.ProjectPage{
		Meta:  model.Meta{APIVersion: "1.0"},
		Name:  normalized,
		Files: files,
	}, nil
}

// GetResource implements Repository.
func (l *Local) GetResource(_ context.Context, project, resourceName string) (model.Resource, error) {
	normalized := model.NormalizeProjectName(project)
	if strings.ContainsAny(resourceName, "/\\") || resourceName == "." || resourceName == ".." {
		return nil, &model.NotFoundError{Project: project, Resource: resourceName}
	}

	path := filepath.Join(l.root, normalized, resourceName)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &model.NotFoundError{Project: project, Resource: resourceName}
	}
	if err != nil {
		return nil, &model.UpstreamError{Source: path, Err: err}
	}
	if info.IsDir() {
		return nil, &model.NotFoundError{Project: project, Resource: resourceName}
	}

	return &model.LocalResource{
		Path: path,
		Etag: fileETag(info.ModTime().UnixNano(), info.Size()),
	}, nil
}

// fileETag derives a weak validator from the file's modification time and
// size, matching what a static file server would hand out.
func fileETag(mtimeNanos, size int64) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%d-%d", mtimeNanos, size))) //nolint:gosec
	return fmt.Sprintf("%q", fmt.Sprintf("%x", sum))
}
