// Package model defines the shared data model for the simple repository
// protocol: project lists, project pages, file entries and resources.
//
// The model follows the simple index PEPs (503, 629, 658, 691, 700) and is
// deliberately independent of any transport. Parsers and serializers adapt
// wire formats to and from these types; repository components pass them
// around without mutation.
package model

import (
	"time"
)

// Meta carries response-level metadata (PEP-629).
type Meta struct {
	// APIVersion is the simple API version of the response, e.g. "1.0".
	APIVersion string
}

// ProjectListEntry references a single project in a project list.
// The name is not necessarily normalized.
type ProjectListEntry struct {
	Name string
}

// NormalizedName returns the canonical form of the entry's name.
func (e ProjectListEntry) NormalizedName() string {
	return NormalizeProjectName(e.Name)
}

// ProjectList is the full list of projects known to a repository, keyed by
// normalized project name. A ProjectList is immutable once constructed; a
// new request produces a new list.
type ProjectList struct {
	Meta     Meta
	Projects map[string]ProjectListEntry
}

// CoreMetadata describes the availability of a PEP-658 core metadata file
// for a distribution. A nil *CoreMetadata on a FileEntry means availability
// is unknown or unsupported. Hashes maps hash algorithm names to hex digests
// of the metadata file itself and may be empty when only availability is
// known.
type CoreMetadata struct {
	Hashes map[string]string
}

// Yank records that a file has been yanked (PEP-592). Reason is optional
// and may be empty.
type Yank struct {
	Reason string
}

// FileEntry is one downloadable distribution file belonging to a project
// page. FileEntry is a value object: identity is defined by Filename and
// Hashes. Components composing repositories may annotate (CoreMetadata,
// Yanked) or drop entries, but never edit identity fields of entries
// received from a wrapped component.
type FileEntry struct {
	Filename string

	// URL is the download location. It may be absolute (http, https or
	// file scheme) or relative to the page it was served on.
	URL string

	// Hashes maps hash algorithm names to hex digests, e.g.
	// {"sha256": "..."}.
	Hashes map[string]string

	// RequiresPython is the PEP-345 requires-python specifier, if declared.
	RequiresPython string

	// CoreMetadata reports PEP-658 metadata availability. nil = unknown.
	CoreMetadata *CoreMetadata

	// Yanked is non-nil when the file has been yanked.
	Yanked *Yank

	// Size in bytes. Mandatory for API version >= 1.1, zero when unknown.
	Size int64

	// UploadTime is the PEP-700 upload timestamp, zero when unknown.
	UploadTime time.Time
}

// ProjectPage is the file listing of a single project. File order is
// protocol-significant: consumers may pick the first compatible match.
// A ProjectPage is immutable once constructed.
type ProjectPage struct {
	Meta Meta

	// Name is the project name as served, not necessarily normalized.
	Name string

	Files []FileEntry

	// Versions lists the distinct project versions present in Files
	// (PEP-700). Optional; nil when the source did not provide it.
	Versions []string
}

// NormalizedName returns the canonical form of the page's project name.
func (p ProjectPage) NormalizedName() string {
	return NormalizeProjectName(p.Name)
}

// Resource is the result of a resource retrieval: either a redirect target
// (HTTPResource), a file on local disk (LocalResource) or an in-memory body
// (TextResource). Ownership of any underlying stream belongs to the caller
// for the duration of one read pass.
type Resource interface {
	// ETag returns the freshness token for the resource, or "" when
	// unknown. The token is an opaque upstream validator, not a content
	// hash.
	ETag() string

	isResource()
}

// HTTPResource is a redirect target: the resource lives at URL and has not
// been fetched.
type HTTPResource struct {
	URL string

	Etag string
}

// ETag implements Resource.
func (r *HTTPResource) ETag() string { return r.Etag }

func (*HTTPResource) isResource() {}

// LocalResource is a file on local disk.
type LocalResource struct {
	Path string

	Etag string
}

// ETag implements Resource.
func (r *LocalResource) ETag() string { return r.Etag }

func (*LocalResource) isResource() {}

// TextResource is an in-memory resource body with a declared content type.
type TextResource struct {
	Content     []byte
	ContentType string

	Etag string
}

// ETag implements Resource.
func (r *TextResource) ETag() string { return r.Etag }

func (*TextResource) isResource() {}
