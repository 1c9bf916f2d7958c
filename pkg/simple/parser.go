// Package simple implements the wire formats of the simple repository
// protocol: parsing and serializing project lists and project pages in both
// the PEP-503 HTML shape and the PEP-691 JSON shape, plus the content
// negotiation between them.
//
// Parsers normalize both response shapes into the identical model so that
// downstream components never need to know which shape was served.
package simple

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/simpleindex/simple-repository-server/pkg/model"
)

type jsonMeta struct {
	APIVersion string `json:"api-version"`
}

type jsonProject struct {
	Name string `json:"name"`
}

type jsonProjectList struct {
	Meta     *jsonMeta     `json:"meta"`
	Projects []jsonProject `json:"projects"`
}

type jsonFile struct {
	Filename         string            `json:"filename"`
	URL              string            `json:"url"`
	Hashes           map[string]string `json:"hashes"`
	RequiresPython   string            `json:"requires-python"`
	CoreMetadata     json.RawMessage   `json:"core-metadata"`
	DistInfoMetadata json.RawMessage   `json:"dist-info-metadata"`
	Yanked           json.RawMessage   `json:"yanked"`
	Size             int64             `json:"size"`
	UploadTime       string            `json:"upload-time"`
}

type jsonProjectPage struct {
	Meta     *jsonMeta  `json:"meta"`
	Name     string     `json:"name"`
	Files    []jsonFile `json:"files"`
	Versions []string   `json:"versions"`
}

// ParseJSONProjectList parses a PEP-691 project list document.
func ParseJSONProjectList(body []byte, source string) (model.ProjectList, error) {
	var doc jsonProjectList
	if err := json.Unmarshal(body, &doc); err != nil {
		return model.ProjectList{}, &model.InvalidDataError{Source: source, Reason: "malformed JSON project list", Err: err}
	}
	if doc.Meta == nil || doc.Meta.APIVersion == "" {
		return model.ProjectList{}, &model.InvalidDataError{Source: source, Reason: "project list is missing meta.api-version"}
	}

	projects := make(map[string]model.ProjectListEntry, len(doc.Projects))
	for _, p := range doc.Projects {
		if p.Name == "" {
			return model.ProjectList{}, &model.InvalidDataError{Source: source, Reason: "project list entry without a name"}
		}
		entry := model.ProjectListEntry{Name: p.Name}
		projects[entry.NormalizedName()] = entry
	}

	return model.ProjectList{
		Meta:     model.Meta{APIVersion: doc.Meta.APIVersion},
		Projects: projects,
	}, nil
}

// ParseJSONProjectPage parses a PEP-691 project page document.
func ParseJSONProjectPage(body []byte, source string) (model.ProjectPage, error) {
	var doc jsonProjectPage
	if err := json.Unmarshal(body, &doc); err != nil {
		return model.ProjectPage{}, &model.InvalidDataError{Source: source, Reason: "malformed JSON project page", Err: err}
	}
	if doc.Meta == nil || doc.Meta.APIVersion == "" {
		return model.ProjectPage{}, &model.InvalidDataError{Source: source, Reason: "project page is missing meta.api-version"}
	}
	if doc.Name == "" {
		return model.ProjectPage{}, &model.InvalidDataError{Source: source, Reason: "project page is missing its name"}
	}

	files := make([]model.FileEntry, 0, len(doc.Files))
	for _, f := range doc.Files {
		if f.Filename == "" || f.URL == "" {
			return model.ProjectPage{}, &model.InvalidDataError{Source: source, Reason: "file entry without filename or url"}
		}

		entry := model.FileEntry{
			Filename:       f.Filename,
			URL:            f.URL,
			Hashes:         f.Hashes,
			RequiresPython: f.RequiresPython,
			Size:           f.Size,
		}
		if entry.Hashes == nil {
			entry.Hashes = map[string]string{}
		}

		// PEP-714: prefer core-metadata, fall back to dist-info-metadata.
		metadataRaw := f.CoreMetadata
		if metadataRaw == nil {
			metadataRaw = f.DistInfoMetadata
		}
		coreMetadata, err := parseMetadataValue(metadataRaw)
		if err != nil {
			return model.ProjectPage{}, &model.InvalidDataError{Source: source, Reason: "malformed core-metadata value", Err: err}
		}
		entry.CoreMetadata = coreMetadata

		yanked, err := parseYankedValue(f.Yanked)
		if err != nil {
			return model.ProjectPage{}, &model.InvalidDataError{Source: source, Reason: "malformed yanked value", Err: err}
		}
		entry.Yanked = yanked

		if f.UploadTime != "" {
			uploadTime, err := time.Parse(time.RFC3339Nano, f.UploadTime)
			if err != nil {
				return model.ProjectPage{}, &model.InvalidDataError{Source: source, Reason: "malformed upload-time value", Err: err}
			}
			entry.UploadTime = uploadTime
		}

		files = append(files, entry)
	}

	return model.ProjectPage{
		Meta:     model.Meta{APIVersion: doc.Meta.APIVersion},
		Name:     doc.Name,
		Files:    files,
		Versions: doc.Versions,
	}, nil
}

// parseMetadataValue decodes the PEP-691 core-metadata union: absent, a
// boolean, or a mapping of hash names to hex digests.
func parseMetadataValue(raw json.RawMessage) (*model.CoreMetadata, error) {
	if raw == nil {
		return nil, nil
	}
	var asBool bool
	if err := json.Unmarshal(raw, &asBool); err == nil {
		if !asBool {
			return nil, nil
		}
		return &model.CoreMetadata{Hashes: map[string]string{}}, nil
	}
	var asHashes map[string]string
	if err := json.Unmarshal(raw, &asHashes); err != nil {
		return nil, err
	}
	return &model.CoreMetadata{Hashes: asHashes}, nil
}

// parseYankedValue decodes the PEP-691 yanked union: absent, a boolean, or
// a reason string. Note that the string "false" is a valid yank reason.
func parseYankedValue(raw json.RawMessage) (*model.Yank, error) {
	if raw == nil {
		return nil, nil
	}
	var asBool bool
	if err := json.Unmarshal(raw, &asBool); err == nil {
		if !asBool {
			return nil, nil
		}
		return &model.Yank{}, nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err != nil {
		return nil, err
	}
	return &model.Yank{Reason: asString}, nil
}

// ParseHTMLProjectList parses a PEP-503 project list document. Each anchor
// element's text content is a project name.
func ParseHTMLProjectList(body []byte, source string) (model.ProjectList, error) {
	anchors, err := collectAnchors(body)
	if err != nil {
		return model.ProjectList{}, &model.InvalidDataError{Source: source, Reason: "malformed HTML project list", Err: err}
	}

	projects := make(map[string]model.ProjectListEntry, len(anchors))
	for _, a := range anchors {
		name := strings.TrimSpace(a.text)
		if name == "" {
			continue
		}
		entry := model.ProjectListEntry{Name: name}
		projects[entry.NormalizedName()] = entry
	}

	return model.ProjectList{
		Meta:     model.Meta{APIVersion: "1.0"},
		Projects: projects,
	}, nil
}

// ParseHTMLProjectPage parses a PEP-503 project page document. The project
// name is not carried by the HTML shape, so the caller provides it.
func ParseHTMLProjectPage(body []byte, projectName, source string) (model.ProjectPage, error) {
	anchors, err := collectAnchors(body)
	if err != nil {
		return model.ProjectPage{}, &model.InvalidDataError{Source: source, Reason: "malformed HTML project page", Err: err}
	}

	files := make([]model.FileEntry, 0, len(anchors))
	for _, a := range anchors {
		filename := strings.TrimSpace(a.text)
		if filename == "" || a.attrs["href"] == "" {
			continue
		}

		url, fragment, _ := strings.Cut(a.attrs["href"], "#")
		entry := model.FileEntry{
			Filename: filename,
			URL:      url,
			Hashes:   map[string]string{},
		}
		if algorithm, digest, ok := strings.Cut(fragment, "="); ok && algorithm != "" && digest != "" {
			entry.Hashes[algorithm] = digest
		}
		entry.RequiresPython = a.attrs["data-requires-python"]

		// PEP-714: data-core-metadata is preferred over the deprecated
		// data-dist-info-metadata spelling.
		metadataAttr, ok := a.attrs["data-core-metadata"]
		if !ok {
			metadataAttr, ok = a.attrs["data-dist-info-metadata"]
		}
		if ok {
			entry.CoreMetadata = parseMetadataAttr(metadataAttr)
		}

		if reason, ok := a.attrs["data-yanked"]; ok {
			entry.Yanked = &model.Yank{Reason: reason}
		}

		files = append(files, entry)
	}

	return model.ProjectPage{
		Meta:  model.Meta{APIVersion: "1.0"},
		Name:  projectName,
		Files: files,
	}, nil
}

// parseMetadataAttr decodes the PEP-658 attribute value: empty or "true"
// means available without a digest, otherwise "algorithm=hexdigest".
func parseMetadataAttr(value string) *model.CoreMetadata {
	if value == "" || value == "true" {
		return &model.CoreMetadata{Hashes: map[string]string{}}
	}
	if algorithm, digest, ok := strings.Cut(value, "="); ok && algorithm != "" && digest != "" {
		return &model.CoreMetadata{Hashes: map[string]string{algorithm: digest}}
	}
	return &model.CoreMetadata{Hashes: map[string]string{}}
}

type anchor struct {
	text  string
	attrs map[string]string
}

// collectAnchors walks an HTML document and returns every <a> element with
// its attributes and concatenated text content.
func collectAnchors(body []byte) ([]anchor, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var anchors []anchor
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			a := anchor{attrs: make(map[string]string, len(n.Attr))}
			for _, attr := range n.Attr {
				a.attrs[attr.Key] = attr.Val
			}
			var text strings.Builder
			var collect func(c *html.Node)
			collect = func(c *html.Node) {
				if c.Type == html.TextNode {
					text.WriteString(c.Data)
				}
				for child := c.FirstChild; child != nil; child = child.NextSibling {
					collect(child)
				}
			}
			collect(n)
			a.text = text.String()
			anchors = append(anchors, a)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return anchors, nil
}
