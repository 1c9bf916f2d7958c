package simple

import (
	"encoding/json"
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/simpleindex/simple-repository-server/pkg/model"
)

type jsonFileOut struct {
	Filename         string            `json:"filename"`
	URL              string            `json:"url"`
	Hashes           map[string]string `json:"hashes"`
	RequiresPython   string            `json:"requires-python,omitempty"`
	CoreMetadata     any               `json:"core-metadata,omitempty"`
	DistInfoMetadata any               `json:"dist-info-metadata,omitempty"`
	Yanked           any               `json:"yanked,omitempty"`
	Size             int64             `json:"size,omitempty"`
	UploadTime       string            `json:"upload-time,omitempty"`
}

type jsonPageOut struct {
	Meta     jsonMeta      `json:"meta"`
	Name     string        `json:"name"`
	Files    []jsonFileOut `json:"files"`
	Versions []string      `json:"versions,omitempty"`
}

type jsonListOut struct {
	Meta     jsonMeta      `json:"meta"`
	Projects []jsonProject `json:"projects"`
}

// SerializeJSONProjectList renders a project list as a PEP-691 document.
// Projects are emitted in normalized-name order for stable output.
func SerializeJSONProjectList(list model.ProjectList) ([]byte, error) {
	out := jsonListOut{
		Meta:     jsonMeta{APIVersion: list.Meta.APIVersion},
		Projects: make([]jsonProject, 0, len(list.Projects)),
	}
	for _, key := range sortedKeys(list.Projects) {
		out.Projects = append(out.Projects, jsonProject{Name: list.Projects[key].Name})
	}
	return json.Marshal(out)
}

// SerializeJSONProjectPage renders a project page as a PEP-691 document.
func SerializeJSONProjectPage(page model.ProjectPage) ([]byte, error) {
	out := jsonPageOut{
		Meta:     jsonMeta{APIVersion: page.Meta.APIVersion},
		Name:     page.Name,
		Files:    make([]jsonFileOut, 0, len(page.Files)),
		Versions: page.Versions,
	}
	for _, f := range page.Files {
		fileOut := jsonFileOut{
			Filename:       f.Filename,
			URL:            publicURL(f),
			Hashes:         f.Hashes,
			RequiresPython: f.RequiresPython,
			Size:           f.Size,
		}
		if fileOut.Hashes == nil {
			fileOut.Hashes = map[string]string{}
		}
		if f.CoreMetadata != nil {
			// PEP-714: emit both the current and the deprecated key so
			// that older installers keep working.
			value := metadataValue(f.CoreMetadata)
			fileOut.CoreMetadata = value
			fileOut.DistInfoMetadata = value
		}
		if f.Yanked != nil {
			if f.Yanked.Reason != "" {
				fileOut.Yanked = f.Yanked.Reason
			} else {
				fileOut.Yanked = true
			}
		}
		if !f.UploadTime.IsZero() {
			fileOut.UploadTime = f.UploadTime.UTC().Format("2006-01-02T15:04:05.000000Z07:00")
		}
		out.Files = append(out.Files, fileOut)
	}
	return json.Marshal(out)
}

func metadataValue(m *model.CoreMetadata) any {
	if len(m.Hashes) == 0 {
		return true
	}
	return m.Hashes
}

// SerializeHTMLProjectList renders a project list as a PEP-503 document.
func SerializeHTMLProjectList(list model.ProjectList) []byte {
	var b strings.Builder
	writeHTMLHead(&b, list.Meta.APIVersion, "Simple index")
	for _, key := range sortedKeys(list.Projects) {
		entry := list.Projects[key]
		fmt.Fprintf(&b, "    <a href=\"%s/\">%s</a>\n",
			html.EscapeString(entry.NormalizedName()),
			html.EscapeString(entry.Name),
		)
	}
	b.WriteString("  </body>\n</html>\n")
	return []byte(b.String())
}

// SerializeHTMLProjectPage renders a project page as a PEP-503 document.
// HTML is limited to a single hash per file; sha256 is preferred when the
// entry carries more than one.
func SerializeHTMLProjectPage(page model.ProjectPage) []byte {
	var b strings.Builder
	writeHTMLHead(&b, page.Meta.APIVersion, "Links for "+html.EscapeString(page.Name))
	for _, f := range page.Files {
		href := publicURL(f)
		if algorithm, digest, ok := preferredHash(f.Hashes); ok {
			href += "#" + algorithm + "=" + digest
		}
		fmt.Fprintf(&b, "    <a href=%q", href)
		if f.RequiresPython != "" {
			fmt.Fprintf(&b, " data-requires-python=%q", html.EscapeString(f.RequiresPython))
		}
		if f.CoreMetadata != nil {
			value := "true"
			if algorithm, digest, ok := preferredHash(f.CoreMetadata.Hashes); ok {
				value = algorithm + "=" + digest
			}
			fmt.Fprintf(&b, " data-core-metadata=%q data-dist-info-metadata=%q", value, value)
		}
		if f.Yanked != nil {
			fmt.Fprintf(&b, " data-yanked=%q", html.EscapeString(f.Yanked.Reason))
		}
		fmt.Fprintf(&b, ">%s</a><br/>\n", html.EscapeString(f.Filename))
	}
	b.WriteString("  </body>\n</html>\n")
	return []byte(b.String())
}

func writeHTMLHead(b *strings.Builder, apiVersion, title string) {
	b.WriteString("<!DOCTYPE html>\n<html>\n  <head>\n")
	fmt.Fprintf(b, "    <meta name=\"pypi:repository-version\" content=%q>\n", apiVersion)
	fmt.Fprintf(b, "    <title>%s</title>\n", title)
	b.WriteString("  </head>\n  <body>\n")
}

// publicURL is the URL written into serialized pages. Local file URLs are
// rewritten to the bare filename, i.e. a URL relative to the project page,
// so that filesystem paths never leak to consumers.
func publicURL(f model.FileEntry) string {
	if strings.HasPrefix(f.URL, "file://") {
		return f.Filename
	}
	return f.URL
}

// preferredHash picks the single hash serialized into HTML: sha256 when
// present, otherwise the lexicographically first algorithm.
func preferredHash(hashes map[string]string) (algorithm, digest string, ok bool) {
	if len(hashes) == 0 {
		return "", "", false
	}
	if digest, ok := hashes["sha256"]; ok {
		return "sha256", digest, true
	}
	algorithms := make([]string, 0, len(hashes))
	for algorithm := range hashes {
		algorithms = append(algorithms, algorithm)
	}
	sort.Strings(algorithms)
	return algorithms[0], hashes[algorithms[0]], true
}

func sortedKeys(m map[string]model.ProjectListEntry) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
