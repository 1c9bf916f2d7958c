package simple

import (
	"strings"

	"github.com/munnerz/goautoneg"
)

// Content types defined by PEP-691 plus the legacy PEP-503 HTML type.
const (
	ContentTypeJSONV1     = "application/vnd.pypi.simple.v1+json"
	ContentTypeHTMLV1     = "application/vnd.pypi.simple.v1+html"
	ContentTypeHTMLLegacy = "text/html"
)

// AcceptHeader is the Accept header value sent to upstream repositories,
// preferring the JSON shape but accepting all three.
const AcceptHeader = ContentTypeJSONV1 + ", " +
	ContentTypeHTMLV1 + ";q=0.2, " +
	ContentTypeHTMLLegacy + ";q=0.01"

var offeredContentTypes = []string{
	ContentTypeJSONV1,
	ContentTypeHTMLV1,
	ContentTypeHTMLLegacy,
}

// NegotiateContentType selects the response content type for an incoming
// Accept header. An empty or wildcard-only header, or one matching none of
// the supported types, selects the legacy HTML type, which every installer
// understands.
func NegotiateContentType(accept string) string {
	if strings.TrimSpace(accept) == "" {
		return ContentTypeHTMLLegacy
	}
	if negotiated := goautoneg.Negotiate(accept, offeredContentTypes); negotiated != "" {
		return negotiated
	}
	return ContentTypeHTMLLegacy
}

// IsJSON reports whether an upstream Content-Type header declares the
// PEP-691 JSON shape.
func IsJSON(contentType string) bool {
	return strings.Contains(contentType, ContentTypeJSONV1)
}

// IsHTML reports whether an upstream Content-Type header declares one of
// the HTML shapes. An empty content type is treated as HTML, matching the
// behavior of legacy indexes that omit the header.
func IsHTML(contentType string) bool {
	return contentType == "" ||
		strings.Contains(contentType, ContentTypeHTMLV1) ||
		strings.Contains(contentType, ContentTypeHTMLLegacy)
}
