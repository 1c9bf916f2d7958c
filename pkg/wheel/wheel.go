// Package wheel reads the core metadata file out of binary distribution
// archives. Wheels are zip files carrying a <dist>-<version>.dist-info/
// directory whose METADATA member is the file published alongside the
// archive per PEP 658. For remote archives the zip central directory is
// read with HTTP range requests so that only a small tail of the archive is
// transferred.
package wheel

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/simpleindex/simple-repository-server/pkg/model"
)

// metadataMember matches a METADATA file directly inside a top-level
// .dist-info directory and captures the distribution name prefix.
var metadataMember = regexp.MustCompile(`^([^/]+)-[^-/]+\.dist-info/METADATA$`)

// maxMetadataSize bounds the decompressed METADATA read. Real metadata
// files are a few kilobytes; anything near this limit is hostile.
const maxMetadataSize = 8 << 20

// Extract returns the METADATA contents for the distribution named by
// wheelFilename from the archive readable through r.
func Extract(r io.ReaderAt, size int64, wheelFilename string) ([]byte, error) {
	distName, _, ok := strings.Cut(wheelFilename, "-")
	if !ok || distName == "" {
		return nil, &model.InvalidDataError{
			Source: wheelFilename,
			Reason: "filename does not look like a wheel",
		}
	}
	wantDist := model.NormalizeProjectName(distName)

	archive, err := zip.NewReader(r, size)
	if err != nil {
		return nil, &model.InvalidDataError{
			Source: wheelFilename,
			Reason: "unreadable zip archive",
			Err:    err,
		}
	}

	for _, member := range archive.File {
		m := metadataMember.FindStringSubmatch(member.Name)
		if m == nil {
			continue
		}
		if model.NormalizeProjectName(m[1]) != wantDist {
			continue
		}
		return readMember(member, wheelFilename)
	}

	return nil, &model.InvalidDataError{
		Source: wheelFilename,
		Reason: "archive has no matching dist-info METADATA member",
	}
}

func readMember(member *zip.File, wheelFilename string) ([]byte, error) {
	rc, err := member.Open()
	if err != nil {
		return nil, &model.InvalidDataError{
			Source: wheelFilename,
			Reason: "unreadable METADATA member",
			Err:    err,
		}
	}
	defer rc.Close() //nolint:errcheck

	content, err := io.ReadAll(io.LimitReader(rc, maxMetadataSize+1))
	if err != nil {
		return nil, &model.InvalidDataError{
			Source: wheelFilename,
			Reason: "unreadable METADATA member",
			Err:    err,
		}
	}
	if len(content) > maxMetadataSize {
		return nil, &model.InvalidDataError{
			Source: wheelFilename,
			Reason: "METADATA member exceeds the size limit",
		}
	}
	return content, nil
}

// ExtractFromURL fetches the archive at rawURL and returns its METADATA
// contents. file URLs are opened directly; http and https URLs are read
// with range requests when the server supports them, falling back to a full
// download otherwise.
func ExtractFromURL(ctx context.Context, client *http.Client, rawURL, wheelFilename string) ([]byte, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, &model.InvalidDataError{Source: rawURL, Reason: "malformed archive URL", Err: err}
	}

	switch parsed.Scheme {
	case "file":
		return extractFromFile(parsed.Path, wheelFilename)
	case "http", "https":
		reader, size, err := newRangeReaderAt(ctx, client, rawURL)
		if err != nil {
			return nil, err
		}
		defer reader.Close() //nolint:errcheck
		return Extract(reader, size, wheelFilename)
	default:
		return nil, &model.InvalidDataError{Source: rawURL, Reason: "unsupported archive URL scheme"}
	}
}

func extractFromFile(path, wheelFilename string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close() //nolint:errcheck

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("sizing archive: %w", err)
	}
	return Extract(f, info.Size(), wheelFilename)
}
