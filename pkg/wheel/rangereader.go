package wheel

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/simpleindex/simple-repository-server/pkg/model"
)

// tailPrefetchSize is requested up front. The zip end-of-central-directory
// record and the central directory of typical wheels fit well within it, so
// most extractions need a single extra request for the member data.
const tailPrefetchSize = 128 << 10

// maxFullDownload bounds the fallback download used when a server does not
// honor range requests.
const maxFullDownload = 512 << 20

// rangeReader is an io.ReaderAt over a remote archive. The archive tail is
// prefetched; reads outside it become one range request each.
type rangeReader struct {
	ctx        context.Context
	client     *http.Client
	url        string
	size       int64
	tailOffset int64
	tail       []byte
	full       *bytes.Reader
}

// newRangeReaderAt opens the archive at rawURL for random access and
// returns its total size. When the server ignores the Range header the
// whole body is buffered instead.
func newRangeReaderAt(ctx context.Context, client *http.Client, rawURL string) (*rangeReader, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("building archive request: %w", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=-%d", tailPrefetchSize))

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, &model.UpstreamError{Source: rawURL, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch resp.StatusCode {
	case http.StatusPartialContent:
		size, offset, err := parseContentRange(resp.Header.Get("Content-Range"))
		if err != nil {
			return nil, 0, &model.InvalidDataError{Source: rawURL, Reason: "malformed Content-Range header", Err: err}
		}
		tail, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, 0, &model.UpstreamError{Source: rawURL, Err: err}
		}
		return &rangeReader{
			ctx:        ctx,
			client:     client,
			url:        rawURL,
			size:       size,
			tailOffset: offset,
			tail:       tail,
		}, size, nil

	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxFullDownload+1))
		if err != nil {
			return nil, 0, &model.UpstreamError{Source: rawURL, Err: err}
		}
		if len(body) > maxFullDownload {
			return nil, 0, &model.InvalidDataError{Source: rawURL, Reason: "archive exceeds the download limit"}
		}
		return &rangeReader{
			ctx:    ctx,
			client: client,
			url:    rawURL,
			size:   int64(len(body)),
			full:   bytes.NewReader(body),
		}, int64(len(body)), nil

	case http.StatusNotFound, http.StatusGone:
		return nil, 0, &model.NotFoundError{Resource: rawURL}

	default:
		return nil, 0, &model.UpstreamError{
			Source: rawURL,
			Err:    fmt.Errorf("unexpected status %d fetching archive", resp.StatusCode),
		}
	}
}

// ReadAt implements io.ReaderAt.
func (r *rangeReader) ReadAt(p []byte, off int64) (int, error) {
	if r.full != nil {
		return r.full.ReadAt(p, off)
	}
	if off < 0 || off >= r.size {
		return 0, io.EOF
	}

	if off >= r.tailOffset {
		n := copy(p, r.tail[off-r.tailOffset:])
		if n < len(p) {
			return n, io.EOF
		}
		return n, nil
	}
	return r.readRange(p, off)
}

func (r *rangeReader) readRange(p []byte, off int64) (int, error) {
	end := off + int64(len(p)) - 1
	if end >= r.size {
		end = r.size - 1
	}

	req, err := http.NewRequestWithContext(r.ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", off, end))

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, &model.UpstreamError{Source: r.url, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusPartialContent {
		return 0, &model.UpstreamError{
			Source: r.url,
			Err:    fmt.Errorf("unexpected status %d for range read", resp.StatusCode),
		}
	}

	n, err := io.ReadFull(resp.Body, p[:end-off+1])
	if err != nil {
		return n, &model.UpstreamError{Source: r.url, Err: err}
	}
	if int64(n) < int64(len(p)) {
		return n, io.EOF
	}
	return n, nil
}

// Close releases the buffered archive data.
func (r *rangeReader) Close() error {
	r.tail = nil
	r.full = nil
	return nil
}

// parseContentRange extracts the total size and first byte position from a
// "bytes first-last/total" header value.
func parseContentRange(value string) (size, first int64, err error) {
	rest, ok := strings.CutPrefix(value, "bytes ")
	if !ok {
		return 0, 0, fmt.Errorf("unsupported content range %q", value)
	}
	span, total, ok := strings.Cut(rest, "/")
	if !ok {
		return 0, 0, fmt.Errorf("unsupported content range %q", value)
	}
	firstStr, _, ok := strings.Cut(span, "-")
	if !ok {
		return 0, 0, fmt.Errorf("unsupported content range %q", value)
	}
	size, err = strconv.ParseInt(total, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("unsupported content range %q", value)
	}
	first, err = strconv.ParseInt(firstStr, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("unsupported content range %q", value)
	}
	return size, first, nil
}
