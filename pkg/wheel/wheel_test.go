package wheel_test

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simpleindex/simple-repository-server/pkg/model"
	"github.com/simpleindex/simple-repository-server/pkg/wheel"
)

const sampleMetadata = "Metadata-Version: 2.1\nName: holygrail\nVersion: 1.0\n"

func buildWheel(t *testing.T, members map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range members {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestExtract(t *testing.T) {
	t.Parallel()

	archive := buildWheel(t, map[string]string{
		"holygrail/__init__.py":             "",
		"holygrail-1.0.dist-info/RECORD":    "...",
		"holygrail-1.0.dist-info/METADATA":  sampleMetadata,
		"other-2.0.dist-info/METADATA":      "Name: other\n",
		"nested/fake-1.0.dist-info/METADATA": "Name: fake\n",
	})

	content, err := wheel.Extract(bytes.NewReader(archive), int64(len(archive)), "holygrail-1.0-py3-none-any.whl")
	require.NoError(t, err)
	assert.Equal(t, sampleMetadata, string(content))
}

func TestExtractNormalizesDistName(t *testing.T) {
	t.Parallel()

	archive := buildWheel(t, map[string]string{
		"Frozen_List-1.0.dist-info/METADATA": sampleMetadata,
	})

	content, err := wheel.Extract(bytes.NewReader(archive), int64(len(archive)), "frozen-list-1.0-py3-none-any.whl")
	require.NoError(t, err)
	assert.Equal(t, sampleMetadata, string(content))
}

func TestExtractErrors(t *testing.T) {
	t.Parallel()

	noMetadata := buildWheel(t, map[string]string{"holygrail/__init__.py": ""})
	wrongDist := buildWheel(t, map[string]string{"other-1.0.dist-info/METADATA": "Name: other\n"})

	tests := []struct {
		name     string
		archive  []byte
		filename string
	}{
		{name: "corrupt archive", archive: []byte("definitely not a zip"), filename: "holygrail-1.0-py3-none-any.whl"},
		{name: "no metadata member", archive: noMetadata, filename: "holygrail-1.0-py3-none-any.whl"},
		{name: "wrong distribution", archive: wrongDist, filename: "holygrail-1.0-py3-none-any.whl"},
		{name: "not a wheel filename", archive: noMetadata, filename: "holygrail"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := wheel.Extract(bytes.NewReader(tt.archive), int64(len(tt.archive)), tt.filename)
			assert.ErrorIs(t, err, model.ErrInvalidData)
		})
	}
}

func TestExtractFromURLWithRangeSupport(t *testing.T) {
	t.Parallel()

	archive := buildWheel(t, map[string]string{
		"holygrail-1.0.dist-info/METADATA": sampleMetadata,
	})

	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		http.ServeContent(w, r, "holygrail-1.0-py3-none-any.whl", time.Time{}, bytes.NewReader(archive))
	}))
	defer server.Close()

	content, err := wheel.ExtractFromURL(context.Background(), server.Client(), server.URL, "holygrail-1.0-py3-none-any.whl")
	require.NoError(t, err)
	assert.Equal(t, sampleMetadata, string(content))
	assert.GreaterOrEqual(t, requests, 1)
}

func TestExtractFromURLWithoutRangeSupport(t *testing.T) {
	t.Parallel()

	archive := buildWheel(t, map[string]string{
		"holygrail-1.0.dist-info/METADATA": sampleMetadata,
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write(archive) //nolint:errcheck
	}))
	defer server.Close()

	content, err := wheel.ExtractFromURL(context.Background(), server.Client(), server.URL, "holygrail-1.0-py3-none-any.whl")
	require.NoError(t, err)
	assert.Equal(t, sampleMetadata, string(content))
}

func TestExtractFromURLNotFound(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := wheel.ExtractFromURL(context.Background(), server.Client(), server.URL, "holygrail-1.0-py3-none-any.whl")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestExtractFromFileURL(t *testing.T) {
	t.Parallel()

	archive := buildWheel(t, map[string]string{
		"holygrail-1.0.dist-info/METADATA": sampleMetadata,
	})
	path := filepath.Join(t.TempDir(), "holygrail-1.0-py3-none-any.whl")
	require.NoError(t, os.WriteFile(path, archive, 0o600))

	content, err := wheel.ExtractFromURL(context.Background(), http.DefaultClient, "file://"+path, "holygrail-1.0-py3-none-any.whl")
	require.NoError(t, err)
	assert.Equal(t, sampleMetadata, string(content))
}

func TestExtractFromURLRejectsUnknownScheme(t *testing.T) {
	t.Parallel()

	_, err := wheel.ExtractFromURL(context.Background(), http.DefaultClient, "ftp://example.com/a.whl", "a-1.0.whl")
	assert.ErrorIs(t, err, model.ErrInvalidData)
}
