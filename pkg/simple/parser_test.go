package simple_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simpleindex/simple-repository-server/pkg/model"
	"github.com/simpleindex/simple-repository-server/pkg/simple"
)

const source = "https://pypi.example/simple/"

func TestParseJSONProjectList(t *testing.T) {
	t.Parallel()

	body := []byte(`{
		"meta": {"api-version": "1.0"},
		"projects": [{"name": "Frozen_List"}, {"name": "requests"}]
	}`)

	list, err := simple.ParseJSONProjectList(body, source)
	require.NoError(t, err)

	assert.Equal(t, "1.0", list.Meta.APIVersion)
	assert.Len(t, list.Projects, 2)
	assert.Equal(t, "Frozen_List", list.Projects["frozen-list"].Name)
	assert.Equal(t, "requests", list.Projects["requests"].Name)
}

func TestParseJSONProjectListInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "not JSON", body: `<html></html>`},
		{name: "missing meta", body: `{"projects": []}`},
		{name: "entry without name", body: `{"meta": {"api-version": "1.0"}, "projects": [{}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := simple.ParseJSONProjectList([]byte(tt.body), source)
			assert.ErrorIs(t, err, model.ErrInvalidData)
		})
	}
}

func TestParseJSONProjectPage(t *testing.T) {
	t.Parallel()

	body := []byte(`{
		"meta": {"api-version": "1.1"},
		"name": "holygrail",
		"files": [
			{
				"filename": "holygrail-1.0-py3-none-any.whl",
				"url": "https://files.example/holygrail-1.0-py3-none-any.whl",
				"hashes": {"sha256": "deadbeef"},
				"requires-python": ">=3.7",
				"core-metadata": {"sha256": "beefdead"},
				"size": 1234,
				"upload-time": "2023-03-01T12:30:00.123456Z"
			},
			{
				"filename": "holygrail-1.0.tar.gz",
				"url": "holygrail-1.0.tar.gz",
				"hashes": {},
				"yanked": "broken sdist",
				"size": 4321,
				"upload-time": "2023-03-01T12:30:00Z"
			}
		],
		"versions": ["1.0"]
	}`)

	page, err := simple.ParseJSONProjectPage(body, source)
	require.NoError(t, err)

	assert.Equal(t, "1.1", page.Meta.APIVersion)
	assert.Equal(t, "holygrail", page.Name)
	assert.Equal(t, []string{"1.0"}, page.Versions)
	require.Len(t, page.Files, 2)

	wheel := page.Files[0]
	assert.Equal(t, "holygrail-1.0-py3-none-any.whl", wheel.Filename)
	assert.Equal(t, map[string]string{"sha256": "deadbeef"}, wheel.Hashes)
	assert.Equal(t, ">=3.7", wheel.RequiresPython)
	require.NotNil(t, wheel.CoreMetadata)
	assert.Equal(t, map[string]string{"sha256": "beefdead"}, wheel.CoreMetadata.Hashes)
	assert.Nil(t, wheel.Yanked)
	assert.Equal(t, int64(1234), wheel.Size)
	assert.Equal(t, time.Date(2023, 3, 1, 12, 30, 0, 123456000, time.UTC), wheel.UploadTime.UTC())

	sdist := page.Files[1]
	assert.Nil(t, sdist.CoreMetadata)
	require.NotNil(t, sdist.Yanked)
	assert.Equal(t, "broken sdist", sdist.Yanked.Reason)
}

func TestParseJSONProjectPageMetadataUnions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		file       string
		wantMeta   *model.CoreMetadata
		wantYanked *model.Yank
	}{
		{
			name:     "core-metadata true",
			file:     `{"filename": "a-1.0.whl", "url": "a-1.0.whl", "hashes": {}, "core-metadata": true}`,
			wantMeta: &model.CoreMetadata{Hashes: map[string]string{}},
		},
		{
			name:     "core-metadata false",
			file:     `{"filename": "a-1.0.whl", "url": "a-1.0.whl", "hashes": {}, "core-metadata": false}`,
			wantMeta: nil,
		},
		{
			name:     "legacy dist-info-metadata",
			file:     `{"filename": "a-1.0.whl", "url": "a-1.0.whl", "hashes": {}, "dist-info-metadata": true}`,
			wantMeta: &model.CoreMetadata{Hashes: map[string]string{}},
		},
		{
			name:       "yanked true",
			file:       `{"filename": "a-1.0.whl", "url": "a-1.0.whl", "hashes": {}, "yanked": true}`,
			wantYanked: &model.Yank{},
		},
		{
			name:       "yanked false string is a reason",
			file:       `{"filename": "a-1.0.whl", "url": "a-1.0.whl", "hashes": {}, "yanked": "false"}`,
			wantYanked: &model.Yank{Reason: "false"},
		},
		{
			name:       "yanked false",
			file:       `{"filename": "a-1.0.whl", "url": "a-1.0.whl", "hashes": {}, "yanked": false}`,
			wantYanked: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			body := []byte(`{"meta": {"api-version": "1.0"}, "name": "a", "files": [` + tt.file + `]}`)
			page, err := simple.ParseJSONProjectPage(body, source)
			require.NoError(t, err)
			require.Len(t, page.Files, 1)
			assert.Equal(t, tt.wantMeta, page.Files[0].CoreMetadata)
			assert.Equal(t, tt.wantYanked, page.Files[0].Yanked)
		})
	}
}

func TestParseHTMLProjectList(t *testing.T) {
	t.Parallel()

	body := []byte(`<!DOCTYPE html>
<html>
  <body>
    <a href="frozen-list/">Frozen_List</a>
    <a href="requests/">requests</a>
  </body>
</html>`)

	list, err := simple.ParseHTMLProjectList(body, source)
	require.NoError(t, err)

	assert.Equal(t, "1.0", list.Meta.APIVersion)
	assert.Len(t, list.Projects, 2)
	assert.Equal(t, "Frozen_List", list.Projects["frozen-list"].Name)
}

func TestParseHTMLProjectPage(t *testing.T) {
	t.Parallel()

	body := []byte(`<!DOCTYPE html>
<html>
  <body>
    <a href="https://files.example/holygrail-1.0-py3-none-any.whl#sha256=deadbeef"
       data-requires-python="&gt;=3.7"
       data-core-metadata="sha256=beefdead">holygrail-1.0-py3-none-any.whl</a><br/>
    <a href="holygrail-1.0.tar.gz" data-yanked="broken sdist">holygrail-1.0.tar.gz</a><br/>
  </body>
</html>`)

	page, err := simple.ParseHTMLProjectPage(body, "holygrail", source)
	require.NoError(t, err)

	assert.Equal(t, "holygrail", page.Name)
	require.Len(t, page.Files, 2)

	wheel := page.Files[0]
	assert.Equal(t, "https://files.example/holygrail-1.0-py3-none-any.whl", wheel.URL)
	assert.Equal(t, map[string]string{"sha256": "deadbeef"}, wheel.Hashes)
	assert.Equal(t, ">=3.7", wheel.RequiresPython)
	require.NotNil(t, wheel.CoreMetadata)
	assert.Equal(t, map[string]string{"sha256": "beefdead"}, wheel.CoreMetadata.Hashes)

	sdist := page.Files[1]
	require.NotNil(t, sdist.Yanked)
	assert.Equal(t, "broken sdist", sdist.Yanked.Reason)
	assert.Empty(t, sdist.Hashes)
}

func TestNegotiateContentType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		accept string
		want   string
	}{
		{name: "empty header", accept: "", want: simple.ContentTypeHTMLLegacy},
		{name: "json preferred", accept: simple.ContentTypeJSONV1, want: simple.ContentTypeJSONV1},
		{name: "html v1", accept: simple.ContentTypeHTMLV1, want: simple.ContentTypeHTMLV1},
		{name: "pip style", accept: simple.AcceptHeader, want: simple.ContentTypeJSONV1},
		{name: "browser", accept: "text/html,application/xhtml+xml;q=0.9", want: simple.ContentTypeHTMLLegacy},
		{name: "unknown", accept: "application/xml", want: simple.ContentTypeHTMLLegacy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, simple.NegotiateContentType(tt.accept))
		})
	}
}
