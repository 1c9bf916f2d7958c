package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name             string
		yamlContent      string
		skipFileCreation bool
		wantConfig       *Config
		wantErr          bool
	}{
		{
			name: "full_config",
			yamlContent: `repositoryName: corp-index
sources:
  - name: internal
    local:
      path: /srv/packages
  - name: pypi
    http:
      url: https://pypi.org/simple/
      maxTries: 5
      timeout: "10s"
cache:
  dir: /var/cache/simple-repository
  memoryEntries: 2048
metadata:
  enabled: true
allowedProjects: ["numpy", "requests"]`,
			wantConfig: &Config{
				RepositoryName: "corp-index",
				Sources: []SourceConfig{
					{
						Name:  "internal",
						Local: &LocalSourceConfig{Path: "/srv/packages"},
					},
					{
						Name: "pypi",
						HTTP: &HTTPSourceConfig{
							URL:      "https://pypi.org/simple/",
							MaxTries: 5,
							Timeout:  "10s",
						},
					},
				},
				Cache: &CacheConfig{
					Dir:           "/var/cache/simple-repository",
					MemoryEntries: 2048,
				},
				Metadata: &MetadataConfig{Enabled: true},
				AllowedProjects: []string{"numpy", "requests"},
			},
			wantErr: false,
		},
		{
			name: "minimal_config",
			yamlContent: `sources:
  - name: pypi
    http:
      url: https://pypi.org/simple/`,
			wantConfig: &Config{
				Sources: []SourceConfig{
					{
						Name: "pypi",
						HTTP: &HTTPSourceConfig{URL: "https://pypi.org/simple/"},
					},
				},
			},
			wantErr: false,
		},
		{
			name:        "no_sources",
			yamlContent: `repositoryName: empty`,
			wantErr:     true,
		},
		{
			name: "source_without_name",
			yamlContent: `sources:
  - http:
      url: https://pypi.org/simple/`,
			wantErr: true,
		},
		{
			name: "duplicate_source_names",
			yamlContent: `sources:
  - name: pypi
    http:
      url: https://pypi.org/simple/
  - name: pypi
    local:
      path: /srv/packages`,
			wantErr: true,
		},
		{
			name: "source_without_type",
			yamlContent: `sources:
  - name: pypi`,
			wantErr: true,
		},
		{
			name: "source_with_both_types",
			yamlContent: `sources:
  - name: pypi
    http:
      url: https://pypi.org/simple/
    local:
      path: /srv/packages`,
			wantErr: true,
		},
		{
			name: "http_source_without_url",
			yamlContent: `sources:
  - name: pypi
    http:
      maxTries: 3`,
			wantErr: true,
		},
		{
			name: "http_source_with_bad_scheme",
			yamlContent: `sources:
  - name: pypi
    http:
      url: ftp://pypi.org/simple/`,
			wantErr: true,
		},
		{
			name: "http_source_with_bad_timeout",
			yamlContent: `sources:
  - name: pypi
    http:
      url: https://pypi.org/simple/
      timeout: "soon"`,
			wantErr: true,
		},
		{
			name: "local_source_without_path",
			yamlContent: `sources:
  - name: internal
    local: {}`,
			wantErr: true,
		},
		{
			name: "negative_memory_entries",
			yamlContent: `sources:
  - name: pypi
    http:
      url: https://pypi.org/simple/
cache:
  memoryEntries: -1`,
			wantErr: true,
		},
		{
			name:        "invalid_yaml",
			yamlContent: `sources: [`,
			wantErr:     true,
		},
		{
			name:             "missing_file",
			skipFileCreation: true,
			wantErr:          true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "config.yaml")
			if !tt.skipFileCreation {
				require.NoError(t, os.WriteFile(path, []byte(tt.yamlContent), 0o600))
			}

			got, err := LoadConfig(WithConfigPath(path))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantConfig, got)
		})
	}
}

func TestLoadConfigRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig()
	assert.Error(t, err)

	_, err = LoadConfig(WithConfigPath(""))
	assert.Error(t, err)
}

func TestGetRepositoryName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "default", (&Config{}).GetRepositoryName())
	assert.Equal(t, "corp", (&Config{RepositoryName: "corp"}).GetRepositoryName())
}

func TestSourceConfigGetType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, SourceTypeHTTP, (&SourceConfig{HTTP: &HTTPSourceConfig{}}).GetType())
	assert.Equal(t, SourceTypeLocal, (&SourceConfig{Local: &LocalSourceConfig{}}).GetType())
	assert.Equal(t, "", (&SourceConfig{}).GetType())
}

func TestHTTPSourceGetTimeout(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "30s", (&HTTPSourceConfig{}).GetTimeout().String())
	assert.Equal(t, "10s", (&HTTPSourceConfig{Timeout: "10s"}).GetTimeout().String())
	assert.Equal(t, "30s", (&HTTPSourceConfig{Timeout: "bogus"}).GetTimeout().String())
}
