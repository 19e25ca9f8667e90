package configpaths

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultNamedConfigPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Setenv("AppData", t.TempDir())
	} else {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	}
	dir, err := DefaultConfigDir()
	require.NoError(t, err)
	assert.Equal(t, appName, filepath.Base(dir))

	for format, want := range map[string]string{"json": "mappings.json", "yml": "mappings.yaml", "toml": "mappings.toml", "": "mappings.json"} {
		p, err := DefaultNamedConfigPath("mappings", format)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, want), p)
	}
}

func TestConfigCandidatePathsUserFirst(t *testing.T) {
	jsonPaths, yamlPaths, tomlPaths := ConfigCandidatePaths("custom.yml")
	require.NotEmpty(t, yamlPaths)
	assert.Equal(t, "custom.yml", yamlPaths[0])
	assert.NotContains(t, jsonPaths, "custom.yml")
	assert.Len(t, yamlPaths, 2*len(tomlPaths)+1)

	jsonPaths, _, _ = ConfigCandidatePaths("odd.conf")
	assert.Equal(t, "odd.conf", jsonPaths[0])
}

func TestEnsureDir(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a", "b", "file.json")
	require.NoError(t, EnsureDir(p))
	assert.DirExists(t, filepath.Dir(p))
}
