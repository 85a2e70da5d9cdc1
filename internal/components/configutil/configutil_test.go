package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Name  string `json:"name"`
	Port  int    `json:"port"`
	Inner struct {
		Url string `json:"url"`
	} `json:"inner"`
}

func writeFile(t testing.TB, path, contents string) {
	err := os.WriteFile(path, []byte(contents), 0600)
	if err != nil {
		t.Fatal(err)
	}
}

func TestSplitExt(t *testing.T) {
	prefix, ext := splitExt("config.json5")
	require.Equal(t, "config", prefix)
	require.Equal(t, "json5", ext)

	prefix, ext = splitExt("noext")
	require.Equal(t, "noext", prefix)
	require.Equal(t, "", ext)
}

func TestReadConfigLocalOverride(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.json5"), `{
		// comments are allowed
		name: "base",
		port: 8080,
		inner: { url: "https://www.imdb.com" },
	}`)
	writeFile(t, filepath.Join(dir, "config.local.json5"), `{ port: 9000 }`)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, "base", cfg.Name)
	require.Equal(t, 9000, cfg.Port)
	require.Equal(t, "https://www.imdb.com", cfg.Inner.Url)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "config.json5"))
	require.True(t, os.IsNotExist(err))
}

func TestReadConfigOr(t *testing.T) {
	defaults := testConfig{Name: "default", Port: 8080}

	cfg, err := ReadConfigOr(filepath.Join(t.TempDir(), "config.json5"), defaults)
	require.NoError(t, err)
	require.Equal(t, defaults, cfg)

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.json5"), `{ name: "custom" }`)
	cfg, err = ReadConfigOr(filepath.Join(dir, "config.json5"), defaults)
	require.NoError(t, err)
	require.Equal(t, "custom", cfg.Name)
	require.Equal(t, 8080, cfg.Port)
}
