package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("ACME_CRAFTS_CONFIG", "")
	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Defaults(), c)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
pixel_size = 8
editable = false
layer = "pixels"
preview_dir = "/tmp/previews"
debounce = "1s"
`)
	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 8, c.PixelSize)
	require.False(t, c.Editable)
	require.Equal(t, "pixels", c.Layer)
	require.Equal(t, "/tmp/previews", c.PreviewDir)
	require.Equal(t, time.Second, c.Debounce)
	require.Equal(t, Defaults().Match, c.Match)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "pixel_size = 8\n")
	t.Setenv("ACME_CRAFTS_PIXEL_SIZE", "12")
	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 12, c.PixelSize)
}

func TestLoad_ConfigEnv(t *testing.T) {
	t.Setenv("ACME_CRAFTS_CONFIG", writeConfig(t, `layer = "env"`))
	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "env", c.Layer)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(writeConfig(t, "pixel_size = 0\n"))
	require.ErrorIs(t, err, ErrBadPixelSize)

	_, err = Load(writeConfig(t, "pixel_size = [\n"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, `match = "("`))
	require.Error(t, err)
}

func TestMatcher(t *testing.T) {
	m := Defaults().Matcher()
	require.True(t, m.MatchString("/home/glenda/creeper.craft.json"))
	require.False(t, m.MatchString("/home/glenda/package.json"))
}
