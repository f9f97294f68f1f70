package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pierpaolospaziani/openjpa/internal/config"
	"github.com/pierpaolospaziani/openjpa/internal/sql"
	"github.com/pierpaolospaziani/openjpa/internal/testutil"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNew_Defaults(t *testing.T) {
	c := config.New()

	assert.Equal(t, "sqlite3", c.Driver())
	assert.Equal(t, ":memory:", c.URL())
	assert.Equal(t, "mappings", c.MappingsDir())

	dict, err := c.Dictionary()
	require.NoError(t, err)
	assert.IsType(t, &sql.SQLiteDictionary{}, dict)

	f, err := c.FetchConfiguration()
	require.NoError(t, err)
	assert.Equal(t, sql.EagerParallel, f.EagerMode)
	assert.Equal(t, sql.ScrollInsensitive, f.ResultSetType)
	assert.True(t, f.CloseConnection)
	assert.False(t, f.UseLiteralInSQL())

	level, err := c.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, "openjpa.yaml", `
connection:
  driver: sqlite3
  url: /tmp/company.db
dictionary: postgres
mappings: ./company
fetch:
  use_literal_in_sql: true
  eager_mode: outer
  result_set_type: forward-only
  close_connection: false
log:
  level: debug
`)
	c, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, c.File())
	assert.Equal(t, "/tmp/company.db", c.URL())
	assert.Equal(t, "./company", c.MappingsDir())

	dict, err := c.Dictionary()
	require.NoError(t, err)
	assert.IsType(t, &sql.PostgresDictionary{}, dict)

	f, err := c.FetchConfiguration()
	require.NoError(t, err)
	assert.Equal(t, sql.EagerOuter, f.EagerMode)
	assert.Equal(t, sql.ForwardOnly, f.ResultSetType)
	assert.False(t, f.CloseConnection)
	assert.True(t, f.UseLiteralInSQL())

	level, err := c.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_NoFileFound(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c, err := config.Load("")
	require.NoError(t, err)
	assert.Empty(t, c.File())
	assert.Equal(t, "sqlite3", c.Driver())
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeFile(t, "openjpa.yaml", "fetch:\n  eager_mode: outer\n")
	t.Setenv("OPENJPA_FETCH_EAGER_MODE", "none")
	t.Setenv("OPENJPA_LOG_LEVEL", "warn")

	c, err := config.Load(path)
	require.NoError(t, err)

	f, err := c.FetchConfiguration()
	require.NoError(t, err)
	assert.Equal(t, sql.EagerNone, f.EagerMode)

	level, err := c.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)
}

func TestBindFlag(t *testing.T) {
	c := config.New()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("eager", "", "")
	require.NoError(t, c.BindFlag(config.KeyEagerMode, fs.Lookup("eager")))

	// an unset flag leaves the default alone
	f, err := c.FetchConfiguration()
	require.NoError(t, err)
	assert.Equal(t, sql.EagerParallel, f.EagerMode)

	require.NoError(t, fs.Parse([]string{"--eager=inner"}))
	f, err = c.FetchConfiguration()
	require.NoError(t, err)
	assert.Equal(t, sql.EagerInner, f.EagerMode)

	assert.Error(t, c.BindFlag(config.KeyURL, fs.Lookup("url")))
}

func TestInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		check func(*config.Configuration) error
	}{
		{"eager mode", config.KeyEagerMode, "eventually", func(c *config.Configuration) error {
			_, err := c.FetchConfiguration()
			return err
		}},
		{"result set type", config.KeyResultSetType, "sideways", func(c *config.Configuration) error {
			_, err := c.FetchConfiguration()
			return err
		}},
		{"log level", config.KeyLogLevel, "loud", func(c *config.Configuration) error {
			_, err := c.LogLevel()
			return err
		}},
		{"dictionary", config.KeyDictionary, "oracle", func(c *config.Configuration) error {
			_, err := c.Dictionary()
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := config.New()
			c.Set(tt.key, tt.value)
			err := tt.check(c)
			require.Error(t, err)
			assert.ErrorIs(t, err, config.ErrInvalidValue)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestOpenStoreAndRepository(t *testing.T) {
	c := config.New()
	c.Set(config.KeyMappings, filepath.Join("..", "testutil", testutil.CompanyDir))

	repo, err := c.Repository()
	require.NoError(t, err)
	_, ok := repo.Mapping("Employee")
	assert.True(t, ok)

	st, err := c.OpenStore()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	assert.IsType(t, &sql.SQLiteDictionary{}, st.Dictionary())
}
