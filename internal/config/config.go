// Package config loads the settings threaded through the store, the
// dictionary and every query: connection, mappings, fetch defaults and
// logging.
//
// Values come, in order of precedence, from bound command-line flags,
// OPENJPA_* environment variables (dots become underscores, so
// fetch.eager_mode is read from OPENJPA_FETCH_EAGER_MODE), a config file,
// and the defaults below. Nothing here is global: callers pass the
// Configuration, or what it builds, explicitly.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pierpaolospaziani/openjpa/internal/mapping"
	"github.com/pierpaolospaziani/openjpa/internal/sql"
	"github.com/pierpaolospaziani/openjpa/internal/store"
)

// EnvPrefix prefixes every environment variable read.
const EnvPrefix = "OPENJPA"

// Configuration keys.
const (
	KeyDriver          = "connection.driver"
	KeyURL             = "connection.url"
	KeyDictionary      = "dictionary"
	KeyMappings        = "mappings"
	KeyUseLiteralInSQL = "fetch.use_literal_in_sql"
	KeyEagerMode       = "fetch.eager_mode"
	KeyResultSetType   = "fetch.result_set_type"
	KeyCloseConnection = "fetch.close_connection"
	KeyLogLevel        = "log.level"
)

// ErrInvalidValue is wrapped by errors for values that do not parse.
var ErrInvalidValue = errors.New("invalid configuration value")

// Configuration is one resolved set of settings.
type Configuration struct {
	v *viper.Viper
}

// New returns a configuration holding the defaults and reading the
// environment.
func New() *Configuration {
	v := viper.New()
	v.SetDefault(KeyDriver, "sqlite3")
	v.SetDefault(KeyURL, ":memory:")
	v.SetDefault(KeyDictionary, "")
	v.SetDefault(KeyMappings, "mappings")
	v.SetDefault(KeyUseLiteralInSQL, false)
	v.SetDefault(KeyEagerMode, sql.EagerParallel.String())
	v.SetDefault(KeyResultSetType, sql.ScrollInsensitive.String())
	v.SetDefault(KeyCloseConnection, true)
	v.SetDefault(KeyLogLevel, "info")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Configuration{v: v}
}

// Load returns a configuration read from file. An empty file searches for
// openjpa.yaml (or .json, .toml) in the working directory and the home
// directory; finding none there is not an error.
func Load(file string) (*Configuration, error) {
	c := New()
	if file != "" {
		c.v.SetConfigFile(file)
	} else {
		c.v.SetConfigName("openjpa")
		c.v.AddConfigPath(".")
		c.v.AddConfigPath("$HOME")
	}
	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file == "" && errors.As(err, &notFound) {
			return c, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return c, nil
}

// File returns the config file in use, or "".
func (c *Configuration) File() string { return c.v.ConfigFileUsed() }

// BindFlag makes a command-line flag override key once the flag is set.
func (c *Configuration) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("bind %s: no such flag", key)
	}
	return c.v.BindPFlag(key, flag)
}

// Set overrides key.
func (c *Configuration) Set(key string, value any) { c.v.Set(key, value) }

// Driver returns the database driver name.
func (c *Configuration) Driver() string { return c.v.GetString(KeyDriver) }

// URL returns the connection string: a file path or ":memory:" for SQLite,
// a DSN otherwise.
func (c *Configuration) URL() string { return c.v.GetString(KeyURL) }

// MappingsDir returns the directory holding the CUE mappings.
func (c *Configuration) MappingsDir() string { return c.v.GetString(KeyMappings) }

// Dictionary resolves the configured dictionary by name, falling back to
// the driver's dialect.
func (c *Configuration) Dictionary() (sql.Dictionary, error) {
	name := c.v.GetString(KeyDictionary)
	if name == "" {
		name = c.Driver()
	}
	d, err := store.DictionaryFor(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", KeyDictionary, ErrInvalidValue, err)
	}
	return d, nil
}

// FetchConfiguration builds the default fetch configuration.
func (c *Configuration) FetchConfiguration() (*sql.FetchConfiguration, error) {
	f := sql.NewFetchConfiguration()

	raw := c.v.GetString(KeyEagerMode)
	mode, ok := sql.ParseEagerMode(raw)
	if !ok {
		return nil, fmt.Errorf("%s %q: %w", KeyEagerMode, raw, ErrInvalidValue)
	}
	f.EagerMode = mode

	raw = c.v.GetString(KeyResultSetType)
	rst, ok := sql.ParseResultSetType(raw)
	if !ok {
		return nil, fmt.Errorf("%s %q: %w", KeyResultSetType, raw, ErrInvalidValue)
	}
	f.ResultSetType = rst

	f.CloseConnection = c.v.GetBool(KeyCloseConnection)
	if c.v.GetBool(KeyUseLiteralInSQL) {
		f.SetHint(sql.HintUseLiteralInSQL, true)
	}
	return f, nil
}

// LogLevel parses log.level: debug, info, warn or error.
func (c *Configuration) LogLevel() (slog.Level, error) {
	var level slog.Level
	raw := c.v.GetString(KeyLogLevel)
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo, fmt.Errorf("%s %q: %w", KeyLogLevel, raw, ErrInvalidValue)
	}
	return level, nil
}

// Logger returns a text logger writing to w at the configured level.
func (c *Configuration) Logger(w io.Writer) (*slog.Logger, error) {
	level, err := c.LogLevel()
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}

// Repository loads the mappings directory.
func (c *Configuration) Repository() (*mapping.Repository, error) {
	return mapping.LoadDir(c.MappingsDir())
}

// OpenStore opens the configured database with the configured dictionary.
func (c *Configuration) OpenStore(opts ...store.Option) (*store.Store, error) {
	dict, err := c.Dictionary()
	if err != nil {
		return nil, err
	}
	opts = append([]store.Option{store.WithDictionary(dict)}, opts...)
	switch strings.ToLower(c.Driver()) {
	case "sqlite3", "sqlite":
		return store.Open(c.URL(), opts...)
	}
	return store.OpenDriver(c.Driver(), c.URL(), opts...)
}
