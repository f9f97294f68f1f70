package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pierpaolospaziani/openjpa/internal/config"
	"github.com/pierpaolospaziani/openjpa/internal/exps"
	"github.com/pierpaolospaziani/openjpa/internal/mapping"
	"github.com/pierpaolospaziani/openjpa/internal/queryir"
	"github.com/pierpaolospaziani/openjpa/internal/querysql"
	"github.com/pierpaolospaziani/openjpa/internal/sql"
	"github.com/pierpaolospaziani/openjpa/internal/store"
)

// LoadError is a failure to set up a command, with the code reported for it.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Environment is what the query commands run against.
type Environment struct {
	Config *config.Configuration
	Repo   *mapping.Repository
	Store  *store.Store
	Logger *slog.Logger
}

// loadConfiguration returns the configuration bound by the root command,
// or loads one from the options when a command runs on its own.
func loadConfiguration(opts *RootOptions) (*config.Configuration, error) {
	if opts.config != nil {
		return opts.config, nil
	}
	c, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeConfig, Message: "loading configuration", Err: err}
	}
	for key, val := range map[string]string{
		config.KeyDriver:     opts.Driver,
		config.KeyURL:        opts.URL,
		config.KeyMappings:   opts.Mappings,
		config.KeyDictionary: opts.Dictionary,
	} {
		if val != "" {
			c.Set(key, val)
		}
	}
	if opts.Verbose {
		c.Set(config.KeyLogLevel, "debug")
	}
	opts.config = c
	return c, nil
}

// LoadEnvironment resolves the configuration, loads the mappings and opens
// the store. With sync set the mapped tables are created first. Logs go to
// logs.
func LoadEnvironment(ctx context.Context, opts *RootOptions, logs io.Writer, sync bool) (*Environment, error) {
	c, err := loadConfiguration(opts)
	if err != nil {
		return nil, err
	}
	logger, err := c.Logger(logs)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeConfig, Message: "configuring logger", Err: err}
	}
	dir := c.MappingsDir()
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("mappings directory not found: %s", dir)}
	}
	repo, err := c.Repository()
	if err != nil {
		return nil, &LoadError{Code: ErrCodeMappings, Message: fmt.Sprintf("loading mappings from %s", dir), Err: err}
	}
	st, err := c.OpenStore(store.WithLogger(logger))
	if err != nil {
		if errors.Is(err, config.ErrInvalidValue) {
			return nil, &LoadError{Code: ErrCodeConfig, Message: "resolving dictionary", Err: err}
		}
		return nil, &LoadError{Code: ErrCodeStore, Message: fmt.Sprintf("opening %s database", c.Driver()), Err: err}
	}
	if sync {
		if err := st.SyncSchema(ctx, repo); err != nil {
			_ = st.Close()
			return nil, &LoadError{Code: ErrCodeStore, Message: "creating mapped tables", Err: err}
		}
	}
	logger.Debug("environment loaded",
		"driver", c.Driver(),
		"mappings", len(repo.Mappings()),
		"config", c.File())
	return &Environment{Config: c, Repo: repo, Store: st, Logger: logger}, nil
}

// Executor returns a query executor over the environment's store. A
// non-empty eager overrides the configured eager mode.
func (e *Environment) Executor(eager string) (*querysql.Executor, error) {
	fetch, err := e.Config.FetchConfiguration()
	if err != nil {
		return nil, &LoadError{Code: ErrCodeConfig, Message: "building fetch configuration", Err: err}
	}
	if eager != "" {
		mode, ok := sql.ParseEagerMode(eager)
		if !ok {
			return nil, &LoadError{Code: ErrCodeConfig, Message: fmt.Sprintf("unknown eager mode %q", eager)}
		}
		fetch.EagerMode = mode
	}
	fetch.Logger = e.Logger
	return querysql.NewExecutor(e.Store, querysql.WithFetchConfiguration(fetch), querysql.WithLogger(e.Logger)), nil
}

// Close closes the store.
func (e *Environment) Close() error {
	return e.Store.Close()
}

// LoadQuery decodes the query document at path and compiles it against repo.
func LoadQuery(path string, repo *mapping.Repository) (*queryir.Document, *exps.QueryExpressions, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("query file not found: %s", path)}
	}
	doc, err := queryir.DecodeFile(path)
	if err != nil {
		return nil, nil, &LoadError{Code: ErrCodeQueryFile, Message: fmt.Sprintf("decoding %s", path), Err: err}
	}
	q, err := queryir.Compile(doc, repo)
	if err != nil {
		return doc, nil, &LoadError{Code: QueryErrorCode(err), Message: "compiling query", Err: err}
	}
	return doc, q, nil
}

// QueryErrorCode maps a query error to its CLI error code.
func QueryErrorCode(err error) string {
	switch {
	case exps.IsUnknownField(err):
		return ErrCodeUnknownField
	case exps.IsInvalidQuery(err):
		return ErrCodeInvalidQuery
	case exps.IsUnsupported(err):
		return ErrCodeUnsupported
	}
	return ErrCodeExecute
}

// ParseParams parses name=value pairs. Values are read as YAML scalars, so
// 42 is a number, true a boolean and anything unquoted else a string.
func ParseParams(pairs []string) (map[string]any, error) {
	params := make(map[string]any, len(pairs))
	for _, p := range pairs {
		name, raw, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, &LoadError{Code: ErrCodeParam, Message: fmt.Sprintf("param %q must be name=value", p)}
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, &LoadError{Code: ErrCodeParam, Message: fmt.Sprintf("param %s", name), Err: err}
		}
		if _, isMap := v.(map[string]any); isMap {
			v = raw
		}
		if _, isList := v.([]any); isList {
			v = raw
		}
		params[name] = v
	}
	return params, nil
}

// reportLoadError writes err through the formatter and returns the exit
// error for it.
func reportLoadError(f *OutputFormatter, err error) error {
	code, msg := ErrCodeGeneric, err.Error()
	var le *LoadError
	if errors.As(err, &le) {
		code = le.Code
		msg = le.Message
		if le.Err != nil {
			msg += ": " + le.Err.Error()
		}
	}
	if outErr := f.Error(code, msg, nil); outErr != nil {
		return outErr
	}
	exit := ExitCommandError
	switch code {
	case ErrCodeUnknownField, ErrCodeInvalidQuery, ErrCodeUnsupported, ErrCodeExecute:
		exit = ExitFailure
	}
	return WrapExitError(exit, msg, err)
}
