package sql

import (
	"log/slog"
	"maps"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// HintUseLiteralInSQL toggles literal inlining. When true, literals render
// as SQL text instead of bind parameters.
const HintUseLiteralInSQL = "openjpa.hint.UseLiteralInSQL"

// EagerMode is how a select loads a related field together with its owner.
type EagerMode int

const (
	// EagerNone does not load the field.
	EagerNone EagerMode = iota
	// EagerInner loads the field through an inner join in the same statement.
	EagerInner
	// EagerOuter loads the field through an outer join in the same statement.
	EagerOuter
	// EagerParallel loads the field with a sibling statement that shares the
	// owner's joins and conditions.
	EagerParallel
)

func (m EagerMode) String() string {
	switch m {
	case EagerInner:
		return "inner"
	case EagerOuter:
		return "outer"
	case EagerParallel:
		return "parallel"
	}
	return "none"
}

// ParseEagerMode parses a configuration spelling of an eager mode.
func ParseEagerMode(s string) (EagerMode, bool) {
	switch strings.ToLower(s) {
	case "", "none":
		return EagerNone, true
	case "inner", "join":
		return EagerInner, true
	case "outer":
		return EagerOuter, true
	case "parallel":
		return EagerParallel, true
	}
	return EagerNone, false
}

// ResultSetType selects the cursor kind used for results.
type ResultSetType int

const (
	// ScrollInsensitive buffers rows so that results support absolute
	// positioning and Size.
	ScrollInsensitive ResultSetType = iota
	// ForwardOnly streams rows from the driver.
	ForwardOnly
)

func (t ResultSetType) String() string {
	if t == ForwardOnly {
		return "forward-only"
	}
	return "scroll-insensitive"
}

// ParseResultSetType parses a configuration spelling of a cursor kind.
func ParseResultSetType(s string) (ResultSetType, bool) {
	switch strings.ToLower(s) {
	case "", "scroll-insensitive", "scroll":
		return ScrollInsensitive, true
	case "forward-only", "forward":
		return ForwardOnly, true
	}
	return ScrollInsensitive, false
}

// IDGenerator names executed statements in logs.
type IDGenerator interface {
	Generate() string
}

// UUIDGenerator generates UUIDv7 statement ids.
type UUIDGenerator struct{}

// Generate returns a new time-ordered UUID string.
func (UUIDGenerator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FetchConfiguration carries per-query execution settings.
type FetchConfiguration struct {
	// EagerMode caps the eager strategy used for related fields.
	EagerMode EagerMode

	ResultSetType ResultSetType

	// ForUpdate requests row locks when the select supports locking.
	ForUpdate bool

	// CloseStatement and CloseConnection transfer ownership of the
	// statement and connection to the result.
	CloseStatement  bool
	CloseConnection bool

	IDs    IDGenerator
	Logger *slog.Logger

	hints map[string]any
}

// NewFetchConfiguration returns the default configuration: parallel eager
// loading, buffered results, and results owning their resources.
func NewFetchConfiguration() *FetchConfiguration {
	return &FetchConfiguration{
		EagerMode:       EagerParallel,
		ResultSetType:   ScrollInsensitive,
		CloseStatement:  true,
		CloseConnection: true,
		IDs:             UUIDGenerator{},
		hints:           make(map[string]any),
	}
}

// SetHint sets a query hint. A nil value removes it.
func (f *FetchConfiguration) SetHint(key string, value any) {
	if f.hints == nil {
		f.hints = make(map[string]any)
	}
	if value == nil {
		delete(f.hints, key)
		return
	}
	f.hints[key] = value
}

// Hint returns a query hint, or nil.
func (f *FetchConfiguration) Hint(key string) any {
	if f == nil {
		return nil
	}
	return f.hints[key]
}

// Hints returns a copy of all hints.
func (f *FetchConfiguration) Hints() map[string]any {
	return maps.Clone(f.hints)
}

// UseLiteralInSQL reports whether HintUseLiteralInSQL is set to true. The
// hint may be a bool or a string.
func (f *FetchConfiguration) UseLiteralInSQL() bool {
	switch v := f.Hint(HintUseLiteralInSQL).(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(v)
		return err == nil && b
	}
	return false
}

// Clone returns an independent copy.
func (f *FetchConfiguration) Clone() *FetchConfiguration {
	c := *f
	c.hints = maps.Clone(f.hints)
	return &c
}

func (f *FetchConfiguration) logger() *slog.Logger {
	if f != nil && f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

func (f *FetchConfiguration) nextID() string {
	if f != nil && f.IDs != nil {
		return f.IDs.Generate()
	}
	return UUIDGenerator{}.Generate()
}
