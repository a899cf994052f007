package analyzing

import (
	"log/slog"

	"github.com/podhmo/go-analyzing/intrinsics"
	"github.com/podhmo/go-analyzing/locator"
	"github.com/podhmo/go-analyzing/object"
)

// Config holds the settings shared by the machines, the cache and the
// workspace of a Project.
type Config struct {
	// Logger is the shared logger for all components.
	Logger *slog.Logger

	// Overlay provides in-memory file contents that take precedence over
	// the files on disk when a project is opened from a directory.
	Overlay locator.Overlay

	// Mounts maps directories of locally replaced modules, relative to the
	// module root, to the import paths they replace. Open fills it from the
	// replace directives of go.mod.
	Mounts map[string]string

	// DirectMethods are the host methods spliced into every run. Nil means
	// intrinsics.Builtins().
	DirectMethods *intrinsics.Registry

	// MaxCallDepth and MaxSteps bound every run; zero keeps the machine defaults.
	MaxCallDepth int
	MaxSteps     int

	// Entries are run to validate the sources an edit produces before it
	// is committed. Without entries only the changed functions are compiled.
	Entries []object.MethodID
}

// Option configures a Project.
type Option func(*Config)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// WithOverlay sets in-memory file contents used by Open.
func WithOverlay(overlay locator.Overlay) Option {
	return func(c *Config) { c.Overlay = overlay }
}

// WithMounts sets the directories of locally replaced modules.
func WithMounts(mounts map[string]string) Option {
	return func(c *Config) { c.Mounts = mounts }
}

// WithDirectMethods sets the direct method registry.
func WithDirectMethods(r *intrinsics.Registry) Option {
	return func(c *Config) { c.DirectMethods = r }
}

// WithMaxCallDepth bounds the interpreted call stack.
func WithMaxCallDepth(n int) Option {
	return func(c *Config) { c.MaxCallDepth = n }
}

// WithMaxSteps bounds the number of executed instructions per run.
func WithMaxSteps(n int) Option {
	return func(c *Config) { c.MaxSteps = n }
}

// WithEntries sets the entry points used to validate edits.
func WithEntries(entries ...object.MethodID) Option {
	return func(c *Config) { c.Entries = entries }
}
