// Package directorlog provides the structured, leveled logger used across
// the provisioning core. It wraps log15 the way the rest of the codebase
// expects: every component derives its own contextual logger with New
// rather than calling a global logger directly.
package directorlog

import (
	"os"

	"gopkg.in/inconshreveable/log15.v2"
)

// Options configure the process-wide log handler.
type Options struct {
	Level     int
	Stdout    bool
	Format    string
	CallStack bool
}

// ProdDefaults mirrors the director's production logging configuration:
// logfmt to stderr at info level, with caller-stack context on every
// record so VM-deletion warnings carry a stack trace.
var ProdDefaults = Options{
	Level:     int(log15.LvlInfo),
	Format:    "logfmt",
	CallStack: true,
}

func init() {
	Configure(ProdDefaults)
}

// New returns a logger scoped to ctx, e.g. New("module", "vm.factory").
func New(ctx ...interface{}) log15.Logger {
	return log15.Root().New(ctx...)
}

// Root returns the process root logger.
func Root() log15.Logger {
	return log15.Root()
}

// Configure installs a new handler built from opts.
func Configure(opts Options) {
	var f log15.Format
	switch opts.Format {
	case "json":
		f = log15.JsonFormatEx(true, true)
	case "term":
		f = log15.TerminalFormat()
	default:
		f = log15.LogfmtFormat()
	}

	out := os.Stderr
	if opts.Stdout {
		out = os.Stdout
	}

	h := log15.StreamHandler(out, f)
	if opts.CallStack {
		h = log15.CallerStackHandler("%+v", h)
	}

	lvl := opts.Level
	if lvl < 0 {
		lvl = 0
	}
	if lvl > int(log15.LvlDebug) {
		lvl = int(log15.LvlDebug)
	}

	log15.Root().SetHandler(log15.LvlFilterHandler(log15.Lvl(lvl), h))
}
