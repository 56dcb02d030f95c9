// Package state defines shared program state.
package state

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"

	"tplgen/config"
	"tplgen/splitter"
)

type envKey struct{}

// LocalEnv keeps everything program needs in a single place.
type LocalEnv struct {
	Cfg *config.Config
	Rpt *config.Report
	Log *zap.Logger

	// Tokenizer decides whether end markers are live, every template gets
	// its own automaton built around it.
	Tokenizer splitter.Tokenizer

	// used by generate subcommand
	NoDirs    bool
	Overwrite bool
	Check     bool
	Watch     bool
	// CodePage forced for non UTF-8 file names in archives.
	CodePage encoding.Encoding
	// Charset of BOM-less templates, nil means UTF-8.
	Charset encoding.Encoding
	// Out receives human readable results (check mode diffs, split dumps).
	Out io.Writer

	start         time.Time
	restoreStdLog func()
}

func EnvFromContext(ctx context.Context) *LocalEnv {
	if env, ok := ctx.Value(envKey{}).(*LocalEnv); ok {
		return env
	}
	// this should never happen
	panic("localenv not found in context")
}

func ContextWithEnv(ctx context.Context) context.Context {
	return context.WithValue(ctx, envKey{}, newLocalEnv())
}

func (e *LocalEnv) Uptime() time.Duration {
	return time.Since(e.start)
}

// SplitOptions returns automaton options matching current configuration.
func (e *LocalEnv) SplitOptions(log *zap.Logger) []splitter.Option {
	opts := []splitter.Option{splitter.WithLogger(log)}
	if e.Cfg != nil {
		opts = append(opts, splitter.WithEcho(e.Cfg.Generator.Echo))
	}
	return opts
}

func (e *LocalEnv) RedirectStdLog() {
	if e.Log == nil {
		return
	}
	e.restoreStdLog = zap.RedirectStdLog(e.Log)
}

func (e *LocalEnv) RestoreStdLog() {
	if e.Log != nil {
		_ = e.Log.Sync()
	}
	if e.restoreStdLog != nil {
		e.restoreStdLog()
	}
}
