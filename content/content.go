// Package content prepares template documents for code generation.
package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"unicode/utf8"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"tplgen/common"
	"tplgen/splitter"
	"tplgen/state"
)

// ErrInvalidCode is returned in strict validation mode when embedded code has
// problems, actual problems are wrapped together with it.
var ErrInvalidCode = errors.New("invalid embedded code")

// Content encapsulates template source and the fragment sequence derived from it.
type Content struct {
	// SrcName is path of the template relative to processed source.
	SrcName string
	Source  string
	Seq     splitter.Sequence
	// Problems found by validation, nil when validation is disabled or
	// nothing was found.
	Problems error
}

// Prepare reads template (already decoded to UTF-8) and splits it into
// fragments.
func Prepare(ctx context.Context, r io.Reader, srcName string, log *zap.Logger) (*Content, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	env := state.EnvFromContext(ctx)

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("unable to read template: %w", err)
	}
	if !utf8.Valid(data) {
		// it is passed through verbatim, but most likely charset is wrong
		log.Warn("Template is not valid UTF-8, check configured charset", zap.String("file", srcName))
	}

	c := &Content{
		SrcName: srcName,
		Source:  string(data),
	}
	c.Seq = splitter.Split(c.Source, env.Tokenizer, env.SplitOptions(log.Named("splitter"))...)

	log.Debug("Template split",
		zap.String("file", srcName), zap.Int("bytes", len(data)), zap.Int("fragments", len(c.Seq)), zap.Bool("echo", c.Seq.HasEcho()))

	if env.Cfg != nil && env.Cfg.Generator.Validate.Enabled() {
		c.Problems = splitter.Validate(c.Seq)
		for _, p := range multierr.Errors(c.Problems) {
			log.Warn("Embedded code problem", zap.String("file", srcName), zap.Error(p))
		}
	}

	if env.Rpt != nil {
		env.Rpt.StoreData(filepath.ToSlash(filepath.Join("fragments", srcName+".txt")), []byte(c.String()))
	}

	if c.Problems != nil && env.Cfg.Generator.Validate == common.ValidateModeStrict {
		return nil, fmt.Errorf("%w in %s: %w", ErrInvalidCode, srcName, c.Problems)
	}
	return c, nil
}
