package generate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"tplgen/common"
	"tplgen/content"
	"tplgen/state"
)

// Split prints fragment sequence of a single template, it is a debugging aid
// for template authors.
func Split(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("split")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no template has been specified")
	}
	if cmd.Args().Len() > 1 {
		log.Warn("Malformed command line, too many templates", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}

	selectCharset(env, log)
	if env.Cfg.Generator.Validate == common.ValidateModeStrict {
		// problems are part of the output
		env.Cfg.Generator.Validate = common.ValidateModeWarn
	}

	return splitFile(ctx, src, log)
}

func splitFile(ctx context.Context, src string, log *zap.Logger) error {
	env := state.EnvFromContext(ctx)

	header, err := readFileHeader(src)
	if err != nil {
		return fmt.Errorf("unable to check file type: %w", err)
	}
	ok, enc := classifyTemplate(header)
	if !ok {
		return fmt.Errorf("input was not recognized as text template (%s)", src)
	}

	file, err := os.Open(src)
	if err != nil {
		return err
	}
	defer file.Close()

	c, err := content.Prepare(ctx, selectReader(file, enc, env.Charset), filepath.Base(src), log)
	if err != nil {
		return fmt.Errorf("unable to prepare template (%s): %w", src, err)
	}
	_, err = fmt.Fprintln(env.Out, c.String())
	return err
}
