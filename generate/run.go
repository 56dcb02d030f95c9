// Package generate implements "generate" and "split" commands: it finds
// templates and turns each of them into Go source file.
package generate

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/maruel/natural"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/ianaindex"

	"tplgen/archive"
	"tplgen/codegen"
	"tplgen/common"
	"tplgen/config"
	"tplgen/content"
	"tplgen/state"
)

func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("generate")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	src, err = filepath.Abs(src)
	if err != nil {
		return err
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	if pkg := cmd.String("package"); len(pkg) > 0 {
		env.Cfg.Generator.Package = pkg
	}
	if params := cmd.StringSlice("param"); len(params) > 0 {
		env.Cfg.Generator.Params = params
	}

	if f := cmd.String("format"); len(f) > 0 {
		mode, err := common.ParseFormatMode(f)
		if err != nil {
			return fmt.Errorf("unknown format mode requested: %w", err)
		}
		env.Cfg.Generator.Format = mode
	}
	if v := cmd.String("validate"); len(v) > 0 {
		mode, err := common.ParseValidateMode(v)
		if err != nil {
			return fmt.Errorf("unknown validation mode requested: %w", err)
		}
		env.Cfg.Generator.Validate = mode
	}

	env.NoDirs, env.Overwrite = cmd.Bool("nodirs"), cmd.Bool("overwrite")
	env.Check, env.Watch = cmd.Bool("check"), cmd.Bool("watch")
	if env.Check && env.Watch {
		return errors.New("check and watch modes are mutually exclusive")
	}
	if env.Watch {
		// regenerated files always replace previous results
		env.Overwrite = true
	}

	selectCharset(env, log)

	// Since zip "standard" does not define file name encoding we may need to
	// force archaic code page for old archives
	cp := cmd.String("force-zip-cp")
	if len(cp) > 0 {
		env.CodePage, err = ianaindex.IANA.Encoding(cp)
		if err != nil {
			log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
			env.CodePage = nil
		} else {
			n, _ := ianaindex.IANA.Name(env.CodePage)
			log.Debug("Forcefully converting all non UTF-8 file names in archives", zap.String("charset", n))
		}
	}

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst), zap.Bool("check", env.Check))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	err = process(ctx, src, dst, log)
	if !env.Watch {
		return err
	}
	if err != nil {
		log.Warn("Initial generation has problems, watching anyway", zap.Error(err))
	}
	return watch(ctx, src, dst, log)
}

// selectCharset resolves configured encoding of BOM-less templates.
func selectCharset(env *state.LocalEnv, log *zap.Logger) {
	label := env.Cfg.Generator.Charset
	if len(label) == 0 {
		return
	}
	enc, name := charset.Lookup(label)
	if enc == nil {
		log.Warn("Unknown template character set specification. Ignoring...", zap.String("charset", label))
		return
	}
	env.Charset = enc
	log.Debug("Decoding templates without BOM", zap.String("charset", name))
}

// process handles the core generation logic independently of CLI framework.
// It determines the input type (directory, archive, or single file) and
// processes accordingly.
func process(ctx context.Context, src, dst string, log *zap.Logger) error {
	var head, tail string
	for head = src; len(head) != 0; head, tail = filepath.Split(head) {
		if err := ctx.Err(); err != nil {
			return err
		}

		head = strings.TrimSuffix(head, string(filepath.Separator))

		fi, err := os.Stat(head)
		if err != nil {
			// does not exists - probably path in archive
			continue
		}
		storeSource(ctx, head, log)

		if fi.Mode().IsDir() {
			if len(tail) != 0 {
				// directory cannot have tail - it would be simple file
				return fmt.Errorf("input source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
			}
			if err := processDir(ctx, head, dst, log); err != nil {
				return fmt.Errorf("unable to process directory: %w", err)
			}
			return nil
		}

		if !fi.Mode().IsRegular() {
			return fmt.Errorf("unexpected path mode for (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}

		isArchive, err := isArchiveFile(head)
		if err != nil {
			// checking format - but cannot open target file
			return fmt.Errorf("unable to check archive type: %w", err)
		}
		if isArchive {
			// we need to look inside to see if path makes sense
			tail = strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator))
			if err := processArchive(ctx, head, tail, "", dst, log); err != nil {
				return fmt.Errorf("unable to process archive: %w", err)
			}
			return nil
		}

		if len(tail) != 0 {
			return fmt.Errorf("input source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}

		// explicitly named file does not have to have template extension
		header, err := readFileHeader(head)
		if err != nil {
			return fmt.Errorf("unable to check file type: %w", err)
		}
		ok, enc := classifyTemplate(header)
		if !ok {
			return fmt.Errorf("input was not recognized as text template (%s)", head)
		}
		return processFile(ctx, head, filepath.Base(head), dst, enc, log)
	}
	return fmt.Errorf("input source was not found (%s)", src)
}

// storeSource puts copy of the whole input (file, directory or archive) into
// debug report as it was before generation.
func storeSource(ctx context.Context, head string, log *zap.Logger) {
	env := state.EnvFromContext(ctx)
	if env.Rpt == nil {
		return
	}
	if err := env.Rpt.StoreCopy(path.Join("sources", filepath.Base(head)), head); err != nil {
		log.Warn("Unable to store source in the report", zap.String("source", head), zap.Error(err))
	}
}

// processDir walks directory tree finding templates and archives and
// processes them in natural order of their relative paths. Failures are
// logged and returned combined after everything has been processed.
func processDir(ctx context.Context, dir, dst string, log *zap.Logger) (err error) {
	exts := state.EnvFromContext(ctx).Cfg.Generator.Extensions

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil {
			log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if d.Type().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	slices.SortStableFunc(paths, func(a, b string) int {
		switch {
		case a == b:
			return 0
		case natural.Less(a, b):
			return -1
		default:
			return 1
		}
	})

	count := 0
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, _ := filepath.Rel(dir, path)

		isArchive, cerr := isArchiveFile(path)
		if cerr != nil {
			// checking format - but cannot open target file
			log.Warn("Skipping file", zap.String("file", path), zap.Error(cerr))
			continue
		}
		if isArchive {
			count++
			if perr := processArchive(ctx, path, "", filepath.Dir(rel), dst, log); perr != nil {
				log.Error("Unable to process archive", zap.String("file", path), zap.Error(perr))
				err = multierr.Append(err, perr)
			}
			continue
		}

		ok, enc, cerr := isTemplateFile(path, exts)
		if cerr != nil {
			log.Warn("Skipping file", zap.String("file", path), zap.Error(cerr))
			continue
		}
		if !ok {
			log.Debug("Skipping file, not recognized as template or archive", zap.String("file", path))
			continue
		}

		count++
		if perr := processFile(ctx, path, rel, dst, enc, log); perr != nil {
			err = multierr.Append(err, perr)
		}
	}
	if err == nil && count == 0 {
		log.Debug("Nothing to process", zap.String("dir", dir))
	}
	return err
}

// processArchive walks all files inside archive, finds templates under
// "pathIn" and processes them. "pathOut" is the archive directory relative
// to processed source.
func processArchive(ctx context.Context, path, pathIn, pathOut, dst string, log *zap.Logger) (err error) {
	env := state.EnvFromContext(ctx)
	exts := env.Cfg.Generator.Extensions

	count := 0
	var failed error
	err = archive.Walk(path, pathIn, func(name string) bool {
		return hasTemplateExt(name, exts)
	}, func(archive string, f *zip.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		ok, enc, err := isTemplateInArchive(f, exts)
		if err != nil {
			log.Warn("Skipping file in archive",
				zap.String("archive", archive), zap.String("path", f.FileHeader.Name), zap.Error(err))
			return nil
		}
		if !ok {
			log.Debug("Skipping file, not recognized as template", zap.String("archive", archive), zap.String("file", f.FileHeader.Name))
			return nil
		}

		count++

		r, err := f.Open()
		if err != nil {
			log.Error("Unable to process file in archive",
				zap.String("archive", archive), zap.String("file", f.FileHeader.Name), zap.Error(err))
			failed = multierr.Append(failed, err)
			return nil
		}
		defer r.Close()

		pathInArchive := f.FileHeader.Name
		if cp := env.CodePage; cp != nil && f.FileHeader.NonUTF8 {
			// forcing zip file name encoding
			if n, err := cp.NewDecoder().String(pathInArchive); err == nil {
				pathInArchive = n
			} else {
				n, _ = ianaindex.IANA.Name(cp)
				log.Warn("Unable to convert archive name from specified encoding",
					zap.String("charset", n), zap.String("path", pathInArchive), zap.Error(err))
			}
		}
		src := filepath.Join(pathOut, filepath.FromSlash(pathInArchive))
		if err := processTemplate(ctx, selectReader(r, enc, env.Charset), src, dst, log); err != nil {
			log.Error("Unable to process file in archive",
				zap.String("archive", archive), zap.String("file", f.FileHeader.Name), zap.Error(err))
			failed = multierr.Append(failed, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if failed == nil && count == 0 {
		log.Debug("Nothing to process", zap.String("archive", path))
	}
	return failed
}

// processFile opens template file and processes it, "src" is the path
// relative to processed source.
func processFile(ctx context.Context, path, src, dst string, enc srcEncoding, log *zap.Logger) error {
	file, err := os.Open(path)
	if err != nil {
		log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
		return err
	}
	defer file.Close()

	env := state.EnvFromContext(ctx)
	if err := processTemplate(ctx, selectReader(file, enc, env.Charset), src, dst, log); err != nil {
		log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
		return err
	}
	return nil
}

// processTemplate processes single template. "src" is part of the source path
// (always including file name) relative to the original path. When actual file
// was specified it will be just base file name without a path. When looking
// inside archive or directory it will be relative path inside archive or
// directory (including base file name). "dst" is the destination directory
// where the generated file should be written.
func processTemplate(ctx context.Context, r io.Reader, src string, dst string, log *zap.Logger) (rerr error) {
	env := state.EnvFromContext(ctx)

	var outputName string

	log.Info("Generation starting", zap.String("from", src))
	defer func(start time.Time) {
		// embedded code is arbitrary text and we do not want single broken
		// template to stop processing of the rest
		if r := recover(); r != nil {
			log.Error("Generation ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName), zap.ByteString("stack", debug.Stack()))
			rerr = fmt.Errorf("generation panic: %v", r)
		} else if rerr == nil {
			log.Info("Generation completed", zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName))
		}
	}(time.Now())

	c, err := content.Prepare(ctx, r, src, log)
	if err != nil {
		return fmt.Errorf("unable to prepare template (%s): %w", src, err)
	}

	values := newValues(src)
	funcName, err := expandTemplate(config.FunctionNameTemplateFieldName, env.Cfg.Generator.FunctionNameTemplate, values)
	if err != nil {
		return fmt.Errorf("unable to prepare function name (%s): %w", src, err)
	}

	// Determine output file name and path based on input and configuration.
	outputName = buildOutputPath(values, dst, env, log)

	pkg := env.Cfg.Generator.Package
	if len(pkg) == 0 {
		pkg = packageName(filepath.Dir(outputName))
	}

	code, err := codegen.GenerateFile(codegen.FileSpec{
		Source:  values.Source,
		Package: pkg,
		Imports: env.Cfg.Generator.Imports,
		Header:  env.Cfg.Generator.Header,
		Funcs:   []codegen.Func{{Name: funcName, Params: env.Cfg.Generator.Params, Seq: c.Seq}},
	})
	if err != nil {
		return fmt.Errorf("unable to generate code (%s): %w", src, err)
	}

	if formatted, err := codegen.Format(outputName, code, env.Cfg.Generator.Format); err != nil {
		// most likely embedded code is broken, compiler will tell more
		log.Warn("Unable to format generated code, keeping it as is", zap.String("to", outputName), zap.Error(err))
	} else {
		code = formatted
	}

	// Store generated source for debugging
	if env.Rpt != nil {
		env.Rpt.StoreData(path.Join("generated", values.Source+".go"), code)
	}

	if env.Check {
		return checkOutput(env.Out, outputName, code)
	}

	// Check if output file already exists
	if _, err := os.Stat(outputName); err == nil {
		if !env.Overwrite {
			return fmt.Errorf("output file already exists: %s", outputName)
		}
		log.Debug("Overwriting existing file", zap.String("file", outputName))
	} else if !os.IsNotExist(err) {
		return err
	} else if err := os.MkdirAll(filepath.Dir(outputName), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	if err := os.WriteFile(outputName, code, 0644); err != nil {
		return fmt.Errorf("unable to write generated code: %w", err)
	}
	return nil
}
