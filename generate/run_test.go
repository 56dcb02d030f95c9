package generate

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"maps"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"

	"tplgen/common"
	"tplgen/config"
	"tplgen/content"
	"tplgen/state"
)

const pageTemplate = "<ul><?rs for _, item := range items { ?><li><?= item ?></li><?rs } ?></ul>\n"

// setupTestEnv creates a test environment with proper context and logger
func setupTestEnv(t *testing.T) (context.Context, *state.LocalEnv) {
	logger := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	// goimports needs go command, keep tests hermetic
	cfg.Generator.Format = common.FormatModeGofmt
	cfg.Generator.Params = []string{"items []string"}
	ctx := state.ContextWithEnv(context.Background())
	env := state.EnvFromContext(ctx)
	env.Log = logger
	env.Cfg = cfg
	env.Out = new(bytes.Buffer)
	return ctx, env
}

func encode(t *testing.T, s string, enc encoding.Encoding) []byte {
	t.Helper()
	out, err := enc.NewEncoder().String(s)
	if err != nil {
		t.Fatalf("encode sample: %v", err)
	}
	return []byte(out)
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(name, data, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	return name
}

func makeArchive(t *testing.T, dir, name string, files map[string]string) string {
	t.Helper()
	zipPath := filepath.Join(dir, name)
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, n := range slices.Sorted(maps.Keys(files)) {
		f, err := w.Create(n)
		if err != nil {
			t.Fatalf("Failed to create file in zip: %v", err)
		}
		if _, err := f.Write([]byte(files[n])); err != nil {
			t.Fatalf("Failed to write to zip: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to finish zip: %v", err)
	}
	return writeFile(t, zipPath, buf.Bytes())
}

func readGenerated(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("generated file is missing: %v", err)
	}
	return string(data)
}

// TestProcess_NonExistentPath tests process with non-existent path
func TestProcess_NonExistentPath(t *testing.T) {
	ctx, env := setupTestEnv(t)

	err := process(ctx, "/nonexistent/path/file.tpl", t.TempDir(), env.Log)
	if err == nil || !strings.Contains(err.Error(), "input source was not found") {
		t.Fatalf("Expected source not found error, got: %v", err)
	}
}

// TestProcess_CancelledContext tests process with cancelled context
func TestProcess_CancelledContext(t *testing.T) {
	ctx, env := setupTestEnv(t)
	cancelCtx, cancel := context.WithCancel(ctx)
	cancel()

	tmpDir := t.TempDir()
	if err := process(cancelCtx, tmpDir, tmpDir, env.Log); err != context.Canceled {
		t.Errorf("Expected context.Canceled error, got %v", err)
	}
}

func TestProcess_SingleFile(t *testing.T) {
	ctx, env := setupTestEnv(t)
	src := writeFile(t, filepath.Join(t.TempDir(), "page.tpl"), []byte(pageTemplate))
	dst := filepath.Join(t.TempDir(), "views")

	if err := process(ctx, src, dst, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}

	got := readGenerated(t, filepath.Join(dst, "page_tpl.go"))
	for _, want := range []string{
		"// Code generated by tplgen from page.tpl. DO NOT EDIT.\n\npackage views\n",
		"func RenderPage(items []string) (string, error) {\n\tvar out strings.Builder\n",
		"\tfor _, item := range items {\n",
		"\t\tvalue := item\n",
		"\treturn out.String(), nil\n}\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("generated code does not contain %q:\n%s", want, got)
		}
	}
}

func TestProcess_TextWithMagicPrefix(t *testing.T) {
	ctx, env := setupTestEnv(t)
	src := writeFile(t, filepath.Join(t.TempDir(), "bmi.tpl"), []byte("BMI report\n"))
	dst := t.TempDir()

	if err := process(ctx, src, dst, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	got := readGenerated(t, filepath.Join(dst, "bmi_tpl.go"))
	if !strings.Contains(got, `out.WriteString("BMI report\n")`) {
		t.Errorf("unexpected generated code:\n%s", got)
	}
}

func TestProcess_ExplicitFileAnyExtension(t *testing.T) {
	ctx, env := setupTestEnv(t)
	src := writeFile(t, filepath.Join(t.TempDir(), "page.html"), []byte("plain"))
	dst := t.TempDir()

	if err := process(ctx, src, dst, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	got := readGenerated(t, filepath.Join(dst, "page_tpl.go"))
	if !strings.Contains(got, `out.WriteString("plain")`) {
		t.Errorf("unexpected generated code:\n%s", got)
	}
	if strings.Contains(got, `"fmt"`) {
		t.Errorf("fmt must not be imported without echo:\n%s", got)
	}
}

func TestProcess_NotTemplate(t *testing.T) {
	ctx, env := setupTestEnv(t)
	src := writeFile(t, filepath.Join(t.TempDir(), "image.tpl"), pngHeader)

	err := process(ctx, src, t.TempDir(), env.Log)
	if err == nil || !strings.Contains(err.Error(), "not recognized as text template") {
		t.Errorf("Expected not recognized error, got: %v", err)
	}
}

func TestProcess_FileWithTail(t *testing.T) {
	ctx, env := setupTestEnv(t)
	src := writeFile(t, filepath.Join(t.TempDir(), "page.tpl"), []byte(pageTemplate))

	if err := process(ctx, filepath.Join(src, "extra"), t.TempDir(), env.Log); err == nil {
		t.Error("Expected error for file path with tail")
	}
}

func TestProcess_Directory(t *testing.T) {
	ctx, env := setupTestEnv(t)
	env.Cfg.Generator.Package = "pages"

	srcDir := t.TempDir()
	writeFile(t, filepath.Join(srcDir, "index.tpl"), []byte(pageTemplate))
	writeFile(t, filepath.Join(srcDir, "admin", "users.gotpl"), []byte("<?= len(items) ?>"))
	writeFile(t, filepath.Join(srcDir, "README.md"), []byte("not a template"))
	writeFile(t, filepath.Join(srcDir, "logo.tpl"), pngHeader)

	dst := t.TempDir()
	if err := process(ctx, srcDir, dst, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}

	index := readGenerated(t, filepath.Join(dst, "index_tpl.go"))
	if !strings.Contains(index, "package pages\n") || !strings.Contains(index, "func RenderIndex(") {
		t.Errorf("unexpected index code:\n%s", index)
	}
	users := readGenerated(t, filepath.Join(dst, "admin", "users_tpl.go"))
	if !strings.Contains(users, "from admin/users.gotpl.") || !strings.Contains(users, "func RenderUsers(") {
		t.Errorf("unexpected users code:\n%s", users)
	}
	if _, err := os.Stat(filepath.Join(dst, "logo_tpl.go")); !os.IsNotExist(err) {
		t.Error("binary file must be skipped")
	}
}

func TestProcess_DirectoryNoDirs(t *testing.T) {
	ctx, env := setupTestEnv(t)
	env.NoDirs = true

	srcDir := t.TempDir()
	writeFile(t, filepath.Join(srcDir, "a", "b", "deep.tpl"), []byte("x"))

	dst := t.TempDir()
	if err := process(ctx, srcDir, dst, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	readGenerated(t, filepath.Join(dst, "deep_tpl.go"))
}

func TestProcess_DirectoryWithTail(t *testing.T) {
	ctx, env := setupTestEnv(t)
	srcDir := t.TempDir()

	if err := process(ctx, filepath.Join(srcDir, "missing", "page.tpl"), t.TempDir(), env.Log); err == nil {
		t.Error("Expected error for directory with tail")
	}
}

func TestProcess_Archive(t *testing.T) {
	ctx, env := setupTestEnv(t)
	tmpDir := t.TempDir()
	zipPath := makeArchive(t, tmpDir, "templates.zip", map[string]string{
		"views/page.tpl":   pageTemplate,
		"views/item.gotpl": "<li><?= items[0] ?></li>",
		"widgets/box.tpl":  "box",
		"notes.txt":        "not a template",
	})

	t.Run("whole archive", func(t *testing.T) {
		dst := t.TempDir()
		if err := process(ctx, zipPath, dst, env.Log); err != nil {
			t.Fatalf("process() error = %v", err)
		}
		readGenerated(t, filepath.Join(dst, "views", "page_tpl.go"))
		readGenerated(t, filepath.Join(dst, "views", "item_tpl.go"))
		box := readGenerated(t, filepath.Join(dst, "widgets", "box_tpl.go"))
		if !strings.Contains(box, "package widgets\n") {
			t.Errorf("package must be derived from output directory:\n%s", box)
		}
	})

	t.Run("path inside archive", func(t *testing.T) {
		dst := t.TempDir()
		if err := process(ctx, filepath.Join(zipPath, "views"), dst, env.Log); err != nil {
			t.Fatalf("process() error = %v", err)
		}
		readGenerated(t, filepath.Join(dst, "views", "page_tpl.go"))
		if _, err := os.Stat(filepath.Join(dst, "widgets")); !os.IsNotExist(err) {
			t.Error("only requested archive path must be processed")
		}
	})

	t.Run("archive inside directory", func(t *testing.T) {
		srcDir := t.TempDir()
		makeArchive(t, filepath.Join(srcDir, "packed"), "more.zip", map[string]string{"extra.tpl": "extra"})
		dst := t.TempDir()
		if err := process(ctx, srcDir, dst, env.Log); err != nil {
			t.Fatalf("process() error = %v", err)
		}
		readGenerated(t, filepath.Join(dst, "packed", "extra_tpl.go"))
	})
}

func TestProcess_EncodedTemplate(t *testing.T) {
	ctx, env := setupTestEnv(t)
	data := encode(t, "Привет, <?= items[0] ?>!", unicode.UTF16(unicode.LittleEndian, unicode.UseBOM))
	src := writeFile(t, filepath.Join(t.TempDir(), "hello.tpl"), data)
	dst := t.TempDir()

	if err := process(ctx, src, dst, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	got := readGenerated(t, filepath.Join(dst, "hello_tpl.go"))
	if !strings.Contains(got, `out.WriteString("Привет, ")`) {
		t.Errorf("template must be decoded to UTF-8:\n%s", got)
	}
}

func TestProcess_Overwrite(t *testing.T) {
	ctx, env := setupTestEnv(t)
	src := writeFile(t, filepath.Join(t.TempDir(), "page.tpl"), []byte("first"))
	dst := t.TempDir()

	if err := process(ctx, src, dst, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}

	writeFile(t, src, []byte("second"))
	err := process(ctx, src, dst, env.Log)
	if err == nil || !strings.Contains(err.Error(), "output file already exists") {
		t.Fatalf("Expected existing output error, got %v", err)
	}

	env.Overwrite = true
	if err := process(ctx, src, dst, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	if got := readGenerated(t, filepath.Join(dst, "page_tpl.go")); !strings.Contains(got, `"second"`) {
		t.Errorf("output was not overwritten:\n%s", got)
	}
}

func TestProcess_StrictValidation(t *testing.T) {
	ctx, env := setupTestEnv(t)
	env.Cfg.Generator.Validate = common.ValidateModeStrict

	srcDir := t.TempDir()
	writeFile(t, filepath.Join(srcDir, "bad.tpl"), []byte(`<?= x := 1 ?>`))
	writeFile(t, filepath.Join(srcDir, "good.tpl"), []byte(`<?= items ?>`))
	dst := t.TempDir()

	err := process(ctx, srcDir, dst, env.Log)
	if !errors.Is(err, content.ErrInvalidCode) {
		t.Fatalf("Expected invalid code error, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "bad_tpl.go")); !os.IsNotExist(err) {
		t.Error("invalid template must not be generated")
	}
	// other templates are still processed
	readGenerated(t, filepath.Join(dst, "good_tpl.go"))
}

func TestProcess_UnformattableCodeIsKept(t *testing.T) {
	ctx, env := setupTestEnv(t)
	src := writeFile(t, filepath.Join(t.TempDir(), "broken.tpl"), []byte(`a<?rs if { ?>b`))
	dst := t.TempDir()

	if err := process(ctx, src, dst, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	got := readGenerated(t, filepath.Join(dst, "broken_tpl.go"))
	if !strings.Contains(got, " if { \n") {
		t.Errorf("unformatted code must be written as is:\n%s", got)
	}
}

func TestProcess_InvalidFunctionName(t *testing.T) {
	ctx, env := setupTestEnv(t)
	env.Cfg.Generator.FunctionNameTemplate = "{{ .Name }}"
	src := writeFile(t, filepath.Join(t.TempDir(), "my page.tpl"), []byte("x"))

	err := process(ctx, src, t.TempDir(), env.Log)
	if err == nil || !strings.Contains(err.Error(), "invalid function name") {
		t.Errorf("Expected invalid function name error, got %v", err)
	}
}

func TestProcess_Check(t *testing.T) {
	ctx, env := setupTestEnv(t)
	srcDir := t.TempDir()
	writeFile(t, filepath.Join(srcDir, "page.tpl"), []byte(pageTemplate))
	dst := t.TempDir()

	// nothing generated yet
	env.Check = true
	if err := process(ctx, srcDir, dst, env.Log); !errors.Is(err, errOutdated) {
		t.Fatalf("Expected outdated error, got %v", err)
	}
	if !strings.Contains(env.Out.(*bytes.Buffer).String(), "missing "+filepath.Join(dst, "page_tpl.go")) {
		t.Errorf("missing file must be reported: %q", env.Out.(*bytes.Buffer).String())
	}

	env.Check = false
	if err := process(ctx, srcDir, dst, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}

	env.Check = true
	env.Out = new(bytes.Buffer)
	if err := process(ctx, srcDir, dst, env.Log); err != nil {
		t.Fatalf("freshly generated output must be up to date: %v", err)
	}

	writeFile(t, filepath.Join(srcDir, "page.tpl"), []byte("<p>changed</p>\n"))
	if err := process(ctx, srcDir, dst, env.Log); !errors.Is(err, errOutdated) {
		t.Fatalf("Expected outdated error, got %v", err)
	}
	if !strings.Contains(env.Out.(*bytes.Buffer).String(), `+	out.WriteString("<p>changed</p>\n")`) {
		t.Errorf("diff must show new code: %q", env.Out.(*bytes.Buffer).String())
	}
}

func TestProcess_Report(t *testing.T) {
	ctx, env := setupTestEnv(t)

	rc := config.ReporterConfig{Destination: filepath.Join(t.TempDir(), "report.zip")}
	rpt, err := rc.Prepare()
	if err != nil {
		t.Fatalf("unable to prepare report: %v", err)
	}
	env.Rpt = rpt

	srcDir := t.TempDir()
	writeFile(t, filepath.Join(srcDir, "views", "page.tpl"), []byte(pageTemplate))
	if err := process(ctx, srcDir, t.TempDir(), env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	if err := rpt.Close(); err != nil {
		t.Fatalf("unable to close report: %v", err)
	}

	zr, err := zip.OpenReader(rc.Destination)
	if err != nil {
		t.Fatalf("unable to open report: %v", err)
	}
	defer zr.Close()

	names := make(map[string]bool)
	for _, f := range zr.File {
		names[f.Name] = true
	}
	for _, want := range []string{
		"fragments/views/page.tpl.txt",
		"generated/views/page.tpl.go",
		path.Join("sources", filepath.Base(srcDir), "views", "page.tpl"),
	} {
		if !names[want] {
			t.Errorf("report does not contain %s", want)
		}
	}
}
