package config

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"testing"
)

func readReport(t *testing.T, name string) map[string]string {
	t.Helper()

	zr, err := zip.OpenReader(name)
	if err != nil {
		t.Fatalf("unable to open report: %v", err)
	}
	defer zr.Close()

	files := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("unable to open %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("unable to read %s: %v", f.Name, err)
		}
		files[f.Name] = string(data)
	}
	return files
}

func TestReport(t *testing.T) {
	tmpDir := t.TempDir()

	conf := ReporterConfig{Destination: filepath.Join(tmpDir, "report.zip")}
	r, err := conf.Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if r.ID() == "" {
		t.Error("report must have run id")
	}

	src := filepath.Join(tmpDir, "page.tpl")
	if err := os.WriteFile(src, []byte("Hello, <?= name ?>!"), 0644); err != nil {
		t.Fatalf("failed to write template: %v", err)
	}
	log := filepath.Join(tmpDir, "tplgen.log")
	if err := os.WriteFile(log, []byte("log line\n"), 0644); err != nil {
		t.Fatalf("failed to write log: %v", err)
	}

	r.Store("final.log", log)
	if err := r.StoreCopy("source/page.tpl", src); err != nil {
		t.Fatalf("StoreCopy() error = %v", err)
	}
	// copy is taken at the time of call
	if err := os.WriteFile(src, []byte("changed"), 0644); err != nil {
		t.Fatalf("failed to rewrite template: %v", err)
	}
	r.StoreData("fragments/page.tpl.txt", []byte("dump"))
	r.StoreData("fragments/page.tpl.txt", []byte("second dump"))

	temps := append([]string(nil), r.temps...)
	if len(temps) != 1 {
		t.Fatalf("expected single temporary copy, got %v", temps)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	files := readReport(t, conf.Destination)
	if !strings.HasPrefix(files["MANIFEST"], "tplgen ") || !strings.Contains(files["MANIFEST"], r.ID()) {
		t.Errorf("unexpected manifest:\n%s", files["MANIFEST"])
	}
	if files["final.log"] != "log line\n" {
		t.Errorf("final.log = %q", files["final.log"])
	}
	if files["source/page.tpl/page.tpl"] != "Hello, <?= name ?>!" && files["source/page.tpl"] != "Hello, <?= name ?>!" {
		t.Errorf("template copy missing or changed: %v", files)
	}
	if files["fragments/page.tpl.txt"] != "dump" {
		t.Errorf("first dump = %q", files["fragments/page.tpl.txt"])
	}
	versioned := 0
	for name := range files {
		if strings.HasPrefix(name, "fragments/page.tpl.txt-") {
			versioned++
		}
	}
	if versioned != 1 {
		t.Errorf("expected versioned second dump, got %v", files)
	}

	for _, dir := range temps {
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			t.Errorf("temporary copy %s was not removed", dir)
		}
	}
}

func TestReport_StoreConflict(t *testing.T) {
	r := &Report{entries: make(map[string]entry)}
	r.Store("final.log", "/a.log")
	r.Store("final.log", "/a.log")

	defer func() {
		if recover() == nil {
			t.Error("expected panic when overwriting stored path")
		}
	}()
	r.Store("final.log", "/b.log")
}

func TestReportClose_NilReport(t *testing.T) {
	var r *Report
	if err := r.Close(); err != nil {
		t.Errorf("Close() on nil report returned error: %v", err)
	}
	// every method is safe on nil report
	r.Store("a", "b")
	r.StoreData("a", nil)
	if err := r.StoreCopy("a", "b"); err != nil {
		t.Errorf("StoreCopy() on nil report returned error: %v", err)
	}
	if r.Name() != "" || r.ID() != "" {
		t.Error("nil report must have empty name and id")
	}
}

func TestReportClose_NilFile(t *testing.T) {
	r := &Report{entries: make(map[string]entry)}
	if err := r.Close(); err != nil {
		t.Errorf("Close() with nil file returned error: %v", err)
	}
}

func TestLoggingConfig_Prepare(t *testing.T) {
	tmpDir := t.TempDir()
	conf := LoggingConfig{
		ConsoleLogger: LoggerConfig{Level: "none"},
		FileLogger:    LoggerConfig{Level: "debug", Destination: filepath.Join(tmpDir, "tplgen.log"), Mode: "overwrite"},
	}

	log, err := conf.Prepare(nil)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	t.Cleanup(func() { debug.SetCrashOutput(nil, debug.CrashOptions{}) })
	log.Debug("debug message")
	_ = log.Sync()

	data, err := os.ReadFile(conf.FileLogger.Destination)
	if err != nil {
		t.Fatalf("log file was not created: %v", err)
	}
	if !strings.Contains(string(data), "debug message") {
		t.Errorf("log file content = %q", data)
	}
}
