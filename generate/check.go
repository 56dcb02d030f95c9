package generate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

var errOutdated = errors.New("generated file is missing or outdated")

// checkOutput compares generated source with existing file and reports
// differences to w without writing anything.
func checkOutput(w io.Writer, outputName string, generated []byte) error {
	existing, err := os.ReadFile(outputName)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		fmt.Fprintf(w, "missing %s\n", outputName)
		return fmt.Errorf("%w: %s", errOutdated, outputName)
	}
	if bytes.Equal(existing, generated) {
		return nil
	}

	fmt.Fprintf(w, "--- %s\n+++ %s (generated)\n", outputName, outputName)
	writeLineDiff(w, string(existing), string(generated))
	return fmt.Errorf("%w: %s", errOutdated, outputName)
}

// writeLineDiff prints changed lines only, prefixed with "-" and "+".
func writeLineDiff(w io.Writer, oldText, newText string) {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		default:
			continue
		}
		for line := range strings.Lines(d.Text) {
			fmt.Fprintf(w, "%s%s", prefix, line)
			if !strings.HasSuffix(line, "\n") {
				fmt.Fprintln(w)
			}
		}
	}
}
