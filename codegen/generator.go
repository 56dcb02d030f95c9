// Package codegen turns fragment sequences into Go source.
package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"tplgen/splitter"
)

// BufferName is name of the output buffer inside generated functions, code
// fragments may write to it directly.
const BufferName = "out"

// Generate returns source of a function named name which rebuilds document
// described by seq. Every element is a single statement (possibly spanning
// several lines) in fragment order, surrounded by signature, buffer
// declaration and return. Code is never inspected.
func Generate(name string, params []string, seq splitter.Sequence) []string {
	lines := make([]string, 0, len(seq)+4)

	lines = append(lines,
		fmt.Sprintf("func %s(%s) (string, error) {", name, strings.Join(params, ", ")),
		fmt.Sprintf("var %s strings.Builder", BufferName),
	)

	for _, f := range seq {
		switch f.Kind {
		case splitter.KindCode:
			lines = append(lines, f.Content)
		case splitter.KindEcho:
			lines = append(lines, echoStatement(f.Content))
		case splitter.KindText:
			lines = append(lines, fmt.Sprintf("%s.WriteString(%s)", BufferName, strconv.Quote(f.Content)))
		default:
			// this should never happen
			panic(fmt.Sprintf("unexpected fragment kind %s", f.Kind))
		}
	}

	lines = append(lines,
		fmt.Sprintf("return %s.String(), nil", BufferName),
		"}",
	)
	return lines
}

// echoStatement evaluates expression and appends its textual form. Error and
// Stringer values are converted directly so that a panic in their methods
// becomes error of the generated function instead of text fmt would put into
// the output, nothing is written after failure. Value is bound in its own
// block: expression may end with a line comment, so nothing can follow it on
// the same line.
func echoStatement(expr string) string {
	var b strings.Builder
	b.WriteString("{\n")
	fmt.Fprintf(&b, "value := %s\n", expr)
	b.WriteString("if err := func() (err error) {\n")
	b.WriteString("defer func() {\n")
	b.WriteString("if r := recover(); r != nil {\n")
	b.WriteString("err = fmt.Errorf(\"echo failed: %v\", r)\n")
	b.WriteString("}\n")
	b.WriteString("}()\n")
	b.WriteString("switch v := any(value).(type) {\n")
	b.WriteString("case error:\n")
	fmt.Fprintf(&b, "%s.WriteString(v.Error())\n", BufferName)
	b.WriteString("case fmt.Stringer:\n")
	fmt.Fprintf(&b, "%s.WriteString(v.String())\n", BufferName)
	b.WriteString("default:\n")
	fmt.Fprintf(&b, "fmt.Fprint(&%s, v)\n", BufferName)
	b.WriteString("}\n")
	b.WriteString("return nil\n")
	b.WriteString("}(); err != nil {\n")
	b.WriteString("return \"\", err\n")
	b.WriteString("}\n")
	b.WriteString("}")
	return b.String()
}
