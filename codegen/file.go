package codegen

import (
	"errors"
	"fmt"
	"go/token"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"tplgen/splitter"
)

// Func describes single generated function.
type Func struct {
	Name   string
	Params []string
	Seq    splitter.Sequence
}

// FileSpec describes complete generated compilation unit.
type FileSpec struct {
	// Source is mentioned in the "Code generated" header, usually template name.
	Source  string
	Package string
	// Imports are added to the ones generated code always needs. Entry is
	// either import path or "name path", path may be quoted.
	Imports []string
	// Header is optional free text put into comment after generated header.
	Header string
	Funcs  []Func
}

var errNoFuncs = errors.New("nothing to generate")

// GenerateFile returns Go source for the whole file. Output depends only on
// spec, so the same templates always produce the same bytes.
func GenerateFile(spec FileSpec) ([]byte, error) {
	if !token.IsIdentifier(spec.Package) {
		return nil, fmt.Errorf("invalid package name %q", spec.Package)
	}
	if len(spec.Funcs) == 0 {
		return nil, errNoFuncs
	}

	names := make(map[string]struct{}, len(spec.Funcs))
	echo := false
	for _, f := range spec.Funcs {
		if !token.IsIdentifier(f.Name) {
			return nil, fmt.Errorf("invalid function name %q", f.Name)
		}
		if _, exists := names[f.Name]; exists {
			return nil, fmt.Errorf("function %q generated more than once", f.Name)
		}
		names[f.Name] = struct{}{}
		echo = echo || f.Seq.HasEcho()
	}

	required := []string{"strings"}
	if echo {
		required = append(required, "fmt")
	}
	imports, err := importBlock(required, spec.Imports)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "// Code generated by tplgen from %s. DO NOT EDIT.\n\n", commentSafe(spec.Source))
	if h := strings.TrimSpace(spec.Header); h != "" {
		for l := range strings.SplitSeq(h, "\n") {
			fmt.Fprintf(&b, "// %s\n", strings.TrimRight(l, " \t\r"))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "package %s\n\n", spec.Package)
	b.WriteString(imports)

	for _, f := range spec.Funcs {
		b.WriteString("\n")
		b.WriteString(strings.Join(Generate(f.Name, f.Params, f.Seq), "\n"))
		b.WriteString("\n")
	}
	return []byte(b.String()), nil
}

// commentSafe quotes text having control characters, a newline would end
// comment.
func commentSafe(s string) string {
	if strings.ContainsFunc(s, unicode.IsControl) {
		return strconv.Quote(s)
	}
	return s
}

type importSpec struct {
	name, path string
}

func (s importSpec) String() string {
	if s.name == "" {
		return strconv.Quote(s.path)
	}
	return s.name + " " + strconv.Quote(s.path)
}

func parseImport(entry string) (importSpec, error) {
	fields := strings.Fields(entry)
	var spec importSpec
	switch len(fields) {
	case 1:
		spec.path = fields[0]
	case 2:
		spec.name, spec.path = fields[0], fields[1]
		if spec.name != "_" && spec.name != "." && !token.IsIdentifier(spec.name) {
			return spec, fmt.Errorf("invalid import name in %q", entry)
		}
	default:
		return spec, fmt.Errorf("invalid import %q", entry)
	}
	if p, err := strconv.Unquote(spec.path); err == nil {
		spec.path = p
	}
	if spec.path == "" {
		return spec, fmt.Errorf("empty import path in %q", entry)
	}
	return spec, nil
}

// importBlock sorts and de-duplicates imports.
func importBlock(required, extra []string) (string, error) {
	specs := make([]importSpec, 0, len(required)+len(extra))
	for _, entry := range slices.Concat(required, extra) {
		spec, err := parseImport(entry)
		if err != nil {
			return "", err
		}
		specs = append(specs, spec)
	}
	slices.SortFunc(specs, func(a, b importSpec) int {
		if c := strings.Compare(a.path, b.path); c != 0 {
			return c
		}
		return strings.Compare(a.name, b.name)
	})
	specs = slices.Compact(specs)

	var b strings.Builder
	b.WriteString("import (\n")
	for _, s := range specs {
		fmt.Fprintf(&b, "\t%s\n", s)
	}
	b.WriteString(")\n")
	return b.String(), nil
}
