package generate

import (
	"bytes"
	"fmt"
	"go/token"
	"path"
	"path/filepath"
	"strings"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"
	"github.com/gosimple/slug"

	"tplgen/config"
)

// Values is a struct that holds variables we make available for template expansion
type Values struct {
	Context string
	// Name is template file name without extension.
	Name string
	Ext  string
	// Dir is slash separated directory relative to processed source, empty
	// at the top level.
	Dir string
	// Source is slash separated template path relative to processed source.
	Source string
}

func newValues(src string) Values {
	src = filepath.ToSlash(src)
	base := path.Base(src)
	ext := path.Ext(base)
	dir := path.Dir(src)
	if dir == "." {
		dir = ""
	}
	return Values{
		Name:   strings.TrimSuffix(base, ext),
		Ext:    ext,
		Dir:    dir,
		Source: src,
	}
}

// ident converts arbitrary text into exported Go identifier, transliterating
// it when necessary: "user list" becomes "UserList".
func ident(s string) string {
	parts := strings.FieldsFunc(slug.Make(s), func(r rune) bool {
		return r == '-' || r == '_'
	})
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	res := b.String()
	switch {
	case res == "":
		return "Template"
	case res[0] >= '0' && res[0] <= '9':
		return "T" + res
	}
	return res
}

// packageName derives package clause from the name of output directory.
func packageName(dir string) string {
	name := strings.NewReplacer("-", "", "_", "").Replace(slug.Make(filepath.Base(dir)))
	if !token.IsIdentifier(name) {
		return "templates"
	}
	return name
}

func funcMap() template.FuncMap {
	funcs := sprig.FuncMap()
	funcs["ident"] = ident
	funcs["slug"] = slug.Make
	return funcs
}

func expandTemplate(name config.TemplateFieldName, field string, values Values) (string, error) {
	tmpl, err := template.New(string(name)).Funcs(funcMap()).Option("missingkey=error").Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", name, err)
	}

	values.Context = string(name)

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, values); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
