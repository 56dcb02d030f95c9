package generate

import (
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"tplgen/config"
	"tplgen/state"
)

const outputExt = ".go"

// buildOutputPath returns constructed output file path/name based on template
// values and configuration. It takes into account whether to preserve source
// directory structure on the output. Expanded name may contain
// subdirectories, every path segment is cleaned up so result always stays
// under destination.
func buildOutputPath(values Values, dst string, env *state.LocalEnv, log *zap.Logger) string {
	outDir := determineOutputDir(values.Dir, dst, env)

	expandedName, err := expandTemplate(config.OutputNameTemplateFieldName, env.Cfg.Generator.OutputNameTemplate, values)
	if err != nil {
		log.Warn("Unable to prepare output filename, using default", zap.Error(err))
		expandedName = ""
	}
	if expandedName == "" {
		// fallback to default name if template expansion failed
		return filepath.Join(outDir, buildDefaultFileName(values))
	}
	return assemblePathWithSubdirs(outDir, expandedName)
}

func determineOutputDir(dir, dst string, env *state.LocalEnv) string {
	if env.NoDirs || dir == "" {
		return dst
	}
	return filepath.Join(dst, filepath.FromSlash(dir))
}

func buildDefaultFileName(values Values) string {
	return config.CleanFileName(slug.Make(values.Name)+"_tpl") + outputExt
}

func assemblePathWithSubdirs(outDir, expandedName string) string {
	segments := splitPath(expandedName)
	if len(segments) == 0 {
		return outDir
	}

	parts := make([]string, 0, len(segments)+1)
	parts = append(parts, outDir)
	for _, segment := range segments {
		parts = append(parts, config.CleanFileName(segment))
	}

	fileName := parts[len(parts)-1]
	if !strings.EqualFold(filepath.Ext(fileName), outputExt) {
		parts[len(parts)-1] = fileName + outputExt
	}
	return filepath.Join(parts...)
}

// splitPath accepts both slash and OS specific separators.
func splitPath(name string) []string {
	return strings.FieldsFunc(name, func(r rune) bool {
		return r == '/' || r == filepath.Separator
	})
}
