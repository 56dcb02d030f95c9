package codegen

import (
	"fmt"
	"go/format"

	"golang.org/x/tools/imports"

	"tplgen/common"
)

// Format pretty prints generated source. It is purely cosmetic: failure
// means generated code is not valid Go and callers decide what to do with it.
func Format(filename string, src []byte, mode common.FormatMode) ([]byte, error) {
	switch mode {
	case common.FormatModeNone:
		return src, nil
	case common.FormatModeGofmt:
		out, err := format.Source(src)
		if err != nil {
			return nil, fmt.Errorf("unable to format %s: %w", filename, err)
		}
		return out, nil
	case common.FormatModeGoimports:
		out, err := imports.Process(filename, src, &imports.Options{
			Comments:  true,
			TabIndent: true,
			TabWidth:  8,
		})
		if err != nil {
			return nil, fmt.Errorf("unable to format %s: %w", filename, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported format mode %s", mode)
	}
}
