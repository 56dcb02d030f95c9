package config

import "strings"

const badFileName = "bad_file_name"

// finishFileName makes sure name is usable for generated Go source: go tool
// silently ignores files starting with "." or "_".
func finishFileName(name string) string {
	name = strings.TrimLeft(name, "._")
	if len(name) == 0 {
		return badFileName
	}
	return name
}
