package util

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	controlChars  = regexp.MustCompile(`[\x00-\x1F\x7F]+`)
	unsafeNameRun = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// SanitizeForLog removes control characters and newlines from user content before logging.
func SanitizeForLog(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return controlChars.ReplaceAllString(s, " ")
}

// SanitizeFileName reduces an uploaded file name to a single safe path
// component. Directory parts are dropped and runs of anything outside
// [A-Za-z0-9._-] become one underscore. The result is capped at 100 bytes
// and never empty.
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = unsafeNameRun.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if len(name) > 100 {
		ext := filepath.Ext(name)
		if len(ext) > 10 {
			ext = ""
		}
		name = name[:100-len(ext)] + ext
	}
	if name == "" {
		return "file"
	}
	return name
}
