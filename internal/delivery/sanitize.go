package delivery

import (
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultFilename is used when sanitizing leaves nothing.
const DefaultFilename = "download"

const maxFilenameBytes = 200

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// Device names Windows refuses as file names regardless of extension.
var reservedNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// SanitizeFilename makes name safe to create inside a download directory.
// Path separators and reserved characters are replaced or dropped, control
// characters removed, leading dots and trailing dots or spaces trimmed, and
// reserved device names prefixed. The result never names a parent directory
// and is at most 200 bytes, keeping the extension when it has to cut.
func SanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(fileNameReplacer.Replace(name))
	name = strings.TrimLeft(name, ". ")
	name = strings.TrimRight(name, ". ")
	if name == "" {
		return DefaultFilename
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if _, reserved := reservedNames[strings.ToUpper(stem)]; reserved {
		stem = "_" + stem
	}
	if len(ext) > 16 {
		ext = ""
		stem = name
	}
	if budget := maxFilenameBytes - len(ext); len(stem) > budget {
		stem = truncateUTF8(stem, budget)
	}
	return stem + ext
}

// Slug converts a title to a lowercase filesystem-safe token. Letters are
// lowercased, digits and hyphens are kept, runs of anything else become a
// single underscore. Returns DefaultFilename for empty input.
func Slug(value string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.TrimSpace(value) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
			underscore = false
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
			underscore = false
		default:
			if !underscore {
				b.WriteByte('_')
				underscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return DefaultFilename
	}
	return out
}

func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
