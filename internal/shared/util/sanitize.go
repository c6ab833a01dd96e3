package util

import (
	"errors"
	"path"
	"strings"
	"unicode"
)

const maxFileNameRunes = 100

var ErrInvalidFileName = errors.New("invalid file name")

// SanitizeFileName turns an uploaded résumé name into a single safe path
// element. Separators become underscores, control characters are dropped and
// long names are cut while keeping the extension.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", ErrInvalidFileName
	}
	s := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	s = strings.TrimSpace(s)
	if s == "" || s == "." {
		return "", ErrInvalidFileName
	}

	if runes := []rune(s); len(runes) > maxFileNameRunes {
		ext := []rune(path.Ext(s))
		if len(ext) >= maxFileNameRunes {
			ext = nil
		}
		s = string(runes[:maxFileNameRunes-len(ext)]) + string(ext)
	}
	return s, nil
}
