// Package pathutil validates and normalizes the resource paths locks are
// named after.
package pathutil

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/jvs-project/dotlock/pkg/errclass"
)

// NormalizeResourcePath returns the absolute, cleaned, NFC-normalized form
// of a resource path. Hosts that spell the same name with different Unicode
// normalization must derive the same lock file name.
func NormalizeResourcePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errclass.ErrPathInvalid.WithMessage("resource path must not be empty")
	}

	for _, r := range path {
		if unicode.IsControl(r) {
			return "", errclass.ErrPathInvalid.WithMessagef("resource path must not contain control characters: %q", path)
		}
	}

	if strings.HasSuffix(path, "/") || strings.HasSuffix(path, string(filepath.Separator)) {
		return "", errclass.ErrPathInvalid.WithMessagef("resource path must name a file, not a directory: %s", path)
	}

	path = norm.NFC.String(path)

	// Checked before Abs, which would turn "." into the working directory.
	switch filepath.Base(filepath.Clean(path)) {
	case ".", "..", string(filepath.Separator):
		return "", errclass.ErrPathInvalid.WithMessagef("resource path must name a file: %s", path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errclass.ErrPathInvalid.WithMessagef("cannot resolve %s: %v", path, err)
	}
	return abs, nil
}

// IsTempName reports whether name is a dot-lock temporary file name, i.e.
// "<resource>.locktmp-<host>-<pid>-<task>".
func IsTempName(name string) bool {
	return strings.Contains(filepath.Base(name), ".locktmp-")
}
