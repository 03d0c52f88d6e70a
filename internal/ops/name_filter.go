package ops

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// NameFilter decides which file names take part in mirroring. Names matching
// one of the exclude patterns are dropped. Then, if include extensions are
// set, names without one of them are dropped, and names with one of the
// exclude extensions are dropped.
// Extension matching is case-insensitive and extensions start with a '.'.
//
// A nil *NameFilter keeps every name.
type NameFilter struct {
	patterns   []string
	includeExt []string
	excludeExt []string
}

func NewNameFilter(patterns, includeExtensions, excludeExtensions []string) (*NameFilter, error) {
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, &ErrBadPattern{pattern: pattern}
		}
	}

	filter := NameFilter{
		patterns:   patterns,
		includeExt: normaliseExtensions(includeExtensions),
		excludeExt: normaliseExtensions(excludeExtensions),
	}
	return &filter, nil
}

func normaliseExtensions(extensions []string) []string {
	var ext []string
	for _, extension := range extensions {
		if len(extension) == 0 {
			continue
		}
		if !strings.HasPrefix(extension, ".") {
			extension = "." + extension
		}
		ext = append(ext, strings.ToLower(extension))
	}
	return ext
}

// Keep reports whether the file name should be mirrored.
func (filter *NameFilter) Keep(name string) bool {
	if filter == nil {
		return true
	}

	for _, pattern := range filter.patterns {
		// patterns are validated up front so the error can be ignored
		if match, _ := doublestar.Match(pattern, name); match {
			return false
		}
	}

	lname := strings.ToLower(name)
	if len(filter.includeExt) > 0 && !hasExtension(lname, filter.includeExt) {
		return false
	}
	if hasExtension(lname, filter.excludeExt) {
		return false
	}

	return true
}

func hasExtension(name string, extensions []string) bool {
	for _, ext := range extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
