// Package filter provides file predicates for tree walks.
// Every predicate sees only file entries; the engine never offers it a directory.
package filter

import (
	"fmt"
	"mime"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"

	"treekeeper/internal/tree"
)

// Extension tokens with special meaning
const (
	AllExtensions = "*"
	NoExtension   = "?none?"
)

const extensionSeparators = ";, \t"

// Extension accepts files whose extension (text after the last dot, without
// the dot) is in the list. "*" accepts every file and "?none?" accepts names
// without any dot.
func Extension(list string) tree.Predicate {
	exts := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(strings.TrimSpace(list), func(r rune) bool {
		return strings.ContainsRune(extensionSeparators, r)
	}) {
		exts[strings.TrimPrefix(tok, ".")] = true
	}

	return tree.PredicateFunc(func(e tree.Entry) bool {
		if exts[AllExtensions] {
			return true
		}
		i := strings.LastIndexByte(e.Name, '.')
		if i < 0 {
			return exts[NoExtension]
		}
		return exts[e.Name[i+1:]]
	})
}

// Prefix accepts files whose name starts with any of the prefixes
func Prefix(prefixes ...string) tree.Predicate {
	return tree.PredicateFunc(func(e tree.Entry) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(e.Name, p) {
				return true
			}
		}
		return false
	})
}

// Contains accepts files whose name contains s
func Contains(s string) tree.Predicate {
	return tree.PredicateFunc(func(e tree.Entry) bool {
		return strings.Contains(e.Name, s)
	})
}

// MimeType accepts files whose detected content type is one of types.
// A type may be a wildcard such as "image/*". Detection reads the head of
// the file, so an unreadable file is rejected.
func MimeType(types ...string) tree.Predicate {
	wanted := make([]string, 0, len(types))
	for _, t := range types {
		if base, _, err := mime.ParseMediaType(t); err == nil {
			wanted = append(wanted, base)
		} else {
			wanted = append(wanted, strings.ToLower(strings.TrimSpace(t)))
		}
	}

	return tree.PredicateFunc(func(e tree.Entry) bool {
		mt, err := mimetype.DetectFile(e.Path)
		if err != nil {
			return false
		}
		detected, _, err := mime.ParseMediaType(mt.String())
		if err != nil {
			detected = mt.String()
		}
		for _, w := range wanted {
			if major, ok := strings.CutSuffix(w, "/*"); ok {
				if strings.HasPrefix(detected, major+"/") {
					return true
				}
				continue
			}
			if detected == w || mt.Is(w) {
				return true
			}
		}
		return false
	})
}

// Pattern accepts files whose name contains a match of the regular expression
func Pattern(expr string) (tree.Predicate, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", expr, err)
	}
	return tree.PredicateFunc(func(e tree.Entry) bool {
		return re.MatchString(e.Name)
	}), nil
}

// Glob accepts files matching a doublestar pattern. Patterns containing a
// path separator are matched against the slash-separated path relative to
// root; others against the file name alone.
func Glob(root, pattern string) (tree.Predicate, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid glob %q: %w", pattern, doublestar.ErrBadPattern)
	}
	byPath := strings.Contains(pattern, "/")

	return tree.PredicateFunc(func(e tree.Entry) bool {
		subject := e.Name
		if byPath {
			rel, err := filepath.Rel(root, e.Path)
			if err != nil {
				return false
			}
			subject = filepath.ToSlash(rel)
		}
		ok, _ := doublestar.Match(pattern, subject)
		return ok
	}), nil
}

// TimestampMatch accepts files whose base name (extension stripped) holds match
// at shift: a non-negative shift is an offset from the start, a negative one
// places the last character |shift|-1 positions before the end.
func TimestampMatch(match string, shift int) tree.Predicate {
	return tree.PredicateFunc(func(e tree.Entry) bool {
		field, ok := NameField(e.Name, shift, len(match))
		return ok && field == match
	})
}

// Any accepts a file when at least one predicate does
func Any(preds ...tree.Predicate) tree.Predicate {
	return tree.PredicateFunc(func(e tree.Entry) bool {
		for _, p := range preds {
			if p.Accept(e) {
				return true
			}
		}
		return false
	})
}

// All accepts a file when every predicate does; with none it accepts everything
func All(preds ...tree.Predicate) tree.Predicate {
	return tree.PredicateFunc(func(e tree.Entry) bool {
		for _, p := range preds {
			if !p.Accept(e) {
				return false
			}
		}
		return true
	})
}

// Not inverts p
func Not(p tree.Predicate) tree.Predicate {
	return tree.PredicateFunc(func(e tree.Entry) bool {
		return !p.Accept(e)
	})
}

// NameField extracts length bytes from name with its extension removed.
// shift >= 0 counts from the start; shift < 0 anchors the field's last byte
// at position len+shift. ok is false when the field falls outside the name.
func NameField(name string, shift, length int) (field string, ok bool) {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	var first int
	if shift >= 0 {
		first = shift
	} else {
		first = len(name) + shift + 1 - length
	}
	last := first + length
	if length < 0 || first < 0 || last > len(name) {
		return "", false
	}
	return name[first:last], true
}
