package safety

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrInvalidPath    = errors.New("invalid path")
	ErrProtectedPath  = errors.New("protected path")
	ErrOutsideAllowed = errors.New("outside allowed roots")
	ErrTraversal      = errors.New("path traversal detected")
	ErrSymlinkEscape  = errors.New("symlink escape detected")
)

// Validator authorises the root of every destructive tree operation.
// A root is refused when it is, or contains, a protected path, or when
// allowed roots are configured and it does not resolve inside one of them.
type Validator struct {
	AllowedRoots   []string
	ProtectedPaths []string
}

// NewValidator creates a validator with allowed roots and optional additional protected paths.
// An empty allowed list permits any root that is not protected.
func NewValidator(allowed []string, extraProtected []string) *Validator {
	return &Validator{
		AllowedRoots:   normalizeRoots(allowed),
		ProtectedPaths: defaultProtected(normalizeRoots(extraProtected)),
	}
}

// ValidateDeleteTarget checks a path that a walk is about to delete from.
// Every returned error wraps one of the package sentinels.
func (v *Validator) ValidateDeleteTarget(path string) error {
	if DetectTraversal(path) {
		return fmt.Errorf("%w: %s", ErrTraversal, path)
	}

	p, err := NormalizePath(path)
	if err != nil {
		return err
	}

	if IsProtectedPath(p, v.ProtectedPaths) {
		return fmt.Errorf("%w: %s", ErrProtectedPath, p)
	}
	if prot, ok := ContainsProtectedPath(p, v.ProtectedPaths); ok {
		return fmt.Errorf("%w: %s contains %s", ErrProtectedPath, p, prot)
	}

	if len(v.AllowedRoots) == 0 {
		return nil
	}
	if !IsWithinAllowedRoots(p, v.AllowedRoots) {
		return fmt.Errorf("%w: %s", ErrOutsideAllowed, p)
	}

	escaped, err := DetectSymlinkEscape(p, v.AllowedRoots)
	if err != nil {
		// Missing targets are reported by the walk itself.
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: resolve %s: %w", ErrInvalidPath, p, err)
	}
	if escaped {
		return fmt.Errorf("%w: %s", ErrSymlinkEscape, p)
	}
	return nil
}

// NormalizePath converts path to absolute, cleaned form
func NormalizePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrInvalidPath
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}
	return filepath.Clean(abs), nil
}

// DetectTraversal blocks any ".." segment in raw input
func DetectTraversal(raw string) bool {
	for _, p := range strings.Split(filepath.ToSlash(raw), "/") {
		if p == ".." {
			return true
		}
	}
	return false
}

// IsWithinAllowedRoots checks if path is within any allowed root
func IsWithinAllowedRoots(path string, allowedRoots []string) bool {
	p := filepath.Clean(path)
	for _, r := range allowedRoots {
		if hasPathPrefix(p, r) {
			return true
		}
	}
	return false
}

// DetectSymlinkEscape resolves symlinks and checks if resolved path escapes allowed roots
func DetectSymlinkEscape(cleanAbs string, allowedRoots []string) (bool, error) {
	resolved, err := filepath.EvalSymlinks(cleanAbs)
	if err != nil {
		return false, err
	}
	resolvedAbs, err := filepath.Abs(resolved)
	if err != nil {
		return false, err
	}
	// Allowed roots may themselves sit behind a symlink (e.g. /tmp on macOS).
	roots := make([]string, 0, len(allowedRoots)*2)
	for _, r := range allowedRoots {
		roots = append(roots, r)
		if rr, err := filepath.EvalSymlinks(r); err == nil {
			roots = append(roots, filepath.Clean(rr))
		}
	}
	return !IsWithinAllowedRoots(filepath.Clean(resolvedAbs), roots), nil
}

// IsProtectedPath checks if path is a protected path or lies beneath one
func IsProtectedPath(path string, protected []string) bool {
	p := filepath.Clean(path)
	if p == string(os.PathSeparator) {
		return true
	}
	for _, prot := range protected {
		if hasPathPrefix(p, prot) {
			return true
		}
	}
	return false
}

// ContainsProtectedPath reports the first protected path located strictly beneath path.
// Walking such a root would reach the protected subtree.
func ContainsProtectedPath(path string, protected []string) (string, bool) {
	p := filepath.Clean(path)
	for _, prot := range protected {
		prot = filepath.Clean(prot)
		if prot != p && hasPathPrefix(prot, p) {
			return prot, true
		}
	}
	return "", false
}

// hasPathPrefix checks if path equals prefix or lies beneath it
func hasPathPrefix(path, prefix string) bool {
	path = filepath.Clean(path)
	prefix = filepath.Clean(prefix)

	if prefix == string(os.PathSeparator) {
		return path == prefix
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+string(os.PathSeparator))
}

// normalizeRoots converts slice of roots to absolute, cleaned paths
func normalizeRoots(roots []string) []string {
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		if strings.TrimSpace(r) == "" {
			continue
		}
		abs, err := filepath.Abs(r)
		if err != nil {
			continue
		}
		out = append(out, filepath.Clean(abs))
	}
	return out
}

// defaultProtected returns the base set of protected paths plus any extras
func defaultProtected(extra []string) []string {
	base := []string{
		"/",
		"/etc",
		"/bin",
		"/usr",
		"/boot",
		"/lib",
		"/lib64",
		"/sbin",
		"/proc",
		"/sys",
		"/dev",
		"/var/lib/treekeeper",
		"/etc/treekeeper",
	}
	return append(base, extra...)
}
