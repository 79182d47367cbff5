package fsops

import "os"

// OSDeleter implements Deleter using real os package calls.
// Remove never recurses: a non-empty directory is reported as an error.
type OSDeleter struct{}

func (OSDeleter) Remove(path string) error {
	return os.Remove(path)
}
