package tree

import "path/filepath"

// DirectorySize sums the sizes of the files directly inside dir, plus the
// size of every subdirectory when recursive is set.
func DirectorySize(dir string, recursive bool) (int64, error) {
	l, err := readListing(dir)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, f := range l.Files {
		total += f.Size
	}
	if !recursive {
		return total, nil
	}
	for _, sub := range l.Dirs {
		n, err := DirectorySize(sub.Path, true)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// CreateDir creates every missing directory on the parent path of file.
// It is a no-op when the parent already exists.
func CreateDir(file string) error {
	return ensureDir(filepath.Dir(file))
}
