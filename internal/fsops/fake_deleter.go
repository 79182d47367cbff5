package fsops

import "os"

// FakeDeleter implements Deleter for testing
// Records all delete calls. Paths listed in Fail are reported as failed
// without being touched; when Passthrough is set, every other call is
// forwarded to os.Remove so tree-shape assertions still hold.
type FakeDeleter struct {
	Calls       []string
	Fail        map[string]error
	Passthrough bool
}

func (f *FakeDeleter) Remove(path string) error {
	f.Calls = append(f.Calls, "rm:"+path)
	if err, ok := f.Fail[path]; ok {
		return err
	}
	if f.Passthrough {
		return os.Remove(path)
	}
	return nil
}
