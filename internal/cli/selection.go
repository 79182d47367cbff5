package cli

import (
	"github.com/spf13/cobra"

	"treekeeper/internal/config"
	"treekeeper/internal/scheduler"
	"treekeeper/internal/tree"
)

// selection mirrors the file selection settings of a configured job
type selection struct {
	extensions string
	include    []string
	exclude    []string
	prefix     []string
	contains   string
	pattern    string
	mimeTypes  []string
}

func (s *selection) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&s.extensions, "ext", "", `Extensions to select, e.g. "log;gz" ("*" any, "?none?" no extension)`)
	f.StringSliceVar(&s.include, "include", nil, "Glob patterns relative to the root (repeatable)")
	f.StringSliceVar(&s.exclude, "exclude", nil, "Glob patterns to leave alone (repeatable)")
	f.StringSliceVar(&s.prefix, "prefix", nil, "File name prefixes to select (repeatable)")
	f.StringVar(&s.contains, "contains", "", "Substring the file name must contain")
	f.StringVar(&s.pattern, "pattern", "", "Regular expression the file name must match")
	f.StringSliceVar(&s.mimeTypes, "mime", nil, `Detected content types to select, e.g. "image/*" (repeatable)`)
}

// predicate builds the predicate for a walk rooted at root; nil selects every file
func (s *selection) predicate(root string) (tree.Predicate, error) {
	job := &config.Job{
		Path:       root,
		Include:    s.include,
		Exclude:    s.exclude,
		Extensions: s.extensions,
		Prefix:     s.prefix,
		Contains:   s.contains,
		Pattern:    s.pattern,
		MimeTypes:  s.mimeTypes,
	}
	return scheduler.BuildPredicate(job)
}
