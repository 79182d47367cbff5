package scheduler

import (
	"treekeeper/internal/config"
	"treekeeper/internal/filter"
	"treekeeper/internal/tree"
)

// BuildPredicate turns a job's selection settings into a single predicate.
// It returns nil when the job selects every file.
func BuildPredicate(job *config.Job) (tree.Predicate, error) {
	if !job.HasSelection() {
		return nil, nil
	}

	var preds []tree.Predicate

	if len(job.Include) > 0 {
		include, err := globs(job.Path, job.Include)
		if err != nil {
			return nil, err
		}
		preds = append(preds, filter.Any(include...))
	}
	if len(job.Exclude) > 0 {
		exclude, err := globs(job.Path, job.Exclude)
		if err != nil {
			return nil, err
		}
		preds = append(preds, filter.Not(filter.Any(exclude...)))
	}
	if job.Extensions != "" {
		preds = append(preds, filter.Extension(job.Extensions))
	}
	if len(job.Prefix) > 0 {
		preds = append(preds, filter.Prefix(job.Prefix...))
	}
	if job.Contains != "" {
		preds = append(preds, filter.Contains(job.Contains))
	}
	if job.Pattern != "" {
		p, err := filter.Pattern(job.Pattern)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}

	if len(job.MimeTypes) > 0 {
		preds = append(preds, filter.MimeType(job.MimeTypes...))
	}

	return filter.All(preds...), nil
}

func globs(root string, patterns []string) ([]tree.Predicate, error) {
	out := make([]tree.Predicate, 0, len(patterns))
	for _, g := range patterns {
		p, err := filter.Glob(root, g)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
