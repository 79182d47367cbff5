package tree

// CleanEmptyDir removes every descendant directory of root that is empty once
// its own descendants have been pruned. root itself is never removed.
// Returns the number of directories deleted.
func (e *Engine) CleanEmptyDir(root string) (int, error) {
	if err := checkDir(root); err != nil {
		return 0, err
	}
	if err := e.validate(root); err != nil {
		return 0, err
	}

	e.logger.Info("Pruning empty directories", "root", root, "dry_run", e.dryRun)
	count, _, err := e.prune(root)
	if err != nil {
		return count, err
	}
	e.logger.Info("Prune complete", "root", root, "dirs_deleted", count)
	return count, nil
}

// prune prunes the subdirectories of dir and reports whether dir is left empty
func (e *Engine) prune(dir string) (int, bool, error) {
	l, err := readListing(dir)
	if err != nil {
		return 0, false, err
	}

	count := 0
	remaining := len(l.Files)
	for _, sub := range l.Dirs {
		e.pace()
		n, empty, err := e.prune(sub.Path)
		count += n
		if err != nil {
			return count, false, err
		}

		if !e.dryRun {
			empty, err = isEmptyDir(sub.Path)
			if err != nil {
				return count, false, err
			}
		}
		if empty && e.removeEntry(OpCleanEmpty, sub, reasonEmptyDir, e.dryRun) {
			count++
			continue
		}
		remaining++
	}
	return count, remaining == 0, nil
}
