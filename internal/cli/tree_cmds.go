package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"treekeeper/internal/tree"
)

func newCopyCommand(opts *options) *cobra.Command {
	var (
		recursive  bool
		bufferSize int
		sel        selection
	)

	cmd := &cobra.Command{
		Use:   "copy <src> <dst>",
		Short: "Copy a file or a directory tree",
		Long: `Copy a single file to dst, or replicate the directory src into dst.
Only files accepted by the selection flags are copied. Without --recursive
subdirectories of src are skipped.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, dst := args[0], args[1]
			s, err := opts.newSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			info, err := tree.Stat(src)
			if err != nil {
				return err
			}
			if !info.IsDir() {
				if err := tree.CreateDir(dst); err != nil {
					return err
				}
				return s.engine.CopyFile(src, dst, bufferSize)
			}

			pred, err := sel.predicate(src)
			if err != nil {
				return err
			}
			return s.engine.CopyTree(src, dst, recursive, pred, bufferSize)
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", true, "Descend into subdirectories")
	cmd.Flags().IntVar(&bufferSize, "buffer", tree.DefaultBufferSize, "Transfer buffer size in bytes")
	sel.register(cmd)
	return cmd
}

func newMoveCommand(opts *options) *cobra.Command {
	var (
		bufferSize int
		stamp      bool
		layout     string
	)

	cmd := &cobra.Command{
		Use:   "move <src> <dst>",
		Short: "Move a file or a directory tree",
		Long: `Copy src to dst and then delete src. With --stamp a file is stored in
the directory of dst under "<timestamp>_<name of dst>".`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, dst := args[0], args[1]
			s, err := opts.newSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			info, err := tree.Stat(src)
			if err != nil {
				return err
			}
			if info.IsDir() {
				return s.engine.MoveTree(src, dst, bufferSize)
			}

			if !s.engine.DryRun() {
				if err := tree.CreateDir(dst); err != nil {
					return err
				}
			}
			var deleted bool
			if stamp {
				deleted, err = s.engine.MoveFileStamped(src, dst, layout)
			} else {
				deleted, err = s.engine.MoveFile(src, dst, bufferSize)
			}
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("%w: %s copied but not removed", tree.ErrDeleteFailed, src)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&bufferSize, "buffer", tree.DefaultBufferSize, "Transfer buffer size in bytes")
	cmd.Flags().BoolVar(&stamp, "stamp", false, "Prefix the destination name with the current time")
	cmd.Flags().StringVar(&layout, "layout", tree.DefaultTimestampLayout, "Go time layout used by --stamp")
	return cmd
}

func newCleanCommand(opts *options) *cobra.Command {
	var (
		recursive  bool
		minutes    int
		safeLevels int
		sel        selection
	)

	cmd := &cobra.Command{
		Use:   "clean <dir>",
		Short: "Delete expired files",
		Long: `Delete files last modified more than --minutes ago and accepted by the
selection flags. Directories emptied by the walk are removed once they
are at least --safe-levels below dir.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			pred, err := sel.predicate(dir)
			if err != nil {
				return err
			}
			return runCleaner(cmd, opts, func(e *tree.Engine) (int, error) {
				return e.CleanExpired(dir, pred, recursive, minutes, safeLevels)
			})
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", true, "Descend into subdirectories")
	cmd.Flags().IntVarP(&minutes, "minutes", "m", 0, "Minimum age in minutes")
	cmd.Flags().IntVar(&safeLevels, "safe-levels", 1, "Directory levels kept below dir (1 keeps dir itself)")
	sel.register(cmd)
	return cmd
}

func newCleanDirCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "clean-dir <dir>",
		Short: "Delete everything inside a directory, keeping the directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleaner(cmd, opts, func(e *tree.Engine) (int, error) {
				return e.CleanDir(args[0])
			})
		},
	}
}

func newEraseCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "erase <dir>",
		Short: "Delete a directory and everything inside it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleaner(cmd, opts, func(e *tree.Engine) (int, error) {
				return e.EraseDir(args[0])
			})
		},
	}
}

func newCleanSelectedCommand(opts *options) *cobra.Command {
	var (
		recursive bool
		sel       selection
	)

	cmd := &cobra.Command{
		Use:   "clean-selected <dir>",
		Short: "Delete the files accepted by the selection flags",
		Long: `Delete every file accepted by the selection flags regardless of age.
No directory is ever removed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			pred, err := sel.predicate(dir)
			if err != nil {
				return err
			}
			return runCleaner(cmd, opts, func(e *tree.Engine) (int, error) {
				return e.CleanSelectedFiles(dir, pred, recursive)
			})
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", true, "Descend into subdirectories")
	sel.register(cmd)
	return cmd
}

func newPruneCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "prune <dir>",
		Short: "Remove empty directories below dir",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.newSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			n, err := s.engine.CleanEmptyDir(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d directories removed\n", n)
			return nil
		},
	}
}

func runCleaner(cmd *cobra.Command, opts *options, fn func(e *tree.Engine) (int, error)) error {
	s, err := opts.newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	n, err := fn(s.engine)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d files deleted\n", n)
	return nil
}
