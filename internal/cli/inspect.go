package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"treekeeper/internal/order"
	"treekeeper/internal/tree"
)

func newSizeCommand() *cobra.Command {
	var (
		recursive bool
		raw       bool
	)

	cmd := &cobra.Command{
		Use:   "size <dir>",
		Short: "Report the total size of the files in a directory",
		Long: `Sum the sizes of the files in dir. Symbolic links are counted as the
link itself and never followed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := tree.DirectorySize(args[0], recursive)
			if err != nil {
				return err
			}
			if raw {
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", formatBytes(n), args[0])
			return nil
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", true, "Include subdirectories")
	cmd.Flags().BoolVar(&raw, "bytes", false, "Print the size as a plain byte count")
	return cmd
}

func newListCommand() *cobra.Command {
	var (
		sortBy    string
		shift     int
		length    int
		layout    string
		reverse   bool
		filesOnly bool
		sel       selection
	)

	cmd := &cobra.Command{
		Use:   "list <dir>",
		Short: "List the entries of a directory in a chosen order",
		Long: `List the immediate entries of dir. --sort selects the order:
  name       listing order (default)
  mtime      newest first
  sequence   by the number of --length digits at --shift in the name
  timestamp  oldest first by the --layout time at --shift in the name

A negative --shift counts from the end of the name without its extension.
Entries whose name carries no usable key are listed last.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			entries, err := tree.List(dir)
			if err != nil {
				return err
			}

			pred, err := sel.predicate(dir)
			if err != nil {
				return err
			}
			kept := entries[:0]
			for _, e := range entries {
				if e.IsDir() {
					if filesOnly {
						continue
					}
				} else if pred != nil && !pred.Accept(e) {
					continue
				}
				kept = append(kept, e)
			}

			o, err := ordering(sortBy, shift, length, layout, reverse)
			if err != nil {
				return err
			}
			if o != nil {
				order.Sort(kept, o)
			} else if reverse {
				for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
					kept[i], kept[j] = kept[j], kept[i]
				}
			}

			printEntries(cmd, kept)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&sortBy, "sort", "name", "Order: name, mtime, sequence or timestamp")
	f.IntVar(&shift, "shift", 0, "Offset of the key in the file name")
	f.IntVar(&length, "length", 1, "Digits in the sequence number")
	f.StringVar(&layout, "layout", "20060102", "Go time layout of the embedded timestamp")
	f.BoolVar(&reverse, "reverse", false, "Reverse the order")
	f.BoolVar(&filesOnly, "files", false, "Omit directories")
	sel.register(cmd)
	return cmd
}

// ordering returns nil for the plain listing order
func ordering(sortBy string, shift, length int, layout string, reverse bool) (order.Ordering, error) {
	switch strings.ToLower(sortBy) {
	case "", "name":
		return nil, nil
	case "mtime":
		if reverse {
			newest := order.ByModTime()
			return order.OrderingFunc(func(a, b tree.Entry) int { return -newest.Compare(a, b) }), nil
		}
		return order.ByModTime(), nil
	case "sequence":
		return order.BySequence(shift, length, reverse), nil
	case "timestamp":
		return order.ByTimestamp(layout, shift, reverse), nil
	default:
		return nil, fmt.Errorf("unknown sort order %q", sortBy)
	}
}

func printEntries(cmd *cobra.Command, entries []tree.Entry) {
	dirName := color.New(color.FgBlue, color.Bold).SprintFunc()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	for _, e := range entries {
		size, name := "-", e.Name
		if e.IsDir() {
			name = dirName(name + "/")
		} else {
			size = formatBytes(e.Size)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Kind, size, e.ModTime.Format("2006-01-02 15:04:05"), name)
	}
	_ = w.Flush()
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
