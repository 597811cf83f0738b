// Command difgo is the CLI front end for the duplicate image finder:
// thin cobra subcommands wrapping internal/orchestrator and
// internal/catalog, grounded on ivoronin-dupedog's cmd/dupedog/main.go.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	os.Exit(run())
}

func run() int {
	root := &cobra.Command{
		Use:     "difgo",
		Short:   "Find visually duplicate images across one or two directory trees",
		Version: version + " (" + commit + ")",
	}

	root.AddCommand(newIndexCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newResumeCmd())
	root.AddCommand(newQueryCmd())
	root.AddCommand(newDropDiffCmd())

	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}
