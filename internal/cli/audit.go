package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/jvs-project/dotlock/internal/audit"
	"github.com/jvs-project/dotlock/pkg/color"
	"github.com/jvs-project/dotlock/pkg/model"
)

var auditCmd = &cobra.Command{
	Use:   "audit [journal]",
	Short: "Verify the lock event journal",
	Long: `Verify the lock event journal.

Checks the hash chain of the journal written by run when audit.path is
configured (or the file given as argument) and summarizes its events.
Exits with status 1 if a record was altered, removed or reordered.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := env.cfg.Audit.Path
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return fmt.Errorf("no journal: pass a file or set audit.path")
		}

		sum, verr := audit.Verify(path)
		if sum == nil {
			return verr
		}
		if jsonOutput {
			if err := outputJSON(sum); err != nil {
				return err
			}
		} else {
			printAudit(sum)
		}
		if verr != nil {
			return &exitError{code: 1, err: verr}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
}

func printAudit(sum *audit.Summary) {
	fmt.Printf("Journal: %s\n", sum.Path)
	fmt.Printf("Records: %d\n", sum.Records)
	events := make([]model.Event, 0, len(sum.Events))
	for ev := range sum.Events {
		events = append(events, ev)
	}
	slices.Sort(events)
	for _, ev := range events {
		fmt.Printf("  %-12s %d\n", ev, sum.Events[ev])
	}
	if sum.Last != "" {
		fmt.Printf("Head:    %s\n", color.Dim(string(sum.Last)[:12]))
	}
}
