package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jvs-project/dotlock/pkg/color"
	"github.com/jvs-project/dotlock/pkg/dotlock"
)

var statusCmd = &cobra.Command{
	Use:   "status <path>",
	Short: "Show the state of the lock on path",
	Long: `Show the state of the lock on path without acquiring it.

States:
  free    no lock file exists
  locked  the lock is held and recently refreshed
  stale   the lock has not been refreshed within the valid lock age and
          the next waiter will hijack it`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := dotlock.New(args[0], lockOptions()...)
		if err != nil {
			return err
		}
		st := l.Status()

		if jsonOutput {
			return outputJSON(st)
		}
		printStatus(st)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func printStatus(st dotlock.Status) {
	fmt.Printf("Path:      %s\n", st.Path)
	fmt.Printf("Lock file: %s\n", st.LockPath)
	fmt.Printf("State:     %s\n", color.State(string(st.State)))
	if st.Record == "" {
		return
	}
	if st.Holder != nil {
		fmt.Printf("Holder:    %s (pid %d, task %s)\n", st.Holder.Host, st.Holder.PID, st.Holder.Task)
		fmt.Printf("Created:   %s\n", st.Holder.CreatedAt.Format(time.RFC3339))
	} else {
		fmt.Printf("Record:    %s\n", color.Dim(st.Record))
	}
	fmt.Printf("Age:       %s (stale after %s)\n", st.Age.Round(time.Second), st.StaleAfter)
	if st.Skew != 0 {
		fmt.Printf("Skew:      %s\n", st.Skew)
	}
}
