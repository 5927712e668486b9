package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jvs-project/dotlock/internal/doctor"
	"github.com/jvs-project/dotlock/pkg/color"
	"github.com/jvs-project/dotlock/pkg/fsutil"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor [dir]",
	Short: "Check that a directory can host lock files",
	Long: `Check that a directory can host lock files.

Creates short-lived probe files in dir (default: the current directory) to
verify hard link support and link counting, modification time control and
clock skew against the file server. Also reports orphan temporary files and
stale locks left by crashed processes. Exits with status 1 when a problem
would break locking.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}

		doc := doctor.NewDoctor(dir, env.cfg.Policy(), fsutil.NewOS(env.log))
		result, err := doc.Check()
		if err != nil {
			return err
		}

		if jsonOutput {
			if err := outputJSON(result); err != nil {
				return err
			}
		} else {
			printDoctor(result)
		}

		if !result.Healthy {
			return &exitError{code: 1}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func printDoctor(result *doctor.Result) {
	if len(result.Findings) == 0 {
		fmt.Println(color.Success(fmt.Sprintf("%s supports dot-locking.", result.Dir)))
		return
	}

	fmt.Printf("Findings (%d):\n", len(result.Findings))
	for _, f := range result.Findings {
		sev := f.Severity
		switch sev {
		case doctor.SeverityCritical, doctor.SeverityError:
			sev = color.Error(sev)
		case doctor.SeverityWarning:
			sev = color.Warning(sev)
		default:
			sev = color.Dim(sev)
		}
		fmt.Printf("  [%s] %s: %s\n", sev, f.Category, f.Description)
	}
	if result.Healthy {
		fmt.Println(color.Success("Locking will work."))
	} else {
		fmt.Println(color.Error("Locking is unsafe in this directory."))
	}
}
