package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mailops/list-janitor/pkg/janitor"
)

// newArchiveCmd creates the archive command.
func newArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive",
		Short: "Archive all unsubscribed members",
		Long: `Enumerates every unsubscribed member of the list, then archives them
with bounded concurrency. One line is printed per member as its archive
call completes, so partial failures stay attributable.`,
		RunE: runArchive,
	}
}

func runArchive(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	outcomes, err := janitor.New(c).ArchiveUnsubscribed(cmd.Context())
	if err != nil {
		return err
	}

	success := color.New(color.FgGreen)
	failure := color.New(color.FgRed)

	archived, failed := 0, 0
	for outcome := range outcomes {
		if outcome.Ok() {
			archived++
			success.Fprintf(cmd.OutOrStdout(), "Archived member %s\n", outcome.MemberID)
		} else {
			failed++
			failure.Fprintf(cmd.ErrOrStderr(), "%v\n", outcome.Err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d archived, %d failed\n", archived, failed)
	return nil
}
