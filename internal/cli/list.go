package cli

import (
	"encoding/csv"
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mailops/list-janitor/pkg/client"
	"github.com/mailops/list-janitor/pkg/collect"
	"github.com/mailops/list-janitor/pkg/janitor"
)

// newListCmd creates the list command.
func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all unsubscribed members",
		RunE:  runList,
	}

	cmd.Flags().StringP("output", "o", "csv", "output format (csv, table)")
	viper.BindPFlag("output", cmd.Flags().Lookup("output"))

	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	stream := janitor.New(c).ListUnsubscribed(cmd.Context())

	switch format := viper.GetString("output"); format {
	case "csv":
		return writeCSV(cmd, stream)
	case "table":
		return writeTable(cmd, stream)
	default:
		return fmt.Errorf("unknown output format %q (csv, table)", format)
	}
}

// writeCSV streams members as CSV rows, one per member as pages arrive.
func writeCSV(cmd *cobra.Command, stream <-chan collect.MemberResult) error {
	w := csv.NewWriter(cmd.OutOrStdout())
	if err := w.Write([]string{"id", "email_address", "full_name"}); err != nil {
		return err
	}

	for res := range stream {
		if res.Err != nil {
			w.Flush()
			return res.Err
		}
		m := res.Member
		if err := w.Write([]string{m.ID, m.EmailAddress, m.FullName}); err != nil {
			return err
		}
		w.Flush()
	}

	return w.Error()
}

// writeTable renders members as a table. Unlike CSV output, the table is
// buffered and rendered once enumeration finishes.
func writeTable(cmd *cobra.Command, stream <-chan collect.MemberResult) error {
	var members []client.Member
	for res := range stream {
		if res.Err != nil {
			return res.Err
		}
		members = append(members, res.Member)
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"ID", "Email", "Name", "Signup"})
	table.SetBorder(false)
	for _, m := range members {
		table.Append([]string{m.ID, m.EmailAddress, m.FullName, m.TimestampSignup})
	}
	table.Render()

	return nil
}
