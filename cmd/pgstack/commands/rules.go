package commands

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/pgstack/pgstack/pkg/hba"
	"github.com/pgstack/pgstack/pkg/params"
)

func newRulesCommand() *cobra.Command {
	var (
		allow []string
	)

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Preview the compiled access rules",
		Long: `Compile the permitted client address list into the ordered access
rule table and print it, without generating credentials or writing
anything.

Rules are evaluated top to bottom, first match wins: trusted/internal
sources, then explicit allows in input order, then the terminal reject
pair (only when a whitelist was supplied).`,
		Example: `  # Preview the open-access rule table
  pgstack rules

  # Preview with a two-client whitelist
  pgstack rules --allow 10.0.0.5 --allow 192.168.1.100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(allow) == 0 {
				allow = splitList(os.Getenv(allowedClientsEnv))
			}

			permitted, err := params.NewResolver().CleanPermitted(allow)
			if err != nil {
				return err
			}
			rules := hba.NewCompiler().Compile(permitted)

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"#", "Type", "Database", "User", "Address", "Method", "Scope"})
			t.AppendRows(ruleTableRows(rules))
			t.Render()

			if len(permitted) == 0 {
				cmd.Println("\nOpen access: no terminal reject pair compiled")
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&allow, "allow", nil, "permitted client address or CIDR (repeatable)")

	return cmd
}

func ruleTableRows(rules []hba.Rule) []table.Row {
	rows := make([]table.Row, 0, len(rules))
	for _, r := range rules {
		rows = append(rows, table.Row{r.Priority, r.Conn, r.Database, r.User, r.Address, r.Method, r.Scope})
	}
	return rows
}
