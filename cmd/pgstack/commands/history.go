package commands

import (
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/pgstack/pgstack/pkg/stack"
	"github.com/pgstack/pgstack/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var (
		dir   string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past bundle generations",
		Long: `List the generations recorded in the install directory's ledger,
newest first. The ledger stores run metadata only, never secrets.`,
		Example: `  # Last generations under the default install directory
  pgstack history

  # A custom directory, limited to five rows
  pgstack history --dir /srv/pgstack --limit 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = stack.DefaultInstallDir
			}

			ledger, err := stores.NewLedger(filepath.Join(dir, ledgerRelPath))
			if err != nil {
				return err
			}
			if err := ledger.Init(cmd.Context()); err != nil {
				return err
			}
			defer ledger.Close()
			if err := ledger.Migrate(cmd.Context()); err != nil {
				return err
			}

			generations, err := ledger.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(generations) == 0 {
				cmd.Println("No generations recorded")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Run", "Generated", "Host", "Rules", "Open", "Artifacts"})
			for _, g := range generations {
				t.AppendRow(table.Row{
					g.ID,
					g.CreatedAt.Format(time.RFC3339),
					g.HostAddress,
					g.RuleCount,
					g.OpenAccess,
					len(g.Artifacts),
				})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "install directory holding the ledger")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows to list")

	return cmd
}
