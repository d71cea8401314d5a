package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pgstack/pgstack/pkg/params"
	"github.com/pgstack/pgstack/pkg/pipeline"
	"github.com/pgstack/pgstack/pkg/render"
	"github.com/pgstack/pgstack/pkg/stores"
)

// allowedClientsEnv supplies the permitted-address list in
// non-interactive runs, comma-separated.
const allowedClientsEnv = "PGSTACK_ALLOWED_CLIENTS"

// ledgerRelPath is where the generation ledger lives, relative to the
// install directory.
const ledgerRelPath = ".pgstack/history.db"

func newGenerateCommand() *cobra.Command {
	var (
		dir             string
		host            string
		allow           []string
		keepCredentials bool
		scramPasswords  bool
		nonInteractive  bool
		assumeYes       bool
		dryRun          bool
		noLedger        bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the configuration bundle",
		Long: `Generate the full configuration bundle: resolve parameters, draw
fresh credentials, compile access rules, render every artifact, and
write them atomically under the install directory.

Nothing touches the disk before the confirmation gate; cancelling
leaves no trace. Every run draws fresh secrets unless
--keep-credentials is given.`,
		Example: `  # Interactive generation with prompts and confirmation
  pgstack generate

  # Unattended generation for two permitted clients
  pgstack generate --non-interactive --yes \
    --dir /opt/pgstack --allow 10.0.0.5 --allow 192.168.1.100

  # Rotate artifacts but keep existing credentials
  pgstack generate --keep-credentials --yes --non-interactive

  # Permitted clients from the environment
  PGSTACK_ALLOWED_CLIENTS=10.0.0.5,192.168.1.0/24 pgstack generate --non-interactive --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(allow) == 0 {
				allow = splitList(os.Getenv(allowedClientsEnv))
			}

			var src params.ParameterSource
			if nonInteractive || !term.IsTerminal(int(os.Stdin.Fd())) {
				src = &params.FlagSource{
					Dir:       dir,
					Host:      host,
					Permitted: allow,
					AssumeYes: assumeYes,
				}
			} else {
				src = &params.TerminalSource{
					In:        os.Stdin,
					Out:       os.Stdout,
					Dir:       dir,
					Host:      host,
					Permitted: allow,
				}
			}

			outcome, err := pipeline.New().Run(cmd.Context(), src, pipeline.Options{
				KeepCredentials: keepCredentials,
				ScramPasswords:  scramPasswords,
				DryRun:          dryRun,
			})
			if err != nil {
				return err
			}

			if !dryRun && !noLedger {
				recordGeneration(cmd.Context(), outcome)
			}

			printOutcome(cmd, outcome, dryRun)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "install directory override")
	cmd.Flags().StringVar(&host, "host", "", "explicit host address (skips auto-detection)")
	cmd.Flags().StringSliceVar(&allow, "allow", nil, "permitted client address or CIDR (repeatable)")
	cmd.Flags().BoolVar(&keepCredentials, "keep-credentials", false, "reuse secrets from a prior run's environment file")
	cmd.Flags().BoolVar(&scramPasswords, "scram-passwords", false, "store SCRAM-SHA-256 verifiers in the init script instead of plaintext")
	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "never prompt, take inputs from flags and environment only")
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "approve the confirmation gate without prompting")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "render everything, write nothing")
	cmd.Flags().BoolVar(&noLedger, "no-ledger", false, "skip recording the run in the generation ledger")

	return cmd
}

// recordGeneration appends the run to the install-dir-local ledger.
// Ledger failures are logged, never fatal: the bundle on disk is the
// source of truth.
func recordGeneration(ctx context.Context, outcome *pipeline.Outcome) {
	path := filepath.Join(outcome.Params.InstallDir, ledgerRelPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		log.Warn().Err(err).Msg("failed to create ledger directory")
		return
	}
	ledger, err := stores.NewLedger(path)
	if err == nil {
		err = ledger.Init(ctx)
	}
	if err == nil {
		defer ledger.Close()
		err = ledger.Migrate(ctx)
	}
	if err == nil {
		err = ledger.Record(ctx, &stores.Generation{
			ID:              outcome.RunID,
			CreatedAt:       time.Now(),
			InstallDir:      outcome.Params.InstallDir,
			HostAddress:     outcome.Params.HostAddress,
			OpenAccess:      outcome.Params.OpenAccess(),
			AddressDegraded: outcome.Params.AddressDegraded,
			RuleCount:       len(outcome.Rules),
			Artifacts:       outcome.Written,
		})
	}
	if err != nil {
		log.Warn().Err(err).Msg("failed to record generation in ledger")
	}
}

// printOutcome summarizes the run on stdout.
func printOutcome(cmd *cobra.Command, outcome *pipeline.Outcome, dryRun bool) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"Artifact", "Path", "Mode"})
	for _, a := range outcome.Artifacts {
		t.AppendRow(table.Row{a.Kind, a.Path, fmt.Sprintf("%04o", a.Mode)})
	}
	t.Render()

	out := cmd.OutOrStdout()
	if dryRun {
		fmt.Fprintf(out, "\nDry run %s: nothing written\n", outcome.RunID)
	} else {
		fmt.Fprintf(out, "\nBundle %s written to %s\n", outcome.RunID, outcome.Params.InstallDir)
		fmt.Fprintf(out, "Credentials report: %s\n", filepath.Join(outcome.Params.InstallDir, render.ReportPath))
	}
	if outcome.Params.OpenAccess() {
		fmt.Fprintln(out, "\n"+render.OpenAccessWarning)
	}
	if outcome.Params.AddressDegraded {
		fmt.Fprintln(out, "\n"+render.DegradedAddressWarning)
	}
}

// splitList splits a comma-separated list, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
