package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/pgstack/pgstack/pkg/hba"
	"github.com/pgstack/pgstack/pkg/stack"
)

// OpenAccessWarning is the report line flagging a configuration with no
// client whitelist. Tests and the preview UI match on it verbatim.
const OpenAccessWarning = "WARNING: open access mode - no permitted client addresses were supplied, the database accepts connections from any address"

// DegradedAddressWarning flags a placeholder host address left behind
// by a fully failed detection chain.
const DegradedAddressWarning = "WARNING: host address detection failed - replace the placeholder address in every artifact before use"

// renderReport produces the human-readable credentials report.
func renderReport(p *stack.DeploymentParameters, creds stack.CredentialSet, rules []hba.Rule, runID string, now time.Time) Artifact {
	var b strings.Builder
	b.WriteString("pgstack deployment credentials\n")
	b.WriteString("==============================\n\n")
	fmt.Fprintf(&b, "Run:       %s\n", runID)
	fmt.Fprintf(&b, "Generated: %s\n", now.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Directory: %s\n", p.InstallDir)
	fmt.Fprintf(&b, "Host:      %s\n", p.HostAddress)
	fmt.Fprintf(&b, "Database:  %s (port %d)\n", p.DatabaseName, p.DatabasePort)
	fmt.Fprintf(&b, "Admin UI:  http://%s:%d\n\n", p.HostAddress, p.AdminUIPort)

	b.WriteString("Credentials\n-----------\n")
	for _, role := range stack.Roles() {
		fmt.Fprintf(&b, "%-14s user=%-14s secret=%s\n", role, role.DatabaseUser(), creds[role])
		if key := connectionURLKey(role); key != "" {
			fmt.Fprintf(&b, "%-14s %s\n", "", p.ConnectionURL(role, creds[role]))
		}
	}

	fmt.Fprintf(&b, "\nAccess control: %d rules compiled", len(rules))
	if len(p.PermittedAddresses) > 0 {
		fmt.Fprintf(&b, " (%d permitted client addresses, terminal reject in place)", len(p.PermittedAddresses))
	}
	b.WriteString("\n")

	if p.OpenAccess() {
		b.WriteString("\n" + OpenAccessWarning + "\n")
	}
	if p.AddressDegraded {
		b.WriteString("\n" + DegradedAddressWarning + "\n")
	}

	return Artifact{
		Kind:    KindReport,
		Path:    ReportPath,
		Content: []byte(b.String()),
		Mode:    SecretFilePerm,
		UID:     CurrentOwner,
		GID:     CurrentOwner,
	}
}
