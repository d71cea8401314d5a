package render

import (
	"fmt"
	"strings"

	"github.com/pgstack/pgstack/pkg/hba"
	"github.com/pgstack/pgstack/pkg/stack"
)

// renderHBAFile produces the access-control file: one row per compiled
// rule, in compiled order. The database evaluates top to bottom, first
// match wins.
func renderHBAFile(rules []hba.Rule) Artifact {
	var b strings.Builder
	b.WriteString("# pg_hba.conf generated by pgstack - do not edit, rerun the generator\n")
	b.WriteString("# Rules are evaluated in order; the first matching row decides.\n")
	fmt.Fprintf(&b, "# %-8s %-10s %-14s %-20s %s\n", "TYPE", "DATABASE", "USER", "ADDRESS", "METHOD")

	for _, rule := range rules {
		fmt.Fprintf(&b, "%-10s %-10s %-14s %-20s %s\n",
			rule.Conn, rule.Database, rule.User, rule.Address, rule.Method)
	}

	return Artifact{
		Kind:    KindHBAFile,
		Path:    HBAPath,
		Content: []byte(b.String()),
		Mode:    SecretFilePerm,
		UID:     stack.PostgresUID,
		GID:     stack.PostgresGID,
	}
}
