package render

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/pgstack/pgstack/pkg/stack"
)

// requiredExtensions are enabled in the application database at first
// boot.
var requiredExtensions = []string{"pg_stat_statements", "pgcrypto"}

// renderInitScript produces the SQL initialization script: required
// extensions, one role per credential-set entry, and role-appropriate
// grants. Identifiers and literals go through lib/pq quoting even
// though generated secrets never need escaping; explicit overrides via
// the keep-credentials path must still render safely.
//
// passwords maps each role to the literal stored in the script: the
// plaintext secret by default, or a SCRAM verifier in scram mode.
func renderInitScript(p *stack.DeploymentParameters, passwords map[stack.Role]string) Artifact {
	db := pq.QuoteIdentifier(p.DatabaseName)
	app := pq.QuoteIdentifier(stack.RoleApplication.DatabaseUser())
	readonly := pq.QuoteIdentifier(stack.RoleReadOnly.DatabaseUser())
	backup := pq.QuoteIdentifier(stack.RoleBackup.DatabaseUser())
	adminUI := pq.QuoteIdentifier(stack.RoleAdminUI.DatabaseUser())

	var b strings.Builder
	b.WriteString("-- pgstack initialization script, run once at first database boot\n\n")

	for _, ext := range requiredExtensions {
		fmt.Fprintf(&b, "CREATE EXTENSION IF NOT EXISTS %s;\n", pq.QuoteIdentifier(ext))
	}
	b.WriteString("\n")

	// The bootstrap superuser already exists; it is altered, not created.
	fmt.Fprintf(&b, "ALTER ROLE %s WITH PASSWORD %s;\n\n",
		pq.QuoteIdentifier(stack.RoleAdministrator.DatabaseUser()),
		pq.QuoteLiteral(passwords[stack.RoleAdministrator]))

	fmt.Fprintf(&b, "CREATE ROLE %s WITH LOGIN PASSWORD %s;\n", app,
		pq.QuoteLiteral(passwords[stack.RoleApplication]))
	fmt.Fprintf(&b, "GRANT CONNECT, TEMPORARY ON DATABASE %s TO %s;\n", db, app)
	fmt.Fprintf(&b, "GRANT ALL ON SCHEMA public TO %s;\n", app)
	fmt.Fprintf(&b, "ALTER DEFAULT PRIVILEGES IN SCHEMA public GRANT ALL ON TABLES TO %s;\n\n", app)

	fmt.Fprintf(&b, "CREATE ROLE %s WITH LOGIN PASSWORD %s;\n", readonly,
		pq.QuoteLiteral(passwords[stack.RoleReadOnly]))
	fmt.Fprintf(&b, "GRANT CONNECT ON DATABASE %s TO %s;\n", db, readonly)
	fmt.Fprintf(&b, "GRANT USAGE ON SCHEMA public TO %s;\n", readonly)
	fmt.Fprintf(&b, "GRANT SELECT ON ALL TABLES IN SCHEMA public TO %s;\n", readonly)
	fmt.Fprintf(&b, "ALTER DEFAULT PRIVILEGES IN SCHEMA public GRANT SELECT ON TABLES TO %s;\n\n", readonly)

	fmt.Fprintf(&b, "CREATE ROLE %s WITH LOGIN PASSWORD %s;\n", backup,
		pq.QuoteLiteral(passwords[stack.RoleBackup]))
	fmt.Fprintf(&b, "GRANT pg_read_all_data, pg_monitor TO %s;\n\n", backup)

	fmt.Fprintf(&b, "CREATE ROLE %s WITH LOGIN PASSWORD %s;\n", adminUI,
		pq.QuoteLiteral(passwords[stack.RoleAdminUI]))
	fmt.Fprintf(&b, "GRANT CONNECT ON DATABASE %s TO %s;\n", db, adminUI)

	return Artifact{
		Kind:    KindInitScript,
		Path:    InitSQLPath,
		Content: []byte(b.String()),
		Mode:    SecretFilePerm,
		UID:     stack.PostgresUID,
		GID:     stack.PostgresGID,
	}
}
