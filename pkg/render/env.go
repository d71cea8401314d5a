package render

import (
	"fmt"
	"strings"

	"github.com/pgstack/pgstack/pkg/stack"
)

// envHostKey carries the resolved host address in the environment file.
const envHostKey = "PGSTACK_HOST"

// envAdminEmailKey is the admin UI login email.
const envAdminEmailKey = "PGADMIN_EMAIL"

// defaultAdminEmail is the admin UI login identity. The password is the
// admin-ui role secret.
const defaultAdminEmail = "admin@pgstack.local"

// connectionURLKey names the environment variable carrying a role's
// composed connection string.
func connectionURLKey(r stack.Role) string {
	switch r {
	case stack.RoleAdministrator:
		return "DATABASE_URL"
	case stack.RoleApplication:
		return "APP_DATABASE_URL"
	case stack.RoleReadOnly:
		return "READONLY_DATABASE_URL"
	case stack.RoleBackup:
		return "BACKUP_DATABASE_URL"
	default:
		return ""
	}
}

// renderEnvFile produces the KEY=VALUE environment file: one secret per
// role, the resolved host, the database name, and composed connection
// strings. Secrets are alphanumeric-only, so no quoting is needed.
func renderEnvFile(p *stack.DeploymentParameters, creds stack.CredentialSet) Artifact {
	var b strings.Builder
	b.WriteString("# pgstack environment - contains credentials, keep mode 0600\n")

	for _, role := range stack.Roles() {
		secret := creds[role]
		fmt.Fprintf(&b, "%s=%s\n", role.EnvKey(), secret)
	}

	fmt.Fprintf(&b, "%s=%s\n", envHostKey, p.HostAddress)
	fmt.Fprintf(&b, "POSTGRES_DB=%s\n", p.DatabaseName)
	fmt.Fprintf(&b, "%s=%s\n", envAdminEmailKey, defaultAdminEmail)

	for _, role := range stack.Roles() {
		key := connectionURLKey(role)
		if key == "" {
			continue
		}
		fmt.Fprintf(&b, "%s=%s\n", key, p.ConnectionURL(role, creds[role]))
	}

	return Artifact{
		Kind:    KindEnvFile,
		Path:    EnvFilePath,
		Content: []byte(b.String()),
		Mode:    SecretFilePerm,
		UID:     CurrentOwner,
		GID:     CurrentOwner,
	}
}
