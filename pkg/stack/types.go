// Package stack defines the core types for the pgstack configuration
// synthesis engine: deployment parameters, credential sets, and the
// named constants shared by every later stage.
package stack

import "fmt"

// Role identifies a logical database identity that receives its own
// generated credential.
type Role string

const (
	// RoleAdministrator is the database superuser.
	RoleAdministrator Role = "administrator"

	// RoleApplication is the read/write identity used by applications.
	RoleApplication Role = "application"

	// RoleReadOnly is the SELECT-only identity for reporting tools.
	RoleReadOnly Role = "readonly"

	// RoleBackup is the backup and monitoring identity.
	RoleBackup Role = "backup"

	// RoleAdminUI is the login for the bundled admin web UI.
	RoleAdminUI Role = "admin-ui"
)

// Roles returns every role in the fixed role set, in the order secrets
// are generated and rendered.
func Roles() []Role {
	return []Role{RoleAdministrator, RoleApplication, RoleReadOnly, RoleBackup, RoleAdminUI}
}

// DatabaseUser returns the database role name created (or altered) for
// this role by the initialization script.
func (r Role) DatabaseUser() string {
	switch r {
	case RoleAdministrator:
		return "postgres"
	case RoleApplication:
		return "app_user"
	case RoleReadOnly:
		return "readonly_user"
	case RoleBackup:
		return "backup_user"
	case RoleAdminUI:
		return "pgadmin"
	default:
		return string(r)
	}
}

// EnvKey returns the environment-file variable that carries this role's
// secret.
func (r Role) EnvKey() string {
	switch r {
	case RoleAdministrator:
		return "POSTGRES_PASSWORD"
	case RoleApplication:
		return "APP_PASSWORD"
	case RoleReadOnly:
		return "READONLY_PASSWORD"
	case RoleBackup:
		return "BACKUP_PASSWORD"
	case RoleAdminUI:
		return "PGADMIN_PASSWORD"
	default:
		return ""
	}
}

// CredentialSet maps each role to its generated secret. It is created
// once per run and never mutated afterwards.
type CredentialSet map[Role]string

// Secret returns the secret for a role and whether one exists.
func (c CredentialSet) Secret(r Role) (string, bool) {
	s, ok := c[r]
	return s, ok
}

// DeploymentParameters holds every resolved input to the synthesis
// pipeline. Instances are immutable once returned by the resolver.
type DeploymentParameters struct {
	// InstallDir is the absolute directory the bundle is written under.
	InstallDir string `json:"install_dir" validate:"required"`

	// HostAddress is the address clients connect to. May be the
	// placeholder literal when detection failed.
	HostAddress string `json:"host_address" validate:"required"`

	// AddressDegraded is true when HostAddress is the placeholder,
	// i.e. every probe and the local fallback failed.
	AddressDegraded bool `json:"address_degraded"`

	// PermittedAddresses is the ordered, de-duplicated client
	// whitelist. Each entry is an IPv4/IPv6 address or CIDR. Empty
	// means open access.
	PermittedAddresses []string `json:"permitted_addresses" validate:"dive,ip|cidr"`

	// DatabasePort is the externally published database port.
	DatabasePort int `json:"database_port" validate:"required,min=1,max=65535"`

	// AdminUIPort is the externally published admin UI port.
	AdminUIPort int `json:"admin_ui_port" validate:"required,min=1,max=65535"`

	// DatabaseName is the application database created at first boot.
	DatabaseName string `json:"database_name" validate:"required"`
}

// OpenAccess reports whether no client whitelist was supplied, meaning
// the compiled rules end without a terminal reject pair.
func (p *DeploymentParameters) OpenAccess() bool {
	return len(p.PermittedAddresses) == 0
}

// ConnectionURL composes the connection string for a role from the
// resolved host, port, and database name.
func (p *DeploymentParameters) ConnectionURL(r Role, secret string) string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s",
		r.DatabaseUser(), secret, p.HostAddress, p.DatabasePort, p.DatabaseName)
}

const (
	// DefaultInstallDir is where the bundle lands unless overridden.
	DefaultInstallDir = "/opt/pgstack"

	// DefaultDatabasePort is the published PostgreSQL port.
	DefaultDatabasePort = 5432

	// DefaultAdminUIPort is the published pgAdmin port.
	DefaultAdminUIPort = 8080

	// DefaultDatabaseName is the application database name.
	DefaultDatabaseName = "appdb"

	// ContainerSubnet is the static subnet of the stack's internal
	// network. The access-control compiler trusts it, so the value in
	// the compose manifest and the rule table must agree.
	ContainerSubnet = "172.28.0.0/16"

	// LoopbackV4 and LoopbackV6 are the implicitly trusted loopback
	// sources.
	LoopbackV4 = "127.0.0.1/32"
	LoopbackV6 = "::1/128"

	// PlaceholderAddress is used when host address detection fails
	// entirely. Its presence is flagged in the credentials report.
	PlaceholderAddress = "YOUR_SERVER_IP"
)

// Numeric identities required by the containerized processes that read
// the secret-bearing artifacts.
const (
	// PostgresUID and PostgresGID match the postgres user inside the
	// official postgres image.
	PostgresUID = 999
	PostgresGID = 999

	// PgAdminUID and PgAdminGID match the pgadmin user inside the
	// dpage/pgadmin4 image.
	PgAdminUID = 5050
	PgAdminGID = 5050
)
