// Package render maps resolved parameters, credentials, and compiled
// access rules onto the output artifacts. Every encoder draws from the
// same validated inputs, so shared values agree across artifacts by
// construction rather than by string splicing.
package render

import "os"

// Kind identifies an artifact type.
type Kind string

const (
	// KindEnvFile is the KEY=VALUE environment file.
	KindEnvFile Kind = "env-file"

	// KindComposeManifest is the container orchestration manifest.
	KindComposeManifest Kind = "compose-manifest"

	// KindHBAFile is the ordered access-control rule table.
	KindHBAFile Kind = "hba-file"

	// KindInitScript is the database initialization script.
	KindInitScript Kind = "init-script"

	// KindAdminServers is the admin UI's server preload file.
	KindAdminServers Kind = "admin-servers"

	// KindReport is the human-readable credentials report.
	KindReport Kind = "credentials-report"
)

// Artifact target paths, relative to the install directory.
const (
	EnvFilePath = ".env"
	ComposePath = "docker-compose.yml"
	HBAPath     = "config/pg_hba.conf"
	InitSQLPath = "init/01-roles.sql"
	ServersPath = "pgadmin/servers.json"
	ReportPath  = "credentials.txt"
)

// File permission bits per artifact class. Secret-bearing files are
// owner-only; the manifest holds no literals and stays world-readable.
const (
	SecretFilePerm = os.FileMode(0o600)
	ConfigFilePerm = os.FileMode(0o644)
)

// CurrentOwner leaves an artifact owned by the invoking user.
const CurrentOwner = -1

// Artifact is one rendered output file, ready for the bundle writer.
type Artifact struct {
	// Kind identifies the artifact type.
	Kind Kind

	// Path is the target path relative to the install directory.
	Path string

	// Content is the rendered text.
	Content []byte

	// Mode is the required permission bits.
	Mode os.FileMode

	// UID and GID are the required owning identity, or CurrentOwner
	// to leave ownership with the invoking user.
	UID int
	GID int
}
