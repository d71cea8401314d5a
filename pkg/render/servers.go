package render

import (
	"encoding/json"
	"fmt"

	"github.com/pgstack/pgstack/pkg/stack"
)

// serversFile mirrors the admin UI's servers.json import format, which
// preloads the database connection so the operator lands on a
// configured UI. Passwords are never importable through this file; the
// UI prompts for the admin-ui secret on first connect.
type serversFile struct {
	Servers map[string]serverEntry `json:"Servers"`
}

type serverEntry struct {
	Name          string `json:"Name"`
	Group         string `json:"Group"`
	Host          string `json:"Host"`
	Port          int    `json:"Port"`
	MaintenanceDB string `json:"MaintenanceDB"`
	Username      string `json:"Username"`
	SSLMode       string `json:"SSLMode"`
}

// renderServers produces the admin UI server preload. The host is the
// compose service name: the UI reaches the database over the internal
// network, not the published address.
func renderServers(p *stack.DeploymentParameters) (Artifact, error) {
	preload := serversFile{
		Servers: map[string]serverEntry{
			"1": {
				Name:          "pgstack",
				Group:         "Servers",
				Host:          "postgres",
				Port:          5432,
				MaintenanceDB: p.DatabaseName,
				Username:      stack.RoleAdminUI.DatabaseUser(),
				SSLMode:       "prefer",
			},
		},
	}

	content, err := json.MarshalIndent(preload, "", "  ")
	if err != nil {
		return Artifact{}, fmt.Errorf("encoding admin UI server preload: %w", err)
	}
	return Artifact{
		Kind:    KindAdminServers,
		Path:    ServersPath,
		Content: append(content, '\n'),
		Mode:    ConfigFilePerm,
		UID:     stack.PgAdminUID,
		GID:     stack.PgAdminGID,
	}, nil
}
