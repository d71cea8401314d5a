package render

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/pgstack/pgstack/pkg/stack"
)

// Container images for the two services.
const (
	postgresImage = "postgres:16-alpine"
	pgadminImage  = "dpage/pgadmin4:8"
)

// networkName is the compose network both services join. Its subnet is
// stack.ContainerSubnet, which the rule compiler trusts.
const networkName = "pgstack"

// composeFile mirrors the compose schema subset this bundle uses.
// Marshalled with yaml.v3 so the manifest is always well-formed.
type composeFile struct {
	Services map[string]composeService `yaml:"services"`
	Networks map[string]composeNetwork `yaml:"networks"`
	Volumes  map[string]struct{}       `yaml:"volumes"`
}

type composeService struct {
	Image         string            `yaml:"image"`
	ContainerName string            `yaml:"container_name"`
	Restart       string            `yaml:"restart"`
	Command       []string          `yaml:"command,omitempty"`
	EnvFile       []string          `yaml:"env_file,omitempty"`
	Environment   map[string]string `yaml:"environment,omitempty"`
	Ports         []string          `yaml:"ports"`
	Volumes       []string          `yaml:"volumes,omitempty"`
	DependsOn     []string          `yaml:"depends_on,omitempty"`
	Networks      []string          `yaml:"networks"`
	Healthcheck   *composeHealth    `yaml:"healthcheck,omitempty"`
}

type composeHealth struct {
	Test     []string `yaml:"test"`
	Interval string   `yaml:"interval"`
	Timeout  string   `yaml:"timeout"`
	Retries  int      `yaml:"retries"`
}

type composeNetwork struct {
	Driver string      `yaml:"driver"`
	IPAM   composeIPAM `yaml:"ipam"`
}

type composeIPAM struct {
	Config []composeSubnet `yaml:"config"`
}

type composeSubnet struct {
	Subnet string `yaml:"subnet"`
}

// renderCompose produces the orchestration manifest. Credentials appear
// only as ${VAR} references into the environment file, never as
// literals, so the manifest itself is not secret-bearing.
func renderCompose(p *stack.DeploymentParameters) (Artifact, error) {
	manifest := composeFile{
		Services: map[string]composeService{
			"postgres": {
				Image:         postgresImage,
				ContainerName: "pgstack-postgres",
				Restart:       "unless-stopped",
				Command: []string{
					"postgres",
					"-c", "hba_file=/etc/postgresql/pg_hba.conf",
					"-c", "shared_preload_libraries=pg_stat_statements",
				},
				EnvFile: []string{"./" + EnvFilePath},
				Environment: map[string]string{
					"POSTGRES_PASSWORD": "${POSTGRES_PASSWORD}",
					"POSTGRES_DB":       "${POSTGRES_DB}",
				},
				Ports: []string{fmt.Sprintf("%d:5432", p.DatabasePort)},
				Volumes: []string{
					"pgdata:/var/lib/postgresql/data",
					"./" + HBAPath + ":/etc/postgresql/pg_hba.conf:ro",
					"./init:/docker-entrypoint-initdb.d:ro",
				},
				Networks: []string{networkName},
				Healthcheck: &composeHealth{
					Test:     []string{"CMD-SHELL", "pg_isready -U postgres"},
					Interval: "10s",
					Timeout:  "5s",
					Retries:  5,
				},
			},
			"pgadmin": {
				Image:         pgadminImage,
				ContainerName: "pgstack-pgadmin",
				Restart:       "unless-stopped",
				Environment: map[string]string{
					"PGADMIN_DEFAULT_EMAIL":    "${" + envAdminEmailKey + "}",
					"PGADMIN_DEFAULT_PASSWORD": "${" + stack.RoleAdminUI.EnvKey() + "}",
				},
				EnvFile: []string{"./" + EnvFilePath},
				Ports:   []string{fmt.Sprintf("%d:80", p.AdminUIPort)},
				Volumes: []string{
					"./" + ServersPath + ":/pgadmin4/servers.json:ro",
				},
				DependsOn: []string{"postgres"},
				Networks:  []string{networkName},
			},
		},
		Networks: map[string]composeNetwork{
			networkName: {
				Driver: "bridge",
				IPAM: composeIPAM{
					Config: []composeSubnet{{Subnet: stack.ContainerSubnet}},
				},
			},
		},
		Volumes: map[string]struct{}{"pgdata": {}},
	}

	content, err := yaml.Marshal(manifest)
	if err != nil {
		return Artifact{}, fmt.Errorf("encoding compose manifest: %w", err)
	}
	return Artifact{
		Kind:    KindComposeManifest,
		Path:    ComposePath,
		Content: content,
		Mode:    ConfigFilePerm,
		UID:     CurrentOwner,
		GID:     CurrentOwner,
	}, nil
}
