package render

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pgstack/pgstack/pkg/hba"
	"github.com/pgstack/pgstack/pkg/secrets"
	"github.com/pgstack/pgstack/pkg/stack"
)

func testParams(permitted []string) *stack.DeploymentParameters {
	return &stack.DeploymentParameters{
		InstallDir:         "/opt/pgstack",
		HostAddress:        "203.0.113.9",
		PermittedAddresses: permitted,
		DatabasePort:       stack.DefaultDatabasePort,
		AdminUIPort:        stack.DefaultAdminUIPort,
		DatabaseName:       stack.DefaultDatabaseName,
	}
}

func testCreds(t *testing.T) stack.CredentialSet {
	t.Helper()
	creds, err := secrets.NewGenerator().Generate()
	if err != nil {
		t.Fatalf("generating credentials: %v", err)
	}
	return creds
}

func renderAll(t *testing.T, p *stack.DeploymentParameters, creds stack.CredentialSet, opts Options) map[Kind]Artifact {
	t.Helper()
	rules := hba.NewCompiler().Compile(p.PermittedAddresses)
	artifacts, err := Render(p, creds, rules, opts)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	byKind := make(map[Kind]Artifact, len(artifacts))
	for _, a := range artifacts {
		byKind[a.Kind] = a
	}
	return byKind
}

func TestRenderProducesAllArtifacts(t *testing.T) {
	byKind := renderAll(t, testParams(nil), testCreds(t), Options{RunID: "run-1"})

	wantPaths := map[Kind]string{
		KindEnvFile:         EnvFilePath,
		KindComposeManifest: ComposePath,
		KindHBAFile:         HBAPath,
		KindInitScript:      InitSQLPath,
		KindAdminServers:    ServersPath,
		KindReport:          ReportPath,
	}
	for kind, path := range wantPaths {
		a, ok := byKind[kind]
		if !ok {
			t.Fatalf("artifact %s missing", kind)
		}
		if a.Path != path {
			t.Errorf("%s path = %q, want %q", kind, a.Path, path)
		}
		if len(a.Content) == 0 {
			t.Errorf("%s is empty", kind)
		}
	}
}

func TestSecretsIdenticalAcrossArtifacts(t *testing.T) {
	creds := testCreds(t)
	byKind := renderAll(t, testParams([]string{"10.0.0.5"}), creds, Options{})

	env := string(byKind[KindEnvFile].Content)
	report := string(byKind[KindReport].Content)
	initSQL := string(byKind[KindInitScript].Content)

	for _, role := range stack.Roles() {
		secret := creds[role]
		if !strings.Contains(env, role.EnvKey()+"="+secret) {
			t.Errorf("env file missing %s secret", role)
		}
		if !strings.Contains(report, secret) {
			t.Errorf("report missing %s secret", role)
		}
		if !strings.Contains(initSQL, "'"+secret+"'") {
			t.Errorf("init script missing %s secret literal", role)
		}
	}
}

func TestComposeManifestReferencesNotLiterals(t *testing.T) {
	creds := testCreds(t)
	byKind := renderAll(t, testParams(nil), creds, Options{})
	compose := string(byKind[KindComposeManifest].Content)

	for _, role := range stack.Roles() {
		if strings.Contains(compose, creds[role]) {
			t.Errorf("compose manifest contains %s secret literal", role)
		}
	}
	if !strings.Contains(compose, "${POSTGRES_PASSWORD}") {
		t.Error("compose manifest missing POSTGRES_PASSWORD reference")
	}
	if !strings.Contains(compose, "${PGADMIN_PASSWORD}") {
		t.Error("compose manifest missing PGADMIN_PASSWORD reference")
	}
	if byKind[KindComposeManifest].Mode != ConfigFilePerm {
		t.Errorf("compose mode = %v, want %v", byKind[KindComposeManifest].Mode, ConfigFilePerm)
	}
}

func TestComposeManifestStructure(t *testing.T) {
	byKind := renderAll(t, testParams(nil), testCreds(t), Options{})

	var manifest struct {
		Services map[string]struct {
			Image string   `yaml:"image"`
			Ports []string `yaml:"ports"`
		} `yaml:"services"`
		Networks map[string]struct {
			IPAM struct {
				Config []struct {
					Subnet string `yaml:"subnet"`
				} `yaml:"config"`
			} `yaml:"ipam"`
		} `yaml:"networks"`
	}
	if err := yaml.Unmarshal(byKind[KindComposeManifest].Content, &manifest); err != nil {
		t.Fatalf("compose manifest is not valid YAML: %v", err)
	}
	if _, ok := manifest.Services["postgres"]; !ok {
		t.Error("postgres service missing")
	}
	if _, ok := manifest.Services["pgadmin"]; !ok {
		t.Error("pgadmin service missing")
	}
	net, ok := manifest.Networks["pgstack"]
	if !ok || len(net.IPAM.Config) == 0 {
		t.Fatal("pgstack network with ipam config missing")
	}
	if net.IPAM.Config[0].Subnet != stack.ContainerSubnet {
		t.Errorf("network subnet = %q, want %q (must match trusted rule source)",
			net.IPAM.Config[0].Subnet, stack.ContainerSubnet)
	}
}

func TestHBAFileOrderMatchesCompiledRules(t *testing.T) {
	p := testParams([]string{"10.0.0.5", "192.168.1.100"})
	byKind := renderAll(t, p, testCreds(t), Options{})
	content := string(byKind[KindHBAFile].Content)

	first := strings.Index(content, "10.0.0.5/32")
	second := strings.Index(content, "192.168.1.100/32")
	reject := strings.Index(content, "reject")
	if first == -1 || second == -1 || reject == -1 {
		t.Fatalf("hba file missing expected rows:\n%s", content)
	}
	if !(first < second && second < reject) {
		t.Errorf("hba rows out of order: allow1=%d allow2=%d reject=%d", first, second, reject)
	}
	if byKind[KindHBAFile].UID != stack.PostgresUID || byKind[KindHBAFile].GID != stack.PostgresGID {
		t.Error("hba file must be owned by the postgres identity")
	}
}

func TestReportFlagsOpenAccess(t *testing.T) {
	byKind := renderAll(t, testParams(nil), testCreds(t), Options{})
	report := string(byKind[KindReport].Content)
	if !strings.Contains(report, OpenAccessWarning) {
		t.Error("report missing open-access warning")
	}

	byKind = renderAll(t, testParams([]string{"10.0.0.5"}), testCreds(t), Options{})
	report = string(byKind[KindReport].Content)
	if strings.Contains(report, OpenAccessWarning) {
		t.Error("whitelisted configuration must not carry the open-access warning")
	}
}

func TestReportFlagsDegradedAddress(t *testing.T) {
	p := testParams(nil)
	p.HostAddress = stack.PlaceholderAddress
	p.AddressDegraded = true
	byKind := renderAll(t, p, testCreds(t), Options{})
	if !strings.Contains(string(byKind[KindReport].Content), DegradedAddressWarning) {
		t.Error("report missing degraded-address warning")
	}
}

func TestReportTimestampAndRunID(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	byKind := renderAll(t, testParams(nil), testCreds(t), Options{RunID: "run-42", Now: now})
	report := string(byKind[KindReport].Content)
	if !strings.Contains(report, "run-42") {
		t.Error("report missing run id")
	}
	if !strings.Contains(report, "2026-03-14T09:26:53Z") {
		t.Error("report missing generation timestamp")
	}
}

func TestInitScriptScramMode(t *testing.T) {
	creds := testCreds(t)
	verifiers := make(map[stack.Role]string)
	for _, role := range stack.Roles() {
		v, err := secrets.ScramVerifier(creds[role])
		if err != nil {
			t.Fatal(err)
		}
		verifiers[role] = v
	}

	byKind := renderAll(t, testParams(nil), creds, Options{ScramVerifiers: verifiers})
	initSQL := string(byKind[KindInitScript].Content)

	for _, role := range stack.Roles() {
		if strings.Contains(initSQL, "'"+creds[role]+"'") {
			t.Errorf("scram-mode init script contains %s plaintext secret", role)
		}
	}
	if !strings.Contains(initSQL, "SCRAM-SHA-256$4096:") {
		t.Error("scram-mode init script missing verifiers")
	}
}

func TestInitScriptStatements(t *testing.T) {
	byKind := renderAll(t, testParams(nil), testCreds(t), Options{})
	initSQL := string(byKind[KindInitScript].Content)

	for _, want := range []string{
		`CREATE EXTENSION IF NOT EXISTS "pg_stat_statements";`,
		`ALTER ROLE "postgres" WITH PASSWORD`,
		`CREATE ROLE "app_user" WITH LOGIN PASSWORD`,
		`CREATE ROLE "readonly_user" WITH LOGIN PASSWORD`,
		`CREATE ROLE "backup_user" WITH LOGIN PASSWORD`,
		`CREATE ROLE "pgadmin" WITH LOGIN PASSWORD`,
		`GRANT pg_read_all_data, pg_monitor TO "backup_user";`,
		`ALTER DEFAULT PRIVILEGES IN SCHEMA public GRANT SELECT ON TABLES TO "readonly_user";`,
	} {
		if !strings.Contains(initSQL, want) {
			t.Errorf("init script missing %q", want)
		}
	}
}

func TestServersPreloadShape(t *testing.T) {
	creds := testCreds(t)
	byKind := renderAll(t, testParams(nil), creds, Options{})
	servers := byKind[KindAdminServers]

	if servers.UID != stack.PgAdminUID || servers.GID != stack.PgAdminGID {
		t.Error("servers preload must be owned by the pgadmin identity")
	}

	var preload struct {
		Servers map[string]struct {
			Host          string `json:"Host"`
			Port          int    `json:"Port"`
			MaintenanceDB string `json:"MaintenanceDB"`
			Username      string `json:"Username"`
		} `json:"Servers"`
	}
	if err := json.Unmarshal(servers.Content, &preload); err != nil {
		t.Fatalf("servers preload is not valid JSON: %v", err)
	}
	entry, ok := preload.Servers["1"]
	if !ok {
		t.Fatal("servers preload missing entry 1")
	}
	if entry.Host != "postgres" || entry.Port != 5432 {
		t.Errorf("preload points at %s:%d, want the internal postgres service", entry.Host, entry.Port)
	}
	if entry.Username != stack.RoleAdminUI.DatabaseUser() {
		t.Errorf("preload username = %q", entry.Username)
	}
	for _, role := range stack.Roles() {
		if strings.Contains(string(servers.Content), creds[role]) {
			t.Errorf("servers preload contains %s secret", role)
		}
	}
}

func TestComposeMountsServersPreload(t *testing.T) {
	byKind := renderAll(t, testParams(nil), testCreds(t), Options{})
	compose := string(byKind[KindComposeManifest].Content)
	if !strings.Contains(compose, ServersPath+":/pgadmin4/servers.json:ro") {
		t.Error("compose manifest does not mount the servers preload")
	}
}

func TestRenderRejectsIncompleteCredentials(t *testing.T) {
	creds := testCreds(t)
	delete(creds, stack.RoleBackup)
	rules := hba.NewCompiler().Compile(nil)
	if _, err := Render(testParams(nil), creds, rules, Options{}); err == nil {
		t.Error("expected error for incomplete credential set")
	}
}

func TestSecretFilePermissions(t *testing.T) {
	byKind := renderAll(t, testParams(nil), testCreds(t), Options{})
	for _, kind := range []Kind{KindEnvFile, KindHBAFile, KindInitScript, KindReport} {
		if byKind[kind].Mode != SecretFilePerm {
			t.Errorf("%s mode = %v, want %v", kind, byKind[kind].Mode, SecretFilePerm)
		}
	}
}
