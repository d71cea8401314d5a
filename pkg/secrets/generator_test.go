package secrets

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pgstack/pgstack/pkg/stack"
)

func TestGenerateCoversEveryRole(t *testing.T) {
	creds, err := NewGenerator().Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	for _, role := range stack.Roles() {
		secret, ok := creds.Secret(role)
		if !ok {
			t.Errorf("role %s has no secret", role)
		}
		if len(secret) != SecretLength {
			t.Errorf("role %s secret length = %d, want %d", role, len(secret), SecretLength)
		}
	}
}

func TestSecretsAreAlphanumeric(t *testing.T) {
	g := NewGenerator()
	for i := 0; i < 10000; i++ {
		secret, err := g.Secret()
		if err != nil {
			t.Fatalf("Secret() error = %v", err)
		}
		if secret == "" {
			t.Fatal("empty secret")
		}
		for _, c := range secret {
			switch {
			case c >= 'A' && c <= 'Z':
			case c >= 'a' && c <= 'z':
			case c >= '0' && c <= '9':
			default:
				t.Fatalf("secret %q contains %q outside [A-Za-z0-9]", secret, c)
			}
		}
	}
}

func TestTwoRunsShareNoSecrets(t *testing.T) {
	g := NewGenerator()
	first, err := g.Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	second, err := g.Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	for _, role := range stack.Roles() {
		if first[role] == second[role] {
			t.Errorf("role %s secret repeated across runs", role)
		}
	}
}

func TestSecretFailsWithoutEntropy(t *testing.T) {
	g := &Generator{Rand: &failingReader{}}
	_, err := g.Secret()
	var serr *stack.Error
	if !errors.As(err, &serr) || serr.Class != stack.ClassEntropy {
		t.Fatalf("Secret() error = %v, want entropy class", err)
	}
}

type failingReader struct{}

func (*failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy exhausted")
}

func TestFillPreservesPriorSecrets(t *testing.T) {
	prior := stack.CredentialSet{
		stack.RoleApplication: "KeepMe123456",
	}
	creds, err := NewGenerator().Fill(prior)
	if err != nil {
		t.Fatalf("Fill() error = %v", err)
	}
	if creds[stack.RoleApplication] != "KeepMe123456" {
		t.Errorf("application secret = %q, want preserved value", creds[stack.RoleApplication])
	}
	for _, role := range stack.Roles() {
		if creds[role] == "" {
			t.Errorf("role %s missing after Fill", role)
		}
	}
}

func TestLoadPrior(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := strings.Join([]string{
		"# generated bundle",
		"POSTGRES_PASSWORD=AdminSecret1",
		"APP_PASSWORD=AppSecret9999",
		"PGSTACK_HOST=203.0.113.9",
		"not a pair",
		"",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	creds, err := LoadPrior(path)
	if err != nil {
		t.Fatalf("LoadPrior() error = %v", err)
	}
	if creds[stack.RoleAdministrator] != "AdminSecret1" {
		t.Errorf("administrator = %q", creds[stack.RoleAdministrator])
	}
	if creds[stack.RoleApplication] != "AppSecret9999" {
		t.Errorf("application = %q", creds[stack.RoleApplication])
	}
	if _, ok := creds[stack.RoleBackup]; ok {
		t.Error("backup role should be absent from prior set")
	}
}

func TestScramVerifierFormat(t *testing.T) {
	v, err := ScramVerifier("Secret123456")
	if err != nil {
		t.Fatalf("ScramVerifier() error = %v", err)
	}
	if !strings.HasPrefix(v, "SCRAM-SHA-256$4096:") {
		t.Errorf("verifier %q missing mechanism/iteration prefix", v)
	}
	mechanism, rest, _ := strings.Cut(v, "$")
	if mechanism != "SCRAM-SHA-256" {
		t.Errorf("mechanism = %q", mechanism)
	}
	saltPart, keys, found := strings.Cut(rest, "$")
	if !found {
		t.Fatalf("verifier %q missing key section", v)
	}
	if _, salt, ok := strings.Cut(saltPart, ":"); !ok || salt == "" {
		t.Errorf("verifier %q missing salt", v)
	}
	if stored, server, ok := strings.Cut(keys, ":"); !ok || stored == "" || server == "" {
		t.Errorf("verifier %q missing stored/server keys", v)
	}
}

func TestScramVerifierSaltsDiffer(t *testing.T) {
	a, err := ScramVerifier("Secret123456")
	if err != nil {
		t.Fatal(err)
	}
	b, err := ScramVerifier("Secret123456")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("two verifiers of the same secret must use different salts")
	}
}
