// Package secrets generates role credentials and the optional
// SCRAM-SHA-256 verifiers derived from them.
package secrets

import (
	"bufio"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pgstack/pgstack/pkg/stack"
)

// SecretLength is the fixed length of every generated secret.
const SecretLength = 12

// alphabet is deliberately alphanumeric-only so secrets never need
// escaping in any rendered artifact format.
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Generator draws secrets from a cryptographically strong source.
type Generator struct {
	// Rand is the entropy source. Defaults to crypto/rand.Reader.
	Rand io.Reader
}

// NewGenerator creates a generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{Rand: rand.Reader}
}

// Generate draws one fresh secret per role in the fixed role set.
func (g *Generator) Generate() (stack.CredentialSet, error) {
	creds := make(stack.CredentialSet, len(stack.Roles()))
	for _, role := range stack.Roles() {
		secret, err := g.Secret()
		if err != nil {
			return nil, err
		}
		creds[role] = secret
	}
	return creds, nil
}

// Fill returns a copy of prior with fresh secrets drawn for every role
// missing from it. Used by the keep-credentials option.
func (g *Generator) Fill(prior stack.CredentialSet) (stack.CredentialSet, error) {
	creds := make(stack.CredentialSet, len(stack.Roles()))
	for _, role := range stack.Roles() {
		if secret, ok := prior[role]; ok && secret != "" {
			creds[role] = secret
			continue
		}
		secret, err := g.Secret()
		if err != nil {
			return nil, err
		}
		creds[role] = secret
	}
	return creds, nil
}

// Secret draws one secret. Bytes outside the alphabet's unbiased range
// are rejected and redrawn, so every character is uniform over the
// alphabet.
func (g *Generator) Secret() (string, error) {
	source := g.Rand
	if source == nil {
		source = rand.Reader
	}

	// Largest multiple of len(alphabet) below 256; bytes at or above
	// it would bias the low characters.
	limit := byte(256 - 256%len(alphabet))

	var b strings.Builder
	b.Grow(SecretLength)
	buf := make([]byte, 1)
	for b.Len() < SecretLength {
		if _, err := io.ReadFull(source, buf); err != nil {
			return "", stack.NewEntropyError("random source unavailable", err)
		}
		if buf[0] >= limit {
			continue
		}
		b.WriteByte(alphabet[int(buf[0])%len(alphabet)])
	}
	return b.String(), nil
}

// LoadPrior parses a previously written environment file and recovers
// the role secrets it carries. Unknown keys are ignored.
func LoadPrior(path string) (stack.CredentialSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening prior environment file: %w", err)
	}
	defer f.Close()

	keyToRole := make(map[string]stack.Role, len(stack.Roles()))
	for _, role := range stack.Roles() {
		keyToRole[role.EnvKey()] = role
	}

	creds := make(stack.CredentialSet)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		if role, ok := keyToRole[key]; ok {
			creds[role] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading prior environment file: %w", err)
	}
	return creds, nil
}
