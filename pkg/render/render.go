package render

import (
	"fmt"
	"time"

	"github.com/pgstack/pgstack/pkg/hba"
	"github.com/pgstack/pgstack/pkg/stack"
)

// Options adjusts rendering. The zero value is the default bundle.
type Options struct {
	// RunID labels the report with this generation's identifier.
	RunID string

	// Now is the report timestamp. Zero means time.Now.
	Now time.Time

	// ScramVerifiers, when non-nil, replaces each role's plaintext
	// secret in the initialization script with its pre-computed
	// SCRAM-SHA-256 verifier. Every role must be present.
	ScramVerifiers map[stack.Role]string
}

// Render is a pure mapping from the resolved inputs to the full
// artifact list. It performs no I/O and no randomness; verifiers are
// computed by the caller so the same inputs always render identically.
func Render(p *stack.DeploymentParameters, creds stack.CredentialSet, rules []hba.Rule, opts Options) ([]Artifact, error) {
	for _, role := range stack.Roles() {
		if _, ok := creds.Secret(role); !ok {
			return nil, fmt.Errorf("credential set is missing role %s", role)
		}
	}

	passwords := make(map[stack.Role]string, len(creds))
	for role, secret := range creds {
		passwords[role] = secret
	}
	if opts.ScramVerifiers != nil {
		for _, role := range stack.Roles() {
			verifier, ok := opts.ScramVerifiers[role]
			if !ok {
				return nil, fmt.Errorf("scram verifier missing for role %s", role)
			}
			passwords[role] = verifier
		}
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	compose, err := renderCompose(p)
	if err != nil {
		return nil, err
	}
	servers, err := renderServers(p)
	if err != nil {
		return nil, err
	}

	return []Artifact{
		renderEnvFile(p, creds),
		compose,
		renderHBAFile(rules),
		renderInitScript(p, passwords),
		servers,
		renderReport(p, creds, rules, opts.RunID, now),
	}, nil
}
