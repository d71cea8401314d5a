// Package pipeline wires the synthesis stages together: resolve
// parameters, generate credentials, compile access rules, render
// artifacts, gate on confirmation, write the bundle. Each stage
// consumes the prior stage's complete, immutable output.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pgstack/pgstack/pkg/bundle"
	"github.com/pgstack/pgstack/pkg/hba"
	"github.com/pgstack/pgstack/pkg/params"
	"github.com/pgstack/pgstack/pkg/render"
	"github.com/pgstack/pgstack/pkg/secrets"
	"github.com/pgstack/pgstack/pkg/stack"
)

// Options selects non-default pipeline behavior.
type Options struct {
	// KeepCredentials reuses secrets from a prior run's environment
	// file when one exists under the install directory. Fresh secrets
	// are drawn for any role it does not cover.
	KeepCredentials bool

	// ScramPasswords stores SCRAM-SHA-256 verifiers in the
	// initialization script instead of plaintext secrets.
	ScramPasswords bool

	// DryRun stops after rendering: nothing is written.
	DryRun bool
}

// Outcome reports a completed (or dry) run.
type Outcome struct {
	// RunID identifies this generation.
	RunID string

	// Params are the resolved deployment parameters.
	Params *stack.DeploymentParameters

	// Rules is the compiled access-control table.
	Rules []hba.Rule

	// Artifacts is the rendered artifact list.
	Artifacts []render.Artifact

	// Written lists artifact paths persisted to disk. Empty for dry
	// runs.
	Written []string
}

// Pipeline holds the stage implementations. Zero-value fields are
// replaced with defaults by New.
type Pipeline struct {
	Resolver  *params.Resolver
	Generator *secrets.Generator
	Compiler  *hba.Compiler
	Writer    *bundle.Writer
}

// New creates a pipeline with default stage implementations.
func New() *Pipeline {
	return &Pipeline{
		Resolver:  params.NewResolver(),
		Generator: secrets.NewGenerator(),
		Compiler:  hba.NewCompiler(),
		Writer:    bundle.NewWriter(),
	}
}

// Run executes the full pipeline. Everything, including secrets, is
// computed before the confirmation gate; declining the gate returns a
// cancelled-class error and leaves no filesystem trace.
func (p *Pipeline) Run(ctx context.Context, src params.ParameterSource, opts Options) (*Outcome, error) {
	resolved, err := p.Resolver.Resolve(ctx, src)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("dir", resolved.InstallDir).
		Str("host", resolved.HostAddress).
		Int("permitted", len(resolved.PermittedAddresses)).
		Bool("open_access", resolved.OpenAccess()).
		Msg("parameters resolved")

	creds, err := p.credentials(resolved, opts)
	if err != nil {
		return nil, err
	}

	rules := p.Compiler.Compile(resolved.PermittedAddresses)

	renderOpts := render.Options{RunID: uuid.NewString(), Now: time.Now()}
	if opts.ScramPasswords {
		verifiers := make(map[stack.Role]string, len(creds))
		for role, secret := range creds {
			verifier, err := secrets.ScramVerifier(secret)
			if err != nil {
				return nil, err
			}
			verifiers[role] = verifier
		}
		renderOpts.ScramVerifiers = verifiers
	}

	artifacts, err := render.Render(resolved, creds, rules, renderOpts)
	if err != nil {
		return nil, stack.NewValidationError("rendering artifacts", err)
	}

	outcome := &Outcome{
		RunID:     renderOpts.RunID,
		Params:    resolved,
		Rules:     rules,
		Artifacts: artifacts,
	}
	if opts.DryRun {
		return outcome, nil
	}

	// A failed confirmation read is treated like a declined gate:
	// nothing has been written and nothing will be.
	approved, err := src.Confirm(summarize(resolved, rules, artifacts))
	if err != nil {
		return nil, &stack.Error{Class: stack.ClassCancelled, Message: "reading confirmation", Err: err}
	}
	if !approved {
		return nil, stack.NewCancelledError("bundle write declined, nothing written")
	}

	result, err := p.Writer.Write(resolved.InstallDir, artifacts)
	if result != nil {
		outcome.Written = result.Completed
	}
	if err != nil {
		return outcome, err
	}
	log.Info().
		Str("run", outcome.RunID).
		Strs("artifacts", outcome.Written).
		Msg("bundle written")
	return outcome, nil
}

// credentials produces the run's credential set: fresh by default, or
// filled from the prior environment file when preservation was
// requested.
func (p *Pipeline) credentials(resolved *stack.DeploymentParameters, opts Options) (stack.CredentialSet, error) {
	if !opts.KeepCredentials {
		return p.Generator.Generate()
	}

	priorPath := filepath.Join(resolved.InstallDir, render.EnvFilePath)
	prior, err := secrets.LoadPrior(priorPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warn().Str("path", priorPath).Msg("no prior environment file, generating fresh credentials")
			return p.Generator.Generate()
		}
		return nil, stack.NewValidationError("loading prior credentials", err)
	}
	log.Info().Int("preserved", len(prior)).Msg("preserving prior credentials")
	return p.Generator.Fill(prior)
}

// summarize builds the plain-text summary shown at the confirmation
// gate.
func summarize(p *stack.DeploymentParameters, rules []hba.Rule, artifacts []render.Artifact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "About to write %d artifacts to %s\n", len(artifacts), p.InstallDir)
	fmt.Fprintf(&b, "  host address:      %s\n", p.HostAddress)
	fmt.Fprintf(&b, "  access rules:      %d\n", len(rules))
	if p.OpenAccess() {
		b.WriteString("  access mode:       OPEN (no client whitelist)\n")
	} else {
		fmt.Fprintf(&b, "  permitted clients: %s\n", strings.Join(p.PermittedAddresses, ", "))
	}
	for _, a := range artifacts {
		fmt.Fprintf(&b, "  - %s\n", a.Path)
	}
	return b.String()
}
