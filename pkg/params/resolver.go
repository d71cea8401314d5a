package params

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/pgstack/pgstack/pkg/stack"
)

// DefaultProbes are the address-echo services tried, in order, when no
// explicit host address is supplied. Each returns the caller's public
// address as plain text.
var DefaultProbes = []string{
	"https://api.ipify.org",
	"https://ifconfig.me/ip",
	"https://icanhazip.com",
}

// DefaultProbeTimeout bounds each individual probe. The chain's total
// wait is the sum of per-probe timeouts.
const DefaultProbeTimeout = 3 * time.Second

// maxProbeBody caps how much of a probe response is read.
const maxProbeBody = 64

// Resolver validates raw inputs into DeploymentParameters.
type Resolver struct {
	// Probes overrides DefaultProbes when non-nil.
	Probes []string

	// ProbeTimeout overrides DefaultProbeTimeout when positive.
	ProbeTimeout time.Duration

	// Client is the HTTP client used for probes. Defaults to
	// http.DefaultClient.
	Client *http.Client

	validate *validator.Validate
}

// NewResolver creates a resolver with default probes and timeouts.
func NewResolver() *Resolver {
	return &Resolver{
		Probes:       DefaultProbes,
		ProbeTimeout: DefaultProbeTimeout,
		Client:       http.DefaultClient,
		validate:     validator.New(),
	}
}

// Resolve gathers inputs from the source and returns validated,
// immutable DeploymentParameters. It has no side effects beyond the
// bounded network probes used for address auto-detection.
func (r *Resolver) Resolve(ctx context.Context, src ParameterSource) (*stack.DeploymentParameters, error) {
	dir, err := src.InstallDir(stack.DefaultInstallDir)
	if err != nil {
		return nil, stack.NewValidationError("reading install directory", err)
	}
	dir = strings.TrimSpace(dir)
	if !filepath.IsAbs(dir) {
		return nil, stack.NewValidationError(
			fmt.Sprintf("install directory must be an absolute path, got %q", dir), nil)
	}
	dir = filepath.Clean(dir)

	host, err := src.HostAddress()
	if err != nil {
		return nil, stack.NewValidationError("reading host address", err)
	}
	host = strings.TrimSpace(host)
	degraded := false
	if host == "" {
		host, degraded = r.detectHostAddress(ctx)
	} else if net.ParseIP(host) == nil {
		return nil, stack.NewValidationError(
			fmt.Sprintf("host address %q is not a valid IP address", host), nil)
	}

	raw, err := src.PermittedAddresses()
	if err != nil {
		return nil, stack.NewValidationError("reading permitted addresses", err)
	}
	permitted, err := r.CleanPermitted(raw)
	if err != nil {
		return nil, err
	}

	p := &stack.DeploymentParameters{
		InstallDir:         dir,
		HostAddress:        host,
		AddressDegraded:    degraded,
		PermittedAddresses: permitted,
		DatabasePort:       stack.DefaultDatabasePort,
		AdminUIPort:        stack.DefaultAdminUIPort,
		DatabaseName:       stack.DefaultDatabaseName,
	}

	if err := r.validator().Struct(p); err != nil {
		return nil, stack.NewValidationError("deployment parameters failed validation", err)
	}
	return p, nil
}

// CleanPermitted trims, validates and de-duplicates a raw whitelist
// while preserving first-seen order. Callers that only need the rule
// table can use it without running full resolution.
func (r *Resolver) CleanPermitted(raw []string) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})
	for _, entry := range raw {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if err := r.validator().Var(entry, "ip|cidr"); err != nil {
			return nil, stack.NewValidationError(
				fmt.Sprintf("permitted address %q is not a valid IP address or CIDR", entry), err)
		}
		if _, dup := seen[entry]; dup {
			continue
		}
		seen[entry] = struct{}{}
		out = append(out, entry)
	}
	return out, nil
}

// detectHostAddress walks the probe fallback chain: each echo service
// in sequence with an independent timeout, then the machine's outbound
// interface address, then the placeholder literal. Probe failures are
// recovered here and never surfaced to the caller.
func (r *Resolver) detectHostAddress(ctx context.Context) (string, bool) {
	for _, probe := range r.probes() {
		addr, err := r.queryProbe(ctx, probe)
		if err != nil {
			log.Debug().Err(err).Str("probe", probe).Msg("address probe failed")
			continue
		}
		log.Debug().Str("probe", probe).Str("address", addr).Msg("address probe succeeded")
		return addr, false
	}

	if addr, err := localAddress(); err == nil {
		log.Debug().Str("address", addr).Msg("using local interface address")
		return addr, false
	}

	log.Warn().Msg("host address detection failed, using placeholder")
	return stack.PlaceholderAddress, true
}

// queryProbe asks one echo service for our address, bounded by the
// per-probe timeout.
func (r *Resolver) queryProbe(ctx context.Context, url string) (string, error) {
	probeCtx, cancel := context.WithTimeout(ctx, r.probeTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, url, nil)
	if err != nil {
		return "", stack.NewProbeError("building probe request", err)
	}
	resp, err := r.client().Do(req)
	if err != nil {
		return "", stack.NewProbeError("probe request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", stack.NewProbeError(fmt.Sprintf("probe returned status %d", resp.StatusCode), nil)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBody))
	if err != nil {
		return "", stack.NewProbeError("reading probe response", err)
	}
	addr := strings.TrimSpace(string(body))
	if net.ParseIP(addr) == nil {
		return "", stack.NewProbeError(fmt.Sprintf("probe returned %q, not an IP address", addr), nil)
	}
	return addr, nil
}

// localAddress finds the machine's outbound interface address. The UDP
// dial sends no packets; it only selects a route.
func localAddress() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP.IsUnspecified() {
		return "", fmt.Errorf("no usable local address")
	}
	return addr.IP.String(), nil
}

func (r *Resolver) probes() []string {
	if r.Probes != nil {
		return r.Probes
	}
	return DefaultProbes
}

func (r *Resolver) probeTimeout() time.Duration {
	if r.ProbeTimeout > 0 {
		return r.ProbeTimeout
	}
	return DefaultProbeTimeout
}

func (r *Resolver) client() *http.Client {
	if r.Client != nil {
		return r.Client
	}
	return http.DefaultClient
}

func (r *Resolver) validator() *validator.Validate {
	if r.validate == nil {
		r.validate = validator.New()
	}
	return r.validate
}
