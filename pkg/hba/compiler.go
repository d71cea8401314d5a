// Package hba compiles the permitted client address list into the
// ordered host-based-authentication rule table consumed by the
// database. First matching rule wins, so ordering is the whole point:
// trusted/internal sources, then explicit allows, then the terminal
// reject pair.
package hba

import (
	"strings"

	"github.com/pgstack/pgstack/pkg/stack"
)

// Scope classifies where a rule's traffic originates.
type Scope string

const (
	// ScopeLocal covers the unix socket, loopback, and the stack's
	// internal container network.
	ScopeLocal Scope = "local"

	// ScopeNetwork covers operator-whitelisted external sources and
	// the terminal reject pair.
	ScopeNetwork Scope = "network"
)

// Method is the authentication method a rule applies.
type Method string

const (
	// MethodPeer maps unix-socket connections onto OS identity.
	MethodPeer Method = "peer"

	// MethodScram is SCRAM-SHA-256 challenge/response, the strongest
	// password method the database supports.
	MethodScram Method = "scram-sha-256"

	// MethodReject refuses the connection outright.
	MethodReject Method = "reject"
)

// ConnType is the pg_hba connection type column.
type ConnType string

const (
	// ConnLocal is a unix domain socket connection.
	ConnLocal ConnType = "local"

	// ConnHost is a TCP connection, plain or TLS.
	ConnHost ConnType = "host"
)

// Rule is one ordered entry in the compiled access-control table.
type Rule struct {
	// Priority is the evaluation position, starting at 0.
	Priority int

	// Conn is the connection type column.
	Conn ConnType

	// Database and User are the pg_hba match columns; compiled rules
	// always use "all".
	Database string
	User     string

	// Address is the source address or CIDR. Empty for unix-socket
	// rules, which have no address column.
	Address string

	// Method is the authentication method applied on match.
	Method Method

	// Scope classifies the rule for reporting.
	Scope Scope
}

// universalRejects is the terminal reject pair, one entry per address
// family.
var universalRejects = []string{"0.0.0.0/0", "::/0"}

// Compiler turns a permitted address list into the ordered rule table.
type Compiler struct {
	// Trusted are the implicitly trusted network sources, granted the
	// strongest password method ahead of any explicit allow. Defaults
	// to loopback (both families) and the container subnet.
	Trusted []string
}

// NewCompiler creates a compiler with the default trusted sources.
func NewCompiler() *Compiler {
	return &Compiler{
		Trusted: []string{stack.LoopbackV4, stack.LoopbackV6, stack.ContainerSubnet},
	}
}

// Compile produces the ordered rule table for the permitted list. The
// list must already be validated and de-duplicated by the resolver.
//
// An empty permitted list yields no terminal reject pair: that is the
// open-access configuration, which the caller must surface to the
// operator.
func (c *Compiler) Compile(permitted []string) []Rule {
	var rules []Rule
	add := func(conn ConnType, address string, method Method, scope Scope) {
		rules = append(rules, Rule{
			Priority: len(rules),
			Conn:     conn,
			Database: "all",
			User:     "all",
			Address:  address,
			Method:   method,
			Scope:    scope,
		})
	}

	add(ConnLocal, "", MethodPeer, ScopeLocal)
	for _, source := range c.Trusted {
		add(ConnHost, source, MethodScram, ScopeLocal)
	}

	for _, addr := range permitted {
		add(ConnHost, hostCIDR(addr), MethodScram, ScopeNetwork)
	}

	if len(permitted) > 0 {
		for _, universe := range universalRejects {
			add(ConnHost, universe, MethodReject, ScopeNetwork)
		}
	}
	return rules
}

// hostCIDR normalizes a bare address to its single-host CIDR so every
// rendered address column carries an explicit prefix length.
func hostCIDR(addr string) string {
	if strings.Contains(addr, "/") {
		return addr
	}
	if strings.Contains(addr, ":") {
		return addr + "/128"
	}
	return addr + "/32"
}
