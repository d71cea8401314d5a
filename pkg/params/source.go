// Package params resolves and validates the deployment parameters that
// feed the rest of the synthesis pipeline: install directory, host
// address (with a probe fallback chain), and the permitted client
// address list.
package params

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ParameterSource supplies raw inputs to the resolver. It abstracts
// interactive terminal prompting from flag/environment input so the
// pipeline is testable without a TTY.
type ParameterSource interface {
	// InstallDir returns the install directory, given the default.
	InstallDir(defaultDir string) (string, error)

	// HostAddress returns an explicit host address, or empty to
	// request auto-detection.
	HostAddress() (string, error)

	// PermittedAddresses returns the raw permitted client address
	// list. Entries may be unclean; the resolver trims and validates.
	PermittedAddresses() ([]string, error)

	// Confirm asks the operator to approve writing the bundle.
	Confirm(summary string) (bool, error)
}

// FlagSource is a non-interactive ParameterSource fed entirely from
// flags and environment input. It never reads a terminal.
type FlagSource struct {
	// Dir overrides the install directory when non-empty.
	Dir string

	// Host is the explicit host address, empty for auto-detection.
	Host string

	// Permitted is the raw permitted address list.
	Permitted []string

	// AssumeYes approves the confirmation gate without prompting.
	AssumeYes bool
}

// InstallDir returns the override or the default.
func (s *FlagSource) InstallDir(defaultDir string) (string, error) {
	if s.Dir != "" {
		return s.Dir, nil
	}
	return defaultDir, nil
}

// HostAddress returns the explicit address, empty for auto-detection.
func (s *FlagSource) HostAddress() (string, error) {
	return s.Host, nil
}

// PermittedAddresses returns the flag-supplied list.
func (s *FlagSource) PermittedAddresses() ([]string, error) {
	return s.Permitted, nil
}

// Confirm approves only when AssumeYes was set; a non-interactive run
// without --yes is a refusal, not a prompt.
func (s *FlagSource) Confirm(string) (bool, error) {
	return s.AssumeYes, nil
}

// TerminalSource prompts an interactive operator. Flag values, when
// set, pre-seed the answers and skip the corresponding prompt.
type TerminalSource struct {
	// In is the terminal input stream.
	In io.Reader

	// Out is where prompts are printed.
	Out io.Writer

	// Dir, Host and Permitted pre-seed answers from flags.
	Dir       string
	Host      string
	Permitted []string

	reader *bufio.Reader
}

func (s *TerminalSource) line() (string, error) {
	if s.reader == nil {
		s.reader = bufio.NewReader(s.In)
	}
	text, err := s.reader.ReadString('\n')
	if err != nil && text == "" {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// InstallDir prompts for the install directory, offering the default.
func (s *TerminalSource) InstallDir(defaultDir string) (string, error) {
	if s.Dir != "" {
		return s.Dir, nil
	}
	fmt.Fprintf(s.Out, "Install directory [%s]: ", defaultDir)
	answer, err := s.line()
	if err != nil {
		return "", err
	}
	if answer == "" {
		return defaultDir, nil
	}
	return answer, nil
}

// HostAddress returns the pre-seeded address; detection is preferred
// interactively, so no prompt is issued.
func (s *TerminalSource) HostAddress() (string, error) {
	return s.Host, nil
}

// PermittedAddresses prompts for a comma-separated whitelist. An empty
// answer selects open access, which the report flags later.
func (s *TerminalSource) PermittedAddresses() ([]string, error) {
	if len(s.Permitted) > 0 {
		return s.Permitted, nil
	}
	fmt.Fprint(s.Out, "Permitted client addresses, comma-separated (empty = open access): ")
	answer, err := s.line()
	if err != nil {
		return nil, err
	}
	if answer == "" {
		return nil, nil
	}
	return strings.Split(answer, ","), nil
}

// Confirm prints the summary and asks for explicit approval.
func (s *TerminalSource) Confirm(summary string) (bool, error) {
	fmt.Fprintln(s.Out, summary)
	fmt.Fprint(s.Out, "Write bundle to disk? [y/N]: ")
	answer, err := s.line()
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}
