package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/insiderwatch/insiderwatch/internal/risk"
)

// Exit codes of the policy validate command.
const (
	ExitOK            = 0
	ExitUsage         = 1
	ExitInvalidPolicy = 10
)

// PolicyValidateOptions defines available flags for the policy validate command.
type PolicyValidateOptions struct {
	Path       string
	Base       risk.Policy
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// PolicyValidateSummary describes the JSON response for policy validate.
type PolicyValidateSummary struct {
	OK     bool          `json:"ok"`
	Error  string        `json:"error,omitempty"`
	Policy *PolicyFields `json:"policy,omitempty"`
}

// PolicyFields is the effective policy after the file overlay.
type PolicyFields struct {
	Threshold int               `json:"threshold"`
	Weights   map[string]int    `json:"weights"`
	Bands     map[string]string `json:"bands"`
}

// ValidatePolicyCommand checks a policy file against the base policy and
// prints the effective result. It returns the process exit code.
func ValidatePolicyCommand(opts PolicyValidateOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Path == "" {
		_, _ = fmt.Fprintln(opts.Stderr, "policy validate: a policy file is required")
		return ExitUsage
	}
	data, err := os.ReadFile(opts.Path)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "policy validate: %v\n", err)
		return ExitUsage
	}

	summary := PolicyValidateSummary{OK: true}
	policy, perr := risk.ParsePolicy(data, opts.Base)
	if perr != nil {
		summary.OK = false
		summary.Error = perr.Error()
	} else {
		summary.Policy = policyFields(policy)
	}

	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "policy validate: encode json: %v\n", err)
			return ExitUsage
		}
	} else {
		renderPolicyHuman(opts.Stdout, opts.Path, summary)
	}
	if !summary.OK {
		return ExitInvalidPolicy
	}
	return ExitOK
}

func policyFields(p risk.Policy) *PolicyFields {
	return &PolicyFields{
		Threshold: p.Threshold,
		Weights: map[string]int{
			"policy_violation":  p.Weights.PolicyViolation,
			"excessive_records": p.Weights.ExcessiveRecords,
			"off_hour_access":   p.Weights.OffHourAccess,
			"high_frequency":    p.Weights.HighFrequency,
		},
		Bands: map[string]string{
			string(risk.LevelLow):    p.Bands.Low.String(),
			string(risk.LevelMedium): p.Bands.Medium.String(),
			string(risk.LevelHigh):   p.Bands.High.String(),
		},
	}
}

func renderPolicyHuman(out io.Writer, path string, summary PolicyValidateSummary) {
	if !summary.OK {
		_, _ = fmt.Fprintf(out, "%s is invalid: %s\n", path, summary.Error)
		return
	}
	p := summary.Policy
	_, _ = fmt.Fprintf(out, "%s is valid\n", path)
	_, _ = fmt.Fprintf(out, "threshold: %d\n", p.Threshold)
	for _, name := range []string{"policy_violation", "excessive_records", "off_hour_access", "high_frequency"} {
		_, _ = fmt.Fprintf(out, "weight %s: %d\n", name, p.Weights[name])
	}
	for _, level := range []risk.Level{risk.LevelLow, risk.LevelMedium, risk.LevelHigh} {
		_, _ = fmt.Fprintf(out, "band %s: %s\n", level, p.Bands[string(level)])
	}
}
