package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/halcyon-eng/statecore/internal/ruleset"
)

// ValidationResult holds rule-set validation results.
type ValidationResult struct {
	Valid bool   `json:"valid"`
	Rules int    `json:"rules"`
	Error string `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <ruleset-file>",
		Short: "Validate a trigger rule-set file",
		Long: `Validate a trigger rule-set file against the schema without touching
the database or the network.

The file is decoded as YAML when it ends in .yaml or .yml, JSON otherwise.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd, args[0])
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command, path string) error {
	formatter := newFormatter(opts, cmd)

	data, err := os.ReadFile(path)
	if err != nil {
		msg := fmt.Sprintf("rule-set file %s not found", path)
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return WrapExitError(ExitCommandError, msg, err)
	}

	var rs ruleset.RuleSet
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		rs, err = ruleset.DecodeYAML(data)
	default:
		rs, err = ruleset.DecodeJSON(data)
	}

	if err != nil {
		if formatter.Format == "json" {
			_ = formatter.Success(ValidationResult{Valid: false, Error: err.Error()})
		} else {
			fmt.Fprintln(formatter.Writer, "✗ Rule set invalid")
			fmt.Fprintf(formatter.Writer, "  %s\n", err)
		}
		return NewExitError(ExitFailure, fmt.Sprintf("rule set %s failed validation", path))
	}

	formatter.VerboseLog("decoded %d rule(s) from %s", len(rs.Rules), path)

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Rules: len(rs.Rules)})
	}

	fmt.Fprintf(formatter.Writer, "✓ Rule set valid (%d rule(s))\n", len(rs.Rules))
	return nil
}
