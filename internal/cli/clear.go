package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/halcyon-eng/statecore/internal/persist"
)

// ClearResult lists the record keys removed from the database.
type ClearResult struct {
	Cleared []string `json:"cleared"`
}

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		all   bool
		forms bool
	)

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the persisted state record",
		Long: `Remove the persisted session state record. Saved form entries and the
cached rule set are kept unless asked for explicitly.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClear(rootOpts, cmd, all, forms)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "also remove saved form entries and the cached rule set")
	cmd.Flags().BoolVar(&forms, "forms", false, "also remove saved form entries")

	return cmd
}

func runClear(opts *RootOptions, cmd *cobra.Command, all, forms bool) error {
	formatter := newFormatter(opts, cmd)

	store, err := openStore(opts, formatter)
	if err != nil {
		return err
	}
	defer store.Close()

	keys := []string{persist.KeyState}
	if all || forms {
		keys = append(keys, persist.KeyForms)
	}
	if all {
		keys = append(keys, persist.KeyRuleSet)
	}

	ctx := context.Background()
	for _, key := range keys {
		if err := store.Delete(ctx, key); err != nil {
			msg := fmt.Sprintf("delete %s record", key)
			_ = formatter.Error(ErrCodeStore, msg, err.Error())
			return WrapExitError(ExitCommandError, msg, err)
		}
		formatter.VerboseLog("removed %s record", key)
	}

	if formatter.Format == "json" {
		return formatter.Success(ClearResult{Cleared: keys})
	}

	fmt.Fprintf(formatter.Writer, "✓ Cleared %d record(s)\n", len(keys))
	return nil
}
