package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/halcyon-eng/statecore/internal/persist"
	"github.com/halcyon-eng/statecore/internal/state"
)

// InspectResult holds the inspected slice of the state tree.
type InspectResult struct {
	Path      string            `json:"path,omitempty"`
	Age       string            `json:"age"`
	Stale     bool              `json:"stale"`
	CacheAges map[string]string `json:"cache_ages,omitempty"`
	Value     any               `json:"value"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	var stale bool

	cmd := &cobra.Command{
		Use:   "inspect [dot.path]",
		Short: "Print the persisted state tree",
		Long: `Print the persisted session state tree, or the value at a dot-separated
path inside it (for example "cart.productCount").

By default a record past its retention window is reported as missing;
--stale reads it anyway.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runInspect(rootOpts, cmd, path, stale)
		},
	}

	cmd.Flags().BoolVar(&stale, "stale", false, "read the record even if its retention window has lapsed")

	return cmd
}

func runInspect(opts *RootOptions, cmd *cobra.Command, path string, stale bool) error {
	formatter := newFormatter(opts, cmd)

	store, err := openStore(opts, formatter)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()

	var rec persist.Record
	if stale {
		rec, err = store.GetStale(ctx, persist.KeyState)
	} else {
		rec, err = store.Get(ctx, persist.KeyState, state.DefaultStateTTL)
	}
	if err != nil {
		if errors.Is(err, persist.ErrNotFound) {
			msg := "no usable state record (try --stale for expired records)"
			_ = formatter.Error(ErrCodeNotFound, msg, nil)
			return NewExitError(ExitFailure, msg)
		}
		_ = formatter.Error(ErrCodeStore, "read state record", err.Error())
		return WrapExitError(ExitCommandError, "read state record", err)
	}

	var tree state.Tree
	if err := json.Unmarshal(rec.Value, &tree); err != nil {
		_ = formatter.Error(ErrCodeStore, "state record is corrupt", err.Error())
		return WrapExitError(ExitCommandError, "state record is corrupt", err)
	}

	age := time.Since(rec.WrittenAt).Round(time.Second)
	formatter.VerboseLog("state record written %s ago", age)

	cacheAges := map[string]string{}
	for _, key := range []string{persist.KeyState, persist.KeyForms, persist.KeyRuleSet} {
		if a, ageErr := store.Age(ctx, key); ageErr == nil {
			cacheAges[key] = a.Round(time.Second).String()
		}
	}

	var value any = tree
	if path != "" {
		v, ok := state.Lookup(tree, path)
		if !ok {
			msg := fmt.Sprintf("path %q not present in state tree", path)
			_ = formatter.Error(ErrCodeNotFound, msg, nil)
			return NewExitError(ExitFailure, msg)
		}
		value = v
	}

	result := InspectResult{
		Path:      path,
		Age:       age.String(),
		Stale:     age > state.DefaultStateTTL,
		CacheAges: cacheAges,
		Value:     value,
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	pretty, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return WrapExitError(ExitCommandError, "render state tree", err)
	}
	fmt.Fprintln(formatter.Writer, string(pretty))
	return nil
}
