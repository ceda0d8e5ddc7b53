package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/halcyon-eng/statecore/internal/persist"
	"github.com/halcyon-eng/statecore/internal/ruleset"
)

// FetchResult summarizes a rule-set fetch.
type FetchResult struct {
	URL    string   `json:"url"`
	Rules  int      `json:"rules"`
	Events []string `json:"events,omitempty"`
	Cached bool     `json:"cached"`
}

// NewFetchCommand creates the fetch command.
func NewFetchCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		noCache bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Fetch and cache the trigger rule set",
		Long: `Fetch the trigger rule set from a remote endpoint, validate it against
the schema, and cache it in the state database.

A cached copy within its freshness window is served without a request.
--no-cache fetches unconditionally and skips the database entirely.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(rootOpts, cmd, args[0], noCache, timeout)
		},
	}

	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the cached copy and do not store the result")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")

	return cmd
}

func runFetch(opts *RootOptions, cmd *cobra.Command, url string, noCache bool, timeout time.Duration) error {
	formatter := newFormatter(opts, cmd)
	ctx := context.Background()

	var store *persist.Store
	if !noCache {
		s, err := openStore(opts, formatter)
		if err != nil {
			return err
		}
		defer s.Close()
		store = s
	}

	fetcher := ruleset.NewFetcher(url, store)
	fetcher.Client.Timeout = timeout

	start := time.Now()
	rules, err := fetcher.Load(ctx)
	if err != nil {
		msg := fmt.Sprintf("fetch rule set from %s", url)
		_ = formatter.Error(ErrCodeFetch, msg, err.Error())
		return WrapExitError(ExitFailure, msg, err)
	}

	formatter.VerboseLog("rule set loaded in %s", time.Since(start).Round(time.Millisecond))

	events := make([]string, 0, len(rules))
	for _, r := range rules {
		events = append(events, r.Event)
	}

	result := FetchResult{
		URL:    url,
		Rules:  len(rules),
		Events: events,
		Cached: store != nil,
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Rule set loaded (%d rule(s))\n", len(rules))
	for _, ev := range events {
		fmt.Fprintf(formatter.Writer, "  - %s\n", ev)
	}
	return nil
}
