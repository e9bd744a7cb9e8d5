package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/latticeiam/aclnet/internal/httpcore"
)

func newFetchCmd() *cobra.Command {
	var (
		maxAttempts int
		timeoutSecs float64
	)

	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Fetch a URL through the retrying, authenticated HTTP client core",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			opts := httpcore.RequestOptions{
				HasStream:   true,
				Stream:      false,
				HasRetry50x: true,
				Retry50x:    true,
			}

			if maxAttempts > 0 {
				opts.MaxAttempts = maxAttempts
			}

			if timeoutSecs > 0 {
				opts.HasTimeout = true
				opts.TimeoutSecs = timeoutSecs
			}

			body, err := cc.Net.URLOpenBuffered(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}

			if body == nil {
				return fmt.Errorf("fetch: request failed after retries (see logs with --verbose)")
			}

			cmd.OutOrStdout().Write(body)

			return nil
		},
	}

	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "override default max attempts (30)")
	cmd.Flags().Float64Var(&timeoutSecs, "timeout", 0, "override default wall-clock timeout in seconds (360)")

	return cmd
}
