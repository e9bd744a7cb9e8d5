package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/latticeiam/aclnet/internal/authconfig"
	"github.com/latticeiam/aclnet/internal/httpcore"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd.
var (
	flagConfigPath string
	flagVerbose    bool
	flagJSON       bool
)

// cliContextKey is the context key for *CLIContext.
type cliContextKey struct{}

// CLIContext bundles the resolved auth config, logger, and a ready
// httpcore.ClientContext. Built once in PersistentPreRunE, mirroring the
// teacher's root.go CLIContext pattern.
type CLIContext struct {
	Cfg    *authconfig.Config
	Logger *slog.Logger
	Net    *httpcore.ClientContext
}

func cliContextFrom(ctx context.Context) *CLIContext {
	cc, _ := ctx.Value(cliContextKey{}).(*CLIContext)
	return cc
}

func mustCLIContext(ctx context.Context) *CLIContext {
	cc := cliContextFrom(ctx)
	if cc == nil {
		panic("BUG: CLIContext not found in context — PersistentPreRunE should have set it")
	}

	return cc
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "aclnetctl",
		Short:         "HTTP client core diagnostic CLI",
		Long:          "aclnetctl drives the aclnet HTTP client core directly: fetch URLs, manage auth policy, inspect cookies and the audit ledger.",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadCLIContext(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", defaultConfigPath(), "auth config file path")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "accepted but not used: no command changes its output for it")

	cmd.AddCommand(newFetchCmd())
	cmd.AddCommand(newAuthCmd())
	cmd.AddCommand(newCookiesCmd())
	cmd.AddCommand(newServeDiagCmd())

	return cmd
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".aclnet.toml"
	}

	return home + "/.aclnet.toml"
}

func loadCLIContext(cmd *cobra.Command) error {
	logger := buildLogger()

	cfg, err := authconfig.Load(flagConfigPath, logger)
	if err != nil {
		return err
	}

	cookiePath, err := httpcore.DefaultCookiePath()
	if err != nil {
		return err
	}

	netCtx := httpcore.NewClientContext(cookiePath, logger)
	netCtx.ApplyConfig(cfg)

	cc := &CLIContext{Cfg: cfg, Logger: logger, Net: netCtx}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cc))

	return nil
}

func buildLogger() *slog.Logger {
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
