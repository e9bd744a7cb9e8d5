package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/latticeiam/aclnet/internal/authaudit"
	"github.com/latticeiam/aclnet/internal/httpcore"
	"github.com/latticeiam/aclnet/internal/loginbridge"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:                "auth",
		Short:              "Manage the authentication policy",
		Annotations:        map[string]string{},
	}

	cmd.AddCommand(newAuthConfigureCmd())
	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthLogoutCmd())
	cmd.AddCommand(newAuthAuditCmd())

	return cmd
}

func newAuthConfigureCmd() *cobra.Command {
	var (
		defaultMethod string
		host          string
		method        string
	)

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Install or update the auth policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			perHost := map[string]httpcore.AuthMethod{}
			if host != "" {
				if method == "" {
					return fmt.Errorf("configure: --method is required with --host")
				}

				perHost[host] = httpcore.AuthMethod(method)
			}

			def := httpcore.AuthMethod(defaultMethod)
			cc.Net.ConfigureAuth(def, perHost, httpcore.OAuthOptions{
				ClientID: cc.Cfg.Auth.ClientID,
				Scopes:   cc.Cfg.Auth.Scopes,
				AuthURL:  cc.Cfg.Auth.AuthURL,
				TokenURL: cc.Cfg.Auth.TokenURL,
			})

			fmt.Fprintln(cmd.OutOrStdout(), "auth policy updated for this process")

			return nil
		},
	}

	cmd.Flags().StringVar(&defaultMethod, "default", "", "default auth method: oauth|cookie|bot|none")
	cmd.Flags().StringVar(&host, "host", "", "host to override (requires --method)")
	cmd.Flags().StringVar(&method, "method", "", "auth method for --host")

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var (
		host        string
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Force an authenticator login for a host",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			if host == "" {
				return fmt.Errorf("login: --host is required")
			}

			svc, err := cc.Net.GetService(host)
			if err != nil {
				return err
			}

			var bridge *loginbridge.Bridge

			if interactive {
				bridge = loginbridge.New(cc.Logger)

				confirmURL, startErr := bridge.Start()
				if startErr != nil {
					return startErr
				}
				defer bridge.Close()

				fmt.Fprintf(cmd.OutOrStdout(), "waiting for login confirmation on %s\n", confirmURL)

				go func() {
					ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
					defer cancel()

					if msg, waitErr := bridge.WaitForConfirmation(ctx); waitErr == nil {
						cc.Logger.Debug("interactive login confirmed", "host", host, "message", msg)
					}
				}()
			}

			ok := cc.Net.Login(svc.Auth, interactive)

			recordAuditBestEffort(cc, host, "login", ok)

			if !ok {
				return fmt.Errorf("login: failed for host %s", host)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "login succeeded for %s\n", host)

			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "host to log in to")
	cmd.Flags().BoolVar(&interactive, "interactive", false, "allow an interactive credential prompt")

	return cmd
}

func newAuthLogoutCmd() *cobra.Command {
	var host string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Clear cached credentials for a host",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			if host == "" {
				return fmt.Errorf("logout: --host is required")
			}

			svc, err := cc.Net.GetService(host)
			if err != nil {
				return err
			}

			svc.Auth.Logout()

			recordAuditBestEffort(cc, host, "logout", true)

			fmt.Fprintf(cmd.OutOrStdout(), "logged out of %s\n", host)

			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "host to log out of")

	return cmd
}

func newAuthAuditCmd() *cobra.Command {
	var (
		host string
		n    int
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent authenticator activity for a host",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openAuditStore()
			if err != nil {
				return err
			}
			defer store.Close()

			events, err := store.Recent(cmd.Context(), host, n)
			if err != nil {
				return err
			}

			for _, e := range events {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\t%s\n",
					e.OccurredAt.Format(time.RFC3339), e.Host, e.Method, e.Kind, e.Outcome)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "host to show events for")
	cmd.Flags().IntVar(&n, "limit", 20, "max events to show")

	return cmd
}

func recordAuditBestEffort(cc *CLIContext, host, kind string, ok bool) {
	store, err := openAuditStore()
	if err != nil {
		cc.Logger.Debug("audit ledger unavailable", "error", err)
		return
	}
	defer store.Close()

	outcome := "failure"
	if ok {
		outcome = "success"
	}

	if err := store.Record(context.Background(), authaudit.Event{
		Host:       host,
		Method:     "unknown",
		Kind:       kind,
		Outcome:    outcome,
		OccurredAt: time.Now().UTC(),
	}); err != nil {
		cc.Logger.Debug("recording audit event failed", "error", err)
	}
}

func openAuditStore() (*authaudit.Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	return authaudit.Open(home + "/.aclnet/audit.db")
}
