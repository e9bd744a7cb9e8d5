package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newCookiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cookies",
		Short: "Inspect or edit the persistent cookie jar",
	}

	cmd.AddCommand(newCookiesExportCmd())
	cmd.AddCommand(newCookiesImportCmd())
	cmd.AddCommand(newCookiesClearCmd())

	return cmd
}

func newCookiesExportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the cookie jar in Netscape cookies.txt format",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			data := cc.Net.CookieJar().ExportNetscape()

			if out == "" || out == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}

			return os.WriteFile(out, data, 0o600)
		},
	}

	cmd.Flags().StringVar(&out, "out", "-", "output path, or - for stdout")

	return cmd
}

func newCookiesImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Merge a Netscape cookies.txt file into the jar and persist it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			jar := cc.Net.CookieJar()

			if err := jar.ImportNetscape(data); err != nil {
				return err
			}

			if err := jar.Save(); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "cookies imported")

			return nil
		},
	}

	return cmd
}

func newCookiesClearCmd() *cobra.Command {
	var host string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every cookie for a host",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			if host == "" {
				return fmt.Errorf("clear: --host is required")
			}

			jar := cc.Net.CookieJar()
			jar.ClearDomain(host)

			if err := jar.Save(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "cleared cookies for %s\n", host)

			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "host to clear")

	return cmd
}
