package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-hub/internal/api"
	"github.com/nerrad567/gray-logic-hub/internal/discovery"
	"github.com/nerrad567/gray-logic-hub/internal/hub"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the hub (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), resolveConfigPath(*configPath))
		},
	}
}

func newServicesCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "Print the discovery service catalog",
		Long: `Print every service the hub can handle, after applying the services:
overlay from the config file, with the component and platform it maps to.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(resolveConfigPath(*configPath))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			catalog := discovery.DefaultCatalog()
			if err := catalog.Merge(hub.ServiceOverlay(cfg.Services)); err != nil {
				return fmt.Errorf("applying services overlay: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SERVICE\tKIND\tCOMPONENT\tPLATFORM")
			for _, e := range catalog.Entries() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Service, e.Kind, dash(e.Component), dash(e.Platform))
			}
			return w.Flush()
		},
	}
}

func newTokenCmd(configPath *string) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the API mutation routes",
		Example: `  # Token for the commissioning laptop, valid for the configured TTL
  graylogic-hub token --subject commissioning

  # Short-lived token for a script
  graylogic-hub token --subject rescan --ttl 5m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(resolveConfigPath(*configPath))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if ttl == 0 {
				ttl = cfg.GetTokenTTL()
			}

			token, err := api.IssueToken(cfg.Security.JWT.Secret, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "cli", "Token subject, recorded in request logs")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default: security.jwt.access_token_ttl)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "graylogic-hub %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
