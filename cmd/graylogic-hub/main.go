// Gray Logic Hub - discovery and dispatch core
//
// The hub finds devices on the network (mDNS, MQTT announcements, the API),
// maps each one to the component or platform that handles it, and loads that
// component on demand. Everything else in the building talks to the hub over
// MQTT and the REST/WebSocket API.
//
// Usage:
//
//	graylogic-hub [serve] [--config path]
//	graylogic-hub services
//	graylogic-hub token --subject ops
//	graylogic-hub version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Running the root command without a
// subcommand serves the hub.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "graylogic-hub",
		Short: "Gray Logic discovery and dispatch hub",
		Long: `graylogic-hub discovers devices on the local network and loads the
components and platforms that handle them. Discovery events are mirrored
to MQTT and streamed over the WebSocket API.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), resolveConfigPath(configPath))
		},
	}
	root.SetVersionTemplate("graylogic-hub {{.Version}}\n")
	root.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file path (env: GRAYLOGIC_CONFIG, default: "+defaultConfigPath+")")

	root.AddCommand(
		newServeCmd(&configPath),
		newServicesCmd(&configPath),
		newTokenCmd(&configPath),
		newVersionCmd(),
	)
	return root
}

// resolveConfigPath returns the config path from the flag, then
// GRAYLOGIC_CONFIG, then the default.
func resolveConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
