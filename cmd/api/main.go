package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tunnelwatch",
	Short: "Tunnelwatch - status aggregation for containerized VPN tunnels",
	Long: `Tunnelwatch reports on a fleet of VPN tunnel containers: whether each
tunnel is up, how long it has been running, where it enters and where it
exits, and how much memory it uses. It can also start, stop and replace
tunnels through the deployment scripts.

Configuration is read from TUNNELWATCH_* environment variables and an
optional .env file in the working directory.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Tunnelwatch version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(healthCmd)
}
