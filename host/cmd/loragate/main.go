package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"loragate/protocol"
)

var (
	Version   = "v1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "loragate",
		Short: "loragate - serial bridge between a LoRa gateway and its host",
		Long: `loragate forwards LoRa network events (joins, kicks, uplink data, acks,
pending frame requests) to a host over a serial line and executes the
host's text commands against the gateway's node table and radio settings.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(portsCmd())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the gateway bridge",
		RunE:  run,
	}

	cmd.Flags().StringP("config", "c", "", "Path to configuration file (default: ./loragate.yaml or /etc/loragate/loragate.yaml)")
	cmd.Flags().String("log-level", "", "Log level (debug, info, warn, error); overrides logging.level")
	cmd.Flags().Bool("console", false, "Read console commands from stdin")

	return cmd
}

func portsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listPorts(cmd.OutOrStdout())
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "loragate\n")
			fmt.Fprintf(out, "Version: %s\n", Version)
			fmt.Fprintf(out, "Protocol: %s\n", protocol.Version)
			fmt.Fprintf(out, "Build Time: %s\n", BuildTime)
			fmt.Fprintf(out, "Git Commit: %s\n", GitCommit)
		},
	}
}
