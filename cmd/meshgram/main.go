package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "meshgram",
		Short: "Relay messages between a Meshtastic mesh and Telegram",
		Long: `meshgram bridges a Meshtastic mesh, reached through an MQTT broker,
and a Telegram bot. Mesh text is broadcast to bot users, position and
low battery reports go to admins, and chat messages are sent to the mesh.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the config file (default: search ., ./config and /etc/meshgram)")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newMigrateCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
