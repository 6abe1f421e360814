package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "reflowd",
	Short:         "Reflow oven controller daemon",
	Long:          `reflowd drives a reflow oven through stored solder profiles and serves its state over HTTP, websocket and MQTT.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.yml (default ./configs/config.yml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(profilesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
