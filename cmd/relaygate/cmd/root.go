// Package cmd provides the CLI commands for relaygate.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/relaygate/relaygate/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "relaygate",
	Short: "relaygate - programmable HTTP/WebSocket reverse proxy",
	Long: `relaygate is a reverse proxy core: target resolution, outgoing request
construction, a named pipeline of proxy passes, and WebSocket upgrade
splicing, all driven by configuration.

Quick start:
  1. Create a config file: relaygate.yaml
  2. Run: relaygate serve

Configuration:
  Config is loaded from relaygate.yaml in the current directory,
  $HOME/.relaygate/, or /etc/relaygate/.

  Environment variables can override config values with the RELAYGATE_
  prefix. Example: RELAYGATE_SERVER_LISTEN_ADDR=:9090

Commands:
  serve         Start the proxy server
  hash-secret   Generate an Argon2id hash for the admin API shared secret
  version       Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./relaygate.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
