package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X ...cmd.Version=...".
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sealbox",
	Short: "Sealbox keeps a local messaging profile encrypted at rest",
	Long: `Sealbox stores settings, contacts and message history as encrypted
documents under a key derived from your password. Every file on disk is an
authenticated ciphertext envelope.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (YAML or JSON); default ./sealbox.yaml or $XDG_CONFIG_HOME/sealbox/sealbox.yaml")
	pf.String(keyDataDir, defaultDataDir(), "Directory for the account database and documents")
	pf.String(keyLogLevel, "info", "Log level: debug, info, warn, error")
	pf.String(keyLogFormat, "text", "Log format: text, json")
}
